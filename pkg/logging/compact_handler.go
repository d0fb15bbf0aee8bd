package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// maxListItems is how many elements of a string list (NRCs, subject codes)
// are printed before the rest is summarized as "+N"
const maxListItems = 8

// level labels are padded to the same width
var levelLabels = []struct {
	level slog.Level
	label string
	color *color.Color
}{
	{LevelTrace, "[TRACE]", color.New(color.FgHiBlack)},
	{slog.LevelDebug, "[DEBUG]", color.New(color.FgCyan)},
	{slog.LevelInfo, "[INFO] ", color.New(color.FgGreen)},
	{slog.LevelWarn, "[WARN] ", color.New(color.FgYellow)},
	{slog.LevelError, "[ERROR]", color.New(color.FgRed, color.Bold)},
}

// CompactHandler formats logs in a compact, readable format for console output
// Format: [LEVEL] HH:MM:SS (component) message | key=value key=value
// Level labels are colored when the output is a terminal.
type CompactHandler struct {
	opts     slog.HandlerOptions
	mu       *sync.Mutex // shared by handlers derived through WithAttrs/WithGroup
	out      io.Writer
	colorize bool
	attrs    []slog.Attr // accumulated attributes from WithAttrs, keys already prefixed
	group    string      // dotted prefix from WithGroup
}

// NewCompactHandler creates a new compact console handler
func NewCompactHandler(w io.Writer, opts *slog.HandlerOptions) *CompactHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &CompactHandler{
		opts:     *opts,
		mu:       &sync.Mutex{},
		out:      w,
		colorize: isTerminal(w),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (h *CompactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *CompactHandler) Handle(ctx context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	buf = h.appendLevel(buf, r.Level)
	buf = append(buf, ' ')
	buf = r.Time.AppendFormat(buf, "15:04:05")
	buf = append(buf, ' ')

	// Record attrs get the current group prefix; handler attrs already have theirs
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = flatten(attrs, h.group, a)
		return true
	})

	for _, a := range attrs {
		if a.Key == "component" {
			buf = append(buf, '(')
			buf = append(buf, a.Value.String()...)
			buf = append(buf, ") "...)
			break
		}
	}

	buf = append(buf, r.Message...)

	sep := " | "
	for _, a := range attrs {
		if a.Key == "component" {
			continue
		}
		buf = append(buf, sep...)
		sep = " "
		buf = appendAttr(buf, a)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func (h *CompactHandler) appendLevel(buf []byte, level slog.Level) []byte {
	for _, l := range levelLabels {
		if l.level == level {
			if h.colorize {
				return append(buf, l.color.Sprint(l.label)...)
			}
			return append(buf, l.label...)
		}
	}
	return append(buf, fmt.Sprintf("[%-5s]", level.String())...)
}

// flatten appends a with its key prefixed by group. Group values are
// expanded into one attribute per member; empty attributes are dropped.
func flatten(dst []slog.Attr, group string, a slog.Attr) []slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		prefix := group
		if a.Key != "" {
			prefix = joinKey(group, a.Key)
		}
		for _, member := range a.Value.Group() {
			dst = flatten(dst, prefix, member)
		}
		return dst
	}
	if a.Key != "component" {
		a.Key = joinKey(group, a.Key)
	}
	return append(dst, a)
}

func joinKey(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}

func appendAttr(buf []byte, a slog.Attr) []byte {
	v := a.Value
	switch a.Key {
	case "requestID":
		// Request IDs are uuids; the first block is enough to correlate
		if s := v.String(); len(s) > 8 {
			return append(append(buf, "req="...), s[:8]...)
		}
	case "durationMs":
		buf = append(buf, "duration="...)
		buf = append(buf, v.String()...)
		return append(buf, "ms"...)
	case "error":
		buf = append(buf, "error="...)
		return strconv.AppendQuote(buf, fmt.Sprint(v.Any()))
	}

	buf = append(buf, a.Key...)
	buf = append(buf, '=')

	switch v.Kind() {
	case slog.KindString:
		return appendString(buf, v.String())
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	}

	if list, ok := v.Any().([]string); ok {
		return appendList(buf, list)
	}
	return appendString(buf, fmt.Sprintf("%v", v.Any()))
}

// appendList writes [A B C] with long lists cut to maxListItems
func appendList(buf []byte, list []string) []byte {
	buf = append(buf, '[')
	for i, s := range list {
		if i == maxListItems {
			buf = append(buf, " +"...)
			buf = strconv.AppendInt(buf, int64(len(list)-maxListItems), 10)
			break
		}
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, s...)
	}
	return append(buf, ']')
}

func appendString(buf []byte, s string) []byte {
	if needsQuoting(s) {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func needsQuoting(s string) bool {
	return s == "" || strings.ContainsAny(s, " \t\n\"=")
}

func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		merged = flatten(merged, h.group, a)
	}
	clone := *h
	clone.attrs = merged
	return &clone
}

func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = joinKey(h.group, name)
	return &clone
}
