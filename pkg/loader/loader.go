// Package loader reads the four catalog collections (subjects, professors,
// sections, meetings) from a data directory, either as JSON arrays or as CSV
// files with a header row.
package loader

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/ritzau/course-planner/pkg/clock"
	"github.com/ritzau/course-planner/pkg/logging"
	"github.com/ritzau/course-planner/pkg/model"
)

// ErrUnsupportedFormat is returned for a format other than auto, json or csv
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// Format selects the file encoding of a data directory
type Format string

const (
	FormatAuto Format = "auto"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a format name. Empty means auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

var log = logging.New("loader")

// subjectRow mirrors a subjects.csv line; semester and credits are optional
// and may be blank
type subjectRow struct {
	Code     string `csv:"subjectCode"`
	Name     string `csv:"subjectName"`
	Semester string `csv:"semester,omitempty"`
	Credits  string `csv:"credits,omitempty"`
}

// Load reads a catalog from dir. A missing collection file loads as an empty
// collection; a directory with no catalog files at all is an error.
// Incomplete rows (no key) are dropped and day names are normalized.
func Load(dir string, format Format) (*model.Catalog, error) {
	if format == "" {
		format = FormatAuto
	}
	if format == FormatAuto {
		detected, err := Detect(dir)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	var (
		cat *model.Catalog
		err error
	)
	switch format {
	case FormatJSON:
		cat, err = loadJSON(dir)
	case FormatCSV:
		cat, err = loadCSV(dir)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	clean(cat)
	log.Info("catalog loaded",
		"dir", dir,
		"format", string(format),
		"subjects", len(cat.Subjects),
		"sections", len(cat.Sections),
		"meetings", len(cat.Meetings))
	return cat, nil
}

// Detect returns the encoding of the catalog in dir, preferring JSON when
// both are present
func Detect(dir string) (Format, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("failed to open data directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("data path %s is not a directory", dir)
	}

	for _, f := range []Format{FormatJSON, FormatCSV} {
		for _, c := range Collections {
			if exists(filepath.Join(dir, c+"."+string(f))) {
				return f, nil
			}
		}
	}
	return "", fmt.Errorf("no catalog files in %s: %w", dir, os.ErrNotExist)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func loadJSON(dir string) (*model.Catalog, error) {
	cat := &model.Catalog{}
	if err := readJSON(dir, "subjects", &cat.Subjects); err != nil {
		return nil, err
	}
	if err := readJSON(dir, "professors", &cat.Professors); err != nil {
		return nil, err
	}
	if err := readJSON(dir, "sections", &cat.Sections); err != nil {
		return nil, err
	}
	if err := readJSON(dir, "meetings", &cat.Meetings); err != nil {
		return nil, err
	}
	return cat, nil
}

func readJSON(dir, name string, out any) error {
	path := filepath.Join(dir, name+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug("collection missing, using empty", "file", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func loadCSV(dir string) (*model.Catalog, error) {
	cat := &model.Catalog{}

	var subjects []*subjectRow
	if err := readCSV(dir, "subjects", &subjects); err != nil {
		return nil, err
	}
	for _, r := range subjects {
		cat.Subjects = append(cat.Subjects, model.Subject{
			Code:     r.Code,
			Name:     r.Name,
			Semester: optionalInt(r.Semester),
			Credits:  optionalInt(r.Credits),
		})
	}

	var professors []*model.Professor
	if err := readCSV(dir, "professors", &professors); err != nil {
		return nil, err
	}
	for _, p := range professors {
		cat.Professors = append(cat.Professors, *p)
	}

	var sections []*model.Section
	if err := readCSV(dir, "sections", &sections); err != nil {
		return nil, err
	}
	for _, s := range sections {
		cat.Sections = append(cat.Sections, *s)
	}

	var meetings []*model.Meeting
	if err := readCSV(dir, "meetings", &meetings); err != nil {
		return nil, err
	}
	for _, m := range meetings {
		cat.Meetings = append(cat.Meetings, *m)
	}
	return cat, nil
}

func readCSV(dir, name string, out any) error {
	path := filepath.Join(dir, name+".csv")
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug("collection missing, using empty", "file", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	r := csv.NewReader(br)
	r.Comma = sniffDelimiter(br)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	if err := gocsv.UnmarshalCSV(r, out); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil
		}
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// sniffDelimiter looks at the header line: spreadsheet exports in Spanish
// locales use ';'
func sniffDelimiter(br *bufio.Reader) rune {
	header, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return ','
	}
	line, _, _ := strings.Cut(string(header), "\n")
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

func optionalInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return nil
		}
		n = int(f)
	}
	return &n
}

// clean trims keys, drops rows without them and normalizes day names
func clean(cat *model.Catalog) {
	dropped := 0

	subjects := cat.Subjects[:0]
	for _, s := range cat.Subjects {
		s.Code, s.Name = strings.TrimSpace(s.Code), strings.TrimSpace(s.Name)
		if s.Code == "" || s.Name == "" {
			dropped++
			continue
		}
		subjects = append(subjects, s)
	}
	cat.Subjects = subjects

	professors := cat.Professors[:0]
	for _, p := range cat.Professors {
		p.ID, p.Name = strings.TrimSpace(p.ID), strings.TrimSpace(p.Name)
		if p.ID == "" || p.Name == "" {
			dropped++
			continue
		}
		professors = append(professors, p)
	}
	cat.Professors = professors

	sections := cat.Sections[:0]
	for _, s := range cat.Sections {
		s.NRC = strings.TrimSpace(s.NRC)
		s.SubjectCode = strings.TrimSpace(s.SubjectCode)
		s.ProfessorID = strings.TrimSpace(s.ProfessorID)
		if s.NRC == "" || s.SubjectCode == "" {
			dropped++
			continue
		}
		sections = append(sections, s)
	}
	cat.Sections = sections

	meetings := cat.Meetings[:0]
	for _, m := range cat.Meetings {
		m.NRC = strings.TrimSpace(m.NRC)
		m.Day = clock.Day(m.Day)
		if m.NRC == "" || strings.TrimSpace(m.Day) == "" {
			dropped++
			continue
		}
		meetings = append(meetings, m)
	}
	cat.Meetings = meetings

	if dropped > 0 {
		log.Warn("dropped incomplete rows", "count", dropped)
	}
}
