package export

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/jung-kurt/gofpdf"

	"github.com/ritzau/course-planner/pkg/clock"
	"github.com/ritzau/course-planner/pkg/graph"
	"github.com/ritzau/course-planner/pkg/model"
)

// ScheduleRow is one meeting of a chosen section
type ScheduleRow struct {
	Day       string `csv:"day" json:"day"`
	Start     string `csv:"start" json:"start"`
	End       string `csv:"end" json:"end"`
	NRC       string `csv:"nrc" json:"nrc"`
	Subject   string `csv:"subjectCode" json:"subjectCode"`
	Name      string `csv:"subjectName" json:"subjectName"`
	Professor string `csv:"professor" json:"professor"`

	startMinute int `csv:"-"`
}

// ScheduleRows lists the meetings of the given sections in week order.
// Meetings on non-canonical days come last, in input order.
func ScheduleRows(g *graph.ConflictGraph, nrcs []string, subjects map[string]model.Subject, professors map[string]model.Professor) []ScheduleRow {
	rows := make([]ScheduleRow, 0, len(nrcs))
	for _, nrc := range nrcs {
		section, ok := g.Section(nrc)
		if !ok {
			continue
		}
		for _, m := range g.Meetings(nrc) {
			rows = append(rows, ScheduleRow{
				Day:         m.Day,
				Start:       m.Start.String(),
				End:         m.End.String(),
				NRC:         nrc,
				Subject:     section.SubjectCode,
				Name:        subjects[section.SubjectCode].Name,
				Professor:   professors[section.ProfessorID].Name,
				startMinute: int(m.Start),
			})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := dayOrder(rows[i].Day), dayOrder(rows[j].Day)
		if di != dj {
			return di < dj
		}
		return rows[i].startMinute < rows[j].startMinute
	})
	return rows
}

func dayOrder(day string) int {
	if i := clock.DayIndex(day); i >= 0 {
		return i
	}
	return len(clock.Days)
}

// WriteScheduleCSV writes the rows as CSV with a header line
func WriteScheduleCSV(w io.Writer, rows []ScheduleRow) error {
	if len(rows) == 0 {
		_, err := io.WriteString(w, "day,start,end,nrc,subjectCode,subjectName,professor\n")
		return err
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write schedule: %w", err)
	}
	return nil
}

var scheduleColumns = []struct {
	header string
	width  float64
}{
	{"Day", 20}, {"Time", 32}, {"NRC", 25}, {"Subject", 30}, {"Name", 90}, {"Professor", 80},
}

// WriteSchedulePDF renders the rows as a landscape A4 table, one band per day
func WriteSchedulePDF(w io.Writer, rows []ScheduleRow, title string) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 10)
	for _, col := range scheduleColumns {
		pdf.CellFormat(col.width, 8, col.header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	if len(rows) == 0 {
		pdf.CellFormat(0, 7, "No sections selected", "1", 1, "C", false, 0, "")
	}

	shade := false
	for i, row := range rows {
		if i > 0 && row.Day != rows[i-1].Day {
			shade = !shade
		}
		pdf.SetFillColor(235, 235, 235)
		values := []string{row.Day, row.Start + "-" + row.End, row.NRC, row.Subject, row.Name, row.Professor}
		for c, col := range scheduleColumns {
			pdf.CellFormat(col.width, 7, tr(values[c]), "1", 0, "", shade, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ScheduleTitle joins a heading with the subject codes of the rows
func ScheduleTitle(heading string, rows []ScheduleRow) string {
	seen := make(map[string]bool)
	var codes []string
	for _, r := range rows {
		if !seen[r.Subject] {
			seen[r.Subject] = true
			codes = append(codes, r.Subject)
		}
	}
	sort.Strings(codes)
	if len(codes) == 0 {
		return heading
	}
	return heading + ": " + strings.Join(codes, ", ")
}
