// Package report renders a stored dataset summary as a printable PDF.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
)

const (
	title      = "Chemical Equipment Analysis Report"
	timeLayout = "2006-01-02 15:04:05"
)

type rgb struct{ r, g, b int }

var (
	primary   = rgb{102, 126, 234}
	secondary = rgb{118, 75, 162}
	beige     = rgb{245, 245, 220}
	lightGrey = rgb{211, 211, 211}
)

type Renderer struct {
	now      func() time.Time
	compress bool
}

func NewRenderer() *Renderer {
	return &Renderer{now: time.Now, compress: true}
}

// CategoryRow is one line of the distribution table.
type CategoryRow struct {
	Category string
	Count    int
}

// SortedCategories orders the distribution by count descending, then name.
func SortedCategories(counts entity.CategoryCounts) []CategoryRow {
	rows := make([]CategoryRow, 0, len(counts))
	for c, n := range counts {
		rows = append(rows, CategoryRow{Category: c, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}

// FileName is the download name of the report for a dataset.
func FileName(s entity.DatasetSummary) string {
	return fmt.Sprintf("equipment_report_%s.pdf", s.ID)
}

func (r *Renderer) Render(s entity.DatasetSummary) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetCompression(r.compress)
	// core fonts are cp1252; uploaded names and categories arrive as UTF-8
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.SetAuthor("equipment analyzer", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(primary.r, primary.g, primary.b)
	pdf.CellFormat(0, 14, title, "", 1, "C", false, 0, "")
	pdf.Ln(6)

	r.infoTable(pdf, tr, s)
	pdf.Ln(8)

	heading(pdf, "Summary Statistics")
	table(pdf, []string{"Metric", "Value"}, [][]string{
		{"Total Equipment", strconv.Itoa(s.RowCount)},
		{"Average Flowrate", fmt.Sprintf("%.2f", s.Means.Flowrate)},
		{"Average Pressure", fmt.Sprintf("%.2f", s.Means.Pressure)},
		{"Average Temperature", fmt.Sprintf("%.2f", s.Means.Temperature)},
	}, primary, beige)
	pdf.Ln(8)

	heading(pdf, "Equipment Type Distribution")
	var dist [][]string
	for _, row := range SortedCategories(s.CategoryCounts) {
		dist = append(dist, []string{tr(row.Category), strconv.Itoa(row.Count)})
	}
	table(pdf, []string{"Equipment Type", "Count"}, dist, secondary, lightGrey)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) infoTable(pdf *fpdf.Fpdf, tr func(string) string, s entity.DatasetSummary) {
	info := [][2]string{
		{"Report Generated:", r.now().UTC().Format(timeLayout)},
		{"Dataset Name:", tr(s.Label)},
		{"Upload Date:", s.CreatedAt.UTC().Format(timeLayout)},
		{"User:", tr(s.Owner)},
	}
	for _, row := range info {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(primary.r, primary.g, primary.b)
		pdf.CellFormat(50, 8, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(100, 8, row[1], "", 1, "L", false, 0, "")
	}
}

func heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(secondary.r, secondary.g, secondary.b)
	pdf.CellFormat(0, 10, text, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func table(pdf *fpdf.Fpdf, header []string, rows [][]string, head, body rgb) {
	const colWidth = 76

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(head.r, head.g, head.b)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetDrawColor(0, 0, 0)
	for _, h := range header {
		pdf.CellFormat(colWidth, 10, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetFillColor(body.r, body.g, body.b)
	pdf.SetTextColor(0, 0, 0)
	for _, row := range rows {
		for _, cell := range row {
			pdf.CellFormat(colWidth, 8, cell, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
}
