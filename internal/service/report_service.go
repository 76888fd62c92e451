package service

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// WriteProgressPDF renders a progress report as a one-document PDF.
func WriteProgressPDF(w io.Writer, report *ProgressReport) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Learning progress", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr(fmt.Sprintf("Learning progress: %s", report.Username)))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, tr(fmt.Sprintf("Generated %s", report.GeneratedAt.Format("2006-01-02 15:04 MST"))))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Level: %s (mean ability %.2f)", report.Level, report.MeanTheta))
	pdf.Ln(7)
	t := report.Totals
	pdf.Cell(0, 7, fmt.Sprintf("Questions asked %d, answered %d, correct %d (%.1f%%)", t.Asked, t.Answered, t.Correct, t.Accuracy))
	pdf.Ln(12)

	section(pdf, "Categories")
	table(pdf,
		[]string{"Category", "Asked", "Answered", "Accuracy", "Avg time"},
		[]float64{70, 25, 25, 30, 30},
		func(row func(cells ...string)) {
			for _, c := range report.Categories {
				row(tr(c.CategoryName),
					fmt.Sprint(c.Asked),
					fmt.Sprint(c.Answered),
					fmt.Sprintf("%.1f%%", c.Accuracy),
					fmt.Sprintf("%.0fs", c.AvgSeconds))
			}
		})
	pdf.Ln(8)

	section(pdf, "Skills")
	table(pdf,
		[]string{"Skill", "Category", "Ability", "Attempts", "Correct"},
		[]float64{55, 55, 25, 25, 20},
		func(row func(cells ...string)) {
			for _, s := range report.Skills {
				row(tr(s.SkillName),
					tr(s.CategoryName),
					fmt.Sprintf("%.2f", s.Theta),
					fmt.Sprint(s.TotalAttempts),
					fmt.Sprint(s.CorrectAttempts))
			}
		})

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render progress PDF: %w", err)
	}
	return pdf.Output(w)
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 9, title)
	pdf.Ln(10)
}

func table(pdf *gofpdf.Fpdf, header []string, widths []float64, rows func(row func(cells ...string))) {
	pdf.SetFont("Arial", "B", 10)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	empty := true
	rows(func(cells ...string) {
		empty = false
		for i, c := range cells {
			pdf.CellFormat(widths[i], 7, c, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	})
	if empty {
		pdf.Cell(0, 7, "No data yet.")
		pdf.Ln(7)
	}
}
