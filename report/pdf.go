package report

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/warp/benefit-engine/vr"
)

// WriteSummaryPDF writes a one-page run summary to path.
func WriteSummaryPDF(path string, res *vr.Result, cfg *vr.Config) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	s := res.Stats

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr("Vale Refeição - Resumo "+res.Competency.String()))
	pdf.Ln(14)

	line := func(label, value string) {
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(90, 7, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, tr(value), "", 1, "L", false, 0, "")
	}
	section := func(title string) {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, tr(title))
		pdf.Ln(9)
	}

	section("Totais")
	line("Colaboradores processados", fmt.Sprint(s.Total))
	line("Elegíveis", fmt.Sprint(s.Eligible))
	line("Excluídos", fmt.Sprint(s.Ineligible))
	line("Valor total", FormatBRL(s.TotalValue))
	line(fmt.Sprintf("Custo empresa (%s%%)", pct(cfg.EmployerShare.InexactFloat64())), FormatBRL(s.TotalEmployerCost))
	line(fmt.Sprintf("Desconto profissional (%s%%)", pct(cfg.EmployeeShare.InexactFloat64())), FormatBRL(s.TotalEmployeeDeduction))

	if len(s.ExclusionsByReason) > 0 {
		section("Exclusões")
		for _, reason := range s.Reasons() {
			line(reason, fmt.Sprint(s.ExclusionsByReason[reason]))
		}
	}

	section("Validações")
	for _, c := range res.Checks {
		status := "OK"
		if !c.Passed {
			status = "FALHOU"
		}
		line(c.Name, status+" - "+c.Detail)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write summary pdf: %w", err)
	}
	return nil
}
