/*
Package report writes the files payroll receives after a run.

PURPOSE:
  Turns a vr.Result into the monthly purchase workbook, the list of
  excluded employees and a one-page summary PDF. Nothing here computes
  benefits: every figure comes from the result as the engine left it.

OUTPUTS:
  VR_MENSAL_<competency>.xlsx
    "VR Mensal"   eligible employees sorted by ID, totals row, frozen header
    "Validações"  summary, exclusions by reason, consistency checks
  colaboradores_excluidos.xlsx
    "Excluídos"   one row per excluded employee with the reason history
  VR_RESUMO_<competency>.pdf
    Totals, checks and exclusion counts on one page

SEE ALSO:
  - vr/stats.go: Stats and Checks shown in the validation sheet
  - pipeline/pipeline.go: Decides which outputs are written
*/
package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/warp/benefit-engine/vr"
)

// Sheet names.
const (
	SheetMonthly     = "VR Mensal"
	SheetValidations = "Validações"
	SheetExcluded    = "Excluídos"
)

// Monthly sheet header, in column order.
var monthlyHeader = []string{
	"Matricula",
	"Admissão",
	"Sindicato do Colaborador",
	"Competência",
	"Dias",
	"VALOR DIÁRIO VR",
	"TOTAL",
	"Custo empresa",
	"Desconto profissional",
	"OBS GERAL",
}

var monthlyWidths = []float64{12, 12, 50, 12, 8, 15, 15, 15, 18, 30}

var excludedHeader = []string{"Matricula", "Cargo", "Sindicato", "Motivo Exclusão", "Situação", "Histórico"}

// =============================================================================
// STYLES
// =============================================================================

type styles struct {
	header, text, centered, money, date, totalLabel, totalMoney, title, section int
}

func newStyles(f *excelize.File) (*styles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	normal := &excelize.Font{Family: "Arial", Size: 10}
	bold := &excelize.Font{Family: "Arial", Size: 10, Bold: true}
	totalFill := excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}}
	moneyFmt := "R$ #,##0.00"
	dateFmt := "dd/mm/yyyy"

	s := &styles{}
	var err error
	add := func(st *excelize.Style) int {
		if err != nil {
			return 0
		}
		var id int
		id, err = f.NewStyle(st)
		return id
	}

	s.header = add(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Size: 11, Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"366092"}},
		Border:    border,
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	s.text = add(&excelize.Style{Font: normal, Border: border, Alignment: &excelize.Alignment{Horizontal: "left"}})
	s.centered = add(&excelize.Style{Font: normal, Border: border, Alignment: &excelize.Alignment{Horizontal: "center"}})
	s.money = add(&excelize.Style{Font: normal, Border: border, CustomNumFmt: &moneyFmt, Alignment: &excelize.Alignment{Horizontal: "right"}})
	s.date = add(&excelize.Style{Font: normal, Border: border, CustomNumFmt: &dateFmt, Alignment: &excelize.Alignment{Horizontal: "center"}})
	s.totalLabel = add(&excelize.Style{Font: bold, Border: border, Fill: totalFill, Alignment: &excelize.Alignment{Horizontal: "center"}})
	s.totalMoney = add(&excelize.Style{Font: bold, Border: border, Fill: totalFill, CustomNumFmt: &moneyFmt, Alignment: &excelize.Alignment{Horizontal: "right"}})
	s.title = add(&excelize.Style{Font: &excelize.Font{Family: "Arial", Size: 14, Bold: true}})
	s.section = add(&excelize.Style{Font: &excelize.Font{Family: "Arial", Size: 12, Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create styles: %w", err)
	}
	return s, nil
}

// =============================================================================
// MONTHLY WORKBOOK
// =============================================================================

// WriteWorkbook writes the monthly purchase workbook to path.
func WriteWorkbook(path string, res *vr.Result, cfg *vr.Config) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	if err := f.SetSheetName(f.GetSheetName(0), SheetMonthly); err != nil {
		return err
	}
	if err := writeMonthly(f, st, res); err != nil {
		return fmt.Errorf("failed to write %s: %w", SheetMonthly, err)
	}

	if _, err := f.NewSheet(SheetValidations); err != nil {
		return err
	}
	if err := writeValidations(f, st, res, cfg); err != nil {
		return fmt.Errorf("failed to write %s: %w", SheetValidations, err)
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeMonthly(f *excelize.File, st *styles, res *vr.Result) error {
	sheet := SheetMonthly
	if err := writeHeader(f, sheet, monthlyHeader, st.header); err != nil {
		return err
	}

	competency := res.Competency.Start()
	eligible := res.Eligible()
	for i, rec := range eligible {
		row := i + 2
		var admission any
		if rec.AdmissionDate != nil {
			admission = *rec.AdmissionDate
		}
		values := []any{
			int64(rec.ID),
			admission,
			rec.Union,
			competency,
			rec.EffectiveDays.InexactFloat64(),
			rec.Rate().InexactFloat64(),
			rec.Total.InexactFloat64(),
			rec.EmployerCost.InexactFloat64(),
			rec.EmployeeDeduction.InexactFloat64(),
			rec.Observation,
		}
		if err := setRow(f, sheet, row, values); err != nil {
			return err
		}
		for col, style := range []int{st.centered, st.date, st.text, st.date, st.centered, st.money, st.money, st.money, st.money, st.text} {
			if err := styleCell(f, sheet, col+1, row, style); err != nil {
				return err
			}
		}
	}

	total := len(eligible) + 2
	totals := []any{
		"TOTAL GERAL",
		len(eligible),
		nil, nil, nil, nil,
		res.Stats.TotalValue.InexactFloat64(),
		res.Stats.TotalEmployerCost.InexactFloat64(),
		res.Stats.TotalEmployeeDeduction.InexactFloat64(),
		nil,
	}
	if err := setRow(f, sheet, total, totals); err != nil {
		return err
	}
	for col := 1; col <= len(monthlyHeader); col++ {
		style := st.totalLabel
		if col >= 7 && col <= 9 {
			style = st.totalMoney
		}
		if err := styleCell(f, sheet, col, total, style); err != nil {
			return err
		}
	}

	if err := setWidths(f, sheet, monthlyWidths); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeValidations(f *excelize.File, st *styles, res *vr.Result, cfg *vr.Config) error {
	sheet := SheetValidations
	s := res.Stats
	row := 1

	put := func(label string, value any, style int) error {
		if err := setRow(f, sheet, row, []any{label, value}); err != nil {
			return err
		}
		if style != 0 {
			if err := styleCell(f, sheet, 1, row, style); err != nil {
				return err
			}
		}
		row++
		return nil
	}

	if err := put("RELATÓRIO DE VALIDAÇÕES E CONSISTÊNCIA", nil, st.title); err != nil {
		return err
	}
	if err := f.MergeCell(sheet, "A1", "D1"); err != nil {
		return err
	}
	row++

	if err := put("RESUMO ESTATÍSTICO", nil, st.section); err != nil {
		return err
	}
	summary := [][2]any{
		{"Competência", res.Competency.String()},
		{"Total de colaboradores processados", s.Total},
		{"Colaboradores elegíveis para VR", s.Eligible},
		{"Colaboradores excluídos", s.Ineligible},
		{"Valor total processado", FormatBRL(s.TotalValue)},
		{"Custo total empresa", FormatBRL(s.TotalEmployerCost)},
		{"Desconto total colaboradores", FormatBRL(s.TotalEmployeeDeduction)},
		{"Percentual empresa / colaborador", fmt.Sprintf("%s%% / %s%%", pct(cfg.EmployerShare.InexactFloat64()), pct(cfg.EmployeeShare.InexactFloat64()))},
	}
	for _, item := range summary {
		if err := put(item[0].(string), item[1], 0); err != nil {
			return err
		}
	}
	row++

	if err := put("EXCLUSÕES POR CATEGORIA", nil, st.section); err != nil {
		return err
	}
	for _, reason := range s.Reasons() {
		if err := put(reason, s.ExclusionsByReason[reason], 0); err != nil {
			return err
		}
	}
	row++

	if err := put("VALIDAÇÕES DE CONSISTÊNCIA", nil, st.section); err != nil {
		return err
	}
	for _, c := range res.Checks {
		if err := put(checkLabel(c), c.Detail, 0); err != nil {
			return err
		}
	}

	return setWidths(f, sheet, []float64{45, 30, 20, 20})
}

func checkLabel(c vr.Check) string {
	if c.Passed {
		return "✓ " + c.Name
	}
	return "⚠ " + c.Name
}

func pct(share float64) string { return fmt.Sprintf("%.1f", share*100) }

// =============================================================================
// EXCLUSIONS WORKBOOK
// =============================================================================

// WriteExclusions writes the excluded employees to path. It returns false,
// and writes nothing, when nobody was excluded.
func WriteExclusions(path string, table *vr.Table) (bool, error) {
	excluded := table.Filter(func(r *vr.Record) bool { return !r.Eligible })
	if len(excluded) == 0 {
		return false, nil
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	st, err := newStyles(f)
	if err != nil {
		return false, err
	}
	sheet := SheetExcluded
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return false, err
	}
	if err := writeHeader(f, sheet, excludedHeader, st.header); err != nil {
		return false, err
	}

	for i, rec := range excluded {
		values := []any{int64(rec.ID), rec.Role, rec.Union, rec.Reason, rec.Status, history(rec.Exclusions)}
		if err := setRow(f, sheet, i+2, values); err != nil {
			return false, err
		}
	}
	if err := setWidths(f, sheet, []float64{12, 30, 50, 40, 25, 60}); err != nil {
		return false, err
	}

	if err := f.SaveAs(path); err != nil {
		return false, fmt.Errorf("failed to save exclusions: %w", err)
	}
	return true, nil
}

func history(exclusions []vr.Exclusion) string {
	parts := make([]string, len(exclusions))
	for i, e := range exclusions {
		parts[i] = fmt.Sprintf("%s: %s", e.Phase, e.Reason)
	}
	return strings.Join(parts, "; ")
}

// =============================================================================
// CELL HELPERS
// =============================================================================

func writeHeader(f *excelize.File, sheet string, header []string, style int) error {
	values := make([]any, len(header))
	for i, h := range header {
		values[i] = h
	}
	if err := setRow(f, sheet, 1, values); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func styleCell(f *excelize.File, sheet string, col, row, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, style)
}

func setWidths(f *excelize.File, sheet string, widths []float64) error {
	for i, w := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, w); err != nil {
			return err
		}
	}
	return nil
}
