// Package extracttest writes payroll spreadsheets for tests.
package extracttest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/vr"
)

// Files maps categories to paths. It satisfies extract.Locator.
type Files map[vr.Category]string

func (f Files) Path(c vr.Category) string { return f[c] }

// WriteSheet saves rows as the first worksheet of dir/name and returns the path.
func WriteSheet(t testing.TB, dir, name string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

// Aliases maps the raw union labels used by Payroll to their rate labels.
var Aliases = map[string]string{
	"SINDPD SP - SIND.TRAB.EM PROC DADOS": "São Paulo",
	"SINDPD RJ - SINDICATO PROC DADOS":    "Rio de Janeiro",
}

// Payroll writes a full set of inputs for May 2025 into dir:
//
//	100  SP analyst, full month            -> 22 x 37.50 = 825.00
//	200  apprentice                        -> excluded
//	300  SP, 10 vacation days              -> 12 x 37.50 = 450.00
//	400  RJ, terminated on the 10th        -> excluded
//	500  RJ, terminated on the 20th        -> 21 x 35.00 = 735.00
//	600  SP, overseas "removed"            -> excluded
//	700  RJ, on maternity leave            -> excluded
//	800  SP director                       -> excluded
//
// Adjustment files also mention 999, who is not on the roster.
func Payroll(t testing.TB, dir string) Files {
	t.Helper()
	sp, rj := "SINDPD SP - SIND.TRAB.EM PROC DADOS", "SINDPD RJ - SINDICATO PROC DADOS"
	day := func(d int) time.Time { return time.Date(2025, time.May, d, 0, 0, 0, 0, time.UTC) }

	files := Files{
		vr.CategoryActive: WriteSheet(t, dir, "ATIVOS.xlsx", [][]any{
			{"MATRICULA", "EMPRESA", "TITULO DO CARGO", "DESC. SITUACAO", "Sindicato"},
			{100, 1410, "ANALISTA", "Trabalhando", sp},
			{200, 1410, "APRENDIZ", "Trabalhando", sp},
			{300, 1410, "ANALISTA", "Férias", sp},
			{400, 1410, "ANALISTA", "Trabalhando", rj},
			{500, 1410, "ANALISTA", "Trabalhando", rj},
			{600, 1410, "CONSULTOR", "Trabalhando", sp},
			{700, 1410, "ANALISTA", "Licença Maternidade", rj},
			{800, 1410, "DIRETOR", "Trabalhando", sp},
		}),
		vr.CategoryRates: WriteSheet(t, dir, "Base sindicato x valor.xlsx", [][]any{
			{"ESTADO                                                                   ", "VALOR"},
			{"São Paulo", "R$ 37,50"},
			{"Rio de Janeiro", 35},
			{nil, nil},
		}),
		vr.CategoryWorkdays: WriteSheet(t, dir, "Base dias uteis.xlsx", [][]any{
			{"BASE DIAS UTEIS DE 15/04 a 15/05"},
			{"SINDICADO", nil},
			{sp, 22},
			{rj, 21},
		}),
		vr.CategoryApprentices: WriteSheet(t, dir, "APRENDIZ.xlsx", [][]any{
			{"MATRICULA", "TITULO DO CARGO"},
			{200, "APRENDIZ"},
		}),
		vr.CategoryVacations: WriteSheet(t, dir, "FÉRIAS.xlsx", [][]any{
			{"MATRICULA", "DESC. SITUACAO", "DIAS DE FÉRIAS"},
			{300, "Férias", 10},
			{999, "Férias", 5},
		}),
		vr.CategoryTerminated: WriteSheet(t, dir, "DESLIGADOS.xlsx", [][]any{
			{"MATRICULA ", "DATA DEMISSÃO", "COMUNICADO DE DESLIGAMENTO"},
			{400, day(10), "OK"},
			{500, day(20), "OK"},
		}),
		vr.CategoryOverseas: WriteSheet(t, dir, "EXTERIOR.xlsx", [][]any{
			{"Cadastro", "Valor", nil},
			{600, 1000, "removed from program"},
		}),
		vr.CategoryLeaves: WriteSheet(t, dir, "AFASTAMENTOS.xlsx", [][]any{
			{"MATRICULA", "DESC. SITUACAO"},
			{700, "Licença Maternidade"},
		}),
	}
	return files
}

// Config returns the rules that go with Payroll.
func Config() *vr.Config {
	cfg := vr.DefaultConfig(generic.MustParseCompetency("2025-05"))
	cfg.ExcludedRoles = []string{"DIRETOR"}
	cfg.ExcludedLeaveTypes = []string{"Licença Maternidade"}
	cfg.UnionAliases = Aliases
	return &cfg
}
