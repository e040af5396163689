package extract

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/vr"
)

// =============================================================================
// COLUMN SCHEMAS
// =============================================================================

// Canonical column names, as they appear in the payroll exports.
const (
	colID          = "MATRICULA"
	colEmployer    = "EMPRESA"
	colRole        = "TITULO DO CARGO"
	colStatus      = "DESC. SITUACAO"
	colUnion       = "SINDICATO"
	colAdmission   = "ADMISSAO"
	colCargo       = "CARGO"
	colTermination = "DATA DEMISSAO"
	colNotice      = "COMUNICADO DE DESLIGAMENTO"
	colWorkUnion   = "SINDICADO"
	colWorkdays    = "DIAS UTEIS"
	colState       = "ESTADO"
	colValue       = "VALOR"
	colObservation = "OBSERVACAO"
	colVacation    = "DIAS DE FERIAS"
)

// workdaysBanner is the title some workdays exports put above the header.
const workdaysBanner = "BASE DIAS UTEIS"

type column struct {
	name     string
	aliases  []string // folded header spellings, name included implicitly
	contains bool     // header only has to contain one of the spellings
	position int      // fallback index when no header matches; -1 for none
	optional bool
}

func col(name string, aliases ...string) column {
	return column{name: name, aliases: aliases, position: -1}
}

func (c column) at(i int) column {
	c.position = i
	return c
}

func (c column) substring() column {
	c.contains = true
	return c
}

func (c column) notRequired() column {
	c.optional = true
	return c
}

func (c column) spellings() []string   { return append([]string{c.name}, c.aliases...) }
func (c column) matches(h string) bool { return matchAny(h, c.spellings(), c.contains) }

func matchAny(header string, spellings []string, contains bool) bool {
	for _, s := range spellings {
		if header == s || (contains && strings.Contains(header, s)) {
			return true
		}
	}
	return false
}

type schema struct {
	columns []column
	banner  string
}

var idColumn = col(colID, "CADASTRO")

var schemas = map[vr.Category]schema{
	vr.CategoryActive: {columns: []column{
		idColumn, col(colEmployer), col(colRole), col(colStatus, "SITUACAO"), col(colUnion),
	}},
	vr.CategoryAdmissions: {columns: []column{
		idColumn, col(colAdmission, "DATA ADMISSAO"), col(colCargo, colRole),
	}},
	vr.CategoryLeaves: {columns: []column{
		idColumn, col(colStatus, "SITUACAO", "TIPO AFASTAMENTO"),
	}},
	vr.CategoryApprentices: {columns: []column{idColumn, col(colRole, colCargo)}},
	vr.CategoryInterns:     {columns: []column{idColumn, col(colRole, colCargo)}},
	vr.CategoryWorkdays: {banner: workdaysBanner, columns: []column{
		col(colWorkUnion, colUnion).at(0), col(colWorkdays).at(1),
	}},
	vr.CategoryRates: {columns: []column{
		col(colState, colUnion).substring(), col(colValue),
	}},
	vr.CategoryTerminated: {columns: []column{
		idColumn, col(colTermination, "DATA DE DEMISSAO", "DEMISSAO"), col(colNotice, "COMUNICADO"),
	}},
	vr.CategoryOverseas: {columns: []column{
		idColumn, col(colValue), col(colObservation, "OBS", "OBSERVACOES").at(2).notRequired(),
	}},
	vr.CategoryVacations: {columns: []column{
		idColumn, col(colStatus, "SITUACAO"), col(colVacation, "FERIAS"),
	}},
}

// =============================================================================
// SHEET - Header located, columns resolved
// =============================================================================

type sheet struct {
	category vr.Category
	index    map[string]int // canonical name -> column
	rows     [][]string     // data rows, blank rows removed
	failures map[string]int // conversion failures per column
}

// locate finds the header row and resolves every schema column against it.
func locate(c vr.Category, rows [][]string) (*sheet, error) {
	sc := schemas[c]

	headerAt := firstNonBlank(rows, 0)
	if headerAt >= 0 && sc.banner != "" && len(rows[headerAt]) > 0 && strings.Contains(fold(rows[headerAt][0]), sc.banner) {
		headerAt = firstNonBlank(rows, headerAt+1)
	}
	if headerAt < 0 {
		return nil, &generic.MalformedSourceError{Category: string(c), Missing: requiredNames(sc)}
	}

	header := make([]string, len(rows[headerAt]))
	for i, h := range rows[headerAt] {
		header[i] = fold(h)
	}

	s := &sheet{category: c, index: map[string]int{}, failures: map[string]int{}}
	taken := map[int]bool{}
	var missing []string
	for _, column := range sc.columns {
		i := findColumn(header, column, taken)
		if i < 0 {
			if !column.optional {
				missing = append(missing, column.name)
			}
			continue
		}
		taken[i] = true
		s.index[column.name] = i
	}
	if len(missing) > 0 {
		return nil, &generic.MalformedSourceError{Category: string(c), Missing: missing}
	}

	for _, row := range rows[headerAt+1:] {
		if !blank(row) {
			s.rows = append(s.rows, row)
		}
	}
	return s, nil
}

func findColumn(header []string, c column, taken map[int]bool) int {
	for i, h := range header {
		if !taken[i] && c.matches(h) {
			return i
		}
	}
	// Unnamed columns are located by position, but only when the header
	// cell there is empty or unclaimed by another spelling.
	if c.position >= 0 && !taken[c.position] {
		if c.position >= len(header) || header[c.position] == "" || !c.optional {
			return c.position
		}
	}
	return -1
}

func requiredNames(sc schema) []string {
	var names []string
	for _, c := range sc.columns {
		if !c.optional {
			names = append(names, c.name)
		}
	}
	return names
}

func firstNonBlank(rows [][]string, from int) int {
	for i := from; i < len(rows); i++ {
		if !blank(rows[i]) {
			return i
		}
	}
	return -1
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// CELL ACCESS
// =============================================================================

func (s *sheet) str(row []string, name string) string {
	i, ok := s.index[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (s *sheet) fail(name string) { s.failures[name]++ }

func (s *sheet) id(row []string) (vr.EmployeeID, bool) {
	n, ok := parseInt(s.str(row, colID))
	if !ok {
		s.fail(colID)
		return 0, false
	}
	return vr.EmployeeID(n), true
}

func (s *sheet) integer(row []string, name string) (int, bool) {
	n, ok := parseInt(s.str(row, name))
	if !ok {
		s.fail(name)
		return 0, false
	}
	return int(n), true
}

func (s *sheet) date(row []string, name string) time.Time {
	t, ok := parseDate(s.str(row, name))
	if !ok {
		s.fail(name)
	}
	return t
}

func (s *sheet) amount(row []string, name string) (decimal.Decimal, bool) {
	d, ok := parseDecimal(s.str(row, name))
	if !ok {
		s.fail(name)
	}
	return d, ok
}
