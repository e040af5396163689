/*
Package factory provides YAML to Go rules conversion.

PURPOSE:
  Converts the rules file (business parameters, input file names, output
  locations and validation limits) into a vr.Config plus the settings the
  extractor and the report need. Payroll can change the cutoff day, the
  share split or the excluded roles without a code change.

YAML SCHEMA:
  competency: "2025-05"
  rules:
    cutoff_day: 15
    employer_share: "0.80"
    employee_share: "0.20"
    default_working_days: 22
    overseas_exclusion_keywords: [terminated, removed]
  exclusions:
    roles: [DIRETOR]
    leave_types: [Licença Maternidade]
  unions:
    aliases:
      "SINDPD SP - SIND.TRAB.EM PROC DADOS": "SP"
  inputs:
    dir: ./data/input
    files:
      ativos: ATIVOS.xlsx
      sindicato_valor: Base sindicato x valor.xlsx
      dias_uteis: Base dias uteis.xlsx
  output:
    dir: ./data/output
    workbook: VR_MENSAL_{competency}.xlsx
    exclusions: colaboradores_excluidos.xlsx
    summary_pdf: VR_RESUMO_{competency}.pdf
    log_dir: ./logs
  validation:
    workdays_min: 15
    workdays_max: 25

VALIDATION:
  Two layers. Struct tags checked with go-playground/validator (required
  keys, ranges, known categories), then vr.Config.Validate for the semantic
  rules (shares sum to 1). Both surface as *generic.ConfigError.

USAGE:
  rules, err := factory.LoadRules("config/rules.yaml")
  engine, err := vr.NewEngine(&rules.Config)

SEE ALSO:
  - vr/config.go: Config and its semantic validation
  - extract/extract.go: Consumes Inputs and Limits
  - configs/rules.yaml: Example rules file
*/
package factory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/benefit-engine/extract"
	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/vr"
)

// CompetencyPlaceholder is replaced by the competency slug (2025_05) in
// output file names.
const CompetencyPlaceholder = "{competency}"

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

// RulesFile is the YAML representation of the rules.
type RulesFile struct {
	Competency string         `yaml:"competency" json:"competency" validate:"required"`
	Rules      BusinessRules  `yaml:"rules" json:"rules"`
	Exclusions ExclusionsYAML `yaml:"exclusions" json:"exclusions"`
	Unions     UnionsYAML     `yaml:"unions" json:"unions"`
	Inputs     InputsYAML     `yaml:"inputs" json:"inputs"`
	Output     OutputYAML     `yaml:"output" json:"output"`
	Validation ValidationYAML `yaml:"validation" json:"validation"`
}

type BusinessRules struct {
	CutoffDay                 int      `yaml:"cutoff_day" json:"cutoff_day" validate:"min=1,max=31"`
	EmployerShare             string   `yaml:"employer_share" json:"employer_share" validate:"required,numeric"`
	EmployeeShare             string   `yaml:"employee_share" json:"employee_share" validate:"required,numeric"`
	DefaultWorkingDays        int      `yaml:"default_working_days" json:"default_working_days" validate:"gte=0,lte=31"`
	OverseasExclusionKeywords []string `yaml:"overseas_exclusion_keywords" json:"overseas_exclusion_keywords" validate:"dive,required"`
}

type ExclusionsYAML struct {
	Roles      []string `yaml:"roles" json:"roles" validate:"dive,required"`
	LeaveTypes []string `yaml:"leave_types" json:"leave_types" validate:"dive,required"`
}

type UnionsYAML struct {
	Aliases map[string]string `yaml:"aliases" json:"aliases" validate:"dive,keys,required,endkeys,required"`
}

type InputsYAML struct {
	Dir   string            `yaml:"dir" json:"dir" validate:"required"`
	Files map[string]string `yaml:"files" json:"files" validate:"required,dive,keys,category,endkeys,required"`
}

type OutputYAML struct {
	Dir        string `yaml:"dir" json:"dir" validate:"required"`
	Workbook   string `yaml:"workbook" json:"workbook" validate:"required"`
	Exclusions string `yaml:"exclusions" json:"exclusions"`
	SummaryPDF string `yaml:"summary_pdf" json:"summary_pdf"`
	LogDir     string `yaml:"log_dir" json:"log_dir"`
}

type ValidationYAML struct {
	WorkdaysMin int `yaml:"workdays_min" json:"workdays_min" validate:"gte=0"`
	WorkdaysMax int `yaml:"workdays_max" json:"workdays_max" validate:"gtefield=WorkdaysMin"`
}

// =============================================================================
// RULES - Parsed, validated form
// =============================================================================

// Rules is everything a run needs besides the source data.
type Rules struct {
	Config vr.Config
	Inputs Inputs
	Output OutputSpec
	Limits extract.Limits
}

// Inputs locates the source spreadsheets.
type Inputs struct {
	Dir   string
	Files map[vr.Category]string
}

// Path returns the full path of the file configured for c, or "" when the
// category has no file.
func (in Inputs) Path(c vr.Category) string {
	name, ok := in.Files[c]
	if !ok || name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(in.Dir, name)
}

// OutputSpec locates the files a run writes. Empty names disable an output.
type OutputSpec struct {
	Dir        string
	Workbook   string
	Exclusions string
	SummaryPDF string
	LogDir     string
}

func (o OutputSpec) path(name string, c generic.Competency) string {
	if name == "" {
		return ""
	}
	return filepath.Join(o.Dir, strings.ReplaceAll(name, CompetencyPlaceholder, c.Slug()))
}

func (o OutputSpec) WorkbookPath(c generic.Competency) string   { return o.path(o.Workbook, c) }
func (o OutputSpec) ExclusionsPath(c generic.Competency) string { return o.path(o.Exclusions, c) }
func (o OutputSpec) SummaryPDFPath(c generic.Competency) string { return o.path(o.SummaryPDF, c) }

// ApplyOverrides replaces the input, output and log directories with the
// non-empty arguments.
func (r *Rules) ApplyOverrides(inputDir, outputDir, logDir string) {
	if inputDir != "" {
		r.Inputs.Dir = inputDir
	}
	if outputDir != "" {
		r.Output.Dir = outputDir
	}
	if logDir != "" {
		r.Output.LogDir = logDir
	}
}

// =============================================================================
// LOADING
// =============================================================================

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return isCategory(fl.Field().String())
	})
	return v
}

func isCategory(s string) bool {
	for _, c := range vr.Categories {
		if string(c) == s {
			return true
		}
	}
	return false
}

// LoadRules reads and parses a rules file. Relative input/output
// directories are resolved against the file's directory.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	rules.Inputs.Dir = resolve(base, rules.Inputs.Dir)
	rules.Output.Dir = resolve(base, rules.Output.Dir)
	if rules.Output.LogDir != "" {
		rules.Output.LogDir = resolve(base, rules.Output.LogDir)
	}
	return rules, nil
}

// ParseRules parses YAML rules.
func ParseRules(data []byte) (*Rules, error) {
	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, &generic.ConfigError{Field: "rules file", Reason: err.Error()}
	}
	return FromYAML(rf)
}

// FromYAML validates rf and converts it.
func FromYAML(rf RulesFile) (*Rules, error) {
	applyDefaults(&rf)

	if err := validate.Struct(rf); err != nil {
		return nil, toConfigError(err)
	}

	competency, err := generic.ParseCompetency(rf.Competency)
	if err != nil {
		return nil, &generic.ConfigError{Field: "competency", Reason: err.Error()}
	}

	files := make(map[vr.Category]string, len(rf.Inputs.Files))
	for k, v := range rf.Inputs.Files {
		files[vr.Category(k)] = v
	}
	for _, c := range vr.MandatoryCategories {
		if files[c] == "" {
			return nil, &generic.ConfigError{Field: "inputs.files." + string(c), Reason: "mandatory input not configured"}
		}
	}

	employerShare, err := parseShare("rules.employer_share", rf.Rules.EmployerShare)
	if err != nil {
		return nil, err
	}
	employeeShare, err := parseShare("rules.employee_share", rf.Rules.EmployeeShare)
	if err != nil {
		return nil, err
	}

	cfg := vr.Config{
		Competency:                competency,
		CutoffDay:                 rf.Rules.CutoffDay,
		ExcludedRoles:             rf.Exclusions.Roles,
		ExcludedLeaveTypes:        rf.Exclusions.LeaveTypes,
		EmployerShare:             employerShare,
		EmployeeShare:             employeeShare,
		UnionAliases:              rf.Unions.Aliases,
		OverseasExclusionKeywords: rf.Rules.OverseasExclusionKeywords,
		DefaultWorkingDays:        rf.Rules.DefaultWorkingDays,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Rules{
		Config: cfg,
		Inputs: Inputs{Dir: rf.Inputs.Dir, Files: files},
		Output: OutputSpec{
			Dir:        rf.Output.Dir,
			Workbook:   rf.Output.Workbook,
			Exclusions: rf.Output.Exclusions,
			SummaryPDF: rf.Output.SummaryPDF,
			LogDir:     rf.Output.LogDir,
		},
		Limits: extract.Limits{
			WorkdaysMin: rf.Validation.WorkdaysMin,
			WorkdaysMax: rf.Validation.WorkdaysMax,
		},
	}, nil
}

// ToYAML converts rules back to their file representation.
func ToYAML(r *Rules) RulesFile {
	files := make(map[string]string, len(r.Inputs.Files))
	for k, v := range r.Inputs.Files {
		files[string(k)] = v
	}
	return RulesFile{
		Competency: r.Config.Competency.String(),
		Rules: BusinessRules{
			CutoffDay:                 r.Config.CutoffDay,
			EmployerShare:             r.Config.EmployerShare.String(),
			EmployeeShare:             r.Config.EmployeeShare.String(),
			DefaultWorkingDays:        r.Config.DefaultWorkingDays,
			OverseasExclusionKeywords: r.Config.OverseasExclusionKeywords,
		},
		Exclusions: ExclusionsYAML{Roles: r.Config.ExcludedRoles, LeaveTypes: r.Config.ExcludedLeaveTypes},
		Unions:     UnionsYAML{Aliases: r.Config.UnionAliases},
		Inputs:     InputsYAML{Dir: r.Inputs.Dir, Files: files},
		Output: OutputYAML{
			Dir:        r.Output.Dir,
			Workbook:   r.Output.Workbook,
			Exclusions: r.Output.Exclusions,
			SummaryPDF: r.Output.SummaryPDF,
			LogDir:     r.Output.LogDir,
		},
		Validation: ValidationYAML{WorkdaysMin: r.Limits.WorkdaysMin, WorkdaysMax: r.Limits.WorkdaysMax},
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func applyDefaults(rf *RulesFile) {
	if rf.Rules.CutoffDay == 0 {
		rf.Rules.CutoffDay = 15
	}
	if rf.Rules.DefaultWorkingDays == 0 {
		rf.Rules.DefaultWorkingDays = vr.DefaultWorkingDays
	}
	if rf.Rules.OverseasExclusionKeywords == nil {
		rf.Rules.OverseasExclusionKeywords = append([]string(nil), vr.DefaultOverseasKeywords...)
	}
	if rf.Output.Workbook == "" {
		rf.Output.Workbook = "VR_MENSAL_" + CompetencyPlaceholder + ".xlsx"
	}
	if rf.Validation.WorkdaysMax == 0 {
		rf.Validation.WorkdaysMax = 31
	}
}

func parseShare(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(s), "+"))
	if err != nil {
		return decimal.Zero, &generic.ConfigError{Field: field, Reason: "not a decimal"}
	}
	return d, nil
}

func toConfigError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &generic.ConfigError{
			Field:  yamlPath(fe.Namespace()),
			Reason: fmt.Sprintf("failed %q check (value %v)", fe.Tag(), fe.Value()),
		}
	}
	return &generic.ConfigError{Field: "rules file", Reason: err.Error()}
}

// yamlPath turns "RulesFile.Rules.CutoffDay" into "rules.cutoff_day".
func yamlPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] != '[' {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func resolve(base, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}
