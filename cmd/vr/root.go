package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/warp/benefit-engine/config"
	"github.com/warp/benefit-engine/factory"
	"github.com/warp/benefit-engine/pipeline"
	"github.com/warp/benefit-engine/store/sqlite"
)

// app carries the settings shared by every subcommand.
type app struct {
	settings *config.Settings
	log      *logrus.Logger
}

func newRootCmd(settings *config.Settings) *cobra.Command {
	a := &app{settings: settings}

	cmd := &cobra.Command{
		Use:           "vr",
		Short:         "Monthly meal-voucher (VR) calculation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.settings.Validate(); err != nil {
				return err
			}
			a.log = a.settings.Logger(cmd.ErrOrStderr())
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&settings.RulesPath, "rules", settings.RulesPath, "YAML rules file")
	flags.StringVar(&settings.DBPath, "db", settings.DBPath, "SQLite database path")
	flags.StringVar(&settings.InputDir, "input", settings.InputDir, "Input directory (overrides rules)")
	flags.StringVar(&settings.OutputDir, "output", settings.OutputDir, "Output directory (overrides rules)")
	flags.StringVar(&settings.LogDir, "log-dir", settings.LogDir, "Audit log directory (overrides rules)")
	flags.StringVar(&settings.LogLevel, "log-level", settings.LogLevel, "Log level")

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newValidateCmd(a))
	cmd.AddCommand(newIntegrityCmd(a))
	cmd.AddCommand(newShowCmd(a))
	return cmd
}

func (a *app) rules() (*factory.Rules, error) {
	rules, err := factory.LoadRules(a.settings.RulesPath)
	if err != nil {
		return nil, err
	}
	rules.ApplyOverrides(a.settings.InputDir, a.settings.OutputDir, a.settings.LogDir)
	return rules, nil
}

func (a *app) pipeline(opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	rules, err := a.rules()
	if err != nil {
		return nil, err
	}
	return pipeline.New(rules, append([]pipeline.Option{pipeline.WithLogger(a.log)}, opts...)...), nil
}

func (a *app) store() (*sqlite.Store, error) {
	return sqlite.New(a.settings.DBPath)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	settings, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load settings: %v", err)
	}
	if err := newRootCmd(settings).Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
