/*
Package config reads process settings from the environment.

Business rules (competency, cutoff, shares, input files) live in the YAML
rules file parsed by package factory. This package only covers where the
process listens, where it reads and writes, and how it logs.

ENVIRONMENT:
  VR_ADDR        HTTP listen address            (:8080)
  VR_DB_PATH     SQLite database file           (vr.db)
  VR_RULES_PATH  YAML rules file                (configs/rules.yaml)
  VR_INPUT_DIR   Overrides the rules input dir  ("")
  VR_OUTPUT_DIR  Overrides the rules output dir ("")
  VR_LOG_DIR     Overrides the rules log dir    ("")
  VR_LOG_LEVEL   panic..trace                   (info)
  VR_LOG_FORMAT  text or json                   (text)

Values from .env and .env.local are loaded first when those files exist.
Variables already set in the environment win.
*/
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DefaultEnvFiles are loaded by Load when present.
var DefaultEnvFiles = []string{".env", ".env.local"}

type Settings struct {
	Addr      string `env:"VR_ADDR" envDefault:":8080"`
	DBPath    string `env:"VR_DB_PATH" envDefault:"vr.db"`
	RulesPath string `env:"VR_RULES_PATH" envDefault:"configs/rules.yaml"`
	InputDir  string `env:"VR_INPUT_DIR"`
	OutputDir string `env:"VR_OUTPUT_DIR"`
	LogDir    string `env:"VR_LOG_DIR"`
	LogLevel  string `env:"VR_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"VR_LOG_FORMAT" envDefault:"text"`
}

// LoadEnv loads the env files that exist and returns how many were loaded.
func LoadEnv(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load seeds the environment from DefaultEnvFiles and parses Settings.
func Load() (*Settings, error) {
	if _, err := LoadEnv(DefaultEnvFiles); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	return Parse()
}

// Parse reads Settings from the current environment only.
func Parse() (*Settings, error) {
	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("VR_LOG_LEVEL: %w", err)
	}
	switch strings.ToLower(s.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("VR_LOG_FORMAT: must be text or json, got %q", s.LogFormat)
	}
	return nil
}

// Logger builds the technical logger described by the settings.
func (s *Settings) Logger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	if level, err := logrus.ParseLevel(s.LogLevel); err == nil {
		l.SetLevel(level)
	}
	if strings.EqualFold(s.LogFormat, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}
