// Package config loads the YAML configuration of a bias-correction run.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/climatools/biascorrect/pkg/calendar"
)

// FileSpec names one gridded variable in a NetCDF file.
type FileSpec struct {
	Path     string `yaml:"path"`
	Variable string `yaml:"variable"`
}

// Period is a half-open date interval [Start, End), both in YYYY-MM-DD form.
type Period struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// IsZero reports whether the period was left unset.
func (p Period) IsZero() bool { return p.Start == "" && p.End == "" }

// Dates parses the period bounds.
func (p Period) Dates() (start, end calendar.Date, err error) {
	if start, err = parseDate(p.Start); err != nil {
		return
	}
	end, err = parseDate(p.End)
	return
}

func parseDate(s string) (calendar.Date, error) {
	var d calendar.Date
	if _, err := fmt.Sscanf(s, "%d-%d-%d", &d.Year, &d.Month, &d.Day); err != nil {
		return calendar.Date{}, fmt.Errorf("bad date %q: %w", s, err)
	}
	return d, nil
}

// Config is the complete configuration of a correction run.
type Config struct {
	Observation FileSpec   `yaml:"observation"`
	Model       FileSpec   `yaml:"model"`
	Scenarios   []FileSpec `yaml:"scenarios"`

	// Method is quantile_mapping or scaled_distribution_mapping.
	Method string `yaml:"method"`

	ReferencePeriod  Period `yaml:"reference_period,omitempty"`
	CorrectionPeriod Period `yaml:"correction_period,omitempty"`

	// Window is the half-width in days of the temporal window for day-based
	// methods (default 15).
	Window int `yaml:"window,omitempty"`

	// Method parameters; zero values select the method defaults.
	LowerLimit    float64 `yaml:"lower_limit,omitempty"`
	CDFThreshold  float64 `yaml:"cdf_threshold,omitempty"`
	MinSampleSize int     `yaml:"min_samplesize,omitempty"`

	// Strict turns an unsupported physical quantity into a hard error
	// instead of a logged pass-through.
	Strict bool `yaml:"strict,omitempty"`

	WorkDir       string `yaml:"work_dir"`
	Catalog       string `yaml:"catalog,omitempty"`
	SaveRegridded bool   `yaml:"save_regridded,omitempty"`
	Workers       int    `yaml:"workers,omitempty"`
	Debug         bool   `yaml:"debug,omitempty"`
}

// Load reads and validates a configuration file.
func Load(filename string) (*Config, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", filename, err)
	}
	return cfg, nil
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	for _, spec := range []struct {
		name string
		fs   FileSpec
	}{
		{"observation", c.Observation},
		{"model", c.Model},
	} {
		if spec.fs.Path == "" || spec.fs.Variable == "" {
			return fmt.Errorf("%s dataset needs both path and variable", spec.name)
		}
	}
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("at least one scenario dataset is required")
	}
	for i, s := range c.Scenarios {
		if s.Path == "" || s.Variable == "" {
			return fmt.Errorf("scenario %d needs both path and variable", i)
		}
	}

	switch c.Method {
	case "quantile_mapping", "scaled_distribution_mapping":
	case "":
		return fmt.Errorf("method is required")
	default:
		return fmt.Errorf("unknown method %q", c.Method)
	}

	for _, p := range []struct {
		name   string
		period Period
	}{
		{"reference_period", c.ReferencePeriod},
		{"correction_period", c.CorrectionPeriod},
	} {
		if p.period.IsZero() {
			continue
		}
		start, end, err := p.period.Dates()
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		if !before(start, end) {
			return fmt.Errorf("%s: start must precede end", p.name)
		}
	}

	if c.WorkDir == "" {
		return fmt.Errorf("work_dir is required")
	}
	return nil
}

func before(a, b calendar.Date) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	if a.Month != b.Month {
		return a.Month < b.Month
	}
	return a.Day < b.Day
}
