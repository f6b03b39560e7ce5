package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/haasr/batch-grades-processing/internal/grades"
)

// Config file names searched in the working directory when no explicit
// path is given.
const (
	ConfigFileName    = "gradepipe.yaml"
	ConfigFileNameAlt = "gradepipe.yml"
)

const envPrefix = "GRADEPIPE_"

var semesterPattern = regexp.MustCompile(`^\d{4}(10|50|80)$`)

// findConfigFile finds the config file to use.
// Priority: explicit path > gradepipe.yaml > gradepipe.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	if _, err := os.Stat(ConfigFileNameAlt); err == nil {
		return ConfigFileNameAlt
	}
	return ""
}

// Load builds the runtime configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults.
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"database":               DefaultDatabase,
		"exports_dir":            DefaultExportsDir,
		"workers":                DefaultWorkers,
		"semester":               "",
		"labels.lab_assignments": DefaultLabAssignmentsLabel,
		"labels.final_project":   DefaultFinalProjectLabel,
		"labels.quizzes":         DefaultQuizzesLabel,
		"labels.exit_tickets":    DefaultExitTicketsLabel,
		"verbose":                false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file, when one exists.
	if path := findConfigFile(cfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// 3. Environment variables.
	// Transform: GRADEPIPE_LABELS_FINAL_PROJECT -> labels.final_project
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		if rest, ok := strings.CutPrefix(key, "labels_"); ok {
			return "labels." + rest
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set.
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.Semester == "" {
		cfg.Semester = grades.SemesterFor(time.Now())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values that would make a run
// misbehave silently.
func (c *Config) Validate() error {
	if !semesterPattern.MatchString(c.Semester) {
		return fmt.Errorf("invalid semester %q: want 4-digit year followed by term code 10, 50, or 80", c.Semester)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Database == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if strings.TrimSpace(c.Labels.FinalProject) == "" {
		return fmt.Errorf("final project label must not be empty")
	}
	return nil
}
