// Package yamlconfig implements the "run <config file>"/"generate-config"
// YAML config file shape: a thin, serializable mirror of
// internal/etlconfig.Config with ${VAR_NAME} environment variable
// substitution applied to every user-facing string field.
package yamlconfig

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"tinyetl/internal/etlconfig"
	"tinyetl/internal/transform"
)

// SourceOrTargetConfig names a connection endpoint plus free-form
// connector options (e.g. CSV delimiter, credentials placeholders).
type SourceOrTargetConfig struct {
	URI     string            `yaml:"uri"`
	Options map[string]string `yaml:"options,omitempty"`
}

// TransformConfig mirrors transform.Config as the tagged "type"/"value"
// shape the YAML file uses, since transform.Config's three fields are
// mutually exclusive in practice but YAML has no native sum type.
type TransformConfig struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// OptionsConfig is the run-wide options block; every field is optional so
// a config file may set only what it needs to override.
type OptionsConfig struct {
	BatchSize    *int             `yaml:"batch_size,omitempty"`
	InferSchema  *bool            `yaml:"infer_schema,omitempty"`
	SchemaFile   *string          `yaml:"schema_file,omitempty"`
	Preview      *int             `yaml:"preview,omitempty"`
	DryRun       *bool            `yaml:"dry_run,omitempty"`
	LogLevel     *string          `yaml:"log_level,omitempty"`
	SkipExisting *bool            `yaml:"skip_existing,omitempty"`
	Truncate     *bool            `yaml:"truncate,omitempty"`
	Transform    *TransformConfig `yaml:"transform,omitempty"`
	SourceType   *string          `yaml:"source_type,omitempty"`
}

// Config is the root of a YAML config file, version 1.
type Config struct {
	Version uint32               `yaml:"version"`
	Source  SourceOrTargetConfig `yaml:"source"`
	Target  SourceOrTargetConfig `yaml:"target"`
	Options *OptionsConfig       `yaml:"options,omitempty"`
}

// FromFile reads and parses a YAML config file; it does not resolve env
// vars, that happens in IntoConfig.
func FromFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(content, &c); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &c, nil
}

// FromConfig mirrors a resolved etlconfig.Config back into the YAML
// shape, the form "generate-config" writes out.
func FromConfig(c etlconfig.Config) Config {
	opts := &OptionsConfig{
		BatchSize:    &c.BatchSize,
		InferSchema:  &c.InferSchema,
		Preview:      c.Preview,
		DryRun:       &c.DryRun,
		SkipExisting: &c.SkipExisting,
		Truncate:     &c.Truncate,
	}
	level := c.LogLevel.String()
	opts.LogLevel = &level

	if c.SchemaFile != "" {
		opts.SchemaFile = &c.SchemaFile
	}
	if c.SourceType != "" {
		opts.SourceType = &c.SourceType
	}
	if tc := transformConfigOf(c.Transform); tc != nil {
		opts.Transform = tc
	}

	return Config{
		Version: 1,
		Source:  SourceOrTargetConfig{URI: c.Source, Options: c.SourceOptions},
		Target:  SourceOrTargetConfig{URI: c.Target, Options: c.TargetOptions},
		Options: opts,
	}
}

func transformConfigOf(t transform.Config) *TransformConfig {
	switch {
	case t.File != "":
		return &TransformConfig{Type: "file", Value: t.File}
	case t.Inline != "":
		return &TransformConfig{Type: "inline", Value: t.Inline}
	case t.Script != "":
		return &TransformConfig{Type: "script", Value: t.Script}
	default:
		return nil
	}
}

// ToYAML serializes c to a YAML document.
func (c Config) ToYAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("serializing config to YAML: %w", err)
	}
	return string(out), nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces every ${VAR_NAME} occurrence in input with
// the named environment variable's value, failing if any named variable
// is unset.
func substituteEnvVars(input string) (string, error) {
	var firstErr error
	result := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := envVarPattern.FindStringSubmatch(match)[1]
		value, ok := os.LookupEnv(name)
		if !ok {
			firstErr = fmt.Errorf("environment variable %q not found", name)
			return match
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func substituteEnvVarsInMap(input map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := substituteEnvVars(v)
		if err != nil {
			return nil, err
		}
		out[k] = resolved
	}
	return out, nil
}

// IntoConfig resolves env var substitution across every string field and
// applies etlconfig.Default()'s fallbacks for anything options left unset.
func (c Config) IntoConfig() (etlconfig.Config, error) {
	sourceURI, err := substituteEnvVars(c.Source.URI)
	if err != nil {
		return etlconfig.Config{}, err
	}
	targetURI, err := substituteEnvVars(c.Target.URI)
	if err != nil {
		return etlconfig.Config{}, err
	}
	sourceOptions, err := substituteEnvVarsInMap(c.Source.Options)
	if err != nil {
		return etlconfig.Config{}, err
	}
	targetOptions, err := substituteEnvVarsInMap(c.Target.Options)
	if err != nil {
		return etlconfig.Config{}, err
	}

	opts := OptionsConfig{}
	if c.Options != nil {
		opts = *c.Options
	}

	result := etlconfig.Default()
	result.Source = sourceURI
	result.Target = targetURI
	result.SourceOptions = sourceOptions
	result.TargetOptions = targetOptions

	if opts.BatchSize != nil {
		result.BatchSize = *opts.BatchSize
	}
	if opts.InferSchema != nil {
		result.InferSchema = *opts.InferSchema
	}
	if opts.Preview != nil {
		result.Preview = opts.Preview
	}
	if opts.DryRun != nil {
		result.DryRun = *opts.DryRun
	}
	if opts.SkipExisting != nil {
		result.SkipExisting = *opts.SkipExisting
	}
	if opts.Truncate != nil {
		result.Truncate = *opts.Truncate
	}
	if opts.LogLevel != nil {
		resolved, err := substituteEnvVars(*opts.LogLevel)
		if err != nil {
			return etlconfig.Config{}, err
		}
		level, err := etlconfig.ParseLogLevel(resolved)
		if err != nil {
			return etlconfig.Config{}, err
		}
		result.LogLevel = level
	}

	if opts.SchemaFile != nil {
		resolved, err := substituteEnvVars(*opts.SchemaFile)
		if err != nil {
			return etlconfig.Config{}, err
		}
		result.SchemaFile = resolved
	}
	if opts.SourceType != nil {
		resolved, err := substituteEnvVars(*opts.SourceType)
		if err != nil {
			return etlconfig.Config{}, err
		}
		result.SourceType = resolved
	}
	if opts.Transform != nil {
		tc, err := resolveTransform(*opts.Transform)
		if err != nil {
			return etlconfig.Config{}, err
		}
		result.Transform = tc
	}

	return result, nil
}

func resolveTransform(tc TransformConfig) (transform.Config, error) {
	resolved, err := substituteEnvVars(tc.Value)
	if err != nil {
		return transform.Config{}, err
	}
	switch tc.Type {
	case "file":
		return transform.Config{File: resolved}, nil
	case "inline":
		return transform.Config{Inline: resolved}, nil
	case "script":
		return transform.Config{Script: resolved}, nil
	default:
		return transform.Config{}, fmt.Errorf("unknown transform type %q", tc.Type)
	}
}
