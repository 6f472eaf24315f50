// Command tinyetl moves rows between a source and a target: files,
// databases, or objects reachable over http(s)/ssh, with an optional Lua
// transform step in between.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tinyetl/internal/connectors/factory"
	"tinyetl/internal/engine"
	"tinyetl/internal/etlconfig"
	"tinyetl/internal/obslog"
	"tinyetl/internal/secrets"
	"tinyetl/internal/transform"
	"tinyetl/internal/yamlconfig"
)

type directFlags struct {
	inferSchema    bool
	schemaFile     string
	batchSize      int
	preview        int
	previewSet     bool
	dryRun         bool
	logLevel       string
	skipExisting   bool
	truncate       bool
	transformFile  string
	transformExpr  string
	sourceType     string
	sourceSecretID string
	destSecretID   string
}

func (f *directFlags) register(fs cobraFlagSet) {
	fs.BoolVar(&f.inferSchema, "infer-schema", true, "Auto-detect columns and types (the source is always sampled; false has no effect on a run)")
	fs.StringVar(&f.schemaFile, "schema-file", "", "Path to schema file (YAML) to override auto-detection")
	fs.IntVar(&f.batchSize, "batch-size", 10_000, "Number of rows per batch")
	fs.IntVar(&f.preview, "preview", 0, "Show first N rows and inferred schema without copying")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Validate source/target without transferring data")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level: info, warn, error")
	fs.BoolVar(&f.skipExisting, "skip-existing", false, "Skip transfer if the target table already exists")
	fs.BoolVar(&f.truncate, "truncate", false, "Truncate target before writing")
	fs.StringVar(&f.transformFile, "transform-file", "", "Path to Lua file containing a 'transform' function")
	fs.StringVar(&f.transformExpr, "transform", "", "Inline transformation expressions (semicolon-separated)")
	fs.StringVar(&f.sourceType, "source-type", "", "Source file type (csv, json, parquet); saved in generated configs, not used to select the source connector")
	fs.StringVar(&f.sourceSecretID, "source-secret-id", "", "Secret ID for source password (resolves to TINYETL_SECRET_{id})")
	fs.StringVar(&f.destSecretID, "dest-secret-id", "", "Secret ID for destination password (resolves to TINYETL_SECRET_{id})")
}

// cobraFlagSet is the subset of *pflag.FlagSet used above, narrowed so
// register can be shared between the root command and generate-config.
type cobraFlagSet interface {
	BoolVar(p *bool, name string, value bool, usage string)
	StringVar(p *string, name string, value string, usage string)
	IntVar(p *int, name string, value int, usage string)
}

func (f *directFlags) toTransformConfig() (transform.Config, error) {
	switch {
	case f.transformFile != "" && f.transformExpr != "":
		fmt.Fprintln(os.Stderr, "warning: both --transform-file and --transform specified, using --transform-file")
		return transform.Config{File: f.transformFile}, nil
	case f.transformFile != "":
		return transform.Config{File: f.transformFile}, nil
	case f.transformExpr != "":
		return transform.Config{Inline: f.transformExpr}, nil
	default:
		return transform.Config{}, nil
	}
}

func (f *directFlags) toConfig(source, target string) (etlconfig.Config, error) {
	level, err := etlconfig.ParseLogLevel(f.logLevel)
	if err != nil {
		return etlconfig.Config{}, err
	}
	tc, err := f.toTransformConfig()
	if err != nil {
		return etlconfig.Config{}, err
	}

	c := etlconfig.Default()
	c.Source = source
	c.Target = target
	c.InferSchema = f.inferSchema
	c.SchemaFile = f.schemaFile
	c.BatchSize = f.batchSize
	c.DryRun = f.dryRun
	c.LogLevel = level
	c.SkipExisting = f.skipExisting
	c.Truncate = f.truncate
	c.Transform = tc
	c.SourceType = f.sourceType
	c.SourceSecretID = f.sourceSecretID
	c.DestSecretID = f.destSecretID
	if f.previewSet {
		preview := f.preview
		c.Preview = &preview
	}
	return c, nil
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags directFlags

	rootCmd := &cobra.Command{
		Use:     "tinyetl [source] [target]",
		Short:   "A tiny ETL tool for moving data between sources",
		Version: "0.1.0",
		Args:    cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return cmd.Help()
			}
			flags.previewSet = cmd.Flags().Changed("preview")
			config, err := flags.toConfig(args[0], args[1])
			if err != nil {
				return err
			}
			return runTransfer(cmd.Context(), config)
		},
	}
	flags.register(rootCmd.Flags())

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newGenerateDefaultConfigCmd())
	rootCmd.AddCommand(newGenerateConfigCmd())

	return rootCmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <config_file>",
		Short: "Run a job from a YAML configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yamlCfg, err := yamlconfig.FromFile(args[0])
			if err != nil {
				return err
			}
			config, err := yamlCfg.IntoConfig()
			if err != nil {
				return err
			}
			return runTransfer(cmd.Context(), config)
		},
	}
}

func newGenerateDefaultConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-default-config",
		Short: "Generate a default YAML configuration example and print it to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := etlconfig.Default()
			config.Source = "employees.csv"
			config.Target = "employees_output.json"
			yamlCfg := yamlconfig.FromConfig(config)
			out, err := yamlCfg.ToYAML()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

func newGenerateConfigCmd() *cobra.Command {
	var flags directFlags

	cmd := &cobra.Command{
		Use:   "generate-config <source> <target>",
		Short: "Generate a YAML configuration file from CLI arguments and print it to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.previewSet = cmd.Flags().Changed("preview")
			config, err := flags.toConfig(args[0], args[1])
			if err != nil {
				return err
			}
			yamlCfg := yamlconfig.FromConfig(config)
			out, err := yamlCfg.ToYAML()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func runTransfer(ctx context.Context, config etlconfig.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := obslog.New(obslog.ParseLevel(config.LogLevel.String()), os.Stderr)

	source, err := secrets.ProcessConnectionString(logger, config.Source, config.SourceSecretID, "source")
	if err != nil {
		return err
	}
	config.Source = source

	target, err := secrets.ProcessConnectionString(logger, config.Target, config.DestSecretID, "target")
	if err != nil {
		return err
	}
	config.Target = target

	src, cleanup, err := factory.CreateSource(ctx, config.Source)
	if err != nil {
		return err
	}
	defer cleanup()

	tgt, err := factory.CreateTarget(ctx, config.Target)
	if err != nil {
		return err
	}

	eng := engine.New(config, logger, os.Stdout)
	stats, err := eng.Execute(ctx, src, tgt)
	if err != nil {
		logger.Error("transfer failed", "error", err)
		return err
	}

	if config.Preview == nil && !config.DryRun {
		logger.Info("transfer completed successfully",
			"rows", stats.TotalRows,
			"seconds", stats.TotalTime.Seconds(),
			"rows_per_sec", stats.RowsPerSecond,
		)
	}
	return nil
}
