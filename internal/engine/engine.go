// Package engine implements the transfer engine: the orchestration that
// connects a Source and Target, infers or loads a schema, and drives the
// read/transform/write loop between them.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"tinyetl/internal/connectors"
	"tinyetl/internal/etlconfig"
	"tinyetl/internal/rowschema"
	"tinyetl/internal/schemafile"
	"tinyetl/internal/tetlerr"
	"tinyetl/internal/transform"
)

// Stats summarizes a completed (non-preview, non-dry-run) transfer.
type Stats struct {
	TotalRows        int
	TotalTime        time.Duration
	RowsPerSecond    float64
	BatchesProcessed int
}

// Engine drives one transfer run end to end.
type Engine struct {
	config etlconfig.Config
	logger *slog.Logger
	out    io.Writer
}

// New builds an Engine. out receives the preview table/schema rendering;
// logger receives progress and warnings.
func New(config etlconfig.Config, logger *slog.Logger, out io.Writer) *Engine {
	if out == nil {
		out = io.Discard
	}
	return &Engine{config: config, logger: logger, out: out}
}

// Execute runs the full transfer sequence: connect, infer or load schema,
// short-circuit for preview/dry-run, then create the target table and
// stream batches through the optional schema-file validator and
// transformer until the source is exhausted.
func (e *Engine) Execute(ctx context.Context, source connectors.Source, target connectors.Target) (Stats, error) {
	start := time.Now()

	e.logger.Info("connecting to source", "source", e.config.Source)
	if err := source.Connect(ctx); err != nil {
		return Stats{}, tetlerr.Wrap(tetlerr.Connection, err, "connecting to source")
	}

	e.logger.Info("connecting to target", "target", e.config.Target)
	if err := target.Connect(ctx); err != nil {
		return Stats{}, tetlerr.Wrap(tetlerr.Connection, err, "connecting to target")
	}

	e.logger.Info("inferring schema")
	schema, err := source.InferSchema(ctx, 1000)
	if err != nil {
		return Stats{}, tetlerr.Wrap(tetlerr.SchemaInference, err, "inferring schema")
	}

	var sf *schemafile.File
	if e.config.SchemaFile != "" {
		sf, err = schemafile.Load(e.config.SchemaFile)
		if err != nil {
			return Stats{}, err
		}
		schema = sf.ToSchema()
	}
	e.logger.Info("schema resolved", "columns", len(schema.Columns))

	if e.config.Preview != nil {
		return e.handlePreview(ctx, source, schema, *e.config.Preview)
	}

	if e.config.DryRun {
		return e.handleDryRun(ctx, source, target, schema)
	}

	tableName := ExtractTableName(e.config.Target)

	exists, err := target.Exists(ctx, tableName)
	if err != nil {
		return Stats{}, tetlerr.Wrap(tetlerr.Connection, err, "checking whether target table %s exists", tableName)
	}
	if exists && e.config.SkipExisting {
		e.logger.Info("target table already exists, skipping transfer", "table", tableName)
		return Stats{}, nil
	}
	if exists && e.config.Truncate {
		e.logger.Info("truncating target table", "table", tableName)
		if err := target.Truncate(ctx, tableName); err != nil {
			return Stats{}, tetlerr.Wrap(tetlerr.DataTransfer, err, "truncating target table %s", tableName)
		}
	}

	e.logger.Info("creating target table", "table", tableName)
	if err := target.CreateTable(ctx, tableName, schema); err != nil {
		return Stats{}, tetlerr.Wrap(tetlerr.DataTransfer, err, "creating target table %s", tableName)
	}

	transformer, err := transform.New(e.config.Transform)
	if err != nil {
		return Stats{}, err
	}
	defer transformer.Close()

	estimatedRows := 0
	if n, err := source.EstimatedRowCount(ctx); err == nil && n != nil {
		estimatedRows = *n
	}
	e.logger.Info("copying rows", "estimated", estimatedRows)

	if err := source.Reset(ctx); err != nil {
		return Stats{}, tetlerr.Wrap(tetlerr.Connection, err, "resetting source")
	}

	totalRows := 0
	batchesProcessed := 0

	for source.HasMore() {
		batch, err := source.ReadBatch(ctx, e.config.BatchSize)
		if err != nil {
			return Stats{}, tetlerr.Wrap(tetlerr.DataTransfer, err, "reading batch %d", batchesProcessed+1)
		}
		if len(batch) == 0 {
			break
		}

		if sf != nil {
			for _, row := range batch {
				if err := sf.ValidateAndTransformRow(row); err != nil {
					return Stats{}, err
				}
			}
		}

		batch, err = transformer.TransformBatch(batch)
		if err != nil {
			return Stats{}, err
		}
		if len(batch) == 0 {
			continue
		}

		written, err := target.WriteBatch(ctx, batch)
		if err != nil {
			return Stats{}, tetlerr.Wrap(tetlerr.DataTransfer, err, "writing batch %d", batchesProcessed+1)
		}

		totalRows += written
		batchesProcessed++
		e.logger.Info("batch written", "batch", batchesProcessed, "rows", written, "total_rows", totalRows)
	}

	if err := target.Finalize(ctx); err != nil {
		return Stats{}, tetlerr.Wrap(tetlerr.DataTransfer, err, "finalizing target")
	}

	totalTime := time.Since(start)
	rowsPerSecond := 0.0
	if totalTime.Seconds() > 0 {
		rowsPerSecond = float64(totalRows) / totalTime.Seconds()
	}

	e.logger.Info("transfer complete", "rows", totalRows, "duration", totalTime, "rows_per_sec", rowsPerSecond)

	return Stats{
		TotalRows:        totalRows,
		TotalTime:        totalTime,
		RowsPerSecond:    rowsPerSecond,
		BatchesProcessed: batchesProcessed,
	}, nil
}

func (e *Engine) handlePreview(ctx context.Context, source connectors.Source, schema rowschema.Schema, previewRows int) (Stats, error) {
	e.printSchema(schema)

	if err := source.Reset(ctx); err != nil {
		return Stats{}, tetlerr.Wrap(tetlerr.Connection, err, "resetting source")
	}
	rows, err := source.ReadBatch(ctx, previewRows)
	if err != nil {
		return Stats{}, tetlerr.Wrap(tetlerr.DataTransfer, err, "reading preview rows")
	}
	e.printRows(schema, rows)

	return Stats{}, nil
}

func (e *Engine) handleDryRun(ctx context.Context, source connectors.Source, target connectors.Target, schema rowschema.Schema) (Stats, error) {
	e.logger.Info("dry run: validating connections and schema")

	estimatedRows := 0
	if n, err := source.EstimatedRowCount(ctx); err == nil && n != nil {
		estimatedRows = *n
	}
	e.logger.Info("source connection validated", "columns", len(schema.Columns), "estimated_rows", estimatedRows)

	tableName := ExtractTableName(e.config.Target)
	exists, err := target.Exists(ctx, tableName)
	if err != nil {
		return Stats{}, tetlerr.Wrap(tetlerr.Connection, err, "checking whether target table %s exists", tableName)
	}
	if exists {
		e.logger.Warn("target table already exists", "table", tableName)
	} else {
		e.logger.Info("target table will be created", "table", tableName)
	}

	e.logger.Info("dry run completed successfully")
	return Stats{}, nil
}

func (e *Engine) printSchema(schema rowschema.Schema) {
	fmt.Fprintln(e.out, "\nSchema Preview:")
	for _, col := range schema.Columns {
		fmt.Fprintf(e.out, "  %-20s %-10s nullable=%v\n", col.Name, col.DataType, col.Nullable)
	}
}

func (e *Engine) printRows(schema rowschema.Schema, rows []rowschema.Row) {
	fmt.Fprintf(e.out, "\nData Preview (%d rows):\n", len(rows))
	if len(rows) == 0 {
		return
	}
	names := schema.Names()
	for _, name := range names {
		fmt.Fprintf(e.out, "%-17s", name)
	}
	fmt.Fprintln(e.out)
	for _, row := range rows {
		for _, name := range names {
			s, ok := row.Get(name).ToStringForArrow()
			if !ok {
				s = "NULL"
			}
			fmt.Fprintf(e.out, "%-17s", truncate(s, 15))
		}
		fmt.Fprintln(e.out)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ExtractTableName derives a target's table name: a "#fragment" suffix
// wins, otherwise the file stem of the path, otherwise "data".
func ExtractTableName(target string) string {
	if idx := strings.Index(target, "#"); idx >= 0 {
		fragment := target[idx+1:]
		if fragment != "" {
			return fragment
		}
		return "data"
	}

	base := filepath.Base(target)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" || stem == "." || stem == "/" {
		return "data"
	}
	return stem
}
