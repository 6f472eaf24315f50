// Package connectors defines the Source and Target capability contracts
// every endpoint adapter implements, plus the descriptor-driven factory
// that builds them.
package connectors

import (
	"context"

	"tinyetl/internal/rowschema"
)

// Source is the capability contract implemented by each endpoint family's
// reader. Suspension points (connect, InferSchema, ReadBatch,
// EstimatedRowCount, Reset) are the only operations that may block; HasMore
// is a synchronous snapshot predicate.
type Source interface {
	// Connect opens the endpoint and seeks it to its logical start.
	Connect(ctx context.Context) error

	// InferSchema reads up to sampleSize rows and returns the Schema they
	// imply. It may update the source's cached total row count.
	InferSchema(ctx context.Context, sampleSize int) (rowschema.Schema, error)

	// ReadBatch returns at most batchSize rows in source order; an empty
	// result means the stream is exhausted.
	ReadBatch(ctx context.Context, batchSize int) ([]rowschema.Row, error)

	// EstimatedRowCount returns an advisory total, used only for progress.
	EstimatedRowCount(ctx context.Context) (*int, error)

	// Reset repositions the stream to the position Connect established.
	Reset(ctx context.Context) error

	// HasMore is a conservative hint: false guarantees the next ReadBatch
	// is empty, but true is not a guarantee of the opposite. Callers must
	// terminate on an empty returned batch regardless.
	HasMore() bool
}

// Target is the capability contract implemented by each endpoint family's
// writer.
type Target interface {
	// Connect opens the endpoint for writing; parent directories for file
	// targets are created.
	Connect(ctx context.Context) error

	// Exists reports whether tableName is already present.
	Exists(ctx context.Context, tableName string) (bool, error)

	// Truncate empties tableName so it contains no rows.
	Truncate(ctx context.Context, tableName string) error

	// CreateTable ensures tableName accepts rows conforming to schema.
	// Idempotent if the table already exists with a compatible schema.
	CreateTable(ctx context.Context, tableName string, schema rowschema.Schema) error

	// WriteBatch durably accepts rows, all-or-nothing, and returns the
	// number of rows accepted.
	WriteBatch(ctx context.Context, rows []rowschema.Row) (int, error)

	// Finalize flushes any buffered data so it is visible on the endpoint.
	Finalize(ctx context.Context) error

	// SupportsAppend reports whether CreateTable+WriteBatch on an existing
	// non-empty target appends rather than requiring a prior Truncate.
	SupportsAppend() bool
}
