// Package pgsink persists import chunks into a single PostgreSQL table.
// Each chunk maps to one pgx transaction: Begin opens it, Persist inserts
// one row per call, Commit/Rollback close it. Every insert runs inside its
// own SAVEPOINT so a failed row does not poison the transaction when the
// engine's skip-on-error policy decides to continue with the chunk.
package pgsink

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bulkrow/bulkrow/internal/importer"
)

// DB is the subset of pgxpool.Pool the sink needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ColumnType selects the pgtype conversion applied to a cell before insert.
type ColumnType string

const (
	TypeText    ColumnType = "text"
	TypeDate    ColumnType = "date"
	TypeNumeric ColumnType = "numeric"
	TypeBool    ColumnType = "bool"
)

// Column maps one source attribute to a destination column.
type Column struct {
	// Name is the database column.
	Name string `json:"name"`
	// Attribute is the source column reference: a heading-derived name or a
	// stringified index. Defaults to Name when empty.
	Attribute string `json:"attribute,omitempty"`
	// Type selects the cell conversion. Defaults to text.
	Type ColumnType `json:"type,omitempty"`
}

// identRegex accepts plain SQL identifiers; anything else is rejected up
// front rather than quoted into existence.
var identRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Sink writes rows into one table. Implements importer.Sink.
type Sink struct {
	db        DB
	table     string
	columns   []Column
	insertSQL string
}

// New builds a sink for the given table and column mapping.
func New(db DB, table string, columns []Column) (*Sink, error) {
	if !identRegex.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q: no columns configured", table)
	}

	names := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i := range columns {
		if !identRegex.MatchString(columns[i].Name) {
			return nil, fmt.Errorf("invalid column name %q", columns[i].Name)
		}
		if columns[i].Attribute == "" {
			columns[i].Attribute = columns[i].Name
		}
		if columns[i].Type == "" {
			columns[i].Type = TypeText
		}
		names[i] = quoteIdentifier(columns[i].Name)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	return &Sink{
		db:      db,
		table:   table,
		columns: columns,
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdentifier(table),
			strings.Join(names, ", "),
			strings.Join(placeholders, ", "),
		),
	}, nil
}

// Begin opens the transaction for one chunk.
func (s *Sink) Begin(ctx context.Context) (importer.TxScope, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &txScope{sink: s, tx: tx}, nil
}

type txScope struct {
	sink *Sink
	tx   pgx.Tx
	n    int
}

// Persist inserts one row. The insert runs under a savepoint; on error the
// savepoint is rolled back so the transaction stays usable and the engine
// can skip the row or roll back the whole chunk.
func (t *txScope) Persist(ctx context.Context, row importer.Row, attrs *importer.AttributeMap) error {
	args := make([]any, len(t.sink.columns))
	for i, col := range t.sink.columns {
		value := ""
		if idx, ok := attrs.Index(col.Attribute); ok {
			value = row.Cell(idx)
		}
		args[i] = convertCell(value, col.Type)
	}

	sp := fmt.Sprintf("sp_%d", t.n)
	t.n++
	if _, err := t.tx.Exec(ctx, "SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}

	if _, err := t.tx.Exec(ctx, t.sink.insertSQL, args...); err != nil {
		if _, rbErr := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return fmt.Errorf("rollback savepoint after insert error %v: %w", err, rbErr)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return fmt.Errorf("insert into %s: %s (SQLSTATE %s)", t.sink.table, pgErr.Message, pgErr.Code)
		}
		return fmt.Errorf("insert into %s: %w", t.sink.table, err)
	}

	if _, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *txScope) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *txScope) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return err
	}
	return nil
}

// convertCell applies the column's pgtype conversion. Unparseable values
// become invalid pgtypes and reach the database as NULL; the engine's
// validation rules are the place to reject them instead.
func convertCell(value string, typ ColumnType) any {
	switch typ {
	case TypeDate:
		return ToDate(value)
	case TypeNumeric:
		return ToNumeric(value)
	case TypeBool:
		return ToBool(value)
	default:
		return ToText(value)
	}
}

// quoteIdentifier double-quotes an identifier for SQL interpolation.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
