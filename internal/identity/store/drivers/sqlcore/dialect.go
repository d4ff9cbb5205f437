// Package sqlcore implements the store repositories once on database/sql.
// Drivers supply a Dialect and their own migrations.
package sqlcore

import (
	"context"
	"database/sql"
	"slices"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/streamtab/pkg/idx"
)

// Dialect captures what differs between the supported databases.
type Dialect struct {
	Name string

	// Numbered switches "?" placeholders to "$1, $2, ..." style.
	Numbered bool

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool
}

// Rebind rewrites "?" placeholders for the dialect. Queries in this package
// never contain literal question marks.
func (d Dialect) Rebind(q string) string {
	if !d.Numbered {
		return q
	}

	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db DBTX
	d  Dialect
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.d.Rebind(query), args...)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.d.Rebind(query), args...)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.d.Rebind(query), args...)
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// maxInArgs bounds the bind variables of one IN list. SQLite refuses more
// than 32766 per statement and postgres more than 65535.
const maxInArgs = 500

// inBatches calls fn once per batch of at most maxInArgs ids with the
// matching placeholder list and arguments.
func inBatches(ids []idx.ID, fn func(in string, args []any) error) error {
	for batch := range slices.Chunk(ids, maxInArgs) {
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		if err := fn(placeholders(len(batch)), args); err != nil {
			return err
		}
	}
	return nil
}
