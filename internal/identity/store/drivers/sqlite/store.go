package sqlite

import (
	"database/sql"
	"errors"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/streamtab/internal/identity/store/drivers/sqlcore"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var Dialect = sqlcore.Dialect{
	Name:              "sqlite",
	IsUniqueViolation: isUniqueViolation,
}

// NewStore opens the database at dsn. Plain paths and ":memory:" are
// accepted as well as "file:" URIs. Foreign keys, a busy timeout and
// immediate transactions are switched on for every pooled connection.
func NewStore(dsn string) (*sqlcore.Store, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, err
	}

	// Every connection to a bare :memory: DSN is its own database.
	if isMemory(dsn) {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sqlcore.New(db, Dialect, applyMigrations), nil
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

func withPragmas(dsn string) string {
	base, query, _ := strings.Cut(dsn, "?")
	v, err := url.ParseQuery(query)
	if err != nil {
		v = url.Values{}
	}

	has := func(name string) bool {
		for _, p := range v["_pragma"] {
			if strings.HasPrefix(strings.ToLower(p), name) {
				return true
			}
		}
		return false
	}
	if !has("foreign_keys") {
		v.Add("_pragma", "foreign_keys(1)")
	}
	if !has("busy_timeout") {
		v.Add("_pragma", "busy_timeout(5000)")
	}
	if !isMemory(dsn) && !has("journal_mode") {
		v.Add("_pragma", "journal_mode(WAL)")
	}
	if v.Get("_txlock") == "" {
		v.Set("_txlock", "immediate")
	}

	if base != ":memory:" && !strings.HasPrefix(base, "file:") {
		base = "file:" + base
	}
	return base + "?" + v.Encode()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
