package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DrSkyle/bridgestore/pkg/datastore"
	qb "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

const sqliteMigration = `CREATE TABLE IF NOT EXISTS objects (
    key         TEXT    NOT NULL,
    value       BLOB    NOT NULL,
    PRIMARY KEY (key)
) STRICT;`

// SQLiteStore keeps objects in a single table of a local SQLite database.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path. It reports
// ok == false when path is empty; err is set only when a configured database
// cannot be opened.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, bool, error) {
	if path == "" {
		return nil, false, nil
	}
	o := buildOptions(opts)

	dsn := fmt.Sprintf("file:%s?_journal=wal&_timeout=5000", path)
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, true, normalizeSQLiteError(err)
	}

	if _, err := db.ExecContext(ctx, sqliteMigration); err != nil {
		_ = db.Close()
		return nil, true, normalizeSQLiteError(err)
	}

	return &SQLiteStore{db: db, logger: o.logger.With("database", path)}, true, nil
}

var _ datastore.Backend = (*SQLiteStore)(nil)

// Close releases the connection pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	query, args, err := qb.Select("value").From("objects").Where(qb.Eq{"key": key}).ToSql()
	if err != nil {
		return nil, datastore.NewError(datastore.KindUnknown, "", "building query", err)
	}

	var value []byte
	if err := s.db.GetContext(ctx, &value, query, args...); err != nil {
		return nil, normalizeSQLiteError(err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Put overwrites any existing value for key.
func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	query, args, err := qb.Insert("objects").Columns("key", "value").Values(key, data).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").ToSql()
	if err != nil {
		return datastore.NewError(datastore.KindUnknown, "", "building query", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return normalizeSQLiteError(err)
	}
	return nil
}

// List reads keys in PageSize batches ordered by key, resuming after the
// last key seen. instr keeps the prefix match exact where LIKE would treat
// '%' and '_' as wildcards.
func (s *SQLiteStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	last := ""
	first := true

	for {
		stmt := qb.Select("key").From("objects").OrderBy("key ASC").Limit(datastore.PageSize)
		if prefix != "" {
			stmt = stmt.Where(qb.Expr("instr(key, ?) = 1", prefix))
		}
		if !first {
			stmt = stmt.Where(qb.Gt{"key": last})
		}

		query, args, err := stmt.ToSql()
		if err != nil {
			return nil, datastore.NewError(datastore.KindUnknown, "", "building query", err)
		}

		var page []string
		if err := s.db.SelectContext(ctx, &page, query, args...); err != nil {
			return nil, normalizeSQLiteError(err)
		}

		keys = append(keys, page...)
		if len(page) < datastore.PageSize {
			return keys, nil
		}
		last = page[len(page)-1]
		first = false
	}
}

var sqliteCodes = map[sqlite3.ErrNo]struct {
	kind datastore.Kind
	code string
}{
	sqlite3.ErrBusy:     {datastore.KindUnreachable, "SQLITE_BUSY"},
	sqlite3.ErrLocked:   {datastore.KindUnreachable, "SQLITE_LOCKED"},
	sqlite3.ErrCantOpen: {datastore.KindUnreachable, "SQLITE_CANTOPEN"},
	sqlite3.ErrIoErr:    {datastore.KindUnreachable, "SQLITE_IOERR"},
	sqlite3.ErrCorrupt:  {datastore.KindCorrupt, "SQLITE_CORRUPT"},
	sqlite3.ErrNotADB:   {datastore.KindCorrupt, "SQLITE_NOTADB"},
	sqlite3.ErrPerm:     {datastore.KindUnauthorized, "SQLITE_PERM"},
	sqlite3.ErrAuth:     {datastore.KindUnauthorized, "SQLITE_AUTH"},
	sqlite3.ErrReadonly: {datastore.KindUnauthorized, "SQLITE_READONLY"},
}

func normalizeSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return datastore.NewError(datastore.KindNotFound, "NoRows", "", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return datastore.NewError(datastore.KindUnreachable, "", "request abandoned", err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if m, ok := sqliteCodes[sqliteErr.Code]; ok {
			return datastore.NewError(m.kind, m.code, "", err)
		}
		return datastore.NewError(datastore.KindUnknown, fmt.Sprintf("SQLITE_%d", int(sqliteErr.Code)), "", err)
	}

	return datastore.NewError(datastore.KindUnknown, "", "database error occurred", err)
}
