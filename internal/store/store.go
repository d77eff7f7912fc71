package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/roach88/datoms/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Tables only
// 1 - Bootstrap transaction (system idents, attributes and partitions)
const currentSchemaVersion = 1

// Options configures a Store.
type Options struct {
	// EnforceSchema requires every attribute to be installed before use.
	// When false, an unknown attribute is installed on first use with a
	// value type inferred from the value.
	EnforceSchema bool

	// Logger receives transaction and migration logs. Nil means no logging.
	Logger *zap.SugaredLogger

	// Now stamps :db/txInstant. Nil means time.Now.
	Now func() time.Time
}

// DefaultOptions enforces the schema and discards logs.
func DefaultOptions() Options {
	return Options{EnforceSchema: true}
}

// Store is a SQLite-backed fact store of datoms.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db    *sql.DB
	log   *zap.SugaredLogger
	opts  Options
	clock *Clock

	// mu serializes Transact and guards schema.
	mu     sync.RWMutex
	schema *schema
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas, migrations and the bootstrap transaction
// automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connect to database %s", path)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply pragmas")
	}

	if err := applySchema(db, opts.Logger); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}

	s := &Store{db: db, log: opts.Logger, opts: opts}
	ctx := context.Background()

	var t int64
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(t), 0) FROM txs").Scan(&t); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "read basis")
	}
	s.clock = NewClockAt(t)

	sch, err := loadSchema(ctx, db, ir.TxEid(t))
	if err != nil {
		db.Close()
		return nil, err
	}
	s.schema = sch

	s.log.Debugw("store opened", "path", path, "basis_t", t, "attributes", len(sch.byID))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Snapshot is an immutable database value: every datom committed at or
// before transaction BasisT.
type Snapshot struct {
	BasisT int64
}

// BasisTx returns the entity id of the snapshot's basis transaction.
func (s Snapshot) BasisTx() ir.Eid {
	return ir.TxEid(s.BasisT)
}

func (s Snapshot) String() string {
	return fmt.Sprintf("#db[%d]", s.BasisT)
}

// Db returns the current database value.
func (s *Store) Db() Snapshot {
	return Snapshot{BasisT: s.clock.Current()}
}

// AsOf returns the database value as of transaction t. It fails when t is
// past the current basis.
func (s *Store) AsOf(t int64) (Snapshot, error) {
	if cur := s.clock.Current(); t < 0 || t > cur {
		return Snapshot{}, errors.Newf("basis %d is outside 0..%d", t, cur)
	}
	return Snapshot{BasisT: t}, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "execute %q", pragma)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB, log *zap.SugaredLogger) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return errors.Wrap(err, "execute schema")
	}

	if err := runMigrations(db, log); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB, log *zap.SugaredLogger) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "get user_version")
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		log.Infow("bootstrapped database", "schema_version", 1)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return errors.Wrap(err, "set user_version")
	}

	return nil
}

// migrateToV1 writes the bootstrap transaction (t = 0) in one SQL
// transaction.
func migrateToV1(db *sql.DB) error {
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "migrate to v1: begin")
	}
	defer tx.Rollback() // No-op if committed

	rows := bootstrapRows()
	datoms, err := insertRows(ctx, tx, rows)
	if err != nil {
		return errors.Wrap(err, "migrate to v1")
	}
	hash, err := ir.TxHash(datoms)
	if err != nil {
		return errors.Wrap(err, "migrate to v1")
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO txs (t, instant, hash) VALUES (0, 0, ?)", hash); err != nil {
		return errors.Wrap(err, "migrate to v1: record tx")
	}

	for _, p := range builtinPartitions {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO partitions (part, eid, ident, next_seq) VALUES (?, ?, ?, ?)",
			p.part, p.eid, p.ident, p.nextSeq); err != nil {
			return errors.Wrapf(err, "migrate to v1: partition %s", p.ident)
		}
	}

	return tx.Commit()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return errors.Wrapf(err, "query %s", name)
	}
	if value != expected {
		return errors.Newf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
