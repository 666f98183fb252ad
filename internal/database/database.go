package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/glotchimo/herald/internal/models"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/graxinc/errutil"
)

// MigrationsSource is where Migrate reads its SQL files from.
var MigrationsSource = "file://migrations"

type Database struct {
	l       *slog.Logger
	db      *sql.DB
	builder sq.StatementBuilderType
}

func NewDatabase(l *slog.Logger, databaseURL string) (*Database, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errutil.With(err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	database := newWithDB(l, db)
	if err := database.Migrate(databaseURL); err != nil {
		return nil, errutil.With(err)
	}

	return database, nil
}

func newWithDB(l *slog.Logger, db *sql.DB) *Database {
	cache := sq.NewStmtCache(db)
	return &Database{l: l, db: db, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(cache)}
}

func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) Migrate(databaseURL string) error {
	m, err := migrate.New(MigrationsSource, databaseURL)
	if err != nil {
		return errutil.With(err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errutil.With(err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return errutil.With(err)
	}

	db.l.Info("migrations applied", "version", version, "dirty", dirty)

	return nil
}

func (db *Database) Create(ctx context.Context, m models.Mappable) error {
	data := m.Map()
	if _, ok := data["created"]; !ok {
		data["created"] = time.Now().UTC()
	}
	q := db.builder.
		Insert(string(m.Table())).
		SetMap(data)

	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (db *Database) Count(ctx context.Context, table models.Table, where sq.Eq) (int, error) {
	var count int

	q := db.builder.
		Select("COUNT(*)").
		From(string(table))
	if len(where) > 0 {
		q = q.Where(where)
	}

	if err := q.QueryRowContext(ctx).Scan(&count); err != nil {
		return count, errutil.With(err)
	}

	return count, nil
}

// Record stores the audit row of a dispatched interaction.
func (db *Database) Record(ctx context.Context, inv models.Invocation) error {
	return db.Create(ctx, inv)
}

// CommandSetHash returns the last hash stored for scope, or "" when none is.
func (db *Database) CommandSetHash(ctx context.Context, scope string) (string, error) {
	var hash string

	q := db.builder.
		Select("hash").
		From(string(models.TableCommandSets)).
		Where(sq.Eq{"scope": scope})

	if err := q.QueryRowContext(ctx).Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", errutil.Wrap(err)
	}

	return hash, nil
}

func (db *Database) SetCommandSetHash(ctx context.Context, scope, hash string) error {
	now := time.Now().UTC()
	set := models.CommandSet{Scope: scope, Hash: hash, Created: now, Updated: now}
	q := db.builder.
		Insert(string(set.Table())).
		Columns("scope", "hash", "created", "updated").
		Values(set.Scope, set.Hash, set.Created, set.Updated).
		Suffix(`ON CONFLICT (scope) DO UPDATE SET hash = EXCLUDED.hash, updated = EXCLUDED.updated`)

	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}
