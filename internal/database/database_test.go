package database

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return newWithDB(slog.New(slog.DiscardHandler), db), mock
}

func TestRecord(t *testing.T) {
	d, mock := newMock(t)

	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO invocations (created,guild_id,interaction,name,run_id) VALUES ($1,$2,$3,$4,$5)")).
		ExpectExec().
		WithArgs(sqlmock.AnyArg(), "42", sqlmock.AnyArg(), "/ping", "run1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := d.Record(context.Background(), models.Invocation{
		RunID:       "run1",
		Name:        "/ping",
		Interaction: &dg.Interaction{ID: "1", GuildID: "42"},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordKeepsDispatchTime(t *testing.T) {
	d, mock := newMock(t)
	dispatched := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO invocations (created,guild_id,interaction,name,run_id) VALUES ($1,$2,$3,$4,$5)")).
		ExpectExec().
		WithArgs(dispatched, "42", sqlmock.AnyArg(), "/ping", "run1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := d.Record(context.Background(), models.Invocation{
		RunID:       "run1",
		Name:        "/ping",
		Interaction: &dg.Interaction{ID: "1", GuildID: "42"},
		Created:     dispatched,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommandSetHash(t *testing.T) {
	testCases := []struct {
		description string
		rows        *sqlmock.Rows
		err         error
		want        string
		wantErr     bool
	}{
		{description: "stored", rows: sqlmock.NewRows([]string{"hash"}).AddRow("abc"), want: "abc"},
		{description: "missing", rows: sqlmock.NewRows([]string{"hash"})},
		{description: "failure", err: errors.New("connection reset"), wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			d, mock := newMock(t)

			q := mock.ExpectPrepare(regexp.QuoteMeta("SELECT hash FROM command_sets WHERE scope = $1")).
				ExpectQuery().
				WithArgs("global")
			if tc.err != nil {
				q.WillReturnError(tc.err)
			} else {
				q.WillReturnRows(tc.rows)
			}

			hash, err := d.CommandSetHash(context.Background(), models.ScopeGlobal)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.want, hash)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSetCommandSetHash(t *testing.T) {
	d, mock := newMock(t)

	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO command_sets (scope,hash,created,updated) VALUES ($1,$2,$3,$4) ON CONFLICT (scope) DO UPDATE SET hash = EXCLUDED.hash, updated = EXCLUDED.updated")).
		ExpectExec().
		WithArgs("42", "abc", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, d.SetCommandSetHash(context.Background(), "42", "abc"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	d, mock := newMock(t)

	mock.ExpectPrepare(regexp.QuoteMeta("SELECT COUNT(*) FROM invocations")).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectPrepare(regexp.QuoteMeta("SELECT COUNT(*) FROM invocations WHERE guild_id = $1")).
		ExpectQuery().
		WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := d.Count(context.Background(), models.TableInvocations, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	count, err = d.Count(context.Background(), models.TableInvocations, map[string]any{"guild_id": "42"})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	assert.NoError(t, mock.ExpectationsWereMet())
}
