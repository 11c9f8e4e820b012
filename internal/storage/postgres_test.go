package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postgresDSN points the PostgreSQL tests at a disposable database.
// They are skipped when it is unset.
const postgresDSNEnv = "TEST_POSTGRES_DSN"

func openPostgresProvider(t *testing.T) *Provider {
	t.Helper()
	dsn := os.Getenv(postgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", postgresDSNEnv)
	}
	p, err := Open(context.Background(), Config{Driver: DriverPostgres, DSN: dsn, Workers: 4}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPostgresSchemaIsIdempotent(t *testing.T) {
	first := openPostgresProvider(t)
	ctx := context.Background()
	assert.Equal(t, DriverPostgres, first.Dialect().Name())

	var id int64
	err := first.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, first.Dialect().Rebind("INSERT INTO games (board_size) VALUES (?) RETURNING id"), 4).Scan(&id)
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = first.WithConn(context.Background(), func(ctx context.Context, conn *sql.Conn) error {
			_, err := conn.ExecContext(ctx, "DELETE FROM games WHERE id = $1", id)
			return err
		})
	})

	// second Open re-runs the DDL, including the trigger and function
	second := openPostgresProvider(t)
	var size int64
	err = second.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, second.Dialect().Rebind("SELECT board_size FROM games WHERE id = ?"), id).Scan(&size)
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4, size)
}

func TestPostgresUniqueViolationDetected(t *testing.T) {
	p := openPostgresProvider(t)
	ctx := context.Background()
	d := p.Dialect()

	err := p.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var id int64
		if err := conn.QueryRowContext(ctx, "INSERT INTO games DEFAULT VALUES RETURNING id").Scan(&id); err != nil {
			return err
		}
		defer conn.ExecContext(ctx, "DELETE FROM games WHERE id = $1", id)

		insert := d.Rebind("INSERT INTO game_moves (game_id, move_number, position, player) VALUES (?, ?, ?, ?)")
		if _, err := conn.ExecContext(ctx, insert, id, 1, 4, "X"); err != nil {
			return err
		}
		_, dup := conn.ExecContext(ctx, insert, id, 2, 4, "O")
		assert.True(t, d.IsUniqueViolation(dup), "got %v", dup)
		return nil
	})
	require.NoError(t, err)
}

func TestPostgresInTxRollsBack(t *testing.T) {
	p := openPostgresProvider(t)
	ctx := context.Background()

	var id int64
	err := p.Do(ctx, func(ctx context.Context, conn *sql.Conn) error {
		_ = InTx(ctx, conn, func(tx *sql.Tx) error {
			if err := tx.QueryRowContext(ctx, "INSERT INTO games DEFAULT VALUES RETURNING id").Scan(&id); err != nil {
				return err
			}
			return sql.ErrTxDone
		})
		var n int
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM games WHERE id = $1", id).Scan(&n); err != nil {
			return err
		}
		assert.Zero(t, n)
		return nil
	})
	require.NoError(t, err)
	assert.Positive(t, id)
}
