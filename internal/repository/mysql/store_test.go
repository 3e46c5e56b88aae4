package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/config"
	"github.com/iliyamo/ticket-booking/internal/database"
	"github.com/iliyamo/ticket-booking/internal/repository"
	"github.com/iliyamo/ticket-booking/internal/repository/repotest"
)

func TestMapErr(t *testing.T) {
	assert.Nil(t, mapErr(nil, repository.ErrSeatNotFound))
	assert.ErrorIs(t, mapErr(sql.ErrNoRows, repository.ErrSeatNotFound), repository.ErrSeatNotFound)
	assert.ErrorIs(t, mapErr(sql.ErrNoRows, nil), sql.ErrNoRows)

	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1-1-1' for key 'uq_reservations_active'"}
	assert.ErrorIs(t, mapErr(dup, nil), repository.ErrConflict)
	assert.ErrorIs(t, mapErr(fmt.Errorf("insert: %w", dup), nil), repository.ErrConflict)

	referenced := &mysql.MySQLError{Number: 1451}
	assert.ErrorIs(t, mapErr(referenced, nil), repository.ErrConflict)

	noParent := &mysql.MySQLError{Number: 1452}
	assert.ErrorIs(t, mapErr(noParent, repository.ErrTheaterNotFound), repository.ErrTheaterNotFound)
	assert.Equal(t, error(noParent), mapErr(noParent, nil))

	other := &mysql.MySQLError{Number: 1213}
	assert.Equal(t, error(other), mapErr(other, repository.ErrShowNotFound))
}

func TestNullID(t *testing.T) {
	assert.False(t, nullID(0).Valid)
	assert.Equal(t, sql.NullInt64{Int64: 7, Valid: true}, nullID(7))
	assert.Zero(t, fromNullID(sql.NullInt64{}))
	assert.Equal(t, uint64(7), fromNullID(sql.NullInt64{Int64: 7, Valid: true}))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now`, escapeLike("50% off_now"))
}

func skipIfNoIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func openTestDB(t *testing.T) *sql.DB {
	skipIfNoIntegration(t)
	db, err := database.Open(config.DatabaseConfig{
		User:            getenv("TEST_MYSQL_USER", "root"),
		Pass:            getenv("TEST_MYSQL_PASSWORD", ""),
		Host:            getenv("TEST_MYSQL_HOST", "localhost"),
		Port:            getenv("TEST_MYSQL_PORT", "3306"),
		Name:            getenv("TEST_MYSQL_DB", "ticket_booking_test"),
		MaxOpenConns:    20,
		MaxIdleConns:    20,
		ConnMaxLifetime: 0,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, database.ApplySchema(ctx, "mysql", database.ExecFunc(func(ctx context.Context, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	})))
	return db
}

func truncate(t *testing.T, db *sql.DB) {
	ctx := context.Background()
	conn, err := db.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.ExecContext(ctx, `SET FOREIGN_KEY_CHECKS = 0`)
	require.NoError(t, err)
	for _, table := range []string{"audit_logs", "payments", "reservations", "seats", "shows", "theaters"} {
		_, err := conn.ExecContext(ctx, "TRUNCATE TABLE "+table)
		require.NoError(t, err)
	}
	_, err = conn.ExecContext(ctx, `SET FOREIGN_KEY_CHECKS = 1`)
	require.NoError(t, err)
}

func TestStoreIntegration(t *testing.T) {
	db := openTestDB(t)
	repotest.Run(t, func(t *testing.T) repository.Store {
		truncate(t, db)
		return New(db)
	})
}
