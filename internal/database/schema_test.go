package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-booking/internal/config"
)

func TestSchemaStatements(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres"} {
		t.Run(driver, func(t *testing.T) {
			stmts, err := Schema(driver)
			require.NoError(t, err)
			require.NotEmpty(t, stmts)

			var joined string
			for _, s := range stmts {
				assert.NotContains(t, s, "--")
				assert.False(t, strings.HasSuffix(s, ";"))
				joined += s + "\n"
			}
			for _, table := range []string{"theaters", "shows", "seats", "reservations", "payments", "audit_logs"} {
				assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+table)
			}
			assert.Contains(t, joined, "uq_reservations_active")
		})
	}
}

func TestSchemaUnknownDriver(t *testing.T) {
	_, err := Schema("sqlite")
	assert.Error(t, err)
}

func TestApplySchemaStopsOnError(t *testing.T) {
	var seen int
	boom := errors.New("boom")
	err := ApplySchema(context.Background(), "postgres", ExecFunc(func(_ context.Context, _ string) error {
		seen++
		if seen == 2 {
			return boom
		}
		return nil
	}))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, seen)
}

func TestDSNs(t *testing.T) {
	cfg := config.DatabaseConfig{User: "app", Pass: "p@ss", Host: "db", Port: "3306", Name: "tickets", SSLMode: "disable"}

	dsn := MySQLDSN(cfg)
	assert.True(t, strings.HasPrefix(dsn, "app:p@ss@tcp(db:3306)/tickets?"))
	assert.Contains(t, dsn, "parseTime=true")

	cfg.Port = "5432"
	assert.Equal(t, "postgres://app:p%40ss@db:5432/tickets?sslmode=disable", PostgresDSN(cfg))
}
