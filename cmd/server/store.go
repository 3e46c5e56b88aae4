package main

import (
	"context"
	"fmt"

	"github.com/iliyamo/ticket-booking/internal/config"
	"github.com/iliyamo/ticket-booking/internal/database"
	"github.com/iliyamo/ticket-booking/internal/repository"
	"github.com/iliyamo/ticket-booking/internal/repository/memory"
	"github.com/iliyamo/ticket-booking/internal/repository/mysql"
	"github.com/iliyamo/ticket-booking/internal/repository/postgres"
)

// openStore connects the backend named by cfg.Driver and, with AutoMigrate,
// applies the bundled schema.
func openStore(ctx context.Context, cfg config.DatabaseConfig, tracing bool) (repository.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil

	case "postgres":
		pool, err := database.NewPostgres(ctx, cfg, tracing)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.AutoMigrate {
			exec := database.ExecFunc(func(ctx context.Context, stmt string) error {
				_, err := pool.Exec(ctx, stmt)
				return err
			})
			if err := database.ApplySchema(ctx, "postgres", exec); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return postgres.New(pool), nil

	default:
		db, err := database.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		if cfg.AutoMigrate {
			exec := database.ExecFunc(func(ctx context.Context, stmt string) error {
				_, err := db.ExecContext(ctx, stmt)
				return err
			})
			if err := database.ApplySchema(ctx, "mysql", exec); err != nil {
				db.Close()
				return nil, err
			}
		}
		return mysql.New(db), nil
	}
}
