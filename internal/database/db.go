package database

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyiron/chartdbDiagramsSQL/internal/config"
)

// EnsureDatabaseExists connects to the maintenance database with admin
// credentials and creates the configured database when it is missing.
// Admin credentials fall back to the regular user when unset.
func EnsureDatabaseExists(ctx context.Context, cfg config.DatabaseConfig) error {
	adminUser := cfg.AdminUser
	if adminUser == "" {
		adminUser = cfg.User
	}
	adminPassword := cfg.AdminPassword
	if adminPassword == "" {
		adminPassword = cfg.Password
	}

	userInfo := url.UserPassword(adminUser, adminPassword)
	dsn := fmt.Sprintf(
		"postgres://%s@%s:%d/postgres?sslmode=disable",
		userInfo.String(),
		cfg.Host,
		cfg.Port,
	)

	log.Printf("Checking if database '%s' exists...", cfg.Name)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)"
	if err := pool.QueryRow(checkCtx, query, cfg.Name).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}

	if exists {
		log.Printf("Database '%s' already exists", cfg.Name)
		return nil
	}

	log.Printf("Database '%s' does not exist. Creating it...", cfg.Name)

	// CREATE DATABASE cannot run inside a transaction, so use a plain Exec
	// and quote the database name to handle special characters.
	quoted := pgx.Identifier{cfg.Name}.Sanitize()
	if _, err := pool.Exec(checkCtx, fmt.Sprintf("CREATE DATABASE %s", quoted)); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	log.Printf("Database '%s' created successfully", cfg.Name)
	return nil
}

// Connect opens a tuned pgx pool against the configured database and
// verifies the connection with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	userInfo := url.UserPassword(cfg.User, cfg.Password)
	dsn := fmt.Sprintf(
		"postgres://%s@%s:%d/%s?sslmode=disable",
		userInfo.String(),
		cfg.Host,
		cfg.Port,
		url.PathEscape(cfg.Name),
	)

	log.Printf("Connecting to database: postgres://%s:***@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.Name)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection pool established successfully")
	return pool, nil
}
