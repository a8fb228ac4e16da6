// Package integration provides integration testing utilities for the credit backend.
// It uses testcontainers to spin up real PostgreSQL databases for testing.
package integration

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/credit/backend/internal/infrastructure/logger"
	"github.com/credit/backend/internal/infrastructure/migration"
	"github.com/credit/backend/internal/infrastructure/persistence"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// TestDB represents a migrated test database
type TestDB struct {
	Database  *persistence.Database
	DB        *gorm.DB
	SqlDB     *sql.DB
	Container testcontainers.Container
	DSN       string
	t         *testing.T
}

// NewTestDB starts a PostgreSQL container and applies the embedded migrations.
// Each call gets its own container; skipped under -short.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("credito_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	database := connectToDatabase(t, dsn)
	sqlDB, err := database.DB.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")

	tdb := &TestDB{
		Database:  database,
		DB:        database.DB,
		SqlDB:     sqlDB,
		Container: container,
		DSN:       dsn,
		t:         t,
	}
	t.Cleanup(tdb.Close)

	tdb.Migrate()
	return tdb
}

// Migrate applies every pending migration
func (tdb *TestDB) Migrate() {
	tdb.t.Helper()
	m := tdb.migrator()
	require.NoError(tdb.t, m.Up(), "Failed to run migrations")
}

// MigrateDown rolls every migration back
func (tdb *TestDB) MigrateDown() {
	tdb.t.Helper()
	m := tdb.migrator()
	require.NoError(tdb.t, m.Down(), "Failed to roll back migrations")
}

// migrator opens its own connection; closing a migrator closes its sql.DB.
func (tdb *TestDB) migrator() *migration.Migrator {
	tdb.t.Helper()

	sqlDB, err := sql.Open("postgres", tdb.DSN)
	require.NoError(tdb.t, err)

	m, err := migration.New(sqlDB, zap.NewNop())
	require.NoError(tdb.t, err, "Failed to create migrator")
	tdb.t.Cleanup(func() { _ = m.Close() })
	return m
}

// CleanTables empties the credito table and resets its identity
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()
	err := tdb.DB.Exec("TRUNCATE TABLE credito RESTART IDENTITY").Error
	require.NoError(tdb.t, err, "Failed to truncate credito")
}

// CountCredits returns the number of persisted credits
func (tdb *TestDB) CountCredits() int64 {
	tdb.t.Helper()
	var n int64
	require.NoError(tdb.t, tdb.DB.Table("credito").Count(&n).Error)
	return n
}

// Close closes the database connection and terminates the container
func (tdb *TestDB) Close() {
	if tdb.SqlDB != nil {
		_ = tdb.SqlDB.Close()
	}
	if tdb.Container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := tdb.Container.Terminate(ctx); err != nil {
			tdb.t.Logf("Warning: Failed to terminate container: %v", err)
		}
	}
}

// connectToDatabase opens the database the way the server does
func connectToDatabase(t *testing.T, dsn string) *persistence.Database {
	t.Helper()

	var gormLog gormlogger.Interface = gormlogger.Default.LogMode(gormlogger.Silent)
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormLog = logger.NewGormLogger(zap.NewExample(), gormlogger.Info)
	}

	database, err := persistence.Open(gormpostgres.Open(dsn), persistence.WithLogger(gormLog))
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return database
}
