package db

import (
	"fmt"
	"log"
	"net/url"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Initialize sets up the local database connection with WAL mode for concurrency
func Initialize(dbPath string, environment string) error {
	// Enable WAL mode so the queue worker and HTTP handlers can write concurrently
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	if err := open(sqlite.Open(dsn), environment); err != nil {
		return err
	}

	log.Println("Database connection established (WAL mode enabled)")
	return nil
}

// InitializeRemote connects to a Turso/libsql database through the sqlite dialect
func InitializeRemote(databaseURL, authToken, environment string) error {
	dsn, err := libsqlDSN(databaseURL, authToken)
	if err != nil {
		return err
	}

	dialector := sqlite.New(sqlite.Config{
		DriverName: "libsql",
		DSN:        dsn,
	})
	if err := open(dialector, environment); err != nil {
		return err
	}

	log.Println("Database connection established (libsql remote)")
	return nil
}

func open(dialector gorm.Dialector, environment string) error {
	// Determine log level based on environment
	logLevel := logger.Info
	if environment == "production" {
		logLevel = logger.Warn
	}

	var err error
	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return nil
}

func libsqlDSN(databaseURL, authToken string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid TURSO_DATABASE_URL: %w", err)
	}
	if authToken != "" {
		q := u.Query()
		q.Set("authToken", authToken)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// AutoMigrate runs database migrations for the provided models
func AutoMigrate(models ...interface{}) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	err := DB.AutoMigrate(models...)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}
