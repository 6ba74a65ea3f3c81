package db

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/sujalbistaa/payboard/internal/models"
)

const (
	sqlitePrefix = "sqlite://"
	// WAL journal mode and a busy timeout so concurrent requests wait instead of failing
	sqliteConnOpts = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
)

type Config struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	Logger       *slog.Logger
}

// Open initializes a GORM connection. The URL selects the driver:
// sqlite://<path> or postgres://... (a postgresql:// URL or a
// postgres://-prefixed key=value DSN).
func Open(cfg Config) (*gorm.DB, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	dialector, err := dialectorFor(cfg.URL, log)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Query spans go to whatever tracer provider is installed globally
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("failed to enable database tracing: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	log.Info("database connection established", "component", "database")
	return db, nil
}

func dialectorFor(url string, log *slog.Logger) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(url, "postgresql://"):
		log.Info("connecting to PostgreSQL database", "component", "database")
		return postgres.Open(url), nil
	case strings.HasPrefix(url, "postgres://"):
		dsn := url
		// postgres://host=... user=... is a prefixed key=value DSN
		if rest := strings.TrimPrefix(url, "postgres://"); strings.Contains(rest, "=") && !strings.Contains(rest, "@") {
			dsn = rest
		}
		log.Info("connecting to PostgreSQL database", "component", "database")
		return postgres.Open(dsn), nil
	case strings.HasPrefix(url, sqlitePrefix):
		path := strings.TrimPrefix(url, sqlitePrefix)
		if path == "" {
			return nil, fmt.Errorf("invalid database URL %q: missing sqlite path", url)
		}
		log.Info("connecting to SQLite database", "component", "database", "path", path)
		if strings.HasPrefix(path, "file:") {
			return sqlite.Open(path), nil
		}
		return sqlite.Open(fmt.Sprintf("file:%s?%s", path, sqliteConnOpts)), nil
	default:
		return nil, fmt.Errorf(
			"invalid database URL %q: must start with 'postgres://' or 'sqlite://'",
			url,
		)
	}
}

// Migrate creates or updates the schema for every model.
func Migrate(ctx context.Context, db *gorm.DB) error {
	for _, model := range models.All() {
		if err := db.WithContext(ctx).AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}
	return nil
}

// Ping checks that the database is reachable.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
