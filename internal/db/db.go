package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"detention-service/internal/config"
)

const pingTimeout = 3 * time.Second

// New opens the postgres pool, waits for the server to answer and applies the
// schema migrations.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	dbCfg := cfg.DB
	dbLog := log.With().Str("component", "gorm").Logger()
	gormLog := gormlogger.New(
		zerologWriter{logger: dbLog},
		gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			Colorful:                  false,
			IgnoreRecordNotFoundError: true,
			LogLevel:                  selectLogLevel(cfg.Environment),
		},
	)

	database, err := gorm.Open(postgres.Open(dbCfg.DSN), &gorm.Config{
		Logger:         gormLog,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	if dbCfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	}
	if dbCfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	}
	if dbCfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
	}

	if err := waitReady(ctx, database, dbCfg.ConnectAttempts, dbLog); err != nil {
		return nil, err
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	dbLog.Info().Int("statements", len(migrationStatements)).Msg("schema migrations applied")

	return database, nil
}

func waitReady(ctx context.Context, database *gorm.DB, attempts int, log zerolog.Logger) error {
	if attempts <= 0 {
		attempts = 1
	}
	backoff := 500 * time.Millisecond
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = HealthCheck(ctx, database); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", backoff).Msg("database not ready")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("database unreachable after %d attempts: %w", attempts, err)
}

func HealthCheck(ctx context.Context, db *gorm.DB) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func selectLogLevel(env string) gormlogger.LogLevel {
	switch env {
	case "development":
		return gormlogger.Info
	case "test":
		return gormlogger.Silent
	default:
		return gormlogger.Warn
	}
}

// zerologWriter adapts gorm's printf logger. gorm prefixes slow queries and
// errors, which are raised to warn and error.
type zerologWriter struct {
	logger zerolog.Logger
}

func (w zerologWriter) Printf(msg string, args ...interface{}) {
	line := fmt.Sprintf(msg, args...)
	switch {
	case strings.Contains(line, "SLOW SQL"):
		w.logger.Warn().Msg(line)
	case strings.Contains(line, "error"):
		w.logger.Error().Msg(line)
	default:
		w.logger.Debug().Msg(line)
	}
}
