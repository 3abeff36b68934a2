package db

import (
	"fmt"
	"time"

	"living-science-documents/internal/config"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormWriter sends gorm's SQL log through zerolog.
type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Debug().Msgf(format, args...)
}

// DSN builds the postgres connection string from cfg.
func DSN(cfg config.Config) string {
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v sslmode=disable",
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
	)
}

func Connect(cfg config.Config, log zerolog.Logger) (*gorm.DB, error) {
	level := logger.Info
	if cfg.Environment == "production" {
		level = logger.Error
	}
	gormLogger := logger.New(
		gormWriter{log: log},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("connected to db")
	return db, nil
}

func Close(db *gorm.DB, log zerolog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Error().Err(err).Msg("failed to get db handle")
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close db")
		return
	}
	log.Info().Msg("db closed")
}
