package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"regtrack/internal/models"
)

type Options struct {
	DSN         string
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *zap.Logger
}

// Open connects to Postgres, retrying while the database comes up.
func Open(opts Options) (*gorm.DB, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 1; i <= opts.MaxAttempts; i++ {
		log.Info("connecting to database", zap.Int("attempt", i), zap.Int("max_attempts", opts.MaxAttempts))

		db, err = gorm.Open(postgres.Open(opts.DSN), Config())
		if err == nil {
			log.Info("connected to database")
			return db, nil
		}

		log.Warn("database connection failed", zap.Error(err))
		time.Sleep(opts.RetryDelay)
	}
	return nil, fmt.Errorf("connect to database after %d attempts: %w", opts.MaxAttempts, err)
}

// Config is the gorm configuration shared by every dialect we run on.
func Config() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates or updates every table, index and check constraint.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
