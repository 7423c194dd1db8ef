package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/steemit/sdgforum/internal/models"
	"github.com/steemit/sdgforum/pkg/config"
	"github.com/steemit/sdgforum/pkg/logging"
)

// zapWriter adapts zap.Logger to logger.Writer interface
type zapWriter struct {
	logger *zap.Logger
}

func (w *zapWriter) Printf(format string, args ...interface{}) {
	w.logger.Sugar().Infof(format, args...)
}

// DB wraps GORM database connection
type DB struct {
	*gorm.DB
}

// New creates a new database connection
func New(cfg *config.DatabaseConfig, logLevel string) (*DB, error) {
	gormLogger := logger.New(
		&zapWriter{logger: logging.GetLogger().With(zap.String("component", "gorm"))},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel(logLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logging.GetLogger().Info("Database connection established")

	return &DB{DB: db}, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "DEBUG", "debug":
		return logger.Info
	case "INFO", "info":
		return logger.Warn
	case "WARN", "warn", "WARNING", "warning":
		return logger.Error
	case "ERROR", "error":
		return logger.Silent
	default:
		return logger.Warn
	}
}

// Migrate creates or updates the schema
func (d *DB) Migrate(ctx context.Context) error {
	err := d.DB.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Thread{},
		&models.ThreadCategory{},
		&models.Interaction{},
		&models.Report{},
		&models.ChatGroup{},
		&models.ChatGroupCategory{},
		&models.ChatGroupMember{},
		&models.ChatMessage{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SeedCategories inserts the seventeen goals that are not present yet.
// Existing rows keep their ids.
func (d *DB) SeedCategories(ctx context.Context) (int, error) {
	inserted := 0
	for _, c := range models.SDGCategories {
		id, err := uuid.NewV7()
		if err != nil {
			return inserted, fmt.Errorf("failed to generate category id: %w", err)
		}
		row := models.Category{ID: id.String(), Name: c.Name, SDGNumber: c.SDGNumber}

		result := d.DB.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sdg_number"}}, DoNothing: true}).
			Create(&row)
		if result.Error != nil {
			return inserted, fmt.Errorf("failed to seed category %d: %w", c.SDGNumber, result.Error)
		}
		inserted += int(result.RowsAffected)
	}

	if inserted > 0 {
		logging.GetLogger().Info("Seeded categories", zap.Int("inserted", inserted))
	}
	return inserted, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks database health
func (d *DB) Health(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// first runs query into dest and maps a missing row to found=false
func first(query *gorm.DB, dest interface{}) (bool, error) {
	if err := query.First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
