package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/leorit/backend/internal/infrastructure/config"
	applog "github.com/leorit/backend/internal/infrastructure/logger"
	"github.com/leorit/backend/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the PostgreSQL pool described by cfg and waits for it to
// answer a ping within ctx. SQL is logged through zap at the GORM level
// named by logLevel.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger, logLevel string) (*gorm.DB, error) {
	db, err := Open(postgres.Open(cfg.DSN()), logger, logLevel)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := Ping(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return db, nil
}

// Open opens a GORM connection on any dialector with the settings the
// repositories rely on: UTC microsecond timestamps, no implicit
// transactions, and unique violations reported as gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector, logger *zap.Logger, logLevel string) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger:                 applog.NewGormLogger(logger, applog.MapGormLogLevel(logLevel)),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	})
}

// AutoMigrate creates the lifecycle tables from the models. Deployed
// databases use the SQL migrations; this serves tests and local sqlite.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ManufacturerModel{},
		&models.OrderModel{},
		&models.QCRecordModel{},
		&models.AuditEventModel{},
		&models.OutboxEntryModel{},
	)
}

// Ping checks the pool behind db
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the pool behind db
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
