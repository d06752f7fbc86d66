package database

import (
	"github.com/reliefconnect/api/internal/config"
	"github.com/reliefconnect/api/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(cfg.DBLogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.ReliefRequest{},
		&model.RequestItem{},
		&model.ReliefMission{},
		&model.Report{},
	)
	if err != nil {
		return err
	}

	// One report per reporter per request. AutoMigrate creates it from the
	// struct tags; this covers tables that predate the tag.
	return db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_request_reporter ON reports(request_id, reporter_id)").Error
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
