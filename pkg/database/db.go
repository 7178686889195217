package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/arnavshah/ionm-board/pkg/models"
)

// InitDB opens Postgres when dsn is set, otherwise SQLite at dbPath,
// and migrates the staff table
func InitDB(dsn, dbPath string, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	if dsn != "" {
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		})
		gormCfg.PrepareStmt = false
		logger.Info("using postgres staff store")
	} else {
		if dbPath == "" {
			dbPath = "ionm_staff.db"
		}
		dialector = sqlite.Open(dbPath)
		logger.Info("using sqlite staff store", zap.String("path", dbPath))
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := db.AutoMigrate(&models.StaffRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate staff table: %w", err)
	}

	return db, nil
}
