package repo

import (
	"log"

	"tabletop-service/internal/config"
	"tabletop-service/internal/model"
	"tabletop-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := config.GlobalConfig.Database.DSN
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Log.Fatal("Failed to connect to database",
			zap.Error(err),
		)
	}

	models := []interface{}{
		&model.User{},
		&model.Admin{},
		&model.GameType{},
		&model.GameStats{},
		&model.Game{},
		&model.GameMove{},
	}

	if err := DB.AutoMigrate(models...); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
}
