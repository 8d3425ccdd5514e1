package service

import (
	"context"
	"time"

	"tabletop-service/internal/config"
	"tabletop-service/internal/service/admin"
	"tabletop-service/internal/service/auth"
	"tabletop-service/internal/service/catalog"
	"tabletop-service/internal/service/game"
	"tabletop-service/internal/service/match"
	"tabletop-service/internal/service/user"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Auth    *auth.Service
	User    *user.Service
	Game    *game.Service
	Match   *match.Service
	Catalog *catalog.Service
	Admin   *admin.Service
}

func NewContainer(db *gorm.DB, rdb *redis.Client) *Container {
	userSvc := user.NewService(db, rdb)
	gameSvc := game.NewService(db, userSvc)

	return &Container{
		Auth:    auth.NewService(db, rdb),
		User:    userSvc,
		Game:    gameSvc,
		Match:   match.NewService(userSvc, gameSvc, matchConfig()),
		Catalog: catalog.NewService(db),
		Admin:   admin.NewService(db),
	}
}

func (c *Container) Start(ctx context.Context) error {
	if err := c.Admin.EnsureDefaultAdmin(ctx); err != nil {
		return err
	}
	return c.Match.Start(ctx)
}

func matchConfig() match.Config {
	if config.GlobalConfig == nil {
		return match.Config{}
	}
	cfg := config.GlobalConfig.Match
	return match.Config{
		StaleAfter:       time.Duration(cfg.StaleAfterSec) * time.Second,
		SweepInterval:    time.Duration(cfg.SweepIntervalSec) * time.Second,
		RecentGameWindow: time.Duration(cfg.RecentGameWindowSec) * time.Second,
	}
}
