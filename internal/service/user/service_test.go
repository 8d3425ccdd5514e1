package user_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"tabletop-service/internal/model"
	"tabletop-service/internal/service/user"
	appErr "tabletop-service/pkg/errors"
	"tabletop-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.InitLogger("debug")
	os.Exit(m.Run())
}

func newUserService(t *testing.T) (*gorm.DB, *user.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.GameStats{}); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	// Leaderboard reads fall back to the DB when redis is absent.
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:1"})
	return db, user.NewService(db, rdb)
}

func seedUser(t *testing.T, db *gorm.DB, username string, rating int, status string) model.User {
	t.Helper()

	u := model.User{
		Username:     username,
		PasswordHash: "x",
		Nickname:     username,
		Rating:       rating,
		Status:       status,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user failed: %v", err)
	}
	return u
}

func TestPlayerRating(t *testing.T) {
	ctx := context.Background()
	db, svc := newUserService(t)

	u := seedUser(t, db, "alice", 1337, "normal")

	rating, err := svc.PlayerRating(ctx, u.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if rating != 1337 {
		t.Fatalf("expected rating 1337, got %d", rating)
	}

	if _, err := svc.PlayerRating(ctx, 999); !errors.Is(err, appErr.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestPlayerRatingBanned(t *testing.T) {
	ctx := context.Background()
	db, svc := newUserService(t)

	u := seedUser(t, db, "mallory", 1500, "banned")
	if _, err := svc.PlayerRating(ctx, u.ID); !errors.Is(err, appErr.ErrUserBanned) {
		t.Fatalf("banned players must not be matchable, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	db, svc := newUserService(t)

	u := seedUser(t, db, "bob", 1200, "normal")

	nickname := "Bobby"
	updated, err := svc.UpdateProfile(ctx, u.ID, user.UpdateProfileRequest{Nickname: &nickname})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Nickname != "Bobby" {
		t.Fatalf("expected nickname Bobby, got %s", updated.Nickname)
	}
	if updated.Username != "bob" {
		t.Fatalf("username must be immutable")
	}
}

func TestLeaderboardFallsBackToDB(t *testing.T) {
	ctx := context.Background()
	db, svc := newUserService(t)

	seedUser(t, db, "low", 1100, "normal")
	top := seedUser(t, db, "high", 1900, "normal")
	seedUser(t, db, "mid", 1500, "normal")
	seedUser(t, db, "cheater", 2400, "banned")

	entries, err := svc.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("banned users must be excluded, got %d entries", len(entries))
	}
	if entries[0].ID != top.ID || entries[0].Rank != 1 {
		t.Fatalf("expected %d at rank 1, got %+v", top.ID, entries[0])
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Rating > entries[i-1].Rating {
			t.Fatalf("leaderboard not sorted by rating: %+v", entries)
		}
	}
}

func TestAdminUpdateUserStatus(t *testing.T) {
	ctx := context.Background()
	db, svc := newUserService(t)

	u := seedUser(t, db, "carol", 1200, "normal")

	updated, err := svc.AdminUpdateUserStatus(ctx, u.ID, "banned", "abuse")
	if err != nil {
		t.Fatalf("ban failed: %v", err)
	}
	if updated.Status != "banned" {
		t.Fatalf("expected banned, got %s", updated.Status)
	}

	if _, err := svc.AdminUpdateUserStatus(ctx, u.ID, "frozen", ""); !errors.Is(err, appErr.ErrInvalidUserStatus) {
		t.Fatalf("expected ErrInvalidUserStatus, got %v", err)
	}
	if _, err := svc.AdminUpdateUserStatus(ctx, 999, "banned", ""); !errors.Is(err, appErr.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	db, svc := newUserService(t)

	u := seedUser(t, db, "dave", 1200, "normal")
	stats := []model.GameStats{
		{UserID: u.ID, GameType: "chess", Played: 4, Won: 2, Lost: 1, Drawn: 1},
		{UserID: u.ID, GameType: "checkers", Played: 1, Won: 0, Lost: 1},
	}
	if err := db.Create(&stats).Error; err != nil {
		t.Fatalf("seed stats failed: %v", err)
	}

	got, err := svc.GetStats(ctx, u.ID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 stat rows, got %d", len(got))
	}
	if got[0].GameType != "checkers" {
		t.Fatalf("stats should be ordered by game type, got %+v", got)
	}
}
