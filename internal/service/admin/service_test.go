package admin_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"tabletop-service/internal/config"
	"tabletop-service/internal/model"
	"tabletop-service/internal/service/admin"
	appErr "tabletop-service/pkg/errors"
	"tabletop-service/pkg/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.InitLogger("debug")
	config.GlobalConfig = &config.Config{
		JWT: config.JWTConfig{Secret: "test-secret", Expire: 1},
		Admin: config.AdminSeedConfig{
			DefaultUsername: "root",
			DefaultPassword: "root-password",
		},
	}
	os.Exit(m.Run())
}

func newAdminService(t *testing.T) (*gorm.DB, *admin.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Admin{}); err != nil {
		t.Fatalf("failed to migrate admins: %v", err)
	}
	return db, admin.NewService(db)
}

func seedAdmin(t *testing.T, db *gorm.DB, username, password, status string) model.Admin {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	a := model.Admin{
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  username,
		Status:       status,
	}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("seed admin failed: %v", err)
	}
	return a
}

func TestAdminLogin(t *testing.T) {
	ctx := context.Background()
	db, svc := newAdminService(t)
	seedAdmin(t, db, "ops", "ops-password", "active")

	result, err := svc.Login(ctx, "ops", "ops-password")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Token == "" {
		t.Fatalf("login must issue a token")
	}
	if result.Admin.Username != "ops" {
		t.Fatalf("unexpected admin in result: %+v", result.Admin)
	}

	var reloaded model.Admin
	if err := db.Where("username = ?", "ops").First(&reloaded).Error; err != nil {
		t.Fatalf("reload admin: %v", err)
	}
	if reloaded.LastLoginAt == nil {
		t.Fatalf("last login must be stamped")
	}
}

func TestAdminLoginFailures(t *testing.T) {
	ctx := context.Background()
	db, svc := newAdminService(t)
	seedAdmin(t, db, "ops", "ops-password", "active")
	seedAdmin(t, db, "gone", "gone-password", "disabled")

	if _, err := svc.Login(ctx, "ops", "wrong"); !errors.Is(err, appErr.ErrInvalidAdminPassword) {
		t.Fatalf("expected ErrInvalidAdminPassword, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "whatever"); !errors.Is(err, appErr.ErrAdminNotFound) {
		t.Fatalf("expected ErrAdminNotFound, got %v", err)
	}
	if _, err := svc.Login(ctx, "gone", "gone-password"); !errors.Is(err, appErr.ErrAdminDisabled) {
		t.Fatalf("expected ErrAdminDisabled, got %v", err)
	}
}

func TestEnsureDefaultAdmin(t *testing.T) {
	ctx := context.Background()
	db, svc := newAdminService(t)

	if err := svc.EnsureDefaultAdmin(ctx); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	// A second run must not duplicate the account.
	if err := svc.EnsureDefaultAdmin(ctx); err != nil {
		t.Fatalf("repeat bootstrap failed: %v", err)
	}

	var count int64
	if err := db.Model(&model.Admin{}).Where("username = ?", "root").Count(&count).Error; err != nil {
		t.Fatalf("count admins: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 bootstrapped admin, got %d", count)
	}

	if _, err := svc.Login(ctx, "root", "root-password"); err != nil {
		t.Fatalf("bootstrapped admin must be able to log in: %v", err)
	}
}
