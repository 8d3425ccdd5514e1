package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"tabletop-service/internal/config"
	"tabletop-service/internal/model"
	pkgAuth "tabletop-service/pkg/auth"
	appErr "tabletop-service/pkg/errors"
	"tabletop-service/pkg/logger"
	"tabletop-service/pkg/utils/random"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLen     = 8
	maxLoginAttempts   = 5
	loginAttemptTTL    = 15 * time.Minute
	defaultNicknameLen = 6
	defaultRating      = 1200
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

type Service struct {
	db  *gorm.DB
	rdb *redis.Client
}

type LoginResult struct {
	Token    string     `json:"token"`
	ExpireAt time.Time  `json:"expireAt"`
	User     model.User `json:"user"`
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{db: db, rdb: rdb}
}

func (s *Service) Register(ctx context.Context, username, password, nickname string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, appErr.ErrInvalidUsername
	}
	if len(password) < minPasswordLen {
		return nil, appErr.ErrWeakPassword
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("username = ?", username).
		Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, appErr.ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname = "player" + random.Numeric(defaultNicknameLen)
	}

	user := model.User{
		Username:     username,
		PasswordHash: string(hash),
		Nickname:     nickname,
		Rating:       defaultRating,
		Status:       "normal",
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	logger.Log.Info("user registered",
		zap.Int64("userID", user.ID),
		zap.String("username", username),
	)

	return s.issueToken(user)
}

func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, appErr.ErrInvalidCredentials
	}

	if err := s.checkThrottle(ctx, username); err != nil {
		return nil, err
	}

	var user model.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.recordFailure(ctx, username)
			return nil, appErr.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordFailure(ctx, username)
		return nil, appErr.ErrInvalidCredentials
	}
	if strings.EqualFold(user.Status, "banned") {
		return nil, appErr.ErrUserBanned
	}

	s.rdb.Del(ctx, buildAttemptsKey(username))

	return s.issueToken(user)
}

func (s *Service) issueToken(user model.User) (*LoginResult, error) {
	token, err := pkgAuth.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}
	expireAt := time.Now().Add(time.Duration(config.GlobalConfig.JWT.Expire) * time.Hour)
	return &LoginResult{
		Token:    token,
		ExpireAt: expireAt,
		User:     user,
	}, nil
}

func (s *Service) checkThrottle(ctx context.Context, username string) error {
	count, err := s.rdb.Get(ctx, buildAttemptsKey(username)).Int()
	if err != nil && err != redis.Nil {
		// Throttle is advisory; never lock everyone out because redis
		// is unreachable.
		logger.Log.Warn("login throttle read failed", zap.Error(err))
		return nil
	}
	if count >= maxLoginAttempts {
		return appErr.ErrTooManyAttempts
	}
	return nil
}

func (s *Service) recordFailure(ctx context.Context, username string) {
	key := buildAttemptsKey(username)
	pipe := s.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, loginAttemptTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Log.Warn("login throttle update failed", zap.Error(err))
	}
}

func buildAttemptsKey(username string) string {
	return fmt.Sprintf("auth:attempts:%s", strings.ToLower(username))
}
