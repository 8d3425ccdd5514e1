package user

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"tabletop-service/internal/model"
	appErr "tabletop-service/pkg/errors"
	"tabletop-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultUserPageSize = 20
	maxUserPageSize     = 100

	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100

	leaderboardKey = "leaderboard:rating"
)

type Service struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{db: db, rdb: rdb}
}

type UpdateProfileRequest struct {
	Nickname *string
	Avatar   *string
}

// PublicProfile is the user shape exposed to other players.
type PublicProfile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Rating   int    `json:"rating"`
}

type LeaderboardEntry struct {
	PublicProfile
	Rank int `json:"rank"`
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*model.User, error) {
	updates := map[string]interface{}{}
	if req.Nickname != nil {
		updates["nickname"] = strings.TrimSpace(*req.Nickname)
	}
	if req.Avatar != nil {
		updates["avatar"] = strings.TrimSpace(*req.Avatar)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return s.GetProfile(ctx, userID)
}

// PlayerRating satisfies the matchmaking queue's PlayerDirectory
// collaborator. Banned players are not matchable.
func (s *Service) PlayerRating(ctx context.Context, playerID int64) (int, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, playerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, appErr.ErrPlayerNotFound
		}
		return 0, err
	}
	if strings.EqualFold(user.Status, "banned") {
		return 0, appErr.ErrUserBanned
	}
	return user.Rating, nil
}

func (s *Service) GetStats(ctx context.Context, userID int64) ([]model.GameStats, error) {
	stats := make([]model.GameStats, 0)
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("game_type ASC").
		Find(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// CacheRating writes a user's rating into the leaderboard sorted set.
// Failures are logged, not returned; the DB stays authoritative.
func (s *Service) CacheRating(ctx context.Context, userID int64, rating int) {
	member := strconv.FormatInt(userID, 10)
	if err := s.rdb.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(rating),
		Member: member,
	}).Err(); err != nil {
		logger.Log.Warn("leaderboard cache update failed",
			zap.Int64("userID", userID),
			zap.Error(err),
		)
	}
}

// Leaderboard returns the top-rated players, preferring the redis
// sorted set and falling back to the users table when the cache is
// empty or unavailable.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}

	members, err := s.rdb.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil || len(members) == 0 {
		if err != nil && err != redis.Nil {
			logger.Log.Warn("leaderboard cache read failed", zap.Error(err))
		}
		return s.leaderboardFromDB(ctx, limit)
	}

	ids := make([]int64, 0, len(members))
	for _, member := range members {
		id, parseErr := strconv.ParseInt(member.Member.(string), 10, 64)
		if parseErr != nil {
			continue
		}
		ids = append(ids, id)
	}

	var users []model.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	entries := make([]LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			PublicProfile: toPublicProfile(u),
			Rank:          len(entries) + 1,
		})
	}
	return entries, nil
}

func (s *Service) leaderboardFromDB(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	var users []model.User
	err := s.db.WithContext(ctx).
		Where("status = ?", "normal").
		Order("rating DESC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, LeaderboardEntry{
			PublicProfile: toPublicProfile(u),
			Rank:          i + 1,
		})
		// Repopulate the cache opportunistically.
		s.CacheRating(ctx, u.ID, u.Rating)
	}
	return entries, nil
}

type AdminListUsersFilter struct {
	Page            int
	Size            int
	Status          string
	UsernameKeyword string
}

type AdminListUsersResult struct {
	Items []model.User
	Total int64
}

func (f *AdminListUsersFilter) sanitize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Size <= 0 {
		f.Size = defaultUserPageSize
	}
	if f.Size > maxUserPageSize {
		f.Size = maxUserPageSize
	}
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	f.UsernameKeyword = strings.TrimSpace(f.UsernameKeyword)
}

func applyAdminUserFilters(db *gorm.DB, filter AdminListUsersFilter) *gorm.DB {
	if filter.Status != "" {
		db = db.Where("LOWER(status) = ?", filter.Status)
	}
	if filter.UsernameKeyword != "" {
		db = db.Where("username LIKE ?", "%"+filter.UsernameKeyword+"%")
	}
	return db
}

func (s *Service) AdminListUsers(ctx context.Context, filter AdminListUsersFilter) (*AdminListUsersResult, error) {
	filter.sanitize()

	countQuery := applyAdminUserFilters(s.db.WithContext(ctx).Model(&model.User{}), filter)
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, err
	}

	result := &AdminListUsersResult{
		Items: make([]model.User, 0),
		Total: total,
	}
	if total == 0 {
		return result, nil
	}

	dataQuery := applyAdminUserFilters(s.db.WithContext(ctx).Model(&model.User{}), filter)
	if err := dataQuery.
		Order("id DESC").
		Limit(filter.Size).
		Offset((filter.Page - 1) * filter.Size).
		Find(&result.Items).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Service) AdminUpdateUserStatus(ctx context.Context, userID int64, status, reason string) (*model.User, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "normal" && status != "banned" {
		return nil, appErr.ErrInvalidUserStatus
	}
	reason = strings.TrimSpace(reason)

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, appErr.ErrUserNotFound
	}

	logger.Log.Info("admin updated user status",
		zap.Int64("userID", userID),
		zap.String("status", status),
		zap.String("reason", reason))

	return s.GetProfile(ctx, userID)
}

func toPublicProfile(u model.User) PublicProfile {
	return PublicProfile{
		ID:       u.ID,
		Username: u.Username,
		Nickname: u.Nickname,
		Avatar:   u.Avatar,
		Rating:   u.Rating,
	}
}
