package game

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"tabletop-service/internal/model"
	"tabletop-service/internal/service/user"
	appErr "tabletop-service/pkg/errors"
	"tabletop-service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultGamePageSize = 20
	maxGamePageSize     = 100
)

// Outcomes a participant can report when finishing a game.
const (
	OutcomeWin    = "win"
	OutcomeDraw   = "draw"
	OutcomeResign = "resign"
)

type Service struct {
	db    *gorm.DB
	users *user.Service
}

func NewService(db *gorm.DB, users *user.Service) *Service {
	return &Service{db: db, users: users}
}

// CreateGame persists a new in-progress game. The first player moves
// first. Satisfies the matchmaking queue's GameRecorder collaborator.
func (s *Service) CreateGame(ctx context.Context, gameType string, firstPlayerID, secondPlayerID int64) (*model.Game, error) {
	game := model.Game{
		PublicID:    uuid.NewString(),
		GameType:    gameType,
		PlayerOneID: firstPlayerID,
		PlayerTwoID: secondPlayerID,
		Status:      model.GameStatusInProgress,
		TurnUserID:  firstPlayerID,
	}
	if err := s.db.WithContext(ctx).Create(&game).Error; err != nil {
		return nil, err
	}

	logger.Log.Info("game created",
		zap.Int64("gameID", game.ID),
		zap.String("gameType", gameType),
		zap.Int64("playerOneID", firstPlayerID),
		zap.Int64("playerTwoID", secondPlayerID),
	)

	return s.loadGameWithPlayers(ctx, game.ID)
}

// RecentGameFor returns the newest in-progress game of the given type
// involving the player, created within the window. Backs the queue's
// status-poll fallback; nil means no such game.
func (s *Service) RecentGameFor(ctx context.Context, playerID int64, gameType string, window time.Duration) (*model.Game, error) {
	since := time.Now().Add(-window)

	var game model.Game
	err := s.db.WithContext(ctx).
		Preload("PlayerOne").
		Preload("PlayerTwo").
		Where("game_type = ? AND status = ?", gameType, model.GameStatusInProgress).
		Where("player_one_id = ? OR player_two_id = ?", playerID, playerID).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &game, nil
}

func (s *Service) GetGame(ctx context.Context, gameID int64) (*model.Game, error) {
	return s.loadGameWithPlayers(ctx, gameID)
}

func (s *Service) GetGameByPublicID(ctx context.Context, publicID string) (*model.Game, error) {
	var game model.Game
	err := s.db.WithContext(ctx).
		Preload("PlayerOne").
		Preload("PlayerTwo").
		Where("public_id = ?", strings.TrimSpace(publicID)).
		First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

type ListGamesResult struct {
	Items []model.Game
	Total int64
}

func (s *Service) ListGames(ctx context.Context, userID int64, page, size int) (*ListGamesResult, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultGamePageSize
	}
	if size > maxGamePageSize {
		size = maxGamePageSize
	}

	base := s.db.WithContext(ctx).Model(&model.Game{}).
		Where("player_one_id = ? OR player_two_id = ?", userID, userID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	result := &ListGamesResult{Items: make([]model.Game, 0), Total: total}
	if total == 0 {
		return result, nil
	}

	err := s.db.WithContext(ctx).Model(&model.Game{}).
		Preload("PlayerOne").
		Preload("PlayerTwo").
		Where("player_one_id = ? OR player_two_id = ?", userID, userID).
		Order("id DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&result.Items).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitMove appends a move for the participant whose turn it is and
// flips the turn. board, when present, replaces the stored board state.
func (s *Service) SubmitMove(ctx context.Context, gameID, userID int64, payload, board json.RawMessage) (*model.GameMove, error) {
	var move model.GameMove

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var game model.Game
		if err := tx.First(&game, gameID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.ErrGameNotFound
			}
			return err
		}
		if game.PlayerOneID != userID && game.PlayerTwoID != userID {
			return appErr.ErrGameAccessDenied
		}
		if game.Status != model.GameStatusInProgress {
			return appErr.ErrGameFinished
		}
		if game.TurnUserID != userID {
			return appErr.ErrNotYourTurn
		}

		var moveCount int64
		if err := tx.Model(&model.GameMove{}).Where("game_id = ?", gameID).Count(&moveCount).Error; err != nil {
			return err
		}

		move = model.GameMove{
			GameID:      gameID,
			UserID:      userID,
			MoveNo:      int(moveCount) + 1,
			PayloadJSON: datatypes.JSON(payload),
		}
		if err := tx.Create(&move).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"turn_user_id": otherPlayer(game, userID),
		}
		if len(board) > 0 {
			updates["board_json"] = datatypes.JSON(board)
		}
		return tx.Model(&model.Game{}).Where("id = ?", gameID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &move, nil
}

func (s *Service) ListMoves(ctx context.Context, gameID int64) ([]model.GameMove, error) {
	moves := make([]model.GameMove, 0)
	err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("move_no ASC").
		Find(&moves).Error
	if err != nil {
		return nil, err
	}
	return moves, nil
}

// FinishGame records the outcome reported by a participant, settles
// both players' ratings and per-game-type statistics in one
// transaction, then refreshes the leaderboard cache.
func (s *Service) FinishGame(ctx context.Context, gameID, userID int64, outcome string) (*model.Game, error) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	if outcome != OutcomeWin && outcome != OutcomeDraw && outcome != OutcomeResign {
		return nil, appErr.ErrInvalidOutcome
	}

	var (
		ratingOne int
		ratingTwo int
		oneID     int64
		twoID     int64
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var game model.Game
		if err := tx.First(&game, gameID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.ErrGameNotFound
			}
			return err
		}
		if game.PlayerOneID != userID && game.PlayerTwoID != userID {
			return appErr.ErrGameAccessDenied
		}
		if game.Status != model.GameStatusInProgress {
			return appErr.ErrGameFinished
		}

		oneID, twoID = game.PlayerOneID, game.PlayerTwoID

		var playerOne, playerTwo model.User
		if err := tx.First(&playerOne, game.PlayerOneID).Error; err != nil {
			return err
		}
		if err := tx.First(&playerTwo, game.PlayerTwoID).Error; err != nil {
			return err
		}

		score, winnerID := outcomeScore(game, userID, outcome)

		statsOne, err := loadOrCreateStats(tx, game.PlayerOneID, game.GameType)
		if err != nil {
			return err
		}
		statsTwo, err := loadOrCreateStats(tx, game.PlayerTwoID, game.GameType)
		if err != nil {
			return err
		}

		ratingOne, ratingTwo = settleRatings(
			playerOne.Rating, playerTwo.Rating,
			statsOne.Played, statsTwo.Played,
			score,
		)

		now := time.Now()
		status := model.GameStatusFinished
		if outcome == OutcomeResign {
			status = model.GameStatusAbandoned
		}

		gameUpdates := map[string]interface{}{
			"status":   status,
			"ended_at": now,
		}
		if winnerID != 0 {
			gameUpdates["winner_id"] = winnerID
		}
		if err := tx.Model(&model.Game{}).Where("id = ?", gameID).Updates(gameUpdates).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.User{}).Where("id = ?", game.PlayerOneID).
			Update("rating", ratingOne).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.User{}).Where("id = ?", game.PlayerTwoID).
			Update("rating", ratingTwo).Error; err != nil {
			return err
		}

		applyOutcome(statsOne, score)
		applyOutcome(statsTwo, 1.0-score)
		if err := tx.Save(statsOne).Error; err != nil {
			return err
		}
		return tx.Save(statsTwo).Error
	})
	if err != nil {
		return nil, err
	}

	// Leaderboard refresh is best-effort; ratings in the DB are
	// authoritative and the read path falls back to them.
	s.users.CacheRating(ctx, oneID, ratingOne)
	s.users.CacheRating(ctx, twoID, ratingTwo)

	logger.Log.Info("game finished",
		zap.Int64("gameID", gameID),
		zap.String("outcome", outcome),
		zap.Int("ratingOne", ratingOne),
		zap.Int("ratingTwo", ratingTwo),
	)

	return s.loadGameWithPlayers(ctx, gameID)
}

func (s *Service) loadGameWithPlayers(ctx context.Context, gameID int64) (*model.Game, error) {
	var game model.Game
	err := s.db.WithContext(ctx).
		Preload("PlayerOne").
		Preload("PlayerTwo").
		First(&game, gameID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

// outcomeScore maps a participant-reported outcome to player one's
// score and the winner's user ID (0 on draw).
func outcomeScore(game model.Game, reporterID int64, outcome string) (float64, int64) {
	reporterIsOne := game.PlayerOneID == reporterID

	switch outcome {
	case OutcomeDraw:
		return ScoreDraw, 0
	case OutcomeResign:
		// Resigning player loses.
		if reporterIsOne {
			return ScoreLoss, game.PlayerTwoID
		}
		return ScoreWin, game.PlayerOneID
	default: // OutcomeWin
		if reporterIsOne {
			return ScoreWin, game.PlayerOneID
		}
		return ScoreLoss, game.PlayerTwoID
	}
}

func loadOrCreateStats(tx *gorm.DB, userID int64, gameType string) (*model.GameStats, error) {
	stats := model.GameStats{UserID: userID, GameType: gameType}
	err := tx.Where(model.GameStats{UserID: userID, GameType: gameType}).
		FirstOrCreate(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func applyOutcome(stats *model.GameStats, score float64) {
	stats.Played++
	switch score {
	case ScoreWin:
		stats.Won++
	case ScoreLoss:
		stats.Lost++
	default:
		stats.Drawn++
	}
}

func otherPlayer(game model.Game, userID int64) int64 {
	if game.PlayerOneID == userID {
		return game.PlayerTwoID
	}
	return game.PlayerOneID
}
