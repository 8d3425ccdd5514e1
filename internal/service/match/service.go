package match

import (
	"context"
	"strings"
	"sync"
	"time"

	"tabletop-service/internal/model"
	appErr "tabletop-service/pkg/errors"
	"tabletop-service/pkg/logger"

	"go.uber.org/zap"
)

// PlayerDirectory resolves a player's current skill rating.
type PlayerDirectory interface {
	PlayerRating(ctx context.Context, playerID int64) (int, error)
}

// GameRecorder persists matches and serves the status-poll fallback
// lookup for games created moments earlier.
type GameRecorder interface {
	CreateGame(ctx context.Context, gameType string, firstPlayerID, secondPlayerID int64) (*model.Game, error)
	RecentGameFor(ctx context.Context, playerID int64, gameType string, window time.Duration) (*model.Game, error)
}

type Config struct {
	StaleAfter       time.Duration
	SweepInterval    time.Duration
	RecentGameWindow time.Duration
}

func defaultConfig() Config {
	return Config{
		StaleAfter:       5 * time.Minute,
		SweepInterval:    time.Minute,
		RecentGameWindow: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := defaultConfig()
	if c.StaleAfter <= 0 {
		c.StaleAfter = def.StaleAfter
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.RecentGameWindow <= 0 {
		c.RecentGameWindow = def.RecentGameWindow
	}
	return c
}

// Service is the in-memory matchmaking queue. All queue state lives in
// a single map guarded by mu; the search-remove-create sequence runs as
// one critical section so two concurrent joins can never both claim the
// same waiting entry.
type Service struct {
	players PlayerDirectory
	games   GameRecorder
	cfg     Config

	mu      sync.Mutex
	entries map[int64]QueueEntry

	startOnce sync.Once
}

func NewService(players PlayerDirectory, games GameRecorder, cfg Config) *Service {
	return &Service{
		players: players,
		games:   games,
		cfg:     cfg.withDefaults(),
		entries: make(map[int64]QueueEntry),
	}
}

// Join enqueues the player, or matches them immediately against the
// closest-rated waiter of the same game type. Re-joining while already
// queued replaces the old entry instead of duplicating it.
func (s *Service) Join(ctx context.Context, playerID int64, gameType string) (*JoinResult, error) {
	gameType = strings.TrimSpace(gameType)
	if gameType == "" {
		return nil, appErr.ErrInvalidGameType
	}

	rating, err := s.players.PlayerRating(ctx, playerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, playerID)

	candidate, found := s.closestWaiter(playerID, rating, gameType)
	if !found {
		s.entries[playerID] = QueueEntry{
			PlayerID:   playerID,
			Rating:     rating,
			GameType:   gameType,
			EnqueuedAt: time.Now(),
		}
		size := s.partitionSize(gameType)
		logger.Log.Info("player queued",
			zap.Int64("playerID", playerID),
			zap.String("gameType", gameType),
			zap.Int("rating", rating),
			zap.Int("queueSize", size),
		)
		return &JoinResult{Status: QueueStatusWaiting, QueueSize: size}, nil
	}

	delete(s.entries, candidate.PlayerID)

	// The waiter was queued first and takes the first slot.
	game, err := s.games.CreateGame(ctx, gameType, candidate.PlayerID, playerID)
	if err != nil {
		// Restore the waiter's original entry so a storage hiccup does
		// not strand them outside the queue.
		s.entries[candidate.PlayerID] = candidate
		return nil, err
	}

	logger.Log.Info("players matched",
		zap.Int64("playerID", playerID),
		zap.Int64("opponentID", candidate.PlayerID),
		zap.String("gameType", gameType),
		zap.Int64("gameID", game.ID),
		zap.Int("ratingGap", absDiff(rating, candidate.Rating)),
	)
	return &JoinResult{Status: QueueStatusMatched, Game: game}, nil
}

// Cancel removes the player's queue entry. Other entries are untouched.
func (s *Service) Cancel(ctx context.Context, playerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[playerID]
	if !ok {
		return appErr.ErrNotInQueue
	}
	delete(s.entries, playerID)

	logger.Log.Info("queue cancelled",
		zap.Int64("playerID", playerID),
		zap.String("gameType", entry.GameType),
	)
	return nil
}

// Status reports the player's queue state. While queued it re-runs the
// match search, since a compatible waiter may have arrived since the
// last poll; the poller then takes the first slot. When not queued it
// checks for a game created within the recency window, covering the
// race where another player's Join matched this player between polls.
func (s *Service) Status(ctx context.Context, playerID int64, gameType string) (*StatusResult, error) {
	gameType = strings.TrimSpace(gameType)
	if gameType == "" {
		return nil, appErr.ErrInvalidGameType
	}

	s.mu.Lock()
	entry, ok := s.entries[playerID]
	if !ok {
		s.mu.Unlock()
		game, err := s.games.RecentGameFor(ctx, playerID, gameType, s.cfg.RecentGameWindow)
		if err != nil {
			return nil, err
		}
		if game != nil {
			return &StatusResult{Status: QueueStatusMatched, Game: game}, nil
		}
		return &StatusResult{Status: QueueStatusIdle}, nil
	}
	defer s.mu.Unlock()

	candidate, found := s.closestWaiter(playerID, entry.Rating, entry.GameType)
	if !found {
		return &StatusResult{
			Status:    QueueStatusWaiting,
			QueueSize: s.partitionSize(entry.GameType),
		}, nil
	}

	delete(s.entries, playerID)
	delete(s.entries, candidate.PlayerID)

	game, err := s.games.CreateGame(ctx, entry.GameType, playerID, candidate.PlayerID)
	if err != nil {
		s.entries[playerID] = entry
		s.entries[candidate.PlayerID] = candidate
		return nil, err
	}

	logger.Log.Info("players matched on poll",
		zap.Int64("playerID", playerID),
		zap.Int64("opponentID", candidate.PlayerID),
		zap.String("gameType", entry.GameType),
		zap.Int64("gameID", game.ID),
	)
	return &StatusResult{Status: QueueStatusMatched, Game: game}, nil
}

// closestWaiter finds the same-partition entry minimizing the rating
// gap, excluding the requester. Ties go to whichever entry map
// iteration surfaces first. Callers must hold mu.
func (s *Service) closestWaiter(playerID int64, rating int, gameType string) (QueueEntry, bool) {
	var (
		best     QueueEntry
		bestDiff int
		found    bool
	)
	for _, entry := range s.entries {
		if entry.PlayerID == playerID || entry.GameType != gameType {
			continue
		}
		diff := absDiff(entry.Rating, rating)
		if !found || diff < bestDiff {
			best = entry
			bestDiff = diff
			found = true
		}
	}
	return best, found
}

// partitionSize counts entries for one game type. Callers must hold mu.
func (s *Service) partitionSize(gameType string) int {
	n := 0
	for _, entry := range s.entries {
		if entry.GameType == gameType {
			n++
		}
	}
	return n
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
