package match

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"tabletop-service/internal/model"
	appErr "tabletop-service/pkg/errors"
	"tabletop-service/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("debug")
	os.Exit(m.Run())
}

type stubDirectory struct {
	ratings map[int64]int
}

func (d stubDirectory) PlayerRating(ctx context.Context, playerID int64) (int, error) {
	rating, ok := d.ratings[playerID]
	if !ok {
		return 0, appErr.ErrPlayerNotFound
	}
	return rating, nil
}

type createdGame struct {
	gameType string
	firstID  int64
	secondID int64
}

type stubRecorder struct {
	mu         sync.Mutex
	nextID     int64
	created    []createdGame
	failCreate bool
	recent     *model.Game
}

func (r *stubRecorder) CreateGame(ctx context.Context, gameType string, firstPlayerID, secondPlayerID int64) (*model.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failCreate {
		return nil, errors.New("storage unavailable")
	}
	r.nextID++
	r.created = append(r.created, createdGame{
		gameType: gameType,
		firstID:  firstPlayerID,
		secondID: secondPlayerID,
	})
	return &model.Game{
		ID:          r.nextID,
		GameType:    gameType,
		PlayerOneID: firstPlayerID,
		PlayerTwoID: secondPlayerID,
		Status:      model.GameStatusInProgress,
		TurnUserID:  firstPlayerID,
	}, nil
}

func (r *stubRecorder) RecentGameFor(ctx context.Context, playerID int64, gameType string, window time.Duration) (*model.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recent, nil
}

func (r *stubRecorder) gamesCreated() []createdGame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]createdGame, len(r.created))
	copy(out, r.created)
	return out
}

func newTestService(ratings map[int64]int) (*Service, *stubRecorder) {
	recorder := &stubRecorder{}
	svc := NewService(stubDirectory{ratings: ratings}, recorder, Config{})
	return svc, recorder
}

func (s *Service) entryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Service) hasEntry(playerID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[playerID]
	return ok
}

func TestJoinWaitsWhenQueueEmpty(t *testing.T) {
	ctx := context.Background()
	svc, recorder := newTestService(map[int64]int{1: 1000})

	result, err := svc.Join(ctx, 1, "chess")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if result.Status != QueueStatusWaiting {
		t.Fatalf("expected waiting, got %s", result.Status)
	}
	if result.QueueSize != 1 {
		t.Fatalf("expected queue size 1, got %d", result.QueueSize)
	}
	if len(recorder.gamesCreated()) != 0 {
		t.Fatalf("no game should have been created")
	}
}

func TestJoinMatchesWaiter(t *testing.T) {
	ctx := context.Background()
	svc, recorder := newTestService(map[int64]int{1: 1000, 2: 1050})

	if _, err := svc.Join(ctx, 1, "chess"); err != nil {
		t.Fatalf("first join failed: %v", err)
	}

	result, err := svc.Join(ctx, 2, "chess")
	if err != nil {
		t.Fatalf("second join failed: %v", err)
	}
	if result.Status != QueueStatusMatched {
		t.Fatalf("expected matched, got %s", result.Status)
	}
	if result.Game == nil {
		t.Fatalf("matched result must carry the game")
	}

	created := recorder.gamesCreated()
	if len(created) != 1 {
		t.Fatalf("expected 1 game, got %d", len(created))
	}
	// The waiting player takes the first slot.
	if created[0].firstID != 1 || created[0].secondID != 2 {
		t.Fatalf("unexpected slot assignment: %+v", created[0])
	}
	if svc.entryCount() != 0 {
		t.Fatalf("queue should be empty after a match, has %d entries", svc.entryCount())
	}
}

func TestJoinPicksClosestRating(t *testing.T) {
	ctx := context.Background()
	svc, recorder := newTestService(map[int64]int{
		1: 800,
		2: 1190,
		3: 1600,
		4: 1200,
	})

	for _, id := range []int64{1, 2, 3} {
		if _, err := svc.Join(ctx, id, "go"); err != nil {
			t.Fatalf("join %d failed: %v", id, err)
		}
	}

	result, err := svc.Join(ctx, 4, "go")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if result.Status != QueueStatusMatched {
		t.Fatalf("expected matched, got %s", result.Status)
	}

	created := recorder.gamesCreated()
	if len(created) != 1 || created[0].firstID != 2 {
		t.Fatalf("expected match against player 2 (rating 1190), got %+v", created)
	}
	if svc.entryCount() != 2 {
		t.Fatalf("players 1 and 3 should remain queued, have %d entries", svc.entryCount())
	}
}

func TestRejoinReplacesEntry(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(map[int64]int{1: 1000})

	if _, err := svc.Join(ctx, 1, "chess"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	result, err := svc.Join(ctx, 1, "chess")
	if err != nil {
		t.Fatalf("rejoin failed: %v", err)
	}
	if result.Status != QueueStatusWaiting {
		t.Fatalf("rejoin must not match the player with themselves, got %s", result.Status)
	}
	if svc.entryCount() != 1 {
		t.Fatalf("rejoin must replace the entry, have %d", svc.entryCount())
	}
}

func TestNoCrossTypeMatch(t *testing.T) {
	ctx := context.Background()
	svc, recorder := newTestService(map[int64]int{1: 1000, 2: 1000})

	if _, err := svc.Join(ctx, 1, "chess"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	result, err := svc.Join(ctx, 2, "checkers")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if result.Status != QueueStatusWaiting {
		t.Fatalf("different game types must not match, got %s", result.Status)
	}
	if len(recorder.gamesCreated()) != 0 {
		t.Fatalf("no game should have been created")
	}
	if result.QueueSize != 1 {
		t.Fatalf("checkers partition should hold 1 entry, got %d", result.QueueSize)
	}
}

func TestJoinUnknownPlayer(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(map[int64]int{1: 1000})

	if _, err := svc.Join(ctx, 99, "chess"); !errors.Is(err, appErr.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
	if svc.entryCount() != 0 {
		t.Fatalf("queue must stay unchanged on lookup failure")
	}
}

func TestJoinEmptyGameType(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(map[int64]int{1: 1000})

	if _, err := svc.Join(ctx, 1, "  "); !errors.Is(err, appErr.ErrInvalidGameType) {
		t.Fatalf("expected ErrInvalidGameType, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(map[int64]int{1: 1000, 2: 1400})

	if _, err := svc.Join(ctx, 1, "chess"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := svc.Join(ctx, 2, "checkers"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	if err := svc.Cancel(ctx, 1); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if svc.hasEntry(1) {
		t.Fatalf("entry should be gone after cancel")
	}
	if !svc.hasEntry(2) {
		t.Fatalf("cancel must not touch other entries")
	}

	if err := svc.Cancel(ctx, 1); !errors.Is(err, appErr.ErrNotInQueue) {
		t.Fatalf("expected ErrNotInQueue, got %v", err)
	}
}

func TestStatusWhileWaiting(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(map[int64]int{1: 1000})

	if _, err := svc.Join(ctx, 1, "chess"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	status, err := svc.Status(ctx, 1, "chess")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	// The lone entry must never match against itself.
	if status.Status != QueueStatusWaiting {
		t.Fatalf("expected waiting, got %s", status.Status)
	}
	if status.QueueSize != 1 {
		t.Fatalf("expected queue size 1, got %d", status.QueueSize)
	}
}

func TestStatusMatchesNewWaiter(t *testing.T) {
	ctx := context.Background()
	svc, recorder := newTestService(map[int64]int{1: 1000})

	if _, err := svc.Join(ctx, 1, "chess"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	// A second waiter appears without going through Join.
	svc.mu.Lock()
	svc.entries[2] = QueueEntry{PlayerID: 2, Rating: 1020, GameType: "chess", EnqueuedAt: time.Now()}
	svc.mu.Unlock()

	status, err := svc.Status(ctx, 1, "chess")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.Status != QueueStatusMatched {
		t.Fatalf("expected matched, got %s", status.Status)
	}

	created := recorder.gamesCreated()
	if len(created) != 1 {
		t.Fatalf("expected 1 game, got %d", len(created))
	}
	// The poller acts as matcher and takes the first slot.
	if created[0].firstID != 1 || created[0].secondID != 2 {
		t.Fatalf("unexpected slot assignment: %+v", created[0])
	}
	if svc.entryCount() != 0 {
		t.Fatalf("both entries should be removed")
	}
}

func TestStatusFallbackFindsRecentGame(t *testing.T) {
	ctx := context.Background()
	svc, recorder := newTestService(map[int64]int{1: 1000})

	recorder.recent = &model.Game{ID: 7, GameType: "chess", PlayerOneID: 2, PlayerTwoID: 1}

	status, err := svc.Status(ctx, 1, "chess")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.Status != QueueStatusMatched || status.Game == nil || status.Game.ID != 7 {
		t.Fatalf("expected matched with game 7, got %+v", status)
	}
}

func TestStatusIdle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(map[int64]int{1: 1000})

	status, err := svc.Status(ctx, 1, "chess")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.Status != QueueStatusIdle {
		t.Fatalf("expected idle, got %s", status.Status)
	}
}

func TestCreateFailureRestoresWaiter(t *testing.T) {
	ctx := context.Background()
	svc, recorder := newTestService(map[int64]int{1: 1000, 2: 1010})

	if _, err := svc.Join(ctx, 1, "chess"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	recorder.failCreate = true
	if _, err := svc.Join(ctx, 2, "chess"); err == nil {
		t.Fatalf("expected creation error")
	}

	if !svc.hasEntry(1) {
		t.Fatalf("waiter must be restored after creation failure")
	}
	if svc.hasEntry(2) {
		t.Fatalf("requester must not be enqueued on the failure path")
	}
}

func TestEvictStale(t *testing.T) {
	ctx := context.Background()
	svc, recorder := newTestService(map[int64]int{1: 1000, 2: 1000})

	if _, err := svc.Join(ctx, 1, "chess"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	// Age the entry past the staleness threshold.
	svc.mu.Lock()
	entry := svc.entries[1]
	entry.EnqueuedAt = time.Now().Add(-6 * time.Minute)
	svc.entries[1] = entry
	svc.mu.Unlock()

	if removed := svc.evictStale(time.Now()); removed != 1 {
		t.Fatalf("expected 1 eviction, got %d", removed)
	}
	if svc.hasEntry(1) {
		t.Fatalf("stale entry should be gone")
	}

	// The evicted entry must not surface in a later match search.
	result, err := svc.Join(ctx, 2, "chess")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if result.Status != QueueStatusWaiting {
		t.Fatalf("expected waiting, got %s", result.Status)
	}
	if len(recorder.gamesCreated()) != 0 {
		t.Fatalf("no game should have been created")
	}
}

func TestEvictKeepsFreshEntries(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(map[int64]int{1: 1000})

	if _, err := svc.Join(ctx, 1, "chess"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if removed := svc.evictStale(time.Now()); removed != 0 {
		t.Fatalf("fresh entry must survive the sweep, removed %d", removed)
	}
	if !svc.hasEntry(1) {
		t.Fatalf("fresh entry should still be queued")
	}
}

func TestConcurrentJoinsCreateSingleGame(t *testing.T) {
	ctx := context.Background()
	svc, recorder := newTestService(map[int64]int{1: 1000, 2: 1005, 3: 1010})

	if _, err := svc.Join(ctx, 1, "chess"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	// Two concurrent joiners race for the lone waiter: exactly one may
	// win, the other must end up waiting.
	var wg sync.WaitGroup
	results := make([]*JoinResult, 2)
	for i, playerID := range []int64{2, 3} {
		wg.Add(1)
		go func(idx int, id int64) {
			defer wg.Done()
			result, err := svc.Join(ctx, id, "chess")
			if err != nil {
				t.Errorf("join %d failed: %v", id, err)
				return
			}
			results[idx] = result
		}(i, playerID)
	}
	wg.Wait()

	created := recorder.gamesCreated()
	if len(created) != 1 {
		t.Fatalf("double-match: expected exactly 1 game, got %d", len(created))
	}

	matched, waiting := 0, 0
	for _, result := range results {
		switch result.Status {
		case QueueStatusMatched:
			matched++
		case QueueStatusWaiting:
			waiting++
		}
	}
	if matched != 1 || waiting != 1 {
		t.Fatalf("expected one matched and one waiting, got matched=%d waiting=%d", matched, waiting)
	}
	if svc.entryCount() != 1 {
		t.Fatalf("loser of the race should remain queued, have %d entries", svc.entryCount())
	}
}
