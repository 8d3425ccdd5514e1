package game

import "testing"

func TestKFactor(t *testing.T) {
	tests := []struct {
		name   string
		played int
		want   float64
	}{
		{"brand new player", 0, 40.0},
		{"last provisional game", 9, 40.0},
		{"first intermediate game", 10, 32.0},
		{"last intermediate game", 19, 32.0},
		{"established player", 20, 24.0},
		{"veteran", 500, 24.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := kFactor(tt.played); got != tt.want {
				t.Fatalf("kFactor(%d) = %v, want %v", tt.played, got, tt.want)
			}
		})
	}
}

func TestSettleRatingsEqualOpponents(t *testing.T) {
	newOne, newTwo := settleRatings(1200, 1200, 0, 0, ScoreWin)
	if newOne != 1220 || newTwo != 1180 {
		t.Fatalf("expected 1220/1180, got %d/%d", newOne, newTwo)
	}

	// Equal K-factors make the exchange zero-sum.
	if (newOne-1200)+(newTwo-1200) != 0 {
		t.Fatalf("rating exchange not zero-sum: %d/%d", newOne, newTwo)
	}
}

func TestSettleRatingsDraw(t *testing.T) {
	newOne, newTwo := settleRatings(1200, 1200, 0, 0, ScoreDraw)
	if newOne != 1200 || newTwo != 1200 {
		t.Fatalf("draw between equals must not move ratings, got %d/%d", newOne, newTwo)
	}
}

func TestSettleRatingsUpset(t *testing.T) {
	// The lower-rated player winning gains more than a favorite would.
	newLow, newHigh := settleRatings(1000, 1400, 30, 30, ScoreWin)
	if newLow <= 1000 || newHigh >= 1400 {
		t.Fatalf("upset must raise the winner and lower the loser, got %d/%d", newLow, newHigh)
	}
	if gain := newLow - 1000; gain <= 12 {
		t.Fatalf("upset gain should exceed the even-match gain, got %d", gain)
	}
}
