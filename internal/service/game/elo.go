package game

import "math"

// Score values for the first player of a pairing.
const (
	ScoreWin  = 1.0
	ScoreDraw = 0.5
	ScoreLoss = 0.0
)

const (
	provisionalGames  = 10
	intermediateGames = 20

	kProvisional  = 40.0
	kIntermediate = 32.0
	kEstablished  = 24.0
)

// kFactor widens rating swings for players with few recorded games so
// new accounts converge quickly.
func kFactor(played int) float64 {
	switch {
	case played < provisionalGames:
		return kProvisional
	case played < intermediateGames:
		return kIntermediate
	default:
		return kEstablished
	}
}

// settleRatings returns the post-game ratings for both players.
// score is from player one's perspective (1 win, 0.5 draw, 0 loss).
func settleRatings(ratingOne, ratingTwo, playedOne, playedTwo int, score float64) (int, int) {
	expectedOne := expectedScore(float64(ratingOne), float64(ratingTwo))
	expectedTwo := 1.0 - expectedOne

	newOne := float64(ratingOne) + kFactor(playedOne)*(score-expectedOne)
	newTwo := float64(ratingTwo) + kFactor(playedTwo)*((1.0-score)-expectedTwo)

	return int(math.Round(newOne)), int(math.Round(newTwo))
}

func expectedScore(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/400.0))
}
