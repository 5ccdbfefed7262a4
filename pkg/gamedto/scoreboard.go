package gamedto

import "time"

// ScoreRow is one player line on a finished match card.
type ScoreRow struct {
	Rank        int
	Name        string
	Points      int
	WordsPlayed int
	Winner      bool
	KnockedOut  bool
}

// Scoreboard feeds the PNG renderer.
type Scoreboard struct {
	Title    string
	Subtitle string
	Rows     []ScoreRow
	LastWord string
	Turns    int
	Duration time.Duration
}

// MatchSummary is one line of a room's archived history.
type MatchSummary struct {
	MatchID  string
	Winner   string
	Players  int
	Turns    int
	EndedAt  time.Time
	Duration time.Duration
}
