package gamepresenter

import (
	"sort"
	"time"

	"github.com/park285/noitu-kakao-bot/internal/archive"
	"github.com/park285/noitu-kakao-bot/internal/wordchain"
	"github.com/park285/noitu-kakao-bot/pkg/gamedto"
)

const scoreboardTitle = "Word Chain"

// ToScoreboard ranks a finished match: winner first, then points, then words played.
func ToScoreboard(m *wordchain.Match) gamedto.Scoreboard {
	if m == nil {
		return gamedto.Scoreboard{}
	}
	players := make([]wordchain.Player, 0, len(m.Players))
	for _, p := range m.Players {
		if p != nil {
			players = append(players, *p)
		}
	}
	sort.SliceStable(players, func(i, j int) bool {
		a, b := players[i], players[j]
		if (a.ID == m.WinnerID) != (b.ID == m.WinnerID) {
			return a.ID == m.WinnerID
		}
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		return a.WordsPlayed > b.WordsPlayed
	})

	rows := make([]gamedto.ScoreRow, 0, len(players))
	for i, p := range players {
		rows = append(rows, gamedto.ScoreRow{
			Rank:        i + 1,
			Name:        p.Name,
			Points:      p.Points,
			WordsPlayed: p.WordsPlayed,
			Winner:      m.WinnerID != "" && p.ID == m.WinnerID,
			KnockedOut:  p.IsOut,
		})
	}
	var d time.Duration
	if m.EndedAt != nil {
		d = m.EndedAt.Sub(m.StartedAt)
	}
	return gamedto.Scoreboard{
		Title:    scoreboardTitle,
		Subtitle: "Game Over",
		Rows:     rows,
		LastWord: m.LastWord,
		Turns:    max(0, m.TurnNumber-1),
		Duration: d,
	}
}

func ToMatchSummaries(records []archive.MatchRecord) []gamedto.MatchSummary {
	out := make([]gamedto.MatchSummary, 0, len(records))
	for _, r := range records {
		winner := ""
		if w := r.Winner(); w != nil {
			winner = w.Name
		}
		out = append(out, gamedto.MatchSummary{
			MatchID:  r.MatchID,
			Winner:   winner,
			Players:  len(r.Players),
			Turns:    r.Turns,
			EndedAt:  r.EndedAt,
			Duration: time.Duration(r.DurationMS) * time.Millisecond,
		})
	}
	return out
}
