package gamepresenter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/noitu-kakao-bot/internal/lookup"
	"github.com/park285/noitu-kakao-bot/internal/msgcat"
	"github.com/park285/noitu-kakao-bot/internal/noitu"
	"github.com/park285/noitu-kakao-bot/internal/wordchain"
	"github.com/park285/noitu-kakao-bot/pkg/gamedto"
)

const historyTimeLayout = "01-02 15:04"

// PrefixProvider exposes the command prefix replies should mention.
type PrefixProvider interface {
	Prefix() string
}

type staticPrefix string

func (p staticPrefix) Prefix() string { return string(p) }

// StaticPrefix wraps a fixed prefix string.
func StaticPrefix(p string) PrefixProvider { return staticPrefix(p) }

// Formatter renders game results into chat text using the message catalog.
type Formatter struct {
	cat            *msgcat.Catalog
	prefixProvider PrefixProvider
	logger         *zap.Logger
}

func NewFormatter(cat *msgcat.Catalog, provider PrefixProvider, logger *zap.Logger) *Formatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Formatter{cat: cat, prefixProvider: provider, logger: logger}
}

func (f *Formatter) Prefix() string {
	if f == nil || f.prefixProvider == nil {
		return ""
	}
	return strings.TrimSpace(f.prefixProvider.Prefix())
}

// render never fails the caller: a broken template is logged and the generic error text is used.
func (f *Formatter) render(key string, data map[string]any) string {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Prefix"]; !ok {
		data["Prefix"] = f.Prefix()
	}
	out, err := f.cat.Render(key, data)
	if err == nil {
		return out
	}
	f.logger.Error("template_render_failed", zap.String("key", key), zap.Error(err))
	if key == "common.error" {
		return "error"
	}
	return f.render("common.error", nil)
}

func (f *Formatter) Help() string { return f.render("common.help", nil) }

func (f *Formatter) Error() string { return f.render("common.error", nil) }

func (f *Formatter) UnknownCommand(cmd string) string {
	return f.render("common.unknown_command", map[string]any{"Command": cmd})
}

// --- nối từ ---

func (f *Formatter) NoituHelp(resetDelay time.Duration) string {
	return f.render("noitu.help", map[string]any{"MaxWrong": noitu.MaxWrongCount, "ResetSeconds": seconds(resetDelay)})
}

func (f *Formatter) Registered(word string) string {
	return f.render("noitu.registered", map[string]any{"Word": word})
}

func (f *Formatter) AlreadyRegistered() string { return f.render("noitu.already_registered", nil) }

func (f *Formatter) Unregistered() string { return f.render("noitu.unregistered", nil) }

func (f *Formatter) NotRegistered() string { return f.render("noitu.not_registered", nil) }

func (f *Formatter) ModeSet(mode noitu.Mode) string {
	return f.render("noitu.mode_set", map[string]any{"Mode": string(mode)})
}

func (f *Formatter) ModeUsage() string { return f.render("noitu.mode_usage", nil) }

func (f *Formatter) NoituReset(word string) string {
	return f.render("noitu.reset", map[string]any{"Word": word})
}

func (f *Formatter) ResetPending(name string, delay time.Duration) string {
	return f.render("noitu.reset_pending", map[string]any{"Name": name, "Seconds": seconds(delay)})
}

func (f *Formatter) ResetBusy() string { return f.render("noitu.reset_busy", nil) }
func (f *Formatter) ResetNone() string { return f.render("noitu.reset_none", nil) }

func (f *Formatter) ResetCancelled(name string) string {
	return f.render("noitu.reset_cancelled", map[string]any{"Name": name})
}

func (f *Formatter) ResetDone(name, word string) string {
	return f.render("noitu.reset_done", map[string]any{"Name": name, "Word": word})
}

// seconds rounds d up to whole seconds.
func seconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

func (f *Formatter) CurrentWord(word string) string {
	if word == "" {
		return f.render("noitu.no_word", nil)
	}
	return f.render("noitu.current_word", map[string]any{"Word": word})
}

func (f *Formatter) NoituStats(name string, st noitu.UserStats) string {
	return f.render("noitu.stats", map[string]any{
		"Name":    name,
		"Current": st.CurrentStreak,
		"Best":    st.BestStreak,
		"Wins":    st.Wins,
		"Word":    st.Word,
	})
}

func (f *Formatter) NoituDefineUsage() string { return f.render("noitu.define_usage", nil) }

// NoituDefine formats a Vietnamese lookup; err is the error Lookup returned.
func (f *Formatter) NoituDefine(word string, entry lookup.Entry, err error) string {
	switch {
	case errors.Is(err, lookup.ErrNotFound):
		return f.render("noitu.define_missing", map[string]any{"Word": word})
	case err != nil:
		return f.render("noitu.define_unavailable", nil)
	}
	if entry.Word != "" {
		word = entry.Word
	}
	return f.render("noitu.define", map[string]any{"Word": word, "Meanings": entry.Meanings})
}

// NoituMove renders one processed submission. name is the mover's display name.
func (f *Formatter) NoituMove(res noitu.MoveResult, name string) string {
	switch res.Code {
	case noitu.CodeNewGame:
		return f.render("noitu.move.new_game", map[string]any{"Word": res.Word})
	case noitu.CodeOK:
		if res.Mode == noitu.ModePvP && !res.Solo {
			return f.render("noitu.move.ok_pvp", map[string]any{
				"Played": res.Played,
				"Next":   lastSyllable(res.Played),
				"Status": res.StatusLine(),
			})
		}
		return f.render("noitu.move.ok_bot", map[string]any{"BotWord": res.BotWord})
	case noitu.CodeInvalidFormat:
		return f.render("noitu.move.invalid_format", map[string]any{"Expected": res.Expected})
	case noitu.CodeMismatch, noitu.CodeRepeated, noitu.CodeNotInDict:
		return f.noituMistake(res, name)
	case noitu.CodeWin:
		return f.render("noitu.move.win", map[string]any{
			"Status": res.StatusLine(),
			"Last":   res.Played,
			"Word":   res.Word,
		})
	case noitu.CodeLoss:
		return f.render("noitu.move.loss", map[string]any{
			"Status":  res.StatusLine(),
			"BotWord": res.BotWord,
			"Word":    res.Word,
		})
	}
	return ""
}

func (f *Formatter) noituMistake(res noitu.MoveResult, name string) string {
	switch {
	case res.StreakReset:
		return f.render("noitu.move.streak_reset", map[string]any{
			"Name":   name,
			"Streak": res.Previous.CurrentStreak,
			"Best":   res.Stats.BestStreak,
		})
	case res.Reset:
		return f.render("noitu.move.game_over", map[string]any{
			"Name":     name,
			"MaxWrong": noitu.MaxWrongCount,
			"Streak":   res.Previous.CurrentStreak,
			"Best":     res.Stats.BestStreak,
			"Word":     res.Word,
		})
	}
	return f.render("noitu.move."+string(res.Code), map[string]any{
		"Expected":  res.Expected,
		"Played":    res.Played,
		"Remaining": res.Remaining,
	})
}

func lastSyllable(phrase string) string {
	parts := noitu.Syllables(phrase)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// --- word chain ---

func (f *Formatter) WordChainHelp(turn time.Duration) string {
	return f.render("wc.help", map[string]any{"TurnSeconds": int(turn.Seconds())})
}

func (f *Formatter) MatchStarted(m *wordchain.Match, abort time.Duration) string {
	name := ""
	if m != nil && len(m.Players) > 0 {
		name = m.Players[0].Name
	}
	return f.render("wc.started", map[string]any{"Name": name, "AbortSeconds": int(abort.Seconds())})
}

func (f *Formatter) PlayerJoined(m *wordchain.Match, playerID string) string {
	name := playerID
	if p := m.Player(playerID); p != nil {
		name = p.Name
	}
	return f.render("wc.joined", map[string]any{"Name": name, "Players": len(m.Players)})
}

func (f *Formatter) MatchInProgress() string { return f.render("wc.in_progress", nil) }

func (f *Formatter) NoMatch() string { return f.render("wc.no_match", nil) }

func (f *Formatter) AlreadyJoined() string { return f.render("wc.already_joined", nil) }

func (f *Formatter) MatchAborted() string { return f.render("wc.aborted", nil) }

func (f *Formatter) AbortTimeout() string { return f.render("wc.abort_timeout", nil) }

type stateRow struct {
	Current bool
	Name    string
	Points  int
	Out     bool
}

func (f *Formatter) MatchState(m *wordchain.Match) string {
	if m == nil {
		return f.NoMatch()
	}
	current := m.Current()
	rows := make([]stateRow, 0, len(m.Players))
	for _, p := range m.Players {
		rows = append(rows, stateRow{
			Current: current != nil && current.ID == p.ID && m.Status != wordchain.StatusEnded,
			Name:    p.Name,
			Points:  p.Points,
			Out:     p.IsOut,
		})
	}
	return f.render("wc.state", map[string]any{
		"Status":     string(m.Status),
		"Turn":       m.TurnNumber,
		"Players":    rows,
		"LastWord":   m.LastWord,
		"LastLetter": m.LastLetter,
	})
}

func (f *Formatter) WordChainStats(name string, p wordchain.Profile) string {
	winRate, avg := "0", "0"
	if p.GamesPlayed > 0 {
		winRate = fmt.Sprintf("%.1f", float64(p.GamesWon)*100/float64(p.GamesPlayed))
		avg = fmt.Sprintf("%.1f", float64(p.TotalPoints)/float64(p.GamesPlayed))
	}
	return f.render("wc.stats", map[string]any{
		"Name":      name,
		"Played":    p.GamesPlayed,
		"Won":       p.GamesWon,
		"WinRate":   winRate,
		"Words":     p.TotalWords,
		"Points":    p.TotalPoints,
		"Best":      p.BestStreak,
		"AvgPoints": avg,
	})
}

func (f *Formatter) WordChainDefineUsage() string { return f.render("wc.define_usage", nil) }

// WordChainDefine formats an English lookup; err is the error Define returned.
func (f *Formatter) WordChainDefine(word string, v lookup.Validation, err error) string {
	switch {
	case errors.Is(err, lookup.ErrNotFound):
		return f.render("wc.define_missing", map[string]any{"Word": word})
	case err != nil:
		return f.render("wc.define_unavailable", nil)
	}
	if v.Word != "" {
		word = v.Word
	}
	return f.render("wc.define", map[string]any{"Word": word, "Phonetic": v.Phonetic, "Meanings": v.Meanings})
}

func (f *Formatter) HistoryUnavailable() string { return f.render("wc.history_unavailable", nil) }

type historyRow struct {
	EndedAt string
	Winner  string
	Players int
	Turns   int
}

func (f *Formatter) History(list []gamedto.MatchSummary) string {
	if len(list) == 0 {
		return f.render("wc.history_empty", nil)
	}
	rows := make([]historyRow, 0, len(list))
	for _, s := range list {
		winner := s.Winner
		if winner == "" {
			winner = "-"
		}
		rows = append(rows, historyRow{
			EndedAt: s.EndedAt.Local().Format(historyTimeLayout),
			Winner:  winner,
			Players: s.Players,
			Turns:   s.Turns,
		})
	}
	return f.render("wc.history", map[string]any{"Matches": rows})
}

// WordMove renders a ProcessWord result. Ignored submissions render as "".
func (f *Formatter) WordMove(res wordchain.WordResult) string {
	switch res.Code {
	case wordchain.CodeOK:
		next := ""
		if res.NextPlayer != nil {
			next = res.NextPlayer.Name
		}
		return f.render("wc.move.ok", map[string]any{
			"Word":   res.Word,
			"Score":  res.Score,
			"Next":   next,
			"Letter": lastLetter(res.Word),
		})
	case wordchain.CodeInvalidWord:
		return f.render("wc.move.invalid_word", map[string]any{"Word": res.Word})
	case wordchain.CodeWrongLetter:
		return f.render("wc.move.wrong_letter", map[string]any{"Expected": res.Expected})
	case wordchain.CodeRepeated:
		return f.render("wc.move.repeated", map[string]any{"Word": res.Word})
	case wordchain.CodeNotYourTurn:
		next := ""
		if res.NextPlayer != nil {
			next = res.NextPlayer.Name
		}
		return f.render("wc.move.not_your_turn", map[string]any{"Next": next})
	case wordchain.CodeNotEnoughPlayers:
		return f.render("wc.move.not_enough_players", nil)
	case wordchain.CodeLookupUnavailable:
		return f.render("wc.move.lookup_unavailable", nil)
	}
	return ""
}

// Knockout announces a knockout and either the next turn or the final result.
func (f *Formatter) Knockout(res *wordchain.KnockoutResult) string {
	if res == nil {
		return ""
	}
	lines := make([]string, 0, 2)
	if res.KnockedOut != nil {
		lines = append(lines, f.render("wc.knocked_out", map[string]any{"Name": res.KnockedOut.Name}))
	}
	switch {
	case res.GameOver && res.Winner != nil:
		lines = append(lines, f.render("wc.game_over", map[string]any{
			"Name":   res.Winner.Name,
			"Points": res.Winner.Points,
			"Words":  res.Winner.WordsPlayed,
		}))
	case res.GameOver:
		lines = append(lines, f.render("wc.game_over_nobody", nil))
	case res.NextPlayer != nil:
		letter := ""
		if res.Match != nil {
			letter = res.Match.LastLetter
		}
		lines = append(lines, f.Turn(res.NextPlayer.Name, letter))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) Turn(name, letter string) string {
	return f.render("wc.turn", map[string]any{"Name": name, "Letter": letter})
}

func lastLetter(word string) string {
	r := []rune(word)
	if len(r) == 0 {
		return ""
	}
	return string(r[len(r)-1])
}
