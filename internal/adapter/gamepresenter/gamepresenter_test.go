package gamepresenter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/park285/noitu-kakao-bot/internal/lookup"
	"github.com/park285/noitu-kakao-bot/internal/msgcat"
	"github.com/park285/noitu-kakao-bot/internal/noitu"
	"github.com/park285/noitu-kakao-bot/internal/wordchain"
	"github.com/park285/noitu-kakao-bot/pkg/gamedto"
)

func newFormatter(t *testing.T) *Formatter {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	return NewFormatter(cat, StaticPrefix(";"), nil)
}

func TestNoituMoveMessages(t *testing.T) {
	f := newFormatter(t)

	ok := f.NoituMove(noitu.MoveResult{Code: noitu.CodeOK, Mode: noitu.ModeBot, BotWord: "hoa hồng"}, "An")
	if ok != "hoa hồng" {
		t.Fatalf("bot reply should be the bare word, got %q", ok)
	}

	pvp := f.NoituMove(noitu.MoveResult{Code: noitu.CodeOK, Mode: noitu.ModePvP, Played: "con mèo", Stats: noitu.PlayerStats{CurrentStreak: 2, BestStreak: 4}}, "An")
	if !strings.Contains(pvp, "\"mèo\"") || !strings.Contains(pvp, "Chuỗi hiện tại: 2") {
		t.Fatalf("unexpected pvp reply %q", pvp)
	}

	miss := f.NoituMove(noitu.MoveResult{Code: noitu.CodeMismatch, Expected: "mèo", Remaining: 2}, "An")
	if !strings.Contains(miss, "\"mèo\"") || !strings.Contains(miss, "còn 2") {
		t.Fatalf("unexpected mismatch %q", miss)
	}

	over := f.NoituMove(noitu.MoveResult{Code: noitu.CodeNotInDict, Reset: true, Word: "bàn ghế", Previous: noitu.PlayerStats{CurrentStreak: 5}, Stats: noitu.PlayerStats{BestStreak: 7}}, "An")
	if !strings.Contains(over, "An đã sai 3 lần") || !strings.Contains(over, "Chuỗi đạt được: 5") || !strings.Contains(over, "bàn ghế") {
		t.Fatalf("unexpected game over %q", over)
	}

	reset := f.NoituMove(noitu.MoveResult{Code: noitu.CodeRepeated, StreakReset: true, Previous: noitu.PlayerStats{CurrentStreak: 3}, Stats: noitu.PlayerStats{BestStreak: 3}}, "Bình")
	if !strings.Contains(reset, "Chuỗi của Bình đã bị reset") {
		t.Fatalf("unexpected streak reset %q", reset)
	}

	loss := f.NoituMove(noitu.MoveResult{Code: noitu.CodeLoss, BotWord: "ăn ý", Word: "cây cỏ"}, "An")
	if !strings.Contains(loss, "\"ăn ý\"") || !strings.Contains(loss, "cây cỏ") {
		t.Fatalf("unexpected loss %q", loss)
	}
}

func TestDefineMessages(t *testing.T) {
	f := newFormatter(t)
	if got := f.NoituDefine("xà phòng", lookup.Entry{}, lookup.ErrNotFound); !strings.Contains(got, "hán việt") {
		t.Fatalf("unexpected missing text %q", got)
	}
	if got := f.WordChainDefine("apple", lookup.Validation{}, errors.Join(lookup.ErrUnavailable, errors.New("dial"))); !strings.Contains(got, "unreachable") {
		t.Fatalf("unexpected unavailable text %q", got)
	}

	v := lookup.Validation{Word: "apple", Valid: true, Phonetic: "/ˈæp.əl/", Meanings: []lookup.Meaning{{PartOfSpeech: "noun", Definitions: []lookup.Definition{{Definition: "A fruit."}}}}}
	got := f.WordChainDefine("apple", v, nil)
	if !strings.Contains(got, "noun") || !strings.Contains(got, "• A fruit.") {
		t.Fatalf("unexpected definition %q", got)
	}
}

func TestWordChainStatsRates(t *testing.T) {
	f := newFormatter(t)
	got := f.WordChainStats("Lan", wordchain.Profile{GamesPlayed: 3, GamesWon: 1, TotalPoints: 40, TotalWords: 9, BestStreak: 5})
	if !strings.Contains(got, "(33.3%)") || !strings.Contains(got, "Avg points: 13.3") {
		t.Fatalf("unexpected stats %q", got)
	}
	empty := f.WordChainStats("Lan", wordchain.Profile{})
	if !strings.Contains(empty, "(0%)") {
		t.Fatalf("unexpected empty stats %q", empty)
	}
}

func TestKnockoutMessages(t *testing.T) {
	f := newFormatter(t)
	a := &wordchain.Player{ID: "a", Name: "Ann", Points: 12, WordsPlayed: 3}
	b := &wordchain.Player{ID: "b", Name: "Bob", IsOut: true}
	c := &wordchain.Player{ID: "c", Name: "Cid"}

	over := f.Knockout(&wordchain.KnockoutResult{GameOver: true, KnockedOut: b, Winner: a})
	if !strings.Contains(over, "Bob was knocked out") || !strings.Contains(over, "Ann wins with 12 points and 3 words") {
		t.Fatalf("unexpected game over %q", over)
	}

	next := f.Knockout(&wordchain.KnockoutResult{KnockedOut: b, NextPlayer: c, Match: &wordchain.Match{LastLetter: "e"}})
	if !strings.Contains(next, "Cid's turn") || !strings.Contains(next, "\"e\"") {
		t.Fatalf("unexpected next turn %q", next)
	}

	open := f.Turn("Cid", "")
	if !strings.Contains(open, "any word") {
		t.Fatalf("expected open-chain hint, got %q", open)
	}
}

func TestWordMoveIgnoredIsSilent(t *testing.T) {
	f := newFormatter(t)
	if got := f.WordMove(wordchain.WordResult{Code: wordchain.CodeIgnored}); got != "" {
		t.Fatalf("expected silence, got %q", got)
	}
	got := f.WordMove(wordchain.WordResult{Code: wordchain.CodeOK, Word: "apple", Score: 5, NextPlayer: &wordchain.Player{Name: "Bob"}})
	if !strings.Contains(got, "apple (+5)") || !strings.Contains(got, "Bob's turn") || !strings.Contains(got, "\"e\"") {
		t.Fatalf("unexpected ok %q", got)
	}
}

func TestToScoreboardRanksWinnerFirst(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	m := &wordchain.Match{
		Status:     wordchain.StatusEnded,
		WinnerID:   "b",
		TurnNumber: 6,
		StartedAt:  start,
		EndedAt:    &end,
		Players: []*wordchain.Player{
			{ID: "a", Name: "Ann", Points: 20, IsOut: true},
			{ID: "b", Name: "Bob", Points: 9},
			{ID: "c", Name: "Cid", Points: 14, IsOut: true},
		},
	}
	sb := ToScoreboard(m)
	if len(sb.Rows) != 3 || sb.Rows[0].Name != "Bob" || !sb.Rows[0].Winner {
		t.Fatalf("winner must rank first: %+v", sb.Rows)
	}
	if sb.Rows[1].Name != "Ann" || sb.Rows[2].Rank != 3 {
		t.Fatalf("unexpected order: %+v", sb.Rows)
	}
	if sb.Turns != 5 || sb.Duration != 90*time.Second {
		t.Fatalf("turns=%d duration=%v", sb.Turns, sb.Duration)
	}
}

func TestHistoryFormatting(t *testing.T) {
	f := newFormatter(t)
	if got := f.History(nil); !strings.Contains(got, "No archived matches") {
		t.Fatalf("unexpected empty history %q", got)
	}
	got := f.History([]gamedto.MatchSummary{{Winner: "", Players: 3, Turns: 7, EndedAt: time.Now()}})
	if !strings.Contains(got, "🏆 -") || !strings.Contains(got, "7 turns") {
		t.Fatalf("unexpected history %q", got)
	}
}

type sentReply struct{ kind, room, data string }

type fakeEgress struct{ sent []sentReply }

func (f *fakeEgress) SendText(_ context.Context, room, message string) error {
	f.sent = append(f.sent, sentReply{"text", room, message})
	return nil
}

func (f *fakeEgress) SendImage(_ context.Context, room, data string) error {
	f.sent = append(f.sent, sentReply{"image", room, data})
	return nil
}

type fakeRenderer struct{ err error }

func (r fakeRenderer) RenderPNG(context.Context, gamedto.Scoreboard) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("png"), nil
}

func TestPresenterMatchOverSendsCard(t *testing.T) {
	eg := &fakeEgress{}
	end := time.Now()
	m := &wordchain.Match{ID: "m1", Status: wordchain.StatusEnded, EndedAt: &end, Players: []*wordchain.Player{{ID: "a", Name: "Ann"}}}

	p := NewPresenter(eg, fakeRenderer{}, nil)
	if err := p.MatchOver(context.Background(), "room", "over", m); err != nil {
		t.Fatalf("MatchOver: %v", err)
	}
	if len(eg.sent) != 2 || eg.sent[0].data != "over" || eg.sent[1].kind != "image" || eg.sent[1].data != "cG5n" {
		t.Fatalf("unexpected replies %+v", eg.sent)
	}

	eg.sent = nil
	p = NewPresenter(eg, fakeRenderer{err: errors.New("boom")}, nil)
	if err := p.MatchOver(context.Background(), "room", "over", m); err != nil {
		t.Fatalf("render failure must not fail: %v", err)
	}
	if len(eg.sent) != 1 {
		t.Fatalf("expected text only, got %+v", eg.sent)
	}

	if err := p.Text(context.Background(), "room", "  "); err != nil || len(eg.sent) != 1 {
		t.Fatalf("blank text must be skipped")
	}
}
