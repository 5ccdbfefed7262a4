package noitu

import (
	"errors"
	"testing"
)

// ring: e a → a b → b c → c d → d e → e a, every syllable continues.
var ringPairs = map[string][]string{
	"a": {"b"},
	"b": {"c"},
	"c": {"d"},
	"d": {"e"},
	"e": {"a"},
}

func newTestEngine(t *testing.T, raw map[string][]string) *Engine {
	t.Helper()
	return NewEngine(mustGraph(t, raw))
}

func soloAt(word string, history ...string) *Session {
	s := NewSoloSession()
	s.Word = word
	s.History = append([]string{}, history...)
	return s
}

func channelAt(mode Mode, word string, history ...string) *Session {
	s := NewChannelSession(mode)
	s.Word = word
	s.History = append([]string{}, history...)
	return s
}

func TestProcessMoveMissingParams(t *testing.T) {
	e := newTestEngine(t, ringPairs)
	if _, err := e.ProcessMove(nil, "a b", "u1"); !errors.Is(err, ErrMissingParams) {
		t.Fatalf("nil session: %v", err)
	}
	if _, err := e.ProcessMove(NewSoloSession(), " ", "u1"); !errors.Is(err, ErrMissingParams) {
		t.Fatalf("blank word: %v", err)
	}
	if _, err := e.ProcessMove(NewSoloSession(), "a b", ""); !errors.Is(err, ErrMissingParams) {
		t.Fatalf("blank user: %v", err)
	}
}

func TestFirstMoveInitializesWithInfo(t *testing.T) {
	e := newTestEngine(t, map[string][]string{"con": {"mèo"}, "mèo": {"con"}})
	s := NewChannelSession(ModeBot)
	res, err := e.ProcessMove(s, "con mèo", "u1")
	if err != nil {
		t.Fatalf("ProcessMove: %v", err)
	}
	if res.Type != TypeInfo || res.Code != CodeNewGame {
		t.Fatalf("expected INFO, got %s/%s", res.Type, res.Code)
	}
	if s.Word != "con mèo" && s.Word != "mèo con" {
		t.Fatalf("unexpected seed word %q", s.Word)
	}
	if len(s.History) != 1 || s.History[0] != s.Word {
		t.Fatalf("history should hold the seed only: %v", s.History)
	}
	if res.Stats.CurrentStreak != 0 {
		t.Fatalf("initialization is not a scored move")
	}
}

func TestInvalidFormatKeepsMistakeCounter(t *testing.T) {
	e := newTestEngine(t, ringPairs)
	s := soloAt("e a", "e a")
	s.Solo.WrongCount = 2
	for _, in := range []string{"a", "a b c"} {
		res, err := e.ProcessMove(s, in, "u1")
		if err != nil {
			t.Fatalf("ProcessMove: %v", err)
		}
		if res.Code != CodeInvalidFormat || res.Persist {
			t.Fatalf("expected non-persisting INVALID_FORMAT, got %+v", res)
		}
		if res.Expected != "a" {
			t.Fatalf("expected syllable hint 'a', got %q", res.Expected)
		}
	}
	if s.Solo.WrongCount != 2 {
		t.Fatalf("format errors must not count, got %d", s.Solo.WrongCount)
	}
}

func TestBotModeNormalMove(t *testing.T) {
	e := newTestEngine(t, ringPairs)
	s := soloAt("e a", "e a")
	res, err := e.ProcessMove(s, "A  B", "u1")
	if err != nil {
		t.Fatalf("ProcessMove: %v", err)
	}
	if res.Code != CodeOK || res.BotWord != "b c" {
		t.Fatalf("expected bot reply b c, got %+v", res)
	}
	if s.Word != "b c" {
		t.Fatalf("bot word should become current, got %q", s.Word)
	}
	want := []string{"e a", "a b", "b c"}
	if len(s.History) != 3 {
		t.Fatalf("history = %v", s.History)
	}
	for i := range want {
		if s.History[i] != want[i] {
			t.Fatalf("history = %v, want %v", s.History, want)
		}
	}
	if res.Stats.CurrentStreak != 1 || res.Stats.BestStreak != 1 {
		t.Fatalf("stats = %+v", res.Stats)
	}
	if res.StatusLine() != "Chuỗi hiện tại: 1 | Kỷ lục: 1" {
		t.Fatalf("status line = %q", res.StatusLine())
	}
}

func TestBotModePlayerWinsWhenBotIsStuck(t *testing.T) {
	e := newTestEngine(t, map[string][]string{"con": {"mèo"}, "mèo": {"con"}})
	s := soloAt("con mèo", "con mèo")
	s.Solo.CurrentStreak, s.Solo.BestStreak = 4, 4
	res, err := e.ProcessMove(s, "mèo con", "u1")
	if err != nil {
		t.Fatalf("ProcessMove: %v", err)
	}
	if res.Code != CodeWin || !res.Reset {
		t.Fatalf("expected WIN with reset, got %+v", res)
	}
	if res.Stats.CurrentStreak != 5 || res.Stats.BestStreak != 5 || res.Stats.Wins != 1 {
		t.Fatalf("stats = %+v", res.Stats)
	}
	if len(s.History) != 1 || s.History[0] != s.Word {
		t.Fatalf("expected fresh round, history %v", s.History)
	}
}

func TestBotModeLossOnDeadEndReply(t *testing.T) {
	e := newTestEngine(t, map[string][]string{
		"x": {"a"},
		"a": {"b"},
		"b": {"c"},
		"c": {"d"},
	})
	s := soloAt("x a", "x a")
	s.Solo.CurrentStreak, s.Solo.BestStreak, s.Solo.Wins = 3, 6, 2
	res, err := e.ProcessMove(s, "a b", "u1")
	if err != nil {
		t.Fatalf("ProcessMove: %v", err)
	}
	if res.Code != CodeLoss || res.BotWord != "b c" {
		t.Fatalf("expected LOSS reporting b c, got %+v", res)
	}
	if res.Stats.CurrentStreak != 0 || res.Stats.BestStreak != 6 || res.Stats.Wins != 2 {
		t.Fatalf("best/wins must survive: %+v", res.Stats)
	}
	if res.Previous.CurrentStreak != 3 {
		t.Fatalf("previous streak should be reported")
	}
	if !res.Reset || len(s.History) != 1 {
		t.Fatalf("expected reset round")
	}
}

func TestMistakesEscalateAndResetInBotMode(t *testing.T) {
	e := newTestEngine(t, ringPairs)
	s := channelAt(ModeBot, "e a", "e a", "x y")
	s.Channel.Players["u1"] = &PlayerStats{CurrentStreak: 2, BestStreak: 9, Wins: 1}

	res, _ := e.ProcessMove(s, "b c", "u1")
	if res.Code != CodeMismatch || res.WrongCount != 1 || res.Remaining != 2 {
		t.Fatalf("first mistake: %+v", res)
	}
	res, _ = e.ProcessMove(s, "a z", "u1")
	if res.Code != CodeNotInDict || res.WrongCount != 2 {
		t.Fatalf("second mistake: %+v", res)
	}
	res, _ = e.ProcessMove(s, "a q", "u1")
	if res.Code != CodeNotInDict || res.WrongCount != 3 || !res.Reset {
		t.Fatalf("third mistake should reset: %+v", res)
	}
	st := s.Channel.Players["u1"]
	if st.WrongCount != 0 || st.CurrentStreak != 0 || st.BestStreak != 9 || st.Wins != 1 {
		t.Fatalf("stats after reset: %+v", st)
	}
	if len(s.History) != 1 || s.History[0] != s.Word {
		t.Fatalf("expected fresh history, got %v", s.History)
	}
}

func TestPvPRepeatedOnlyTouchesOffender(t *testing.T) {
	e := newTestEngine(t, ringPairs)
	s := channelAt(ModePvP, "a b", "e a", "b c", "a b")
	s.Channel.Players["u2"] = &PlayerStats{CurrentStreak: 3, BestStreak: 3}

	res, err := e.ProcessMove(s, "b c", "u1")
	if err != nil {
		t.Fatalf("ProcessMove: %v", err)
	}
	if res.Code != CodeRepeated || res.Stats.WrongCount != 1 {
		t.Fatalf("expected REPEATED with one mistake, got %+v", res)
	}
	if u2 := s.Channel.Players["u2"]; *u2 != (PlayerStats{CurrentStreak: 3, BestStreak: 3}) {
		t.Fatalf("other player touched: %+v", u2)
	}
	if s.Word != "a b" || len(s.History) != 3 {
		t.Fatalf("session must not advance")
	}
}

func TestPvPThirdMistakeResetsStreakOnly(t *testing.T) {
	e := newTestEngine(t, ringPairs)
	s := channelAt(ModePvP, "a b", "e a", "a b")
	s.Channel.Players["u1"] = &PlayerStats{CurrentStreak: 4, BestStreak: 7, Wins: 2, WrongCount: 2}

	res, _ := e.ProcessMove(s, "b x", "u1")
	if res.Code != CodeNotInDict || !res.StreakReset || res.Reset {
		t.Fatalf("expected streak reset only, got %+v", res)
	}
	if got := *s.Channel.Players["u1"]; got != (PlayerStats{BestStreak: 7, Wins: 2}) {
		t.Fatalf("stats = %+v", got)
	}
	if s.Word != "a b" || len(s.History) != 2 {
		t.Fatalf("word/history must be preserved")
	}
}

func TestPvPAcceptAndAutoWin(t *testing.T) {
	e := newTestEngine(t, map[string][]string{
		"e": {"a"},
		"a": {"b"},
		"b": {"c"},
		"c": {"d"},
	})
	s := channelAt(ModePvP, "e a", "e a")
	res, _ := e.ProcessMove(s, "a b", "u1")
	if res.Code != CodeOK || s.Word != "a b" || res.BotWord != "" {
		t.Fatalf("expected plain accept, got %+v", res)
	}
	if res.StatusLine() != "Chuỗi hiện tại: 1 | Kỷ lục: 1 | Thắng: 0" {
		t.Fatalf("status line = %q", res.StatusLine())
	}

	res, _ = e.ProcessMove(s, "b c", "u2")
	if res.Code != CodeWin || !res.Reset {
		t.Fatalf("expected auto win, got %+v", res)
	}
	if res.Stats.Wins != 1 || res.Stats.CurrentStreak != 1 {
		t.Fatalf("winner stats = %+v", res.Stats)
	}
	if s.Channel.Players["u1"].CurrentStreak != 1 {
		t.Fatalf("u1 streak must carry over the reset")
	}
}

func TestResetKeepsCarriedStats(t *testing.T) {
	e := newTestEngine(t, ringPairs)
	s := soloAt("a b", "e a", "a b")
	s.Solo.CurrentStreak, s.Solo.BestStreak, s.Solo.Wins, s.Solo.WrongCount = 2, 5, 1, 1
	w := e.Reset(s)
	if w == "" || s.Word != w || len(s.History) != 1 {
		t.Fatalf("reset should seed a fresh round")
	}
	if *s.Solo != (PlayerStats{BestStreak: 5, Wins: 1}) {
		t.Fatalf("stats after reset: %+v", *s.Solo)
	}
}

func TestBotModeBestStreakNeverDecreases(t *testing.T) {
	e := newTestEngine(t, ringPairs)
	s := soloAt("e a", "e a")
	best := 0
	moves := []string{"a b", "c d", "e a", "zz yy", "a b", "b c", "x y", "x y", "x y"}
	for _, m := range moves {
		next := m
		if m != "zz yy" && m != "x y" && s.Word != "" {
			next = lastSyllable(s.Word) + " " + ringPairs[lastSyllable(s.Word)][0]
		}
		res, err := e.ProcessMove(s, next, "u1")
		if err != nil {
			t.Fatalf("ProcessMove: %v", err)
		}
		if res.Stats.BestStreak < best {
			t.Fatalf("best streak decreased from %d to %d", best, res.Stats.BestStreak)
		}
		best = res.Stats.BestStreak
		for _, h := range s.History {
			if Normalize(h) != h {
				t.Fatalf("history holds unnormalized %q", h)
			}
		}
	}
}
