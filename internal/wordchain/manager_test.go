package wordchain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/park285/noitu-kakao-bot/internal/store"
)

type fakeValidator struct {
	mu    sync.Mutex
	words map[string]bool
	err   error
	calls int

	// lookups of slow signal entered, then wait for gate to close
	slow    string
	entered chan struct{}
	gate    chan struct{}
}

func (f *fakeValidator) IsWord(_ context.Context, word string) (bool, error) {
	if f.gate != nil && word == f.slow {
		f.entered <- struct{}{}
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.words[word], nil
}

type fakeArchiver struct {
	mu      sync.Mutex
	matches []*Match
}

func (f *fakeArchiver) ArchiveMatch(_ context.Context, m *Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches = append(f.matches, m)
	return nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func dictionary(words ...string) *fakeValidator {
	f := &fakeValidator{words: map[string]bool{}}
	for _, w := range words {
		f.words[w] = true
	}
	return f
}

func newTestManager(t *testing.T, v *fakeValidator) (*Manager, *testClock, *fakeArchiver) {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)}
	arch := &fakeArchiver{}
	m, err := NewManager(store.NewMemoryKV(), v, Config{}, WithClock(clock.Now), WithArchiver(arch))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, clock, arch
}

func startTwo(t *testing.T, m *Manager) {
	t.Helper()
	ctx := context.Background()
	if _, err := m.StartMatch(ctx, "ch", "alice", "Alice"); err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	if _, err := m.JoinMatch(ctx, "ch", "bob", "Bob"); err != nil {
		t.Fatalf("JoinMatch: %v", err)
	}
}

func TestStartAndJoinLifecycle(t *testing.T) {
	m, _, _ := newTestManager(t, dictionary())
	ctx := context.Background()

	match, err := m.StartMatch(ctx, "ch", "alice", "")
	if err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	if match.Status != StatusWaiting || len(match.Players) != 1 || match.TurnNumber != 1 {
		t.Fatalf("unexpected new match %+v", match)
	}
	if match.Players[0].Name != "alice" {
		t.Fatalf("empty name should fall back to id, got %q", match.Players[0].Name)
	}
	if match.ID == "" {
		t.Fatalf("expected match id")
	}

	if _, err := m.StartMatch(ctx, "ch", "bob", "Bob"); !errors.Is(err, ErrMatchInProgress) {
		t.Fatalf("second start: %v", err)
	}
	if _, err := m.JoinMatch(ctx, "ch", "alice", "Alice"); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("double join: %v", err)
	}
	if _, err := m.JoinMatch(ctx, "other", "bob", "Bob"); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("join without match: %v", err)
	}
	if _, err := m.StartMatch(ctx, " ", "bob", "Bob"); !errors.Is(err, ErrMissingParams) {
		t.Fatalf("blank channel: %v", err)
	}

	match, err = m.JoinMatch(ctx, "ch", "bob", "Bob")
	if err != nil {
		t.Fatalf("JoinMatch: %v", err)
	}
	if match.Status != StatusWaiting || len(match.Players) != 2 {
		t.Fatalf("join must not change status: %+v", match)
	}
}

func TestProcessWordAdvancesTurn(t *testing.T) {
	m, clock, _ := newTestManager(t, dictionary("apple", "egg"))
	ctx := context.Background()
	startTwo(t, m)
	clock.Advance(3 * time.Second)

	res, err := m.ProcessWord(ctx, "ch", "alice", "  Apple ")
	if err != nil {
		t.Fatalf("ProcessWord: %v", err)
	}
	if !res.Accepted() || res.Score != 5 {
		t.Fatalf("expected accepted apple scoring 5, got %+v", res)
	}
	if res.NextPlayer == nil || res.NextPlayer.ID != "bob" {
		t.Fatalf("expected bob next, got %+v", res.NextPlayer)
	}

	st, err := m.MatchState(ctx, "ch")
	if err != nil {
		t.Fatalf("MatchState: %v", err)
	}
	if st.Status != StatusPlaying || st.CurrentPlayerIndex != 1 || st.TurnNumber != 2 {
		t.Fatalf("unexpected state %+v", st)
	}
	if st.LastLetter != "e" || st.LastWord != "apple" {
		t.Fatalf("last = %q/%q", st.LastWord, st.LastLetter)
	}
	if st.LastTurnAt == nil || !st.LastTurnAt.Equal(clock.Now()) {
		t.Fatalf("lastTurnAt not stamped: %v", st.LastTurnAt)
	}
	if p := st.Player("alice"); p.Points != 5 || p.WordsPlayed != 1 {
		t.Fatalf("alice = %+v", p)
	}

	res, _ = m.ProcessWord(ctx, "ch", "bob", "egg")
	if !res.Accepted() || res.NextPlayer.ID != "alice" {
		t.Fatalf("expected rotation back to alice, got %+v", res)
	}
}

func TestProcessWordRejections(t *testing.T) {
	v := dictionary("apple", "egg")
	m, _, _ := newTestManager(t, v)
	ctx := context.Background()

	if res, _ := m.ProcessWord(ctx, "ch", "alice", "apple"); res.Code != CodeIgnored {
		t.Fatalf("no match should ignore, got %s", res.Code)
	}

	if _, err := m.StartMatch(ctx, "ch", "alice", "Alice"); err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	if res, _ := m.ProcessWord(ctx, "ch", "alice", "apple"); res.Code != CodeNotEnoughPlayers {
		t.Fatalf("solo match: %s", res.Code)
	}
	if _, err := m.JoinMatch(ctx, "ch", "bob", "Bob"); err != nil {
		t.Fatalf("JoinMatch: %v", err)
	}

	if res, _ := m.ProcessWord(ctx, "ch", "carol", "apple"); res.Code != CodeIgnored {
		t.Fatalf("outsider: %s", res.Code)
	}
	if res, _ := m.ProcessWord(ctx, "ch", "bob", "apple"); res.Code != CodeNotYourTurn || res.NextPlayer.ID != "alice" {
		t.Fatalf("out of turn: %+v", res)
	}
	if res, _ := m.ProcessWord(ctx, "ch", "alice", "zzzz"); res.Code != CodeInvalidWord {
		t.Fatalf("unknown word: %s", res.Code)
	}
	if res, _ := m.ProcessWord(ctx, "ch", "alice", "apple"); !res.Accepted() {
		t.Fatalf("apple: %s", res.Code)
	}
	if res, _ := m.ProcessWord(ctx, "ch", "bob", "xylophone"); res.Code != CodeWrongLetter || res.Expected != "e" {
		t.Fatalf("wrong letter: %+v", res)
	}

	if res, _ := m.ProcessWord(ctx, "ch", "bob", "egg"); !res.Accepted() {
		t.Fatalf("egg: %s", res.Code)
	}
	v.words["gape"] = true
	if res, _ := m.ProcessWord(ctx, "ch", "alice", "gape"); !res.Accepted() {
		t.Fatalf("gape: %s", res.Code)
	}
	calls := v.calls
	if res, _ := m.ProcessWord(ctx, "ch", "bob", "egg"); res.Code != CodeRepeated {
		t.Fatalf("repeat: %s", res.Code)
	}
	if v.calls != calls {
		t.Fatalf("repeated word must not reach the dictionary")
	}
}

func TestProcessWordLookupFailureLeavesStateUntouched(t *testing.T) {
	v := dictionary("apple")
	m, _, _ := newTestManager(t, v)
	ctx := context.Background()
	startTwo(t, m)

	v.err = errors.New("dictionary down")
	res, err := m.ProcessWord(ctx, "ch", "alice", "apple")
	if err != nil {
		t.Fatalf("ProcessWord: %v", err)
	}
	if res.Code != CodeLookupUnavailable {
		t.Fatalf("expected lookup_unavailable, got %s", res.Code)
	}
	st, _ := m.MatchState(ctx, "ch")
	if st.Status != StatusWaiting || st.TurnNumber != 1 || len(st.UsedWords) != 0 {
		t.Fatalf("state mutated: %+v", st)
	}
}

func TestKnockoutEndsMatchAndRecordsProfiles(t *testing.T) {
	m, _, arch := newTestManager(t, dictionary("apple", "egg"))
	ctx := context.Background()
	startTwo(t, m)
	if res, _ := m.ProcessWord(ctx, "ch", "alice", "apple"); !res.Accepted() {
		t.Fatalf("apple: %s", res.Code)
	}
	if res, _ := m.ProcessWord(ctx, "ch", "bob", "egg"); !res.Accepted() {
		t.Fatalf("egg: %s", res.Code)
	}

	ko, err := m.KnockOutPlayer(ctx, "ch", "alice")
	if err != nil {
		t.Fatalf("KnockOutPlayer: %v", err)
	}
	if !ko.GameOver || ko.Winner == nil || ko.Winner.ID != "bob" {
		t.Fatalf("expected bob to win, got %+v", ko)
	}
	if ko.Match.Status != StatusEnded || ko.Match.EndedAt == nil {
		t.Fatalf("match not ended: %+v", ko.Match)
	}

	bob, err := m.PlayerStats(ctx, "bob")
	if err != nil {
		t.Fatalf("PlayerStats: %v", err)
	}
	if bob.GamesWon != 1 || bob.GamesPlayed != 1 || bob.TotalWords != 1 || bob.TotalPoints != 3 || bob.BestStreak != 1 {
		t.Fatalf("bob profile %+v", bob)
	}
	alice, _ := m.PlayerStats(ctx, "alice")
	if alice.GamesWon != 0 || alice.GamesPlayed != 1 || alice.TotalPoints != 5 {
		t.Fatalf("alice profile %+v", alice)
	}
	if len(arch.matches) != 1 || arch.matches[0].WinnerID != "bob" {
		t.Fatalf("expected one archived match, got %d", len(arch.matches))
	}

	if res, _ := m.ProcessWord(ctx, "ch", "bob", "gnu"); res.Code != CodeIgnored {
		t.Fatalf("ended match should ignore, got %s", res.Code)
	}
	if _, err := m.KnockOutPlayer(ctx, "ch", "bob"); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("knockout after end: %v", err)
	}
	if _, err := m.StartMatch(ctx, "ch", "carol", "Carol"); err != nil {
		t.Fatalf("ended match should allow a new start: %v", err)
	}
}

func TestKnockoutClampsIndex(t *testing.T) {
	m, clock, _ := newTestManager(t, dictionary("apple", "egg"))
	ctx := context.Background()
	startTwo(t, m)
	if _, err := m.JoinMatch(ctx, "ch", "carol", "Carol"); err != nil {
		t.Fatalf("JoinMatch: %v", err)
	}
	m.ProcessWord(ctx, "ch", "alice", "apple")
	m.ProcessWord(ctx, "ch", "bob", "egg")
	clock.Advance(time.Minute)

	ko, err := m.KnockOutPlayer(ctx, "ch", "carol")
	if err != nil {
		t.Fatalf("KnockOutPlayer: %v", err)
	}
	if ko.GameOver {
		t.Fatalf("two players remain, match must continue")
	}
	if ko.Match.CurrentPlayerIndex != 0 || ko.NextPlayer.ID != "alice" {
		t.Fatalf("index not clamped: %+v next=%+v", ko.Match.CurrentPlayerIndex, ko.NextPlayer)
	}
	if !ko.Match.LastTurnAt.Equal(clock.Now()) {
		t.Fatalf("next player should get a fresh turn")
	}
	if _, err := m.KnockOutPlayer(ctx, "ch", "dave"); !errors.Is(err, ErrPlayerNotInMatch) {
		t.Fatalf("unknown player: %v", err)
	}
}

func TestAbortMatchDeletes(t *testing.T) {
	m, _, _ := newTestManager(t, dictionary())
	ctx := context.Background()
	startTwo(t, m)
	if err := m.AbortMatch(ctx, "ch"); err != nil {
		t.Fatalf("AbortMatch: %v", err)
	}
	st, err := m.MatchState(ctx, "ch")
	if err != nil || st != nil {
		t.Fatalf("expected no match, got %+v %v", st, err)
	}
}

func TestConcurrentSubmissionsSerialize(t *testing.T) {
	m, _, _ := newTestManager(t, dictionary("apple"))
	ctx := context.Background()
	startTwo(t, m)

	var wg sync.WaitGroup
	results := make([]WordResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = m.ProcessWord(ctx, "ch", "alice", "apple")
		}(i)
	}
	wg.Wait()
	ok := 0
	for _, r := range results {
		if r.Accepted() {
			ok++
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one accepted submission, got %d", ok)
	}
}
