package wordchain

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingNotifier struct {
	mu       sync.Mutex
	timeouts []Timeout
	results  []*KnockoutResult
	aborted  []string
}

func (r *recordingNotifier) TimedOut(_ context.Context, t Timeout, res *KnockoutResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeouts = append(r.timeouts, t)
	r.results = append(r.results, res)
}

func (r *recordingNotifier) Aborted(_ context.Context, ch string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborted = append(r.aborted, ch)
}

func TestCheckAbortsBoundary(t *testing.T) {
	m, clock, _ := newTestManager(t, dictionary())
	ctx := context.Background()
	match, err := m.StartMatch(ctx, "ch", "alice", "Alice")
	if err != nil {
		t.Fatalf("StartMatch: %v", err)
	}

	got, err := m.CheckAborts(ctx, match.StartedAt.Add(59999*time.Millisecond))
	if err != nil {
		t.Fatalf("CheckAborts: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("aborted too early: %v", got)
	}

	got, _ = m.CheckAborts(ctx, match.StartedAt.Add(60000*time.Millisecond))
	if len(got) != 1 || got[0] != "ch" {
		t.Fatalf("expected ch to be reported, got %v", got)
	}

	if _, err := m.JoinMatch(ctx, "ch", "bob", "Bob"); err != nil {
		t.Fatalf("JoinMatch: %v", err)
	}
	clock.Advance(time.Hour)
	got, _ = m.CheckAborts(ctx, clock.Now())
	if len(got) != 0 {
		t.Fatalf("two waiting players must not be aborted: %v", got)
	}
}

func TestCheckTimeoutsReportsCurrentPlayer(t *testing.T) {
	m, clock, _ := newTestManager(t, dictionary("apple"))
	ctx := context.Background()
	startTwo(t, m)

	got, _ := m.CheckTimeouts(ctx, clock.Now().Add(time.Hour))
	if len(got) != 0 {
		t.Fatalf("waiting match has no turn clock: %v", got)
	}

	m.ProcessWord(ctx, "ch", "alice", "apple")
	got, _ = m.CheckTimeouts(ctx, clock.Now().Add(DefaultTurnTimeout-time.Millisecond))
	if len(got) != 0 {
		t.Fatalf("timed out too early: %v", got)
	}
	got, _ = m.CheckTimeouts(ctx, clock.Now().Add(DefaultTurnTimeout))
	if len(got) != 1 || got[0].PlayerID != "bob" || got[0].Elapsed != DefaultTurnTimeout {
		t.Fatalf("expected bob timeout, got %+v", got)
	}
}

func TestSweeperKnocksOutAndAborts(t *testing.T) {
	m, clock, _ := newTestManager(t, dictionary("apple"))
	ctx := context.Background()
	startTwo(t, m)
	m.ProcessWord(ctx, "ch", "alice", "apple")
	if _, err := m.StartMatch(ctx, "lonely", "carol", "Carol"); err != nil {
		t.Fatalf("StartMatch: %v", err)
	}

	n := &recordingNotifier{}
	s := NewSweeper(m, n, time.Second)
	clock.Advance(2 * time.Minute)
	if err := s.Tick(ctx, clock.Now()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if len(n.timeouts) != 1 || n.timeouts[0].PlayerID != "bob" {
		t.Fatalf("timeouts = %+v", n.timeouts)
	}
	if res := n.results[0]; !res.GameOver || res.Winner.ID != "alice" {
		t.Fatalf("expected alice to win by timeout, got %+v", res)
	}
	if len(n.aborted) != 1 || n.aborted[0] != "lonely" {
		t.Fatalf("aborted = %v", n.aborted)
	}
	if st, _ := m.MatchState(ctx, "lonely"); st != nil {
		t.Fatalf("stale match should be deleted")
	}

	if err := s.Tick(ctx, clock.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(n.timeouts) != 1 || len(n.aborted) != 1 {
		t.Fatalf("ended matches must not be swept again")
	}
}

func TestKnockOutIfExpiredSkipsFreshTurn(t *testing.T) {
	m, clock, _ := newTestManager(t, dictionary("apple", "egg"))
	ctx := context.Background()
	startTwo(t, m)
	m.ProcessWord(ctx, "ch", "alice", "apple")

	clock.Advance(DefaultTurnTimeout)
	stale, _ := m.CheckTimeouts(ctx, clock.Now())
	if len(stale) != 1 {
		t.Fatalf("expected one timeout, got %v", stale)
	}
	// bob answers before the sweep acts on the report
	if res, _ := m.ProcessWord(ctx, "ch", "bob", "egg"); !res.Accepted() {
		t.Fatalf("egg: %s", res.Code)
	}

	res, err := m.KnockOutIfExpired(ctx, stale[0], clock.Now())
	if err != nil {
		t.Fatalf("KnockOutIfExpired: %v", err)
	}
	if res != nil {
		t.Fatalf("fresh turn must not be knocked out: %+v", res)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	m, _, _ := newTestManager(t, dictionary())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewSweeper(m, nil, 5*time.Millisecond).Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop")
	}
}

func (r *recordingNotifier) timedOutPlayers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.timeouts))
	for _, t := range r.timeouts {
		out = append(out, t.PlayerID)
	}
	return out
}

func TestSweeperKnockoutNotBlockedByBusyRoom(t *testing.T) {
	v := dictionary("apple", "egg")
	v.slow, v.entered, v.gate = "egg", make(chan struct{}), make(chan struct{})
	m, clock, _ := newTestManager(t, v)
	ctx := context.Background()
	for _, room := range []struct{ ch, first, second string }{{"a", "alice", "bob"}, {"z", "carol", "dave"}} {
		if _, err := m.StartMatch(ctx, room.ch, room.first, room.first); err != nil {
			t.Fatalf("StartMatch: %v", err)
		}
		if _, err := m.JoinMatch(ctx, room.ch, room.second, room.second); err != nil {
			t.Fatalf("JoinMatch: %v", err)
		}
		if res, _ := m.ProcessWord(ctx, room.ch, room.first, "apple"); !res.Accepted() {
			t.Fatalf("apple in %s: %s", room.ch, res.Code)
		}
	}

	// bob's lookup holds room a's lock
	moved := make(chan WordResult, 1)
	go func() {
		res, _ := m.ProcessWord(ctx, "a", "bob", "egg")
		moved <- res
	}()
	<-v.entered

	clock.Advance(DefaultTurnTimeout)
	n := &recordingNotifier{}
	ticked := make(chan error, 1)
	go func() { ticked <- NewSweeper(m, n, time.Second).Tick(ctx, clock.Now()) }()

	deadline := time.Now().Add(time.Second)
	for len(n.timedOutPlayers()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := n.timedOutPlayers(); len(got) != 1 || got[0] != "dave" {
		t.Fatalf("room z must be swept while room a is busy, got %v", got)
	}

	close(v.gate)
	if res := <-moved; !res.Accepted() {
		t.Fatalf("egg: %s", res.Code)
	}
	if err := <-ticked; err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got := n.timedOutPlayers(); len(got) != 1 {
		t.Fatalf("bob answered before the knockout ran, got %v", got)
	}
}
