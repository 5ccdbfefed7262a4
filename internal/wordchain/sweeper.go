package wordchain

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CheckTimeouts reports the current player of every playing match whose last turn
// is at least TurnTimeout old. It does not mutate anything.
func (m *Manager) CheckTimeouts(ctx context.Context, now time.Time) ([]Timeout, error) {
	all, err := m.matches(ctx)
	if err != nil {
		return nil, err
	}
	var out []Timeout
	for _, match := range all {
		if t, ok := m.timedOut(match, now); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Manager) timedOut(match *Match, now time.Time) (Timeout, bool) {
	if match.Status != StatusPlaying || match.LastTurnAt == nil {
		return Timeout{}, false
	}
	elapsed := now.Sub(*match.LastTurnAt)
	if elapsed < m.cfg.TurnTimeout {
		return Timeout{}, false
	}
	cur := match.Current()
	if cur == nil {
		return Timeout{}, false
	}
	return Timeout{ChannelID: match.ChannelID, PlayerID: cur.ID, Elapsed: elapsed}, true
}

// CheckAborts returns channels whose waiting match never gathered MinPlayers
// within AbortTimeout of its start.
func (m *Manager) CheckAborts(ctx context.Context, now time.Time) ([]string, error) {
	all, err := m.matches(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, match := range all {
		if m.stale(match, now) {
			out = append(out, match.ChannelID)
		}
	}
	return out, nil
}

func (m *Manager) stale(match *Match, now time.Time) bool {
	return match.Status == StatusWaiting &&
		now.Sub(match.StartedAt) >= m.cfg.AbortTimeout &&
		len(match.Active()) < MinPlayers
}

// KnockOutIfExpired repeats the timeout check under the room lock and knocks the
// player out only if the same player still holds an expired turn. A nil result
// means a move landed in between.
func (m *Manager) KnockOutIfExpired(ctx context.Context, t Timeout, now time.Time) (*KnockoutResult, error) {
	defer m.locks.Lock(t.ChannelID)()
	match, err := m.load(ctx, t.ChannelID)
	if err != nil || match == nil {
		return nil, err
	}
	cur, ok := m.timedOut(match, now)
	if !ok || cur.PlayerID != t.PlayerID {
		return nil, nil
	}
	return m.knockOutLocked(ctx, t.ChannelID, t.PlayerID)
}

// AbortIfStale deletes the room's match only if it is still stale under the lock.
func (m *Manager) AbortIfStale(ctx context.Context, channelID string, now time.Time) (bool, error) {
	defer m.locks.Lock(channelID)()
	match, err := m.load(ctx, channelID)
	if err != nil || match == nil || !m.stale(match, now) {
		return false, err
	}
	if err := m.kv.Delete(ctx, bucketMatches, channelID); err != nil {
		return false, err
	}
	m.logger.Info("wc_match_aborted", zap.String("channel", channelID), zap.String("reason", "not_enough_players"))
	return true, nil
}

// Notifier receives sweep outcomes; the bot renders them into the room.
type Notifier interface {
	TimedOut(ctx context.Context, t Timeout, res *KnockoutResult)
	Aborted(ctx context.Context, channelID string)
}

const DefaultSweepInterval = time.Second

type Sweeper struct {
	mgr      *Manager
	notify   Notifier
	interval time.Duration
	logger   *zap.Logger
}

func NewSweeper(mgr *Manager, notify Notifier, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{mgr: mgr, notify: notify, interval: interval, logger: mgr.logger}
}

// Tick runs one timeout pass then one abort pass. Knockouts for different rooms
// run in parallel.
func (s *Sweeper) Tick(ctx context.Context, now time.Time) error {
	timeouts, err := s.mgr.CheckTimeouts(ctx, now)
	if err != nil {
		return err
	}
	var g errgroup.Group
	for _, t := range timeouts {
		g.Go(func() error {
			res, err := s.mgr.KnockOutIfExpired(ctx, t, now)
			if err != nil {
				s.logger.Warn("wc_knockout_failed", zap.String("channel", t.ChannelID), zap.String("player", t.PlayerID), zap.Error(err))
				return nil
			}
			if res != nil && s.notify != nil {
				s.notify.TimedOut(ctx, t, res)
			}
			return nil
		})
	}
	_ = g.Wait()

	stale, err := s.mgr.CheckAborts(ctx, now)
	if err != nil {
		return err
	}
	for _, ch := range stale {
		aborted, err := s.mgr.AbortIfStale(ctx, ch, now)
		if err != nil {
			s.logger.Warn("wc_abort_failed", zap.String("channel", ch), zap.Error(err))
			continue
		}
		if aborted && s.notify != nil {
			s.notify.Aborted(ctx, ch)
		}
	}
	return nil
}

// Run ticks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx, s.mgr.now()); err != nil {
				s.logger.Warn("wc_sweep_failed", zap.Error(err))
			}
		}
	}
}
