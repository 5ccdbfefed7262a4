package wordchain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/park285/noitu-kakao-bot/internal/store"
	"github.com/park285/noitu-kakao-bot/internal/util"
	"go.uber.org/zap"
)

const (
	bucketMatches = "wc_matches"
	bucketPlayers = "wc_players"

	defaultLookupTimeout = 5 * time.Second
)

// Validator answers whether a word exists. A non-nil error means the lookup itself failed.
type Validator interface {
	IsWord(ctx context.Context, word string) (bool, error)
}

// Archiver records finished matches. Failures are logged, never surfaced to players.
type Archiver interface {
	ArchiveMatch(ctx context.Context, m *Match) error
}

type Config struct {
	TurnTimeout   time.Duration
	AbortTimeout  time.Duration
	LookupTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = DefaultTurnTimeout
	}
	if c.AbortTimeout <= 0 {
		c.AbortTimeout = DefaultAbortTimeout
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = defaultLookupTimeout
	}
}

// Manager owns every room's match. Each room's operations run under that room's lock,
// including the dictionary lookup inside ProcessWord.
type Manager struct {
	kv        store.KV
	validator Validator
	archiver  Archiver
	cfg       Config
	locks     *util.KeyedMutex
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Manager)

func WithArchiver(a Archiver) Option { return func(m *Manager) { m.archiver = a } }

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewManager(kv store.KV, validator Validator, cfg Config, opts ...Option) (*Manager, error) {
	if kv == nil {
		return nil, errors.New("wordchain: store is required")
	}
	if validator == nil {
		return nil, errors.New("wordchain: validator is required")
	}
	cfg.applyDefaults()
	m := &Manager{
		kv:        kv,
		validator: validator,
		cfg:       cfg,
		locks:     util.NewKeyedMutex(),
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) Config() Config { return m.cfg }

func (m *Manager) load(ctx context.Context, channelID string) (*Match, error) {
	var match Match
	found, err := m.kv.Get(ctx, bucketMatches, channelID, &match)
	if err != nil {
		return nil, fmt.Errorf("load match %s: %w", channelID, err)
	}
	if !found {
		return nil, nil
	}
	return &match, nil
}

func (m *Manager) save(ctx context.Context, match *Match) error {
	if err := m.kv.Put(ctx, bucketMatches, match.ChannelID, match); err != nil {
		return fmt.Errorf("save match %s: %w", match.ChannelID, err)
	}
	return nil
}

// StartMatch opens a waiting match with the starter as the only player.
// An ended match in the room is replaced.
func (m *Manager) StartMatch(ctx context.Context, channelID, starterID, name string) (*Match, error) {
	channelID, starterID = strings.TrimSpace(channelID), strings.TrimSpace(starterID)
	if channelID == "" || starterID == "" {
		return nil, ErrMissingParams
	}
	defer m.locks.Lock(channelID)()

	existing, err := m.load(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != StatusEnded {
		return nil, ErrMatchInProgress
	}
	match := &Match{
		ID:         uuid.NewString(),
		ChannelID:  channelID,
		Status:     StatusWaiting,
		Players:    []*Player{{ID: starterID, Name: displayName(name, starterID)}},
		UsedWords:  []string{},
		TurnNumber: 1,
		StartedAt:  m.now(),
	}
	if err := m.save(ctx, match); err != nil {
		return nil, err
	}
	m.logger.Info("wc_match_started", zap.String("channel", channelID), zap.String("match", match.ID), zap.String("starter", starterID))
	return match.Clone(), nil
}

// JoinMatch appends a player. Status does not change.
func (m *Manager) JoinMatch(ctx context.Context, channelID, playerID, name string) (*Match, error) {
	channelID, playerID = strings.TrimSpace(channelID), strings.TrimSpace(playerID)
	if channelID == "" || playerID == "" {
		return nil, ErrMissingParams
	}
	defer m.locks.Lock(channelID)()

	match, err := m.load(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if match == nil || match.Status == StatusEnded {
		return nil, ErrNoMatch
	}
	if match.Player(playerID) != nil {
		return nil, ErrAlreadyJoined
	}
	match.Players = append(match.Players, &Player{ID: playerID, Name: displayName(name, playerID)})
	if err := m.save(ctx, match); err != nil {
		return nil, err
	}
	m.logger.Info("wc_player_joined", zap.String("channel", channelID), zap.String("player", playerID), zap.Int("players", len(match.Players)))
	return match.Clone(), nil
}

// ProcessWord plays word for playerID. CodeIgnored means the message is not a move
// (no live match, or the sender is not an active player).
func (m *Manager) ProcessWord(ctx context.Context, channelID, playerID, word string) (WordResult, error) {
	channelID, playerID = strings.TrimSpace(channelID), strings.TrimSpace(playerID)
	word = strings.ToLower(strings.TrimSpace(word))
	if channelID == "" || playerID == "" || word == "" {
		return WordResult{Code: CodeIgnored}, nil
	}
	defer m.locks.Lock(channelID)()

	match, err := m.load(ctx, channelID)
	if err != nil {
		return WordResult{}, err
	}
	if match == nil || match.Status == StatusEnded {
		return WordResult{Code: CodeIgnored}, nil
	}
	player := match.Player(playerID)
	if player == nil || player.IsOut {
		return WordResult{Code: CodeIgnored}, nil
	}
	res := WordResult{Word: word, TurnNumber: match.TurnNumber, Player: clonePlayer(player)}

	active := match.Active()
	if len(active) < MinPlayers {
		res.Code = CodeNotEnoughPlayers
		return res, nil
	}
	if cur := active[match.CurrentPlayerIndex%len(active)]; cur.ID != playerID {
		res.Code = CodeNotYourTurn
		res.NextPlayer = clonePlayer(cur)
		return res, nil
	}
	if match.LastLetter != "" && !strings.HasPrefix(word, match.LastLetter) {
		res.Code, res.Expected = CodeWrongLetter, match.LastLetter
		return res, nil
	}
	if match.used(word) {
		res.Code = CodeRepeated
		return res, nil
	}

	lctx, cancel := context.WithTimeout(ctx, m.cfg.LookupTimeout)
	ok, err := m.validator.IsWord(lctx, word)
	cancel()
	if err != nil {
		m.logger.Warn("wc_lookup_failed", zap.String("channel", channelID), zap.String("word", word), zap.Error(err))
		res.Code = CodeLookupUnavailable
		return res, nil
	}
	if !ok {
		res.Code = CodeInvalidWord
		return res, nil
	}

	score := utf8.RuneCountInString(word)
	player.Points += score
	player.WordsPlayed++
	match.UsedWords = append(match.UsedWords, word)
	match.LastWord = word
	last, _ := utf8.DecodeLastRuneInString(word)
	match.LastLetter = string(last)
	match.CurrentPlayerIndex = (match.CurrentPlayerIndex + 1) % len(active)
	match.TurnNumber++
	now := m.now()
	match.LastTurnAt = &now
	if match.Status == StatusWaiting {
		match.Status = StatusPlaying
	}
	if err := m.save(ctx, match); err != nil {
		return WordResult{}, err
	}

	res.Code = CodeOK
	res.Score = score
	res.TurnNumber = match.TurnNumber
	res.Player = clonePlayer(player)
	res.NextPlayer = clonePlayer(match.Current())
	return res, nil
}

// KnockOutPlayer marks playerID out. When at most one player remains the match ends,
// every player's profile absorbs the match totals and the match is archived.
func (m *Manager) KnockOutPlayer(ctx context.Context, channelID, playerID string) (*KnockoutResult, error) {
	channelID, playerID = strings.TrimSpace(channelID), strings.TrimSpace(playerID)
	if channelID == "" || playerID == "" {
		return nil, ErrMissingParams
	}
	defer m.locks.Lock(channelID)()
	return m.knockOutLocked(ctx, channelID, playerID)
}

func (m *Manager) knockOutLocked(ctx context.Context, channelID, playerID string) (*KnockoutResult, error) {
	match, err := m.load(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if match == nil || match.Status == StatusEnded {
		return nil, ErrNoMatch
	}
	player := match.Player(playerID)
	if player == nil {
		return nil, ErrPlayerNotInMatch
	}
	player.IsOut = true
	res := &KnockoutResult{KnockedOut: clonePlayer(player)}

	active := match.Active()
	now := m.now()
	if len(active) <= 1 {
		match.Status = StatusEnded
		match.EndedAt = &now
		if len(active) == 1 {
			match.WinnerID = active[0].ID
			res.Winner = clonePlayer(active[0])
		}
		if err := m.save(ctx, match); err != nil {
			return nil, err
		}
		m.recordProfiles(ctx, match)
		m.archive(ctx, match)
		res.GameOver = true
		res.Match = match.Clone()
		m.logger.Info("wc_match_ended", zap.String("channel", channelID), zap.String("match", match.ID), zap.String("winner", match.WinnerID), zap.Int("turns", match.TurnNumber-1))
		return res, nil
	}

	if match.CurrentPlayerIndex >= len(active) {
		match.CurrentPlayerIndex = 0
	}
	// the next player gets a full turn
	match.LastTurnAt = &now
	if err := m.save(ctx, match); err != nil {
		return nil, err
	}
	res.NextPlayer = clonePlayer(active[match.CurrentPlayerIndex])
	res.Match = match.Clone()
	m.logger.Info("wc_knockout", zap.String("channel", channelID), zap.String("player", playerID), zap.Int("remaining", len(active)))
	return res, nil
}

func (m *Manager) recordProfiles(ctx context.Context, match *Match) {
	for _, p := range match.Players {
		prof, err := m.PlayerStats(ctx, p.ID)
		if err != nil {
			m.logger.Warn("wc_profile_load_failed", zap.String("player", p.ID), zap.Error(err))
			continue
		}
		prof.GamesPlayed++
		if p.ID == match.WinnerID {
			prof.GamesWon++
		}
		prof.TotalWords += p.WordsPlayed
		prof.TotalPoints += p.Points
		if p.WordsPlayed > prof.BestStreak {
			prof.BestStreak = p.WordsPlayed
		}
		if err := m.kv.Put(ctx, bucketPlayers, p.ID, prof); err != nil {
			m.logger.Warn("wc_profile_save_failed", zap.String("player", p.ID), zap.Error(err))
		}
	}
}

func (m *Manager) archive(ctx context.Context, match *Match) {
	if m.archiver == nil {
		return
	}
	if err := m.archiver.ArchiveMatch(ctx, match.Clone()); err != nil {
		m.logger.Warn("wc_archive_failed", zap.String("match", match.ID), zap.Error(err))
	}
}

// AbortMatch deletes the room's match unconditionally.
func (m *Manager) AbortMatch(ctx context.Context, channelID string) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return ErrMissingParams
	}
	defer m.locks.Lock(channelID)()
	if err := m.kv.Delete(ctx, bucketMatches, channelID); err != nil {
		return fmt.Errorf("delete match %s: %w", channelID, err)
	}
	m.logger.Info("wc_match_aborted", zap.String("channel", channelID))
	return nil
}

// MatchState returns a copy of the room's match, nil when there is none.
func (m *Manager) MatchState(ctx context.Context, channelID string) (*Match, error) {
	match, err := m.load(ctx, strings.TrimSpace(channelID))
	if err != nil || match == nil {
		return nil, err
	}
	return match, nil
}

// PlayerStats returns the cross-match profile; zero for unknown players.
func (m *Manager) PlayerStats(ctx context.Context, playerID string) (Profile, error) {
	var prof Profile
	if _, err := m.kv.Get(ctx, bucketPlayers, strings.TrimSpace(playerID), &prof); err != nil {
		return Profile{}, fmt.Errorf("load profile %s: %w", playerID, err)
	}
	return prof, nil
}

func (m *Manager) matches(ctx context.Context) ([]*Match, error) {
	ids, err := m.kv.Keys(ctx, bucketMatches)
	if err != nil {
		return nil, err
	}
	out := make([]*Match, 0, len(ids))
	for _, id := range ids {
		match, err := m.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if match != nil {
			out = append(out, match)
		}
	}
	return out, nil
}

func clonePlayer(p *Player) *Player {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func displayName(name, id string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return id
}
