package noitu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/noitu-kakao-bot/internal/store"
	"github.com/park285/noitu-kakao-bot/internal/util"
	"go.uber.org/zap"
)

const (
	bucketChannels = "noitu_channels"
	bucketUsers    = "noitu_users"
	bucketRegistry = "noitu_registry"
)

// ChannelInfo marks a room where bare two-syllable messages are game moves.
type ChannelInfo struct {
	ID           string    `json:"id"`
	RegisteredBy string    `json:"registeredBy,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// UserStats is the read model behind the stats command.
type UserStats struct {
	CurrentStreak int    `json:"currentStreak"`
	BestStreak    int    `json:"bestStreak"`
	Wins          int    `json:"wins"`
	Word          string `json:"word,omitempty"`
}

// Service runs nối từ sessions over a KV store. Every operation on one room or DM user
// runs under that key's lock from load to save.
type Service struct {
	engine *Engine
	kv     store.KV
	locks  *util.KeyedMutex
	logger *zap.Logger
	now    func() time.Time
}

type ServiceOption func(*Service)

func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(engine *Engine, kv store.KV, opts ...ServiceOption) (*Service, error) {
	if engine == nil || engine.graph == nil {
		return nil, errors.New("noitu: engine is required")
	}
	if kv == nil {
		return nil, errors.New("noitu: store is required")
	}
	s := &Service{engine: engine, kv: kv, locks: util.NewKeyedMutex(), logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Engine() *Engine { return s.engine }

func channelLock(id string) string { return "c:" + id }
func userLock(id string) string    { return "u:" + id }

func (s *Service) loadChannel(ctx context.Context, channelID string) (*Session, error) {
	sess := &Session{}
	found, err := s.kv.Get(ctx, bucketChannels, channelID, sess)
	if err != nil {
		return nil, fmt.Errorf("load channel %s: %w", channelID, err)
	}
	if !found {
		return NewChannelSession(ModeBot), nil
	}
	sess.normalizeLoaded(false, ModeBot)
	return sess, nil
}

func (s *Service) loadUser(ctx context.Context, userID string) (*Session, error) {
	sess := &Session{}
	found, err := s.kv.Get(ctx, bucketUsers, userID, sess)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	if !found {
		return NewSoloSession(), nil
	}
	sess.normalizeLoaded(true, ModeBot)
	return sess, nil
}

// CheckChannel processes word submitted by userID in a room.
func (s *Service) CheckChannel(ctx context.Context, channelID, userID, word string) (MoveResult, error) {
	channelID, userID = strings.TrimSpace(channelID), strings.TrimSpace(userID)
	if channelID == "" || userID == "" || strings.TrimSpace(word) == "" {
		return MoveResult{}, ErrMissingParams
	}
	defer s.locks.Lock(channelLock(channelID))()

	sess, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return MoveResult{}, err
	}
	res, err := s.engine.ProcessMove(sess, word, userID)
	if err != nil {
		return MoveResult{}, err
	}
	if res.Persist {
		if err := s.kv.Put(ctx, bucketChannels, channelID, sess); err != nil {
			return MoveResult{}, fmt.Errorf("save channel %s: %w", channelID, err)
		}
	}
	s.logMove("noitu_channel_move", channelID, userID, res)
	return res, nil
}

// CheckUser processes a DM submission; DM sessions always play against the bot.
func (s *Service) CheckUser(ctx context.Context, userID, word string) (MoveResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.TrimSpace(word) == "" {
		return MoveResult{}, ErrMissingParams
	}
	defer s.locks.Lock(userLock(userID))()

	sess, err := s.loadUser(ctx, userID)
	if err != nil {
		return MoveResult{}, err
	}
	res, err := s.engine.ProcessMove(sess, word, userID)
	if err != nil {
		return MoveResult{}, err
	}
	if res.Persist {
		if err := s.kv.Put(ctx, bucketUsers, userID, sess); err != nil {
			return MoveResult{}, fmt.Errorf("save user %s: %w", userID, err)
		}
	}
	s.logMove("noitu_dm_move", "", userID, res)
	return res, nil
}

func (s *Service) logMove(event, channelID, userID string, res MoveResult) {
	s.logger.Debug(event,
		zap.String("channel", channelID),
		zap.String("user", userID),
		zap.String("code", string(res.Code)),
		zap.String("word", res.Word),
		zap.Int("streak", res.Stats.CurrentStreak),
	)
}

// ResetChannelGame starts a new round in a room and returns the fresh phrase.
func (s *Service) ResetChannelGame(ctx context.Context, channelID string) (string, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return "", ErrMissingParams
	}
	defer s.locks.Lock(channelLock(channelID))()

	sess, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return "", err
	}
	w := s.engine.Reset(sess)
	if err := s.kv.Put(ctx, bucketChannels, channelID, sess); err != nil {
		return "", fmt.Errorf("save channel %s: %w", channelID, err)
	}
	return w, nil
}

// ResetUserGame starts a new DM round; the current streak resets, best and wins stay.
func (s *Service) ResetUserGame(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrMissingParams
	}
	defer s.locks.Lock(userLock(userID))()

	sess, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	w := s.engine.Reset(sess)
	if err := s.kv.Put(ctx, bucketUsers, userID, sess); err != nil {
		return "", fmt.Errorf("save user %s: %w", userID, err)
	}
	return w, nil
}

// CurrentWord returns the active phrase of a room, or of a DM user when isDM is set.
// Empty when no round has started.
func (s *Service) CurrentWord(ctx context.Context, key string, isDM bool) (string, error) {
	var (
		sess *Session
		err  error
	)
	if isDM {
		sess, err = s.loadUser(ctx, key)
	} else {
		sess, err = s.loadChannel(ctx, key)
	}
	if err != nil {
		return "", err
	}
	return sess.Word, nil
}

// UserStats returns userID's stats in a room.
func (s *Service) UserStats(ctx context.Context, channelID, userID string) (UserStats, error) {
	sess, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return UserStats{}, err
	}
	return toUserStats(sess.Stats(userID), sess.Word), nil
}

// DMStats returns userID's stats in their DM session.
func (s *Service) DMStats(ctx context.Context, userID string) (UserStats, error) {
	sess, err := s.loadUser(ctx, userID)
	if err != nil {
		return UserStats{}, err
	}
	return toUserStats(sess.Stats(userID), sess.Word), nil
}

func toUserStats(p PlayerStats, word string) UserStats {
	return UserStats{CurrentStreak: p.CurrentStreak, BestStreak: p.BestStreak, Wins: p.Wins, Word: word}
}

// Mode returns the room's play mode; rooms without a session play against the bot.
func (s *Service) Mode(ctx context.Context, channelID string) (Mode, error) {
	sess, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return "", err
	}
	return sess.Mode(), nil
}

// SetMode switches a room between bot and PvP play. The round in progress continues.
func (s *Service) SetMode(ctx context.Context, channelID string, mode Mode) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return ErrMissingParams
	}
	if _, ok := ParseMode(string(mode)); !ok {
		return fmt.Errorf("unknown mode %q", mode)
	}
	defer s.locks.Lock(channelLock(channelID))()

	sess, err := s.loadChannel(ctx, channelID)
	if err != nil {
		return err
	}
	sess.Channel.Mode = mode
	if err := s.kv.Put(ctx, bucketChannels, channelID, sess); err != nil {
		return fmt.Errorf("save channel %s: %w", channelID, err)
	}
	s.logger.Info("noitu_mode_set", zap.String("channel", channelID), zap.String("mode", string(mode)))
	return nil
}

// Register turns a room into a nối từ room. added is false when it already was one.
func (s *Service) Register(ctx context.Context, channelID, by string) (added bool, err error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return false, ErrMissingParams
	}
	defer s.locks.Lock(channelLock(channelID))()

	var info ChannelInfo
	found, err := s.kv.Get(ctx, bucketRegistry, channelID, &info)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}
	info = ChannelInfo{ID: channelID, RegisteredBy: by, RegisteredAt: s.now()}
	if err := s.kv.Put(ctx, bucketRegistry, channelID, info); err != nil {
		return false, err
	}
	s.logger.Info("noitu_channel_registered", zap.String("channel", channelID), zap.String("by", by))
	return true, nil
}

// Unregister removes a room and drops its session. removed is false when it was not registered.
func (s *Service) Unregister(ctx context.Context, channelID string) (removed bool, err error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return false, ErrMissingParams
	}
	defer s.locks.Lock(channelLock(channelID))()

	var info ChannelInfo
	found, err := s.kv.Get(ctx, bucketRegistry, channelID, &info)
	if err != nil || !found {
		return false, err
	}
	if err := s.kv.Delete(ctx, bucketRegistry, channelID); err != nil {
		return false, err
	}
	if err := s.kv.Delete(ctx, bucketChannels, channelID); err != nil {
		return true, fmt.Errorf("drop channel session %s: %w", channelID, err)
	}
	s.logger.Info("noitu_channel_unregistered", zap.String("channel", channelID))
	return true, nil
}

func (s *Service) IsRegistered(ctx context.Context, channelID string) (bool, error) {
	var info ChannelInfo
	return s.kv.Get(ctx, bucketRegistry, strings.TrimSpace(channelID), &info)
}

// Channels lists registered room ids.
func (s *Service) Channels(ctx context.Context) ([]string, error) {
	return s.kv.Keys(ctx, bucketRegistry)
}
