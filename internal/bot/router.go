package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/park285/noitu-kakao-bot/internal/adapter/gamepresenter"
	"github.com/park285/noitu-kakao-bot/internal/archive"
	"github.com/park285/noitu-kakao-bot/internal/irisfast"
	"github.com/park285/noitu-kakao-bot/internal/lookup"
	"github.com/park285/noitu-kakao-bot/internal/noitu"
	"github.com/park285/noitu-kakao-bot/internal/store"
	"github.com/park285/noitu-kakao-bot/internal/wordchain"
	"github.com/park285/noitu-kakao-bot/pkg/gamedto"
)

// NoituGame is the nối từ surface the router drives.
type NoituGame interface {
	CheckChannel(ctx context.Context, channelID, userID, word string) (noitu.MoveResult, error)
	CheckUser(ctx context.Context, userID, word string) (noitu.MoveResult, error)
	ResetChannelGame(ctx context.Context, channelID string) (string, error)
	ResetUserGame(ctx context.Context, userID string) (string, error)
	CurrentWord(ctx context.Context, key string, isDM bool) (string, error)
	UserStats(ctx context.Context, channelID, userID string) (noitu.UserStats, error)
	DMStats(ctx context.Context, userID string) (noitu.UserStats, error)
	SetMode(ctx context.Context, channelID string, mode noitu.Mode) error
	Register(ctx context.Context, channelID, by string) (bool, error)
	Unregister(ctx context.Context, channelID string) (bool, error)
	IsRegistered(ctx context.Context, channelID string) (bool, error)
}

// WordChainGame is the English match surface the router drives.
type WordChainGame interface {
	StartMatch(ctx context.Context, channelID, starterID, name string) (*wordchain.Match, error)
	JoinMatch(ctx context.Context, channelID, playerID, name string) (*wordchain.Match, error)
	ProcessWord(ctx context.Context, channelID, playerID, word string) (wordchain.WordResult, error)
	AbortMatch(ctx context.Context, channelID string) error
	MatchState(ctx context.Context, channelID string) (*wordchain.Match, error)
	PlayerStats(ctx context.Context, playerID string) (wordchain.Profile, error)
}

type VietnameseLookup interface {
	Lookup(ctx context.Context, word string) (lookup.Entry, error)
}

type EnglishLookup interface {
	Define(ctx context.Context, word string) (lookup.Validation, error)
}

// MatchHistory reads archived matches; optional.
type MatchHistory interface {
	Recent(ctx context.Context, channelID string, limit int) ([]archive.MatchRecord, error)
}

type Config struct {
	Prefix string
	// AllowRoom filters inbound rooms; nil accepts every room.
	AllowRoom func(room string) bool
	// GroupRoom marks rooms that must never be read as 1:1 chats.
	GroupRoom    func(room string) bool
	TurnTimeout  time.Duration
	AbortTimeout time.Duration
	HistoryLimit int
	// ResetDelay is how long a room reset waits for a cancel.
	ResetDelay time.Duration
}

type Deps struct {
	Noitu      NoituGame
	WordChain  WordChainGame
	Vietnamese VietnameseLookup
	English    EnglishLookup
	History    MatchHistory

	Formatter *gamepresenter.Formatter
	Presenter *gamepresenter.Presenter
	Logger    *zap.Logger
}

// Router classifies inbound chat lines and dispatches commands and moves.
type Router struct {
	cfg Config

	noitu   NoituGame
	wc      WordChainGame
	vi      VietnameseLookup
	en      EnglishLookup
	history MatchHistory

	fmt    *gamepresenter.Formatter
	out    *gamepresenter.Presenter
	logger *zap.Logger

	resetMu sync.Mutex
	resets  map[string]*pendingReset
	after   func(d time.Duration, f func()) (stop func() bool)
}

func NewRouter(cfg Config, d Deps) (*Router, error) {
	switch {
	case d.Noitu == nil:
		return nil, errors.New("noitu service is required")
	case d.WordChain == nil:
		return nil, errors.New("word chain manager is required")
	case d.Formatter == nil || d.Presenter == nil:
		return nil, errors.New("formatter and presenter are required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = wordchain.DefaultTurnTimeout
	}
	if cfg.AbortTimeout <= 0 {
		cfg.AbortTimeout = wordchain.DefaultAbortTimeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 5
	}
	if cfg.ResetDelay <= 0 {
		cfg.ResetDelay = DefaultResetDelay
	}
	return &Router{
		cfg:     cfg,
		noitu:   d.Noitu,
		wc:      d.WordChain,
		vi:      d.Vietnamese,
		en:      d.English,
		history: d.History,
		fmt:     d.Formatter,
		out:     d.Presenter,
		logger:  d.Logger,
		resets:  make(map[string]*pendingReset),
		after:   afterFunc,
	}, nil
}

// Handle processes one inbound message. It blocks until the reply is sent.
func (r *Router) Handle(ctx context.Context, msg *irisfast.Message) {
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Msg)
	if text == "" {
		return
	}
	if r.cfg.AllowRoom != nil && !r.cfg.AllowRoom(msg.Room) {
		r.logger.Debug("room_ignored", zap.String("room", msg.Room))
		return
	}
	req := gamedto.RequestMeta{
		Room:       msg.Room,
		Sender:     msg.UserID(),
		SenderName: msg.SenderName(),
		DM:         msg.IsDirect() && (r.cfg.GroupRoom == nil || !r.cfg.GroupRoom(msg.Room)),
	}
	if req.Sender == "" {
		return
	}
	if req.SenderName == "" {
		req.SenderName = req.Sender
	}

	if r.cfg.Prefix != "" && strings.HasPrefix(text, r.cfg.Prefix) {
		r.command(ctx, req, strings.TrimSpace(strings.TrimPrefix(text, r.cfg.Prefix)))
		return
	}
	r.play(ctx, req, text)
}

// play treats unprefixed text as a move: any DM line is a solo nối từ move, a
// two-syllable line in a registered room is a room move, and a single word is
// offered to the room's English match. Words from players waiting for their
// turn get no reply.
func (r *Router) play(ctx context.Context, req gamedto.RequestMeta, text string) {
	if req.DM {
		res, err := r.noitu.CheckUser(ctx, req.Sender, text)
		if err != nil {
			r.fail(ctx, req, "noitu_dm_move_failed", err)
			return
		}
		r.reply(ctx, req.Room, r.fmt.NoituMove(res, req.SenderName))
		return
	}

	switch len(noitu.Syllables(noitu.Normalize(text))) {
	case noitu.WordLength:
		ok, err := r.noitu.IsRegistered(ctx, req.Room)
		if err != nil {
			r.logger.Warn("noitu_registry_failed", zap.String("room", req.Room), zap.Error(err))
			return
		}
		if !ok {
			return
		}
		res, err := r.noitu.CheckChannel(ctx, req.Room, req.Sender, text)
		if err != nil {
			r.fail(ctx, req, "noitu_channel_move_failed", err)
			return
		}
		r.reply(ctx, req.Room, r.fmt.NoituMove(res, req.SenderName))
	case 1:
		if !isPlainWord(text) {
			return
		}
		res, err := r.wc.ProcessWord(ctx, req.Room, req.Sender, text)
		if err != nil {
			r.fail(ctx, req, "wc_move_failed", err)
			return
		}
		switch res.Code {
		case wordchain.CodeIgnored, wordchain.CodeNotYourTurn:
			return
		}
		r.reply(ctx, req.Room, r.fmt.WordMove(res))
	}
}

func (r *Router) command(ctx context.Context, req gamedto.RequestMeta, raw string) {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		r.reply(ctx, req.Room, r.fmt.Help())
		return
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]
	switch cmd {
	case "help":
		r.reply(ctx, req.Room, r.fmt.Help())
	case "noitu":
		r.noituCommand(ctx, req, args)
	case "wc":
		r.wordChainCommand(ctx, req, args)
	default:
		r.reply(ctx, req.Room, r.fmt.UnknownCommand(cmd))
	}
}

func (r *Router) reply(ctx context.Context, room, text string) {
	if err := r.out.Text(ctx, room, text); err != nil {
		r.logger.Warn("reply_failed", zap.String("room", room), zap.Error(err))
	}
}

func (r *Router) fail(ctx context.Context, req gamedto.RequestMeta, event string, err error) {
	de := classify(err)
	r.logger.Error(event,
		zap.String("room", req.Room),
		zap.String("user", req.Sender),
		zap.String("code", de.Code),
		zap.Bool("retryable", de.Retryable),
		zap.Error(err),
	)
	r.reply(ctx, req.Room, r.fmt.Error())
}

// classify maps an engine or store failure to a domain error for logging.
func classify(err error) gamedto.DomainError {
	var de gamedto.DomainError
	switch {
	case errors.As(err, &de):
		return de
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return gamedto.DomainError{Code: "timeout", Message: err.Error(), Retryable: true}
	case errors.Is(err, store.ErrClosed):
		return gamedto.DomainError{Code: "store_closed", Message: err.Error()}
	case errors.Is(err, noitu.ErrMissingParams), errors.Is(err, wordchain.ErrMissingParams):
		return gamedto.DomainError{Code: "bad_request", Message: err.Error()}
	}
	return gamedto.DomainError{Code: "internal", Message: err.Error(), Retryable: true}
}

// isPlainWord accepts letters plus inner hyphens and apostrophes.
func isPlainWord(s string) bool {
	letters := 0
	for _, c := range s {
		switch {
		case unicode.IsLetter(c):
			letters++
		case c == '-' || c == '\'':
		default:
			return false
		}
	}
	return letters > 0
}
