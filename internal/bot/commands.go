package bot

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/noitu-kakao-bot/internal/adapter/gamepresenter"
	"github.com/park285/noitu-kakao-bot/internal/lookup"
	"github.com/park285/noitu-kakao-bot/internal/noitu"
	"github.com/park285/noitu-kakao-bot/internal/util"
	"github.com/park285/noitu-kakao-bot/internal/wordchain"
	"github.com/park285/noitu-kakao-bot/pkg/gamedto"
)

const (
	noituHelpHeader = "🎮 Nối Từ - Hướng dẫn"
	wcHelpHeader    = "🇬🇧 English Word Chain"
	viFoldSuffix    = " (xem thêm)"
	enFoldSuffix    = " (more)"
)

func (r *Router) noituCommand(ctx context.Context, req gamedto.RequestMeta, args []string) {
	sub := ""
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}
	switch sub {
	case "", "help":
		r.reply(ctx, req.Room, util.FoldLong(r.fmt.NoituHelp(r.cfg.ResetDelay), noituHelpHeader, ""))
	case "start":
		r.noituStart(ctx, req)
	case "stop":
		r.noituStop(ctx, req)
	case "mode":
		r.noituMode(ctx, req, args[1:])
	case "reset", "newgame":
		if req.DM {
			r.noituReset(ctx, req)
			return
		}
		r.requestReset(ctx, req)
	case "cancel":
		r.cancelReset(ctx, req)
	case "word":
		key := req.Room
		if req.DM {
			key = req.Sender
		}
		w, err := r.noitu.CurrentWord(ctx, key, req.DM)
		if err != nil {
			r.fail(ctx, req, "noitu_word_failed", err)
			return
		}
		r.reply(ctx, req.Room, r.fmt.CurrentWord(w))
	case "stats":
		var (
			st  noitu.UserStats
			err error
		)
		if req.DM {
			st, err = r.noitu.DMStats(ctx, req.Sender)
		} else {
			st, err = r.noitu.UserStats(ctx, req.Room, req.Sender)
		}
		if err != nil {
			r.fail(ctx, req, "noitu_stats_failed", err)
			return
		}
		r.reply(ctx, req.Room, r.fmt.NoituStats(req.SenderName, st))
	case "define":
		r.noituDefine(ctx, req, strings.Join(args[1:], " "))
	default:
		r.reply(ctx, req.Room, r.fmt.UnknownCommand("noitu "+sub))
	}
}

// noituStart registers a room, or starts a fresh solo round in a DM.
func (r *Router) noituStart(ctx context.Context, req gamedto.RequestMeta) {
	if req.DM {
		r.noituReset(ctx, req)
		return
	}
	added, err := r.noitu.Register(ctx, req.Room, req.Sender)
	if err != nil {
		r.fail(ctx, req, "noitu_register_failed", err)
		return
	}
	if !added {
		r.reply(ctx, req.Room, r.fmt.AlreadyRegistered())
		return
	}
	w, err := r.noitu.ResetChannelGame(ctx, req.Room)
	if err != nil {
		r.fail(ctx, req, "noitu_reset_failed", err)
		return
	}
	r.reply(ctx, req.Room, r.fmt.Registered(w))
}

func (r *Router) noituStop(ctx context.Context, req gamedto.RequestMeta) {
	if req.DM {
		r.reply(ctx, req.Room, r.fmt.NotRegistered())
		return
	}
	r.dropReset(req.Room)
	removed, err := r.noitu.Unregister(ctx, req.Room)
	if err != nil {
		r.fail(ctx, req, "noitu_unregister_failed", err)
		return
	}
	if !removed {
		r.reply(ctx, req.Room, r.fmt.NotRegistered())
		return
	}
	r.reply(ctx, req.Room, r.fmt.Unregistered())
}

func (r *Router) noituMode(ctx context.Context, req gamedto.RequestMeta, args []string) {
	if len(args) == 0 {
		r.reply(ctx, req.Room, r.fmt.ModeUsage())
		return
	}
	mode, ok := noitu.ParseMode(args[0])
	if !ok {
		r.reply(ctx, req.Room, r.fmt.ModeUsage())
		return
	}
	if req.DM {
		r.reply(ctx, req.Room, r.fmt.NotRegistered())
		return
	}
	if !r.registered(ctx, req) {
		return
	}
	if err := r.noitu.SetMode(ctx, req.Room, mode); err != nil {
		r.fail(ctx, req, "noitu_mode_failed", err)
		return
	}
	r.reply(ctx, req.Room, r.fmt.ModeSet(mode))
}

// noituReset restarts the sender's solo round at once.
func (r *Router) noituReset(ctx context.Context, req gamedto.RequestMeta) {
	w, err := r.noitu.ResetUserGame(ctx, req.Sender)
	if err != nil {
		r.fail(ctx, req, "noitu_reset_failed", err)
		return
	}
	r.reply(ctx, req.Room, r.fmt.NoituReset(w))
}

func (r *Router) noituDefine(ctx context.Context, req gamedto.RequestMeta, word string) {
	word = noitu.Normalize(word)
	if word == "" || r.vi == nil {
		r.reply(ctx, req.Room, r.fmt.NoituDefineUsage())
		return
	}
	entry, err := r.vi.Lookup(ctx, word)
	if err != nil && !errors.Is(err, lookup.ErrNotFound) {
		r.logger.Warn("noitu_define_failed", zap.String("word", word), zap.Error(err))
	}
	text := r.fmt.NoituDefine(word, entry, err)
	r.reply(ctx, req.Room, util.FoldLong(text, firstLine(text), viFoldSuffix))
}

// registered replies with the "not registered" hint when the room is not a nối từ room.
func (r *Router) registered(ctx context.Context, req gamedto.RequestMeta) bool {
	ok, err := r.noitu.IsRegistered(ctx, req.Room)
	if err != nil {
		r.fail(ctx, req, "noitu_registry_failed", err)
		return false
	}
	if !ok {
		r.reply(ctx, req.Room, r.fmt.NotRegistered())
	}
	return ok
}

func (r *Router) wordChainCommand(ctx context.Context, req gamedto.RequestMeta, args []string) {
	sub := ""
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}
	switch sub {
	case "", "help":
		r.reply(ctx, req.Room, util.FoldLong(r.fmt.WordChainHelp(r.cfg.TurnTimeout), wcHelpHeader, ""))
	case "start":
		m, err := r.wc.StartMatch(ctx, req.Room, req.Sender, req.SenderName)
		switch {
		case errors.Is(err, wordchain.ErrMatchInProgress):
			r.reply(ctx, req.Room, r.fmt.MatchInProgress())
		case err != nil:
			r.fail(ctx, req, "wc_start_failed", err)
		default:
			r.reply(ctx, req.Room, r.fmt.MatchStarted(m, r.cfg.AbortTimeout))
		}
	case "join":
		m, err := r.wc.JoinMatch(ctx, req.Room, req.Sender, req.SenderName)
		switch {
		case errors.Is(err, wordchain.ErrNoMatch):
			r.reply(ctx, req.Room, r.fmt.NoMatch())
		case errors.Is(err, wordchain.ErrAlreadyJoined):
			r.reply(ctx, req.Room, r.fmt.AlreadyJoined())
		case err != nil:
			r.fail(ctx, req, "wc_join_failed", err)
		default:
			r.reply(ctx, req.Room, r.fmt.PlayerJoined(m, req.Sender))
		}
	case "stop":
		m, err := r.wc.MatchState(ctx, req.Room)
		if err != nil {
			r.fail(ctx, req, "wc_state_failed", err)
			return
		}
		if m == nil {
			r.reply(ctx, req.Room, r.fmt.NoMatch())
			return
		}
		if err := r.wc.AbortMatch(ctx, req.Room); err != nil {
			r.fail(ctx, req, "wc_abort_failed", err)
			return
		}
		r.reply(ctx, req.Room, r.fmt.MatchAborted())
	case "state":
		m, err := r.wc.MatchState(ctx, req.Room)
		if err != nil {
			r.fail(ctx, req, "wc_state_failed", err)
			return
		}
		r.reply(ctx, req.Room, r.fmt.MatchState(m))
	case "stats":
		id, name := req.Sender, req.SenderName
		if len(args) > 1 {
			id = strings.Join(args[1:], " ")
			name = id
		}
		p, err := r.wc.PlayerStats(ctx, id)
		if err != nil {
			r.fail(ctx, req, "wc_stats_failed", err)
			return
		}
		r.reply(ctx, req.Room, r.fmt.WordChainStats(name, p))
	case "define":
		r.wordChainDefine(ctx, req, strings.ToLower(strings.Join(args[1:], " ")))
	case "history":
		r.wordChainHistory(ctx, req)
	default:
		r.reply(ctx, req.Room, r.fmt.UnknownCommand("wc "+sub))
	}
}

func (r *Router) wordChainDefine(ctx context.Context, req gamedto.RequestMeta, word string) {
	word = strings.TrimSpace(word)
	if word == "" || r.en == nil {
		r.reply(ctx, req.Room, r.fmt.WordChainDefineUsage())
		return
	}
	v, err := r.en.Define(ctx, word)
	if err != nil && !errors.Is(err, lookup.ErrNotFound) {
		r.logger.Warn("wc_define_failed", zap.String("word", word), zap.Error(err))
	}
	text := r.fmt.WordChainDefine(word, v, err)
	r.reply(ctx, req.Room, util.FoldLong(text, firstLine(text), enFoldSuffix))
}

func (r *Router) wordChainHistory(ctx context.Context, req gamedto.RequestMeta) {
	if r.history == nil {
		r.reply(ctx, req.Room, r.fmt.HistoryUnavailable())
		return
	}
	records, err := r.history.Recent(ctx, req.Room, r.cfg.HistoryLimit)
	if err != nil {
		r.fail(ctx, req, "wc_history_failed", err)
		return
	}
	r.reply(ctx, req.Room, r.fmt.History(gamepresenter.ToMatchSummaries(records)))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
