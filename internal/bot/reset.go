package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/park285/noitu-kakao-bot/pkg/gamedto"
)

const (
	DefaultResetDelay = 15 * time.Second
	resetTimeout      = 30 * time.Second
)

// pendingReset is a room reset waiting out its cancel window.
type pendingReset struct {
	req  gamedto.RequestMeta
	stop func() bool
}

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// requestReset announces a room reset and runs it after ResetDelay unless
// someone cancels first. A room holds at most one pending reset.
func (r *Router) requestReset(ctx context.Context, req gamedto.RequestMeta) {
	if !r.registered(ctx, req) {
		return
	}
	r.resetMu.Lock()
	if _, busy := r.resets[req.Room]; busy {
		r.resetMu.Unlock()
		r.reply(ctx, req.Room, r.fmt.ResetBusy())
		return
	}
	p := &pendingReset{req: req}
	r.resets[req.Room] = p
	p.stop = r.after(r.cfg.ResetDelay, func() { r.fireReset(p) })
	r.resetMu.Unlock()

	r.logger.Info("noitu_reset_requested", zap.String("room", req.Room), zap.String("user", req.Sender))
	r.reply(ctx, req.Room, r.fmt.ResetPending(req.SenderName, r.cfg.ResetDelay))
}

func (r *Router) cancelReset(ctx context.Context, req gamedto.RequestMeta) {
	p := r.takeReset(req.Room, nil)
	if p == nil {
		r.reply(ctx, req.Room, r.fmt.ResetNone())
		return
	}
	p.stop()
	r.logger.Info("noitu_reset_cancelled", zap.String("room", req.Room), zap.String("user", req.Sender))
	r.reply(ctx, req.Room, r.fmt.ResetCancelled(req.SenderName))
}

// fireReset runs p unless it was cancelled or replaced in the meantime.
func (r *Router) fireReset(p *pendingReset) {
	if r.takeReset(p.req.Room, p) == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	defer cancel()
	w, err := r.noitu.ResetChannelGame(ctx, p.req.Room)
	if err != nil {
		r.fail(ctx, p.req, "noitu_reset_failed", err)
		return
	}
	r.reply(ctx, p.req.Room, r.fmt.ResetDone(p.req.SenderName, w))
}

// takeReset removes the room's pending reset. When want is set it only
// removes that exact request.
func (r *Router) takeReset(room string, want *pendingReset) *pendingReset {
	r.resetMu.Lock()
	defer r.resetMu.Unlock()
	p, ok := r.resets[room]
	if !ok || (want != nil && p != want) {
		return nil
	}
	delete(r.resets, room)
	return p
}

func (r *Router) dropReset(room string) {
	if p := r.takeReset(room, nil); p != nil {
		p.stop()
	}
}

// Close stops every pending reset without running it.
func (r *Router) Close() {
	r.resetMu.Lock()
	defer r.resetMu.Unlock()
	for room, p := range r.resets {
		p.stop()
		delete(r.resets, room)
	}
}
