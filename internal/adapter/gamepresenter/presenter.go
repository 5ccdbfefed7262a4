package gamepresenter

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/noitu-kakao-bot/internal/irisfast"
	"github.com/park285/noitu-kakao-bot/internal/render"
	"github.com/park285/noitu-kakao-bot/internal/wordchain"
)

// Presenter delivers formatted replies and scoreboard images without coupling to the command layer.
type Presenter struct {
	egress   irisfast.Egress
	renderer render.ScoreboardRenderer
	logger   *zap.Logger
}

// NewPresenter wires an egress; renderer may be nil to send text only.
func NewPresenter(egress irisfast.Egress, renderer render.ScoreboardRenderer, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{egress: egress, renderer: renderer, logger: logger}
}

func (p *Presenter) Text(ctx context.Context, room, message string) error {
	if p == nil || p.egress == nil || strings.TrimSpace(message) == "" {
		return nil
	}
	return p.egress.SendText(ctx, room, message)
}

// MatchOver sends message, then a scoreboard card for the ended match.
// A render failure is logged and does not fail the call.
func (p *Presenter) MatchOver(ctx context.Context, room, message string, m *wordchain.Match) error {
	if err := p.Text(ctx, room, message); err != nil {
		return err
	}
	if p == nil || p.renderer == nil || m == nil || m.Status != wordchain.StatusEnded {
		return nil
	}
	png, err := p.renderer.RenderPNG(ctx, ToScoreboard(m))
	if err != nil {
		p.logger.Warn("scoreboard_render_failed", zap.String("room", room), zap.String("match", m.ID), zap.Error(err))
		return nil
	}
	return irisfast.SendPNG(ctx, p.egress, room, png)
}
