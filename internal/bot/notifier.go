package bot

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/noitu-kakao-bot/internal/adapter/gamepresenter"
	"github.com/park285/noitu-kakao-bot/internal/wordchain"
)

// Notifier announces sweeper knockouts and aborts in the affected room.
type Notifier struct {
	fmt    *gamepresenter.Formatter
	out    *gamepresenter.Presenter
	logger *zap.Logger
}

var _ wordchain.Notifier = (*Notifier)(nil)

func NewNotifier(f *gamepresenter.Formatter, p *gamepresenter.Presenter, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{fmt: f, out: p, logger: logger}
}

func (n *Notifier) TimedOut(ctx context.Context, t wordchain.Timeout, res *wordchain.KnockoutResult) {
	text := n.fmt.Knockout(res)
	var err error
	if res != nil && res.GameOver {
		err = n.out.MatchOver(ctx, t.ChannelID, text, res.Match)
	} else {
		err = n.out.Text(ctx, t.ChannelID, text)
	}
	if err != nil {
		n.logger.Warn("wc_notify_failed", zap.String("channel", t.ChannelID), zap.String("player", t.PlayerID), zap.Error(err))
	}
}

func (n *Notifier) Aborted(ctx context.Context, channelID string) {
	if err := n.out.Text(ctx, channelID, n.fmt.AbortTimeout()); err != nil {
		n.logger.Warn("wc_notify_failed", zap.String("channel", channelID), zap.Error(err))
	}
}
