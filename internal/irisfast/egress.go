package irisfast

import (
	"context"
	"encoding/base64"
	"errors"

	"go.uber.org/zap"
)

// Egress sends replies into a room over HTTP or the WebSocket.
type Egress interface {
	SendText(ctx context.Context, room, message string) error
	SendImage(ctx context.Context, room, imageBase64 string) error
}

// SendPNG base64-encodes png and sends it as an image reply.
func SendPNG(ctx context.Context, e Egress, room string, png []byte) error {
	return e.SendImage(ctx, room, base64.StdEncoding.EncodeToString(png))
}

type replySender interface {
	SendMessage(ctx context.Context, room, message string) error
	SendImage(ctx context.Context, room, imageBase64 string) error
}

type frameWriter interface {
	Connected() bool
	WriteJSON(ctx context.Context, v any) error
}

// NewEgress picks the transport: "ws", "http", or "auto" (WS while connected, one HTTP
// fallback per failed send). With dryrun set nothing leaves the process.
func NewEgress(mode string, dryrun bool, c *Client, ws *WebSocket, logger *zap.Logger) Egress {
	var (
		h replySender
		w frameWriter
	)
	if c != nil {
		h = c
	}
	if ws != nil {
		w = ws
	}
	return newEgress(mode, dryrun, h, w, logger)
}

func newEgress(mode string, dryrun bool, h replySender, w frameWriter, logger *zap.Logger) Egress {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dryrun {
		return dryRunEgress{logger: logger}
	}
	switch mode {
	case "ws":
		return &wsEgress{ws: w}
	case "auto":
		return &autoEgress{ws: &wsEgress{ws: w}, http: &httpEgress{c: h}, logger: logger}
	default:
		return &httpEgress{c: h}
	}
}

type httpEgress struct{ c replySender }

func (h *httpEgress) SendText(ctx context.Context, room, message string) error {
	if h.c == nil {
		return errors.New("http egress not available")
	}
	return h.c.SendMessage(ctx, room, message)
}

func (h *httpEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	if h.c == nil {
		return errors.New("http egress not available")
	}
	return h.c.SendImage(ctx, room, imageBase64)
}

type wsEgress struct{ ws frameWriter }

func (w *wsEgress) available() bool { return w.ws != nil && w.ws.Connected() }

func (w *wsEgress) SendText(ctx context.Context, room, message string) error {
	if !w.available() {
		return ErrNotConnected
	}
	return w.ws.WriteJSON(ctx, &ReplyRequest{Type: "text", Room: room, Data: message})
}

func (w *wsEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	if !w.available() {
		return ErrNotConnected
	}
	return w.ws.WriteJSON(ctx, &ReplyRequest{Type: "image", Room: room, Data: imageBase64})
}

type autoEgress struct {
	ws     *wsEgress
	http   *httpEgress
	logger *zap.Logger
}

func (a *autoEgress) SendText(ctx context.Context, room, message string) error {
	if a.ws.available() {
		err := a.ws.SendText(ctx, room, message)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", "text"), zap.String("room", room), zap.Error(err))
	}
	return a.http.SendText(ctx, room, message)
}

func (a *autoEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	if a.ws.available() {
		err := a.ws.SendImage(ctx, room, imageBase64)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", "image"), zap.String("room", room), zap.Error(err))
	}
	return a.http.SendImage(ctx, room, imageBase64)
}

type dryRunEgress struct{ logger *zap.Logger }

func (d dryRunEgress) SendText(_ context.Context, room, message string) error {
	d.logger.Info("egress_dryrun", zap.String("type", "text"), zap.String("room", room), zap.String("text", message))
	return nil
}

func (d dryRunEgress) SendImage(_ context.Context, room, imageBase64 string) error {
	d.logger.Info("egress_dryrun", zap.String("type", "image"), zap.String("room", room), zap.Int("bytes", len(imageBase64)))
	return nil
}
