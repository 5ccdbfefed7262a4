package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/park285/noitu-kakao-bot/pkg/gamedto"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// ScoreboardRenderer draws a finished match card.
type ScoreboardRenderer interface {
	RenderPNG(ctx context.Context, sb gamedto.Scoreboard) ([]byte, error)
}

type pngScoreboard struct {
	// opentype faces are not safe for concurrent use
	mu sync.Mutex
}

func NewScoreboardRenderer() ScoreboardRenderer { return &pngScoreboard{} }

const (
	cardWidth    = 640
	margin       = 28
	headerHeight = 96
	rowHeight    = 52
	rowGap       = 8
	footerHeight = 56
	panelRadius  = 12
	iconSize     = 32
	maxRows      = 12
)

var (
	bgColor        = color.RGBA{22, 25, 37, 255}
	panelColor     = color.NRGBA{R: 34, G: 38, B: 56, A: 255}
	winnerPanel    = color.NRGBA{R: 64, G: 56, B: 24, A: 255}
	outPanel       = color.NRGBA{R: 40, G: 30, B: 36, A: 255}
	shadowColor    = color.NRGBA{0, 0, 0, 60}
	textPrimary    = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	textSecondary  = color.NRGBA{R: 160, G: 168, B: 200, A: 255}
	textHighlight  = color.NRGBA{R: 245, G: 197, B: 66, A: 255}
	errNoScoreRows = errors.New("scoreboard has no rows")
)

func (r *pngScoreboard) RenderPNG(ctx context.Context, sb gamedto.Scoreboard) ([]byte, error) {
	if len(sb.Rows) == 0 {
		return nil, errNoScoreRows
	}
	rows := sb.Rows
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fs, err := loadFaces()
	if err != nil {
		return nil, err
	}

	height := headerHeight + len(rows)*(rowHeight+rowGap) + footerHeight
	img := image.NewRGBA(image.Rect(0, 0, cardWidth, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bgColor), image.Point{}, draw.Src)

	title := strings.TrimSpace(sb.Title)
	if title == "" {
		title = "Word Chain"
	}
	drawText(img, fs.title, printable(fs.title, title), margin, 46, textPrimary)
	if sub := strings.TrimSpace(sb.Subtitle); sub != "" {
		drawText(img, fs.caption, truncate(fs.caption, printable(fs.caption, sub), cardWidth-2*margin), margin, 76, textSecondary)
	}

	y := headerHeight
	for _, row := range rows {
		rect := image.Rect(margin, y, cardWidth-margin, y+rowHeight)
		fill := panelColor
		switch {
		case row.Winner:
			fill = winnerPanel
		case row.KnockedOut:
			fill = outPanel
		}
		drawRoundedPanel(img, rect.Add(image.Pt(0, 4)), panelRadius, shadowColor)
		drawRoundedPanel(img, rect, panelRadius, fill)

		baseline := y + (rowHeight+fs.body.Metrics().Ascent.Ceil()-fs.body.Metrics().Descent.Ceil())/2
		rankClr := textSecondary
		if row.Winner {
			rankClr = textHighlight
		}
		drawText(img, fs.body, "#"+strconv.Itoa(row.Rank), rect.Min.X+16, baseline, rankClr)

		nameX := rect.Min.X + 72
		if icon := rowIcon(row); icon != "" {
			if ic, err := renderIcon(icon, iconSize); err == nil {
				at := image.Pt(nameX, y+(rowHeight-iconSize)/2)
				draw.Draw(img, image.Rectangle{Min: at, Max: at.Add(image.Pt(iconSize, iconSize))}, ic, image.Point{}, draw.Over)
			}
			nameX += iconSize + 10
		}
		score := fmt.Sprintf("%d pts  %d words", row.Points, row.WordsPlayed)
		scoreW := font.MeasureString(fs.body, score).Round()
		name := truncate(fs.body, printable(fs.body, row.Name), rect.Max.X-16-scoreW-16-nameX)
		drawText(img, fs.body, name, nameX, baseline, textPrimary)
		drawText(img, fs.body, score, rect.Max.X-16-scoreW, baseline, textSecondary)
		y += rowHeight + rowGap
	}

	footer := fmt.Sprintf("%d turns", sb.Turns)
	if sb.Duration > 0 {
		footer += fmt.Sprintf("  ·  %s", sb.Duration.Round(time.Second))
	}
	if w := strings.TrimSpace(sb.LastWord); w != "" {
		footer += "  ·  last word: " + w
	}
	drawText(img, fs.caption, truncate(fs.caption, printable(fs.caption, footer), cardWidth-2*margin), margin, y+30, textSecondary)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func rowIcon(row gamedto.ScoreRow) string {
	switch {
	case row.Winner:
		return "trophy"
	case row.KnockedOut:
		return "out"
	default:
		return ""
	}
}

func drawText(dst draw.Image, face font.Face, text string, x, baseline int, clr color.Color) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(clr), Face: face, Dot: fixed.P(x, baseline)}
	d.DrawString(text)
}

func truncate(face font.Face, text string, maxWidth int) string {
	text = strings.TrimSpace(text)
	if maxWidth <= 0 || font.MeasureString(face, text).Round() <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if c := string(runes) + "..."; font.MeasureString(face, c).Round() <= maxWidth {
			return c
		}
	}
	return ""
}
