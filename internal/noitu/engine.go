package noitu

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMissingParams = errors.New("missing required parameters")

type ResultType string

const (
	TypeSuccess ResultType = "success"
	TypeError   ResultType = "error"
	TypeInfo    ResultType = "info"
)

type Code string

const (
	CodeOK            Code = "ok"
	CodeNewGame       Code = "new_game"
	CodeInvalidFormat Code = "invalid_format"
	CodeMismatch      Code = "mismatch"
	CodeRepeated      Code = "repeated"
	CodeNotInDict     Code = "not_in_dict"
	CodeWin           Code = "win"
	CodeLoss          Code = "loss"
)

// MoveResult describes one processed submission. Word is the session's current phrase
// after the move; it is a fresh phrase whenever Reset is set.
type MoveResult struct {
	Type ResultType
	Code Code

	Word     string
	Played   string
	BotWord  string // bot reply on OK; the dead-end reply on LOSS
	Expected string // syllable the submission had to start with

	Stats    PlayerStats // mover after the move
	Previous PlayerStats // mover before the move
	// WrongCount is the mistake number this submission produced (1..MaxWrongCount).
	WrongCount  int
	Remaining   int
	StreakReset bool
	Reset       bool

	Solo bool
	Mode Mode
	// Persist is false when the session was not touched.
	Persist bool
}

// StatusLine reports the mover's streak, best streak and, in PvP or on a win, wins.
func (r MoveResult) StatusLine() string {
	parts := []string{
		fmt.Sprintf("Chuỗi hiện tại: %d", r.Stats.CurrentStreak),
		fmt.Sprintf("Kỷ lục: %d", r.Stats.BestStreak),
	}
	if r.Mode == ModePvP || r.Code == CodeWin {
		parts = append(parts, fmt.Sprintf("Thắng: %d", r.Stats.Wins))
	}
	return strings.Join(parts, " | ")
}

// Engine applies moves to sessions. It holds no per-session state.
type Engine struct {
	graph *Graph
}

func NewEngine(g *Graph) *Engine { return &Engine{graph: g} }

func (e *Engine) Graph() *Graph { return e.graph }

// ProcessMove validates raw against sess and mutates sess accordingly.
// Checks run in order: format, no active word, match, repetition, dictionary.
func (e *Engine) ProcessMove(sess *Session, raw, userID string) (MoveResult, error) {
	if sess == nil || strings.TrimSpace(raw) == "" || strings.TrimSpace(userID) == "" {
		return MoveResult{}, ErrMissingParams
	}
	played := Normalize(raw)
	res := MoveResult{Played: played, Solo: sess.IsSolo(), Mode: sess.Mode(), Word: sess.Word}

	parts := Syllables(played)
	if len(parts) != WordLength {
		res.Type, res.Code = TypeError, CodeInvalidFormat
		if sess.Word != "" {
			res.Expected = lastSyllable(sess.Word)
		}
		res.Stats = sess.Stats(userID)
		res.Previous = res.Stats
		return res, nil
	}

	if sess.Word == "" {
		e.reseed(sess)
		st := sess.statsFor(userID)
		st.WrongCount = 0
		res.Type, res.Code = TypeInfo, CodeNewGame
		res.Word = sess.Word
		res.Stats, res.Previous = *st, *st
		res.Persist = true
		return res, nil
	}

	st := sess.statsFor(userID)
	res.Previous = *st
	res.Expected = lastSyllable(sess.Word)

	switch {
	case parts[0] != res.Expected:
		return e.mistake(sess, st, res, CodeMismatch), nil
	case sess.used(played):
		return e.mistake(sess, st, res, CodeRepeated), nil
	case !e.graph.Contains(played):
		return e.mistake(sess, st, res, CodeNotInDict), nil
	}

	if sess.Mode() == ModePvP {
		return e.acceptPvP(sess, st, res), nil
	}
	return e.acceptBot(sess, st, res), nil
}

func (e *Engine) mistake(sess *Session, st *PlayerStats, res MoveResult, code Code) MoveResult {
	res.Type, res.Code, res.Persist = TypeError, code, true
	st.WrongCount++
	res.WrongCount = st.WrongCount
	res.Remaining = MaxWrongCount - st.WrongCount
	if st.WrongCount >= MaxWrongCount {
		res.Remaining = 0
		*st = st.carried()
		if sess.Mode() == ModePvP {
			res.StreakReset = true
		} else {
			e.reseed(sess)
			res.Reset = true
		}
	}
	res.Word = sess.Word
	res.Stats = *st
	return res
}

func (e *Engine) acceptPvP(sess *Session, st *PlayerStats, res MoveResult) MoveResult {
	sess.History = append(sess.History, res.Played)
	st.advance()
	res.Type, res.Persist = TypeSuccess, true
	if _, ok := e.graph.WordStartingWith(lastSyllable(res.Played), sess.History); !ok {
		st.Wins++
		e.reseed(sess)
		res.Code, res.Reset = CodeWin, true
	} else {
		sess.Word = res.Played
		res.Code = CodeOK
	}
	res.Word = sess.Word
	res.Stats = *st
	return res
}

func (e *Engine) acceptBot(sess *Session, st *PlayerStats, res MoveResult) MoveResult {
	res.Persist = true
	seen := append(append([]string(nil), sess.History...), res.Played)
	next, ok := e.graph.WordStartingWith(lastSyllable(res.Played), seen)
	switch {
	case !ok:
		st.advance()
		st.Wins++
		e.reseed(sess)
		res.Type, res.Code, res.Reset = TypeSuccess, CodeWin, true
	case e.graph.IsDeadEnd(lastSyllable(next)):
		*st = st.carried()
		e.reseed(sess)
		res.Type, res.Code, res.Reset = TypeError, CodeLoss, true
		res.BotWord = next
	default:
		sess.History = append(sess.History, res.Played, next)
		sess.Word = next
		st.advance()
		res.Type, res.Code = TypeSuccess, CodeOK
		res.BotWord = next
	}
	res.Word = sess.Word
	res.Stats = *st
	return res
}

// reseed starts a new round: fresh phrase, history holding only that phrase.
func (e *Engine) reseed(sess *Session) {
	w := e.graph.RandomPhrase()
	sess.Word = w
	sess.History = []string{w}
}

// Reset starts a new round. Solo sessions keep best and wins; room sessions keep all player stats.
func (e *Engine) Reset(sess *Session) string {
	e.reseed(sess)
	if sess.Solo != nil {
		*sess.Solo = sess.Solo.carried()
	}
	return sess.Word
}
