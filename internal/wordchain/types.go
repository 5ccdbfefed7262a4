package wordchain

import (
	"errors"
	"time"
)

const (
	DefaultTurnTimeout  = 10 * time.Second
	DefaultAbortTimeout = 60 * time.Second
	MinPlayers          = 2
)

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusEnded   Status = "ended"
)

type Code string

const (
	CodeOK                Code = "ok"
	CodeInvalidWord       Code = "invalid_word"
	CodeWrongLetter       Code = "wrong_letter"
	CodeRepeated          Code = "repeated"
	CodeNotYourTurn       Code = "not_your_turn"
	CodeNotEnoughPlayers  Code = "not_enough_players"
	CodeTimeout           Code = "timeout"
	CodeWin               Code = "win"
	CodeIgnored           Code = "ignored"
	CodeLookupUnavailable Code = "lookup_unavailable"
)

var (
	ErrMissingParams    = errors.New("missing required parameters")
	ErrMatchInProgress  = errors.New("match already ongoing in this room")
	ErrNoMatch          = errors.New("no ongoing match in this room")
	ErrAlreadyJoined    = errors.New("player already in this match")
	ErrPlayerNotInMatch = errors.New("player not in this match")
)

type Player struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Points      int    `json:"points"`
	WordsPlayed int    `json:"wordsPlayed"`
	IsOut       bool   `json:"isOut"`
}

// Match is one room's English chain game. CurrentPlayerIndex indexes the active
// (not knocked out) players, taken modulo their count.
type Match struct {
	ID                 string     `json:"id"`
	ChannelID          string     `json:"channelId"`
	Status             Status     `json:"status"`
	Players            []*Player  `json:"players"`
	CurrentPlayerIndex int        `json:"currentPlayerIndex"`
	LastWord           string     `json:"lastWord,omitempty"`
	LastLetter         string     `json:"lastLetter,omitempty"`
	UsedWords          []string   `json:"usedWords"`
	TurnNumber         int        `json:"turnNumber"`
	StartedAt          time.Time  `json:"startedAt"`
	LastTurnAt         *time.Time `json:"lastTurnAt,omitempty"`
	EndedAt            *time.Time `json:"endedAt,omitempty"`
	WinnerID           string     `json:"winnerId,omitempty"`
}

func (m *Match) Active() []*Player {
	out := make([]*Player, 0, len(m.Players))
	for _, p := range m.Players {
		if !p.IsOut {
			out = append(out, p)
		}
	}
	return out
}

// Current returns the player whose turn it is, nil when nobody is active.
func (m *Match) Current() *Player {
	active := m.Active()
	if len(active) == 0 {
		return nil
	}
	return active[m.CurrentPlayerIndex%len(active)]
}

func (m *Match) Player(id string) *Player {
	for _, p := range m.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *Match) Winner() *Player {
	if m.WinnerID == "" {
		return nil
	}
	return m.Player(m.WinnerID)
}

func (m *Match) used(word string) bool {
	for _, w := range m.UsedWords {
		if w == word {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to callers.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Players = make([]*Player, len(m.Players))
	for i, p := range m.Players {
		cp := *p
		c.Players[i] = &cp
	}
	c.UsedWords = append([]string(nil), m.UsedWords...)
	if m.LastTurnAt != nil {
		t := *m.LastTurnAt
		c.LastTurnAt = &t
	}
	if m.EndedAt != nil {
		t := *m.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// Profile aggregates a player's finished matches.
type Profile struct {
	GamesPlayed int `json:"gamesPlayed"`
	GamesWon    int `json:"gamesWon"`
	TotalWords  int `json:"totalWords"`
	TotalPoints int `json:"totalPoints"`
	BestStreak  int `json:"bestStreak"`
}

// WordResult answers ProcessWord. NextPlayer is set on acceptance.
type WordResult struct {
	Code       Code
	Word       string
	Score      int
	Expected   string
	TurnNumber int
	Player     *Player
	NextPlayer *Player
}

func (r WordResult) Accepted() bool { return r.Code == CodeOK }

// KnockoutResult answers KnockOutPlayer. Winner may be nil when nobody is left.
type KnockoutResult struct {
	GameOver   bool
	KnockedOut *Player
	Winner     *Player
	NextPlayer *Player
	Match      *Match
}

// Timeout is a sweep report: PlayerID overran the turn deadline in ChannelID.
type Timeout struct {
	ChannelID string
	PlayerID  string
	Elapsed   time.Duration
}
