package noitu

import "strings"

const (
	MaxWrongCount = 3
	WordLength    = 2
)

type Mode string

const (
	ModeBot Mode = "bot"
	ModePvP Mode = "pvp"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBot:
		return ModeBot, true
	case ModePvP:
		return ModePvP, true
	}
	return "", false
}

// PlayerStats is one player's chain record. Streak, best and wins survive session resets.
type PlayerStats struct {
	CurrentStreak int `json:"currentStreak"`
	BestStreak    int `json:"bestStreak"`
	Wins          int `json:"wins"`
	WrongCount    int `json:"wrongCount"`
}

// carried keeps what survives a lost round.
func (p PlayerStats) carried() PlayerStats {
	return PlayerStats{BestStreak: p.BestStreak, Wins: p.Wins}
}

func (p *PlayerStats) advance() {
	p.CurrentStreak++
	if p.CurrentStreak > p.BestStreak {
		p.BestStreak = p.CurrentStreak
	}
	p.WrongCount = 0
}

// ChannelState is the room variant: a play mode and per-player stats.
type ChannelState struct {
	Mode    Mode                    `json:"mode"`
	Players map[string]*PlayerStats `json:"players"`
}

// Session is the chain state of one room or one DM user. Exactly one of Solo and
// Channel is set. History only ever holds normalized phrases.
type Session struct {
	Word    string        `json:"word,omitempty"`
	History []string      `json:"history"`
	Solo    *PlayerStats  `json:"stats,omitempty"`
	Channel *ChannelState `json:"channel,omitempty"`
}

func NewSoloSession() *Session {
	return &Session{History: []string{}, Solo: &PlayerStats{}}
}

func NewChannelSession(mode Mode) *Session {
	if mode == "" {
		mode = ModeBot
	}
	return &Session{History: []string{}, Channel: &ChannelState{Mode: mode, Players: map[string]*PlayerStats{}}}
}

func (s *Session) IsSolo() bool { return s.Channel == nil }

// Mode is ModeBot for DM sessions.
func (s *Session) Mode() Mode {
	if s.Channel == nil || s.Channel.Mode == "" {
		return ModeBot
	}
	return s.Channel.Mode
}

// statsFor returns the mutable stats record of userID, creating it when missing.
func (s *Session) statsFor(userID string) *PlayerStats {
	if s.Channel == nil {
		if s.Solo == nil {
			s.Solo = &PlayerStats{}
		}
		return s.Solo
	}
	if s.Channel.Players == nil {
		s.Channel.Players = map[string]*PlayerStats{}
	}
	p := s.Channel.Players[userID]
	if p == nil {
		p = &PlayerStats{}
		s.Channel.Players[userID] = p
	}
	return p
}

// Stats returns a copy of userID's stats; the zero value when the player never moved.
func (s *Session) Stats(userID string) PlayerStats {
	if s.Channel == nil {
		if s.Solo == nil {
			return PlayerStats{}
		}
		return *s.Solo
	}
	if p := s.Channel.Players[userID]; p != nil {
		return *p
	}
	return PlayerStats{}
}

func (s *Session) used(phrase string) bool {
	for _, h := range s.History {
		if h == phrase {
			return true
		}
	}
	return false
}

// normalizeLoaded repairs records written by older versions.
func (s *Session) normalizeLoaded(solo bool, fallback Mode) {
	if s.History == nil {
		s.History = []string{}
	}
	if solo {
		s.Channel = nil
		if s.Solo == nil {
			s.Solo = &PlayerStats{}
		}
		return
	}
	s.Solo = nil
	if s.Channel == nil {
		s.Channel = &ChannelState{Mode: fallback}
	}
	if s.Channel.Mode == "" {
		s.Channel.Mode = ModeBot
	}
	if s.Channel.Players == nil {
		s.Channel.Players = map[string]*PlayerStats{}
	}
}
