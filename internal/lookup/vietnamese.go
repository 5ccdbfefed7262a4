package lookup

import (
	"context"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
)

const DefaultVietnameseURL = "https://minhqnd.com/api/dictionary/lookup"

type ViMeaning struct {
	Definition string `json:"definition"`
	Pos        string `json:"pos,omitempty"`
	SubPos     string `json:"sub_pos,omitempty"`
	Example    string `json:"example,omitempty"`
}

type Entry struct {
	Word     string      `json:"word"`
	Exists   bool        `json:"exists"`
	Error    string      `json:"error,omitempty"`
	Meanings []ViMeaning `json:"meanings"`
}

type VietnameseDictionary struct {
	base string
	g    *httpGetter
}

func NewVietnameseDictionary(baseURL string, opts ...Option) *VietnameseDictionary {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultVietnameseURL
	}
	return &VietnameseDictionary{base: baseURL, g: newGetter(opts)}
}

// Lookup returns ErrNotFound when the service has no meanings for word.
func (d *VietnameseDictionary) Lookup(ctx context.Context, word string) (Entry, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return Entry{}, ErrNotFound
	}
	u := d.base + "?word=" + url.QueryEscape(word)
	var e Entry
	if err := d.g.get(ctx, u, func(b []byte) error { return json.Unmarshal(b, &e) }); err != nil {
		return Entry{Word: word}, err
	}
	if e.Word == "" {
		e.Word = word
	}
	if e.Error != "" || len(e.Meanings) == 0 {
		return e, ErrNotFound
	}
	return e, nil
}
