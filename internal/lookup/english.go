package lookup

import (
	"context"
	"errors"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
)

const DefaultEnglishURL = "https://api.dictionaryapi.dev/api/v2/entries/en/"

type Definition struct {
	Definition string `json:"definition"`
	Example    string `json:"example,omitempty"`
}

type Meaning struct {
	PartOfSpeech string       `json:"partOfSpeech"`
	Definitions  []Definition `json:"definitions"`
}

type Validation struct {
	Word     string
	Valid    bool
	Phonetic string
	Meanings []Meaning
}

type englishEntry struct {
	Word     string    `json:"word"`
	Phonetic string    `json:"phonetic"`
	Meanings []Meaning `json:"meanings"`
}

// EnglishDictionary talks to a dictionaryapi.dev compatible endpoint.
type EnglishDictionary struct {
	base string
	g    *httpGetter
}

func NewEnglishDictionary(baseURL string, opts ...Option) *EnglishDictionary {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultEnglishURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &EnglishDictionary{base: baseURL, g: newGetter(opts)}
}

// Validate reports Valid=false with a nil error for a definite miss (404 or an empty list).
func (d *EnglishDictionary) Validate(ctx context.Context, word string) (Validation, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	out := Validation{Word: word}
	if word == "" {
		return out, nil
	}
	var entries []englishEntry
	err := d.g.get(ctx, d.base+url.PathEscape(word), func(b []byte) error {
		return json.Unmarshal(b, &entries)
	})
	if errors.Is(err, ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return out, err
	}
	for _, e := range entries {
		if out.Phonetic == "" {
			out.Phonetic = e.Phonetic
		}
		out.Meanings = append(out.Meanings, e.Meanings...)
	}
	out.Valid = len(entries) > 0
	return out, nil
}

func (d *EnglishDictionary) IsWord(ctx context.Context, word string) (bool, error) {
	v, err := d.Validate(ctx, word)
	return v.Valid, err
}

// Define is Validate with a miss turned into ErrNotFound.
func (d *EnglishDictionary) Define(ctx context.Context, word string) (Validation, error) {
	v, err := d.Validate(ctx, word)
	if err != nil {
		return v, err
	}
	if !v.Valid {
		return v, ErrNotFound
	}
	return v, nil
}
