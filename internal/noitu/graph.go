package noitu

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

//go:embed assets/wordpairs.json
var defaultPairs []byte

var ErrNoPlayablePhrase = errors.New("word pair source has no phrase with a continuation")

// Graph is the immutable two-syllable dictionary: first syllable → valid second syllables.
// Safe for concurrent use once built.
type Graph struct {
	pairs    map[string][]string
	words    []string
	index    map[string]struct{}
	playable []string
	deadEnds int

	intn func(n int) int
}

type GraphOption func(*Graph)

// WithRand makes random choices reproducible. The source is guarded by a mutex.
func WithRand(r *rand.Rand) GraphOption {
	return func(g *Graph) {
		if r == nil {
			return
		}
		var mu sync.Mutex
		g.intn = func(n int) int {
			mu.Lock()
			defer mu.Unlock()
			return r.IntN(n)
		}
	}
}

// NewGraph normalizes and de-duplicates raw pairs and indexes every phrase.
func NewGraph(raw map[string][]string, opts ...GraphOption) (*Graph, error) {
	g := &Graph{
		pairs: make(map[string][]string, len(raw)),
		index: make(map[string]struct{}),
		intn:  rand.IntN,
	}
	for _, opt := range opts {
		opt(g)
	}

	firsts := make([]string, 0, len(raw))
	for k := range raw {
		firsts = append(firsts, k)
	}
	sort.Strings(firsts)

	for _, k := range firsts {
		nk := Normalize(k)
		if !isSyllable(nk) {
			continue
		}
		for _, v := range raw[k] {
			nv := Normalize(v)
			if !isSyllable(nv) {
				continue
			}
			phrase := nk + " " + nv
			if _, dup := g.index[phrase]; dup {
				continue
			}
			g.index[phrase] = struct{}{}
			g.pairs[nk] = append(g.pairs[nk], nv)
		}
	}

	keys := make([]string, 0, len(g.pairs))
	for k := range g.pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, first := range keys {
		for _, second := range g.pairs[first] {
			phrase := first + " " + second
			g.words = append(g.words, phrase)
			if !g.IsDeadEnd(second) {
				g.playable = append(g.playable, phrase)
			}
		}
		if g.IsDeadEnd(first) {
			g.deadEnds++
		}
	}

	if len(g.playable) == 0 {
		return nil, ErrNoPlayablePhrase
	}
	return g, nil
}

func isSyllable(s string) bool {
	return s != "" && !strings.ContainsAny(s, " \t")
}

// DecodePairs reads a JSON object of syllable → [syllables].
func DecodePairs(r io.Reader) (map[string][]string, error) {
	var raw map[string][]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode word pairs: %w", err)
	}
	return raw, nil
}

// LoadGraph builds the graph from path, or from the bundled sample when path is empty.
func LoadGraph(path string, opts ...GraphOption) (*Graph, error) {
	var src io.Reader = bytes.NewReader(defaultPairs)
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open word pairs: %w", err)
		}
		defer f.Close()
		src = f
	}
	raw, err := DecodePairs(src)
	if err != nil {
		return nil, err
	}
	return NewGraph(raw, opts...)
}

// WordStartingWith picks a random phrase "start x" that is not in history and whose x
// has at least one continuation. Phrases with x != start are preferred.
func (g *Graph) WordStartingWith(start string, history []string) (string, bool) {
	used := make(map[string]struct{}, len(history))
	for _, h := range history {
		used[h] = struct{}{}
	}
	var valid, preferred []string
	for _, second := range g.pairs[start] {
		phrase := start + " " + second
		if _, ok := used[phrase]; ok {
			continue
		}
		if len(g.pairs[second]) == 0 {
			continue
		}
		valid = append(valid, phrase)
		if second != start {
			preferred = append(preferred, phrase)
		}
	}
	pool := preferred
	if len(pool) == 0 {
		pool = valid
	}
	if len(pool) == 0 {
		return "", false
	}
	return pool[g.intn(len(pool))], true
}

// IsDeadEnd reports whether every continuation of s is s itself or has no continuation.
func (g *Graph) IsDeadEnd(s string) bool {
	for _, next := range g.pairs[s] {
		if next != s && len(g.pairs[next]) > 0 {
			return false
		}
	}
	return true
}

// RandomPhrase returns a uniformly random phrase whose second syllable is not a dead end.
func (g *Graph) RandomPhrase() string {
	return g.playable[g.intn(len(g.playable))]
}

func (g *Graph) Contains(phrase string) bool {
	_, ok := g.index[phrase]
	return ok
}

func (g *Graph) Continuations(s string) []string {
	return append([]string(nil), g.pairs[s]...)
}

// Words returns the flat phrase list in graph order.
func (g *Graph) Words() []string {
	return append([]string(nil), g.words...)
}

type GraphStats struct {
	Syllables int `json:"syllables"`
	Phrases   int `json:"phrases"`
	Playable  int `json:"playable"`
	DeadEnds  int `json:"deadEnds"`
}

func (g *Graph) Stats() GraphStats {
	return GraphStats{
		Syllables: len(g.pairs),
		Phrases:   len(g.words),
		Playable:  len(g.playable),
		DeadEnds:  g.deadEnds,
	}
}
