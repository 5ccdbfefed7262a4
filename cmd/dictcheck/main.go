package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	appcfg "github.com/park285/noitu-kakao-bot/internal/config"
	"github.com/park285/noitu-kakao-bot/internal/irisfast"
	"github.com/park285/noitu-kakao-bot/internal/lookup"
	"github.com/park285/noitu-kakao-bot/internal/noitu"
)

func main() {
	appcfg.LoadDotEnv()

	pairs := flag.String("pairs", os.Getenv("WORD_PAIRS_PATH"), "word-pair JSON file (bundled sample when empty)")
	deadLimit := flag.Int("dead", 20, "dead-end syllables to list (0 for none)")
	enWord := flag.String("en", "", "English word to validate against the dictionary API")
	viWord := flag.String("vi", "", "Vietnamese phrase to look up")
	iris := flag.Bool("iris", false, "probe Iris /config and watch the WebSocket for a few seconds")
	watch := flag.Duration("watch", 10*time.Second, "WebSocket watch window with -iris")
	flag.Parse()

	g, err := noitu.LoadGraph(*pairs)
	if err != nil {
		log.Fatalf("load word pairs: %v", err)
	}
	st := g.Stats()
	fmt.Printf("graph: syllables=%d phrases=%d playable=%d dead_ends=%d\n", st.Syllables, st.Phrases, st.Playable, st.DeadEnds)
	if *deadLimit > 0 {
		dead := deadEnds(g)
		if len(dead) > *deadLimit {
			dead = dead[:*deadLimit]
		}
		if len(dead) > 0 {
			fmt.Printf("dead-end syllables: %s\n", strings.Join(dead, ", "))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if *enWord != "" {
		en := lookup.NewEnglishDictionary(os.Getenv("EN_DICT_URL"))
		v, err := en.Validate(ctx, *enWord)
		if err != nil {
			fmt.Printf("en %q: error: %v\n", *enWord, err)
		} else {
			fmt.Printf("en %q: valid=%v meanings=%d\n", v.Word, v.Valid, len(v.Meanings))
		}
	}
	if *viWord != "" {
		word := noitu.Normalize(*viWord)
		fmt.Printf("vi %q: in graph=%v\n", word, g.Contains(word))
		vi := lookup.NewVietnameseDictionary(os.Getenv("VI_DICT_URL"))
		entry, err := vi.Lookup(ctx, word)
		if err != nil {
			fmt.Printf("vi %q: error: %v\n", word, err)
		} else {
			fmt.Printf("vi %q: meanings=%d\n", entry.Word, len(entry.Meanings))
		}
	}

	if *iris {
		probeIris(*watch)
	}
}

func deadEnds(g *noitu.Graph) []string {
	seen := map[string]struct{}{}
	for _, w := range g.Words() {
		parts := noitu.Syllables(w)
		if len(parts) != noitu.WordLength {
			continue
		}
		if last := parts[1]; g.IsDeadEnd(last) {
			seen[last] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func probeIris(window time.Duration) {
	baseURL := os.Getenv("IRIS_BASE_URL")
	wsURL := os.Getenv("IRIS_WS_URL")
	if baseURL == "" {
		log.Println("IRIS_BASE_URL not set; skipping Iris check")
		return
	}
	headers := func() map[string]string {
		m := map[string]string{}
		for env, header := range map[string]string{"X_USER_ID": "X-User-Id", "X_USER_EMAIL": "X-User-Email", "X_SESSION_ID": "X-Session-Id"} {
			if v := os.Getenv(env); v != "" {
				m[header] = v
			}
		}
		return m
	}

	client := irisfast.NewClient(baseURL, irisfast.WithHeaderProvider(headers), irisfast.WithTimeout(8*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg, err := client.GetConfig(ctx)
	if err != nil {
		log.Printf("/config error: %v", err)
	} else {
		log.Printf("/config ok: port=%d polling=%d rate=%d endpoint=%s", cfg.Port, cfg.PollingSpeed, cfg.MessageRate, cfg.WebserverEndpoint)
	}

	if wsURL == "" {
		log.Println("IRIS_WS_URL not set; skipping WS check")
		return
	}
	ws := irisfast.NewWebSocket(wsURL, 0, 30*time.Second)
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		log.Printf("WS state: %s", state)
	})
	ws.OnMessage(func(msg *irisfast.Message) {
		fmt.Printf("WS msg room=%s from=%s dm=%v text=%q\n", msg.Room, msg.SenderName(), msg.IsDirect(), msg.Msg)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}
	time.Sleep(window)
	_ = ws.Close(context.Background())
}
