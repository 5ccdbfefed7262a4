package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/noitu-kakao-bot/internal/adapter/gamepresenter"
	"github.com/park285/noitu-kakao-bot/internal/archive"
	"github.com/park285/noitu-kakao-bot/internal/bot"
	appcfg "github.com/park285/noitu-kakao-bot/internal/config"
	"github.com/park285/noitu-kakao-bot/internal/irisfast"
	"github.com/park285/noitu-kakao-bot/internal/lookup"
	"github.com/park285/noitu-kakao-bot/internal/msgcat"
	"github.com/park285/noitu-kakao-bot/internal/noitu"
	"github.com/park285/noitu-kakao-bot/internal/obslog"
	"github.com/park285/noitu-kakao-bot/internal/render"
	"github.com/park285/noitu-kakao-bot/internal/store"
	"github.com/park285/noitu-kakao-bot/internal/wordchain"
)

const handleTimeout = 30 * time.Second

func main() {
	envFile := appcfg.LoadDotEnv()
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()
	if envFile != "" {
		logger.Info("dotenv_loaded", zap.String("path", envFile))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := openStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("store init error: %v", err)
	}

	graph, err := noitu.LoadGraph(cfg.WordPairsPath)
	if err != nil {
		log.Fatalf("word pairs error: %v", err)
	}
	st := graph.Stats()
	logger.Info("noitu_graph_loaded", zap.Int("syllables", st.Syllables), zap.Int("phrases", st.Phrases), zap.Int("dead_ends", st.DeadEnds))

	noituSvc, err := noitu.NewService(noitu.NewEngine(graph), kv, noitu.WithLogger(logger))
	if err != nil {
		log.Fatalf("noitu init error: %v", err)
	}

	english := lookup.NewEnglishDictionary(cfg.EnDictURL, lookup.WithTimeout(cfg.LookupTimeout))
	vietnamese := lookup.NewVietnameseDictionary(cfg.ViDictURL, lookup.WithTimeout(cfg.LookupTimeout))
	validator := lookup.NewCachedValidator(english, kv, logger)

	repo, err := openArchive(ctx, cfg)
	if err != nil {
		log.Fatalf("archive init error: %v", err)
	}

	wcOpts := []wordchain.Option{wordchain.WithLogger(logger)}
	if repo != nil {
		wcOpts = append(wcOpts, wordchain.WithArchiver(repo))
	}
	wcMgr, err := wordchain.NewManager(kv, validator, wordchain.Config{
		TurnTimeout:   cfg.TurnTimeout,
		AbortTimeout:  cfg.AbortTimeout,
		LookupTimeout: cfg.LookupTimeout,
	}, wcOpts...)
	if err != nil {
		log.Fatalf("word chain init error: %v", err)
	}

	headers := func() map[string]string {
		h := map[string]string{}
		if cfg.XUserID != "" {
			h["X-User-Id"] = cfg.XUserID
		}
		if cfg.XUserEmail != "" {
			h["X-User-Email"] = cfg.XUserEmail
		}
		if cfg.XSessionID != "" {
			h["X-Session-Id"] = cfg.XSessionID
		}
		return h
	}
	client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(headers))
	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, 30*time.Second)
	ws.SetHeaderProvider(headers)
	ws.SetLogger(logger)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("ws_state", zap.String("state", string(state)))
	})
	egress := irisfast.NewEgress(cfg.EgressMode, cfg.EgressDryRun, client, ws, logger)

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}
	formatter := gamepresenter.NewFormatter(cat, gamepresenter.StaticPrefix(cfg.BotPrefix), logger)
	presenter := gamepresenter.NewPresenter(egress, render.NewScoreboardRenderer(), logger)

	deps := bot.Deps{
		Noitu:      noituSvc,
		WordChain:  wcMgr,
		Vietnamese: vietnamese,
		English:    english,
		Formatter:  formatter,
		Presenter:  presenter,
		Logger:     logger,
	}
	if repo != nil {
		deps.History = repo
	}
	router, err := bot.NewRouter(bot.Config{
		Prefix:       cfg.BotPrefix,
		AllowRoom:    cfg.RoomAllowed,
		GroupRoom:    cfg.IsGroupRoom,
		TurnTimeout:  cfg.TurnTimeout,
		AbortTimeout: cfg.AbortTimeout,
		ResetDelay:   cfg.NoituResetDelay,
	}, deps)
	if err != nil {
		log.Fatalf("router init error: %v", err)
	}

	// Handlers run off the WS read loop.
	ws.OnMessage(func(msg *irisfast.Message) {
		go func() {
			hctx, cancel := context.WithTimeout(ctx, handleTimeout)
			defer cancel()
			router.Handle(hctx, msg)
		}()
	})

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		cancel()
		log.Fatalf("ws connect error: %v", err)
	}
	cancel()
	logger.Info("bot_started", zap.String("prefix", cfg.BotPrefix), zap.String("store", cfg.StoreBackend), zap.String("archive", cfg.ArchiveDriver), zap.String("egress", cfg.EgressMode))

	sweeper := wordchain.NewSweeper(wcMgr, bot.NewNotifier(formatter, presenter, logger), cfg.SweepInterval)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sweeper.Run(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run_failed", zap.Error(err))
	}
	logger.Info("bot_stopping")
	router.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := ws.Close(shutdownCtx); err != nil {
		logger.Warn("ws_close_failed", zap.Error(err))
	}
	if repo != nil {
		_ = repo.Close()
	}
	if err := kv.Close(); err != nil {
		logger.Warn("store_close_failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *appcfg.AppConfig, logger *zap.Logger) (store.KV, error) {
	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemoryKV(), nil
	case "redis":
		return store.OpenRedisKV(ctx, cfg.RedisURL, "noitu")
	default:
		return store.OpenFileKV(cfg.DataDir, store.WithFlushInterval(cfg.FlushInterval), store.WithLogger(logger))
	}
}

// openArchive returns nil when archiving is disabled.
func openArchive(ctx context.Context, cfg *appcfg.AppConfig) (*archive.Repository, error) {
	switch cfg.ArchiveDriver {
	case "postgres":
		return archive.Open(ctx, "postgres", cfg.DatabaseURL)
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.ArchiveSQLitePath), 0o755); err != nil {
			return nil, err
		}
		return archive.Open(ctx, "sqlite", cfg.ArchiveSQLitePath)
	default:
		return nil, nil
	}
}
