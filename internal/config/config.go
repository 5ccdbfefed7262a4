package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	IrisBaseURL string
	IrisWSURL   string

	BotPrefix string

	XUserID    string
	XUserEmail string
	XSessionID string

	EgressMode   string
	EgressDryRun bool

	AllowedRooms []string
	GroupRooms   []string

	StoreBackend  string
	RedisURL      string
	DataDir       string
	FlushInterval time.Duration

	ArchiveDriver     string
	DatabaseURL       string
	ArchiveSQLitePath string

	WordPairsPath string
	EnDictURL     string
	ViDictURL     string
	LookupTimeout time.Duration

	TurnTimeout   time.Duration
	AbortTimeout  time.Duration
	SweepInterval time.Duration

	NoituResetDelay time.Duration

	MessagesDir string
}

// LoadDotEnv applies the first .env found among paths (default ".env").
// Variables already set in the environment win. It returns the file used, or "".
func LoadDotEnv(paths ...string) string {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		BotPrefix:         ";",
		EgressMode:        "auto",
		StoreBackend:      "file",
		DataDir:           "data",
		FlushInterval:     5 * time.Second,
		ArchiveDriver:     "none",
		ArchiveSQLitePath: "data/archive.db",
		LookupTimeout:     5 * time.Second,
		TurnTimeout:       10 * time.Second,
		AbortTimeout:      60 * time.Second,
		SweepInterval:     time.Second,
		NoituResetDelay:   15 * time.Second,
	}

	cfg.IrisBaseURL = getenv("IRIS_BASE_URL")
	cfg.IrisWSURL = getenv("IRIS_WS_URL")
	if v := getenv("BOT_PREFIX"); v != "" {
		cfg.BotPrefix = v
	}
	cfg.XUserID = getenv("X_USER_ID")
	cfg.XUserEmail = getenv("X_USER_EMAIL")
	cfg.XSessionID = getenv("X_SESSION_ID")
	if v := getenv("EGRESS_MODE"); v != "" {
		cfg.EgressMode = strings.ToLower(v)
	}
	cfg.AllowedRooms = splitList(getenv("ALLOWED_ROOMS"))
	cfg.GroupRooms = splitList(getenv("GROUP_ROOMS"))

	if v := getenv("STORE_BACKEND"); v != "" {
		cfg.StoreBackend = strings.ToLower(v)
	}
	cfg.RedisURL = getenv("REDIS_URL")
	if v := getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := getenv("ARCHIVE_DRIVER"); v != "" {
		cfg.ArchiveDriver = strings.ToLower(v)
	}
	cfg.DatabaseURL = getenv("DATABASE_URL")
	if v := getenv("ARCHIVE_SQLITE_PATH"); v != "" {
		cfg.ArchiveSQLitePath = v
	}
	cfg.WordPairsPath = getenv("WORD_PAIRS_PATH")
	cfg.EnDictURL = getenv("EN_DICT_URL")
	cfg.ViDictURL = getenv("VI_DICT_URL")
	cfg.MessagesDir = getenv("MESSAGES_DIR")

	var errs []error
	if v := getenv("EGRESS_DRYRUN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("EGRESS_DRYRUN: %w", err))
		}
		cfg.EgressDryRun = b
	}
	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"FLUSH_INTERVAL", &cfg.FlushInterval},
		{"LOOKUP_TIMEOUT", &cfg.LookupTimeout},
		{"WC_TURN_TIMEOUT", &cfg.TurnTimeout},
		{"WC_ABORT_TIMEOUT", &cfg.AbortTimeout},
		{"WC_SWEEP_INTERVAL", &cfg.SweepInterval},
		{"NOITU_RESET_DELAY", &cfg.NoituResetDelay},
	} {
		if err := parseDuration(d.key, d.dst); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.IrisBaseURL == "" {
		errs = append(errs, errors.New("IRIS_BASE_URL is required"))
	}
	if cfg.IrisWSURL == "" {
		errs = append(errs, errors.New("IRIS_WS_URL is required"))
	}
	switch cfg.StoreBackend {
	case "file", "memory":
	case "redis":
		if cfg.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when STORE_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be file, redis or memory, got %q", cfg.StoreBackend))
	}
	switch cfg.ArchiveDriver {
	case "none", "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when ARCHIVE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("ARCHIVE_DRIVER must be postgres, sqlite or none, got %q", cfg.ArchiveDriver))
	}
	switch cfg.EgressMode {
	case "auto", "http", "ws":
	default:
		errs = append(errs, fmt.Errorf("EGRESS_MODE must be auto, http or ws, got %q", cfg.EgressMode))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RoomAllowed reports whether room may use the bot. An empty allowlist allows every room.
func (c *AppConfig) RoomAllowed(room string) bool {
	if len(c.AllowedRooms) == 0 {
		return true
	}
	for _, r := range c.AllowedRooms {
		if r == room {
			return true
		}
	}
	return false
}

// IsGroupRoom reports whether room is listed in GROUP_ROOMS. Listed rooms are
// never treated as 1:1 chats, even when a member shares the room's name.
func (c *AppConfig) IsGroupRoom(room string) bool {
	for _, r := range c.GroupRooms {
		if r == room {
			return true
		}
	}
	return false
}

func getenv(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseDuration accepts Go durations ("750ms") or bare seconds ("10").
func parseDuration(key string, dst *time.Duration) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
		*dst = time.Duration(n) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", key)
	}
	*dst = d
	return nil
}
