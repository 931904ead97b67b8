package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Token-id schemes for outcome tokens. One policy per deployment.
const (
	SchemeStatic = "static" // loss = 0, win = 1, reused across rounds
	SchemeOffset = "offset" // loss = LossTokenBase + round, win = WinTokenBase + round
	SchemeRound  = "round"  // win = round id, loss = 0
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	AdminKeySalt string

	// Outcome-token numbering
	TokenScheme   string
	LossTokenBase int64
	WinTokenBase  int64

	// Default reveal window for rounds started without an explicit one
	MinRevealDelay time.Duration
	MaxRevealDelay time.Duration
}

// ParseFlags validates flags, falling back to environment variables.
// A .env file in the working directory is loaded first if present.
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	// Best-effort; a missing .env file is not an error.
	_ = godotenv.Load()

	fs := flag.NewFlagSet("triviapool", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKeySalt, "admin-salt", "", "Admin key salt (prefer env)")

	// Outcome-token numbering
	fs.StringVar(&cfg.TokenScheme, "token-scheme", "", "Token id scheme: static, offset or round")
	fs.Int64Var(&cfg.LossTokenBase, "loss-base", 0, "Loss token base id (offset scheme)")
	fs.Int64Var(&cfg.WinTokenBase, "win-base", 0, "Win token base id (offset scheme)")

	// Reveal window defaults
	fs.DurationVar(&cfg.MinRevealDelay, "min-reveal", 0, "Default minimum reveal delay")
	fs.DurationVar(&cfg.MaxRevealDelay, "max-reveal", 0, "Default maximum reveal delay")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3419 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}

	// Secrets - MUST be provided
	if cfg.AdminKeySalt == "" {
		cfg.AdminKeySalt = os.Getenv("ADMIN_KEY_SALT")
	}
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}

	if cfg.TokenScheme == "" {
		cfg.TokenScheme = os.Getenv("TOKEN_SCHEME")
		if cfg.TokenScheme == "" {
			cfg.TokenScheme = SchemeStatic
		}
	}
	switch cfg.TokenScheme {
	case SchemeStatic, SchemeOffset, SchemeRound:
	default:
		return Config{}, errors.New("invalid TOKEN_SCHEME (want static, offset or round)")
	}

	if cfg.TokenScheme == SchemeOffset {
		if cfg.WinTokenBase == 0 {
			cfg.WinTokenBase = 1_000_000
		}
		if cfg.WinTokenBase <= cfg.LossTokenBase {
			return Config{}, errors.New("win token base must exceed loss token base")
		}
	}

	if cfg.MinRevealDelay == 0 {
		cfg.MinRevealDelay = envDuration("MIN_REVEAL_DELAY", 30*time.Second)
	}
	if cfg.MaxRevealDelay == 0 {
		cfg.MaxRevealDelay = envDuration("MAX_REVEAL_DELAY", 24*time.Hour)
	}
	if cfg.MinRevealDelay >= cfg.MaxRevealDelay {
		return Config{}, errors.New("minimum reveal delay must be below maximum")
	}

	return cfg, nil
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
