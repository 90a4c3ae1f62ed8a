package cli

import (
	"log/slog"
	"os"

	"github.com/openclaw/mission-control/internal/config"
	"github.com/openclaw/mission-control/internal/langfuse"
	"github.com/openclaw/mission-control/internal/store"
	"github.com/openclaw/mission-control/internal/workflow"
)

// loadConfig reads the config file, falling back to defaults when it does
// not exist.
func loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(cfgPath)
}

// openStore opens or creates the SQLite store (migration runs automatically).
func openStore(cfg *config.Config) (*store.Store, error) {
	return store.New(cfg.Database.Path)
}

// newLogger builds the process logger at the configured level.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newImporter builds the telemetry importer, or nil when the Langfuse
// credentials are not configured.
func newImporter(cfg *config.Config, st *store.Store, log *slog.Logger) *langfuse.Importer {
	if !cfg.Langfuse.Enabled() {
		return nil
	}
	client := langfuse.NewClient(cfg.Langfuse.Host, cfg.Langfuse.PublicKey, cfg.Langfuse.SecretKey, log)
	return langfuse.NewImporter(st, client, log)
}

// newBoard builds the workflow board reader, or nil when no workflow root is
// configured.
func newBoard(cfg *config.Config, log *slog.Logger) *workflow.Board {
	if cfg.Workflow.Root == "" {
		return nil
	}
	return workflow.NewBoard(cfg.Workflow.Root, log)
}
