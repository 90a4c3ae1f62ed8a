package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openclaw/mission-control/internal/api"
	"github.com/openclaw/mission-control/internal/langfuse"
	"github.com/openclaw/mission-control/internal/planning"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := api.Options{
		Planning:    planning.NewService(st, log),
		Dashboard:   langfuse.NewDashboard(st),
		Board:       newBoard(cfg, log),
		CORSOrigins: cfg.Server.CORSOrigins,
		Log:         log,
	}
	if importer := newImporter(cfg, st, log); importer != nil {
		opts.Importer = importer
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return api.New(opts).Run(ctx, addr)
}
