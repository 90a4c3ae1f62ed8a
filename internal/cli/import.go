package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Run one telemetry import from Langfuse",
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
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

	importer := newImporter(cfg, st, log)
	if importer == nil {
		return fmt.Errorf("langfuse is not configured (set host, public_key and secret_key)")
	}

	run, err := importer.Run(cmd.Context())
	if err != nil {
		return err
	}

	from := "beginning of lookback window"
	if run.FromTimestamp != nil {
		from = *run.FromTimestamp
	}
	fmt.Printf("Import #%d: %s (%s, from %s to %s)\n", run.ID, run.Status, run.Mode, from, run.ToTimestamp)
	return nil
}
