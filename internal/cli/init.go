package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openclaw/mission-control/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file and create the database",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	// Refuse to clobber an existing config.
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("config already exists at %s", cfgPath)
	}

	cfg := config.DefaultConfig()
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	// Opening the store runs the schema migration.
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	st.Close()

	fmt.Printf("Initialized mission-control (%s, %s)\n", cfgPath, cfg.Database.Path)
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Printf("  1. Edit %s (Langfuse credentials, workflow root)\n", cfgPath)
	fmt.Println("  2. Run: mission-control serve")
	fmt.Println("  3. Run: mission-control board")

	return nil
}
