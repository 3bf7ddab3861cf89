package main

import (
	"fmt"

	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/seed"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Copy the built-in default content into empty tables",
	Long: `Copy the built-in default content into every content table that has
no rows yet. Tables that already hold content are left untouched, so the
command is safe to run more than once.`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if cfg.Memory {
		return fmt.Errorf("seed: nothing to seed with the in-memory store")
	}

	backends, closeBackends, err := openBackends(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer closeBackends()

	res, err := seed.Run(cmd.Context(), backends.Store, content.Builtin(), content.BuiltinDefaults(), log)
	if err != nil {
		log.Error("seed failed", zap.Error(err))
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d rows\n", res.Total())
	return nil
}
