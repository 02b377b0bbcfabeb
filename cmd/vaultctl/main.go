package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vaultdeposit/internal/config"
	"vaultdeposit/internal/logger"
)

// cli carries what every subcommand needs once the root has loaded it.
type cli struct {
	cfg *config.Config
	log zerolog.Logger
}

func main() {
	c := &cli{log: logger.New(logger.Config{Format: "console"})}
	if err := newRootCmd(c).Execute(); err != nil {
		c.log.Error().Err(err).Msg("vaultctl failed")
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Deposit USDC into a yield vault",
		Long:          `Approves and deposits a stablecoin into an on-chain vault and reports the vault's metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			c.cfg = cfg
			c.log = logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
			return nil
		},
	}

	rootCmd.AddCommand(
		depositCmd(c),
		approveCmd(c),
		allowanceCmd(c),
		metricsCmd(c),
		signerCmd(c),
	)
	return rootCmd
}
