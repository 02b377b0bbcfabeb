package main

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vaultdeposit/internal/signerd"
	"vaultdeposit/internal/telemetry"
)

func signerCmd(c *cli) *cobra.Command {
	signerCmd := &cobra.Command{
		Use:   "signer",
		Short: "Remote signing service",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve signatures over HMAC-authenticated HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.cfg
			if cfg.RemoteSignerSecret == "" {
				return errors.New("REMOTE_SIGNER_SECRET is required to serve signatures")
			}
			signer, err := localSigner(cfg)
			if err != nil {
				return err
			}

			var chainID *big.Int
			if cfg.ChainID != 0 {
				chainID = big.NewInt(cfg.ChainID)
			}
			srv := signerd.NewServer(signerd.Config{
				HTTPPort: cfg.SignerPort,
				Secret:   cfg.RemoteSignerSecret,
				MaxSkew:  cfg.SignerMaxSkew,
				ChainID:  chainID,
			}, signer, telemetry.NewRegistry(), c.log)

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			ch := make(chan os.Signal, 1)
			signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(ch)

			select {
			case <-ch:
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}

	signerCmd.AddCommand(serveCmd)
	return signerCmd
}
