package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"vaultdeposit/internal/journal"
	"vaultdeposit/internal/vault"
)

func depositCmd(c *cli) *cobra.Command {
	var (
		idempotencyKey string
		dryRun         bool
	)

	cmd := &cobra.Command{
		Use:   "deposit AMOUNT",
		Short: "Approve if needed and deposit AMOUNT into the vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			amount, units, err := vault.ParseAmount(args[0], cfg.TokenDecimals)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ConfirmTimeout)
			defer cancel()

			signer, err := newSigner(ctx, cfg)
			if err != nil {
				return err
			}
			account, err := resolveAccount(cfg, signer)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, c.log, dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			var opts []vault.Option
			var tracker *journal.Tracker
			if idempotencyKey != "" && dryRun {
				c.log.Warn().Str("key", idempotencyKey).Msg("dry run does not consult or update the journal")
			} else if idempotencyKey != "" {
				store, release, err := openJournal(ctx, cfg)
				if err != nil {
					return err
				}
				defer release()

				tracker = journal.NewTracker(store, idempotencyKey, account, units, c.log)
				prior, err := tracker.Begin(ctx)
				if err != nil {
					return err
				}
				if prior != nil {
					printJournaled(cmd.OutOrStdout(), idempotencyKey, prior)
					return nil
				}
				opts = append(opts, vault.WithObserver(tracker))
			}

			d := a.depositor(opts...)
			if err := d.Verify(ctx); err != nil {
				if tracker != nil {
					tracker.Finish(context.WithoutCancel(ctx), err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			before, err := d.GetMetrics(ctx, account)
			if err != nil {
				c.log.Warn().Err(err).Msg("metrics before deposit unavailable")
			} else {
				printMetrics(out, "before", before, d.Decimals(), cfg.TokenSymbol)
			}

			res, err := d.Deposit(ctx, amount, account, signer)
			a.metrics.ObserveDeposit(err)
			if tracker != nil {
				tracker.Finish(context.WithoutCancel(ctx), err)
			}
			if err != nil {
				if res != nil {
					printReceipt(out, res.Approval)
					printReceipt(out, res.Receipt)
				}
				return err
			}
			printDeposit(out, res, cfg.TokenSymbol)
			if a.dryRun != nil {
				fmt.Fprintf(out, "dry run: %d transaction(s) signed, none broadcast\n", len(a.dryRun.Sent()))
			}

			after, err := d.GetMetrics(ctx, account)
			if err != nil {
				c.log.Warn().Err(err).Msg("metrics after deposit unavailable")
				return nil
			}
			printMetrics(out, "after", after, d.Decimals(), cfg.TokenSymbol)
			a.metrics.SetVaultMetrics(after, d.Decimals())
			return nil
		},
	}

	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "journal key making reruns of the same deposit safe")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "sign but do not broadcast; receipts are simulated")
	return cmd
}

func approveCmd(c *cli) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "approve AMOUNT",
		Short: "Approve the vault to spend AMOUNT (or unlimited under APPROVAL_POLICY=unlimited)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			_, units, err := vault.ParseAmount(args[0], cfg.TokenDecimals)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ConfirmTimeout)
			defer cancel()

			signer, err := newSigner(ctx, cfg)
			if err != nil {
				return err
			}
			account, err := resolveAccount(cfg, signer)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, c.log, dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			d := a.depositor()
			if err := d.Verify(ctx); err != nil {
				return err
			}
			receipt, err := d.Approve(ctx, account, units, signer)
			printReceipt(cmd.OutOrStdout(), receipt)
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "sign but do not broadcast; receipts are simulated")
	return cmd
}

func allowanceCmd(c *cli) *cobra.Command {
	var accountFlag string

	cmd := &cobra.Command{
		Use:   "allowance AMOUNT",
		Short: "Report whether the vault may already spend AMOUNT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			_, units, err := vault.ParseAmount(args[0], cfg.TokenDecimals)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ConfirmTimeout)
			defer cancel()

			account, err := readOnlyAccount(ctx, c, accountFlag)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, c.log, false)
			if err != nil {
				return err
			}
			defer a.Close()

			current, err := a.depositor().Allowance(ctx, account)
			if err != nil {
				return err
			}
			printAllowance(cmd.OutOrStdout(), account, a.vault.Address(), current, units, cfg.TokenDecimals, cfg.TokenSymbol)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "account to inspect (defaults to ACCOUNT_ADDRESS or the signer)")
	return cmd
}

func metricsCmd(c *cli) *cobra.Command {
	var accountFlag string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print vault metrics for an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.cfg
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ConfirmTimeout)
			defer cancel()

			account, err := readOnlyAccount(ctx, c, accountFlag)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, c.log, false)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.depositor().GetMetrics(ctx, account)
			if err != nil {
				return err
			}
			printMetrics(cmd.OutOrStdout(), "now", m, cfg.TokenDecimals, cfg.TokenSymbol)
			a.metrics.SetVaultMetrics(m, cfg.TokenDecimals)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "account to report (defaults to ACCOUNT_ADDRESS or the signer)")
	return cmd
}

// readOnlyAccount resolves the account of a command that never signs. A
// credential is consulted only when no address was given.
func readOnlyAccount(ctx context.Context, c *cli, flag string) (common.Address, error) {
	if flag != "" {
		if !common.IsHexAddress(flag) {
			return common.Address{}, fmt.Errorf("--account %q is not a hex address", flag)
		}
		return common.HexToAddress(flag), nil
	}
	if c.cfg.AccountAddress != "" || c.cfg.Credential() == "" {
		return resolveAccount(c.cfg, nil)
	}
	signer, err := newSigner(ctx, c.cfg)
	if err != nil {
		return common.Address{}, err
	}
	return resolveAccount(c.cfg, signer)
}
