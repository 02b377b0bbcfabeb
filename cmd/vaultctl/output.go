package main

import (
	"fmt"
	"io"
	"math/big"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"

	"vaultdeposit/internal/journal"
	"vaultdeposit/internal/vault"
)

func printMetrics(w io.Writer, label string, m *vault.Metrics, decimals int32, symbol string) {
	fmt.Fprintf(w, "Vault metrics %s (block %d):\n", label, m.BlockNumber)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range m.Fields(decimals) {
		unit := symbol
		if f.Name == "balance" {
			unit = "shares"
		}
		fmt.Fprintf(tw, "  %s\t%s %s\n", f.Name, f.Value.String(), unit)
	}
	_ = tw.Flush()
}

func printReceipt(w io.Writer, r *vault.Receipt) {
	if r == nil || r.Receipt == nil {
		return
	}
	block := "-"
	if r.BlockNumber != nil {
		block = r.BlockNumber.String()
	}
	fmt.Fprintf(w, "%s tx %s %s (block %s, gas used %d)\n", r.Kind, r.TxHash.Hex(), r.State, block, r.GasUsed)
}

func printDeposit(w io.Writer, res *vault.DepositResult, symbol string) {
	if res.Approval != nil {
		printReceipt(w, res.Approval)
	} else {
		fmt.Fprintln(w, "allowance sufficient, no approval sent")
	}
	printReceipt(w, res.Receipt)
	fmt.Fprintf(w, "deposited %s %s (%s base units), shares minted: %s\n",
		res.Amount.String(), symbol, res.BaseUnits.String(), baseUnitsString(res.Shares))
}

func printJournaled(w io.Writer, key string, rec *journal.Record) {
	fmt.Fprintf(w, "deposit %q already confirmed in tx %s (block %d), nothing sent\n", key, rec.DepositTx, rec.BlockNumber)
}

// printAllowance reports one allowance reading and whether it covers needed.
func printAllowance(w io.Writer, account, spender common.Address, current, needed *big.Int, decimals int32, symbol string) {
	fmt.Fprintf(w, "allowance of %s for vault %s: %s %s (needed %s), sufficient: %t\n",
		account.Hex(), spender.Hex(),
		vault.FromBaseUnits(current, decimals).String(), symbol,
		vault.FromBaseUnits(needed, decimals).String(),
		current.Cmp(needed) >= 0)
}
