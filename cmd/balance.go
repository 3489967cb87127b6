// File: cmd/balance.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tkoster88/applypilot-cli/internal/captcha"
	"github.com/tkoster88/applypilot-cli/internal/observability"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the solving service account balance.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		solver := captcha.NewSolver(cfg.Captcha, observability.GetLogger())
		balance, err := solver.Balance(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "$%.2f\n", balance)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
