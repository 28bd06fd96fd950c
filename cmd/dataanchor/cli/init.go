package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/meigma/dataanchor"
)

var (
	initFees    feeFlags
	initTimeout time.Duration
	initCreate  bool
)

var initCmd = &cobra.Command{
	Use:   "init [namespace]",
	Short: "Create the container for a namespace",
	Long: `Init ensures the namespace's container exists on the ledger. It
succeeds without submitting anything when the container is already there.
With --create it fails instead.

Examples:
  dataanchor init rewards
  dataanchor init rewards --fee-price 5000`,
	GroupID: "container",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runInit,
}

func init() {
	initFees.register(initCmd)
	initCmd.Flags().DurationVar(&initTimeout, "timeout", dataanchor.DefaultConfirmTimeout, "Confirmation timeout")
	initCmd.Flags().BoolVar(&initCreate, "create", false, "Fail if the container already exists")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	id, err := identifier(args)
	if err != nil {
		return err
	}
	fee, err := initFees.strategy(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(true)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	op := client.Initialize
	if initCreate {
		op = client.Create
	}
	addr, err := op(ctx, fee, id, dataanchor.WithLifecycleTimeout(initTimeout))
	if err != nil {
		return err
	}
	fmt.Println(addr)
	return nil
}
