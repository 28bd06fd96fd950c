package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/meigma/dataanchor"
)

var (
	closeFees    feeFlags
	closeTimeout time.Duration
)

var closeCmd = &cobra.Command{
	Use:   "close [identifier]",
	Short: "Close a container and reclaim its reserve",
	Long: `Close tears down a container and returns its reserve to the payer.
Anchored transactions stay on the ledger and can still be fetched by
signature. The namespace can be initialized again afterwards.

Examples:
  dataanchor close rewards`,
	GroupID: "container",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runClose,
}

func init() {
	closeFees.register(closeCmd)
	closeCmd.Flags().DurationVar(&closeTimeout, "timeout", dataanchor.DefaultConfirmTimeout, "Confirmation timeout")
	rootCmd.AddCommand(closeCmd)
}

func runClose(cmd *cobra.Command, args []string) error {
	id, err := identifier(args)
	if err != nil {
		return err
	}
	fee, err := closeFees.strategy(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(true)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := client.Close(ctx, fee, id, dataanchor.WithLifecycleTimeout(closeTimeout)); err != nil {
		return err
	}
	fmt.Printf("Closed %s\n", id)
	return nil
}
