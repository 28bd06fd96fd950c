package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/dataanchor"
)

var addressCmd = &cobra.Command{
	Use:   "address [namespace]",
	Short: "Print the container address of a namespace",
	Long: `Address derives the container address of a namespace under the
configured program. No network access is involved.

Examples:
  dataanchor address rewards
  DATA_ANCHOR_NAMESPACE=rewards dataanchor address`,
	GroupID: "container",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runAddress,
}

func init() {
	rootCmd.AddCommand(addressCmd)
}

func runAddress(_ *cobra.Command, args []string) error {
	id, err := identifier(args)
	if err != nil {
		return err
	}
	cfg, err := settings()
	if err != nil {
		return err
	}
	conn, err := cfg.Client()
	if err != nil {
		return err
	}
	addr, err := dataanchor.ResolveIdentifier(conn.ProgramID, id)
	if err != nil {
		return err
	}
	fmt.Println(addr)
	return nil
}
