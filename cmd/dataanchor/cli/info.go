package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [identifier]",
	Short: "Show the state of a container",
	Long: `Info reads a container account: its authority, namespace, state hash
and the number of chunks appended to it.

Examples:
  dataanchor info rewards
  dataanchor info 5Ba4Rq1pB6ib1tt5mYsLaHLoiRrHyUY8ueNbbQnwNBBs`,
	GroupID: "container",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(_ *cobra.Command, args []string) error {
	id, err := identifier(args)
	if err != nil {
		return err
	}
	client, err := newClient(false)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	info, err := client.Container(ctx, id)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Address:\t%s\n", info.Address)
	fmt.Fprintf(w, "Namespace:\t%s\n", info.Namespace)
	fmt.Fprintf(w, "Authority:\t%s\n", info.Authority)
	fmt.Fprintf(w, "Chunks:\t%s\n", humanize.Comma(int64(info.Chunks)))
	fmt.Fprintf(w, "Last slot:\t%d\n", info.Slot)
	fmt.Fprintf(w, "State hash:\t%s\n", info.Hash)
	fmt.Fprintf(w, "Reserve:\t%s lamports\n", humanize.Comma(int64(info.Lamports)))
	return w.Flush()
}
