package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/meigma/dataanchor"
)

var (
	proofWait     time.Duration
	proofNoVerify bool
)

var proofCmd = &cobra.Command{
	Use:   "proof <identifier> <slot>",
	Short: "Fetch and verify the inclusion proof for a slot",
	Long: `Proof fetches the indexer's inclusion proof for a container at a slot
and checks it against the blobs the indexer reports for the same slot.

Examples:
  dataanchor proof rewards 281734011
  dataanchor proof rewards 281734011 --wait 1m`,
	GroupID: "core",
	Args:    cobra.ExactArgs(2),
	RunE:    runProof,
}

func init() {
	proofCmd.Flags().DurationVar(&proofWait, "wait", 0, "Poll until the proof is available, up to this long")
	proofCmd.Flags().BoolVar(&proofNoVerify, "no-verify", false, "Print the proof without checking it against the slot's blobs")
	rootCmd.AddCommand(proofCmd)
}

func runProof(_ *cobra.Command, args []string) error {
	id, slot, err := slotArgs(args)
	if err != nil {
		return err
	}
	client, err := newClient(false)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	proof, ok, err := poll(ctx, proofWait, func(ctx context.Context) (*dataanchor.Proof, bool, error) {
		return client.GetProof(ctx, slot, id)
	})
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "No proof is available for slot %d\n", slot)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Container:\t%s\n", proof.Container)
	fmt.Fprintf(w, "Slot:\t%d\n", proof.Slot)
	fmt.Fprintf(w, "Initial hash:\t%s\n", proof.InitialHash)
	fmt.Fprintf(w, "Final hash:\t%s\n", proof.FinalHash)
	fmt.Fprintf(w, "Chunks:\t%d\n", len(proof.ChunkDigests))
	if err := w.Flush(); err != nil {
		return err
	}

	if proofNoVerify {
		return dataanchor.VerifyProof(proof)
	}
	blobs, ok, err := client.GetBlobs(ctx, slot, id)
	if err != nil {
		return err
	}
	if !ok {
		blobs = nil
	}
	if err := dataanchor.VerifyProof(proof, blobs...); err != nil {
		return err
	}
	fmt.Printf("Verified: %d blobs covered by the proof\n", len(blobs))
	return nil
}
