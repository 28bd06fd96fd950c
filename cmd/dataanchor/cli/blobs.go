package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/dataanchor"
)

var (
	blobsWait   time.Duration
	blobsIndex  int
	blobsOutput string
)

var blobsCmd = &cobra.Command{
	Use:   "blobs <identifier> <slot>",
	Short: "List the blobs an indexer holds for a slot",
	Long: `Blobs asks the indexer for the blobs anchored to a container at a slot.

A slot the indexer has not processed yet is reported as not available.
Use --wait to poll until it is. Use --index to write one blob's payload.

Examples:
  dataanchor blobs rewards 281734011
  dataanchor blobs rewards 281734011 --wait 30s --index 0 -o epoch.json`,
	GroupID: "core",
	Args:    cobra.ExactArgs(2),
	RunE:    runBlobs,
}

func init() {
	blobsCmd.Flags().DurationVar(&blobsWait, "wait", 0, "Poll until the slot is available, up to this long")
	blobsCmd.Flags().IntVar(&blobsIndex, "index", -1, "Write the payload of the blob at this position")
	blobsCmd.Flags().StringVarP(&blobsOutput, "output", "o", "", "Write the payload here instead of standard output")
	rootCmd.AddCommand(blobsCmd)
}

// errNotAvailable marks an indexer answer that is not ready yet.
var errNotAvailable = errors.New("not yet available")

// slotArgs parses "<identifier> <slot>".
func slotArgs(args []string) (dataanchor.Identifier, dataanchor.Slot, error) {
	id, err := identifier(args[:1])
	if err != nil {
		return dataanchor.Identifier{}, 0, err
	}
	slot, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return dataanchor.Identifier{}, 0, fmt.Errorf("invalid slot %q: %w", args[1], err)
	}
	return id, dataanchor.Slot(slot), nil
}

// poll calls query until it reports availability, waiting up to wait.
func poll[T any](ctx context.Context, wait time.Duration, query func(context.Context) (T, bool, error)) (T, bool, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = wait

	var policy backoff.BackOff = backoff.WithContext(b, ctx)
	if wait <= 0 {
		policy = &backoff.StopBackOff{}
	}
	v, err := backoff.RetryWithData[T](func() (T, error) {
		v, ok, err := query(ctx)
		if err != nil {
			return v, backoff.Permanent(err)
		}
		if !ok {
			return v, errNotAvailable
		}
		return v, nil
	}, policy)
	if errors.Is(err, errNotAvailable) {
		return v, false, nil
	}
	return v, err == nil, err
}

func runBlobs(_ *cobra.Command, args []string) error {
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

	blobs, ok, err := poll(ctx, blobsWait, func(ctx context.Context) ([]dataanchor.BlobRecord, bool, error) {
		return client.GetBlobs(ctx, slot, id)
	})
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "Slot %d is not yet available from the indexer\n", slot)
		return nil
	}

	if blobsIndex >= 0 {
		if blobsIndex >= len(blobs) {
			return fmt.Errorf("slot %d has %d blobs, no blob at index %d", slot, len(blobs), blobsIndex)
		}
		payload, err := dataanchor.BlobPayload(blobs[blobsIndex])
		if err != nil {
			return err
		}
		return writeOutput(blobsOutput, payload)
	}

	if len(blobs) == 0 {
		fmt.Printf("No blobs at slot %d\n", slot)
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tSIZE\tCHUNKS\tCOMPRESSION\tDIGEST")
	for i, b := range blobs {
		payload, err := dataanchor.BlobPayload(b)
		if err != nil {
			return fmt.Errorf("blob %d: %w", i, err)
		}
		d, err := dataanchor.BlobDigest(b)
		if err != nil {
			return fmt.Errorf("blob %d: %w", i, err)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", i, humanize.IBytes(uint64(len(payload))), len(b.Chunks), b.Compression, d)
	}
	return w.Flush()
}
