package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/dataanchor"
)

var (
	uploadFees        feeFlags
	uploadCompression string
	uploadChunkSize   int
	uploadConcurrency int
	uploadTimeout     time.Duration
	uploadSigFile     string
)

var uploadCmd = &cobra.Command{
	Use:   "upload [identifier] <file>",
	Short: "Anchor a file to a container",
	Long: `Upload splits a file into chunks and appends them to a container, one
transaction per chunk. Use - to read from standard input.

The chunk signatures are printed one per line, in chunk order. Keep them:
they are all that is needed to fetch the file back from the ledger.

Examples:
  dataanchor upload rewards epoch-1042.json
  dataanchor upload rewards big.bin --compression zstd --signatures-file big.sigs
  cat report.csv | dataanchor upload -n reports -`,
	GroupID: "core",
	Args:    cobra.RangeArgs(1, 2),
	RunE:    runUpload,
}

func init() {
	uploadFees.register(uploadCmd)
	flags := uploadCmd.Flags()
	flags.StringVar(&uploadCompression, "compression", "none", "Compression applied before chunking (none, zstd)")
	flags.IntVar(&uploadChunkSize, "chunk-size", dataanchor.MaxChunkSize, "Chunk size in bytes")
	flags.IntVar(&uploadConcurrency, "concurrency", dataanchor.DefaultConcurrency, "Chunks in flight at once")
	flags.DurationVar(&uploadTimeout, "timeout", dataanchor.DefaultConfirmTimeout, "Confirmation timeout per chunk")
	flags.StringVar(&uploadSigFile, "signatures-file", "", "Also write the chunk signatures to this file")
	_ = uploadCmd.RegisterFlagCompletionFunc("compression", completeCompression)
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	idArgs, file := args[:len(args)-1], args[len(args)-1]
	id, err := identifier(idArgs)
	if err != nil {
		return err
	}
	codec, err := parseCompression(uploadCompression)
	if err != nil {
		return err
	}
	fee, err := uploadFees.strategy(cmd)
	if err != nil {
		return err
	}
	payload, err := readInput(file)
	if err != nil {
		return err
	}
	client, err := newClient(true)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	onProgress, finish := newUploadProgress()
	opts := []dataanchor.UploadOption{
		dataanchor.WithCompression(codec),
		dataanchor.WithChunkSize(uploadChunkSize),
		dataanchor.WithConcurrency(uploadConcurrency),
		dataanchor.WithTimeout(uploadTimeout),
	}
	if onProgress != nil {
		opts = append(opts, dataanchor.WithProgress(onProgress))
	}
	outcomes, container, err := client.Upload(ctx, payload, fee, id, opts...)
	finish()
	if err != nil {
		return err
	}

	var sigs strings.Builder
	for _, o := range outcomes {
		fmt.Fprintln(&sigs, o.Signature)
	}
	if uploadSigFile != "" {
		if err := os.WriteFile(uploadSigFile, []byte(sigs.String()), 0o600); err != nil {
			return fmt.Errorf("write signatures: %w", err)
		}
	}
	fmt.Print(sigs.String())
	fmt.Fprintf(os.Stderr, "Anchored %s in %d chunks to %s at slot %d\n",
		humanize.IBytes(uint64(len(payload))), len(outcomes), container, dataanchor.UploadSlot(outcomes))
	return nil
}

func parseCompression(s string) (dataanchor.Compression, error) {
	switch s {
	case "", "none":
		return dataanchor.CompressionNone, nil
	case "zstd":
		return dataanchor.CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none or zstd)", s)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
