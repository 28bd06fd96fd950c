package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/dataanchor"
)

var (
	fetchOutput  string
	fetchSigFile string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <identifier> [signature...]",
	Short: "Rebuild a file from its chunk signatures",
	Long: `Fetch reads the chunk transactions of an upload from the ledger and
reassembles the file. Signatures may be given in any order; every chunk
must be present. The indexer is not used.

Examples:
  dataanchor fetch rewards 5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnb... > epoch.json
  dataanchor fetch rewards --signatures-file big.sigs -o big.bin`,
	GroupID: "core",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Write the file here instead of standard output")
	fetchCmd.Flags().StringVar(&fetchSigFile, "signatures-file", "", "Read signatures from this file, one per line")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(_ *cobra.Command, args []string) error {
	id, err := identifier(args[:1])
	if err != nil {
		return err
	}
	raw := args[1:]
	if fetchSigFile != "" {
		lines, err := readLines(fetchSigFile)
		if err != nil {
			return err
		}
		raw = append(raw, lines...)
	}
	sigs := make([]dataanchor.Signature, 0, len(raw))
	for _, s := range raw {
		sig, err := dataanchor.ParseSignature(s)
		if err != nil {
			return err
		}
		sigs = append(sigs, sig)
	}

	client, err := newClient(false)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	payload, err := client.GetBySignatures(ctx, id, sigs)
	if err != nil {
		return err
	}
	return writeOutput(fetchOutput, payload)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
