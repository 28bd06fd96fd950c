package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meigma/dataanchor"
)

var keygenForce bool

var keygenCmd = &cobra.Command{
	Use:   "keygen <file>",
	Short: "Generate a payer keypair file",
	Long: `Keygen writes a new ed25519 keypair in the JSON byte-array format used
by ledger tooling and prints its address. Fund the address before using
it as a payer.

Examples:
  dataanchor keygen ~/.config/dataanchor/payer.json
  dataanchor config set keypair ~/.config/dataanchor/payer.json`,
	Args: cobra.ExactArgs(1),
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().BoolVarP(&keygenForce, "force", "f", false, "Overwrite an existing file")
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(_ *cobra.Command, args []string) error {
	path := args[0]
	if !keygenForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	signer, data, err := dataanchor.GenerateKeypair()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write keypair: %w", err)
	}
	fmt.Println(signer.PublicKey())
	return nil
}
