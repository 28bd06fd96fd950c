// Package cli implements the dataanchor command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/dataanchor"
	"github.com/meigma/dataanchor/cmd/dataanchor/cli/config"
)

// Build information set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "dataanchor",
	Short: "Anchor files to a ledger and retrieve them",
	Long: `Dataanchor stores arbitrary files on a ledger under a namespace.

Files are split into chunks, one transaction each, and appended to the
namespace's container. They can be read back from the chunk transaction
signatures alone, or from an indexer by slot together with an inclusion
proof.

Settings are read from flags, DATA_ANCHOR_* environment variables and
the config file, in that order of precedence.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default $XDG_CONFIG_HOME/dataanchor/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose debug logging")
	flags.String(config.KeyRPCURL, "", "Ledger JSON-RPC endpoint")
	flags.String(config.KeyProgramID, "", "Blober program address")
	flags.String(config.KeyIndexerURL, "", "Indexer JSON-RPC endpoint")
	flags.String(config.KeyIndexerToken, "", "Indexer API token")
	flags.String(config.KeyCommitment, "", "Commitment level awaited (processed, confirmed, finalized)")
	flags.StringP(config.KeyKeypair, "k", "", "Payer keypair file")
	flags.StringP(config.KeyNamespace, "n", "", "Namespace used when the identifier argument is omitted")
	flags.String(config.KeyProgress, "", "Progress display (auto, tty, plain)")
	flags.Bool(config.KeyCache, true, "Keep fetched transactions in the cache directory")
	flags.String(config.KeyCacheDir, "", "Cache directory (default $XDG_CACHE_HOME/dataanchor)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Anchoring Commands:"},
		&cobra.Group{ID: "container", Title: "Container Commands:"},
	)
	rootCmd.Version = version
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
	}
	return err
}

// loadConfig merges the config file, environment and flags into viper.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := config.Setup(viper.GetViper()); err != nil {
		return err
	}
	path, required := configFile, configFile != ""
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return err
		}
		path = p
	}
	if err := config.ReadFile(viper.GetViper(), path, required); err != nil {
		return err
	}
	for _, key := range config.Keys {
		if f := cmd.Flags().Lookup(key); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// settings returns the effective configuration.
func settings() (config.Config, error) {
	return config.Load(viper.GetViper())
}

func logger() *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newClient creates a client from the effective configuration. Commands that
// submit transactions set withPayer.
func newClient(withPayer bool) (*dataanchor.Client, error) {
	cfg, err := settings()
	if err != nil {
		return nil, err
	}
	conn, err := cfg.Client()
	if err != nil {
		return nil, err
	}
	conn.UserAgent = "dataanchor/" + version

	opts := []dataanchor.ClientOption{dataanchor.WithLogger(logger())}
	store, err := cfg.TransactionStore()
	if err != nil {
		return nil, err
	}
	if store != "" {
		opts = append(opts, dataanchor.WithTransactionStore(store))
	}
	if withPayer {
		if cfg.Keypair == "" {
			return nil, errNoKeypair
		}
		payer, err := dataanchor.LoadKeypair(cfg.Keypair)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dataanchor.WithPayer(payer))
	}
	return dataanchor.Dial(conn, opts...)
}

var errNoKeypair = errors.New("no payer keypair configured")

// identifier returns the container named by args[0], falling back to the
// configured namespace.
func identifier(args []string) (dataanchor.Identifier, error) {
	if len(args) > 0 && args[0] != "" {
		return dataanchor.ParseIdentifier(args[0])
	}
	cfg, err := settings()
	if err != nil {
		return dataanchor.Identifier{}, err
	}
	if cfg.Namespace == "" {
		return dataanchor.Identifier{}, fmt.Errorf("%w: no namespace given (pass one or set %s)",
			dataanchor.ErrInvalidIdentifier, config.KeyNamespace)
	}
	return dataanchor.ParseIdentifier(cfg.Namespace)
}

// signalContext returns a context that is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// formatError converts dataanchor errors to user-friendly messages.
func formatError(err error) string {
	if err == nil {
		return ""
	}

	var upErr *dataanchor.UploadError
	switch {
	case errors.As(err, &upErr):
		return fmt.Sprintf("Error: upload incomplete: %d of %d chunks confirmed: %v",
			len(upErr.Outcomes), len(upErr.Chunks), upErr.Err)
	case errors.Is(err, errNoKeypair):
		return "Error: no payer keypair configured (use --keypair or PAYER_KEYPAIR_PATH)"
	case errors.Is(err, dataanchor.ErrContainerNotFound):
		return fmt.Sprintf("Error: container not found (run `dataanchor init` first): %v", err)
	case errors.Is(err, dataanchor.ErrContainerAlreadyExists):
		return "Error: container already exists"
	case errors.Is(err, dataanchor.ErrInvalidIdentifier):
		return fmt.Sprintf("Error: invalid identifier: %v", err)
	case errors.Is(err, dataanchor.ErrUnauthorized):
		return "Error: authentication failed (check your indexer API token)"
	case errors.Is(err, dataanchor.ErrIncompleteChunkSet):
		return fmt.Sprintf("Error: incomplete chunk set: %v", err)
	case errors.Is(err, dataanchor.ErrSignatureNotFound):
		return fmt.Sprintf("Error: transaction not found: %v", err)
	case errors.Is(err, dataanchor.ErrIndexerUnavailable):
		return fmt.Sprintf("Error: indexer unavailable: %v", err)
	case errors.Is(err, dataanchor.ErrNoIndexer):
		return "Error: no indexer configured (use --indexer-url or DATA_ANCHOR_INDEXER_URL)"
	case errors.Is(err, dataanchor.ErrProofMismatch):
		return fmt.Sprintf("Error: proof verification failed: %v", err)
	case errors.Is(err, dataanchor.ErrTimeout):
		return fmt.Sprintf("Error: confirmation timed out (the transaction may still land): %v", err)
	case errors.Is(err, dataanchor.ErrTransactionRejected):
		return fmt.Sprintf("Error: transaction rejected: %v", err)
	case errors.Is(err, context.Canceled):
		return "Error: operation canceled"
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
