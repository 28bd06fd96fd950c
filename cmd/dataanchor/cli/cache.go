package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/dataanchor"
)

// Cache command flags
var (
	cacheLong    bool
	pruneMaxSize string
	pruneMaxAge  string
	clearConfirm bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the transaction cache",
	Long: `Manage the local transaction cache.

Fetch keeps the confirmed transactions it reads in the cache directory,
so fetching the same signatures again does not ask the ledger. Entries
are checked against their signatures when read.

The directory is set with --cache-dir and defaults to
$XDG_CACHE_HOME/dataanchor.`,
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache statistics",
	Long: `Display information about the transaction cache.

Examples:
  dataanchor cache info
  dataanchor cache info --long`,
	Args: cobra.NoArgs,
	RunE: runCacheInfo,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached transactions",
	Long: `Remove all entries from the transaction cache.

Use --yes to skip confirmation.`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old or excess cache entries",
	Long: `Prune the transaction cache based on age and/or size limits.

Entries are evicted based on their last access time. Oldest entries
(least recently used) are removed first.

Examples:
  dataanchor cache prune --max-size 100MB
  dataanchor cache prune --max-age 7d`,
	Args: cobra.NoArgs,
	RunE: runCachePrune,
}

func init() {
	cacheInfoCmd.Flags().BoolVarP(&cacheLong, "long", "l", false, "Show detailed entry information")
	cacheClearCmd.Flags().BoolVarP(&clearConfirm, "yes", "y", false, "Skip confirmation prompt")
	cachePruneCmd.Flags().StringVar(&pruneMaxSize, "max-size", "", "Maximum cache size (e.g., 100MB)")
	cachePruneCmd.Flags().StringVar(&pruneMaxAge, "max-age", "", "Maximum entry age (e.g., 24h, 7d)")

	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

// cacheDir returns the configured cache directory, even when caching is
// disabled for fetches.
func cacheDir() (string, error) {
	cfg, err := settings()
	if err != nil {
		return "", err
	}
	cfg.Cache = true
	return cfg.TransactionStore()
}

func runCacheInfo(_ *cobra.Command, _ []string) error {
	dir, err := cacheDir()
	if err != nil {
		return err
	}
	info, err := dataanchor.TransactionStoreStats(dir)
	if err != nil {
		return err
	}

	if info.EntryCount == 0 {
		fmt.Println("Cache is empty")
		return nil
	}

	fmt.Printf("Cache: %s\n", info.Path)
	fmt.Printf("Size:  %s (%d bytes)\n", humanize.IBytes(safeUint64(info.TotalSize)), info.TotalSize)
	fmt.Printf("Entries: %d\n", info.EntryCount)

	if cacheLong {
		fmt.Println()
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SIGNATURE\tSLOT\tSIZE\tLAST ACCESSED")
		for _, e := range info.Entries {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
				truncateSignature(e.Signature.String()),
				e.Slot,
				humanize.IBytes(safeUint64(e.Size)),
				humanize.Time(e.LastAccessed))
		}
		return tw.Flush()
	}
	return nil
}

func runCacheClear(_ *cobra.Command, _ []string) error {
	dir, err := cacheDir()
	if err != nil {
		return err
	}
	info, err := dataanchor.TransactionStoreStats(dir)
	if err != nil {
		return err
	}

	if info.EntryCount == 0 {
		fmt.Println("Cache is already empty")
		return nil
	}

	if !clearConfirm {
		fmt.Printf("This will remove %d entries (%s) from the cache.\n",
			info.EntryCount, humanize.IBytes(safeUint64(info.TotalSize)))
		fmt.Print("Continue? [y/N] ")

		var response string
		//nolint:errcheck // Empty input or EOF is treated as "no" - not an error
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := dataanchor.ClearTransactionStore(dir); err != nil {
		return err
	}

	fmt.Printf("Cleared %d entries (%s)\n",
		info.EntryCount, humanize.IBytes(safeUint64(info.TotalSize)))
	return nil
}

func runCachePrune(_ *cobra.Command, _ []string) error {
	opts := dataanchor.StorePruneOptions{}

	if pruneMaxSize != "" {
		size, err := humanize.ParseBytes(pruneMaxSize)
		if err != nil {
			return fmt.Errorf("invalid --max-size: %w", err)
		}
		opts.MaxSize = safeInt64(size)
	}
	if pruneMaxAge != "" {
		age, err := parseDuration(pruneMaxAge)
		if err != nil {
			return fmt.Errorf("invalid --max-age: %w", err)
		}
		opts.MaxAge = age
	}
	if opts.MaxSize == 0 && opts.MaxAge == 0 {
		return errors.New("at least one of --max-size or --max-age is required")
	}

	dir, err := cacheDir()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := dataanchor.PruneTransactionStore(ctx, dir, opts)
	if err != nil {
		return err
	}

	if result.EntriesRemoved == 0 {
		fmt.Println("No entries to prune")
	} else {
		fmt.Printf("Removed %d entries (%s)\n",
			result.EntriesRemoved, humanize.IBytes(safeUint64(result.BytesRemoved)))
	}
	if result.EntriesRemaining > 0 {
		fmt.Printf("Remaining: %d entries (%s)\n",
			result.EntriesRemaining, humanize.IBytes(safeUint64(result.BytesRemaining)))
	}
	return nil
}

// truncateSignature shortens a signature for display.
func truncateSignature(sig string) string {
	if len(sig) <= 16 {
		return sig
	}
	return sig[:16] + "..."
}

// parseDuration parses a duration string with support for days (d).
func parseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid day count: %s", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// safeUint64 converts int64 to uint64, clamping negative values to 0.
func safeUint64(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

// safeInt64 converts uint64 to int64, clamping to max int64 if overflow.
func safeInt64(n uint64) int64 {
	const maxInt64 = int64(^uint64(0) >> 1)
	if n > uint64(maxInt64) {
		return maxInt64
	}
	return int64(n)
}
