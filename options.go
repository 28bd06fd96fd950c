package dataanchor

import (
	"errors"
	"log/slog"
	"time"

	"github.com/meigma/dataanchor/internal/chunk"
)

// Upload defaults.
const (
	DefaultConfirmTimeout = 60 * time.Second
	DefaultConcurrency    = 4
	// MaxChunkSize is the largest chunk that fits one ledger transaction.
	MaxChunkSize = chunk.DefaultMaxSize
)

// ClientOption configures a Client.
type ClientOption func(*Client) error

// UploadOption configures an Upload operation.
type UploadOption func(*uploadConfig)

// LifecycleOption configures Create, Initialize and Close.
type LifecycleOption func(*lifecycleConfig)

// uploadConfig holds configuration for Upload operations.
type uploadConfig struct {
	timeout     time.Duration
	concurrency int
	chunkSize   int
	compression Compression
	progress    ProgressCallback
}

func newUploadConfig(opts []UploadOption) uploadConfig {
	cfg := uploadConfig{
		timeout:     DefaultConfirmTimeout,
		concurrency: DefaultConcurrency,
		chunkSize:   MaxChunkSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// lifecycleConfig holds configuration for container lifecycle operations.
type lifecycleConfig struct {
	timeout time.Duration
}

func newLifecycleConfig(opts []LifecycleOption) lifecycleConfig {
	cfg := lifecycleConfig{timeout: DefaultConfirmTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger sets a logger for the client. By default, logging is disabled.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithLedger sets the ledger the client talks to.
func WithLedger(l Ledger) ClientOption {
	return func(c *Client) error {
		if l == nil {
			return errors.New("dataanchor: nil ledger")
		}
		c.ledger = l
		return nil
	}
}

// WithIndexer sets the indexer used by GetBlobs and GetProof.
func WithIndexer(idx Indexer) ClientOption {
	return func(c *Client) error {
		c.indexer = idx
		return nil
	}
}

// WithPayer sets the account that signs and pays for transactions.
// Required for Upload, Create, Initialize and Close.
func WithPayer(s Signer) ClientOption {
	return func(c *Client) error {
		c.payer = s
		return nil
	}
}

// WithProgramID sets the address of the on-ledger blober program.
// Defaults to DefaultProgramID.
func WithProgramID(id Pubkey) ClientOption {
	return func(c *Client) error {
		if id.IsZero() {
			return errors.New("dataanchor: zero program id")
		}
		c.programID = id
		return nil
	}
}

// WithTransactionCache caches up to size confirmed transactions fetched by
// GetBySignatures.
func WithTransactionCache(size int) ClientOption {
	return func(c *Client) error {
		if size <= 0 {
			return errors.New("dataanchor: transaction cache size must be positive")
		}
		c.txCacheSize = size
		return nil
	}
}

// WithTransactionStore persists confirmed transactions fetched by
// GetBySignatures under dir, so later clients can read them without asking
// the ledger. Entries are verified against their signatures when read.
// It implies an in-memory cache of default size unless WithTransactionCache
// is also given.
func WithTransactionStore(dir string) ClientOption {
	return func(c *Client) error {
		path, err := resolveStorePath(dir)
		if err != nil {
			return err
		}
		c.txStoreDir = path
		return nil
	}
}

// WithTimeout bounds the confirmation wait of each chunk.
// Chunks not confirmed in time are reported as ChunkTimeout.
func WithTimeout(d time.Duration) UploadOption {
	return func(c *uploadConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConcurrency sets how many chunks are in flight at once.
func WithConcurrency(n int) UploadOption {
	return func(c *uploadConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithChunkSize sets the chunk size, between 1 and MaxChunkSize bytes.
func WithChunkSize(n int) UploadOption {
	return func(c *uploadConfig) {
		c.chunkSize = n
	}
}

// WithCompression compresses the payload before it is chunked.
// Retrieval decompresses transparently.
func WithCompression(codec Compression) UploadOption {
	return func(c *uploadConfig) {
		c.compression = codec
	}
}

// WithProgress sets a callback invoked as chunks confirm.
func WithProgress(cb ProgressCallback) UploadOption {
	return func(c *uploadConfig) {
		c.progress = cb
	}
}

// WithLifecycleTimeout bounds the confirmation wait of a lifecycle transaction.
func WithLifecycleTimeout(d time.Duration) LifecycleOption {
	return func(c *lifecycleConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}
