package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/meigma/dataanchor"
)

// EnvPrefix prefixes the environment variables read by the CLI.
const EnvPrefix = "DATA_ANCHOR"

// Setting keys.
const (
	KeyRPCURL       = "rpc-url"
	KeyProgramID    = "program-id"
	KeyIndexerURL   = "indexer-url"
	KeyIndexerToken = "indexer-api-token"
	KeyCommitment   = "commitment"
	KeyKeypair      = "keypair"
	KeyNamespace    = "namespace"
	KeyProgress     = "progress"
	KeyCache        = "cache"
	KeyCacheDir     = "cache-dir"
)

// Keys lists every setting, in display order.
var Keys = []string{
	KeyRPCURL, KeyProgramID, KeyIndexerURL, KeyIndexerToken,
	KeyCommitment, KeyKeypair, KeyNamespace, KeyProgress,
	KeyCache, KeyCacheDir,
}

// DefaultRPCURL is a local validator.
const DefaultRPCURL = "http://127.0.0.1:8899"

// Config represents the dataanchor CLI configuration.
// Use mapstructure tags for Viper unmarshaling.
type Config struct {
	RPCURL       string `mapstructure:"rpc-url" yaml:"rpc-url"`
	ProgramID    string `mapstructure:"program-id" yaml:"program-id"`
	IndexerURL   string `mapstructure:"indexer-url" yaml:"indexer-url"`
	IndexerToken string `mapstructure:"indexer-api-token" yaml:"indexer-api-token,omitempty"`
	Commitment   string `mapstructure:"commitment" yaml:"commitment"`
	// Keypair is the path of the payer keypair file.
	Keypair string `mapstructure:"keypair" yaml:"keypair,omitempty"`
	// Namespace is used by commands whose identifier argument is omitted.
	Namespace string `mapstructure:"namespace" yaml:"namespace,omitempty"`
	// Progress is "auto", "tty" or "plain".
	Progress string `mapstructure:"progress" yaml:"progress"`
	// Cache keeps fetched transactions under CacheDir.
	Cache    bool   `mapstructure:"cache" yaml:"cache"`
	CacheDir string `mapstructure:"cache-dir" yaml:"cache-dir,omitempty"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		RPCURL:     DefaultRPCURL,
		ProgramID:  dataanchor.DefaultProgramID.String(),
		Commitment: string(dataanchor.CommitmentConfirmed),
		Progress:   "auto",
		Cache:      true,
	}
}

// Setup registers defaults and environment bindings on v. Every key can be
// set as DATA_ANCHOR_<KEY>, with dashes as underscores. The keypair path is
// also read from PAYER_KEYPAIR_PATH.
func Setup(v *viper.Viper) error {
	d := Defaults()
	v.SetDefault(KeyRPCURL, d.RPCURL)
	v.SetDefault(KeyProgramID, d.ProgramID)
	v.SetDefault(KeyIndexerURL, "")
	v.SetDefault(KeyIndexerToken, "")
	v.SetDefault(KeyCommitment, d.Commitment)
	v.SetDefault(KeyKeypair, "")
	v.SetDefault(KeyNamespace, "")
	v.SetDefault(KeyProgress, d.Progress)
	v.SetDefault(KeyCache, d.Cache)
	v.SetDefault(KeyCacheDir, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v.BindEnv(KeyKeypair, EnvPrefix+"_KEYPAIR", "PAYER_KEYPAIR_PATH")
}

// ReadFile loads path into v. A missing file is not an error unless
// required is set.
func ReadFile(v *viper.Viper, path string, required bool) error {
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load decodes the effective configuration from v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// TransactionStore returns the directory fetched transactions are kept in,
// or "" when caching is disabled.
func (c Config) TransactionStore() (string, error) {
	if !c.Cache {
		return "", nil
	}
	if c.CacheDir != "" {
		return c.CacheDir, nil
	}
	return CacheDir()
}

// Client returns the connection settings for dataanchor.Dial.
func (c Config) Client() (dataanchor.Config, error) {
	out := dataanchor.Config{
		RPCURL:       c.RPCURL,
		IndexerURL:   c.IndexerURL,
		IndexerToken: c.IndexerToken,
		Commitment:   dataanchor.Commitment(c.Commitment),
	}
	if c.ProgramID != "" {
		id, err := dataanchor.ParsePubkey(c.ProgramID)
		if err != nil {
			return dataanchor.Config{}, fmt.Errorf("%s: %w", KeyProgramID, err)
		}
		out.ProgramID = id
	}
	if err := out.Validate(); err != nil {
		return dataanchor.Config{}, err
	}
	return out, nil
}
