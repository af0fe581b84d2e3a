package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "TESTLEDGER"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultLogCapacity is the default number of log entries kept in memory.
	DefaultLogCapacity = 1000

	// DefaultLogSlot is the default name of the persisted log slot.
	DefaultLogSlot = "app_logs"

	// DefaultRPCURL is the default wallet/node endpoint.
	DefaultRPCURL = "http://127.0.0.1:8545"

	// DefaultConfirmationTimeout bounds how long a submission waits for its receipt.
	DefaultConfirmationTimeout = 60 * time.Second

	// DefaultReceiptPollInterval is how often a pending transaction is polled.
	DefaultReceiptPollInterval = time.Second

	// DefaultMaxUploadSize is the largest file accepted for pinning.
	DefaultMaxUploadSize = "100MB"

	// DefaultPinner is the default pinning service.
	DefaultPinner = "pinata"

	// DefaultPinataEndpoint is the Pinata file pinning endpoint.
	DefaultPinataEndpoint = "https://api.pinata.cloud/pinning/pinFileToIPFS"

	// DefaultKuboAPIURL is the default Kubo RPC endpoint.
	DefaultKuboAPIURL = "http://127.0.0.1:5001"

	// DefaultDevnetImage is the container image used for the local dev chain.
	DefaultDevnetImage = "ghcr.io/foundry-rs/foundry:latest"

	// DefaultDevnetContainer is the container name used for the local dev chain.
	DefaultDevnetContainer = "testledger-devnet"

	// DefaultPullPolicy is the default image pull policy.
	DefaultPullPolicy = "if-not-present"
)

// Log storage drivers.
const (
	LogDriverFile     = "file"
	LogDriverSQLite   = "sqlite"
	LogDriverPostgres = "postgres"
)

// Pinning services.
const (
	PinnerPinata   = "pinata"
	PinnerKubo     = "kubo"
	PinnerFilebase = "filebase"
)

// DefaultGateways is the ordered list of public IPFS gateways.
var DefaultGateways = []string{
	"https://ipfs.io/ipfs/",
	"https://cloudflare-ipfs.com/ipfs/",
	"https://dweb.link/ipfs/",
	"https://ipfs.fleek.co/ipfs/",
}

// Config is the root configuration for testledger.
type Config struct {
	Global   GlobalConfig   `yaml:"global" mapstructure:"global"`
	Logs     LogsConfig     `yaml:"logs" mapstructure:"logs"`
	Wallet   WalletConfig   `yaml:"wallet" mapstructure:"wallet"`
	Contract ContractConfig `yaml:"contract" mapstructure:"contract"`
	IPFS     IPFSConfig     `yaml:"ipfs" mapstructure:"ipfs"`
	Devnet   DevnetConfig   `yaml:"devnet" mapstructure:"devnet"`
	API      *APIConfig     `yaml:"api,omitempty" mapstructure:"api"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// LogsConfig configures the in-process log ring buffer.
type LogsConfig struct {
	Capacity int              `yaml:"capacity" mapstructure:"capacity"`
	Storage  LogStorageConfig `yaml:"storage" mapstructure:"storage"`
}

// LogStorageConfig configures where the log ring buffer is mirrored.
type LogStorageConfig struct {
	Enabled  bool                 `yaml:"enabled" mapstructure:"enabled"`
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	Slot     string               `yaml:"slot" mapstructure:"slot"`
	File     FileSlotConfig       `yaml:"file,omitempty" mapstructure:"file"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// FileSlotConfig contains settings for the JSON file log slot.
type FileSlotConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// WalletConfig configures the wallet/node connection.
type WalletConfig struct {
	RPCURL            string          `yaml:"rpc_url" mapstructure:"rpc_url"`
	PrivateKey        string          `yaml:"private_key,omitempty" mapstructure:"private_key"`
	DefaultNetwork    NetworkConfig   `yaml:"default_network" mapstructure:"default_network"`
	SupportedNetworks []NetworkConfig `yaml:"supported_networks" mapstructure:"supported_networks"`
}

// NetworkConfig describes a chain the wallet can switch to or register.
type NetworkConfig struct {
	ChainID  uint64         `yaml:"chain_id" mapstructure:"chain_id"`
	Name     string         `yaml:"name" mapstructure:"name"`
	RPCURLs  []string       `yaml:"rpc_urls,omitempty" mapstructure:"rpc_urls"`
	Currency CurrencyConfig `yaml:"currency,omitempty" mapstructure:"currency"`
}

// CurrencyConfig describes a chain's native currency.
type CurrencyConfig struct {
	Name     string `yaml:"name" mapstructure:"name"`
	Symbol   string `yaml:"symbol" mapstructure:"symbol"`
	Decimals int    `yaml:"decimals" mapstructure:"decimals"`
}

// ContractConfig configures the TestDataManager contract binding.
type ContractConfig struct {
	// Addresses maps a decimal chain id to the deployed contract address.
	// An empty address means the contract is not deployed on that chain.
	Addresses           map[string]string `yaml:"addresses" mapstructure:"addresses"`
	ABIPath             string            `yaml:"abi_path,omitempty" mapstructure:"abi_path"`
	ConfirmationTimeout time.Duration     `yaml:"confirmation_timeout" mapstructure:"confirmation_timeout"`
	ReceiptPollInterval time.Duration     `yaml:"receipt_poll_interval" mapstructure:"receipt_poll_interval"`
}

// IPFSConfig configures pinning and gateway retrieval.
type IPFSConfig struct {
	Gateways      []string       `yaml:"gateways" mapstructure:"gateways"`
	MaxUploadSize string         `yaml:"max_upload_size" mapstructure:"max_upload_size"`
	Pinner        string         `yaml:"pinner" mapstructure:"pinner"`
	Pinata        PinataConfig   `yaml:"pinata,omitempty" mapstructure:"pinata"`
	Kubo          KuboConfig     `yaml:"kubo,omitempty" mapstructure:"kubo"`
	Filebase      FilebaseConfig `yaml:"filebase,omitempty" mapstructure:"filebase"`
}

// PinataConfig contains Pinata pinning settings.
type PinataConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	JWT      string `yaml:"jwt,omitempty" mapstructure:"jwt"`
}

// KuboConfig contains settings for a Kubo (go-ipfs) RPC endpoint.
type KuboConfig struct {
	APIURL string `yaml:"api_url" mapstructure:"api_url"`
}

// FilebaseConfig contains settings for Filebase's S3-compatible IPFS pinning.
type FilebaseConfig struct {
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
}

// DevnetConfig configures the Docker-managed local development chain.
type DevnetConfig struct {
	Image         string `yaml:"image" mapstructure:"image"`
	ContainerName string `yaml:"container_name" mapstructure:"container_name"`
	ChainID       uint64 `yaml:"chain_id" mapstructure:"chain_id"`
	HostPort      int    `yaml:"host_port" mapstructure:"host_port"`
	PullPolicy    string `yaml:"pull_policy" mapstructure:"pull_policy"`
}

// Load reads configuration from the given files (later files override
// earlier ones), applies defaults and TESTLEDGER_* environment overrides.
// With no paths only defaults and the environment are used.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for i, path := range paths {
		v.SetConfigFile(path)

		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}

		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// setDefaults registers every known key so that environment overrides
// resolve even when the key is absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)

	v.SetDefault("logs.capacity", DefaultLogCapacity)
	v.SetDefault("logs.storage.enabled", true)
	v.SetDefault("logs.storage.driver", LogDriverFile)
	v.SetDefault("logs.storage.slot", DefaultLogSlot)
	v.SetDefault("logs.storage.file.path", "./testledger-logs.json")
	v.SetDefault("logs.storage.sqlite.path", "./testledger.db")
	v.SetDefault("logs.storage.postgres.host", "localhost")
	v.SetDefault("logs.storage.postgres.port", 5432)
	v.SetDefault("logs.storage.postgres.user", "")
	v.SetDefault("logs.storage.postgres.password", "")
	v.SetDefault("logs.storage.postgres.database", "testledger")
	v.SetDefault("logs.storage.postgres.ssl_mode", "disable")

	v.SetDefault("wallet.rpc_url", DefaultRPCURL)
	v.SetDefault("wallet.private_key", "")
	v.SetDefault("wallet.default_network.chain_id", 31337)
	v.SetDefault("wallet.default_network.name", "Hardhat Local")
	v.SetDefault("wallet.default_network.rpc_urls", []string{DefaultRPCURL})
	v.SetDefault("wallet.default_network.currency.name", "Ethereum")
	v.SetDefault("wallet.default_network.currency.symbol", "ETH")
	v.SetDefault("wallet.default_network.currency.decimals", 18)
	v.SetDefault("wallet.supported_networks", []map[string]any{
		{"chain_id": 31337, "name": "Hardhat Local (31337)"},
		{"chain_id": 81337, "name": "Custom Hardhat (81337)"},
	})

	v.SetDefault("contract.addresses", map[string]string{
		"1":     "",
		"5":     "",
		"31337": "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		"81337": "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0",
	})
	v.SetDefault("contract.abi_path", "")
	v.SetDefault("contract.confirmation_timeout", DefaultConfirmationTimeout)
	v.SetDefault("contract.receipt_poll_interval", DefaultReceiptPollInterval)

	v.SetDefault("ipfs.gateways", DefaultGateways)
	v.SetDefault("ipfs.max_upload_size", DefaultMaxUploadSize)
	v.SetDefault("ipfs.pinner", DefaultPinner)
	v.SetDefault("ipfs.pinata.endpoint", DefaultPinataEndpoint)
	v.SetDefault("ipfs.pinata.jwt", "")
	v.SetDefault("ipfs.kubo.api_url", DefaultKuboAPIURL)
	v.SetDefault("ipfs.filebase.endpoint_url", "https://s3.filebase.com")
	v.SetDefault("ipfs.filebase.region", "us-east-1")
	v.SetDefault("ipfs.filebase.bucket", "")
	v.SetDefault("ipfs.filebase.access_key_id", "")
	v.SetDefault("ipfs.filebase.secret_access_key", "")

	v.SetDefault("devnet.image", DefaultDevnetImage)
	v.SetDefault("devnet.container_name", DefaultDevnetContainer)
	v.SetDefault("devnet.chain_id", 31337)
	v.SetDefault("devnet.host_port", 8545)
	v.SetDefault("devnet.pull_policy", DefaultPullPolicy)
}

// applyDefaults fills values that may have been blanked out by a config file.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Logs.Capacity <= 0 {
		c.Logs.Capacity = DefaultLogCapacity
	}

	if c.Logs.Storage.Slot == "" {
		c.Logs.Storage.Slot = DefaultLogSlot
	}

	if c.Contract.ConfirmationTimeout <= 0 {
		c.Contract.ConfirmationTimeout = DefaultConfirmationTimeout
	}

	if c.Contract.ReceiptPollInterval <= 0 {
		c.Contract.ReceiptPollInterval = DefaultReceiptPollInterval
	}

	if len(c.IPFS.Gateways) == 0 {
		c.IPFS.Gateways = append([]string(nil), DefaultGateways...)
	}

	if c.IPFS.MaxUploadSize == "" {
		c.IPFS.MaxUploadSize = DefaultMaxUploadSize
	}

	if c.API != nil {
		c.API.applyDefaults()
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Wallet.DefaultNetwork.ChainID == 0 {
		return fmt.Errorf("wallet.default_network.chain_id is required")
	}

	seen := make(map[uint64]struct{}, len(c.Wallet.SupportedNetworks))

	for i, network := range c.Wallet.SupportedNetworks {
		if network.ChainID == 0 {
			return fmt.Errorf("wallet.supported_networks[%d]: chain_id is required", i)
		}

		if _, exists := seen[network.ChainID]; exists {
			return fmt.Errorf("wallet.supported_networks[%d]: duplicate chain_id %d", i, network.ChainID)
		}

		seen[network.ChainID] = struct{}{}
	}

	if _, err := c.ContractAddresses(); err != nil {
		return err
	}

	if len(c.IPFS.Gateways) < 2 {
		return fmt.Errorf("ipfs.gateways must list at least two gateways")
	}

	if _, err := c.MaxUploadBytes(); err != nil {
		return err
	}

	switch c.IPFS.Pinner {
	case PinnerPinata, PinnerKubo:
	case PinnerFilebase:
		if c.IPFS.Filebase.Bucket == "" {
			return fmt.Errorf("ipfs.filebase.bucket is required for the filebase pinner")
		}
	default:
		return fmt.Errorf("unknown ipfs.pinner %q", c.IPFS.Pinner)
	}

	if c.Logs.Storage.Enabled {
		switch c.Logs.Storage.Driver {
		case LogDriverFile:
			if c.Logs.Storage.File.Path == "" {
				return fmt.Errorf("logs.storage.file.path is required")
			}
		case LogDriverSQLite:
			if c.Logs.Storage.SQLite.Path == "" {
				return fmt.Errorf("logs.storage.sqlite.path is required")
			}
		case LogDriverPostgres:
		default:
			return fmt.Errorf("unsupported logs.storage.driver %q", c.Logs.Storage.Driver)
		}
	}

	return nil
}

// ContractAddresses parses the chain id keyed address table.
func (c *Config) ContractAddresses() (map[uint64]string, error) {
	out := make(map[uint64]string, len(c.Contract.Addresses))

	for key, addr := range c.Contract.Addresses {
		chainID, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("contract.addresses: invalid chain id %q: %w", key, err)
		}

		out[chainID] = strings.TrimSpace(addr)
	}

	return out, nil
}

// MaxUploadBytes returns the parsed maximum upload size.
func (c *Config) MaxUploadBytes() (int64, error) {
	n, err := units.FromHumanSize(c.IPFS.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("ipfs.max_upload_size: %w", err)
	}

	if n <= 0 {
		return 0, errors.New("ipfs.max_upload_size must be positive")
	}

	return n, nil
}

const redacted = "[REDACTED]"

// Redacted returns a copy of the configuration with secrets masked.
func (c *Config) Redacted() *Config {
	out := *c

	if out.Wallet.PrivateKey != "" {
		out.Wallet.PrivateKey = redacted
	}

	if out.IPFS.Pinata.JWT != "" {
		out.IPFS.Pinata.JWT = redacted
	}

	if out.IPFS.Filebase.SecretAccessKey != "" {
		out.IPFS.Filebase.SecretAccessKey = redacted
	}

	if out.Logs.Storage.Postgres.Password != "" {
		out.Logs.Storage.Postgres.Password = redacted
	}

	if c.API != nil {
		api := *c.API
		api.Auth.Basic.Users = make([]BasicAuthUser, len(c.API.Auth.Basic.Users))

		for i, u := range c.API.Auth.Basic.Users {
			u.PasswordHash = redacted
			api.Auth.Basic.Users[i] = u
		}

		out.API = &api
	}

	return &out
}
