package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	configPath := writeConfig(t, `
global:
  log_level: info
wallet:
  rpc_url: http://node:8545
logs:
  storage:
    driver: file
    file:
      path: /tmp/original-logs.json
contract:
  confirmation_timeout: 30s
ipfs:
  pinner: kubo
`)

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Global.LogLevel)
				assert.Equal(t, "http://node:8545", cfg.Wallet.RPCURL)
				assert.Equal(t, 30*time.Second, cfg.Contract.ConfirmationTimeout)
				assert.Equal(t, PinnerKubo, cfg.IPFS.Pinner)
			},
		},
		{
			name: "string override - log_level",
			envVars: map[string]string{
				"TESTLEDGER_GLOBAL_LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Global.LogLevel)
			},
		},
		{
			name: "secret override - private key",
			envVars: map[string]string{
				"TESTLEDGER_WALLET_PRIVATE_KEY": "0xabc",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0xabc", cfg.Wallet.PrivateKey)
			},
		},
		{
			name: "nested override - pinata jwt",
			envVars: map[string]string{
				"TESTLEDGER_IPFS_PINATA_JWT": "jwt-token",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "jwt-token", cfg.IPFS.Pinata.JWT)
			},
		},
		{
			name: "boolean override - logs storage disabled",
			envVars: map[string]string{
				"TESTLEDGER_LOGS_STORAGE_ENABLED": "false",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Logs.Storage.Enabled)
			},
		},
		{
			name: "duration override - confirmation timeout",
			envVars: map[string]string{
				"TESTLEDGER_CONTRACT_CONFIRMATION_TIMEOUT": "2m",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 2*time.Minute, cfg.Contract.ConfirmationTimeout)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load(configPath)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultLogCapacity, cfg.Logs.Capacity)
	assert.Equal(t, DefaultLogSlot, cfg.Logs.Storage.Slot)
	assert.Equal(t, DefaultRPCURL, cfg.Wallet.RPCURL)
	assert.Equal(t, uint64(31337), cfg.Wallet.DefaultNetwork.ChainID)
	assert.Equal(t, "ETH", cfg.Wallet.DefaultNetwork.Currency.Symbol)
	assert.Equal(t, 18, cfg.Wallet.DefaultNetwork.Currency.Decimals)
	require.Len(t, cfg.Wallet.SupportedNetworks, 2)
	assert.Equal(t, uint64(81337), cfg.Wallet.SupportedNetworks[1].ChainID)
	assert.Equal(t, DefaultConfirmationTimeout, cfg.Contract.ConfirmationTimeout)
	assert.Equal(t, DefaultGateways, cfg.IPFS.Gateways)
	assert.Nil(t, cfg.API)

	addrs, err := cfg.ContractAddresses()
	require.NoError(t, err)
	assert.Equal(t, "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512", addrs[31337])
	assert.Equal(t, "", addrs[1])

	require.NoError(t, cfg.Validate())
}

func TestLoad_MergesFiles(t *testing.T) {
	base := writeConfig(t, `
wallet:
  rpc_url: http://base:8545
ipfs:
  pinner: kubo
`)
	override := writeConfig(t, `
wallet:
  rpc_url: http://override:8545
`)

	cfg, err := Load(base, override)
	require.NoError(t, err)

	assert.Equal(t, "http://override:8545", cfg.Wallet.RPCURL)
	assert.Equal(t, PinnerKubo, cfg.IPFS.Pinner)
}

func TestLoad_APISectionDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  auth:
    basic:
      enabled: true
      users:
        - username: admin
          password_hash: "$2a$10$abcdefghijklmnopqrstuv"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.API)

	assert.Equal(t, DefaultAPIListen, cfg.API.Server.Listen)
	assert.Equal(t, DefaultUploadTTL, cfg.API.Uploads.TTL)
	require.NoError(t, cfg.ValidateAPI())
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: yaml: content:")

	_, err := Load(path)
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		errSubstr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:      "missing default network",
			mutate:    func(cfg *Config) { cfg.Wallet.DefaultNetwork.ChainID = 0 },
			errSubstr: "default_network.chain_id",
		},
		{
			name: "duplicate supported network",
			mutate: func(cfg *Config) {
				cfg.Wallet.SupportedNetworks = []NetworkConfig{{ChainID: 1}, {ChainID: 1}}
			},
			errSubstr: "duplicate chain_id",
		},
		{
			name:      "bad chain id key",
			mutate:    func(cfg *Config) { cfg.Contract.Addresses = map[string]string{"mainnet": "0x1"} },
			errSubstr: "invalid chain id",
		},
		{
			name:      "single gateway",
			mutate:    func(cfg *Config) { cfg.IPFS.Gateways = []string{"https://ipfs.io/ipfs/"} },
			errSubstr: "at least two gateways",
		},
		{
			name:      "bad upload size",
			mutate:    func(cfg *Config) { cfg.IPFS.MaxUploadSize = "lots" },
			errSubstr: "max_upload_size",
		},
		{
			name:      "unknown pinner",
			mutate:    func(cfg *Config) { cfg.IPFS.Pinner = "dropbox" },
			errSubstr: "unknown ipfs.pinner",
		},
		{
			name:      "filebase without bucket",
			mutate:    func(cfg *Config) { cfg.IPFS.Pinner = PinnerFilebase },
			errSubstr: "filebase.bucket",
		},
		{
			name:      "unsupported log driver",
			mutate:    func(cfg *Config) { cfg.Logs.Storage.Driver = "redis" },
			errSubstr: "logs.storage.driver",
		},
		{
			name: "unsupported log driver ignored when storage disabled",
			mutate: func(cfg *Config) {
				cfg.Logs.Storage.Enabled = false
				cfg.Logs.Storage.Driver = "redis"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_MaxUploadBytes(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	n, err := cfg.MaxUploadBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_000), n)
}

func TestConfig_Redacted(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Wallet.PrivateKey = "0xdeadbeef"
	cfg.IPFS.Pinata.JWT = "secret-jwt"
	cfg.API = DefaultAPIConfig()
	cfg.API.Auth.Basic.Users = []BasicAuthUser{{Username: "admin", PasswordHash: "hash"}}

	out := cfg.Redacted()

	assert.Equal(t, "[REDACTED]", out.Wallet.PrivateKey)
	assert.Equal(t, "[REDACTED]", out.IPFS.Pinata.JWT)
	assert.Equal(t, "[REDACTED]", out.API.Auth.Basic.Users[0].PasswordHash)

	// The original is untouched.
	assert.Equal(t, "0xdeadbeef", cfg.Wallet.PrivateKey)
	assert.Equal(t, "hash", cfg.API.Auth.Basic.Users[0].PasswordHash)
}
