package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"swaprelay/crypto"
)

// PoolConfig fixes the exchangeable pair and its decimal metadata at
// deployment time.
type PoolConfig struct {
	Address   string `toml:"Address"`
	AssetA    string `toml:"AssetA"`
	DecimalsA uint8  `toml:"DecimalsA"`
	AssetB    string `toml:"AssetB"`
	DecimalsB uint8  `toml:"DecimalsB"`
}

// CustodyConfig describes the quorum vault.
type CustodyConfig struct {
	Vault  string   `toml:"Vault"`
	Owners []string `toml:"Owners"`
	Quorum int      `toml:"Quorum"`
}

// Config captures the node-level deployment parameters.
type Config struct {
	DataDir      string        `toml:"DataDir"`
	ChainID      int64         `toml:"ChainID"`
	AdminAddress string        `toml:"AdminAddress"`
	RelayAddress string        `toml:"RelayAddress"`
	FeeRateBps   uint32        `toml:"FeeRateBps"`
	Pool         PoolConfig    `toml:"Pool"`
	Custody      CustodyConfig `toml:"Custody"`
}

// Load reads and validates the configuration at the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs structural checks that do not require state access.
func (c *Config) Validate() error {
	if c.ChainID <= 0 {
		return fmt.Errorf("config: ChainID must be positive")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if c.FeeRateBps > 10_000 {
		return fmt.Errorf("config: FeeRateBps must be within [0, 10000]")
	}
	for label, addr := range map[string]string{
		"AdminAddress": c.AdminAddress,
		"RelayAddress": c.RelayAddress,
		"Pool.Address": c.Pool.Address,
	} {
		if _, err := crypto.DecodeAddress(strings.TrimSpace(addr)); err != nil {
			return fmt.Errorf("config: %s: %w", label, err)
		}
	}
	assetA := strings.TrimSpace(c.Pool.AssetA)
	assetB := strings.TrimSpace(c.Pool.AssetB)
	if assetA == "" || assetB == "" || assetA == assetB {
		return fmt.Errorf("config: pool assets must be two distinct symbols")
	}
	if len(c.Custody.Owners) > 0 {
		if _, err := crypto.DecodeAddress(strings.TrimSpace(c.Custody.Vault)); err != nil {
			return fmt.Errorf("config: Custody.Vault: %w", err)
		}
		if c.Custody.Quorum < 1 || c.Custody.Quorum > len(c.Custody.Owners) {
			return fmt.Errorf("config: Custody.Quorum must be within [1, %d]", len(c.Custody.Owners))
		}
		for _, owner := range c.Custody.Owners {
			if _, err := crypto.DecodeAddress(strings.TrimSpace(owner)); err != nil {
				return fmt.Errorf("config: custody owner %q: %w", owner, err)
			}
		}
	}
	return nil
}

// DecodedAddress resolves one of the configured bech32 addresses into its raw
// 20-byte form. Validate must have succeeded first.
func DecodedAddress(addr string) [20]byte {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(addr))
	if err != nil {
		return out
	}
	copy(out[:], decoded.Bytes())
	return out
}
