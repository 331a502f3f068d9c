package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"arenaledger/crypto"
	"arenaledger/native/balance"
)

// Config is the on-disk node configuration.
type Config struct {
	DataDir        string       `toml:"DataDir"`
	QueryPageLimit int          `toml:"QueryPageLimit"`
	Escrow         EscrowConfig `toml:"Escrow"`
}

// EscrowConfig declares the escrow instance created at initialisation: the
// owning module (bech32, optional) and the initial due map.
type EscrowConfig struct {
	Owner string      `toml:"Owner"`
	Dues  []DueConfig `toml:"Dues"`
}

// DueConfig is one party's initial obligation.
type DueConfig struct {
	Account string        `toml:"Account"`
	Native  []CoinConfig  `toml:"Native"`
	Tokens  []TokenConfig `toml:"Tokens"`
	NFTs    []NFTConfig   `toml:"NFTs"`
}

type CoinConfig struct {
	Denom  string `toml:"Denom"`
	Amount string `toml:"Amount"`
}

type TokenConfig struct {
	Contract string `toml:"Contract"`
	Amount   string `toml:"Amount"`
}

type NFTConfig struct {
	Contract string   `toml:"Contract"`
	TokenIDs []string `toml:"TokenIDs"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./data"
	}
	if cfg.QueryPageLimit <= 0 {
		cfg.QueryPageLimit = 30
	}
}

// OwnerAddress decodes the configured owner, returning nil when the escrow is
// ownerless.
func (c *Config) OwnerAddress() (*[20]byte, error) {
	trimmed := strings.TrimSpace(c.Escrow.Owner)
	if trimmed == "" {
		return nil, nil
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return nil, fmt.Errorf("config: invalid escrow owner: %w", err)
	}
	raw := addr.Raw()
	return &raw, nil
}

// GenesisDues converts the configured due entries into validated bundles.
func (c *Config) GenesisDues() ([]balance.MemberBundle, error) {
	dues := make([]balance.MemberBundle, 0, len(c.Escrow.Dues))
	for _, entry := range c.Escrow.Dues {
		account, err := crypto.DecodeAddress(strings.TrimSpace(entry.Account))
		if err != nil {
			return nil, fmt.Errorf("config: invalid due account %q: %w", entry.Account, err)
		}
		bundle := balance.New()
		for _, coin := range entry.Native {
			amount, err := parseAmount(coin.Amount)
			if err != nil {
				return nil, fmt.Errorf("config: due for %s, denom %s: %w", entry.Account, coin.Denom, err)
			}
			bundle, err = bundle.Add(balance.Bundle{Native: []balance.Coin{{Denom: coin.Denom, Amount: amount}}})
			if err != nil {
				return nil, err
			}
		}
		for _, token := range entry.Tokens {
			contract, err := crypto.DecodeAddress(strings.TrimSpace(token.Contract))
			if err != nil {
				return nil, fmt.Errorf("config: invalid token contract %q: %w", token.Contract, err)
			}
			amount, err := parseAmount(token.Amount)
			if err != nil {
				return nil, fmt.Errorf("config: due for %s, token %s: %w", entry.Account, token.Contract, err)
			}
			bundle, err = bundle.Add(balance.Bundle{Tokens: []balance.TokenAmount{{Contract: contract.Raw(), Amount: amount}}})
			if err != nil {
				return nil, err
			}
		}
		for _, nft := range entry.NFTs {
			contract, err := crypto.DecodeAddress(strings.TrimSpace(nft.Contract))
			if err != nil {
				return nil, fmt.Errorf("config: invalid nft contract %q: %w", nft.Contract, err)
			}
			bundle, err = bundle.Add(balance.Bundle{NFTs: []balance.NFTHolding{{Contract: contract.Raw(), TokenIDs: nft.TokenIDs}}})
			if err != nil {
				return nil, err
			}
		}
		dues = append(dues, balance.MemberBundle{Account: account.Raw(), Bundle: bundle})
	}
	return dues, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must not be empty")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
