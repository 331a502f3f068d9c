package config

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"arenaledger/crypto"
)

func testBech32(t *testing.T, fill byte) string {
	t.Helper()
	addr, err := crypto.NewAddress(crypto.ArenaPrefix, bytes.Repeat([]byte{fill}, 20))
	require.NoError(t, err)
	return addr.String()
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "./data", cfg.DataDir)
	require.Equal(t, 30, cfg.QueryPageLimit)

	_, err = os.Stat(path)
	require.NoError(t, err, "load should materialise a default file")

	// The generated file loads back unchanged.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadParsesEscrowSection(t *testing.T) {
	owner := testBech32(t, 0xDD)
	party := testBech32(t, 0x0A)
	tokenContract := testBech32(t, 0x11)
	raw := fmt.Sprintf(`DataDir = "/var/lib/arena"
QueryPageLimit = 10

[Escrow]
Owner = %q

[[Escrow.Dues]]
Account = %q

[[Escrow.Dues.Native]]
Denom = "uarena"
Amount = "100"

[[Escrow.Dues.Tokens]]
Contract = %q
Amount = "40"
`, owner, party, tokenContract)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/arena", cfg.DataDir)
	require.Equal(t, 10, cfg.QueryPageLimit)

	ownerAddr, err := cfg.OwnerAddress()
	require.NoError(t, err)
	require.NotNil(t, ownerAddr)
	require.Equal(t, crypto.MustDecodeAddress(owner).Raw(), *ownerAddr)

	dues, err := cfg.GenesisDues()
	require.NoError(t, err)
	require.Len(t, dues, 1)
	require.Equal(t, crypto.MustDecodeAddress(party).Raw(), dues[0].Account)
	bundle := dues[0].Bundle
	require.Len(t, bundle.Native, 1)
	require.Equal(t, "uarena", bundle.Native[0].Denom)
	require.Zero(t, bundle.Native[0].Amount.Cmp(big.NewInt(100)))
	require.Len(t, bundle.Tokens, 1)
	require.Zero(t, bundle.Tokens[0].Amount.Cmp(big.NewInt(40)))
}

func TestOwnerAddressOptional(t *testing.T) {
	cfg := &Config{}
	owner, err := cfg.OwnerAddress()
	require.NoError(t, err)
	require.Nil(t, owner, "blank owner means an ownerless escrow")

	cfg.Escrow.Owner = "bogus"
	_, err = cfg.OwnerAddress()
	require.Error(t, err)
}

func TestGenesisDuesValidation(t *testing.T) {
	cfg := &Config{Escrow: EscrowConfig{Dues: []DueConfig{{
		Account: "not-an-address",
		Native:  []CoinConfig{{Denom: "uarena", Amount: "1"}},
	}}}}
	_, err := cfg.GenesisDues()
	require.Error(t, err)

	cfg = &Config{Escrow: EscrowConfig{Dues: []DueConfig{{
		Account: testBech32(t, 0x0A),
		Native:  []CoinConfig{{Denom: "uarena", Amount: "-5"}},
	}}}}
	_, err = cfg.GenesisDues()
	require.Error(t, err, "negative amounts must be rejected")

	cfg = &Config{Escrow: EscrowConfig{Dues: []DueConfig{{
		Account: testBech32(t, 0x0A),
		Native:  []CoinConfig{{Denom: "uarena", Amount: "1e6"}},
	}}}}
	_, err = cfg.GenesisDues()
	require.Error(t, err, "amounts are plain base-10 integers")
}
