package balance

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

var (
	// ErrInvalidAmount signals a nil, negative or otherwise malformed amount.
	ErrInvalidAmount = errors.New("balance: invalid amount")
	// ErrInsufficientBalance signals a subtraction that would take any
	// component below zero or remove a holding that is not present.
	ErrInsufficientBalance = errors.New("balance: insufficient balance")
)

// Coin is an amount of a single native denomination.
type Coin struct {
	Denom  string
	Amount *big.Int
}

// TokenAmount is an amount of a fungible token identified by its issuing
// contract.
type TokenAmount struct {
	Contract [20]byte
	Amount   *big.Int
}

// NFTHolding is a set of non-fungible token ids issued by a single contract.
type NFTHolding struct {
	Contract [20]byte
	TokenIDs []string
}

// Bundle is a multi-asset value: native coins keyed by denomination, fungible
// tokens keyed by issuing contract and non-fungible holdings keyed by issuing
// contract. Bundles are kept canonical at all times: components sorted by
// key, no zero amounts, no empty holdings, no duplicates. All operations
// return new values and never mutate their receiver.
type Bundle struct {
	Native []Coin
	Tokens []TokenAmount
	NFTs   []NFTHolding
}

// New returns an empty bundle.
func New() Bundle {
	return Bundle{}
}

// NewNative builds a bundle holding the provided native coins.
func NewNative(coins ...Coin) (Bundle, error) {
	return New().Add(Bundle{Native: coins})
}

// NewToken builds a bundle holding a single fungible token amount.
func NewToken(contract [20]byte, amount *big.Int) (Bundle, error) {
	return New().Add(Bundle{Tokens: []TokenAmount{{Contract: contract, Amount: amount}}})
}

// NewNFT builds a bundle holding a single non-fungible token.
func NewNFT(contract [20]byte, tokenID string) (Bundle, error) {
	return New().Add(Bundle{NFTs: []NFTHolding{{Contract: contract, TokenIDs: []string{tokenID}}}})
}

// Clone returns a deep copy of the bundle.
func (b Bundle) Clone() Bundle {
	out := Bundle{}
	if len(b.Native) > 0 {
		out.Native = make([]Coin, len(b.Native))
		for i, c := range b.Native {
			out.Native[i] = Coin{Denom: c.Denom, Amount: cloneAmount(c.Amount)}
		}
	}
	if len(b.Tokens) > 0 {
		out.Tokens = make([]TokenAmount, len(b.Tokens))
		for i, t := range b.Tokens {
			out.Tokens[i] = TokenAmount{Contract: t.Contract, Amount: cloneAmount(t.Amount)}
		}
	}
	if len(b.NFTs) > 0 {
		out.NFTs = make([]NFTHolding, len(b.NFTs))
		for i, n := range b.NFTs {
			out.NFTs[i] = NFTHolding{Contract: n.Contract, TokenIDs: append([]string(nil), n.TokenIDs...)}
		}
	}
	return out
}

// IsEmpty reports whether the bundle holds no value of any asset class.
func (b Bundle) IsEmpty() bool {
	return len(b.Native) == 0 && len(b.Tokens) == 0 && len(b.NFTs) == 0
}

// Add returns the checked sum of the two bundles. Components of the operand
// must carry non-negative amounts; zero amounts and empty holdings are
// dropped from the result.
func (b Bundle) Add(other Bundle) (Bundle, error) {
	native := make(map[string]*big.Int)
	for _, c := range b.Native {
		if err := accumulate(native, c.Denom, c.Amount); err != nil {
			return Bundle{}, err
		}
	}
	for _, c := range other.Native {
		if err := accumulate(native, c.Denom, c.Amount); err != nil {
			return Bundle{}, err
		}
	}
	tokens := make(map[[20]byte]*big.Int)
	for _, t := range b.Tokens {
		if err := accumulateToken(tokens, t.Contract, t.Amount); err != nil {
			return Bundle{}, err
		}
	}
	for _, t := range other.Tokens {
		if err := accumulateToken(tokens, t.Contract, t.Amount); err != nil {
			return Bundle{}, err
		}
	}
	nfts := make(map[[20]byte]map[string]struct{})
	collectNFTs(nfts, b.NFTs)
	collectNFTs(nfts, other.NFTs)
	return fromMaps(native, tokens, nfts), nil
}

// Sub returns the checked difference b − other. The subtraction fails with
// ErrInsufficientBalance when any component would go negative or when a
// non-fungible token id is not held.
func (b Bundle) Sub(other Bundle) (Bundle, error) {
	native := make(map[string]*big.Int)
	for _, c := range b.Native {
		if err := accumulate(native, c.Denom, c.Amount); err != nil {
			return Bundle{}, err
		}
	}
	for _, c := range other.Native {
		if c.Amount == nil || c.Amount.Sign() < 0 {
			return Bundle{}, ErrInvalidAmount
		}
		held, ok := native[c.Denom]
		if !ok {
			held = big.NewInt(0)
		}
		next := new(big.Int).Sub(held, c.Amount)
		if next.Sign() < 0 {
			return Bundle{}, fmt.Errorf("%w: %s", ErrInsufficientBalance, c.Denom)
		}
		native[c.Denom] = next
	}
	tokens := make(map[[20]byte]*big.Int)
	for _, t := range b.Tokens {
		if err := accumulateToken(tokens, t.Contract, t.Amount); err != nil {
			return Bundle{}, err
		}
	}
	for _, t := range other.Tokens {
		if t.Amount == nil || t.Amount.Sign() < 0 {
			return Bundle{}, ErrInvalidAmount
		}
		held, ok := tokens[t.Contract]
		if !ok {
			held = big.NewInt(0)
		}
		next := new(big.Int).Sub(held, t.Amount)
		if next.Sign() < 0 {
			return Bundle{}, fmt.Errorf("%w: token %s", ErrInsufficientBalance, hex.EncodeToString(t.Contract[:]))
		}
		tokens[t.Contract] = next
	}
	nfts := make(map[[20]byte]map[string]struct{})
	collectNFTs(nfts, b.NFTs)
	for _, h := range other.NFTs {
		held := nfts[h.Contract]
		for _, id := range h.TokenIDs {
			if _, ok := held[id]; !ok {
				return Bundle{}, fmt.Errorf("%w: nft %s/%s", ErrInsufficientBalance, hex.EncodeToString(h.Contract[:]), id)
			}
			delete(held, id)
		}
	}
	return fromMaps(native, tokens, nfts), nil
}

// Equal reports whether the two bundles hold exactly the same value.
func (b Bundle) Equal(other Bundle) bool {
	diff, err := b.Sub(other)
	if err != nil {
		return false
	}
	return diff.IsEmpty() && len(b.Native) == len(other.Native) &&
		len(b.Tokens) == len(other.Tokens) && nftCount(b.NFTs) == nftCount(other.NFTs)
}

// String renders the bundle in a compact deterministic form, primarily for
// event attributes.
func (b Bundle) String() string {
	if b.IsEmpty() {
		return "empty"
	}
	parts := make([]string, 0, len(b.Native)+len(b.Tokens)+len(b.NFTs))
	for _, c := range b.Native {
		parts = append(parts, c.Amount.String()+c.Denom)
	}
	for _, t := range b.Tokens {
		parts = append(parts, fmt.Sprintf("token:%s=%s", hex.EncodeToString(t.Contract[:]), t.Amount.String()))
	}
	for _, h := range b.NFTs {
		parts = append(parts, fmt.Sprintf("nft:%s=[%s]", hex.EncodeToString(h.Contract[:]), strings.Join(h.TokenIDs, ",")))
	}
	return strings.Join(parts, ";")
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func accumulate(m map[string]*big.Int, denom string, amount *big.Int) error {
	if strings.TrimSpace(denom) == "" {
		return fmt.Errorf("%w: empty denomination", ErrInvalidAmount)
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	held, ok := m[denom]
	if !ok {
		held = big.NewInt(0)
	}
	m[denom] = new(big.Int).Add(held, amount)
	return nil
}

func accumulateToken(m map[[20]byte]*big.Int, contract [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	held, ok := m[contract]
	if !ok {
		held = big.NewInt(0)
	}
	m[contract] = new(big.Int).Add(held, amount)
	return nil
}

func collectNFTs(m map[[20]byte]map[string]struct{}, holdings []NFTHolding) {
	for _, h := range holdings {
		ids, ok := m[h.Contract]
		if !ok {
			ids = make(map[string]struct{})
			m[h.Contract] = ids
		}
		for _, id := range h.TokenIDs {
			ids[id] = struct{}{}
		}
	}
}

func nftCount(holdings []NFTHolding) int {
	total := 0
	for _, h := range holdings {
		total += len(h.TokenIDs)
	}
	return total
}

func fromMaps(native map[string]*big.Int, tokens map[[20]byte]*big.Int, nfts map[[20]byte]map[string]struct{}) Bundle {
	out := Bundle{}
	denoms := make([]string, 0, len(native))
	for denom, amount := range native {
		if amount.Sign() > 0 {
			denoms = append(denoms, denom)
		}
	}
	sort.Strings(denoms)
	for _, denom := range denoms {
		out.Native = append(out.Native, Coin{Denom: denom, Amount: native[denom]})
	}
	contracts := make([][20]byte, 0, len(tokens))
	for contract, amount := range tokens {
		if amount.Sign() > 0 {
			contracts = append(contracts, contract)
		}
	}
	sortContracts(contracts)
	for _, contract := range contracts {
		out.Tokens = append(out.Tokens, TokenAmount{Contract: contract, Amount: tokens[contract]})
	}
	nftContracts := make([][20]byte, 0, len(nfts))
	for contract, ids := range nfts {
		if len(ids) > 0 {
			nftContracts = append(nftContracts, contract)
		}
	}
	sortContracts(nftContracts)
	for _, contract := range nftContracts {
		ids := make([]string, 0, len(nfts[contract]))
		for id := range nfts[contract] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out.NFTs = append(out.NFTs, NFTHolding{Contract: contract, TokenIDs: ids})
	}
	return out
}

func sortContracts(contracts [][20]byte) {
	sort.Slice(contracts, func(i, j int) bool {
		return bytes.Compare(contracts[i][:], contracts[j][:]) < 0
	})
}
