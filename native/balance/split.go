package balance

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrNoShares signals a split request with an empty share list.
	ErrNoShares = errors.New("balance: no shares to split between")
	// ErrInvalidWeight signals a nil or non-positive share weight.
	ErrInvalidWeight = errors.New("balance: share weight must be positive")
)

// MemberShare is one ordered entry of a weighted distribution. Weights are
// relative and carry no required total.
type MemberShare struct {
	Account [20]byte
	Weight  *big.Int
}

// MemberBundle pairs an account with a bundle, used both for split results
// and for initial due configuration.
type MemberBundle struct {
	Account [20]byte
	Bundle  Bundle
}

// ValidateShares checks that the share list is non-empty and every weight is
// strictly positive.
func ValidateShares(shares []MemberShare) error {
	if len(shares) == 0 {
		return ErrNoShares
	}
	for _, share := range shares {
		if share.Weight == nil || share.Weight.Sign() <= 0 {
			return ErrInvalidWeight
		}
	}
	return nil
}

// Split divides the bundle between the weighted shares. Every divisible asset
// component is split independently: each share receives the integer floor of
// amount·weight/Σweights and the residual goes to the remainder account in
// full. The remainder account need not be a member of the share list.
// Non-fungible holdings are indivisible and are assigned to the remainder
// account in full. The returned allocations conserve the input exactly;
// accounts whose allocation is empty are omitted.
func (b Bundle) Split(shares []MemberShare, remainder [20]byte) ([]MemberBundle, error) {
	if err := ValidateShares(shares); err != nil {
		return nil, err
	}
	totalWeight := big.NewInt(0)
	for _, share := range shares {
		totalWeight.Add(totalWeight, share.Weight)
	}

	// Allocation order: share list order first, remainder appended last when
	// it is not already a member.
	order := make([][20]byte, 0, len(shares)+1)
	alloc := make(map[[20]byte]Bundle)
	appendAccount := func(account [20]byte) {
		if _, ok := alloc[account]; !ok {
			alloc[account] = New()
			order = append(order, account)
		}
	}
	for _, share := range shares {
		appendAccount(share.Account)
	}
	appendAccount(remainder)

	credit := func(account [20]byte, part Bundle) error {
		next, err := alloc[account].Add(part)
		if err != nil {
			return err
		}
		alloc[account] = next
		return nil
	}

	for _, coin := range b.Native {
		if coin.Amount == nil || coin.Amount.Sign() < 0 {
			return nil, ErrInvalidAmount
		}
		assigned := big.NewInt(0)
		for _, share := range shares {
			cut := new(big.Int).Mul(coin.Amount, share.Weight)
			cut.Div(cut, totalWeight)
			if cut.Sign() == 0 {
				continue
			}
			assigned.Add(assigned, cut)
			if err := credit(share.Account, Bundle{Native: []Coin{{Denom: coin.Denom, Amount: cut}}}); err != nil {
				return nil, err
			}
		}
		residual := new(big.Int).Sub(coin.Amount, assigned)
		if residual.Sign() > 0 {
			if err := credit(remainder, Bundle{Native: []Coin{{Denom: coin.Denom, Amount: residual}}}); err != nil {
				return nil, err
			}
		}
	}
	for _, token := range b.Tokens {
		if token.Amount == nil || token.Amount.Sign() < 0 {
			return nil, ErrInvalidAmount
		}
		assigned := big.NewInt(0)
		for _, share := range shares {
			cut := new(big.Int).Mul(token.Amount, share.Weight)
			cut.Div(cut, totalWeight)
			if cut.Sign() == 0 {
				continue
			}
			assigned.Add(assigned, cut)
			if err := credit(share.Account, Bundle{Tokens: []TokenAmount{{Contract: token.Contract, Amount: cut}}}); err != nil {
				return nil, err
			}
		}
		residual := new(big.Int).Sub(token.Amount, assigned)
		if residual.Sign() > 0 {
			if err := credit(remainder, Bundle{Tokens: []TokenAmount{{Contract: token.Contract, Amount: residual}}}); err != nil {
				return nil, err
			}
		}
	}
	// Non-fungible tokens cannot be divided by weight.
	if len(b.NFTs) > 0 {
		if err := credit(remainder, Bundle{NFTs: b.Clone().NFTs}); err != nil {
			return nil, err
		}
	}

	out := make([]MemberBundle, 0, len(order))
	for _, account := range order {
		if alloc[account].IsEmpty() {
			continue
		}
		out = append(out, MemberBundle{Account: account, Bundle: alloc[account]})
	}
	return out, nil
}

// SumBundles adds the bundles of the provided allocations, primarily used to
// assert conservation in tests and audits.
func SumBundles(members []MemberBundle) (Bundle, error) {
	total := New()
	for _, member := range members {
		next, err := total.Add(member.Bundle)
		if err != nil {
			return Bundle{}, fmt.Errorf("sum allocations: %w", err)
		}
		total = next
	}
	return total, nil
}
