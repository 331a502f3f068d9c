package balance

import "math/big"

// TransferKind tags the asset class moved by a single outbound instruction.
type TransferKind uint8

const (
	TransferNative TransferKind = iota
	TransferToken
	TransferNFT
)

// TransferInstruction is one declarative outbound transfer. Instructions are
// data only: the ledger queues them on an operation result and the host
// executes them after the state change is durably committed. Payload carries
// an optional caller-supplied hint forwarded verbatim to token and NFT
// transfer endpoints.
type TransferInstruction struct {
	Kind      TransferKind
	Recipient [20]byte
	Denom     string
	Amount    *big.Int
	Contract  [20]byte
	TokenID   string
	Payload   []byte
}

// Transfers converts the bundle into the list of outbound instructions that
// move its full value to the recipient. tokenHint and nftHint are attached to
// fungible and non-fungible instructions respectively; a nil hint requests
// the plain transfer form.
func (b Bundle) Transfers(recipient [20]byte, tokenHint, nftHint []byte) []TransferInstruction {
	instructions := make([]TransferInstruction, 0, len(b.Native)+len(b.Tokens)+nftCount(b.NFTs))
	for _, coin := range b.Native {
		instructions = append(instructions, TransferInstruction{
			Kind:      TransferNative,
			Recipient: recipient,
			Denom:     coin.Denom,
			Amount:    cloneAmount(coin.Amount),
		})
	}
	for _, token := range b.Tokens {
		instructions = append(instructions, TransferInstruction{
			Kind:      TransferToken,
			Recipient: recipient,
			Contract:  token.Contract,
			Amount:    cloneAmount(token.Amount),
			Payload:   append([]byte(nil), tokenHint...),
		})
	}
	for _, holding := range b.NFTs {
		for _, id := range holding.TokenIDs {
			instructions = append(instructions, TransferInstruction{
				Kind:      TransferNFT,
				Recipient: recipient,
				Contract:  holding.Contract,
				TokenID:   id,
				Payload:   append([]byte(nil), nftHint...),
			})
		}
	}
	return instructions
}

// SumTransfers folds a list of instructions back into a bundle, ignoring the
// recipient. Useful for asserting that withdrawals pay out exactly what was
// held.
func SumTransfers(instructions []TransferInstruction) (Bundle, error) {
	total := New()
	for _, ins := range instructions {
		var part Bundle
		var err error
		switch ins.Kind {
		case TransferNative:
			part, err = NewNative(Coin{Denom: ins.Denom, Amount: ins.Amount})
		case TransferToken:
			part, err = NewToken(ins.Contract, ins.Amount)
		case TransferNFT:
			part, err = NewNFT(ins.Contract, ins.TokenID)
		}
		if err != nil {
			return Bundle{}, err
		}
		total, err = total.Add(part)
		if err != nil {
			return Bundle{}, err
		}
	}
	return total, nil
}
