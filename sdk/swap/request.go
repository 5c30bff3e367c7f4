package swap

import (
	"fmt"
	"math/big"
	"strings"

	"swaprelay/crypto"
	"swaprelay/native/relay"
)

// RequestParams carries the caller-facing fields of a swap request. Addresses
// are bech32 strings so integrators never handle raw bytes.
type RequestParams struct {
	Pool         string
	Signer       string
	AssetIn      string
	AssetOut     string
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Nonce        uint64
	Deadline     int64
}

// NewRequest validates the parameters and builds the typed request that will
// be signed and submitted.
func NewRequest(params RequestParams) (*relay.SwapRequest, error) {
	pool, err := decodeAccount("pool", params.Pool)
	if err != nil {
		return nil, err
	}
	signer, err := decodeAccount("signer", params.Signer)
	if err != nil {
		return nil, err
	}
	assetIn := strings.TrimSpace(params.AssetIn)
	assetOut := strings.TrimSpace(params.AssetOut)
	if assetIn == "" || assetOut == "" {
		return nil, fmt.Errorf("both asset symbols required")
	}
	if assetIn == assetOut {
		return nil, fmt.Errorf("asset symbols must differ")
	}
	if params.AmountIn == nil || params.AmountIn.Sign() <= 0 {
		return nil, fmt.Errorf("input amount must be positive")
	}
	if params.MinAmountOut == nil || params.MinAmountOut.Sign() < 0 {
		return nil, fmt.Errorf("minimum output must be non-negative")
	}
	if params.Deadline <= 0 {
		return nil, fmt.Errorf("deadline required")
	}
	return &relay.SwapRequest{
		Pool:         pool,
		Signer:       signer,
		AssetIn:      assetIn,
		AssetOut:     assetOut,
		AmountIn:     new(big.Int).Set(params.AmountIn),
		MinAmountOut: new(big.Int).Set(params.MinAmountOut),
		Nonce:        params.Nonce,
		Deadline:     params.Deadline,
	}, nil
}

// Signer binds a private key to one relay deployment so every signature it
// produces carries that deployment's domain.
type Signer struct {
	key     *crypto.PrivateKey
	chainID *big.Int
	relay   [20]byte
}

// NewSigner constructs a signer for the given deployment.
func NewSigner(key *crypto.PrivateKey, chainID *big.Int, relayAddress string) (*Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("private key required")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id must be positive")
	}
	relayAddr, err := decodeAccount("relay", relayAddress)
	if err != nil {
		return nil, err
	}
	return &Signer{
		key:     key,
		chainID: new(big.Int).Set(chainID),
		relay:   relayAddr,
	}, nil
}

// Address returns the signer's bech32 account address.
func (s *Signer) Address() string {
	return s.key.PubKey().Address().String()
}

// Sign produces the 65-byte signature over the request's typed-data digest.
func (s *Signer) Sign(req *relay.SwapRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("request required")
	}
	return relay.SignRequest(s.key.PrivateKey, s.chainID, s.relay, req)
}

func decodeAccount(label, raw string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out, fmt.Errorf("%s address required", label)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, fmt.Errorf("%s address invalid: %w", label, err)
	}
	copy(out[:], addr.Bytes())
	return out, nil
}
