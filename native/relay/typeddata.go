package relay

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	// DomainName and DomainVersion identify the protocol instance inside the
	// EIP-712 domain separator.
	DomainName    = "SwapRelay"
	DomainVersion = "1"

	primaryType = "SwapRequest"

	signatureLength = 65
)

var typedDataTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	primaryType: []apitypes.Type{
		{Name: "pool", Type: "address"},
		{Name: "signer", Type: "address"},
		{Name: "assetIn", Type: "string"},
		{Name: "assetOut", Type: "string"},
		{Name: "amountIn", Type: "uint256"},
		{Name: "minAmountOut", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	},
}

func typedDataDomain(chainID *big.Int, verifying [20]byte) apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              DomainName,
		Version:           DomainVersion,
		ChainId:           (*ethmath.HexOrDecimal256)(new(big.Int).Set(chainID)),
		VerifyingContract: ethcommon.BytesToAddress(verifying[:]).Hex(),
	}
}

func typedData(chainID *big.Int, verifying [20]byte, req *SwapRequest) apitypes.TypedData {
	amountIn := big.NewInt(0)
	if req.AmountIn != nil {
		amountIn = new(big.Int).Set(req.AmountIn)
	}
	minOut := big.NewInt(0)
	if req.MinAmountOut != nil {
		minOut = new(big.Int).Set(req.MinAmountOut)
	}
	return apitypes.TypedData{
		Types:       typedDataTypes,
		PrimaryType: primaryType,
		Domain:      typedDataDomain(chainID, verifying),
		Message: apitypes.TypedDataMessage{
			"pool":         ethcommon.BytesToAddress(req.Pool[:]).Hex(),
			"signer":       ethcommon.BytesToAddress(req.Signer[:]).Hex(),
			"assetIn":      req.AssetIn,
			"assetOut":     req.AssetOut,
			"amountIn":     (*ethmath.HexOrDecimal256)(amountIn),
			"minAmountOut": (*ethmath.HexOrDecimal256)(minOut),
			"nonce":        (*ethmath.HexOrDecimal256)(new(big.Int).SetUint64(req.Nonce)),
			"deadline":     (*ethmath.HexOrDecimal256)(big.NewInt(req.Deadline)),
		},
	}
}

// ComputeDomainSeparator hashes the EIP-712 domain binding signatures to one
// protocol deployment on one network.
func ComputeDomainSeparator(chainID *big.Int, verifying [20]byte) ([32]byte, error) {
	var out [32]byte
	if chainID == nil {
		return out, fmt.Errorf("relay: chain id required")
	}
	data := typedData(chainID, verifying, &SwapRequest{})
	hash, err := data.HashStruct("EIP712Domain", data.Domain.Map())
	if err != nil {
		return out, fmt.Errorf("relay: hash domain: %w", err)
	}
	copy(out[:], hash)
	return out, nil
}

// Digest returns the typed-data digest a signer commits to:
// keccak256(0x19 0x01 || domainSeparator || structHash(request)).
func Digest(chainID *big.Int, verifying [20]byte, req *SwapRequest) ([32]byte, error) {
	var out [32]byte
	if chainID == nil {
		return out, fmt.Errorf("relay: chain id required")
	}
	if req == nil {
		return out, fmt.Errorf("relay: request required")
	}
	data := typedData(chainID, verifying, req)
	domainHash, err := data.HashStruct("EIP712Domain", data.Domain.Map())
	if err != nil {
		return out, fmt.Errorf("relay: hash domain: %w", err)
	}
	structHash, err := data.HashStruct(primaryType, data.Message)
	if err != nil {
		return out, fmt.Errorf("relay: hash request: %w", err)
	}
	raw := append([]byte{0x19, 0x01}, append(domainHash, structHash...)...)
	copy(out[:], ethcrypto.Keccak256(raw))
	return out, nil
}

// SignRequest produces a 65-byte recoverable signature over the request
// digest. The v byte is stored as 27/28 per Ethereum convention.
func SignRequest(key *ecdsa.PrivateKey, chainID *big.Int, verifying [20]byte, req *SwapRequest) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("relay: private key required")
	}
	digest, err := Digest(chainID, verifying, req)
	if err != nil {
		return nil, err
	}
	sig, err := ethcrypto.Sign(digest[:], key)
	if err != nil {
		return nil, fmt.Errorf("relay: sign request: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// RecoverSigner resolves the 20-byte address that produced the signature over
// the supplied digest. Both 0/1 and 27/28 recovery ids are accepted.
func RecoverSigner(digest [32]byte, signature []byte) ([20]byte, error) {
	var out [20]byte
	if len(signature) != signatureLength {
		return out, fmt.Errorf("relay: signature must be %d bytes (got %d)", signatureLength, len(signature))
	}
	normalized := make([]byte, signatureLength)
	copy(normalized, signature)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(digest[:], normalized)
	if err != nil {
		return out, fmt.Errorf("relay: recover signer: %w", err)
	}
	copy(out[:], ethcrypto.PubkeyToAddress(*pub).Bytes())
	return out, nil
}
