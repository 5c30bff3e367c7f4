package swap

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"swaprelay/crypto"
	"swaprelay/native/relay"
)

func testAddress(fill byte) string {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = fill
	}
	return crypto.NewAddress(crypto.SwapPrefix, raw).String()
}

func validParams(signer string) RequestParams {
	return RequestParams{
		Pool:         testAddress(0xAA),
		Signer:       signer,
		AssetIn:      "NHB",
		AssetOut:     "USDC",
		AmountIn:     big.NewInt(100),
		MinAmountOut: big.NewInt(150),
		Nonce:        0,
		Deadline:     2_000_000_000,
	}
}

func TestNewRequestValidation(t *testing.T) {
	signer := testAddress(0x01)

	if _, err := NewRequest(validParams(signer)); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}

	cases := map[string]func(*RequestParams){
		"empty pool":          func(p *RequestParams) { p.Pool = "" },
		"bad signer":          func(p *RequestParams) { p.Signer = "nonsense" },
		"same assets":         func(p *RequestParams) { p.AssetOut = p.AssetIn },
		"zero amount":         func(p *RequestParams) { p.AmountIn = big.NewInt(0) },
		"nil amount":          func(p *RequestParams) { p.AmountIn = nil },
		"negative min output": func(p *RequestParams) { p.MinAmountOut = big.NewInt(-1) },
		"missing deadline":    func(p *RequestParams) { p.Deadline = 0 },
	}
	for name, mutate := range cases {
		params := validParams(signer)
		mutate(&params)
		if _, err := NewRequest(params); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSignerProducesVerifiableSignature(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signerAddr := key.PubKey().Address().String()
	relayAddr := testAddress(0x02)
	chainID := big.NewInt(1987)

	req, err := NewRequest(validParams(signerAddr))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	signer, err := NewSigner(key, chainID, relayAddr)
	if err != nil {
		t.Fatalf("build signer: %v", err)
	}
	if signer.Address() != signerAddr {
		t.Fatalf("signer address = %q, want %q", signer.Address(), signerAddr)
	}
	sig, err := signer.Sign(req)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}

	var verifying [20]byte
	decoded, err := crypto.DecodeAddress(relayAddr)
	if err != nil {
		t.Fatalf("decode relay address: %v", err)
	}
	copy(verifying[:], decoded.Bytes())
	digest, err := relay.Digest(chainID, verifying, req)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	recovered, err := relay.RecoverSigner(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != req.Signer {
		t.Fatalf("recovered %x, want %x", recovered, req.Signer)
	}
}

func TestClientSubmitSwap(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	params := validParams(key.PubKey().Address().String())
	req, err := NewRequest(params)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	signer, err := NewSigner(key, big.NewInt(1987), testAddress(0x02))
	if err != nil {
		t.Fatalf("build signer: %v", err)
	}
	sig, err := signer.Sign(req)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/swaps" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body submission
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.AmountIn != "100" || body.Nonce != 0 {
			t.Errorf("unexpected body: %+v", body)
		}
		json.NewEncoder(w).Encode(Receipt{ID: "abc", AmountOut: "177", Fee: "4"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	receipt, err := client.SubmitSwap(context.Background(), params, req, sig)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.AmountOut != "177" || receipt.ID != "abc" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "relay: invalid nonce"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Nonce(context.Background(), testAddress(0x01))
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T (%v)", err, err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Message != "relay: invalid nonce" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}
