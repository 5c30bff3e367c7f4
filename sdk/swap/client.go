package swap

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"swaprelay/native/relay"
)

// Receipt reports one accepted settlement.
type Receipt struct {
	ID        string `json:"id"`
	Signer    string `json:"signer"`
	AssetIn   string `json:"asset_in"`
	AssetOut  string `json:"asset_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Fee       string `json:"fee"`
	Nonce     uint64 `json:"nonce"`
}

// PriceQuote reports the marginal exchange rate at a fixed decimal scale.
type PriceQuote struct {
	AssetIn  string `json:"asset_in"`
	AssetOut string `json:"asset_out"`
	Price    string `json:"price"`
	Scale    int    `json:"scale"`
	FeeBps   uint32 `json:"fee_bps"`
}

// APIError carries the status and message of a rejected call.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relayd: %s (status %d)", e.Message, e.Status)
}

// Client exposes typed helpers for interacting with a relayd deployment.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient builds a client for the given base URL.
func NewClient(baseURL string, httpc *http.Client) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("base url required")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: trimmed, httpc: httpc}, nil
}

type submission struct {
	Pool         string `json:"pool"`
	Signer       string `json:"signer"`
	AssetIn      string `json:"asset_in"`
	AssetOut     string `json:"asset_out"`
	AmountIn     string `json:"amount_in"`
	MinAmountOut string `json:"min_amount_out"`
	Nonce        uint64 `json:"nonce"`
	Deadline     int64  `json:"deadline"`
	Signature    string `json:"signature"`
}

// SubmitSwap posts a signed request and returns the settlement receipt. The
// pool and signer addresses are re-encoded from the typed request, so the
// submitted body always matches what was signed.
func (c *Client) SubmitSwap(ctx context.Context, params RequestParams, req *relay.SwapRequest, signature []byte) (*Receipt, error) {
	if req == nil {
		return nil, fmt.Errorf("request required")
	}
	if len(signature) == 0 {
		return nil, fmt.Errorf("signature required")
	}
	body := submission{
		Pool:         strings.TrimSpace(params.Pool),
		Signer:       strings.TrimSpace(params.Signer),
		AssetIn:      req.AssetIn,
		AssetOut:     req.AssetOut,
		AmountIn:     req.AmountIn.String(),
		MinAmountOut: req.MinAmountOut.String(),
		Nonce:        req.Nonce,
		Deadline:     req.Deadline,
		Signature:    "0x" + hex.EncodeToString(signature),
	}
	receipt := &Receipt{}
	if err := c.post(ctx, "/v1/swaps", body, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Nonce returns the next expected nonce for the bech32 signer address.
func (c *Client) Nonce(ctx context.Context, signer string) (uint64, error) {
	trimmed := strings.TrimSpace(signer)
	if trimmed == "" {
		return 0, fmt.Errorf("signer address required")
	}
	var payload struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := c.get(ctx, "/v1/nonce/"+url.PathEscape(trimmed), &payload); err != nil {
		return 0, err
	}
	return payload.Nonce, nil
}

// Price returns the current marginal price for the pair.
func (c *Client) Price(ctx context.Context, assetIn, assetOut string) (*PriceQuote, error) {
	query := url.Values{}
	query.Set("asset_in", strings.TrimSpace(assetIn))
	query.Set("asset_out", strings.TrimSpace(assetOut))
	quote := &PriceQuote{}
	if err := c.get(ctx, "/v1/price?"+query.Encode(), quote); err != nil {
		return nil, err
	}
	return quote, nil
}

// PriceValue parses the fixed-scale quote into a big integer.
func (q *PriceQuote) PriceValue() (*big.Int, bool) {
	if q == nil {
		return nil, false
	}
	return new(big.Int).SetString(q.Price, 10)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		message := strings.TrimSpace(string(data))
		if err := json.Unmarshal(data, &failure); err == nil && failure.Error != "" {
			message = failure.Error
		}
		return &APIError{Status: resp.StatusCode, Message: message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
