// Package httpledger talks to the accounting service over JSON/HTTP. Every call carries
// a short-lived HS256 service token.
package httpledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"fuelbook/backend/internal/ledger"
)

const (
	tokenIssuer = "fuelbook"
	tokenTTL    = time.Minute
)

type Client struct {
	baseURL string
	secret  []byte
	http    *http.Client
}

func New(baseURL string, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		http:    &http.Client{Timeout: timeout},
	}
}

type createResponse struct {
	ID string `json:"id"`
}

type amountResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) CreateAndPost(ctx context.Context, doc ledger.Document) (string, error) {
	var out createResponse
	if err := c.do(ctx, "create", http.MethodPost, "/documents", nil, doc, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: empty document id for %s", ledger.ErrRejected, doc.Type)
	}
	return out.ID, nil
}

func (c *Client) Outstanding(ctx context.Context, documentID string) (decimal.Decimal, error) {
	var out amountResponse
	path := "/documents/" + url.PathEscape(documentID) + "/outstanding"
	if err := c.do(ctx, "outstanding", http.MethodGet, path, nil, nil, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Amount, nil
}

func (c *Client) Cancel(ctx context.Context, documentID string) error {
	path := "/documents/" + url.PathEscape(documentID) + "/cancel"
	return c.do(ctx, "cancel", http.MethodPost, path, nil, nil, nil)
}

func (c *Client) StockBalance(ctx context.Context, itemCode string, warehouse string) (decimal.Decimal, error) {
	var out amountResponse
	query := url.Values{"item_code": {itemCode}, "warehouse": {warehouse}}
	if err := c.do(ctx, "stock", http.MethodGet, "/stock", query, nil, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Amount, nil
}

func (c *Client) ValuationRate(ctx context.Context, itemCode string, warehouse string) (decimal.Decimal, error) {
	var out amountResponse
	query := url.Values{"item_code": {itemCode}, "warehouse": {warehouse}}
	if err := c.do(ctx, "valuation_rate", http.MethodGet, "/valuation-rate", query, nil, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Amount, nil
}

func (c *Client) AccountBalance(ctx context.Context, account string, costCenter string, before time.Time) (decimal.Decimal, error) {
	var out amountResponse
	query := url.Values{
		"account":     {account},
		"cost_center": {costCenter},
		"before":      {before.UTC().Format(time.RFC3339)},
	}
	if err := c.do(ctx, "balance", http.MethodGet, "/balance", query, nil, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Amount, nil
}

func (c *Client) EnsureItem(ctx context.Context, itemCode string, name string) error {
	body := map[string]string{"item_code": itemCode, "item_name": name}
	return c.do(ctx, "ensure_item", http.MethodPut, "/items/"+url.PathEscape(itemCode), nil, body, nil)
}

func (c *Client) EnsureCustomer(ctx context.Context, name string) error {
	body := map[string]string{"customer_name": name}
	return c.do(ctx, "ensure_customer", http.MethodPut, "/customers/"+url.PathEscape(name), nil, body, nil)
}

func (c *Client) do(ctx context.Context, op string, method string, path string, query url.Values, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	token, err := c.sign(op)
	if err != nil {
		return fmt.Errorf("sign %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read ledger %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode ledger %s response: %w", op, err)
	}
	return nil
}

func (c *Client) sign(op string) (string, error) {
	now := time.Now().UTC()
	claims := jwtlib.RegisteredClaims{
		Subject:   op,
		Issuer:    tokenIssuer,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(tokenTTL)),
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

func statusError(op string, status int, raw []byte) error {
	message := strings.TrimSpace(string(raw))
	var payload errorResponse
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		message = payload.Error
	}
	if message == "" {
		message = http.StatusText(status)
	}

	kind := ledger.ErrRejected
	if status == http.StatusNotFound {
		kind = ledger.ErrUnknownDocument
	}
	if status >= 500 {
		return fmt.Errorf("ledger %s: status %d: %s", op, status, message)
	}
	return fmt.Errorf("%w: ledger %s: status %d: %s", kind, op, status, message)
}
