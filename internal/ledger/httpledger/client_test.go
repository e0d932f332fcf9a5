package httpledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelbook/backend/internal/domain"
	"fuelbook/backend/internal/ledger"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func verifyToken(t *testing.T, r *http.Request) string {
	t.Helper()
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	claims := &jwtlib.RegisteredClaims{}
	token, err := jwtlib.ParseWithClaims(raw, claims, func(*jwtlib.Token) (interface{}, error) {
		return []byte(testSecret), nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer("fuelbook"))
	if err != nil || !token.Valid {
		t.Errorf("invalid token: %v", err)
		return ""
	}
	return claims.Subject
}

func TestCreateAndPostSendsSignedDocument(t *testing.T) {
	var got ledger.Document
	var subject string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = verifyToken(t, r)
		if r.Method != http.MethodPost || r.URL.Path != "/documents" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "SINV-0001"})
	}))
	defer server.Close()

	client := New(server.URL, testSecret, time.Second)
	id, err := client.CreateAndPost(context.Background(), ledger.Document{
		Type:  domain.DocSalesInvoice,
		Party: "Cash Customer",
		Items: []ledger.Item{{ItemCode: "PETROL", Qty: decimal.NewFromInt(5), Rate: decimal.NewFromInt(10), Amount: decimal.NewFromInt(50)}},
	})
	require.NoError(t, err)
	assert.Equal(t, "SINV-0001", id)
	assert.Equal(t, "create", subject)
	assert.Equal(t, domain.DocSalesInvoice, got.Type)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Amount.Equal(decimal.NewFromInt(50)))
}

func TestAmountQueriesDecodeDecimal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verifyToken(t, r)
		switch r.URL.Path {
		case "/documents/SINV-1/outstanding":
			_, _ = w.Write([]byte(`{"amount":"125.50"}`))
		case "/balance":
			if r.URL.Query().Get("account") != "Cash - FD" || r.URL.Query().Get("before") == "" {
				http.Error(w, `{"error":"bad query"}`, http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"amount":"300"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, testSecret, time.Second)
	outstanding, err := client.Outstanding(context.Background(), "SINV-1")
	require.NoError(t, err)
	assert.True(t, outstanding.Equal(decimal.RequireFromString("125.5")))

	balance, err := client.AccountBalance(context.Background(), "Cash - FD", "Main - FD", time.Now())
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(300)))
}

func TestErrorStatusCarriesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/documents/JV-9/cancel":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"document is linked"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"no such document"}`))
		}
	}))
	defer server.Close()

	client := New(server.URL, testSecret, time.Second)

	err := client.Cancel(context.Background(), "JV-9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrRejected))
	assert.Contains(t, err.Error(), "document is linked")

	err = client.Cancel(context.Background(), "JV-404")
	assert.True(t, errors.Is(err, ledger.ErrUnknownDocument))
}
