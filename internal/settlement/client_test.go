package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Transfer(t *testing.T) {
	paymentID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transfers", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got transferPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, paymentID.String(), got.PaymentID)
		require.Equal(t, "acct-alice", got.Sender)
		require.Equal(t, "acct-bob", got.Recipient)
		require.Equal(t, "1000", got.Amount)
		require.Equal(t, "USD", got.Currency)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(transferResponse{Succeeded: true, Reference: "stl-42"})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	result, err := client.Transfer(context.Background(), Request{
		PaymentID: paymentID,
		Sender:    "acct-alice",
		Recipient: "acct-bob",
		Amount:    decimal.NewFromInt(1000),
		Currency:  "USD",
	})
	require.NoError(t, err)
	require.True(t, result.Succeeded)
	require.Equal(t, "stl-42", result.Reference)
}

func TestHTTPClient_Transfer_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(transferResponse{Succeeded: false})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	result, err := client.Transfer(context.Background(), Request{
		PaymentID: uuid.New(),
		Sender:    "acct-alice",
		Recipient: "acct-bob",
		Amount:    decimal.NewFromInt(50),
		Currency:  "USD",
	})
	// A clean rejection is a result, not a transport error.
	require.NoError(t, err)
	require.False(t, result.Succeeded)
}

func TestHTTPClient_Transfer_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	_, err := client.Transfer(context.Background(), Request{
		PaymentID: uuid.New(),
		Sender:    "acct-alice",
		Recipient: "acct-bob",
		Amount:    decimal.NewFromInt(50),
		Currency:  "USD",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 500")
}

func TestHTTPClient_Transfer_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewHTTPClient(srv.URL)
	_, err := client.Transfer(context.Background(), Request{
		PaymentID: uuid.New(),
		Sender:    "acct-alice",
		Recipient: "acct-bob",
		Amount:    decimal.NewFromInt(50),
		Currency:  "USD",
	})
	require.Error(t, err)
}
