// settlement-sim is a local stand-in for the settlement collaborator:
// it accepts every transfer and hands back a reference.
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/quantapay/gateway/internal/logging"
)

type transferRequest struct {
	PaymentID string `json:"payment_id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

func main() {
	logging.Init("settlement-sim", "info", os.Getenv("APP_ENV"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})
	mux.HandleFunc("POST /transfers", handleTransfer)

	slog.Info("settlement simulator started", "addr", ":8081")
	if err := http.ListenAndServe(":8081", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	slog.Info("transfer accepted",
		"payment_id", req.PaymentID,
		"amount", req.Amount,
		"currency", req.Currency,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"succeeded": true,
		"reference": "sim-" + uuid.NewString(),
	}); err != nil {
		slog.Error("failed to write transfer response", "error", err)
	}
}
