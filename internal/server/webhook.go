package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// SignatureHeader carries the webhook signature; the "hash" query parameter is the fallback.
const SignatureHeader = "X-Webhook-Signature"

type webhookAck struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleWebhook logs the raw call and acknowledges it. Nothing is parsed or
// authenticated here; the sweep does that later.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	carrier := r.PathValue("carrier")

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		signature = r.URL.Query().Get("hash")
	}

	body, readErr := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxWebhookBytes))
	if readErr != nil {
		reason := "body could not be read: " + readErr.Error()
		var tooLarge *http.MaxBytesError
		if errors.As(readErr, &tooLarge) {
			reason = fmt.Sprintf("payload exceeds %d bytes", tooLarge.Limit)
		}
		entry, err := s.service.ReceiveUnreadableWebhook(r.Context(), carrier, body, signature, reason)
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(webhookAck{Message: "temporarily unavailable"})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(webhookAck{Success: true, ID: entry.ID.String(), Message: reason})
		return
	}

	entry, err := s.service.ReceiveWebhook(r.Context(), carrier, body, signature)
	if err != nil {
		// Not logged, so the carrier must retry.
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(webhookAck{Message: "temporarily unavailable"})
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(webhookAck{Success: true, ID: entry.ID.String()})
}
