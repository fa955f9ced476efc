package http

import (
	"encoding/json"
	"io"
	"net/http"

	auth "github.com/pinco2025/prepAIred-backend/internal/auth/middleware"
	"github.com/pinco2025/prepAIred-backend/internal/logger"
	"github.com/pinco2025/prepAIred-backend/internal/payment"
)

func CreateOrderHandler(svc *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		if sub == "" {
			http.Error(w, "unauthorized", 401)
			return
		}
		var req struct {
			PlanType string `json:"plan_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		order, err := svc.CreateOrder(r.Context(), sub, req.PlanType)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		_ = json.NewEncoder(w).Encode(order)
	}
}

// WebhookHandler verifies the gateway signature before touching the
// event. Unverified payloads are dropped with 400, handler errors with
// 500 so the gateway redelivers.
func WebhookHandler(svc *payment.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "read body", 400)
			return
		}
		if !svc.VerifySignature(body, r.Header.Get("X-Razorpay-Signature")) {
			log.Warn("webhook signature mismatch", "remote", r.RemoteAddr)
			http.Error(w, "bad signature", 400)
			return
		}
		if err := svc.HandleEvent(r.Context(), body); err != nil {
			log.Error("webhook handling failed", "error", err)
			http.Error(w, "event not processed", 500)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
