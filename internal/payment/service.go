// Package payment creates Razorpay orders and settles them from
// webhook events.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pinco2025/prepAIred-backend/internal/attempt"
	"github.com/pinco2025/prepAIred-backend/internal/logger"
)

// Paise per rupee; Razorpay amounts are integral paise.
const paise = 100

var planAmounts = map[string]int64{
	"basic": 499 * paise,
	"pro":   999 * paise,
}

// OrderStore is the slice of the row store the payment flow needs.
type OrderStore interface {
	RecordOrder(ctx context.Context, o attempt.Order) error
	MarkOrderPaid(ctx context.Context, orderID string) error
	UpdateUserTier(ctx context.Context, userID, tier string) error
}

type Service struct {
	HTTP          *http.Client
	APIBase       string // default https://api.razorpay.com/v1
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Store         OrderStore
	Log           *logger.Logger
}

func NewService(keyID, keySecret, webhookSecret string, store OrderStore, log *logger.Logger) *Service {
	return &Service{
		HTTP:          &http.Client{Timeout: 15 * time.Second},
		APIBase:       "https://api.razorpay.com/v1",
		KeyID:         keyID,
		KeySecret:     keySecret,
		WebhookSecret: webhookSecret,
		Store:         store,
		Log:           log,
	}
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateOrder opens an order upstream and records it locally as pending.
func (s *Service) CreateOrder(ctx context.Context, userID, planType string) (Order, error) {
	amount, ok := planAmounts[planType]
	if !ok {
		return Order{}, fmt.Errorf("payment: unknown plan %q", planType)
	}
	body, err := json.Marshal(map[string]any{
		"amount":   amount,
		"currency": "INR",
		"receipt":  "rcpt_" + uuid.NewString(),
		"notes":    map[string]string{"userId": userID, "planType": planType},
	})
	if err != nil {
		return Order{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.APIBase+"/orders", bytes.NewReader(body))
	if err != nil {
		return Order{}, err
	}
	req.SetBasicAuth(s.KeyID, s.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return Order{}, fmt.Errorf("payment: create order: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Order{}, fmt.Errorf("payment: create order: status %d: %s", resp.StatusCode, msg)
	}
	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return Order{}, fmt.Errorf("payment: decode order: %w", err)
	}

	if err := s.Store.RecordOrder(ctx, attempt.Order{
		ID:       order.ID,
		UserID:   userID,
		PlanType: planType,
		Amount:   order.Amount,
	}); err != nil {
		// Upstream order exists but has no local row; the webhook for it
		// will be dropped. Surface the failure to the caller.
		return Order{}, fmt.Errorf("payment: record order %s: %w", order.ID, err)
	}
	s.Log.Info("order created", "order_id", order.ID, "user_id", userID, "plan", planType)
	return order, nil
}

// VerifySignature checks the webhook HMAC (SHA-256 over the raw body,
// hex-encoded) in constant time.
func (s *Service) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.WebhookSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				OrderID string            `json:"order_id"`
				Notes   map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleEvent settles a verified webhook event. Events other than
// payment.captured are acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, body []byte) error {
	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("payment: decode event: %w", err)
	}
	if ev.Event != "payment.captured" {
		s.Log.Debug("webhook event ignored", "event", ev.Event)
		return nil
	}
	ent := ev.Payload.Payment.Entity
	if ent.OrderID == "" {
		return fmt.Errorf("payment: captured event without order_id")
	}
	userID := noteValue(ent.Notes, "userId", "user_id")
	plan := noteValue(ent.Notes, "planType", "plan_type")
	if userID == "" || plan == "" {
		return fmt.Errorf("payment: order %s: missing userId or planType notes", ent.OrderID)
	}
	if err := s.Store.UpdateUserTier(ctx, userID, plan); err != nil {
		return fmt.Errorf("payment: order %s: %w", ent.OrderID, err)
	}
	if err := s.Store.MarkOrderPaid(ctx, ent.OrderID); err != nil {
		return fmt.Errorf("payment: order %s: %w", ent.OrderID, err)
	}
	s.Log.Info("payment captured", "order_id", ent.OrderID, "user_id", userID, "plan", plan)
	return nil
}

// noteValue reads an order note under its current key, falling back to
// the snake_case key older orders were created with.
func noteValue(notes map[string]string, key, legacyKey string) string {
	if v := notes[key]; v != "" {
		return v
	}
	return notes[legacyKey]
}
