package razorpay

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gigbridge/gigbridge-backend/internal/apperr"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

type RazorpayService struct {
	Client        *http.Client
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
}

func NewRazorpayService(keyID, keySecret, webhookSecret string) *RazorpayService {
	return &RazorpayService{
		Client:        &http.Client{Timeout: 15 * time.Second},
		KeyID:         keyID,
		KeySecret:     keySecret,
		WebhookSecret: webhookSecret,
		BaseURL:       defaultBaseURL,
	}
}

type orderRequest struct {
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder registers an order with the gateway and returns its identifier.
// Transport failures come back as retryable gateway errors, never as hangs:
// the underlying client carries a bounded timeout.
func (s *RazorpayService) CreateOrder(amountMinorUnits int64, currency, receipt string) (*Order, error) {
	body, _ := json.Marshal(orderRequest{
		Amount:   amountMinorUnits,
		Currency: currency,
		Receipt:  receipt,
	})

	req, err := http.NewRequest("POST", s.BaseURL+"/orders", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.KeyID, s.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, apperr.Gateway("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 500 {
		return nil, apperr.Gateway(fmt.Sprintf("payment gateway error (%d)", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Description != "" {
			return nil, fmt.Errorf("razorpay: %s", apiErr.Error.Description)
		}
		return nil, fmt.Errorf("razorpay: unexpected status %d", resp.StatusCode)
	}

	var order Order
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("razorpay: failed to parse response: %v", err)
	}
	return &order, nil
}

// VerifyPaymentSignature checks the checkout-return signature:
// HMAC-SHA256( orderID + "|" + paymentID, key_secret ), hex encoded.
func (s *RazorpayService) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	expected := s.sign([]byte(orderID+"|"+paymentID), s.KeySecret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the asynchronous webhook signature, computed
// over the raw undeserialized payload with the webhook secret.
func (s *RazorpayService) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	expected := s.sign(rawBody, s.WebhookSecret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *RazorpayService) sign(data []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
