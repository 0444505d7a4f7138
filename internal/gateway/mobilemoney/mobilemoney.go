package mobilemoney

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
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joel710/agriflow/internal/service/models/order"
	"github.com/joel710/agriflow/internal/service/models/payment"
	"github.com/spf13/viper"
)

// Gateway talks to a mobile money provider (TMoney, Flooz) over its HTTP API.
// The same adapter serves every provider that follows the aggregator contract;
// only the base URL and signing secret differ.
type Gateway struct {
	provider   string
	baseURL    string
	secret     []byte
	httpClient *http.Client
}

// MustNewGateway builds a gateway adapter for the named provider. The base URL
// comes from config key payment.gateways.<provider>.base_url, the signing
// secret from env AGRIFLOW_<PROVIDER>_SECRET.
func MustNewGateway(provider string) *Gateway {
	baseURL := viper.GetString("payment.gateways." + provider + ".base_url")
	if baseURL == "" {
		panic("missing base_url for payment gateway " + provider)
	}

	secret := os.Getenv("AGRIFLOW_" + strings.ToUpper(provider) + "_SECRET")
	if secret == "" {
		panic("missing signing secret for payment gateway " + provider)
	}

	return &Gateway{
		provider:   provider,
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     []byte(secret),
		httpClient: &http.Client{},
	}
}

type initiateRequest struct {
	Reference   string            `json:"reference"`
	OrderID     int64             `json:"orderId"`
	AmountCents int64             `json:"amountCents"`
	Currency    string            `json:"currency"`
	Details     map[string]string `json:"details,omitempty"`
}

type initiateResponse struct {
	TransactionID string `json:"transactionId"`
	PaymentURL    string `json:"paymentUrl"`
	Message       string `json:"message"`
}

// Initiate asks the provider to open a payment session for the order.
func (g *Gateway) Initiate(
	ctx context.Context,
	ord *order.Order,
	details map[string]string,
) (*payment.GatewaySession, error) {
	body, err := json.Marshal(initiateRequest{
		Reference:   uuid.NewString(),
		OrderID:     ord.ID,
		AmountCents: ord.TotalPriceCents,
		Currency:    string(ord.TotalPriceCurrency),
		Details:     details,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal initiate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build initiate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", g.sign(body))

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", g.provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", g.provider, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%s returned status %d", g.provider, resp.StatusCode)
	}

	var parsed initiateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", g.provider, err)
	}

	if parsed.TransactionID == "" {
		return nil, fmt.Errorf("%s returned no transaction id", g.provider)
	}

	return &payment.GatewaySession{
		TransactionID:     parsed.TransactionID,
		RedirectReference: parsed.PaymentURL,
		Message:           parsed.Message,
	}, nil
}

type webhookPayload struct {
	OrderID       int64  `json:"orderId"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

// VerifyWebhook checks the HMAC signature of a provider notification and
// extracts the event it carries.
func (g *Gateway) VerifyWebhook(header http.Header, body []byte) (*payment.WebhookEvent, error) {
	signature := header.Get("X-Signature")
	if signature == "" {
		return nil, fmt.Errorf("missing X-Signature header")
	}

	if !hmac.Equal([]byte(signature), []byte(g.sign(body))) {
		return nil, fmt.Errorf("signature mismatch")
	}

	var parsed webhookPayload
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	if parsed.OrderID == 0 || parsed.TransactionID == "" {
		return nil, fmt.Errorf("webhook payload missing order or transaction id")
	}

	return &payment.WebhookEvent{
		OrderID:       parsed.OrderID,
		TransactionID: parsed.TransactionID,
		Succeeded:     parsed.Status == "success",
		Reason:        parsed.Reason,
	}, nil
}

func (g *Gateway) sign(body []byte) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}
