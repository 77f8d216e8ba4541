package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/config"
)

const (
	collectRequestPath = "/create-collect-request"
	signatureTTL       = 5 * time.Minute
)

// ErrGatewayTimeout is returned when the gateway does not answer within the
// configured bound.
var ErrGatewayTimeout = errors.New("gateway timeout")

// Error is a non-success answer from the gateway. Body is kept verbatim for audit.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway error: status %d: %s", e.StatusCode, e.Body)
}

// ProtocolError is a 2xx answer that does not carry a usable collect_request_url.
type ProtocolError struct {
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("gateway protocol error: collect_request_url missing (status %d)", e.StatusCode)
}

// Client sends signed collect requests. It keeps no state between calls.
type Client struct {
	log        *slog.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	signingKey []byte
	callback   string
	now        func() time.Time
}

// CollectRequest is the body posted to the gateway.
type CollectRequest struct {
	SchoolID    string `json:"school_id"`
	Amount      string `json:"amount"`
	CallbackURL string `json:"callback_url"`
	Sign        string `json:"sign"`
}

// Collection is the usable part of a successful gateway answer.
type Collection struct {
	CollectRequestID  string
	PaymentURL        string
	RawResponseStatus int
}

// SignClaims are the claims the gateway verifies with the shared secret.
type SignClaims struct {
	SchoolID    string `json:"school_id"`
	Amount      string `json:"amount"`
	CallbackURL string `json:"callback_url"`
	jwt.RegisteredClaims
}

func NewClient(log *slog.Logger, cfg config.Gateway) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		log:        log,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		signingKey: []byte(cfg.SigningKey),
		callback:   cfg.CallbackURL,
		now:        time.Now,
	}, nil
}

// InitiateCollection makes exactly one call to the collect-request endpoint.
// orderID is only used for logging; the gateway correlates through the callback.
func (c *Client) InitiateCollection(ctx context.Context, orderID string, amount float64, schoolID string) (*Collection, error) {
	amountStr := decimal.NewFromFloat(amount).String()

	sign, err := c.sign(schoolID, amountStr)
	if err != nil {
		c.log.Error("failed to sign collect request", "order_id", orderID, "err", err)
		return nil, fmt.Errorf("failed to sign collect request: %w", err)
	}

	reqBody, err := json.Marshal(CollectRequest{
		SchoolID:    schoolID,
		Amount:      amountStr,
		CallbackURL: c.callback,
		Sign:        sign,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collect request: %w", err)
	}
	c.log.Info("gateway collect request", "order_id", orderID, "body", string(maskSensitiveFields(reqBody)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+collectRequestPath, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create collect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.log.Error("gateway timed out", "order_id", orderID, "err", err)
			return nil, fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
		}
		c.log.Error("gateway request failed", "order_id", orderID, "err", err)
		return nil, &Error{StatusCode: http.StatusBadGateway, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
		}
		return nil, &Error{StatusCode: resp.StatusCode, Body: err.Error()}
	}
	c.log.Info("gateway response", "order_id", orderID, "status", resp.StatusCode, "body", string(body))

	var result struct {
		CollectRequestID  string `json:"collect_request_id"`
		CollectRequestURL string `json:"collect_request_url"`
	}
	parseErr := json.Unmarshal(body, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || parseErr != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if result.CollectRequestURL == "" {
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return &Collection{
		CollectRequestID:  result.CollectRequestID,
		PaymentURL:        result.CollectRequestURL,
		RawResponseStatus: resp.StatusCode,
	}, nil
}

func (c *Client) sign(schoolID, amount string) (string, error) {
	now := c.now()
	claims := SignClaims{
		SchoolID:    schoolID,
		Amount:      amount,
		CallbackURL: c.callback,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(signatureTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingKey)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func maskSensitiveFields(body []byte) []byte {
	var req map[string]interface{}
	if err := json.Unmarshal(body, &req); err != nil {
		return body
	}
	if sign, ok := req["sign"].(string); ok && len(sign) > 8 {
		req["sign"] = sign[:8] + "****"
	}
	masked, _ := json.Marshal(req)
	return masked
}
