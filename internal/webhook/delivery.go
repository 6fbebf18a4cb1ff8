package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rookmemory/rook/internal/events"
	"github.com/rookmemory/rook/internal/llm"
)

// ErrPermanent marks a delivery failure the caller should not retry (a 4xx
// response).
var ErrPermanent = errors.New("webhook: permanent delivery failure")

// errTransient marks a failure worth retrying (network error or 5xx).
var errTransient = errors.New("webhook: transient delivery failure")

// Delivery sends events to a single webhook endpoint, signing each payload
// and retrying transient failures with exponential backoff. Every attempt
// additionally runs through a circuit breaker so a persistently failing
// endpoint stops being hammered, the same collaborator-call protection
// internal/llm already applies to LLM/embedding calls.
type Delivery struct {
	client  *http.Client
	config  Config
	breaker *llm.CircuitBreaker
}

// NewDelivery builds a Delivery for the given Config.
func NewDelivery(config Config) *Delivery {
	return &Delivery{
		client:  &http.Client{Timeout: config.Timeout},
		config:  config,
		breaker: llm.NewCircuitBreaker(),
	}
}

// Config returns the webhook registration this Delivery serves.
func (d *Delivery) Config() Config {
	return d.config
}

// Deliver POSTs event to the endpoint if the registration's event filter
// accepts it, retrying transient failures per the configured RetryPolicy.
func (d *Delivery) Deliver(ctx context.Context, event events.Event) error {
	if !d.config.ShouldReceive(event.Type) {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}
	signature := d.signPayload(payload)

	policy := d.config.RetryPolicy
	delay := policy.InitialDelay

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * policy.Multiplier)
			if delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
		}

		_, err := d.breaker.Execute(ctx, func() (interface{}, error) {
			return nil, d.deliverOnce(ctx, payload, signature, string(event.Type))
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, llm.ErrCircuitOpen) {
			return err
		}
		if errors.Is(err, ErrPermanent) {
			return err
		}

		lastErr = err
		log.Printf("webhook: delivery to %s failed (attempt %d/%d), retrying in %s: %v", d.config.URL, attempt+1, policy.MaxRetries+1, delay, err)
	}

	return fmt.Errorf("webhook: delivery to %s exhausted retries: %w", d.config.URL, lastErr)
}

func (d *Delivery) deliverOnce(ctx context.Context, payload []byte, signature, eventType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", errTransient, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Rook-Signature", signature)
	req.Header.Set("X-Rook-Event", eventType)
	req.Header.Set("X-Rook-Delivery", uuid.NewString())

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: server returned %d", errTransient, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: client error %d: %s", ErrPermanent, resp.StatusCode, string(body))
	}
}

// signPayload returns "sha256=<hex hmac>", or an empty string if no secret
// is configured.
func (d *Delivery) signPayload(payload []byte) string {
	if d.config.Secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(d.config.Secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received payload against the signature header
// using a constant-time comparison, for use by webhook receivers.
func VerifySignature(payload []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
