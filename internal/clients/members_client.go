// internal/clients/members_client.go
package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

var ErrMembersUnavailable = errors.New("members service unavailable")

// MembersClient answers user existence questions over HTTP. Calls go
// through a circuit breaker so a failing members service fails fast.
type MembersClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func NewMembersClient(baseURL string, timeout time.Duration, logger *zap.Logger) *MembersClient {
	settings := gobreaker.Settings{
		Name:        "members",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &MembersClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

// Exists reports whether the members service knows id. A 404 is an answer,
// not a failure, and does not count against the breaker.
func (c *MembersClient) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/members/%s", c.baseURL, id), nil)
		if err != nil {
			return nil, err
		}
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		switch resp.StatusCode {
		case http.StatusOK:
			return true, nil
		case http.StatusNotFound:
			return false, nil
		default:
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, fmt.Errorf("%w: %v", ErrMembersUnavailable, err)
		}
		return false, fmt.Errorf("lookup member %s: %w", id, err)
	}
	return result.(bool), nil
}

// State exposes the breaker state for health reporting.
func (c *MembersClient) State() gobreaker.State {
	return c.breaker.State()
}
