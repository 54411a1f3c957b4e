package partners

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/stagecrew/rentline-backend/pkg/config"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/logger"
)

// SlotOffer is one capacity slot advertised over the partner API.
type SlotOffer struct {
	SlotID    uuid.UUID       `json:"slotId"`
	PartnerID string          `json:"partnerId"`
	ItemKind  string          `json:"itemKind"`
	Qty       int             `json:"qty"`
	ValidFrom time.Time       `json:"validFrom"`
	ValidTo   time.Time       `json:"validTo"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// CommitRequest asks the partner to hold capacity. ProjectRef doubles
// as the idempotency key together with SlotID: replays of the same pair
// return the original booking.
type CommitRequest struct {
	ProjectRef  string    `json:"projectRef"`
	SlotID      uuid.UUID `json:"slotId"`
	Qty         int       `json:"qty"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
}

// CommitResponse is the partner's acknowledgement.
type CommitResponse struct {
	PartnerRef string `json:"partnerRef"`
	Status     string `json:"status"`
}

// Client talks to the sub-rental partner network.
type Client interface {
	ListCapacity(ctx context.Context, itemKind string, from, to time.Time) ([]SlotOffer, error)
	Commit(ctx context.Context, req CommitRequest) (*CommitResponse, error)
	Release(ctx context.Context, projectRef string, slotID uuid.UUID) error
}

// HTTPClient is the resty-backed partner client wrapped in a circuit
// breaker so a down partner cannot stall reserve or sync paths.
type HTTPClient struct {
	rest    *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
}

// NewHTTPClient builds a partner client from config.
func NewHTTPClient(cfg config.PartnerConfig, log *logger.Logger) *HTTPClient {
	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetRetryCount(0)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "partner-api",
		Timeout: cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.BreakerMaxFails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := log.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			log.Warn(ctx, "partner circuit breaker state changed")
		},
	})

	return &HTTPClient{rest: rest, breaker: breaker, log: log}
}

func (c *HTTPClient) ListCapacity(ctx context.Context, itemKind string, from, to time.Time) ([]SlotOffer, error) {
	result, err := c.execute(func() (any, error) {
		var offers []SlotOffer
		resp, err := c.rest.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"item_kind": itemKind,
				"from":      from.Format(time.RFC3339),
				"to":        to.Format(time.RFC3339),
			}).
			SetResult(&offers).
			Get("/v1/capacity")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("partner capacity query returned %d", resp.StatusCode())
		}
		return offers, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]SlotOffer), nil
}

func (c *HTTPClient) Commit(ctx context.Context, req CommitRequest) (*CommitResponse, error) {
	result, err := c.execute(func() (any, error) {
		var ack CommitResponse
		resp, err := c.rest.R().
			SetContext(ctx).
			SetHeader("Idempotency-Key", req.ProjectRef+":"+req.SlotID.String()).
			SetBody(req).
			SetResult(&ack).
			Post("/v1/commitments")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("partner commit returned %d", resp.StatusCode())
		}
		return &ack, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*CommitResponse), nil
}

func (c *HTTPClient) Release(ctx context.Context, projectRef string, slotID uuid.UUID) error {
	_, err := c.execute(func() (any, error) {
		resp, err := c.rest.R().
			SetContext(ctx).
			SetQueryParam("project_ref", projectRef).
			Delete("/v1/commitments/" + slotID.String())
		if err != nil {
			return nil, err
		}
		if resp.IsError() && resp.StatusCode() != 404 {
			return nil, fmt.Errorf("partner release returned %d", resp.StatusCode())
		}
		return nil, nil
	})
	return err
}

func (c *HTTPClient) execute(fn func() (any, error)) (any, error) {
	result, err := c.breaker.Execute(func() (any, error) { return fn() })
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, pkgerrors.Wrap(pkgerrors.CodePartnerUnavailable, err, "partner circuit open")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePartnerUnavailable, err, "partner request failed")
	}
	return result, nil
}
