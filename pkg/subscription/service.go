package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stellarpay/subrenew-client/pkg/batch"
	"github.com/stellarpay/subrenew-client/pkg/client"
)

// Service exposes the subscription renewal API operations. All requests go
// through the client's retry policy; lifecycle events are reported to the
// caller-supplied Events callbacks.
type Service struct {
	client *client.Client
	events Events
	logger zerolog.Logger
}

// NewService creates a subscription service on top of an API client.
func NewService(c *client.Client, events Events) *Service {
	return &Service{
		client: c,
		events: events,
		logger: log.With().Str("component", "subscription-service").Logger(),
	}
}

// Create registers a new subscription.
func (s *Service) Create(ctx context.Context, sub Subscription) (*Subscription, error) {
	s.events.starting(sub.ID)

	var created Subscription
	if err := s.postJSON(ctx, "/v1/subscriptions", sub, &created); err != nil {
		s.events.failed(sub.ID, failureMessage(err))
		return nil, err
	}

	s.events.succeeded(created.ID)
	return &created, nil
}

// Get fetches a subscription by id.
func (s *Service) Get(ctx context.Context, id uint64) (*Subscription, error) {
	var sub Subscription
	if err := s.getJSON(ctx, fmt.Sprintf("/v1/subscriptions/%d", id), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Cancel cancels a subscription. Cancelling an already cancelled
// subscription is rejected by the service.
func (s *Service) Cancel(ctx context.Context, id uint64) (*Subscription, error) {
	s.events.starting(id)

	var sub Subscription
	if err := s.postJSON(ctx, fmt.Sprintf("/v1/subscriptions/%d/cancel", id), nil, &sub); err != nil {
		s.events.failed(id, failureMessage(err))
		return nil, err
	}

	s.events.succeeded(id)
	return &sub, nil
}

// Approve creates a renewal approval for a subscription.
func (s *Service) Approve(ctx context.Context, a Approval) (*Approval, error) {
	var created Approval
	endpoint := fmt.Sprintf("/v1/subscriptions/%d/approvals", a.SubID)
	if err := s.postJSON(ctx, endpoint, a, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Renew executes one renewal cycle for a subscription, consuming the
// approval named in the request. Policy rejections (paused protocol, active
// cooldown, duplicate cycle, invalid approval, exceeded caps) surface as
// errors whose message carries the service's reason.
func (s *Service) Renew(ctx context.Context, req RenewRequest) (*RenewOutcome, error) {
	s.events.starting(req.SubID)

	var outcome RenewOutcome
	endpoint := fmt.Sprintf("/v1/subscriptions/%d/renew", req.SubID)
	if err := s.postJSON(ctx, endpoint, req, &outcome); err != nil {
		s.events.failed(req.SubID, failureMessage(err))
		return nil, err
	}

	if outcome.Renewed {
		s.events.succeeded(req.SubID)
	} else {
		s.events.failed(req.SubID, fmt.Sprintf("renewal failed (failure count %d, state %s)",
			outcome.FailureCount, outcome.State))
	}
	return &outcome, nil
}

// SetPaused pauses or unpauses all renewal execution. Admin only.
func (s *Service) SetPaused(ctx context.Context, paused bool) error {
	body := struct {
		Paused bool `json:"paused"`
	}{Paused: paused}
	return s.postJSON(ctx, "/v1/admin/pause", body, nil)
}

// IsPaused queries the protocol pause state.
func (s *Service) IsPaused(ctx context.Context) (bool, error) {
	var out struct {
		Paused bool `json:"paused"`
	}
	if err := s.getJSON(ctx, "/v1/admin/pause", &out); err != nil {
		return false, err
	}
	return out.Paused, nil
}

// SetUserCap sets the global spending cap for a user. Admin only.
func (s *Service) SetUserCap(ctx context.Context, user string, cap int64) error {
	body := struct {
		Cap int64 `json:"cap"`
	}{Cap: cap}
	return s.postJSON(ctx, "/v1/users/"+user+"/cap", body, nil)
}

// UserCap returns the global spending cap for a user (0 = uncapped).
func (s *Service) UserCap(ctx context.Context, user string) (int64, error) {
	var out struct {
		Cap int64 `json:"cap"`
	}
	if err := s.getJSON(ctx, "/v1/users/"+user+"/cap", &out); err != nil {
		return 0, err
	}
	return out.Cap, nil
}

// UserSpent returns the amount the user spent in the current global cap
// window.
func (s *Service) UserSpent(ctx context.Context, user string) (int64, error) {
	var out struct {
		Spent int64 `json:"spent"`
	}
	if err := s.getJSON(ctx, "/v1/users/"+user+"/spent", &out); err != nil {
		return 0, err
	}
	return out.Spent, nil
}

// RenewMany renews every subscription in reqs concurrently, one result item
// per request in input order. A failing renewal never aborts the others.
// SubID must be unique within one batch; it is the result correlation key.
func (s *Service) RenewMany(ctx context.Context, reqs []RenewRequest, opts ...batch.Option) batch.Result[uint64, RenewOutcome] {
	byID := make(map[uint64]RenewRequest, len(reqs))
	ids := make([]uint64, len(reqs))
	for i, req := range reqs {
		ids[i] = req.SubID
		byID[req.SubID] = req
	}

	s.logger.Info().Int("count", len(ids)).Msg("Starting renewal batch")

	return batch.Run(ctx, ids, func(ctx context.Context, id uint64) (RenewOutcome, error) {
		outcome, err := s.Renew(ctx, byID[id])
		if err != nil {
			// The item record carries the service's reason, not the
			// transport wrapping.
			return RenewOutcome{}, errors.New(failureMessage(err))
		}
		return *outcome, nil
	}, opts...)
}

// CancelMany cancels every subscription id concurrently, one result item per
// id in input order.
func (s *Service) CancelMany(ctx context.Context, ids []uint64, opts ...batch.Option) batch.Result[uint64, Subscription] {
	s.logger.Info().Int("count", len(ids)).Msg("Starting cancellation batch")

	return batch.Run(ctx, ids, func(ctx context.Context, id uint64) (Subscription, error) {
		sub, err := s.Cancel(ctx, id)
		if err != nil {
			return Subscription{}, errors.New(failureMessage(err))
		}
		return *sub, nil
	}, opts...)
}

// getJSON issues a GET and decodes the JSON response into out.
func (s *Service) getJSON(ctx context.Context, endpoint string, out any) error {
	resp, err := s.client.Get(ctx, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// postJSON issues a POST with a JSON body and, when out is non-nil, decodes
// the JSON response into it.
func (s *Service) postJSON(ctx context.Context, endpoint string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
	}

	resp, err := s.client.Post(ctx, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// failureMessage extracts the human-readable reason from an operation error.
func failureMessage(err error) string {
	var f *client.Failure
	if errors.As(err, &f) {
		return f.Message()
	}
	return err.Error()
}
