// Package booking books one slot for several members in a single action,
// isolating per-member failure.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/example/swellwatch/internal/provider"
)

// AttemptResult is the outcome for one recipient. A batch always yields one
// result per input recipient, in input order.
type AttemptResult struct {
	RecipientID string `json:"recipient_id"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// Booker is the slice of the provider client the orchestrator needs.
type Booker interface {
	CreateBooking(ctx context.Context, memberID string, slot provider.SlotDescriptor) (provider.Confirmation, error)
}

// Orchestrator issues booking attempts strictly sequentially, each awaited
// before the next. Concurrent attempts against a vacancy-limited slot would
// need atomic reservation on the provider side, which it does not offer;
// sequential attempts let an exhausted slot fail fast instead of racing.
type Orchestrator struct {
	booker     Booker
	limiter    *rate.Limiter
	invalidate func()
	logger     *slog.Logger
}

// NewOrchestrator builds an orchestrator. pace spaces consecutive attempts
// (0 disables pacing). invalidate, if non-nil, is called exactly once after
// a batch containing at least one success; it refreshes the caller-owned
// member/booking/availability caches.
func NewOrchestrator(booker Booker, pace time.Duration, invalidate func(), logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		booker:     booker,
		invalidate: invalidate,
		logger:     logger,
	}
	if pace > 0 {
		o.limiter = rate.NewLimiter(rate.Every(pace), 1)
	}
	return o
}

// Book attempts the slot once per recipient. One recipient's failure never
// aborts the rest; the result list is always fully populated.
func (o *Orchestrator) Book(ctx context.Context, slot provider.SlotDescriptor, recipients []string) []AttemptResult {
	runID := uuid.New().String()

	if err := slot.Validate(); err != nil {
		o.logger.Warn("rejecting batch with invalid slot", "run_id", runID, "error", err)
		results := make([]AttemptResult, len(recipients))
		for i, id := range recipients {
			results[i] = AttemptResult{RecipientID: id, Error: fmt.Sprintf("invalid slot: %v", err)}
		}
		return results
	}

	if slot.Available > 0 && len(recipients) > slot.Available {
		// Advisory only: the batch still runs; later attempts fail fast
		// once the slot is exhausted.
		o.logger.Warn("recipients exceed advertised vacancies",
			"run_id", runID, "recipients", len(recipients), "available", slot.Available)
	}

	results := make([]AttemptResult, 0, len(recipients))
	booked := false
	for _, id := range recipients {
		res := o.attempt(ctx, runID, id, slot)
		if res.Success {
			booked = true
		}
		results = append(results, res)
	}

	if booked && o.invalidate != nil {
		o.invalidate()
	}
	return results
}

func (o *Orchestrator) attempt(ctx context.Context, runID, memberID string, slot provider.SlotDescriptor) (res AttemptResult) {
	res = AttemptResult{RecipientID: memberID}
	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Error = fmt.Sprintf("booking aborted: %v", p)
			o.logger.Error("booking attempt panicked", "run_id", runID, "member_id", memberID, "panic", p)
		}
	}()

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			res.Error = err.Error()
			return res
		}
	}

	conf, err := o.booker.CreateBooking(ctx, memberID, slot)
	if err != nil {
		res.Error = err.Error()
		o.logger.Warn("booking attempt failed", "run_id", runID, "member_id", memberID, "error", err)
		return res
	}

	res.Success = true
	o.logger.Info("booking attempt succeeded",
		"run_id", runID, "member_id", memberID, "voucher", conf.VoucherCode)
	return res
}
