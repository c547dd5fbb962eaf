package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/dealerreach/backend/pkg/channel"
	"github.com/dealerreach/backend/pkg/compliance"
	"github.com/dealerreach/backend/pkg/content"
	"github.com/dealerreach/backend/pkg/dnc"
	"github.com/dealerreach/backend/pkg/domain"
	"github.com/dealerreach/backend/pkg/logger"
	"github.com/dealerreach/backend/pkg/metrics"
	"github.com/dealerreach/backend/pkg/models"
	"github.com/dealerreach/backend/pkg/queue"
	"github.com/dealerreach/backend/pkg/scheduler"
)

// Worker processes due dispatch jobs for every channel. Each step is a
// hard gate; a closed legal window parks the job, a compliance block
// fails the touch, and only a provider error consumes a retry.
type Worker struct {
	table    channel.Table
	leads    domain.LeadRepository
	touches  domain.TouchRepository
	events   domain.TouchEventRepository
	registry *dnc.Registry
	caps     *compliance.CapChecker
	window   *compliance.Window
	provider content.Provider
	limiters map[models.Channel]*rate.Limiter
	metrics  *metrics.Metrics
	log      logger.Logger
	now      func() time.Time
}

// NewWorker creates a dispatch worker over a capability table whose
// transports are already attached.
func NewWorker(
	table channel.Table,
	leads domain.LeadRepository,
	touches domain.TouchRepository,
	events domain.TouchEventRepository,
	registry *dnc.Registry,
	caps *compliance.CapChecker,
	window *compliance.Window,
	provider content.Provider,
	m *metrics.Metrics,
	log logger.Logger,
) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	limiters := make(map[models.Channel]*rate.Limiter, len(table))
	for ch, cap := range table {
		limiters[ch] = cap.RateLimit.Limiter()
	}
	return &Worker{
		table:    table,
		leads:    leads,
		touches:  touches,
		events:   events,
		registry: registry,
		caps:     caps,
		window:   window,
		provider: provider,
		limiters: limiters,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Register wires one handler per channel queue onto the consumer, with
// the channel's configured concurrency.
func (w *Worker) Register(c *queue.Consumer) {
	for _, cap := range w.table {
		c.Register(cap.Queue, cap.Workers, w.Handle)
	}
}

// Handle processes one due dispatch job.
func (w *Worker) Handle(ctx context.Context, job *queue.Job) error {
	var payload scheduler.DispatchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		// Unparseable payloads can never succeed; drop them.
		w.log.Error("dropping malformed dispatch job", "job_id", job.ID, "error", err)
		return nil
	}

	start := w.now()
	err := w.dispatch(ctx, &payload)
	w.metrics.RecordDispatch(string(payload.Channel), w.now().Sub(start))
	return err
}

func (w *Worker) dispatch(ctx context.Context, p *scheduler.DispatchPayload) error {
	cap, ok := w.table.Get(p.Channel)
	if !ok {
		w.log.Error("dispatch job for unknown channel", "touch_id", p.TouchID, "channel", p.Channel)
		return nil
	}

	// Gate 1: legal window. Email is exempt.
	now := w.now()
	if cap.LegalWindowApplies && !w.window.Contains(now) {
		delay := w.window.NextOpening(now)
		w.metrics.RecordWindowReschedule(string(p.Channel))
		w.log.Debug("send window closed, parking job", "touch_id", p.TouchID, "delay", delay)
		return queue.Reschedule(delay)
	}

	// Gate 2: idempotency. Duplicate deliveries and races with
	// cancellation both land here.
	touch, err := w.touches.GetByID(ctx, p.TouchID)
	if err != nil {
		if domain.IsNotFound(err) {
			w.log.Warn("dispatch job for missing touch", "touch_id", p.TouchID)
			return nil
		}
		return err
	}
	if touch.Status != models.StatusPending {
		return nil
	}

	// Gate 3: DNC preflight, re-run because days may have passed since
	// scheduling.
	decision, err := w.registry.Preflight(ctx, p.LeadID, p.Channel)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		w.metrics.RecordComplianceBlock(decision.Reason)
		return w.failTouch(ctx, touch, decision.Reason)
	}

	// Gate 4: the lead must still carry the contact field.
	lead, err := w.leads.GetByID(ctx, p.LeadID)
	if err != nil {
		return err
	}
	if !lead.ReachableOn(p.Channel) {
		return w.failTouch(ctx, touch, "unreachable")
	}

	// Gate 5: frequency caps, evaluated against sent counts right now.
	decision, err = w.caps.Check(ctx, p.LeadID, p.Channel, now)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		w.metrics.RecordComplianceBlock(decision.Reason)
		return w.failTouch(ctx, touch, decision.Reason)
	}

	// Gate 6: rate limit. Blocks this job only.
	if err := w.limiters[p.Channel].Wait(ctx); err != nil {
		return err
	}

	// Content generation never fails; the provider falls back to
	// templates internally.
	msg := w.provider.Generate(ctx, lead, p.Channel, touch.TemplateID)

	providerRef, err := cap.Transport.Send(ctx, lead, msg)
	if err != nil {
		// The job system owns retry policy.
		return fmt.Errorf("failed to send touch %s: %w", touch.ID, err)
	}

	sentAt := w.now()
	moved, err := w.touches.MarkSent(ctx, touch.ID, sentAt, msg.Text, msg.Variant, providerRef)
	if err != nil {
		return err
	}
	if !moved {
		// Lost a race after the send; the event below still records it.
		w.log.Warn("touch already settled after send", "touch_id", touch.ID)
	}

	w.metrics.RecordTouchSent(string(p.Channel))
	w.log.Info("touch sent", "touch_id", touch.ID, "lead_id", lead.ID,
		"channel", p.Channel, "variant", msg.Variant, "source", msg.Source)

	return w.events.Append(ctx, &models.TouchEvent{
		TouchID:   touch.ID,
		EventType: string(models.StatusSent),
		Payload: map[string]string{
			"channel":        string(p.Channel),
			"variant":        msg.Variant,
			"content_source": string(msg.Source),
			"provider_ref":   providerRef,
		},
	})
}

func (w *Worker) failTouch(ctx context.Context, touch *models.Touch, reason string) error {
	moved, err := w.touches.UpdateStatusFrom(ctx, touch.ID, models.StatusPending, models.StatusFailed)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}
	w.metrics.RecordTouchFailed(string(touch.Channel), reason)
	w.log.Info("touch blocked", "touch_id", touch.ID, "channel", touch.Channel, "reason", reason)
	return w.events.Append(ctx, &models.TouchEvent{
		TouchID:   touch.ID,
		EventType: string(models.StatusFailed),
		Payload:   map[string]string{"reason": reason},
	})
}

// OnJobFailure is the queue failure hook: a job that exhausted its
// retries settles its touch as failed so nothing disappears silently.
func (w *Worker) OnJobFailure(ctx context.Context, job *queue.Job, cause error) {
	var payload scheduler.DispatchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		w.log.Error("failure hook got malformed payload", "job_id", job.ID, "error", err)
		return
	}

	moved, err := w.touches.UpdateStatusFrom(ctx, payload.TouchID, models.StatusPending, models.StatusFailed)
	if err != nil {
		w.log.Error("failed to settle exhausted touch", "touch_id", payload.TouchID, "error", err)
		return
	}
	if !moved {
		return
	}
	w.metrics.RecordTouchFailed(string(payload.Channel), "retries_exhausted")
	w.log.Error("touch failed after retries", "touch_id", payload.TouchID,
		"attempts", job.Attempts, "error", cause)

	if err := w.events.Append(ctx, &models.TouchEvent{
		TouchID:   payload.TouchID,
		EventType: string(models.StatusFailed),
		Payload:   map[string]string{"reason": "retries_exhausted", "error": cause.Error()},
	}); err != nil {
		w.log.Error("failed to record exhaustion event", "touch_id", payload.TouchID, "error", err)
	}
}
