package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"coursebook/internal/adapters/email"
	"coursebook/internal/adapters/markdown"
	"coursebook/internal/domain/apperr"
	domain "coursebook/internal/domain/outbox"
)

// OutboxProcessor delivers queued notifications and retries failures with
// exponential backoff.
type OutboxProcessor struct {
	store     OutboxStore
	executors map[string]ActionExecutor
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
	now       func() time.Time
}

// ActionExecutor executes a specific type of external action.
type ActionExecutor interface {
	// Execute runs the action with the given payload and returns the
	// provider's ID for it.
	Execute(ctx context.Context, payload string) (string, error)
}

// OutboxOption configures an OutboxProcessor.
type OutboxOption func(*OutboxProcessor)

// WithBackoff sets the retry delay bounds.
func WithBackoff(base, max time.Duration) OutboxOption {
	return func(p *OutboxProcessor) {
		p.baseDelay = base
		p.maxDelay = max
	}
}

// WithBatchSize limits how many entries one run handles.
func WithBatchSize(n int) OutboxOption {
	return func(p *OutboxProcessor) { p.batchSize = n }
}

// WithClock replaces the processor's time source.
func WithClock(now func() time.Time) OutboxOption {
	return func(p *OutboxProcessor) { p.now = now }
}

// NewOutboxProcessor creates a new outbox processor.
func NewOutboxProcessor(store OutboxStore, executors map[string]ActionExecutor, opts ...OutboxOption) *OutboxProcessor {
	p := &OutboxProcessor{
		store:     store,
		executors: executors,
		baseDelay: 30 * time.Second,
		maxDelay:  1 * time.Hour,
		batchSize: 50,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessOutboxResult summarises one processing run.
type ProcessOutboxResult struct {
	Processed int
	Succeeded int
	Failed    int
}

// ProcessPending delivers every entry that is due.
// PRE: Context is valid
// POST: Due entries are attempted once; failures are rescheduled or marked failed
func (p *OutboxProcessor) ProcessPending(ctx context.Context) (ProcessOutboxResult, error) {
	now := p.now()
	entries, err := p.store.ListDue(ctx, now, p.batchSize)
	if err != nil {
		return ProcessOutboxResult{}, fmt.Errorf("list due outbox entries: %w", err)
	}

	var res ProcessOutboxResult
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		res.Processed++
		ok, err := p.processEntry(ctx, entry, now)
		if err != nil {
			slog.Error("outbox_process_failed", "entry_id", entry.ID, "action_type", entry.ActionType, "error", err.Error())
		}
		if ok {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	if res.Processed > 0 {
		slog.Info("outbox_run_complete", "processed", res.Processed, "succeeded", res.Succeeded, "failed", res.Failed)
	}
	return res, nil
}

// processEntry runs one entry and saves its new state.
func (p *OutboxProcessor) processEntry(ctx context.Context, entry domain.Entry, now time.Time) (bool, error) {
	if !entry.IsDue(now) {
		return false, nil
	}

	executor, ok := p.executors[entry.ActionType]
	if !ok {
		entry.MarkAttempt(now)
		entry.MarkFailed(fmt.Errorf("no executor registered for action type: %s", entry.ActionType), now, p.baseDelay, p.maxDelay)
		return false, p.store.Save(ctx, entry)
	}

	entry.MarkAttempt(now)
	externalID, err := executor.Execute(ctx, entry.Payload)
	if err != nil {
		entry.MarkFailed(err, now, p.baseDelay, p.maxDelay)
		slog.Warn("outbox_action_failed", "entry_id", entry.ID, "attempt", entry.Attempts, "status", entry.Status, "error", err.Error())
		return false, p.store.Save(ctx, entry)
	}
	entry.MarkSuccess(externalID)
	slog.Info("outbox_action_succeeded", "entry_id", entry.ID, "action_type", entry.ActionType, "external_id", externalID)
	return true, p.store.Save(ctx, entry)
}

// ProcessSingle manually retries one entry (admin retry), ignoring its backoff.
// PRE: entryID is non-empty
// POST: Entry is attempted once and its status updated
func (p *OutboxProcessor) ProcessSingle(ctx context.Context, entryID string) (domain.Entry, error) {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return domain.Entry{}, err
	}
	if entry.IsTerminal() && entry.Status != domain.StatusFailed {
		return domain.Entry{}, apperr.Validation("outbox.terminal", "entry can no longer be retried")
	}
	now := p.now()
	entry.Requeue(now)
	if _, err := p.processEntry(ctx, entry, now); err != nil {
		return domain.Entry{}, err
	}
	return p.store.GetByID(ctx, entryID)
}

// AbandonEntry marks an entry as abandoned by admin.
// PRE: entryID is non-empty
// POST: Entry status set to abandoned
func (p *OutboxProcessor) AbandonEntry(ctx context.Context, entryID string) error {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	entry.MarkAbandoned()
	return p.store.Save(ctx, entry)
}

// EmailExecutor sends notification emails through an email.Sender.
// The payload body is markdown and is rendered to HTML before sending.
type EmailExecutor struct {
	Sender  email.Sender
	ReplyTo string
}

// Execute sends an email from the payload.
// PRE: payload is valid JSON matching outbox.EmailPayload
// POST: email accepted by the sender, returns the provider message ID
// INVARIANT: outbox entry status managed by caller
func (e *EmailExecutor) Execute(ctx context.Context, payload string) (string, error) {
	var p domain.EmailPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.To == "" {
		return "", domain.ErrEmptyRecipient
	}
	doc, err := markdown.EmailDocument(p.Subject, p.Body)
	if err != nil {
		return "", err
	}
	res, err := e.Sender.Send(ctx, email.SendRequest{
		To:      []string{p.To},
		Subject: p.Subject,
		HTML:    doc,
		ReplyTo: e.ReplyTo,
	})
	if err != nil {
		return "", err
	}
	slog.Info("email_event", "event", "email_sent", "template", p.Template, "message_id", res.MessageID)
	return res.MessageID, nil
}
