package email

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// NoopSender logs sends without delivering them and keeps what it was
// asked to send. It stands in for Resend in development and tests.
type NoopSender struct {
	mu   sync.Mutex
	sent []SendRequest
	fail error
}

// NewNoopSender creates a new NoopSender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// FailWith makes every following send return err (nil restores success).
func (s *NoopSender) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Sent returns a copy of the accepted requests in send order.
func (s *NoopSender) Sent() []SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SendRequest(nil), s.sent...)
}

// Send logs the email but does not deliver it.
// PRE: req is a valid SendRequest
// POST: Returns a noop result without actual delivery
func (s *NoopSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return SendResult{}, s.fail
	}
	s.sent = append(s.sent, req)
	slog.Info("noop_email_send", "to_count", len(req.To), "subject", req.Subject)
	return SendResult{
		MessageID: fmt.Sprintf("noop-%d", len(s.sent)),
		SentAt:    time.Now(),
	}, nil
}

// SendBatch logs the batch but does not deliver.
// PRE: reqs is a slice of SendRequests
// POST: Returns noop results for each request without actual delivery
func (s *NoopSender) SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error) {
	results := make([]SendResult, 0, len(reqs))
	for _, req := range reqs {
		res, err := s.Send(ctx, req)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
