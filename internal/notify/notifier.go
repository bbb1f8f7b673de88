// Package notify publishes trading events to operator-facing channels.
// Delivery is fire-and-forget from the trading core's perspective: a
// failing channel is logged and never affects order state.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Category identifies the kind of event being published, used for
// operator-side filtering.
type Category string

const (
	CategorySignalDiscarded   Category = "signal_discarded"
	CategoryBatchResult       Category = "batch_result"
	CategoryCredentialExpired Category = "credential_expired"
	CategoryCredentialWarning Category = "credential_warning"
	CategoryMarketTransition  Category = "market_transition"
	CategoryEODSummary        Category = "eod_summary"
)

// Severity grades an event for display.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is one notification.
type Event struct {
	Category Category
	Severity Severity
	Title    string
	Body     string
}

// Sender is the interface each notification channel implements.
type Sender interface {
	Send(ctx context.Context, ev Event) error
	Name() string
}

// Notifier dispatches events to all registered senders, filtered by an
// allowed category set. An empty set allows everything.
type Notifier struct {
	senders    []Sender
	categories map[Category]bool
	logger     *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only
// events whose category appears in categories are forwarded; an empty
// list forwards all.
func NewNotifier(senders []Sender, categories []string, logger *slog.Logger) *Notifier {
	allowed := make(map[Category]bool, len(categories))
	for _, c := range categories {
		allowed[Category(strings.TrimSpace(c))] = true
	}
	return &Notifier{
		senders:    senders,
		categories: allowed,
		logger:     logger.With(slog.String("component", "notifier")),
	}
}

// Publish delivers the event to every sender. Failures are collected and
// returned combined, but a single failing sender never blocks the rest.
// Callers in the trading path ignore the returned error beyond logging.
func (n *Notifier) Publish(ctx context.Context, ev Event) error {
	if len(n.categories) > 0 && !n.categories[ev.Category] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("category", string(ev.Category)),
		)
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, ev); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("category", string(ev.Category)),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", ev.Title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
