// Package notify delivers fired alerts to chat channels. Events are filtered
// by severity and rule before being fanned out to every registered sender.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a message. sev lets channels style the message.
	Send(ctx context.Context, sev domain.Severity, title, message string) error
	Name() string
}

// Options filters which alerts are delivered.
type Options struct {
	// MinSeverity drops events ranked below it. Empty means LOW.
	MinSeverity domain.Severity
	// Rules, when non-empty, restricts delivery to the named rules.
	Rules []string
}

// Notifier fans alerts out to its senders.
type Notifier struct {
	senders []Sender
	minRank int
	rules   map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier over senders.
func NewNotifier(senders []Sender, opts Options, logger *slog.Logger) *Notifier {
	rules := make(map[string]bool, len(opts.Rules))
	for _, r := range opts.Rules {
		if r = strings.ToUpper(strings.TrimSpace(r)); r != "" {
			rules[r] = true
		}
	}
	minRank := opts.MinSeverity.Rank()
	if minRank == 0 {
		minRank = domain.SeverityLow.Rank()
	}
	return &Notifier{
		senders: senders,
		minRank: minRank,
		rules:   rules,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is registered.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Wants reports whether ev passes the severity and rule filters.
func (n *Notifier) Wants(ev domain.AlertEvent) bool {
	if ev.Severity.Rank() < n.minRank {
		return false
	}
	return len(n.rules) == 0 || n.rules[ev.RuleName]
}

// NotifyAlert delivers ev when it passes the filters.
func (n *Notifier) NotifyAlert(ctx context.Context, ev domain.AlertEvent) error {
	if !n.Enabled() {
		return nil
	}
	if !n.Wants(ev) {
		n.logger.DebugContext(ctx, "alert filtered out",
			slog.String("rule", ev.RuleName),
			slog.String("severity", string(ev.Severity)),
		)
		return nil
	}
	title, body := FormatAlert(ev)
	return n.dispatch(ctx, ev.Severity, title, body)
}

// dispatch sends to every sender; one failing sender does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, sev domain.Severity, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, sev, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// FormatAlert renders ev as a title and a body listing the metadata in key
// order.
func FormatAlert(ev domain.AlertEvent) (title, body string) {
	title = fmt.Sprintf("[%s] %s %s", ev.Severity, ev.Symbol, ev.RuleName)

	var b strings.Builder
	b.WriteString(ev.Message)
	keys := make([]string, 0, len(ev.Metadata))
	for k := range ev.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, ev.Metadata[k])
	}
	return title, b.String()
}
