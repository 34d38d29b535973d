package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/linkmage/analyzer/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultParallelism = 8

// Sender delivers one email
type Sender interface {
	Send(ctx context.Context, to Recipient, message string) error
}

// Observer is told the outcome ("sent" or "failed") of every send
type Observer func(outcome string)

// Notifier fans an update message out to many recipients
type Notifier struct {
	sender      Sender
	parallelism int
	observe     Observer
	logger      *zap.Logger
}

// NotifierOption configures a Notifier
type NotifierOption func(*Notifier)

// WithParallelism bounds the number of sends in flight
func WithParallelism(n int) NotifierOption {
	return func(nt *Notifier) {
		if n > 0 {
			nt.parallelism = n
		}
	}
}

// WithSendObserver registers an observer for send outcomes
func WithSendObserver(o Observer) NotifierOption {
	return func(nt *Notifier) { nt.observe = o }
}

// NewNotifier creates a notifier over sender
func NewNotifier(sender Sender, logger *zap.Logger, opts ...NotifierOption) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{
		sender:      sender,
		parallelism: defaultParallelism,
		logger:      logger.Named("notifier"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Recipients turns profiles into recipients, skipping profiles without an email
func Recipients(profiles []models.Profile) []Recipient {
	out := make([]Recipient, 0, len(profiles))
	for _, p := range profiles {
		if strings.TrimSpace(p.Email) == "" {
			continue
		}
		out = append(out, Recipient{Email: p.Email, Name: p.DisplayName()})
	}
	return out
}

// Notify sends message to every profile with an email and returns how many
// sends were attempted. The first failed send fails the whole batch and
// cancels sends that have not started.
func (n *Notifier) Notify(ctx context.Context, profiles []models.Profile, message string) (int, error) {
	recipients := Recipients(profiles)
	if len(recipients) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.parallelism)

	for _, r := range recipients {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := n.sender.Send(gctx, r, message); err != nil {
				n.record("failed")
				return err
			}
			n.record("sent")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		n.logger.Error("update batch failed",
			zap.Int("recipients", len(recipients)),
			zap.Error(err))
		return 0, fmt.Errorf("failed to send updates: %w", err)
	}

	n.logger.Info("update batch sent", zap.Int("recipients", len(recipients)))
	return len(recipients), nil
}

func (n *Notifier) record(outcome string) {
	if n.observe != nil {
		n.observe(outcome)
	}
}
