package strategy

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/stanley_straddle/internal/notify"
	"github.com/eddiefleurent/stanley_straddle/internal/storage"
)

// Reporter fans one operator-facing message out to the log, the notification
// channel, and the session journal.
type Reporter struct {
	logger   *logrus.Logger
	notifier notify.Notifier
	journal  *storage.Journal
}

// NewReporter wires the three sinks together.
func NewReporter(logger *logrus.Logger, notifier notify.Notifier, journal *storage.Journal) *Reporter {
	return &Reporter{logger: logger, notifier: notifier, journal: journal}
}

// Report delivers text to every sink. Notification failures are logged by the
// notifier and otherwise ignored.
func (r *Reporter) Report(ctx context.Context, text string) {
	r.logger.Info(text)
	r.journal.AppendEvent(text)
	r.notifier.Send(ctx, text)
}

// Logger exposes the underlying logger for structured non-operator logging.
func (r *Reporter) Logger() *logrus.Logger {
	return r.logger
}
