package strategy

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/eddiefleurent/stanley_straddle/internal/broker"
	"github.com/eddiefleurent/stanley_straddle/internal/models"
	"github.com/eddiefleurent/stanley_straddle/internal/retry"
	"github.com/eddiefleurent/stanley_straddle/internal/storage"
)

// Watchdog watches the session clock and force-closes everything at the end
// of the window. It is the only writer of the engine's run flag.
type Watchdog struct {
	session  *Session
	broker   broker.Broker
	closer   *retry.Client
	reporter *Reporter
	journal  *storage.Journal
	interval time.Duration
	// skipForceClose leaves positions open at session end unless the exit was
	// forced by the operator.
	skipForceClose bool
	sleep          func(ctx context.Context, d time.Duration) bool
}

// NewWatchdog builds the session watchdog.
func NewWatchdog(session *Session, b broker.Broker, closer *retry.Client, reporter *Reporter, journal *storage.Journal, interval time.Duration, skipForceClose bool) *Watchdog {
	return &Watchdog{
		session:        session,
		broker:         b,
		closer:         closer,
		reporter:       reporter,
		journal:        journal,
		interval:       interval,
		skipForceClose: skipForceClose,
		sleep:          sleepCtx,
	}
}

// Run polls until the session ends, liquidates, and only then clears the run
// flag so the legs cannot re-enter mid-liquidation.
func (w *Watchdog) Run(ctx context.Context, running *atomic.Bool) error {
	for !w.session.Ended() {
		if !w.sleep(ctx, w.interval) {
			running.Store(false)
			return nil
		}
	}

	w.reporter.Report(ctx, "Session ended, closing out")

	var err error
	if w.skipForceClose && !w.session.ForcedExit() {
		w.reporter.Report(ctx, "Force close skipped by configuration, positions left open")
	} else {
		err = w.forceClose(ctx)
	}

	running.Store(false)
	return err
}

// forceClose cancels every working order and unwinds both legs. Each leg is
// attempted independently so one failure cannot strand the other side.
func (w *Watchdog) forceClose(ctx context.Context) error {
	var firstErr error

	if err := w.broker.CloseAllOpenOrders(ctx); err != nil {
		w.reporter.Logger().WithError(err).Error("Failed to cancel open orders at session end")
		firstErr = fmt.Errorf("canceling open orders: %w", err)
	}

	for _, side := range []models.Side{models.SideCall, models.SidePut} {
		snap, ok := w.journal.LegSnapshot(side)
		if !ok || !snap.OrderPlaced {
			continue
		}
		if err := w.closer.CloseLegWithRetry(ctx, side, snap.HedgeStrike, snap.TargetStrike); err != nil {
			w.reporter.Report(ctx, fmt.Sprintf("Failed to close %s leg at session end: %v", side, err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		w.reporter.Report(ctx, fmt.Sprintf("%s leg closed at session end", side))
	}

	if firstErr == nil {
		w.reporter.Report(ctx, "All positions closed for the day")
	}
	return firstErr
}
