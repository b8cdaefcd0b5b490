package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/stanley_straddle/internal/broker"
	"github.com/eddiefleurent/stanley_straddle/internal/models"
	"github.com/eddiefleurent/stanley_straddle/internal/storage"
	"github.com/eddiefleurent/stanley_straddle/internal/util"
)

// ErrContractQualification means the gateway could not resolve the short
// contract. The entry attempt is abandoned; nothing was ordered.
var ErrContractQualification = errors.New("contract qualification failed")

// optionExchange routes option orders through the broker's smart router.
const optionExchange = "SMART"

// LegConfig holds the per-side strategy parameters.
type LegConfig struct {
	Side     models.Side
	Symbol   string
	Expiry   string // YYYYMMDD
	TickSize float64

	TargetStrike  float64
	HedgeStrike   float64
	PositionSize  int
	HedgeQuantity int

	StopLossPct float64
	TriggerPct  float64
	TightenPct  float64

	CheckInterval   time.Duration
	ReentryInterval time.Duration
	ReentryLimit    int
}

// Leg runs one side of the position: the short at the target strike plus its
// OTM hedge. All state mutation happens on the leg's own goroutine.
type Leg struct {
	cfg      LegConfig
	state    *models.LegState
	broker   broker.Broker
	reporter *Reporter
	journal  *storage.Journal
	sleep    func(ctx context.Context, d time.Duration) bool
}

// NewLeg builds a leg in the idle phase.
func NewLeg(cfg LegConfig, b broker.Broker, reporter *Reporter, journal *storage.Journal) *Leg {
	return &Leg{
		cfg:      cfg,
		state:    models.NewLegState(cfg.Side, cfg.TargetStrike, cfg.HedgeStrike, cfg.ReentryLimit),
		broker:   b,
		reporter: reporter,
		journal:  journal,
		sleep:    sleepCtx,
	}
}

// State returns the leg's live state. Callers outside the leg goroutine must
// use journal snapshots instead.
func (l *Leg) State() *models.LegState { return l.state }

func (l *Leg) contractSpec(strike float64) broker.ContractSpec {
	return broker.ContractSpec{
		Symbol:     l.cfg.Symbol,
		Expiry:     l.cfg.Expiry,
		Strike:     strike,
		Right:      l.cfg.Side.Right(),
		Exchange:   optionExchange,
		Currency:   "USD",
		Multiplier: "100",
	}
}

func (l *Leg) sideName() string {
	return strings.ToUpper(string(l.cfg.Side)[:1]) + string(l.cfg.Side)[1:]
}

func (l *Leg) log() *logrus.Entry {
	return l.reporter.Logger().WithField("side", l.cfg.Side)
}

func (l *Leg) publish() {
	l.journal.PublishLeg(l.state.Snapshot())
}

// OpenHedge buys the OTM hedge contracts.
func (l *Leg) OpenHedge(ctx context.Context) error {
	spec := l.contractSpec(l.cfg.HedgeStrike)
	_, fill, err := l.broker.PlaceMarketOrder(ctx, spec, l.cfg.HedgeQuantity, broker.OrderSideBuy)
	if err != nil {
		return fmt.Errorf("buying %s hedge: %w", l.cfg.Side, err)
	}
	l.reporter.Report(ctx, fmt.Sprintf("%s hedge bought: strike %.2f, qty %d, fill %.2f",
		l.sideName(), l.cfg.HedgeStrike, l.cfg.HedgeQuantity, fill))
	return nil
}

// CloseHedge sells the hedge contracts back.
func (l *Leg) CloseHedge(ctx context.Context) error {
	spec := l.contractSpec(l.cfg.HedgeStrike)
	_, fill, err := l.broker.PlaceMarketOrder(ctx, spec, l.cfg.HedgeQuantity, broker.OrderSideSell)
	if err != nil {
		return fmt.Errorf("selling %s hedge: %w", l.cfg.Side, err)
	}
	l.reporter.Report(ctx, fmt.Sprintf("%s hedge sold: strike %.2f, qty %d, fill %.2f",
		l.sideName(), l.cfg.HedgeStrike, l.cfg.HedgeQuantity, fill))
	return nil
}

// Enter sells the short at the target strike and places its stop-buy order.
func (l *Leg) Enter(ctx context.Context) error {
	spec := l.contractSpec(l.cfg.TargetStrike)

	if quote, err := l.broker.GetLatestPremium(ctx, l.cfg.Symbol, l.cfg.Expiry, l.cfg.TargetStrike, l.cfg.Side.Right()); err == nil {
		l.log().Infof("%s premium before entry: bid %.2f ask %.2f", l.cfg.Side, quote.Bid, quote.Ask)
	} else {
		l.log().WithError(err).Warn("Premium lookup before entry failed")
	}

	ref, err := l.broker.QualifyContract(ctx, spec)
	if err != nil {
		return fmt.Errorf("%w for %s %.2f: %v", ErrContractQualification, l.cfg.Side, l.cfg.TargetStrike, err)
	}
	if ref == nil {
		return fmt.Errorf("%w for %s %.2f: gateway returned no contract", ErrContractQualification, l.cfg.Side, l.cfg.TargetStrike)
	}

	_, fill, err := l.broker.PlaceMarketOrder(ctx, spec, l.cfg.PositionSize, broker.OrderSideSell)
	if err != nil {
		return fmt.Errorf("selling %s short: %w", l.cfg.Side, err)
	}

	stopLevel := util.RoundToTick(fill*(1+l.cfg.StopLossPct/100), l.cfg.TickSize)
	if err := l.state.RecordFill(ref.ID, fill, stopLevel); err != nil {
		return err
	}
	l.reporter.Report(ctx, fmt.Sprintf("%s order placed at %.2f, stop loss at %.2f",
		l.sideName(), fill, stopLevel))

	stopID, err := l.broker.PlaceStopOrder(ctx, spec, broker.OrderSideBuy, l.cfg.PositionSize, stopLevel)
	if err != nil {
		// The monitor reads an empty stop book as a stop-out, which unwinds the
		// unprotected short on the next check.
		l.log().WithError(err).Error("Failed to place stop order")
	} else {
		l.state.StopOrderID = stopID
	}

	l.publish()
	return nil
}

// Run drives the leg until its phase is closed, the context is canceled, or
// the run flag clears.
func (l *Leg) Run(ctx context.Context, running *atomic.Bool) error {
	for ctx.Err() == nil && running.Load() {
		switch l.state.Phase {
		case models.PhaseEntered:
			if l.monitorOnce(ctx) {
				if !l.sleep(ctx, l.cfg.CheckInterval) {
					return nil
				}
			}
		case models.PhaseIdle:
			done := l.reentryOnce(ctx)
			if done {
				return nil
			}
			if !l.sleep(ctx, l.cfg.ReentryInterval) {
				return nil
			}
		case models.PhaseClosed:
			return nil
		default:
			return fmt.Errorf("%s leg in unexpected phase %s", l.cfg.Side, l.state.Phase)
		}
	}

	// Session over: record the terminal phase so the journal reflects it.
	if l.state.Phase == models.PhaseIdle || l.state.Phase == models.PhaseEntered {
		if err := l.state.Transition(models.PhaseClosed, models.CondSessionEnd); err == nil {
			l.publish()
		}
	}
	return nil
}

// monitorOnce runs one monitoring iteration of an entered leg: detect a
// stop-out, otherwise evaluate the trailing-stop ratchet. The return value is
// false when the caller should re-evaluate immediately.
func (l *Leg) monitorOnce(ctx context.Context) bool {
	quote, err := l.broker.GetLatestPremium(ctx, l.cfg.Symbol, l.cfg.Expiry, l.cfg.TargetStrike, l.cfg.Side.Right())
	if err != nil {
		l.log().WithError(err).Warn("Premium fetch failed during monitoring")
		return true
	}

	orders, err := l.broker.GetOpenOrders(ctx)
	if err != nil {
		l.log().WithError(err).Warn("Open order fetch failed during monitoring")
		return true
	}

	if !hasWorkingStop(orders, l.cfg.Side) {
		l.onStopTriggered(ctx, quote)
		return false
	}

	if quote.Ask > l.state.TriggerThreshold(l.cfg.TriggerPct) {
		return true
	}

	newStop := util.RoundToTick(l.state.StopLevel-l.state.FillPrice*(l.cfg.TightenPct/100), l.cfg.TickSize)
	priorStop := l.state.StopLevel
	if err := l.state.ApplyTighten(newStop); err != nil {
		l.log().WithError(err).Warn("Skipping stop tighten")
		return true
	}

	l.reporter.Report(ctx, fmt.Sprintf("%s trailing stop tightened (step %d): fill %.2f, ask %.2f, stop %.2f -> %.2f",
		l.sideName(), l.state.EscalationStep, l.state.FillPrice, quote.Ask, priorStop, newStop))

	spec := l.contractSpec(l.cfg.TargetStrike)
	if err := l.broker.ModifyStopOrder(ctx, spec, broker.OrderSideBuy, l.cfg.PositionSize, newStop, l.state.StopOrderID); err != nil {
		// Keep the tightened level locally; the next trigger retries the modify
		// at an even lower level.
		l.log().WithError(err).Error("Failed to modify stop order")
	}

	l.publish()
	return true
}

// onStopTriggered handles the stop order leaving the book: the short was
// bought back, so unwind the hedge and go idle for a possible re-entry.
func (l *Leg) onStopTriggered(ctx context.Context, quote *broker.Quote) {
	priorStop := l.state.StopLevel

	if err := l.CloseHedge(ctx); err != nil {
		l.log().WithError(err).Error("Failed to close hedge after stop-out")
	}

	if err := l.state.RecordStopTriggered(); err != nil {
		l.log().WithError(err).Error("Stop-out transition rejected")
		return
	}
	if err := l.state.Transition(models.PhaseIdle, models.CondHedgeClosed); err != nil {
		l.log().WithError(err).Error("Idle transition rejected")
		return
	}

	l.reporter.Report(ctx, fmt.Sprintf(
		"%s STOP LOSS TRIGGERED: strike %.2f, size %d, stop was %.2f, mid now %.2f",
		strings.ToUpper(string(l.cfg.Side)), l.cfg.TargetStrike, l.cfg.PositionSize, priorStop, quote.Mid))

	l.publish()
}

// reentryOnce evaluates the re-entry condition for an idle leg. It returns
// true when the leg is done for the day.
func (l *Leg) reentryOnce(ctx context.Context) bool {
	// A leg that never filled has no reference price, so it stays dormant.
	if l.state.FillPrice <= 0 {
		return false
	}

	// An exhausted leg terminates right away, no matter where the price is.
	if !l.state.CanReenter() {
		l.reporter.Report(ctx, fmt.Sprintf("%s re-entry limit reached (%d), leg closed for the day",
			l.sideName(), l.state.ReentryLimit))
		if err := l.state.Transition(models.PhaseClosed, models.CondReentryExhausted); err != nil {
			l.log().WithError(err).Error("Close transition rejected")
		}
		l.publish()
		return true
	}

	quote, err := l.broker.GetLatestPremium(ctx, l.cfg.Symbol, l.cfg.Expiry, l.cfg.TargetStrike, l.cfg.Side.Right())
	if err != nil {
		l.log().WithError(err).Warn("Premium fetch failed during re-entry wait")
		return false
	}
	if quote.Ask > l.state.FillPrice {
		return false
	}

	// The slot is spent when the condition fires, whether or not the attempt
	// below succeeds.
	l.state.ReentryCount++
	l.reporter.Report(ctx, fmt.Sprintf("%s re-entry %d of %d: ask %.2f at or below last fill %.2f",
		l.sideName(), l.state.ReentryCount, l.state.ReentryLimit, quote.Ask, l.state.FillPrice))

	if err := l.OpenHedge(ctx); err != nil {
		l.log().WithError(err).Error("Re-entry hedge failed")
		l.publish()
		return false
	}
	if err := l.Enter(ctx); err != nil {
		l.log().WithError(err).Error("Re-entry failed")
		l.publish()
		return false
	}
	return false
}

// hasWorkingStop reports whether an option order for the leg's right is still
// on the book.
func hasWorkingStop(orders []broker.OrderView, side models.Side) bool {
	for _, o := range orders {
		if o.SecType == broker.SecTypeOption && o.Right == side.Right() {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
