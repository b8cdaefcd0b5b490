package strategy

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/stanley_straddle/internal/broker"
	"github.com/eddiefleurent/stanley_straddle/internal/config"
	"github.com/eddiefleurent/stanley_straddle/internal/models"
	"github.com/eddiefleurent/stanley_straddle/internal/retry"
	"github.com/eddiefleurent/stanley_straddle/internal/storage"
)

// secTypeIndex is the security type used for underlying strike and price
// lookups.
const secTypeIndex = "IND"

// Engine orchestrates one trading session: gate on the window, derive
// strikes, open both legs, then hand control to the leg monitors and the
// watchdog.
type Engine struct {
	cfg      *config.Config
	broker   broker.Broker
	reporter *Reporter
	journal  *storage.Journal
	session  *Session
	closer   *retry.Client
	running  atomic.Bool
	sleep    func(ctx context.Context, d time.Duration) bool
}

// NewEngine wires the session together.
func NewEngine(cfg *config.Config, b broker.Broker, reporter *Reporter, journal *storage.Journal, session *Session) *Engine {
	return &Engine{
		cfg:      cfg,
		broker:   b,
		reporter: reporter,
		journal:  journal,
		session:  session,
		closer:   retry.NewClient(b, reporter.Logger()),
		sleep:    sleepCtx,
	}
}

// Run executes the session from connect to teardown.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.broker.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to gateway: %w", err)
	}
	mode := "live"
	if e.cfg.IsPaperTrading() {
		mode = "paper"
	}
	e.reporter.Report(ctx, fmt.Sprintf("Connected to gateway (%s), session %s", mode, e.journal.SessionID()))

	if e.cfg.Toggles.Reset {
		return e.runReset(ctx)
	}
	if e.cfg.Toggles.FuncTest {
		return e.runFuncTest(ctx)
	}

	if done, err := e.waitForWindow(ctx); done || err != nil {
		return err
	}

	strikes, err := e.deriveStrikes(ctx)
	if err != nil {
		return err
	}
	e.journal.SetStrikes(strikes)
	e.reporter.Report(ctx, fmt.Sprintf(
		"Strikes for today: underlying %.2f, ATM %.2f, call %.2f/%.2f, put %.2f/%.2f",
		strikes.Underlying, strikes.ATM, strikes.CallTarget, strikes.CallHedge, strikes.PutTarget, strikes.PutHedge))

	callLeg := NewLeg(e.legConfig(models.SideCall, strikes), e.broker, e.reporter, e.journal)
	putLeg := NewLeg(e.legConfig(models.SidePut, strikes), e.broker, e.reporter, e.journal)

	if err := e.openPositions(ctx, callLeg, putLeg); err != nil {
		e.reporter.Report(ctx, fmt.Sprintf("Entry failed, aborting session: %v", err))
		return err
	}

	if err := e.journal.Save(); err != nil {
		e.reporter.Logger().WithError(err).Warn("Failed to save journal after entry")
	}

	watchdog := NewWatchdog(e.session, e.broker, e.closer, e.reporter, e.journal,
		e.cfg.PollInterval(), e.cfg.Strategy.SkipForceClose)

	e.running.Store(true)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return callLeg.Run(gctx, &e.running) })
	g.Go(func() error { return putLeg.Run(gctx, &e.running) })
	g.Go(func() error { return watchdog.Run(gctx, &e.running) })

	err = g.Wait()
	e.reporter.Report(ctx, "Session complete")
	return err
}

// runReset liquidates whatever is resting at the broker and exits. Used to
// clean up after an aborted session.
func (e *Engine) runReset(ctx context.Context) error {
	e.reporter.Report(ctx, "Reset requested: canceling orders and hedges")
	if err := e.broker.CloseAllOpenOrders(ctx); err != nil {
		return fmt.Errorf("reset: canceling open orders: %w", err)
	}
	if err := e.broker.CancelHedges(ctx); err != nil {
		return fmt.Errorf("reset: closing hedges: %w", err)
	}
	e.reporter.Report(ctx, "Reset complete, verify remaining positions manually")
	return nil
}

// runFuncTest exercises the liquidation paths against the gateway without
// trading, then exits.
func (e *Engine) runFuncTest(ctx context.Context) error {
	e.reporter.Report(ctx, "Functional test: exercising hedge and order cancellation")
	if err := e.broker.CancelHedges(ctx); err != nil {
		return fmt.Errorf("func test: closing hedges: %w", err)
	}
	if err := e.broker.CloseAllOpenOrders(ctx); err != nil {
		return fmt.Errorf("func test: canceling open orders: %w", err)
	}
	e.reporter.Report(ctx, "Functional test complete")
	return nil
}

// waitForWindow blocks until the session window opens. The first return is
// true when the session should not trade at all today.
func (e *Engine) waitForWindow(ctx context.Context) (bool, error) {
	for {
		if e.session.Ended() {
			e.reporter.Report(ctx, "Trading window already closed for today, exiting")
			return true, nil
		}
		if e.session.InWindow() {
			return false, nil
		}
		e.reporter.Logger().Infof("Waiting for session window to open at %s",
			e.session.Start().Format("15:04:05 MST"))
		if !e.sleep(ctx, e.cfg.PollInterval()) {
			return true, ctx.Err()
		}
	}
}

// deriveStrikes fetches the chain and the underlying price and picks today's
// strikes.
func (e *Engine) deriveStrikes(ctx context.Context) (*models.StrikeSet, error) {
	strikes, err := e.broker.FetchStrikes(ctx, e.cfg.Strategy.Instrument, e.cfg.Strategy.Exchange, secTypeIndex)
	if err != nil {
		return nil, fmt.Errorf("fetching strikes: %w", err)
	}
	price, err := e.broker.CurrentPrice(ctx, e.cfg.Strategy.Instrument, e.cfg.Strategy.Exchange)
	if err != nil {
		return nil, fmt.Errorf("fetching underlying price: %w", err)
	}

	set, err := SelectStrikes(strikes, price, StrikeConfig{
		CalcValues:            e.cfg.Strategy.CalcValues,
		StrikeIncrement:       e.cfg.StrikeIncrement(),
		ATMOffset:             e.cfg.Strategy.ATMOffset,
		CallHedgeOffset:       e.cfg.Strategy.Call.HedgeOffset,
		PutHedgeOffset:        e.cfg.Strategy.Put.HedgeOffset,
		StaticCallStrike:      e.cfg.Strategy.Call.Strike,
		StaticCallHedgeStrike: e.cfg.Strategy.Call.HedgeStrike,
		StaticPutStrike:       e.cfg.Strategy.Put.Strike,
		StaticPutHedgeStrike:  e.cfg.Strategy.Put.HedgeStrike,
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

func (e *Engine) legConfig(side models.Side, strikes *models.StrikeSet) LegConfig {
	sideCfg := e.cfg.Strategy.Call
	target, hedge := strikes.CallTarget, strikes.CallHedge
	if side == models.SidePut {
		sideCfg = e.cfg.Strategy.Put
		target, hedge = strikes.PutTarget, strikes.PutHedge
	}
	return LegConfig{
		Side:            side,
		Symbol:          e.cfg.Strategy.Instrument,
		Expiry:          e.cfg.Strategy.Expiry,
		TickSize:        e.cfg.TickSize(),
		TargetStrike:    target,
		HedgeStrike:     hedge,
		PositionSize:    sideCfg.PositionSize,
		HedgeQuantity:   sideCfg.HedgeQuantity,
		StopLossPct:     sideCfg.StopLossPct,
		TriggerPct:      sideCfg.TriggerPct,
		TightenPct:      sideCfg.TightenPct,
		CheckInterval:   sideCfg.CheckIntervalDuration(),
		ReentryInterval: sideCfg.ReentryIntervalDuration(),
		ReentryLimit:    e.cfg.Strategy.ReentryLimit,
	}
}

// openPositions buys both hedges before either short goes on, then enters the
// call followed by the put.
func (e *Engine) openPositions(ctx context.Context, callLeg, putLeg *Leg) error {
	if err := callLeg.OpenHedge(ctx); err != nil {
		return err
	}
	if err := putLeg.OpenHedge(ctx); err != nil {
		return err
	}
	if err := callLeg.Enter(ctx); err != nil {
		return err
	}
	if err := putLeg.Enter(ctx); err != nil {
		return err
	}
	return nil
}
