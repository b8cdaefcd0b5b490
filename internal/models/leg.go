// Package models provides data structures and state management for the two
// strategy legs.
package models

import (
	"fmt"
)

// Side identifies which half of the position a leg manages.
type Side string

const (
	// SideCall is the short ATM call plus its OTM call hedge.
	SideCall Side = "call"
	// SidePut is the short ATM put plus its OTM put hedge.
	SidePut Side = "put"
)

// Valid returns true if the Side is one of the defined constants.
func (s Side) Valid() bool {
	return s == SideCall || s == SidePut
}

// Right returns the option right code the broker uses for this side.
func (s Side) Right() string {
	if s == SideCall {
		return "C"
	}
	return "P"
}

// LegPhase represents the lifecycle phase of a leg.
type LegPhase string

const (
	// PhaseIdle means no short position is working; the leg is either waiting
	// for its first entry or for a re-entry trigger.
	PhaseIdle LegPhase = "idle"
	// PhaseEntered means the short order filled and a stop-buy order is live.
	PhaseEntered LegPhase = "entered"
	// PhaseStopTriggered means the stop order disappeared from the open-order
	// book: the short was bought back by the broker.
	PhaseStopTriggered LegPhase = "stop_triggered"
	// PhaseClosed is terminal; the leg takes no further action this session.
	PhaseClosed LegPhase = "closed"
)

// Transition conditions.
const (
	CondOrderFilled      = "order_filled"
	CondStopOrderGone    = "stop_order_gone"
	CondHedgeClosed      = "hedge_closed"
	CondReentryExhausted = "reentry_exhausted"
	CondSessionEnd       = "session_end"
)

// PhaseTransition defines a valid phase transition.
type PhaseTransition struct {
	From        LegPhase
	To          LegPhase
	Condition   string
	Description string
}

// ValidTransitions enumerates every legal phase change for a leg.
var ValidTransitions = []PhaseTransition{
	{PhaseIdle, PhaseEntered, CondOrderFilled, "Short order filled, stop order working"},
	{PhaseEntered, PhaseStopTriggered, CondStopOrderGone, "Stop order left the book, short bought back"},
	{PhaseStopTriggered, PhaseIdle, CondHedgeClosed, "Hedge unwound, waiting for re-entry"},
	{PhaseIdle, PhaseClosed, CondReentryExhausted, "Re-entry limit reached"},
	{PhaseIdle, PhaseClosed, CondSessionEnd, "Session ended while flat"},
	{PhaseEntered, PhaseClosed, CondSessionEnd, "Force-closed at end of session"},
}

// LegState holds the mutable state of one leg. It is owned and mutated by the
// leg's own goroutine only; everyone else reads published copies.
type LegState struct {
	Side         Side     `json:"side"`
	Phase        LegPhase `json:"phase"`
	TargetStrike float64  `json:"target_strike"`
	HedgeStrike  float64  `json:"hedge_strike"`
	// ContractID is the opaque handle of the qualified short contract.
	ContractID  string `json:"contract_id,omitempty"`
	OrderPlaced bool   `json:"order_placed"`
	// FillPrice is the most recent short fill. It is sticky across stop-outs
	// because the re-entry trigger compares against the last fill.
	FillPrice   float64 `json:"fill_price,omitempty"`
	StopLevel   float64 `json:"stop_level,omitempty"`
	StopOrderID string  `json:"stop_order_id,omitempty"`
	// EscalationStep counts trailing-stop tightenings since the last fill.
	EscalationStep int `json:"escalation_step"`
	ReentryCount   int `json:"reentry_count"`
	ReentryLimit   int `json:"reentry_limit"`
}

// NewLegState creates the idle state for one side.
func NewLegState(side Side, targetStrike, hedgeStrike float64, reentryLimit int) *LegState {
	return &LegState{
		Side:         side,
		Phase:        PhaseIdle,
		TargetStrike: targetStrike,
		HedgeStrike:  hedgeStrike,
		ReentryLimit: reentryLimit,
	}
}

// Transition moves the leg to a new phase after validating the change against
// ValidTransitions.
func (l *LegState) Transition(to LegPhase, condition string) error {
	for _, t := range ValidTransitions {
		if t.From == l.Phase && t.To == to && t.Condition == condition {
			l.Phase = to
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s with condition %q", l.Phase, to, condition)
}

// RecordFill marks the short order filled: fill price and stop level are set,
// the escalation counter resets, and the phase becomes entered.
func (l *LegState) RecordFill(contractID string, fillPrice, stopLevel float64) error {
	if err := l.Transition(PhaseEntered, CondOrderFilled); err != nil {
		return err
	}
	l.ContractID = contractID
	l.OrderPlaced = true
	l.FillPrice = fillPrice
	l.StopLevel = stopLevel
	l.EscalationStep = 0
	return nil
}

// RecordStopTriggered marks the short bought back by its stop order. The stop
// order handle is dropped; the fill price stays for the re-entry comparison.
func (l *LegState) RecordStopTriggered() error {
	if err := l.Transition(PhaseStopTriggered, CondStopOrderGone); err != nil {
		return err
	}
	l.OrderPlaced = false
	l.StopOrderID = ""
	return nil
}

// TriggerThreshold returns the ask level at or below which the next
// trailing-stop tightening fires: fill - k * (triggerPct/100) * fill, where k
// is one more than the tightenings already applied.
func (l *LegState) TriggerThreshold(triggerPct float64) float64 {
	k := float64(l.EscalationStep + 1)
	return l.FillPrice - k*(triggerPct/100)*l.FillPrice
}

// ApplyTighten ratchets the stop level down to newStop and advances the
// escalation counter. The stop only ever tightens; a level at or above the
// current one is rejected.
func (l *LegState) ApplyTighten(newStop float64) error {
	if !l.OrderPlaced {
		return fmt.Errorf("cannot tighten stop on %s leg without a working order", l.Side)
	}
	if newStop >= l.StopLevel {
		return fmt.Errorf("stop may only ratchet down: %.2f >= %.2f", newStop, l.StopLevel)
	}
	l.StopLevel = newStop
	l.EscalationStep++
	return nil
}

// CanReenter returns true if the leg has re-entry slots left.
func (l *LegState) CanReenter() bool {
	return l.ReentryCount < l.ReentryLimit
}

// Validate checks the state invariants.
func (l *LegState) Validate() error {
	if !l.Side.Valid() {
		return fmt.Errorf("invalid side %q", l.Side)
	}
	if l.OrderPlaced && (l.FillPrice <= 0 || l.StopLevel <= 0) {
		return fmt.Errorf("%s leg has a working order without fill price or stop level", l.Side)
	}
	if !l.OrderPlaced && l.StopOrderID != "" {
		return fmt.Errorf("%s leg retains stop order %s without a working order", l.Side, l.StopOrderID)
	}
	if l.ReentryCount > l.ReentryLimit {
		return fmt.Errorf("%s leg re-entry count %d exceeds limit %d", l.Side, l.ReentryCount, l.ReentryLimit)
	}
	return nil
}

// Snapshot returns a copy safe to hand to readers outside the owning
// goroutine.
func (l *LegState) Snapshot() LegState {
	return *l
}

// StrikeSet holds the strikes derived once per session after the window opens.
type StrikeSet struct {
	Underlying float64 `json:"underlying"`
	ATM        float64 `json:"atm"`
	CallTarget float64 `json:"call_target"`
	PutTarget  float64 `json:"put_target"`
	CallHedge  float64 `json:"call_hedge"`
	PutHedge   float64 `json:"put_hedge"`
}
