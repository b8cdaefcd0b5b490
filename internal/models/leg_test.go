package models

import (
	"testing"
)

func TestSideRight(t *testing.T) {
	if got := SideCall.Right(); got != "C" {
		t.Errorf("SideCall.Right() = %q, want C", got)
	}
	if got := SidePut.Right(); got != "P" {
		t.Errorf("SidePut.Right() = %q, want P", got)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	leg := NewLegState(SideCall, 5900, 6000, 2)

	if leg.Phase != PhaseIdle {
		t.Fatalf("new leg phase = %s, want idle", leg.Phase)
	}

	if err := leg.RecordFill("c-1", 10.0, 13.0); err != nil {
		t.Fatalf("RecordFill: %v", err)
	}
	if leg.Phase != PhaseEntered || !leg.OrderPlaced {
		t.Errorf("after fill: phase=%s placed=%t", leg.Phase, leg.OrderPlaced)
	}

	if err := leg.RecordStopTriggered(); err != nil {
		t.Fatalf("RecordStopTriggered: %v", err)
	}
	if leg.OrderPlaced || leg.StopOrderID != "" {
		t.Errorf("stop-triggered leg retains order state: placed=%t stopID=%q",
			leg.OrderPlaced, leg.StopOrderID)
	}
	if leg.FillPrice != 10.0 {
		t.Errorf("fill price must stay sticky across stop-outs, got %.2f", leg.FillPrice)
	}

	if err := leg.Transition(PhaseIdle, CondHedgeClosed); err != nil {
		t.Fatalf("Transition to idle: %v", err)
	}
	if err := leg.Transition(PhaseClosed, CondReentryExhausted); err != nil {
		t.Fatalf("Transition to closed: %v", err)
	}
}

func TestInvalidTransitions(t *testing.T) {
	leg := NewLegState(SidePut, 5900, 5800, 2)

	// Cannot trigger a stop while idle.
	if err := leg.RecordStopTriggered(); err == nil {
		t.Error("expected error for idle -> stop_triggered")
	}

	// Wrong condition is rejected even for a valid phase pair.
	if err := leg.Transition(PhaseEntered, CondHedgeClosed); err == nil {
		t.Error("expected error for idle -> entered with hedge_closed")
	}

	// Closed is terminal.
	if err := leg.Transition(PhaseClosed, CondSessionEnd); err != nil {
		t.Fatalf("Transition to closed: %v", err)
	}
	if err := leg.Transition(PhaseIdle, CondHedgeClosed); err == nil {
		t.Error("expected error leaving closed phase")
	}
}

func TestTriggerThresholdEscalates(t *testing.T) {
	leg := NewLegState(SideCall, 5900, 6000, 2)
	if err := leg.RecordFill("c-1", 10.0, 13.0); err != nil {
		t.Fatalf("RecordFill: %v", err)
	}

	// k=1: 10 - 1*0.10*10 = 9.0
	if got := leg.TriggerThreshold(10); got != 9.0 {
		t.Errorf("threshold k=1 = %.4f, want 9.0", got)
	}

	if err := leg.ApplyTighten(12.8); err != nil {
		t.Fatalf("ApplyTighten: %v", err)
	}

	// k=2: 10 - 2*0.10*10 = 8.0
	if got := leg.TriggerThreshold(10); got != 8.0 {
		t.Errorf("threshold k=2 = %.4f, want 8.0", got)
	}
}

func TestApplyTightenOnlyRatchetsDown(t *testing.T) {
	leg := NewLegState(SideCall, 5900, 6000, 2)
	if err := leg.RecordFill("c-1", 10.0, 13.0); err != nil {
		t.Fatalf("RecordFill: %v", err)
	}

	levels := []float64{12.8, 12.6, 12.4}
	prev := leg.StopLevel
	for _, lv := range levels {
		if err := leg.ApplyTighten(lv); err != nil {
			t.Fatalf("ApplyTighten(%.2f): %v", lv, err)
		}
		if leg.StopLevel >= prev {
			t.Errorf("stop level %.2f did not tighten from %.2f", leg.StopLevel, prev)
		}
		prev = leg.StopLevel
	}
	if leg.EscalationStep != 3 {
		t.Errorf("escalation step = %d, want 3", leg.EscalationStep)
	}

	if err := leg.ApplyTighten(prev + 1); err == nil {
		t.Error("expected error loosening the stop")
	}
}

func TestRecordFillResetsEscalation(t *testing.T) {
	leg := NewLegState(SidePut, 5900, 5800, 3)
	if err := leg.RecordFill("p-1", 10.0, 13.0); err != nil {
		t.Fatalf("RecordFill: %v", err)
	}
	if err := leg.ApplyTighten(12.8); err != nil {
		t.Fatalf("ApplyTighten: %v", err)
	}
	if err := leg.RecordStopTriggered(); err != nil {
		t.Fatalf("RecordStopTriggered: %v", err)
	}
	if err := leg.Transition(PhaseIdle, CondHedgeClosed); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	leg.ReentryCount++
	if err := leg.RecordFill("p-2", 9.5, 12.35); err != nil {
		t.Fatalf("re-entry RecordFill: %v", err)
	}
	if leg.EscalationStep != 0 {
		t.Errorf("escalation step after re-fill = %d, want 0", leg.EscalationStep)
	}
	if leg.FillPrice != 9.5 {
		t.Errorf("fill price after re-fill = %.2f, want 9.5", leg.FillPrice)
	}
}

func TestCanReenter(t *testing.T) {
	leg := NewLegState(SideCall, 5900, 6000, 2)
	if !leg.CanReenter() {
		t.Error("fresh leg should have re-entry slots")
	}
	leg.ReentryCount = 2
	if leg.CanReenter() {
		t.Error("leg at limit must not re-enter")
	}
}

func TestValidate(t *testing.T) {
	leg := NewLegState(SideCall, 5900, 6000, 2)
	if err := leg.Validate(); err != nil {
		t.Errorf("fresh leg invalid: %v", err)
	}

	leg.OrderPlaced = true
	if err := leg.Validate(); err == nil {
		t.Error("expected error for working order without fill price")
	}

	leg.OrderPlaced = false
	leg.StopOrderID = "stp-1"
	if err := leg.Validate(); err == nil {
		t.Error("expected error for retained stop order handle while flat")
	}

	leg.StopOrderID = ""
	leg.ReentryCount = 3
	if err := leg.Validate(); err == nil {
		t.Error("expected error for re-entry count above limit")
	}
}
