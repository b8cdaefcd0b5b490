// Package strategy implements the dual-leg short options strategy: session
// gating, strike selection, per-leg entry and trailing-stop monitoring, and
// the end-of-session watchdog.
package strategy

import (
	"errors"
	"math"

	"github.com/eddiefleurent/stanley_straddle/internal/models"
)

// ErrNoStrikesAvailable means the gateway returned an empty strike list.
var ErrNoStrikesAvailable = errors.New("no strikes available for instrument")

// StrikeConfig holds the inputs for strike derivation.
type StrikeConfig struct {
	// CalcValues derives strikes from the ATM strike; when false the static
	// values below are used verbatim.
	CalcValues      bool
	StrikeIncrement int
	// ATMOffset shifts both short strikes away from ATM, in increments. Zero
	// or negative keeps the shorts at the ATM strike.
	ATMOffset       int
	CallHedgeOffset int
	PutHedgeOffset  int

	StaticCallStrike      float64
	StaticCallHedgeStrike float64
	StaticPutStrike       float64
	StaticPutHedgeStrike  float64
}

// SelectStrikes picks the session's strikes from the listed chain and the
// current underlying price.
func SelectStrikes(available []int, price float64, cfg StrikeConfig) (*models.StrikeSet, error) {
	if len(available) == 0 {
		return nil, ErrNoStrikesAvailable
	}

	// ATM is the strike closest to the underlying; ties go to the first one
	// seen in chain order.
	atm := float64(available[0])
	best := math.Abs(atm - price)
	for _, s := range available[1:] {
		d := math.Abs(float64(s) - price)
		if d < best {
			best = d
			atm = float64(s)
		}
	}

	set := &models.StrikeSet{Underlying: price, ATM: atm}

	if !cfg.CalcValues {
		set.CallTarget = cfg.StaticCallStrike
		set.CallHedge = cfg.StaticCallHedgeStrike
		set.PutTarget = cfg.StaticPutStrike
		set.PutHedge = cfg.StaticPutHedgeStrike
		return set, nil
	}

	inc := float64(cfg.StrikeIncrement)
	set.CallHedge = atm + float64(cfg.CallHedgeOffset)*inc
	set.PutHedge = atm - float64(cfg.PutHedgeOffset)*inc
	set.CallTarget = atm
	set.PutTarget = atm
	if cfg.ATMOffset > 0 {
		set.CallTarget = atm + float64(cfg.ATMOffset)*inc
		set.PutTarget = atm - float64(cfg.ATMOffset)*inc
	}
	return set, nil
}
