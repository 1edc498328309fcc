// Package risk scores loan applications against the invoice they finance.
//
// The score is advisory metadata: it is attached to an application when it is
// submitted and never decides eligibility or approval.
package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tradefin/types"
)

// Score bounds and the neutral starting point.
const (
	MinScore  = 0
	MaxScore  = 100
	BaseScore = 70
)

var (
	ratioLow     = decimal.RequireFromString("0.8")
	ratioPar     = decimal.NewFromInt(1)
	ratioCeiling = decimal.RequireFromString("1.2")
)

// Score returns a deterministic 0–100 score for financing amount against an
// invoice of invoiceAmount due at due, evaluated at now.
func Score(amount, invoiceAmount types.Money, due, now time.Time) int {
	score := BaseScore + tenorAdjustment(DaysUntilDue(due, now)) + ratioAdjustment(amount, invoiceAmount)
	return clamp(score)
}

// DaysUntilDue is the whole number of days from now to due, rounded toward
// negative infinity and floored at 1.
func DaysUntilDue(due, now time.Time) int {
	const day = 24 * time.Hour
	d := due.Sub(now)
	days := d / day
	if d < 0 && d%day != 0 {
		days--
	}
	if days < 1 {
		return 1
	}
	return int(days)
}

func tenorAdjustment(days int) int {
	switch {
	case days < 30:
		return 15
	case days < 60:
		return 10
	case days < 90:
		return 5
	default:
		return 0
	}
}

// ratioAdjustment compares amount/invoiceAmount against the bracket edges by
// cross-multiplication so the edges are exact. A zero invoice amount falls in
// the worst bracket.
func ratioAdjustment(amount, invoiceAmount types.Money) int {
	if !invoiceAmount.IsPositive() {
		return -20
	}
	a, inv := amount.Decimal(), invoiceAmount.Decimal()
	switch {
	case a.LessThanOrEqual(inv.Mul(ratioLow)):
		return 10
	case a.LessThanOrEqual(inv.Mul(ratioPar)):
		return 5
	case a.LessThanOrEqual(inv.Mul(ratioCeiling)):
		return -5
	default:
		return -20
	}
}

func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// Level buckets a score for reporting.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// LevelOf maps a score to its risk level: low at 70 and above, medium at 40
// and above, high otherwise. An unscored application counts as 0.
func LevelOf(score *int) Level {
	s := 0
	if score != nil {
		s = *score
	}
	switch {
	case s >= 70:
		return LevelLow
	case s >= 40:
		return LevelMedium
	default:
		return LevelHigh
	}
}
