package processor

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Verdict string

const (
	VerdictAllow   Verdict = "allow"
	VerdictMonitor Verdict = "monitor"
	VerdictReview  Verdict = "review"
	VerdictBlock   Verdict = "block"
)

// Candidate is the transfer under evaluation.
type Candidate struct {
	SenderID    string
	RecipientID string
	Amount      decimal.Decimal
}

// SenderHistory summarizes the sender's ledger activity. The detector does
// no I/O; callers precompute this from the transaction repository.
type SenderHistory struct {
	AccountAgeDays             int
	TxnsLastHour               int
	TxnsToday                  int
	AvgAmount                  decimal.Decimal
	MinutesSinceLast           float64
	HasTransactedWithRecipient bool
}

type RiskAssessment struct {
	Score   int      `json:"risk_score"`
	Verdict Verdict  `json:"verdict"`
	IsFraud bool     `json:"is_fraud"`
	Reasons []string `json:"reasons,omitempty"`
}

// RiskRule contributes Weight to the score when Applies holds. The second
// return value is the reason recorded for the caller and the audit trail.
type RiskRule struct {
	Name    string
	Weight  int
	Applies func(c Candidate, h SenderHistory) (bool, string)
}

// RiskThresholds maps a score to a verdict. Boundaries are inclusive:
// score == Block blocks.
type RiskThresholds struct {
	Block   int
	Review  int
	Monitor int
}

func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{Block: 70, Review: 50, Monitor: 30}
}

var (
	newUserLargeAmount    = decimal.NewFromInt(5000)
	roundAmountStep       = decimal.NewFromInt(1000)
	roundAmountFloor      = decimal.NewFromInt(5000)
	newRecipientLarge     = decimal.NewFromInt(2000)
	anomalyMultiplier     = decimal.NewFromInt(3)
	newUserMaxAgeDays     = 7
	maxTxnsPerHour        = 5
	maxTxnsPerDay         = 20
	rapidSuccessionMins   = 5.0
)

func DefaultRiskRules() []RiskRule {
	return []RiskRule{
		{
			Name:   "new_user_large_transfer",
			Weight: 30,
			Applies: func(c Candidate, h SenderHistory) (bool, string) {
				if h.AccountAgeDays < newUserMaxAgeDays && c.Amount.GreaterThan(newUserLargeAmount) {
					return true, "New user attempting large transaction"
				}
				return false, ""
			},
		},
		{
			Name:   "hourly_velocity",
			Weight: 25,
			Applies: func(c Candidate, h SenderHistory) (bool, string) {
				if h.TxnsLastHour >= maxTxnsPerHour {
					return true, fmt.Sprintf("%d transactions in last hour", h.TxnsLastHour)
				}
				return false, ""
			},
		},
		{
			Name:   "amount_anomaly",
			Weight: 20,
			Applies: func(c Candidate, h SenderHistory) (bool, string) {
				if h.AvgAmount.IsPositive() {
					ratio := c.Amount.Div(h.AvgAmount)
					if ratio.GreaterThan(anomalyMultiplier) {
						return true, fmt.Sprintf("Amount %sx higher than usual", ratio.Round(1))
					}
				}
				return false, ""
			},
		},
		{
			Name:   "rapid_succession",
			Weight: 15,
			Applies: func(c Candidate, h SenderHistory) (bool, string) {
				if h.MinutesSinceLast < rapidSuccessionMins {
					return true, "Rapid successive transactions"
				}
				return false, ""
			},
		},
		{
			Name:   "round_amount",
			Weight: 10,
			Applies: func(c Candidate, h SenderHistory) (bool, string) {
				if c.Amount.Mod(roundAmountStep).IsZero() && c.Amount.GreaterThanOrEqual(roundAmountFloor) {
					return true, "Suspicious round amount"
				}
				return false, ""
			},
		},
		{
			Name:   "new_recipient_large_amount",
			Weight: 15,
			Applies: func(c Candidate, h SenderHistory) (bool, string) {
				if !h.HasTransactedWithRecipient && c.Amount.GreaterThan(newRecipientLarge) {
					return true, "First transaction to recipient with large amount"
				}
				return false, ""
			},
		},
		{
			Name:   "daily_velocity",
			Weight: 35,
			Applies: func(c Candidate, h SenderHistory) (bool, string) {
				if h.TxnsToday >= maxTxnsPerDay {
					return true, "Daily transaction limit exceeded"
				}
				return false, ""
			},
		},
	}
}

// FraudDetector is stateless and deterministic: identical inputs always
// produce identical assessments. Rules and thresholds are fixed at
// construction.
type FraudDetector struct {
	rules      []RiskRule
	thresholds RiskThresholds
}

func NewFraudDetector(rules []RiskRule, thresholds RiskThresholds) *FraudDetector {
	if rules == nil {
		rules = DefaultRiskRules()
	}
	if thresholds == (RiskThresholds{}) {
		thresholds = DefaultRiskThresholds()
	}

	return &FraudDetector{
		rules:      rules,
		thresholds: thresholds,
	}
}

func (fd *FraudDetector) Evaluate(c Candidate, h SenderHistory) RiskAssessment {
	var score int
	var reasons []string

	for _, rule := range fd.rules {
		if hit, reason := rule.Applies(c, h); hit {
			score += rule.Weight
			reasons = append(reasons, reason)
		}
	}

	if score > 100 {
		score = 100
	}

	return RiskAssessment{
		Score:   score,
		Verdict: fd.verdict(score),
		IsFraud: score >= fd.thresholds.Review,
		Reasons: reasons,
	}
}

func (fd *FraudDetector) verdict(score int) Verdict {
	switch {
	case score >= fd.thresholds.Block:
		return VerdictBlock
	case score >= fd.thresholds.Review:
		return VerdictReview
	case score >= fd.thresholds.Monitor:
		return VerdictMonitor
	default:
		return VerdictAllow
	}
}
