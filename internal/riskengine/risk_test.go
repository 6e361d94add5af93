package riskengine

import (
	"math"
	"testing"
	"time"

	"github.com/collectflow/collectflow/pkg/models"
)

func monthlyPayments(n int, delayDays int, start time.Time) []models.PaymentRecord {
	records := make([]models.PaymentRecord, 0, n)
	for i := 0; i < n; i++ {
		due := start.AddDate(0, i, 0)
		paid := due.AddDate(0, 0, delayDays)
		records = append(records, models.PaymentRecord{
			ID:       string(rune('a' + i)),
			Amount:   100,
			DueDate:  due,
			PaidDate: &paid,
			Status:   models.PaymentPaid,
		})
	}
	return records
}

func TestAssessRisk(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Chronically Late Silent Customer", func(t *testing.T) {
		customer := &models.Customer{ID: "c1", AccountCreatedAt: now.AddDate(-3, 0, 0)}
		payments := monthlyPayments(12, 10, now.AddDate(-1, 0, 0))
		behavior := analyzeBehavior(payments, nil)

		risk := assessRisk(customer, payments, behavior, now)

		// 100*0.40 + 20*0.12 + 100*0.20 + 10*0.10 + 0*0.10
		if math.Abs(risk.RiskScore-63.4) > 0.01 {
			t.Errorf("Expected score 63.4, got %f", risk.RiskScore)
		}
		if risk.CurrentRisk != models.RiskHigh {
			t.Errorf("Expected high risk, got %s", risk.CurrentRisk)
		}
	})

	t.Run("Clean Mature Customer", func(t *testing.T) {
		customer := &models.Customer{ID: "c2", AccountCreatedAt: now.AddDate(-5, 0, 0)}
		payments := monthlyPayments(12, 0, now.AddDate(-1, 0, 0))
		contacts := []models.ContactAttempt{
			{Status: models.ContactReplied, OccurredAt: now.AddDate(0, -1, 0)},
			{Status: models.ContactAnswered, OccurredAt: now.AddDate(0, -2, 0)},
		}
		behavior := analyzeBehavior(payments, contacts)

		risk := assessRisk(customer, payments, behavior, now)
		if risk.CurrentRisk != models.RiskLow {
			t.Errorf("Expected low risk, got %s (score %f)", risk.CurrentRisk, risk.RiskScore)
		}
	})

	t.Run("Score Bounded", func(t *testing.T) {
		customer := &models.Customer{ID: "c3", AccountCreatedAt: now}
		payments := monthlyPayments(12, 90, now.AddDate(-1, 0, 0))
		contacts := []models.ContactAttempt{
			{Status: models.ContactNoAnswer, Escalated: true, OccurredAt: now},
			{Status: models.ContactNoAnswer, Escalated: true, OccurredAt: now},
		}
		behavior := analyzeBehavior(payments, contacts)

		risk := assessRisk(customer, payments, behavior, now)
		if risk.RiskScore < 0 || risk.RiskScore > 100 {
			t.Errorf("Expected score in [0,100], got %f", risk.RiskScore)
		}
		if risk.CurrentRisk != models.RiskCritical {
			t.Errorf("Expected critical risk, got %s", risk.CurrentRisk)
		}
	})

	t.Run("Monotonic In Lateness", func(t *testing.T) {
		customer := &models.Customer{ID: "c4", AccountCreatedAt: now.AddDate(-2, 0, 0)}
		prev := -1.0
		for _, delay := range []int{0, 5, 10, 30} {
			payments := monthlyPayments(12, delay, now.AddDate(-1, 0, 0))
			behavior := analyzeBehavior(payments, nil)
			score := assessRisk(customer, payments, behavior, now).RiskScore
			if score < prev {
				t.Errorf("Score decreased from %f to %f at delay %d", prev, score, delay)
			}
			prev = score
		}
	})
}

func TestRiskLevelBands(t *testing.T) {
	cases := []struct {
		score float64
		want  models.RiskLevel
	}{
		{0, models.RiskLow},
		{39.99, models.RiskLow},
		{40, models.RiskMedium},
		{59.99, models.RiskMedium},
		{60, models.RiskHigh},
		{74.99, models.RiskHigh},
		{75, models.RiskCritical},
		{100, models.RiskCritical},
	}
	for _, tc := range cases {
		if got := riskLevel(tc.score); got != tc.want {
			t.Errorf("riskLevel(%f) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestPredict(t *testing.T) {
	t.Run("Likelihood Capped", func(t *testing.T) {
		behavior := models.BehaviorAnalysis{ResponseRate: 1, EscalationTendency: models.TendencyLow}
		p := predict(0, behavior)
		if p.NextPaymentLikelihood != 0.95 {
			t.Errorf("Expected likelihood capped at 0.95, got %f", p.NextPaymentLikelihood)
		}
	})

	t.Run("Likelihood Floor", func(t *testing.T) {
		behavior := models.BehaviorAnalysis{EscalationTendency: models.TendencyLow}
		p := predict(100, behavior)
		if p.NextPaymentLikelihood != 0.1 {
			t.Errorf("Expected likelihood floor 0.1, got %f", p.NextPaymentLikelihood)
		}
	})

	t.Run("Escalation Scales With Tendency", func(t *testing.T) {
		high := predict(100, models.BehaviorAnalysis{EscalationTendency: models.TendencyHigh})
		low := predict(100, models.BehaviorAnalysis{EscalationTendency: models.TendencyLow})
		if high.EscalationProbability != 0.8 {
			t.Errorf("Expected 0.8, got %f", high.EscalationProbability)
		}
		if low.EscalationProbability != 0.1 {
			t.Errorf("Expected 0.1, got %f", low.EscalationProbability)
		}
	})

	t.Run("Difficulty Bands", func(t *testing.T) {
		behavior := models.BehaviorAnalysis{EscalationTendency: models.TendencyLow}
		cases := []struct {
			score float64
			want  models.CollectionDifficulty
		}{
			{10, models.DifficultyEasy},
			{30, models.DifficultyModerate},
			{50, models.DifficultyDifficult},
			{75, models.DifficultyVeryDifficult},
		}
		for _, tc := range cases {
			if got := predict(tc.score, behavior).CollectionDifficulty; got != tc.want {
				t.Errorf("predict(%f) difficulty = %s, want %s", tc.score, got, tc.want)
			}
		}
	})

	t.Run("Collection Days", func(t *testing.T) {
		behavior := models.BehaviorAnalysis{AveragePaymentDelay: 10, EscalationTendency: models.TendencyLow}
		p := predict(50, behavior)
		// round(10 * 1.5 + 5)
		if p.EstimatedCollectionDays != 20 {
			t.Errorf("Expected 20 days, got %d", p.EstimatedCollectionDays)
		}
	})
}

func TestMitigations(t *testing.T) {
	t.Run("Critical Strategies", func(t *testing.T) {
		got := mitigations(models.RiskCritical, nil, models.BehaviorAnalysis{CommunicationStyle: models.StyleFormal})
		if len(got) != 2 {
			t.Fatalf("Expected 2 strategies, got %d: %v", len(got), got)
		}
		if got[0] != "Escalate to a senior collection specialist" {
			t.Errorf("Unexpected first strategy: %s", got[0])
		}
	})

	t.Run("Factor Triggers And Dedup", func(t *testing.T) {
		factors := []models.RiskFactor{
			{Name: "non_response", Value: 90},
			{Name: "non_response", Value: 85},
			{Name: "payment_delay", Value: 30},
		}
		got := mitigations(models.RiskLow, factors, models.BehaviorAnalysis{CommunicationStyle: models.StyleFormal})
		if len(got) != 1 || got[0] != "Rotate to alternative contact channels" {
			t.Errorf("Expected single deduplicated factor strategy, got %v", got)
		}
	})

	t.Run("Style And Window Suggestions", func(t *testing.T) {
		behavior := models.BehaviorAnalysis{
			CommunicationStyle: models.StyleCasual,
			PreferredContactTimes: []models.ContactWindow{
				{Day: time.Tuesday, HourStart: 8, Channel: "phone", ResponseRate: 0.8, Attempts: 4},
			},
		}
		got := mitigations(models.RiskLow, nil, behavior)
		if len(got) != 2 {
			t.Fatalf("Expected 2 suggestions, got %v", got)
		}
	})
}
