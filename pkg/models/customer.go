package models

import (
	"time"
)

// PaymentStatus represents the settlement state of a payment record.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPartial PaymentStatus = "partial"
	PaymentOverdue PaymentStatus = "overdue"
	PaymentPending PaymentStatus = "pending"
)

// ContactStatus represents the outcome of a single outreach attempt.
type ContactStatus string

const (
	ContactSent     ContactStatus = "sent"
	ContactReplied  ContactStatus = "replied"
	ContactAnswered ContactStatus = "answered"
	ContactNoAnswer ContactStatus = "no_answer"
	ContactBounced  ContactStatus = "bounced"
)

// Customer is the authoritative record loaded from the persistence gateway.
type Customer struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	OutstandingBalance float64   `json:"outstanding_balance"`
	AccountCreatedAt   time.Time `json:"account_created_at"`
}

// PaymentRecord is one invoice and its settlement outcome.
type PaymentRecord struct {
	ID         string        `json:"id"`
	CustomerID string        `json:"customer_id"`
	Amount     float64       `json:"amount"`
	DueDate    time.Time     `json:"due_date"`
	PaidDate   *time.Time    `json:"paid_date,omitempty"`
	Status     PaymentStatus `json:"status"`
}

// DelayDays returns how many days past due the record was settled, never
// negative. Unpaid records return zero.
func (p PaymentRecord) DelayDays() float64 {
	if p.PaidDate == nil {
		return 0
	}
	d := p.PaidDate.Sub(p.DueDate).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// Late reports whether the record counts as a late payment: settled more
// than three days past due, or never settled and marked overdue.
func (p PaymentRecord) Late() bool {
	if p.PaidDate == nil {
		return p.Status == PaymentOverdue
	}
	return p.DelayDays() > 3
}

// ContactAttempt is one recorded outreach touch on a customer.
type ContactAttempt struct {
	ID         string        `json:"id"`
	CustomerID string        `json:"customer_id"`
	Channel    string        `json:"channel"`
	OccurredAt time.Time     `json:"occurred_at"`
	Status     ContactStatus `json:"status"`
	Response   string        `json:"response,omitempty"`
	Escalated  bool          `json:"escalated"`
}

// Responded reports whether the customer engaged with the attempt.
func (c ContactAttempt) Responded() bool {
	return c.Status == ContactReplied || c.Status == ContactAnswered
}

// PatternType classifies a recurring payment behavior.
type PatternType string

const (
	PatternEarly   PatternType = "early"
	PatternOnTime  PatternType = "ontime"
	PatternLate    PatternType = "late"
	PatternPartial PatternType = "partial"
)

// Trend describes how a detected pattern is moving over time.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// PaymentPattern is a detected recurring behavior with its strength.
type PaymentPattern struct {
	Type       PatternType `json:"type"`
	Frequency  float64     `json:"frequency"`
	Confidence float64     `json:"confidence"`
	Trend      Trend       `json:"trend"`
}

// ContactWindow is a (weekday, 4-hour slot, channel) bucket ranked by the
// customer's measured response rate within it.
type ContactWindow struct {
	Day          time.Weekday `json:"day"`
	HourStart    int          `json:"hour_start"`
	Channel      string       `json:"channel"`
	ResponseRate float64      `json:"response_rate"`
	Attempts     int          `json:"attempts"`
}

// CommunicationStyle is the heuristic classification of how the customer
// writes back.
type CommunicationStyle string

const (
	StyleFormal     CommunicationStyle = "formal"
	StyleDirect     CommunicationStyle = "direct"
	StyleDiplomatic CommunicationStyle = "diplomatic"
	StyleCasual     CommunicationStyle = "casual"
)

// EscalationTendency buckets how often contacts show escalation signals.
type EscalationTendency string

const (
	TendencyHigh   EscalationTendency = "high"
	TendencyMedium EscalationTendency = "medium"
	TendencyLow    EscalationTendency = "low"
)

// SeasonalTrend compares a calendar quarter's late-payment rate against the
// customer's overall rate.
type SeasonalTrend struct {
	Quarter        int     `json:"quarter"`
	Classification string  `json:"classification"` // better, worse, same
	RiskModifier   float64 `json:"risk_modifier"`
	DataPoints     int     `json:"data_points"`
}

// BehaviorAnalysis is the derived statistical view of a customer's payment
// and communication history.
type BehaviorAnalysis struct {
	AveragePaymentDelay   float64            `json:"average_payment_delay_days"`
	Patterns              []PaymentPattern   `json:"patterns"`
	ResponseRate          float64            `json:"response_rate"`
	PreferredContactTimes []ContactWindow    `json:"preferred_contact_times"`
	CommunicationStyle    CommunicationStyle `json:"communication_style"`
	EscalationTendency    EscalationTendency `json:"escalation_tendency"`
	SeasonalTrends        []SeasonalTrend    `json:"seasonal_trends,omitempty"`
}

// RiskLevel buckets the 0-100 risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskFactor is one weighted contribution to the composite score.
type RiskFactor struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Positive    bool    `json:"positive"` // true when a high value raises risk
	Value       float64 `json:"value"`    // 0-100
	Description string  `json:"description"`
}

// CollectionDifficulty bands the expected effort to collect.
type CollectionDifficulty string

const (
	DifficultyEasy          CollectionDifficulty = "easy"
	DifficultyModerate      CollectionDifficulty = "moderate"
	DifficultyDifficult     CollectionDifficulty = "difficult"
	DifficultyVeryDifficult CollectionDifficulty = "very_difficult"
)

// RiskPrediction is the short-term outlook computed from the risk score.
type RiskPrediction struct {
	NextPaymentLikelihood   float64              `json:"next_payment_likelihood"`
	EscalationProbability   float64              `json:"escalation_probability"`
	CollectionDifficulty    CollectionDifficulty `json:"collection_difficulty"`
	EstimatedCollectionDays int                  `json:"estimated_collection_days"`
}

// RiskAssessment is the complete scored view of a customer.
type RiskAssessment struct {
	CurrentRisk RiskLevel      `json:"current_risk"`
	RiskScore   float64        `json:"risk_score"`
	Factors     []RiskFactor   `json:"factors"`
	Prediction  RiskPrediction `json:"prediction"`
	Mitigation  []string       `json:"mitigation"`
}

// Recommendation is a ranked, confidence-scored suggested action.
type Recommendation struct {
	Priority   Priority `json:"priority"`
	Action     string   `json:"action"`
	Channel    string   `json:"channel,omitempty"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason,omitempty"`
}

// CustomerContext is the derived, cached analysis bundle for one customer.
// It is replaced wholesale on rebuild, never partially mutated.
type CustomerContext struct {
	Customer             *Customer        `json:"customer"`
	PaymentHistory       []PaymentRecord  `json:"payment_history"`
	CommunicationHistory []ContactAttempt `json:"communication_history"`
	Behavior             BehaviorAnalysis `json:"behavior"`
	Risk                 RiskAssessment   `json:"risk"`
	Recommendations      []Recommendation `json:"recommendations"`
	LastUpdated          time.Time        `json:"last_updated"`
}

// Fresh reports whether the context is younger than maxAge at now.
func (c *CustomerContext) Fresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(c.LastUpdated) < maxAge
}
