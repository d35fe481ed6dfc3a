// Package ai holds the lead scorer and complaint classifier. Both are
// simple heuristics behind interfaces so a model-backed implementation can
// replace them.
package ai

import (
	"context"
	"strings"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/observability/metrics"
)

// Complaint classifications
const (
	BillingIssue   = "billing_issue"
	ServiceIssue   = "service_issue"
	TechnicalIssue = "technical_issue"
	Unclassified   = "unclassified"
)

// LeadFields are the inputs a scorer may look at.
type LeadFields struct {
	Name  string
	Email string
	Phone string
}

type LeadScorer interface {
	// Score returns a value in [0, 100].
	Score(ctx context.Context, lead LeadFields) (float64, error)
}

// Classification is the outcome of classifying a complaint. Priority is
// empty when the classification does not imply one.
type Classification struct {
	Label    string
	Priority domain.Priority
}

type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// HeuristicScorer scores on name length and contact completeness.
type HeuristicScorer struct{}

func (HeuristicScorer) Score(ctx context.Context, lead LeadFields) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	score := len([]rune(strings.TrimSpace(lead.Name))) * 5
	if strings.Contains(lead.Email, "@") {
		score += 10
	}
	if strings.TrimSpace(lead.Phone) != "" {
		score += 10
	}
	score = min(100, max(0, score))
	metrics.ObserveLeadScore(float64(score))
	return float64(score), nil
}

var keywordRules = []struct {
	keyword string
	label   string
}{
	{"billing", BillingIssue},
	{"service", ServiceIssue},
	{"technical", TechnicalIssue},
}

// KeywordClassifier labels a complaint by the first keyword it contains.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}
	lower := strings.ToLower(text)
	c := Classification{Label: Unclassified}
	for _, rule := range keywordRules {
		if strings.Contains(lower, rule.keyword) {
			c.Label = rule.label
			break
		}
	}
	if c.Label == TechnicalIssue {
		c.Priority = domain.PriorityHigh
	}
	metrics.ObserveClassification(c.Label)
	return c, nil
}
