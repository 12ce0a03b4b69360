package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BusinessProfile tunes the business-facing behavior: billing bounds,
// preview and idempotency lifetimes, the conversation history window, the
// turn budget, and per-tier quota predicates.
type BusinessProfile struct {
	Name      string         `yaml:"name" json:"name"`
	Billing   BillingConfig  `yaml:"billing" json:"billing"`
	Turns     TurnsConfig    `yaml:"turns" json:"turns"`
	Quotas    QuotasConfig   `yaml:"quotas" json:"quotas"`
	Knowledge []KnowledgeDoc `yaml:"knowledge,omitempty" json:"knowledge,omitempty"`

	HistoryWindow     int `yaml:"history_window" json:"history_window"`
	IdempotencyTTLHrs int `yaml:"idempotency_ttl_hours" json:"idempotency_ttl_hours"`
	PreviewTTLMinutes int `yaml:"preview_ttl_minutes" json:"preview_ttl_minutes"`
	KnowledgeTopK     int `yaml:"knowledge_top_k" json:"knowledge_top_k"`
}

// KnowledgeDoc is one business-knowledge entry served to the orchestrator's
// knowledge searcher.
type KnowledgeDoc struct {
	Title   string `yaml:"title" json:"title"`
	Content string `yaml:"content" json:"content"`
	Source  string `yaml:"source,omitempty" json:"source,omitempty"`
}

// BillingConfig bounds charge amounts in minor currency units.
type BillingConfig struct {
	MinValue          int64  `yaml:"min_value" json:"min_value"`
	MaxValue          int64  `yaml:"max_value" json:"max_value"`
	Currency          string `yaml:"currency" json:"currency"`
	IntegrationActive bool   `yaml:"integration_active" json:"integration_active"`
}

// TurnsConfig is the per-conversation turn budget.
type TurnsConfig struct {
	PerMinute int `yaml:"per_minute" json:"per_minute"`
	Burst     int `yaml:"burst" json:"burst"`
}

// QuotasConfig carries the quota predicate expression. The expression sees
// two variables, count and limit, and must evaluate to a boolean.
type QuotasConfig struct {
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`
}

// DefaultProfile returns the compiled-in defaults.
func DefaultProfile() *BusinessProfile {
	return &BusinessProfile{
		Name: "default",
		Billing: BillingConfig{
			MinValue:          5,
			MaxValue:          5_000_000,
			Currency:          "USD",
			IntegrationActive: true,
		},
		Turns:             TurnsConfig{PerMinute: 20, Burst: 5},
		HistoryWindow:     20,
		IdempotencyTTLHrs: 24,
		PreviewTTLMinutes: 15,
		KnowledgeTopK:     3,
	}
}

// LoadProfile reads a business profile YAML. Missing fields keep their
// defaults; an empty path returns the defaults unchanged.
func LoadProfile(path string) (*BusinessProfile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}

	if profile.Billing.MinValue < 0 || profile.Billing.MaxValue < 0 {
		return nil, fmt.Errorf("profile %q: billing bounds must not be negative", path)
	}
	if profile.Billing.MaxValue > 0 && profile.Billing.MinValue > profile.Billing.MaxValue {
		return nil, fmt.Errorf("profile %q: billing min_value exceeds max_value", path)
	}
	if profile.HistoryWindow <= 0 {
		profile.HistoryWindow = DefaultProfile().HistoryWindow
	}
	return profile, nil
}

// PreviewTTL returns the preview lifetime as a duration.
func (p *BusinessProfile) PreviewTTL() time.Duration {
	if p.PreviewTTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(p.PreviewTTLMinutes) * time.Minute
}

// IdempotencyTTL returns the ledger record lifetime as a duration.
func (p *BusinessProfile) IdempotencyTTL() time.Duration {
	if p.IdempotencyTTLHrs <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(p.IdempotencyTTLHrs) * time.Hour
}
