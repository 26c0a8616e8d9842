// Package rules parses and validates the idle rule file.
// Each rule maps an idle timeout to an action and an optional restore action.
package rules

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

// Spec is one rule entry as written in the rule file.
// The file is YAML; JSON files parse unchanged.
type Spec struct {
	Timeout       int    `yaml:"timeout"`
	Action        string `yaml:"action"`
	RestoreAction string `yaml:"restoreAction,omitempty"`
	OnBatteryOnly bool   `yaml:"onBatteryOnly,omitempty"`
}

// SkippedRule records a rule dropped by validation.
type SkippedRule struct {
	Index int
	Err   error
}

// ParseResult is the outcome of parsing a rule file.
// Rules keeps file order.
type ParseResult struct {
	Rules   []domain.Rule
	Skipped []SkippedRule
}

// errEmptyFile rejects empty content, which is what a reload sees mid-write.
var errEmptyFile = errors.New("rule file is empty (use [] for no rules)")

// Parse decodes a rule file. Syntax errors fail the whole file; individual
// invalid rules are reported in Skipped and left out of Rules.
func Parse(data []byte) (*ParseResult, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyFile
	}

	var specs []Spec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	result := &ParseResult{Rules: make([]domain.Rule, 0, len(specs))}
	for i, s := range specs {
		rule, err := s.ToRule()
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedRule{Index: i, Err: err})
			continue
		}
		result.Rules = append(result.Rules, rule)
	}
	return result, nil
}

// Validate checks a single rule entry.
func (s Spec) Validate() error {
	if s.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %d", domain.ErrInvalidRule, s.Timeout)
	}
	if strings.TrimSpace(s.Action) == "" {
		return fmt.Errorf("%w: action is required", domain.ErrInvalidRule)
	}
	return nil
}

// ToRule validates the entry and converts it to a domain.Rule.
func (s Spec) ToRule() (domain.Rule, error) {
	if err := s.Validate(); err != nil {
		return domain.Rule{}, err
	}
	return domain.Rule{
		TimeoutSeconds: s.Timeout,
		Action:         strings.TrimSpace(s.Action),
		RestoreAction:  strings.TrimSpace(s.RestoreAction),
		OnBatteryOnly:  s.OnBatteryOnly,
	}, nil
}

// FromRule converts a domain.Rule back to its file form.
func FromRule(r domain.Rule) Spec {
	return Spec{
		Timeout:       r.TimeoutSeconds,
		Action:        r.Action,
		RestoreAction: r.RestoreAction,
		OnBatteryOnly: r.OnBatteryOnly,
	}
}
