// Package interactions looks up known medication/food interactions.
package interactions

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Severity of an interaction.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// Rule is one row of the interaction table.
type Rule struct {
	Medication string   `yaml:"medication" json:"medication"`
	Triggers   []string `yaml:"triggers" json:"triggers"`
	Nutrient   string   `yaml:"nutrient" json:"nutrient"`
	Severity   Severity `yaml:"severity" json:"severity"`
	Message    string   `yaml:"message" json:"message"`
}

// Hit is a single matched interaction.
type Hit struct {
	Medication string   `json:"medication"`
	Food       string   `json:"food"`
	Nutrient   string   `json:"nutrient"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
}

//go:embed rules.yaml
var rulesYAML []byte

var (
	loadOnce   sync.Once
	tableRules []Rule
	loadErr    error
)

// ParseRules decodes an interaction table.
func ParseRules(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse interaction rules: %w", err)
	}
	for i, r := range rules {
		if r.Medication == "" || len(r.Triggers) == 0 {
			return nil, fmt.Errorf("interaction rule %d is missing medication or triggers", i)
		}
		switch r.Severity {
		case SeverityLow, SeverityModerate, SeverityHigh:
		default:
			return nil, fmt.Errorf("interaction rule %d (%s) has invalid severity %q", i, r.Medication, r.Severity)
		}
		rules[i].Medication = strings.ToLower(r.Medication)
		for j, trig := range r.Triggers {
			rules[i].Triggers[j] = strings.ToLower(trig)
		}
	}
	return rules, nil
}

// Rules returns the embedded table. It is parsed once.
func Rules() []Rule {
	loadOnce.Do(func() {
		tableRules, loadErr = ParseRules(rulesYAML)
	})
	if loadErr != nil {
		// The table is compiled into the binary; a parse failure is a build defect.
		panic(loadErr)
	}
	return tableRules
}

// Check returns every interaction between medication and foods.
// One hit is produced per (rule, food) pair; food is reported as given.
func Check(medication string, foods []string) []Hit {
	return CheckRules(Rules(), medication, foods)
}

// CheckRules is Check against an explicit table.
func CheckRules(rules []Rule, medication string, foods []string) []Hit {
	med := strings.ToLower(strings.TrimSpace(medication))
	if med == "" {
		return nil
	}

	var hits []Hit
	for _, rule := range rules {
		if !strings.Contains(med, rule.Medication) {
			continue
		}
		for _, food := range foods {
			if matchesAny(strings.ToLower(food), rule.Triggers) {
				hits = append(hits, Hit{
					Medication: medication,
					Food:       food,
					Nutrient:   rule.Nutrient,
					Severity:   rule.Severity,
					Message:    rule.Message,
				})
			}
		}
	}
	return hits
}

// CheckAll runs Check for each medication and concatenates the hits.
func CheckAll(medications, foods []string) []Hit {
	var hits []Hit
	for _, med := range medications {
		hits = append(hits, Check(med, foods)...)
	}
	return hits
}

// SafeToConsume reports whether no hit is high severity.
// Moderate hits never compound into an unsafe verdict.
func SafeToConsume(hits []Hit) bool {
	for _, h := range hits {
		if h.Severity == SeverityHigh {
			return false
		}
	}
	return true
}

func matchesAny(food string, triggers []string) bool {
	for _, trig := range triggers {
		if strings.Contains(food, trig) {
			return true
		}
	}
	return false
}
