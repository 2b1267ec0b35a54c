package triage

import "strings"

// Rule maps a set of lower-case keywords to a level. Rules are evaluated in
// order and the first rule with a matching keyword wins.
type Rule struct {
	Level    Level
	Keywords []string
}

// DefaultRules is the clinic's keyword table, most urgent first.
var DefaultRules = []Rule{
	{
		Level: LevelCritical,
		Keywords: []string{
			"chest pain",
			"difficulty breathing",
			"severe bleeding",
			"unconscious",
			"seizure",
			"acute trauma",
		},
	},
	{
		Level: LevelHigh,
		Keywords: []string{
			"high fever",
			"moderate pain",
			"severe headache",
			"vertigo",
			"moderate bleeding",
		},
	},
}

// Result describes a classification and the keyword that decided it.
type Result struct {
	Level          Level  `json:"triage_level"`
	MatchedKeyword string `json:"matched_keyword,omitempty"`
	Recommendation string `json:"recommendation"`
}

// Classifier performs case-insensitive substring matching against an ordered rule table.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier over rules. Keywords are lower-cased once
// here; nil rules means DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	normalized := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		keywords := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		normalized = append(normalized, Rule{Level: rule.Level, Keywords: keywords})
	}
	return &Classifier{rules: normalized}
}

// Classify returns the level for a symptom description. Text matching no rule is NORMAL.
func (c *Classifier) Classify(symptoms string) Result {
	text := strings.ToLower(symptoms)
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return Result{Level: rule.Level, MatchedKeyword: kw, Recommendation: rule.Level.Recommendation()}
			}
		}
	}
	return Result{Level: LevelNormal, Recommendation: LevelNormal.Recommendation()}
}

var defaultClassifier = NewClassifier(DefaultRules)

// ClassifySymptoms classifies text with DefaultRules.
func ClassifySymptoms(symptoms string) Level {
	return defaultClassifier.Classify(symptoms).Level
}
