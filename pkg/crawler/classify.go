package crawler

import (
	"bytes"
	"regexp"
)

// Observation is what the classifier sees for one probe.
type Observation struct {
	Param        string
	Sentinel     string
	BaselineCode int
	BaselineBody []byte
	TestCode     int
	TestBody     []byte
}

// Rule reports whether an observation matches.
type Rule struct {
	Reason Reason
	Match  func(o *Observation) bool
}

// Classifier applies an ordered rule chain; the first matching rule wins.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds the standard chain: status change, length change
// beyond threshold, reflection, then error patterns.
func NewClassifier(cfg FuzzConfig) (*Classifier, error) {
	patterns, err := compilePatterns(cfg.ErrorPatterns)
	if err != nil {
		return nil, err
	}

	return NewClassifierWithRules(
		StatusChangedRule(),
		LengthChangedRule(cfg.LengthThreshold),
		ReflectedRule(),
		ErrorPatternRule(patterns),
	), nil
}

// NewClassifierWithRules builds a classifier from an explicit rule order.
func NewClassifierWithRules(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the reason of the first matching rule, or ReasonNone.
func (c *Classifier) Classify(o *Observation) Reason {
	for _, rule := range c.rules {
		if rule.Match(o) {
			return rule.Reason
		}
	}
	return ReasonNone
}

// Rules returns the reasons in evaluation order.
func (c *Classifier) Rules() []Reason {
	reasons := make([]Reason, 0, len(c.rules))
	for _, r := range c.rules {
		reasons = append(reasons, r.Reason)
	}
	return reasons
}

// StatusChangedRule matches when the test status differs from the baseline.
func StatusChangedRule() Rule {
	return Rule{
		Reason: ReasonStatusChanged,
		Match: func(o *Observation) bool {
			return o.TestCode != o.BaselineCode
		},
	}
}

// LengthChangedRule matches when the body length moved by more than threshold bytes.
func LengthChangedRule(threshold int) Rule {
	return Rule{
		Reason: ReasonLengthChanged,
		Match: func(o *Observation) bool {
			delta := len(o.TestBody) - len(o.BaselineBody)
			if delta < 0 {
				delta = -delta
			}
			return delta > threshold
		},
	}
}

// ReflectedRule matches when the sentinel or the parameter name appears in
// the test body, ignoring case.
func ReflectedRule() Rule {
	return Rule{
		Reason: ReasonParamReflected,
		Match: func(o *Observation) bool {
			body := bytes.ToLower(o.TestBody)
			if o.Sentinel != "" && bytes.Contains(body, bytes.ToLower([]byte(o.Sentinel))) {
				return true
			}
			return o.Param != "" && bytes.Contains(body, bytes.ToLower([]byte(o.Param)))
		},
	}
}

// ErrorPatternRule matches when any pattern occurs in the test body.
func ErrorPatternRule(patterns []*regexp.Regexp) Rule {
	return Rule{
		Reason: ReasonErrorDetected,
		Match: func(o *Observation) bool {
			for _, re := range patterns {
				if re.Match(o.TestBody) {
					return true
				}
			}
			return false
		},
	}
}
