// Package classifier turns raw user text into structured intents using
// an ordered set of compiled regular expressions. Rules are checked in
// declaration order and the first match wins; slot values come from
// named capture groups. Anything that matches no rule returns nil and
// is left for the LLM fallback.
package classifier

import (
	"regexp"
	"strings"

	"github.com/zoe-assistant/zoe/pkg/intent"
)

// Classifier maps an utterance to an intent, or nil when no rule applies.
type Classifier interface {
	Classify(text string) *intent.Intent
}

type rule struct {
	name       string
	tier       int
	confidence float64
	pattern    *regexp.Regexp
}

// PatternClassifier is a deterministic rule-based classifier. It covers
// the high-frequency household commands; everything else falls through.
type PatternClassifier struct {
	rules []rule
}

// NewPatternClassifier builds the default rule set. Tier 0 rules are
// direct commands, tier 1 rules are conversational.
func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{rules: []rule{
		// tier 0: commands
		{"ListAdd", 0, 0.95, regexp.MustCompile(`^(?:please\s+)?(?:add|put)\s+(?P<item>.+?)\s+(?:to|on)\s+(?:the\s+|my\s+)?(?P<list>\S+)\s+list$`)},
		{"ListRemove", 0, 0.95, regexp.MustCompile(`^(?:please\s+)?(?:remove|take|delete)\s+(?P<item>.+?)\s+(?:from|off)\s+(?:the\s+|my\s+)?(?P<list>\S+)\s+list$`)},
		{"ListShow", 0, 0.9, regexp.MustCompile(`^(?:show|read|what(?:'s| is) on)\s+(?:me\s+)?(?:the\s+|my\s+)?(?P<list>\S+)\s+list$`)},
		{"ReminderSet", 0, 0.9, regexp.MustCompile(`^remind me to\s+(?P<task>.+?)(?:\s+at\s+(?P<time>.+))?$`)},
		{"CalendarShow", 0, 0.9, regexp.MustCompile(`^what(?:'s| is)\s+(?:on\s+)?(?:my\s+)?(?:calendar|schedule|agenda)(?:\s+(?P<time>.+))?$`)},
		{"MemoryRecall", 0, 0.85, regexp.MustCompile(`^what did i\s+(?P<query>.+)$`)},
		{"DeviceOn", 0, 0.95, regexp.MustCompile(`^(?:please\s+)?(?:turn|switch)\s+on\s+(?:the\s+)?(?P<device>.+)$`)},
		{"DeviceOff", 0, 0.95, regexp.MustCompile(`^(?:please\s+)?(?:turn|switch)\s+off\s+(?:the\s+)?(?P<device>.+)$`)},

		// tier 1: conversational
		{"Greeting", 1, 1.0, regexp.MustCompile(`^(?:hi|hello|hey|good (?:morning|afternoon|evening))[.!]?$`)},
		{"Acknowledge", 1, 1.0, regexp.MustCompile(`^(?:ok|okay|sure|yes|yep|got it)[.!]?$`)},
		{"Cancel", 1, 1.0, regexp.MustCompile(`^(?:cancel|never\s?mind|stop|forget it)[.!]?$`)},
		{"Thanks", 1, 1.0, regexp.MustCompile(`^(?:thanks|thank you|cheers)[.!]?$`)},
		{"Goodbye", 1, 1.0, regexp.MustCompile(`^(?:bye|goodbye|good night|see you)[.!]?$`)},
	}}
}

// Classify matches text against the rule set in order. Matching is
// case-insensitive over the trimmed input.
func (c *PatternClassifier) Classify(text string) *intent.Intent {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return nil
	}

	for _, r := range c.rules {
		match := r.pattern.FindStringSubmatch(normalized)
		if match == nil {
			continue
		}

		slots := map[string]any{}
		for i, group := range r.pattern.SubexpNames() {
			if group == "" || match[i] == "" {
				continue
			}
			slots[group] = strings.TrimSpace(match[i])
		}

		return &intent.Intent{
			Name:         r.name,
			Slots:        slots,
			Confidence:   r.confidence,
			Tier:         r.tier,
			OriginalText: text,
		}
	}
	return nil
}
