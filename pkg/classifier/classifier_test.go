package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCommands(t *testing.T) {
	c := NewPatternClassifier()

	tests := []struct {
		text  string
		name  string
		tier  int
		slots map[string]any
	}{
		{
			text:  "add bread to shopping list",
			name:  "ListAdd",
			tier:  0,
			slots: map[string]any{"item": "bread", "list": "shopping"},
		},
		{
			text:  "Please add olive oil to the grocery list",
			name:  "ListAdd",
			tier:  0,
			slots: map[string]any{"item": "olive oil", "list": "grocery"},
		},
		{
			text:  "remove milk from the shopping list",
			name:  "ListRemove",
			tier:  0,
			slots: map[string]any{"item": "milk", "list": "shopping"},
		},
		{
			text:  "show me the shopping list",
			name:  "ListShow",
			tier:  0,
			slots: map[string]any{"list": "shopping"},
		},
		{
			text:  "remind me to call mom at 5pm",
			name:  "ReminderSet",
			tier:  0,
			slots: map[string]any{"task": "call mom", "time": "5pm"},
		},
		{
			text:  "remind me to water the plants",
			name:  "ReminderSet",
			tier:  0,
			slots: map[string]any{"task": "water the plants"},
		},
		{
			text:  "what's on my calendar today",
			name:  "CalendarShow",
			tier:  0,
			slots: map[string]any{"time": "today"},
		},
		{
			text:  "turn on the kitchen light",
			name:  "DeviceOn",
			tier:  0,
			slots: map[string]any{"device": "kitchen light"},
		},
		{
			text:  "switch off the heater",
			name:  "DeviceOff",
			tier:  0,
			slots: map[string]any{"device": "heater"},
		},
		{
			text:  "what did i eat yesterday",
			name:  "MemoryRecall",
			tier:  0,
			slots: map[string]any{"query": "eat yesterday"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			it := c.Classify(tt.text)
			require.NotNil(t, it)
			assert.Equal(t, tt.name, it.Name)
			assert.Equal(t, tt.tier, it.Tier)
			assert.Equal(t, tt.slots, it.Slots)
			assert.Equal(t, tt.text, it.OriginalText)
			assert.Greater(t, it.Confidence, 0.0)
		})
	}
}

func TestClassifyConversational(t *testing.T) {
	c := NewPatternClassifier()

	tests := map[string]string{
		"hello":        "Greeting",
		"Hey":          "Greeting",
		"good morning": "Greeting",
		"ok":           "Acknowledge",
		"got it":       "Acknowledge",
		"nevermind":    "Cancel",
		"never mind":   "Cancel",
		"thanks!":      "Thanks",
		"Thank you":    "Thanks",
		"bye":          "Goodbye",
		"good night":   "Goodbye",
	}

	for text, want := range tests {
		it := c.Classify(text)
		require.NotNil(t, it, "expected %q to classify", text)
		assert.Equal(t, want, it.Name)
		assert.Equal(t, 1, it.Tier)
	}
}

func TestClassifyNoMatch(t *testing.T) {
	c := NewPatternClassifier()

	for _, text := range []string{
		"",
		"   ",
		"what should I cook for dinner tonight",
		"tell me a joke",
		"add bread", // no target list
	} {
		assert.Nil(t, c.Classify(text), "expected %q not to classify", text)
	}
}

func TestClassifyNormalizesWhitespaceAndCase(t *testing.T) {
	c := NewPatternClassifier()

	it := c.Classify("  ADD Bread TO Shopping LIST  ")
	require.NotNil(t, it)
	assert.Equal(t, "ListAdd", it.Name)
	assert.Equal(t, "bread", it.Slots["item"])
	assert.Equal(t, "shopping", it.Slots["list"])
}
