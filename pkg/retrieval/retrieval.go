// Package retrieval decides whether a message needs long-term context
// fetched before responding, and which context types to fetch. The
// decision is a pure function of the classified intent and the raw
// query; it performs no retrieval itself.
package retrieval

import (
	"strings"

	"github.com/zoe-assistant/zoe/pkg/intent"
)

// context type identifiers returned by RequiredContextTypes.
const (
	ContextMemory   = "memory"
	ContextTemporal = "temporal"
	ContextCalendar = "calendar"
	ContextLists    = "lists"
)

// memoryKeywords force retrieval no matter what the classifier said.
// A user who says "remember" or "recall" is asking about stored
// history even when the utterance also matched an action pattern.
var memoryKeywords = []string{
	"remember",
	"recall",
	"did i",
	"told",
	"said",
	"last time",
	"yesterday",
	"earlier",
}

// tier-0 intents whose handlers read stored data rather than mutate it.
var dataFetchIntents = map[string]bool{
	"ListShow":     true,
	"CalendarShow": true,
	"MemoryRecall": true,
	"ReminderShow": true,
	"JournalShow":  true,
}

// tier-1 intents that are pure conversational filler.
var conversationalIntents = map[string]bool{
	"Greeting":    true,
	"Acknowledge": true,
	"Cancel":      true,
	"Goodbye":     true,
	"Thanks":      true,
}

// ShouldRetrieveContext reports whether long-term context should be
// fetched before handling the query. A nil intent means the message
// fell through classification and is headed to the LLM, which always
// benefits from context.
func ShouldRetrieveContext(it *intent.Intent, query string) bool {
	if it == nil {
		return true
	}

	lowered := strings.ToLower(query)
	for _, keyword := range memoryKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}

	if it.Tier == 0 {
		return dataFetchIntents[it.Name]
	}

	if isComplexQuery(query) {
		return true
	}

	if it.Tier == 1 {
		return !conversationalIntents[it.Name]
	}

	return true
}

// isComplexQuery flags long or multi-question utterances that a
// template answer cannot serve.
func isComplexQuery(query string) bool {
	if len(strings.Fields(query)) > 15 {
		return true
	}
	return strings.Count(query, "?") > 1
}

// RequiredContextTypes returns which context sources to query for an
// intent name. Unrecognized intents get the general-purpose set.
func RequiredContextTypes(name string) []string {
	switch name {
	case "MemoryRecall", "MemoryStore":
		return []string{ContextMemory}
	case "CalendarShow", "ReminderSet", "ReminderShow":
		return []string{ContextCalendar, ContextTemporal}
	case "ListShow", "ListAdd", "ListRemove":
		return []string{ContextLists}
	case "JournalShow", "JournalAdd":
		return []string{ContextMemory, ContextTemporal}
	default:
		return []string{ContextMemory, ContextTemporal, ContextCalendar}
	}
}
