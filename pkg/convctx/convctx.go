// Package convctx provides the short-term conversational context store:
// per user+session slot memory (last items, device, list, area, time,
// intent) used to resolve references like "add that too". Context is
// read-modify-write per field; concurrent writers for the same session are
// last-writer-wins, an accepted tradeoff for a single-user assistant.
package convctx

import "context"

// Context is the slot memory for one user+session.
type Context struct {
	LastItems  []string `json:"last_items"`
	LastDevice string   `json:"last_device"`
	LastList   string   `json:"last_list"`
	LastArea   string   `json:"last_area"`
	LastTime   string   `json:"last_time"`
	LastIntent string   `json:"last_intent"`
}

// AsMap renders the context as the plain mapping handlers receive.
func (c Context) AsMap() map[string]any {
	return map[string]any{
		"last_items":  c.LastItems,
		"last_device": c.LastDevice,
		"last_list":   c.LastList,
		"last_area":   c.LastArea,
		"last_time":   c.LastTime,
		"last_intent": c.LastIntent,
	}
}

// Store persists conversational context per user+session.
type Store interface {
	// Context returns the current context, or a zero value when none exists.
	Context(ctx context.Context, userID, sessionID string) (Context, error)
	// UpdateFromIntent overwrites context fields from a successfully executed
	// intent's slots. Fields are replaced per-slot, not merged item-by-item.
	UpdateFromIntent(ctx context.Context, userID, sessionID, intentName string, slots map[string]any) error
}

// applySlots maps intent slots onto context fields. Recognized slot names
// follow the classifier's conventions; unknown slots are ignored.
func applySlots(c *Context, intentName string, slots map[string]any) {
	c.LastIntent = intentName

	for key, value := range slots {
		switch key {
		case "item", "items":
			c.LastItems = toStringSlice(value)
		case "device":
			if s, ok := value.(string); ok {
				c.LastDevice = s
			}
		case "list":
			if s, ok := value.(string); ok {
				c.LastList = s
			}
		case "area", "room":
			if s, ok := value.(string); ok {
				c.LastArea = s
			}
		case "time":
			if s, ok := value.(string); ok {
				c.LastTime = s
			}
		}
	}
}

func toStringSlice(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
