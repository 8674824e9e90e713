package main

import (
	"context"

	"github.com/zoe-assistant/zoe/pkg/intent"
)

// conversationalReplies are the canned tier-1 responses. Domain intents
// (lists, calendar, devices) are registered by the deployment that owns
// those services.
var conversationalReplies = map[string]string{
	"Greeting":    "Hello! How can I help?",
	"Acknowledge": "Okay.",
	"Cancel":      "No problem, cancelled.",
	"Thanks":      "You're welcome!",
	"Goodbye":     "Goodbye!",
}

func registerBuiltinHandlers(executor *intent.Executor) {
	for name, reply := range conversationalReplies {
		reply := reply
		executor.Register(name, intent.HandlerFunc(func(context.Context, *intent.Intent, string, map[string]any) (intent.Result, error) {
			return intent.Result{Success: true, Message: reply}, nil
		}))
	}
}
