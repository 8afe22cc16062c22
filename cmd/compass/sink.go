package main

import (
	"fmt"

	"github.com/entrhq/compass/pkg/types"
)

// eventSink renders graph events to the terminal. Content chunks stream
// inline; the final content event is only printed when nothing streamed, so
// fast-path answers still appear without duplicating streamed output.
type eventSink struct {
	streamed  bool
	showUsage bool
	usage     types.TokenUsage
}

func newEventSink(showUsage bool) *eventSink {
	return &eventSink{showUsage: showUsage}
}

func (s *eventSink) handle(event *types.AgentEvent) {
	switch event.Type {
	case types.EventTypeContent:
		if event.IsFinal {
			if !s.streamed && event.Content != "" {
				fmt.Println(assistantStyle.Render(event.Content))
			}
			return
		}
		s.streamed = true
		fmt.Print(assistantStyle.Render(event.Content))
	case types.EventTypeToolCall:
		fmt.Println(toolStyle.Render(fmt.Sprintf("⚙ %s %v", event.ToolName, event.ToolInput)))
	case types.EventTypeToolError:
		fmt.Println(errorStyle.Render(fmt.Sprintf("⚙ %s failed: %v", event.ToolName, event.Error)))
	case types.EventTypeTokenUsage:
		if event.Usage != nil {
			s.usage.Add(*event.Usage)
		}
	case types.EventTypeError:
		if event.Error != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("error: %v", event.Error)))
		}
	}
}

// finish terminates the streamed line and prints the turn's token usage when
// requested.
func (s *eventSink) finish() {
	if s.streamed {
		fmt.Println()
	}
	if s.showUsage && !s.usage.IsZero() {
		fmt.Println(usageStyle.Render(fmt.Sprintf("tokens: %d prompt + %d completion = %d total",
			s.usage.PromptTokens, s.usage.CompletionTokens, s.usage.TotalTokens)))
	}
}
