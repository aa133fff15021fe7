package llmtrace

import (
	"github.com/sashabaranov/go-openai"
)

// OpenAIStreamState tracks what the chunk sequence has revealed so far so
// chunks can be rewritten as the canonical event shapes. The zero value is
// ready to use; feed it chunks in arrival order.
type OpenAIStreamState struct {
	started   bool
	toolOpen  bool
	toolIndex int
	tools     map[int]toolIdentity
}

// toolIdentity is the ID/name a tool-call index announced when it first
// appeared; later argument-only fragments carry neither.
type toolIdentity struct {
	id   string
	name string
}

// OpenAIStreamEvents normalizes one OpenAI stream chunk into zero or more
// neutral events. OpenAI interleaves role, text, and tool-call fragments in
// one chunk shape, so a single chunk can open and feed blocks at once.
func (s *OpenAIStreamState) OpenAIStreamEvents(resp openai.ChatCompletionStreamResponse) []StreamEvent {
	var events []StreamEvent

	if !s.started {
		s.started = true
		start := StreamEvent{Type: StreamEventMessageStart, Model: resp.Model, Role: "assistant"}
		if len(resp.Choices) > 0 && resp.Choices[0].Delta.Role != "" {
			start.Role = resp.Choices[0].Delta.Role
		}
		events = append(events, start)
	}

	// Usage arrives in the final chunk when StreamOptions.IncludeUsage is
	// set; it may ride a chunk with no choices.
	if resp.Usage != nil {
		events = append(events, StreamEvent{
			Type: StreamEventMessageDelta,
			Usage: &TokenUsage{
				InputTokens:  resp.Usage.PromptTokens,
				OutputTokens: resp.Usage.CompletionTokens,
				TotalTokens:  resp.Usage.TotalTokens,
			},
		})
	}

	if len(resp.Choices) == 0 {
		return events
	}
	delta := resp.Choices[0].Delta

	if delta.Content != "" {
		events = append(events, StreamEvent{Type: StreamEventContentBlockDelta, Text: delta.Content})
	}

	for _, call := range delta.ToolCalls {
		// Index keys the open block. Fragments of parallel tool calls each
		// carry their call's index; only the first fragment of a call
		// carries its ID and name.
		idx := 0
		if call.Index != nil {
			idx = *call.Index
		}
		if s.tools == nil {
			s.tools = map[int]toolIdentity{}
		}
		ident := s.tools[idx]
		if call.ID != "" {
			ident.id = call.ID
		}
		if call.Function.Name != "" {
			ident.name = call.Function.Name
		}
		s.tools[idx] = ident

		if !s.toolOpen || s.toolIndex != idx {
			if s.toolOpen {
				events = append(events, StreamEvent{Type: StreamEventContentBlockStop})
			}
			s.toolOpen = true
			s.toolIndex = idx
			events = append(events, StreamEvent{
				Type:      StreamEventContentBlockStart,
				BlockType: blockTypeToolUse,
				ToolID:    ident.id,
				ToolName:  ident.name,
			})
		}
		if call.Function.Arguments != "" {
			events = append(events, StreamEvent{Type: StreamEventContentBlockDelta, PartialJSON: call.Function.Arguments})
		}
	}

	if resp.Choices[0].FinishReason != "" {
		if s.toolOpen {
			s.toolOpen = false
			events = append(events, StreamEvent{Type: StreamEventContentBlockStop})
		}
		events = append(events,
			StreamEvent{Type: StreamEventMessageDelta, StopReason: string(resp.Choices[0].FinishReason)},
			StreamEvent{Type: StreamEventMessageStop},
		)
	}

	return events
}

// OpenAIStream drains an OpenAI chat completion stream into neutral events.
// Receive errors (including io.EOF) close the channel; the partial
// reconstruction up to that point still flows to the aggregator.
func OpenAIStream(stream *openai.ChatCompletionStream) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer stream.Close()

		var state OpenAIStreamState
		for {
			resp, err := stream.Recv()
			if err != nil {
				return
			}
			for _, ev := range state.OpenAIStreamEvents(resp) {
				out <- ev
			}
		}
	}()
	return out
}
