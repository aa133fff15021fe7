package llmtrace

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// ClaudeStreamEvent normalizes one anthropic stream event. The second
// return is false for event shapes that carry nothing to aggregate.
func ClaudeStreamEvent(event anthropic.MessageStreamEventUnion) (StreamEvent, bool) {
	switch event.Type {
	case "message_start":
		startEvent := event.AsMessageStartEvent()
		return StreamEvent{
			Type:  StreamEventMessageStart,
			Role:  string(startEvent.Message.Role),
			Model: string(startEvent.Message.Model),
			Usage: &TokenUsage{
				InputTokens:  int(startEvent.Message.Usage.InputTokens),
				OutputTokens: int(startEvent.Message.Usage.OutputTokens),
			},
		}, true

	case "content_block_start":
		startEvent := event.AsContentBlockStartEvent()
		if startEvent.ContentBlock.Type == "tool_use" {
			toolUseBlock := startEvent.ContentBlock.AsResponseToolUseBlock()
			return StreamEvent{
				Type:      StreamEventContentBlockStart,
				BlockType: blockTypeToolUse,
				ToolID:    toolUseBlock.ID,
				ToolName:  toolUseBlock.Name,
			}, true
		}
		return StreamEvent{Type: StreamEventContentBlockStart, BlockType: blockTypeText}, true

	case "content_block_delta":
		deltaEvent := event.AsContentBlockDeltaEvent()
		switch deltaEvent.Delta.Type {
		case "text_delta":
			textDelta := deltaEvent.Delta.AsTextContentBlockDelta()
			return StreamEvent{Type: StreamEventContentBlockDelta, Text: textDelta.Text}, true
		case "input_json_delta":
			jsonDelta := deltaEvent.Delta.AsInputJSONContentBlockDelta()
			return StreamEvent{Type: StreamEventContentBlockDelta, PartialJSON: jsonDelta.PartialJSON}, true
		}
		return StreamEvent{}, false

	case "content_block_stop":
		return StreamEvent{Type: StreamEventContentBlockStop}, true

	case "message_delta":
		deltaEvent := event.AsMessageDeltaEvent()
		return StreamEvent{
			Type:       StreamEventMessageDelta,
			StopReason: string(deltaEvent.Delta.StopReason),
			Usage:      &TokenUsage{OutputTokens: int(deltaEvent.Usage.OutputTokens)},
		}, true

	case "message_stop":
		return StreamEvent{Type: StreamEventMessageStop}, true
	}

	return StreamEvent{}, false
}

// ClaudeStream drains an anthropic SSE stream into neutral events. The
// returned channel closes when the stream is exhausted or errors; a stream
// error ends aggregation with whatever was reconstructed so far.
func ClaudeStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion]) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		for stream.Next() {
			if ev, ok := ClaudeStreamEvent(stream.Current()); ok {
				out <- ev
			}
		}
	}()
	return out
}
