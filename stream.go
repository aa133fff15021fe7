package llmtrace

import (
	"strings"
)

// StreamEventType identifies one kind of streaming partial event. The
// vocabulary follows the anthropic message stream shape, which the other
// vendor adapters normalize into.
type StreamEventType string

const (
	StreamEventMessageStart      StreamEventType = "message_start"
	StreamEventContentBlockStart StreamEventType = "content_block_start"
	StreamEventContentBlockDelta StreamEventType = "content_block_delta"
	StreamEventContentBlockStop  StreamEventType = "content_block_stop"
	StreamEventMessageDelta      StreamEventType = "message_delta"
	StreamEventMessageStop       StreamEventType = "message_stop"
)

// Content block types carried by start events.
const (
	blockTypeText    = "text"
	blockTypeToolUse = "tool_use"
)

// TokenUsage accumulates token counts across a call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// merge folds an incremental usage report into the running total. Vendors
// report either cumulative values (overwrite) or one final report; taking
// the larger value handles both without double counting.
func (u *TokenUsage) merge(delta *TokenUsage) {
	if delta == nil {
		return
	}
	u.InputTokens = max(u.InputTokens, delta.InputTokens)
	u.OutputTokens = max(u.OutputTokens, delta.OutputTokens)
	u.TotalTokens = max(u.TotalTokens, delta.TotalTokens, u.InputTokens+u.OutputTokens)
}

// ToolCallRecord is one reconstructed tool invocation request.
type ToolCallRecord struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// StreamEvent is one vendor-neutral partial event. Only the fields relevant
// to its Type are populated.
type StreamEvent struct {
	Type StreamEventType

	// message_start
	Role  string
	Model string

	// content_block_start
	BlockType string
	ToolID    string
	ToolName  string

	// content_block_delta
	Text        string
	PartialJSON string

	// message_start / message_delta
	StopReason string
	Usage      *TokenUsage
}

// ReconstructedMessage is the single logical result rebuilt from a stream.
type ReconstructedMessage struct {
	Role       string           `json:"role"`
	Model      string           `json:"model,omitempty"`
	Content    string           `json:"content"`
	ToolCalls  []ToolCallRecord `json:"tool_calls,omitempty"`
	StopReason string           `json:"stop_reason,omitempty"`
	Usage      TokenUsage       `json:"usage"`
}

// OutputValue returns the span output for this message: the concatenated
// text when any was produced, otherwise the JSON of the whole message so
// tool-only responses still carry an output.
func (m *ReconstructedMessage) OutputValue() string {
	if m.Content != "" {
		return m.Content
	}
	if len(m.ToolCalls) > 0 {
		return safeJSON(m)
	}
	return ""
}

// streamAggregator is the per-call state machine over stream events. It is
// owned by a single goroutine; no locking.
type streamAggregator struct {
	msg  ReconstructedMessage
	text strings.Builder

	// open tool block, if any
	toolOpen bool
	toolID   string
	toolName string
	toolArgs strings.Builder
}

func newStreamAggregator() *streamAggregator {
	return &streamAggregator{}
}

// feed applies one event. Events arriving out of the canonical order are
// tolerated: unknown or unexpected events are ignored rather than failing
// the aggregation.
func (a *streamAggregator) feed(ev StreamEvent) {
	switch ev.Type {
	case StreamEventMessageStart:
		if ev.Role != "" {
			a.msg.Role = ev.Role
		}
		if ev.Model != "" {
			a.msg.Model = ev.Model
		}
		a.msg.Usage.merge(ev.Usage)

	case StreamEventContentBlockStart:
		if ev.BlockType == blockTypeToolUse {
			a.toolOpen = true
			a.toolID = ev.ToolID
			a.toolName = ev.ToolName
			a.toolArgs.Reset()
		}

	case StreamEventContentBlockDelta:
		if ev.Text != "" {
			a.text.WriteString(ev.Text)
		}
		if ev.PartialJSON != "" && a.toolOpen {
			a.toolArgs.WriteString(ev.PartialJSON)
		}

	case StreamEventContentBlockStop:
		a.flushToolBlock()

	case StreamEventMessageDelta:
		if ev.StopReason != "" {
			a.msg.StopReason = ev.StopReason
		}
		a.msg.Usage.merge(ev.Usage)

	case StreamEventMessageStop:
		a.flushToolBlock()
	}
}

// flushToolBlock closes an open tool-call accumulator. Partial or malformed
// argument JSON degrades to an empty object.
func (a *streamAggregator) flushToolBlock() {
	if !a.toolOpen {
		return
	}
	a.msg.ToolCalls = append(a.msg.ToolCalls, ToolCallRecord{
		ID:        a.toolID,
		Name:      a.toolName,
		Arguments: parseToolArguments(a.toolArgs.String()),
	})
	a.toolOpen = false
	a.toolID = ""
	a.toolName = ""
	a.toolArgs.Reset()
}

// result finalizes and returns the reconstructed message.
func (a *streamAggregator) result() *ReconstructedMessage {
	a.flushToolBlock()
	a.msg.Content = a.text.String()
	if a.msg.Role == "" {
		a.msg.Role = "assistant"
	}
	return &a.msg
}

// AggregateStream drains events and returns the reconstructed message. It
// blocks until the channel is closed.
func AggregateStream(events <-chan StreamEvent) *ReconstructedMessage {
	agg := newStreamAggregator()
	for ev := range events {
		agg.feed(ev)
	}
	return agg.result()
}

// TeeStream duplicates an event sequence for two independent consumers. Each
// leg is decoupled through its own unbounded buffer, so the source is drained
// at its own pace and neither consumer can stall the other: a slow or absent
// aggregation reader never delays the caller, and a caller who abandons their
// copy never stops aggregation from seeing the full sequence. Both channels
// close once the source closes and their buffers drain.
func TeeStream(src <-chan StreamEvent) (caller <-chan StreamEvent, agg <-chan StreamEvent) {
	callerIn := make(chan StreamEvent)
	aggIn := make(chan StreamEvent)

	// Both buffer inlets always accept, so this loop runs at the source's
	// pace regardless of either consumer.
	go func() {
		defer close(callerIn)
		defer close(aggIn)
		for ev := range src {
			aggIn <- ev
			callerIn <- ev
		}
	}()

	return elasticBuffer(callerIn), elasticBuffer(aggIn)
}

// elasticBuffer relays events through an unbounded queue. It always accepts
// from in, so the sender never waits on the consumer; the returned channel
// closes after in closes and the queue is drained.
func elasticBuffer(in <-chan StreamEvent) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		var queue []StreamEvent
		src := in
		for src != nil || len(queue) > 0 {
			var send chan StreamEvent
			var head StreamEvent
			if len(queue) > 0 {
				send = out
				head = queue[0]
			}
			select {
			case ev, ok := <-src:
				if !ok {
					src = nil
					continue
				}
				queue = append(queue, ev)
			case send <- head:
				queue = queue[1:]
			}
		}
	}()
	return out
}
