package agent

import (
	"unicode/utf8"

	kabuErrors "github.com/harunnryd/kabu/internal/errors"
	"github.com/harunnryd/kabu/internal/model/contract"
)

// segment holds the messages of one user query and everything the loop
// produced while answering it.
type segment struct {
	messages []contract.Message
}

// Conversation is the append-only message history, partitioned into one
// segment per user query. The system prompt is held apart and prepended by
// Messages so compaction can never touch it.
//
// Messages are never edited in place: the only structural mutation is
// CompactSegment, which swaps a whole segment for its two-message compacted
// form (original user query + summary).
type Conversation struct {
	systemPrompt contract.Message
	segments     []*segment

	loopCount            int
	loopsSinceCompaction int
	size                 int
}

func NewConversation(systemPrompt string) *Conversation {
	c := &Conversation{
		systemPrompt: contract.Message{Role: contract.RoleSystem, Content: systemPrompt},
	}
	c.size = messageSize(c.systemPrompt)
	return c
}

// BeginSegment opens a new segment seeded with the user's query.
func (c *Conversation) BeginSegment(query string) {
	c.segments = append(c.segments, &segment{})
	c.Append(contract.Message{Role: contract.RoleUser, Content: query})
}

// Append adds a message to the current segment.
func (c *Conversation) Append(msg contract.Message) {
	if len(c.segments) == 0 {
		c.segments = append(c.segments, &segment{})
	}
	current := c.segments[len(c.segments)-1]
	current.messages = append(current.messages, msg)
	c.size += messageSize(msg)
}

// Messages returns the full history: system prompt, then every segment in
// order. The returned slice is a copy.
func (c *Conversation) Messages() []contract.Message {
	out := make([]contract.Message, 0, c.messageCount()+1)
	out = append(out, c.systemPrompt)
	for _, seg := range c.segments {
		out = append(out, seg.messages...)
	}
	return out
}

// CurrentSegment returns a copy of the in-progress segment's messages.
// Tool decisions read only this slice: the current thought cycle is all the
// inference model needs.
func (c *Conversation) CurrentSegment() []contract.Message {
	if len(c.segments) == 0 {
		return nil
	}
	current := c.segments[len(c.segments)-1]
	out := make([]contract.Message, len(current.messages))
	copy(out, current.messages)
	return out
}

// SegmentMessages returns a copy of segment i's messages.
func (c *Conversation) SegmentMessages(i int) ([]contract.Message, error) {
	if i < 0 || i >= len(c.segments) {
		return nil, kabuErrors.NotFound("conversation segment out of range")
	}
	seg := c.segments[i]
	out := make([]contract.Message, len(seg.messages))
	copy(out, seg.messages)
	return out, nil
}

func (c *Conversation) SegmentCount() int {
	return len(c.segments)
}

// CompactSegment replaces segment i's messages with the original user query
// and the summary message. The user query survives every compaction
// verbatim.
func (c *Conversation) CompactSegment(i int, summary contract.Message) error {
	if i < 0 || i >= len(c.segments) {
		return kabuErrors.NotFound("conversation segment out of range")
	}
	seg := c.segments[i]
	if len(seg.messages) == 0 || seg.messages[0].Role != contract.RoleUser {
		return kabuErrors.Internal("segment does not start with a user message")
	}

	for _, msg := range seg.messages {
		c.size -= messageSize(msg)
	}
	seg.messages = []contract.Message{seg.messages[0], summary}
	for _, msg := range seg.messages {
		c.size += messageSize(msg)
	}
	return nil
}

// NextCompactable returns the oldest segment still worth compacting. A
// segment in compacted form ({user, summary}) or a freshly opened one
// ({user}) has nothing to shed.
func (c *Conversation) NextCompactable() (int, bool) {
	for i, seg := range c.segments {
		if len(seg.messages) > 2 {
			return i, true
		}
	}
	return 0, false
}

// RecordLoop marks one completed think-act-observe cycle.
func (c *Conversation) RecordLoop() {
	c.loopCount++
	c.loopsSinceCompaction++
}

func (c *Conversation) LoopCount() int { return c.loopCount }

func (c *Conversation) LoopsSinceCompaction() int { return c.loopsSinceCompaction }

func (c *Conversation) ResetCompactionWindow() { c.loopsSinceCompaction = 0 }

// Size is the rune-count estimate of the full history, used as the cheap
// stand-in for token count when deciding whether to compact.
func (c *Conversation) Size() int { return c.size }

func (c *Conversation) messageCount() int {
	n := 0
	for _, seg := range c.segments {
		n += len(seg.messages)
	}
	return n
}

func messageSize(msg contract.Message) int {
	n := utf8.RuneCountInString(msg.Content)
	for _, call := range msg.ToolCalls {
		n += utf8.RuneCountInString(call.Name) + utf8.RuneCountInString(call.Input)
	}
	return n
}
