package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// FakeChatModel is a scripted model.ChatModel. Reply receives the rendered
// prompt and returns the assistant text.
type FakeChatModel struct {
	Reply func(msgs []*schema.Message) (string, error)

	mu    sync.Mutex
	calls [][]*schema.Message
}

// NewFakeChatModel returns a model that always answers text.
func NewFakeChatModel(text string) *FakeChatModel {
	return &FakeChatModel{Reply: func([]*schema.Message) (string, error) { return text, nil }}
}

// Generate implements model.BaseChatModel.
func (f *FakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	text, err := f.answer(input)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(text, nil), nil
}

// Stream implements model.BaseChatModel, emitting one chunk per word.
func (f *FakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	text, err := f.answer(input)
	if err != nil {
		return nil, err
	}
	var chunks []*schema.Message
	words := strings.SplitAfter(text, " ")
	for _, w := range words {
		if w == "" {
			continue
		}
		chunks = append(chunks, schema.AssistantMessage(w, nil))
	}
	return schema.StreamReaderFromArray(chunks), nil
}

// BindTools implements model.ChatModel.
func (f *FakeChatModel) BindTools([]*schema.ToolInfo) error { return nil }

// Calls returns the prompts seen so far.
func (f *FakeChatModel) Calls() [][]*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]*schema.Message(nil), f.calls...)
}

// LastSystemPrompt returns the system message of the latest call.
func (f *FakeChatModel) LastSystemPrompt() string {
	calls := f.Calls()
	if len(calls) == 0 {
		return ""
	}
	for _, m := range calls[len(calls)-1] {
		if m.Role == schema.System {
			return m.Content
		}
	}
	return ""
}

func (f *FakeChatModel) answer(input []*schema.Message) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, input)
	f.mu.Unlock()
	return f.Reply(input)
}
