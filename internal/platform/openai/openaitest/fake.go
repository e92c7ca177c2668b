// Package openaitest provides a scripted openai.Client for tests.
package openaitest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/openai"
)

// Call records one request made to Fake.
type Call struct {
	Method     string
	Messages   []openai.Message
	SchemaName string
}

// Reply is one scripted response. Err wins over Text.
type Reply struct {
	Text string
	Err  error
}

// Fake answers calls from Replies in order. When Replies runs out it returns an error.
type Fake struct {
	mu      sync.Mutex
	Replies []Reply
	Calls   []Call
}

func New(replies ...Reply) *Fake {
	return &Fake{Replies: replies}
}

// Texts scripts successful replies.
func Texts(texts ...string) *Fake {
	f := &Fake{}
	for _, t := range texts {
		f.Replies = append(f.Replies, Reply{Text: t})
	}
	return f
}

func (f *Fake) next(c Call) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := make([]openai.Message, len(c.Messages))
	copy(msgs, c.Messages)
	c.Messages = msgs
	f.Calls = append(f.Calls, c)
	if len(f.Replies) == 0 {
		return "", fmt.Errorf("openaitest: no scripted reply for call %d", len(f.Calls))
	}
	r := f.Replies[0]
	f.Replies = f.Replies[1:]
	return r.Text, r.Err
}

func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

func (f *Fake) Complete(ctx context.Context, messages []openai.Message) (string, error) {
	return f.next(Call{Method: "Complete", Messages: messages})
}

func (f *Fake) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	text, err := f.next(Call{Method: "GenerateJSON", Messages: pair(system, user), SchemaName: schemaName})
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("decode structured output: %w", err)
	}
	return obj, nil
}

func (f *Fake) GenerateJSONText(ctx context.Context, system, user string) (string, error) {
	return f.next(Call{Method: "GenerateJSONText", Messages: pair(system, user)})
}

func (f *Fake) GenerateText(ctx context.Context, system, user string) (string, error) {
	return f.next(Call{Method: "GenerateText", Messages: pair(system, user)})
}

func pair(system, user string) []openai.Message {
	return []openai.Message{
		{Role: openai.RoleSystem, Content: system},
		{Role: openai.RoleUser, Content: user},
	}
}

var _ openai.Client = (*Fake)(nil)
