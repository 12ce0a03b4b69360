package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedClient replays a fixed sequence of completions. Used in tests and
// in the offline dev profile.
type ScriptedClient struct {
	mu      sync.Mutex
	replies []string
	next    int
}

func NewScriptedClient(replies ...string) *ScriptedClient {
	return &ScriptedClient{replies: replies}
}

func (c *ScriptedClient) Complete(_ context.Context, _ []Message, _ *Options) (*Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next >= len(c.replies) {
		return nil, fmt.Errorf("llm: scripted client exhausted after %d replies", len(c.replies))
	}
	reply := c.replies[c.next]
	c.next++
	return &Completion{Content: reply}, nil
}

// Calls reports how many completions have been served.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}
