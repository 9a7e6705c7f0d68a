// Package mock provides test doubles for the ai interfaces.
package mock

import (
	"context"
	"sync"
)

// Generator is a test double for ai.Generator. Replies are served in order;
// once exhausted the last reply repeats. GenerateFunc takes precedence.
type Generator struct {
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	replies []string
	prompts []string
}

// NewGenerator returns a generator that answers with replies in order.
func NewGenerator(replies ...string) *Generator {
	return &Generator{replies: replies}
}

// Generate records the prompt and returns the next reply.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	fn := g.GenerateFunc
	var reply string
	if len(g.replies) > 0 {
		reply = g.replies[0]
		if len(g.replies) > 1 {
			g.replies = g.replies[1:]
		}
	}
	g.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	return reply, nil
}

// CallCount returns the number of Generate calls.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// Prompts returns a copy of every prompt received.
func (g *Generator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}
