// Package llmtest provides scripted llm.Provider implementations for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"
)

// Rule answers prompts containing Match.
type Rule struct {
	Match string
	Text  string
	Err   error
}

// Scripted answers each prompt with the first rule whose Match is contained in
// it, falling back to Default/DefaultErr. It records every prompt it receives.
type Scripted struct {
	Rules      []Rule
	Default    string
	DefaultErr error

	mu      sync.Mutex
	prompts []string
}

func (s *Scripted) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, r := range s.Rules {
		if strings.Contains(prompt, r.Match) {
			return r.Text, r.Err
		}
	}
	return s.Default, s.DefaultErr
}

func (s *Scripted) GetProviderType() string { return "mock" }

// Calls returns how many prompts were received.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// Prompts returns a copy of the received prompts in arrival order.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Blocking never answers until its context ends.
type Blocking struct{}

func (Blocking) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (Blocking) GetProviderType() string { return "mock" }
