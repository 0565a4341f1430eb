package usecase

import (
	"context"
	"sync"

	"github.com/leauyn/openavatarchat/domain"
)

// fakeUserData is a canned UserDataService recording lookups.
type fakeUserData struct {
	mu          sync.Mutex
	profile     string
	assessment  string
	detail      string
	guidance    string
	knowledge   string
	profileIDs  []string
	queriedDims []string
}

func (f *fakeUserData) Profile(_ context.Context, id string) string {
	f.mu.Lock()
	f.profileIDs = append(f.profileIDs, id)
	f.mu.Unlock()
	return f.profile
}

func (f *fakeUserData) AssessmentSummary(_ context.Context, _ string) string { return f.assessment }
func (f *fakeUserData) AssessmentDetail(_ context.Context, _ string) string  { return f.detail }
func (f *fakeUserData) GuidanceByCode(_ context.Context, _ string) string    { return f.guidance }

func (f *fakeUserData) GuidanceByDimension(_ context.Context, dim string) string {
	f.mu.Lock()
	f.queriedDims = append(f.queriedDims, dim)
	f.mu.Unlock()
	return f.guidance
}

func (f *fakeUserData) KnowledgeQuery(_ context.Context, _ string) string { return f.knowledge }

// fakeRetriever replays one canned answer stream per query.
type fakeRetriever struct {
	answer string
	err    error
	calls  int
}

func (f *fakeRetriever) StreamQuery(_ context.Context, _ string) (<-chan string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan string, 1)
	if f.answer != "" {
		ch <- f.answer
	}
	close(ch)
	return ch, nil
}

// collector gathers emitted envelopes.
type collector struct {
	envelopes []domain.Envelope
}

func (c *collector) emit(env domain.Envelope) {
	c.envelopes = append(c.envelopes, env)
}

func (c *collector) texts() []string {
	var out []string
	for _, env := range c.envelopes {
		if !env.EndOfTurn {
			out = append(out, env.Payload)
		}
	}
	return out
}

func (c *collector) sentinels() int {
	n := 0
	for _, env := range c.envelopes {
		if env.EndOfTurn {
			n++
		}
	}
	return n
}
