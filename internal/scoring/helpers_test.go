package scoring

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ahrav/agentjudge/internal/domain"
	"github.com/ahrav/agentjudge/internal/llm/transport"
)

// fakeJudge answers from a function of the request and records every call.
type fakeJudge struct {
	mu      sync.Mutex
	calls   []*transport.Request
	respond func(req *transport.Request) (string, error)
}

func (f *fakeJudge) Complete(_ context.Context, req *transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	content, err := f.respond(req)
	if err != nil {
		return nil, err
	}
	return &transport.Response{Content: content, Provider: req.Provider, Model: req.Model}, nil
}

func (f *fakeJudge) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func replyWith(content string) *fakeJudge {
	return &fakeJudge{respond: func(*transport.Request) (string, error) { return content, nil }}
}

func failWith(err error) *fakeJudge {
	return &fakeJudge{respond: func(*transport.Request) (string, error) { return "", err }}
}

// concisenessJudge picks A for a bare answer and C when the submission
// narrates its work.
func concisenessJudge() *fakeJudge {
	return &fakeJudge{respond: func(req *transport.Request) (string, error) {
		if strings.Contains(req.Prompt, "[Response]: 4\n") {
			return `{"reasoning": "just the answer", "choice": "A"}`, nil
		}
		return `{"reasoning": "restates the request", "choice": "C"}`, nil
	}}
}

// staticScorer returns a fixed record or error.
type staticScorer struct {
	name  string
	value float64
	err   error
	panic bool
}

func (s staticScorer) Name() string { return s.name }

func (s staticScorer) Score(context.Context, ScoreInput) (domain.ScoreRecord, error) {
	if s.panic {
		panic("boom")
	}
	if s.err != nil {
		return domain.ScoreRecord{}, s.err
	}
	return domain.NewScore(s.name, s.value, ""), nil
}

var errJudgeDown = errors.New("judge unavailable")
