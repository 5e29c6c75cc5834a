package research

import (
	"context"
	"sync/atomic"

	"github.com/mohammad-safakhou/claimcheck/models"
)

type stubKnowledge struct {
	name  string
	ev    models.Evidence
	err   error
	block bool
	calls atomic.Int32
}

func (s *stubKnowledge) Name() string { return s.name }

func (s *stubKnowledge) Research(ctx context.Context, _ models.ResearchRequest) (models.Evidence, error) {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return models.Evidence{}, ctx.Err()
	}
	return s.ev, s.err
}

type stubSearch struct {
	name  string
	ev    models.Evidence
	err   error
	calls atomic.Int32
}

func (s *stubSearch) Name() string { return s.name }

func (s *stubSearch) Search(context.Context, models.ResearchRequest) (models.Evidence, error) {
	s.calls.Add(1)
	return s.ev, s.err
}

type stubDocuments struct {
	name  string
	ev    models.Evidence
	err   error
	calls atomic.Int32
	seen  atomic.Value
}

func (s *stubDocuments) Name() string { return s.name }

func (s *stubDocuments) Analyze(_ context.Context, _ models.ResearchRequest, web models.Evidence) (models.Evidence, error) {
	s.calls.Add(1)
	s.seen.Store(web.Content)
	return s.ev, s.err
}

type stubCompleter struct {
	name   string
	answer string
	err    error
	prompt string
}

func (s *stubCompleter) Name() string { return s.name }

func (s *stubCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	s.prompt = prompt
	return s.answer, s.err
}
