// Package search keeps a full-text index of researched statements so new
// requests can be linked to earlier records.
package search

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
)

const DefaultLimit = 10

// Document is one indexed statement record.
type Document struct {
	Statement string    `json:"statement"`
	Verdict   string    `json:"verdict"`
	Country   string    `json:"country"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// Hit is a candidate returned by Similar.
type Hit struct {
	ID        string
	Statement string
	Score     float64
	Rank      int
}

// StatementIndex wraps a bleve index keyed by record id.
type StatementIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewStatementIndex opens the index at path, creating it when absent. An empty path keeps it in memory.
func NewStatementIndex(path string) (*StatementIndex, error) {
	var (
		idx bleve.Index
		err error
	)
	switch {
	case path == "":
		idx, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	default:
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			idx, err = bleve.New(path, bleve.NewIndexMapping())
		} else {
			idx, err = bleve.Open(path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open statement index: %w", err)
	}
	return &StatementIndex{index: idx}, nil
}

// Add indexes doc under id, replacing an earlier entry with the same id.
func (s *StatementIndex) Add(id string, doc Document) error {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(doc.Statement) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Index(id, doc); err != nil {
		return fmt.Errorf("index statement %s: %w", id, err)
	}
	return nil
}

// Similar returns up to k indexed statements matching text, best first.
func (s *StatementIndex) Similar(text string, k int) ([]Hit, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if k <= 0 || k > 50 {
		k = DefaultLimit
	}
	query := bleve.NewMatchQuery(text)
	query.SetField("statement")
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	req.Fields = []string{"statement"}

	s.mu.RLock()
	defer s.mu.RUnlock()
	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search statements: %w", err)
	}
	out := make([]Hit, 0, len(res.Hits))
	for i, hit := range res.Hits {
		statement, _ := hit.Fields["statement"].(string)
		out = append(out, Hit{ID: hit.ID, Statement: statement, Score: hit.Score, Rank: i + 1})
	}
	return out, nil
}

// Count returns the number of indexed documents.
func (s *StatementIndex) Count() (uint64, error) {
	return s.index.DocCount()
}

func (s *StatementIndex) Close() error {
	return s.index.Close()
}
