package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
)

type MemoryIndex struct {
	mu       sync.RWMutex
	postings map[string]map[catalog.BookID]float64
	bookTerm map[catalog.BookID][]string
	headers  map[catalog.BookID]catalog.Header
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		postings: make(map[string]map[catalog.BookID]float64),
		bookTerm: make(map[catalog.BookID][]string),
		headers:  make(map[catalog.BookID]catalog.Header),
	}
}

func (m *MemoryIndex) IndexDocument(ctx context.Context, header catalog.Header, terms TermWeights) error {
	if !header.ID.Valid() {
		return fmt.Errorf("indexing book %d: invalid id", header.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removePostings(header.ID)
	owned := make([]string, 0, len(terms))
	for term, weight := range terms {
		docs, ok := m.postings[term]
		if !ok {
			docs = make(map[catalog.BookID]float64)
			m.postings[term] = docs
		}
		docs[header.ID] = weight
		owned = append(owned, term)
	}
	m.bookTerm[header.ID] = owned
	m.headers[header.ID] = header
	return nil
}

// removePostings drops every posting of id. Caller holds the write lock.
func (m *MemoryIndex) removePostings(id catalog.BookID) {
	for _, term := range m.bookTerm[id] {
		docs := m.postings[term]
		delete(docs, id)
		if len(docs) == 0 {
			delete(m.postings, term)
		}
	}
	delete(m.bookTerm, id)
}

func (m *MemoryIndex) LookupTerm(ctx context.Context, term string) (PostingList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := m.postings[term]
	result := make(PostingList, 0, len(docs))
	for id, w := range docs {
		result = append(result, Posting{BookID: id, Weight: w})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BookID < result[j].BookID
	})
	return result, nil
}

func (m *MemoryIndex) SaveMetadata(ctx context.Context, header catalog.Header) error {
	if !header.ID.Valid() {
		return fmt.Errorf("saving metadata for book %d: invalid id", header.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[header.ID] = header
	return nil
}

func (m *MemoryIndex) FindMetadataByIDs(ctx context.Context, ids []catalog.BookID) (map[catalog.BookID]catalog.Header, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[catalog.BookID]catalog.Header, len(ids))
	for _, id := range ids {
		if h, ok := m.headers[id]; ok {
			out[id] = h
		}
	}
	return out, nil
}

func (m *MemoryIndex) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Books: len(m.headers), Terms: len(m.postings)}, nil
}
