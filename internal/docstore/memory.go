package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Memory is an in-process Store with the same contract as Postgres. It backs
// the unit tests so handlers stay testable without a database.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{collections: map[string]map[string]map[string]json.RawMessage{}}
}

func (s *Memory) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	s.mu.RLock()
	doc, ok := s.collections[collection][id]
	var raw []byte
	var err error
	if ok {
		raw, err = json.Marshal(doc)
	}
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Memory) List(ctx context.Context, q Query) ([][]byte, error) {
	type entry struct {
		orderKey string
		raw      []byte
	}

	s.mu.RLock()
	entries := make([]entry, 0)
	var retErr error
	for _, doc := range s.collections[q.Collection] {
		if fieldString(doc[q.FilterField]) != q.FilterValue {
			continue
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			retErr = err
			break
		}
		trimmed, err := trimFields(raw, q.Fields)
		if err != nil {
			retErr = err
			break
		}
		entries = append(entries, entry{orderKey: fieldString(doc[q.OrderField]), raw: trimmed})
	}
	s.mu.RUnlock()
	if retErr != nil {
		return nil, retErr
	}

	sort.Slice(entries, func(i, j int) bool {
		if q.Descending {
			return entries[i].orderKey > entries[j].orderKey
		}
		return entries[i].orderKey < entries[j].orderKey
	})

	result := make([][]byte, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.raw)
	}
	return result, nil
}

func (s *Memory) SetFields(ctx context.Context, collection, id string, doc any, fields []string) error {
	partial, err := partialDoc(doc, fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collections[collection] == nil {
		s.collections[collection] = map[string]map[string]json.RawMessage{}
	}
	stored, ok := s.collections[collection][id]
	if !ok {
		stored = map[string]json.RawMessage{}
		s.collections[collection][id] = stored
	}
	for field, value := range partial {
		stored[field] = value
	}
	return nil
}

// fieldString renders a document field for filtering and ordering. String
// fields compare by their value, everything else by raw JSON text.
func fieldString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
