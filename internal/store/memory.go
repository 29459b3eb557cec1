package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"tandem/api/internal/util"
)

// MemoryStore is an in-process Store used by tests. Documents are kept as
// JSON-normalized maps so field shapes match the Postgres backend, and every
// collection shares one mutex so patches are atomic exactly like the
// single-statement SQL updates.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (s *MemoryStore) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c
	}
	c := &memCollection{}
	s.collections[name] = c
	return c
}

type memCollection struct {
	mu   sync.Mutex
	docs []Doc // insertion order
}

func (c *memCollection) CreateOne(_ context.Context, doc Doc) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := ID(doc)
	if id == "" {
		id = util.NewID("")
	}
	copied, err := normalize(doc)
	if err != nil {
		return "", err
	}
	copied["id"] = id
	c.docs = append(c.docs, copied)
	return id, nil
}

func (c *memCollection) ReadOne(_ context.Context, filter Filter) (Doc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range c.docs {
		if matches(doc, filter) {
			return clone(doc), nil
		}
	}
	return nil, ErrNoDoc
}

func (c *memCollection) ReadMany(_ context.Context, filter Filter, opts ReadOptions) ([]Doc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Doc, 0)
	for _, doc := range c.docs {
		if matches(doc, filter) {
			out = append(out, clone(doc))
		}
	}
	if opts.SortNewestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (c *memCollection) PartialUpdateOne(_ context.Context, filter Filter, ops ...Op) (Doc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range c.docs {
		if !matches(doc, filter) {
			continue
		}
		for _, op := range ops {
			if err := validateOp(op); err != nil {
				return nil, err
			}
			applyOp(doc, op)
		}
		return clone(doc), nil
	}
	return nil, ErrNoDoc
}

func (c *memCollection) DeleteOne(_ context.Context, filter Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, doc := range c.docs {
		if matches(doc, filter) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return nil
		}
	}
	return ErrNoDoc
}

func applyOp(doc Doc, op Op) {
	switch op.Kind {
	case "set":
		doc[op.Field] = normalizeValue(op.Value)
	case "push":
		doc[op.Field] = append(elements(doc, op.Field), normalizeValue(op.Value))
	case "addToSet":
		value := normalizeValue(op.Value)
		current := elements(doc, op.Field)
		for _, e := range current {
			if equalValues(e, value) {
				return
			}
		}
		doc[op.Field] = append(current, value)
	case "pull":
		value := normalizeValue(op.Value)
		current := elements(doc, op.Field)
		kept := make([]any, 0, len(current))
		for _, e := range current {
			if !equalValues(e, value) {
				kept = append(kept, e)
			}
		}
		doc[op.Field] = kept
	}
}

func elements(doc Doc, field string) []any {
	switch v := doc[field].(type) {
	case []any:
		return v
	case nil:
		return []any{}
	default:
		return []any{}
	}
}

func matches(doc Doc, filter Filter) bool {
	for _, cond := range filter {
		switch cond.Op {
		case "eq":
			if AsString(doc, cond.Field) != fmt.Sprintf("%v", cond.Value) {
				return false
			}
		case "contains":
			found := false
			for _, e := range AsStrings(doc, cond.Field) {
				if e == fmt.Sprintf("%v", cond.Value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case "in":
			values, _ := cond.Value.([]string)
			current := AsString(doc, cond.Field)
			found := false
			for _, v := range values {
				if v == current {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// normalize round-trips through JSON so stored shapes ([]any, not []string)
// match what the Postgres backend hands back.
func normalize(doc Doc) (Doc, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize doc: %w", err)
	}
	var out Doc
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize doc: %w", err)
	}
	return out, nil
}

func normalizeValue(v any) any {
	switch v.(type) {
	case string, bool, float64, nil:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func clone(doc Doc) Doc {
	copied, err := normalize(doc)
	if err != nil {
		return doc
	}
	return copied
}
