// Package store provides the persistent document-collection abstraction the
// concepts are written against: named collections of JSON documents with
// equality/membership filters and atomic partial updates.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoDoc is returned when a filter matches no document.
var ErrNoDoc = errors.New("no document matched")

// Doc is a stored document. Every document carries its id under "id".
type Doc map[string]any

// Cond is a single filter condition. Conditions in a filter are ANDed.
type Cond struct {
	Field string
	Op    string // "eq", "contains", "in"
	Value any
}

// Filter selects documents within a collection.
type Filter []Cond

// Eq matches documents whose field equals value.
func Eq(field string, value any) Cond {
	return Cond{Field: field, Op: "eq", Value: value}
}

// Contains matches documents whose array field contains value.
func Contains(field string, value any) Cond {
	return Cond{Field: field, Op: "contains", Value: value}
}

// In matches documents whose field equals any of the given values.
func In(field string, values ...string) Cond {
	return Cond{Field: field, Op: "in", Value: values}
}

// Where builds a filter from conditions.
func Where(conds ...Cond) Filter {
	return Filter(conds)
}

// ByID filters on the document id.
func ByID(id string) Filter {
	return Filter{Eq("id", id)}
}

// Op is one patch operation. All ops in a patch are applied in order as a
// single atomic update on the storage side.
type Op struct {
	Kind  string // "set", "addToSet", "push", "pull"
	Field string
	Value any
}

// Set replaces a field.
func Set(field string, value any) Op {
	return Op{Kind: "set", Field: field, Value: value}
}

// AddToSet appends value to an array field unless already present.
func AddToSet(field string, value any) Op {
	return Op{Kind: "addToSet", Field: field, Value: value}
}

// Push appends value to an array field unconditionally.
func Push(field string, value any) Op {
	return Op{Kind: "push", Field: field, Value: value}
}

// Pull removes every element equal to value from an array field.
func Pull(field string, value any) Op {
	return Op{Kind: "pull", Field: field, Value: value}
}

// ReadOptions tune ReadMany.
type ReadOptions struct {
	SortNewestFirst bool
}

// Collection is one named collection of documents. Implementations must apply
// PartialUpdateOne as a single atomic operation keyed by the matched document,
// returning the post-update document; concurrent AddToSet calls on the same
// document must never lose each other's elements.
type Collection interface {
	CreateOne(ctx context.Context, doc Doc) (string, error)
	ReadOne(ctx context.Context, filter Filter) (Doc, error)
	ReadMany(ctx context.Context, filter Filter, opts ReadOptions) ([]Doc, error)
	PartialUpdateOne(ctx context.Context, filter Filter, ops ...Op) (Doc, error)
	DeleteOne(ctx context.Context, filter Filter) error
}

// ID reads the document id.
func ID(doc Doc) string {
	return AsString(doc, "id")
}

// AsString reads a string field, tolerating absence.
func AsString(doc Doc, field string) string {
	if doc == nil {
		return ""
	}
	s, _ := doc[field].(string)
	return s
}

// AsStrings reads an array-of-strings field. JSON round-trips yield []any, so
// both representations are accepted.
func AsStrings(doc Doc, field string) []string {
	if doc == nil {
		return nil
	}
	switch v := doc[field].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func validateOp(op Op) error {
	switch op.Kind {
	case "set", "addToSet", "push", "pull":
		return nil
	default:
		return fmt.Errorf("unknown patch op %q", op.Kind)
	}
}
