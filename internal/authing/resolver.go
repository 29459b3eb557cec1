package authing

import (
	"context"
	"fmt"

	"tandem/api/internal/store"
)

// DeletedUser is rendered for ids that no longer resolve to an account.
const DeletedUser = "DELETED_USER"

// Resolve converts user ids to usernames with a single batched lookup.
// The output has the same length and order as the input, duplicates included.
func (c *Concept) Resolve(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	docs, err := c.users.ReadMany(ctx, store.Where(store.In("id", unique...)), store.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}

	names := make(map[string]string, len(docs))
	for _, doc := range docs {
		names[store.ID(doc)] = store.AsString(doc, "username")
	}

	out := make([]string, len(ids))
	for i, id := range ids {
		if name, ok := names[id]; ok {
			out[i] = name
		} else {
			out[i] = DeletedUser
		}
	}
	return out, nil
}
