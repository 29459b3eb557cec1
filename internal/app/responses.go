package app

import (
	"context"

	"tandem/api/internal/drafting"
	"tandem/api/internal/events"
	"tandem/api/internal/friending"
	"tandem/api/internal/posting"
	"tandem/api/internal/saving"
)

// Response shaping. Every id-bearing field is converted to usernames through
// one batched Resolve call per response, however many entities it carries.

func (s *Service) postPayloads(ctx context.Context, posts []posting.Post) ([]map[string]any, error) {
	ids := make([]string, 0, len(posts)*4)
	for _, p := range posts {
		ids = append(ids, p.Approvers...)
		ids = append(ids, p.Approved...)
	}
	names, err := s.authing.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	next := nameTaker(names)
	items := make([]map[string]any, 0, len(posts))
	for _, p := range posts {
		items = append(items, map[string]any{
			"id":        p.ID,
			"approvers": next(len(p.Approvers)),
			"approved":  next(len(p.Approved)),
			"content":   p.Content,
			"status":    string(p.Status),
			"theme":     p.Theme,
		})
	}
	return items, nil
}

func (s *Service) postPayload(ctx context.Context, post posting.Post) (map[string]any, error) {
	items, err := s.postPayloads(ctx, []posting.Post{post})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (s *Service) draftPayloads(ctx context.Context, drafts []drafting.Draft) ([]map[string]any, error) {
	ids := make([]string, 0, len(drafts)*2)
	for _, d := range drafts {
		ids = append(ids, d.Members...)
	}
	names, err := s.authing.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	next := nameTaker(names)
	items := make([]map[string]any, 0, len(drafts))
	for _, d := range drafts {
		items = append(items, map[string]any{
			"id":          d.ID,
			"members":     next(len(d.Members)),
			"contentSet":  d.ContentSet,
			"selectedSet": d.SelectedSet,
		})
	}
	return items, nil
}

func (s *Service) draftPayload(ctx context.Context, draft drafting.Draft) (map[string]any, error) {
	items, err := s.draftPayloads(ctx, []drafting.Draft{draft})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (s *Service) eventPayloads(ctx context.Context, list []events.Event) ([]map[string]any, error) {
	ids := make([]string, 0, len(list)*4)
	for _, e := range list {
		ids = append(ids, e.Hosts...)
		ids = append(ids, e.RSVPs...)
	}
	names, err := s.authing.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	next := nameTaker(names)
	items := make([]map[string]any, 0, len(list))
	for _, e := range list {
		items = append(items, map[string]any{
			"id":       e.ID,
			"hosts":    next(len(e.Hosts)),
			"rsvps":    next(len(e.RSVPs)),
			"location": e.Location,
			"post":     e.PostRef,
		})
	}
	return items, nil
}

func (s *Service) eventPayload(ctx context.Context, event events.Event) (map[string]any, error) {
	items, err := s.eventPayloads(ctx, []events.Event{event})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (s *Service) requestPayloads(ctx context.Context, requests []friending.Request) ([]map[string]any, error) {
	ids := make([]string, 0, len(requests)*2)
	for _, r := range requests {
		ids = append(ids, r.From, r.To)
	}
	names, err := s.authing.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(requests))
	for i, r := range requests {
		items = append(items, map[string]any{
			"from":   names[2*i],
			"to":     names[2*i+1],
			"status": r.Status,
		})
	}
	return items, nil
}

func savePayload(c saving.SavedCollection) map[string]any {
	return map[string]any{
		"id":    c.ID,
		"label": c.Label,
		"items": c.Items,
	}
}

// nameTaker hands out consecutive slices of the resolved name list, matching
// the order the ids were gathered in.
func nameTaker(names []string) func(n int) []string {
	i := 0
	return func(n int) []string {
		out := names[i : i+n]
		i += n
		return out
	}
}
