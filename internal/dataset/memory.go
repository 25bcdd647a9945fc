package dataset

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Collection is an in-memory sample store implementing the View contract over
// its full contents. It exists so the analyses can run end-to-end without the
// host framework; production callers pass views from the real store instead.
type Collection struct {
	samples []*MemSample
	byID    map[string]*MemSample

	// SaveHook, if set, runs on every sample save and can veto it. Used by
	// tests to exercise persistence failures.
	SaveHook func(s *MemSample) error
}

// NewCollection creates an empty in-memory collection.
func NewCollection() *Collection {
	return &Collection{byID: make(map[string]*MemSample)}
}

// Add creates a sample with a generated id and appends it to the collection.
func (c *Collection) Add(filepath string, tags []string, fields map[string]any) *MemSample {
	s := &MemSample{
		id:       uuid.NewString(),
		filepath: filepath,
		owner:    c,
	}
	for _, t := range tags {
		s.AppendTag(t)
	}
	for k, v := range fields {
		s.SetField(k, v)
	}
	c.samples = append(c.samples, s)
	c.byID[s.id] = s
	return s
}

// View returns a view over the whole collection in insertion order.
func (c *Collection) View() View {
	ids := make([]string, len(c.samples))
	for i, s := range c.samples {
		ids[i] = s.id
	}
	return &memView{owner: c, ids: ids}
}

// Get returns the sample with the given id, if present.
func (c *Collection) Get(id string) (*MemSample, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// MemSample is the Collection's sample implementation.
type MemSample struct {
	id       string
	filepath string
	tags     []string
	fields   map[string]any
	owner    *Collection
}

var _ Sample = (*MemSample)(nil)

func (s *MemSample) ID() string       { return s.id }
func (s *MemSample) Filepath() string { return s.filepath }

func (s *MemSample) Tags() []string {
	out := make([]string, len(s.tags))
	copy(out, s.tags)
	return out
}

func (s *MemSample) HasTag(tag string) bool {
	for _, t := range s.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AppendTag adds the tag if not already present. The in-memory tag store
// deduplicates, which makes tagging operations idempotent against it.
func (s *MemSample) AppendTag(tag string) {
	if s.HasTag(tag) {
		return
	}
	s.tags = append(s.tags, tag)
}

func (s *MemSample) Field(name string) (any, bool) {
	v, ok := s.fields[name]
	return v, ok
}

func (s *MemSample) SetField(name string, value any) {
	if s.fields == nil {
		s.fields = make(map[string]any)
	}
	s.fields[name] = value
}

// Save persists pending mutations. In-memory samples mutate in place, so this
// only consults the owning collection's SaveHook.
func (s *MemSample) Save() error {
	if s.owner != nil && s.owner.SaveHook != nil {
		return s.owner.SaveHook(s)
	}
	return nil
}

// memView is an ordered id list over a Collection.
type memView struct {
	owner *Collection
	ids   []string
}

var _ View = (*memView)(nil)

func (v *memView) Samples() []Sample {
	out := make([]Sample, 0, len(v.ids))
	for _, id := range v.ids {
		if s, ok := v.owner.byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (v *memView) Count() int { return len(v.ids) }

func (v *memView) Select(ids []string, ordered bool) View {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var out []string
	if ordered {
		in := make(map[string]struct{}, len(v.ids))
		for _, id := range v.ids {
			in[id] = struct{}{}
		}
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if _, ok := in[id]; ok {
				out = append(out, id)
			}
		}
	} else {
		for _, id := range v.ids {
			if _, ok := want[id]; ok {
				out = append(out, id)
			}
		}
	}
	return &memView{owner: v.owner, ids: out}
}

func (v *memView) Match(pred func(Sample) bool) View {
	var out []string
	for _, id := range v.ids {
		if s, ok := v.owner.byID[id]; ok && pred(s) {
			out = append(out, id)
		}
	}
	return &memView{owner: v.owner, ids: out}
}

func (v *memView) MatchTags(tags []string) View {
	return v.Match(func(s Sample) bool {
		for _, t := range tags {
			if s.HasTag(t) {
				return true
			}
		}
		return false
	})
}

func (v *memView) Distinct(field string) []string {
	seen := make(map[string]struct{})
	for _, id := range v.ids {
		s, ok := v.owner.byID[id]
		if !ok {
			continue
		}
		if val, has := s.Field(field); has {
			seen[fmt.Sprint(val)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for val := range seen {
		out = append(out, val)
	}
	sort.Strings(out)
	return out
}

func (v *memView) Contains(id string) bool {
	for _, have := range v.ids {
		if have == id {
			return true
		}
	}
	return false
}
