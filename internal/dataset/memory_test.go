package dataset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionViewOrder(t *testing.T) {
	c := NewCollection()
	a := c.Add("/data/a.jpg", nil, nil)
	b := c.Add("/data/b.jpg", nil, nil)
	d := c.Add("/data/d.jpg", nil, nil)

	view := c.View()
	require.Equal(t, 3, view.Count())

	ids := make([]string, 0, 3)
	for _, s := range view.Samples() {
		ids = append(ids, s.ID())
	}
	assert.Equal(t, []string{a.ID(), b.ID(), d.ID()}, ids)
}

func TestSelectOrdered(t *testing.T) {
	c := NewCollection()
	a := c.Add("/data/a.jpg", nil, nil)
	b := c.Add("/data/b.jpg", nil, nil)
	d := c.Add("/data/d.jpg", nil, nil)

	tests := []struct {
		name    string
		ids     []string
		ordered bool
		want    []string
	}{
		{
			name:    "ordered preserves argument order",
			ids:     []string{d.ID(), a.ID()},
			ordered: true,
			want:    []string{d.ID(), a.ID()},
		},
		{
			name:    "unordered preserves collection order",
			ids:     []string{d.ID(), a.ID()},
			ordered: false,
			want:    []string{a.ID(), d.ID()},
		},
		{
			name:    "unknown ids are ignored",
			ids:     []string{"nope", b.ID()},
			ordered: true,
			want:    []string{b.ID()},
		},
		{
			name:    "duplicate ids collapse",
			ids:     []string{a.ID(), a.ID()},
			ordered: true,
			want:    []string{a.ID()},
		},
		{
			name:    "empty selection",
			ids:     nil,
			ordered: true,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := c.View().Select(tt.ids, tt.ordered)
			got := make([]string, 0, sel.Count())
			for _, s := range sel.Samples() {
				got = append(got, s.ID())
			}
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMatchTags(t *testing.T) {
	c := NewCollection()
	c.Add("/data/a.jpg", []string{"train"}, nil)
	test := c.Add("/data/b.jpg", []string{"test"}, nil)
	both := c.Add("/data/d.jpg", []string{"train", "test"}, nil)

	view := c.View().MatchTags([]string{"test"})
	require.Equal(t, 2, view.Count())
	assert.True(t, view.Contains(test.ID()))
	assert.True(t, view.Contains(both.ID()))
}

func TestDistinctSorted(t *testing.T) {
	c := NewCollection()
	c.Add("/data/a.jpg", nil, map[string]any{"split": "train"})
	c.Add("/data/b.jpg", nil, map[string]any{"split": "test"})
	c.Add("/data/d.jpg", nil, map[string]any{"split": "train"})
	c.Add("/data/e.jpg", nil, nil) // no split field

	assert.Equal(t, []string{"test", "train"}, c.View().Distinct("split"))
}

func TestAppendTagDeduplicates(t *testing.T) {
	c := NewCollection()
	s := c.Add("/data/a.jpg", nil, nil)

	s.AppendTag("leak")
	s.AppendTag("leak")
	assert.Equal(t, []string{"leak"}, s.Tags())
}

func TestSaveHook(t *testing.T) {
	c := NewCollection()
	s := c.Add("/data/a.jpg", nil, nil)
	require.NoError(t, s.Save())

	boom := errors.New("disk full")
	c.SaveHook = func(*MemSample) error { return boom }
	assert.ErrorIs(t, s.Save(), boom)
}

func TestPolylineToDetection(t *testing.T) {
	p := Polyline{Points: [][2]float64{{0.2, 0.1}, {0.6, 0.5}, {0.4, 0.3}}}
	d := p.ToDetection()
	assert.InDelta(t, 0.2, d.BoundingBox[0], 1e-9)
	assert.InDelta(t, 0.1, d.BoundingBox[1], 1e-9)
	assert.InDelta(t, 0.4, d.BoundingBox[2], 1e-9)
	assert.InDelta(t, 0.4, d.BoundingBox[3], 1e-9)
}
