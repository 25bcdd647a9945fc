package leaky

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DougOr/fiftyone-brain/internal/dataset"
	"github.com/DougOr/fiftyone-brain/internal/types"
)

func splitNames(splits []Split) []string {
	names := make([]string, len(splits))
	for i, s := range splits {
		names[i] = s.Name
	}
	return names
}

func TestSplitSpecValidation(t *testing.T) {
	coll := dataset.NewCollection()
	coll.Add("/data/a.jpg", []string{"train"}, nil)
	coll.Add("/data/b.jpg", []string{"test"}, nil)
	view := coll.View()

	tests := []struct {
		name string
		spec SplitSpec
	}{
		{"no specifier", SplitSpec{}},
		{"field and tags", SplitSpec{Field: "split", Tags: []string{"train", "test"}}},
		{"views and field", SplitSpec{Views: []dataset.View{view}, Field: "split"}},
		{"single tag", SplitSpec{Tags: []string{"train"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.spec.Resolve(view)
			assert.ErrorIs(t, err, types.ErrConfiguration)
		})
	}
}

func TestSplitSpecResolveViews(t *testing.T) {
	coll := dataset.NewCollection()
	a := coll.Add("/data/a.jpg", nil, nil)
	b := coll.Add("/data/b.jpg", nil, nil)
	view := coll.View()

	spec := SplitSpec{Views: []dataset.View{
		view.Select([]string{a.ID()}, true),
		view.Select([]string{b.ID()}, true),
	}}
	splits, err := spec.Resolve(view)
	require.NoError(t, err)
	assert.Equal(t, []string{"split_0", "split_1"}, splitNames(splits))
	assert.True(t, splits[0].View.Contains(a.ID()))
	assert.True(t, splits[1].View.Contains(b.ID()))
}

func TestSplitSpecResolveField(t *testing.T) {
	coll := dataset.NewCollection()
	a := coll.Add("/data/a.jpg", nil, map[string]any{"split": "train"})
	b := coll.Add("/data/b.jpg", nil, map[string]any{"split": "test"})
	c := coll.Add("/data/c.jpg", nil, map[string]any{"split": "train"})
	view := coll.View()

	splits, err := SplitSpec{Field: "split"}.Resolve(view)
	require.NoError(t, err)
	// Distinct values come back sorted.
	require.Equal(t, []string{"test", "train"}, splitNames(splits))
	assert.True(t, splits[0].View.Contains(b.ID()))
	assert.Equal(t, 2, splits[1].View.Count())
	assert.True(t, splits[1].View.Contains(a.ID()))
	assert.True(t, splits[1].View.Contains(c.ID()))
}

func TestSplitSpecResolveFieldTooFewValues(t *testing.T) {
	coll := dataset.NewCollection()
	coll.Add("/data/a.jpg", nil, map[string]any{"split": "train"})
	coll.Add("/data/b.jpg", nil, map[string]any{"split": "train"})

	_, err := SplitSpec{Field: "split"}.Resolve(coll.View())
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestSplitSpecResolveTags(t *testing.T) {
	coll := dataset.NewCollection()
	a := coll.Add("/data/a.jpg", []string{"train"}, nil)
	b := coll.Add("/data/b.jpg", []string{"test"}, nil)
	both := coll.Add("/data/c.jpg", []string{"train", "test"}, nil)
	coll.Add("/data/d.jpg", nil, nil) // untagged, in no split

	splits, err := SplitSpec{Tags: []string{"train", "test"}}.Resolve(coll.View())
	require.NoError(t, err)
	require.Equal(t, []string{"train", "test"}, splitNames(splits))

	// Overlapping membership is allowed.
	assert.True(t, splits[0].View.Contains(a.ID()))
	assert.True(t, splits[0].View.Contains(both.ID()))
	assert.True(t, splits[1].View.Contains(b.ID()))
	assert.True(t, splits[1].View.Contains(both.ID()))
}

func TestMembershipAndCrossing(t *testing.T) {
	coll := dataset.NewCollection()
	a := coll.Add("/data/a.jpg", []string{"train"}, nil)
	b := coll.Add("/data/b.jpg", []string{"test"}, nil)
	c := coll.Add("/data/c.jpg", []string{"train"}, nil)
	outside := coll.Add("/data/d.jpg", nil, nil)

	splits, err := SplitSpec{Tags: []string{"train", "test"}}.Resolve(coll.View())
	require.NoError(t, err)
	byID := membershipByID(splits)

	assert.Equal(t, []string{"train"}, byID[a.ID()])
	assert.Equal(t, []string{"test"}, byID[b.ID()])
	_, inSplit := byID[outside.ID()]
	assert.False(t, inSplit)

	assert.True(t, crossesSplits([]string{a.ID(), b.ID()}, byID))
	assert.False(t, crossesSplits([]string{a.ID(), c.ID()}, byID), "same-split cluster does not cross")
	assert.False(t, crossesSplits([]string{a.ID(), outside.ID()}, byID))
	assert.False(t, crossesSplits(nil, byID))
}
