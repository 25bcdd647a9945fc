// Package dataset defines the sample-collection contracts the analyses
// consume, mirroring the host framework's view abstraction: a View is a
// filtered, ordered window over samples, never a copy. The package also
// ships an in-memory Collection so the analyses can be exercised without
// the host framework.
package dataset

// Sample is an externally-owned record. The analyses never create or destroy
// samples; they read fields and may write a fingerprint, uniqueness score,
// or tag back through the sample's own save contract.
type Sample interface {
	// ID returns the sample's stable identifier.
	ID() string

	// Filepath returns the path to the sample's source media.
	Filepath() string

	// Tags returns the sample's tags in insertion order.
	Tags() []string

	// HasTag reports whether the sample carries the given tag.
	HasTag(tag string) bool

	// AppendTag adds a tag. Whether duplicate tags are collapsed is owned
	// by the underlying store; the in-memory implementation deduplicates.
	AppendTag(tag string)

	// Field returns the named field's value, if set.
	Field(name string) (any, bool)

	// SetField sets the named field's value in memory. Call Save to persist.
	SetField(name string, value any)

	// Save persists pending mutations through the owning store.
	Save() error
}

// View is a filtered, ordered window over a sample collection.
type View interface {
	// Samples returns the samples in view order.
	Samples() []Sample

	// Count returns the number of samples in the view.
	Count() int

	// Select returns a view restricted to the given ids. When ordered is
	// true the result preserves the order of ids; otherwise it preserves
	// collection order. Unknown ids are ignored.
	Select(ids []string, ordered bool) View

	// Match returns a view of the samples satisfying the predicate.
	Match(pred func(Sample) bool) View

	// MatchTags returns a view of the samples carrying at least one of the
	// given tags.
	MatchTags(tags []string) View

	// Distinct returns the sorted string forms of the distinct values of
	// the named field across the view. Samples without the field are
	// skipped.
	Distinct(field string) []string

	// Contains reports whether the view includes the given sample id.
	Contains(id string) bool
}
