package types

import "errors"

// Error taxonomy for the analysis pipelines. Every failure surfaced by this
// module wraps exactly one of these sentinels, so callers can branch with
// errors.Is without parsing messages.
var (
	// ErrConfiguration indicates an invalid analysis configuration: zero or
	// multiple split specifiers, too few distinct field values or tags to
	// form splits, and similar. Raised eagerly at index construction, before
	// any hashing or embedding work begins.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrValidation indicates a sample that cannot be analyzed: missing
	// source file, unrecognized image media, or a region-of-interest field
	// holding an unsupported label type.
	ErrValidation = errors.New("sample validation failed")

	// ErrBackend indicates a failure inside the similarity/embedding backend.
	// Backend errors propagate unmodified apart from this wrapper; there is
	// no retry logic in the core.
	ErrBackend = errors.New("similarity backend error")

	// ErrPersistence indicates a sample save failure during tagging or
	// field write-back. Mutations already applied are left in place; there
	// is no transaction or rollback.
	ErrPersistence = errors.New("sample persistence failed")

	// ErrRemoveLeaksUnsupported is returned by RemoveLeaks on every index.
	// The intended semantics (untag, delete, or exclude from view) are an
	// open product decision upstream, so the operation refuses explicitly
	// instead of guessing.
	ErrRemoveLeaksUnsupported = errors.New("remove leaks is not yet supported")
)
