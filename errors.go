package dsk

// Error is a string which satisfies the error interface, so that sentinel
// errors can be declared as constants.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrDuplicateFeature is the cause of the error returned when an example
	// would contain the same feature name more than once.
	ErrDuplicateFeature = Error("duplicate feature name in example")

	// ErrProvenanceExtraction is the cause of the error returned when a
	// persisted provenance record is missing a key, or holds a value of the
	// wrong primitive type under it.
	ErrProvenanceExtraction = Error("couldn't extract provenance")

	// ErrUnknownProvenance is returned when a record names a provenance class
	// which was never registered.
	ErrUnknownProvenance = Error("unknown provenance class")

	// ErrNotObservable is returned when a value is observed into a feature map
	// entry whose VariableInfo doesn't support observation.
	ErrNotObservable = Error("variable info doesn't support observation")
)
