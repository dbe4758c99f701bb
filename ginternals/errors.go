package ginternals

import "errors"

// Sentinel errors returned by the core subsystems. Callers use
// errors.Is/errors.As against these rather than an error-code enum.
var (
	// ErrObjectNotFound is an error corresponding to a git object not
	// being found
	ErrObjectNotFound = errors.New("object not found")
	// ErrObjectInvalid is returned when an object's content violates
	// the expected format (bad header, wrong type, length mismatch).
	ErrObjectInvalid = errors.New("invalid object")
	// ErrObjectTooLarge is returned when a payload exceeds the maximum
	// object size the store will accept.
	ErrObjectTooLarge = errors.New("object too large")

	// ErrTreeInvalid is returned when a tree's payload can't be parsed.
	ErrTreeInvalid = errors.New("invalid tree")
	// ErrTreeEntryExists is returned when adding an entry whose name is
	// already present in a tree builder.
	ErrTreeEntryExists = errors.New("entry already exists")

	// ErrCommitInvalid is returned when a commit's payload can't be
	// parsed or is missing a required field.
	ErrCommitInvalid = errors.New("invalid commit")

	// ErrIndexInvalid is returned when an index file's content can't be
	// parsed, or its checksum doesn't match.
	ErrIndexInvalid = errors.New("invalid index")
	// ErrIndexOverflow is returned when an index would exceed its
	// maximum entry count.
	ErrIndexOverflow = errors.New("index entry count overflow")

	// ErrInvalidArgument is returned for caller-side precondition
	// violations: bad hex, unsafe paths, bad modes, oversize input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error codes, matching the §6.4/§7 error-code surface. These map a
// returned error back to a small integer domain for the CLI's exit-code
// policy; there is no process-wide "last error" slot to maintain.
const (
	CodeOK = iota
	CodeInvalidArgument
	CodeNotFound
	CodeCorrupt
	CodeOverflow
	CodeIO
	CodeUnknown
)

var codeNames = map[int]string{
	CodeOK:              "ok",
	CodeInvalidArgument: "invalid-argument",
	CodeNotFound:        "not-found",
	CodeCorrupt:         "corrupt",
	CodeOverflow:        "overflow",
	CodeIO:              "io",
	CodeUnknown:         "unknown",
}

// Code maps err onto the error-code domain above. A nil error maps to
// CodeOK.
func Code(err error) int {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrRefNameInvalid):
		return CodeInvalidArgument
	case errors.Is(err, ErrObjectNotFound),
		errors.Is(err, ErrRefNotFound):
		return CodeNotFound
	case errors.Is(err, ErrObjectInvalid),
		errors.Is(err, ErrTreeInvalid),
		errors.Is(err, ErrCommitInvalid),
		errors.Is(err, ErrIndexInvalid),
		errors.Is(err, ErrRefInvalid),
		errors.Is(err, ErrPackedRefInvalid):
		return CodeCorrupt
	case errors.Is(err, ErrIndexOverflow),
		errors.Is(err, ErrObjectTooLarge):
		return CodeOverflow
	default:
		return CodeUnknown
	}
}

// Name returns the human-readable name of an error code.
func Name(code int) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return "unknown"
}
