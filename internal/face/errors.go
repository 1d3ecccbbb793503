package face

import "errors"

// Error kinds surfaced by the pipeline. Callers match them with errors.Is;
// context is added by wrapping with %w.
var (
	ErrNoFaceDetected       = errors.New("no face detected")
	ErrDuplicateIdentifier  = errors.New("identifier already registered")
	ErrEmptyGallery         = errors.New("no identities registered")
	ErrNoMatch              = errors.New("no matching identity")
	ErrIncompatibleEncoding = errors.New("incompatible encoding")
	ErrInvalidInput         = errors.New("invalid input")
)
