package errs

import "errors"

// Kind classifies failures at the boundary to the remote backend.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindValidation
	KindNotFound
	KindRemote
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindRemote:
		return "remote"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// WithKind tags err with kind. The outermost tag wins in KindOf.
func WithKind(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// KindOf returns the first Kind found in the chain, KindUnknown otherwise.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsTransport(err error) bool    { return KindOf(err) == KindTransport }
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }
