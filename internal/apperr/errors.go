// Package apperr holds sentinel errors and the directive error taxonomy.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
)

// Kind classifies a directive failure.
type Kind int

// Deterministic kinds come first; see Deterministic.
const (
	KindSyntax Kind = iota
	KindType
	KindArgument
	KindFieldAccess
	KindValidation
	KindUnknownIdentifier
	KindCircularDependency
	KindArithmetic

	KindNetwork
	KindTimeout
	KindResourceUnavailable
	KindPermission
	KindExternalService
)

var kindNames = map[Kind]string{
	KindSyntax:              "syntax",
	KindType:                "type",
	KindArgument:            "argument",
	KindFieldAccess:         "field_access",
	KindValidation:          "validation",
	KindUnknownIdentifier:   "unknown_identifier",
	KindCircularDependency:  "circular_dependency",
	KindArithmetic:          "arithmetic",
	KindNetwork:             "network",
	KindTimeout:             "timeout",
	KindResourceUnavailable: "resource_unavailable",
	KindPermission:          "permission",
	KindExternalService:     "external_service",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return KindType, false
}

// Deterministic reports whether the same inputs always reproduce an error of
// this kind. Deterministic errors may be cached; the rest must be retried.
func (k Kind) Deterministic() bool {
	return k <= KindArithmetic
}

// Error is a classified directive failure. Offset is the byte offset in the
// directive source, or -1 when unknown.
type Error struct {
	Kind    Kind
	Message string
	Offset  int
	Err     error
}

// New creates a classified error.
func New(kind Kind, offset int, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Offset: offset}
}

// Wrap classifies err under kind, keeping it as the cause.
func Wrap(kind Kind, offset int, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Offset: offset, Err: err}
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s error at %d: %s", e.Kind, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Deterministic is shorthand for e.Kind.Deterministic().
func (e *Error) Deterministic() bool { return e.Kind.Deterministic() }

// Clone returns a copy of e without its cause; causes are not persisted.
func (e *Error) Clone() *Error {
	if e == nil {
		return nil
	}
	return &Error{Kind: e.Kind, Message: e.Message, Offset: e.Offset}
}

// Wire is the serialized form of an Error.
type Wire struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Offset  int    `json:"offset"`
}

// Encode converts e to its wire form.
func (e *Error) Encode() Wire {
	return Wire{Type: e.Kind.String(), Message: e.Message, Offset: e.Offset}
}

// Decode rebuilds an Error from its wire form. Unknown types decode as Type.
func Decode(w Wire) *Error {
	k, _ := ParseKind(w.Type)
	return &Error{Kind: k, Message: w.Message, Offset: w.Offset}
}
