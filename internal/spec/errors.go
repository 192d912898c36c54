package spec

import "fmt"

// ParseErrorKind distinguishes the ways an invocation can be rejected
// during parsing.
type ParseErrorKind string

const (
	// ErrInvalidToken is a token that matched a recognized shape but
	// failed validation.
	ErrInvalidToken ParseErrorKind = "InvalidToken"
	// ErrInvalidArgument is a token no rule recognized.
	ErrInvalidArgument ParseErrorKind = "InvalidArgument"
	// ErrDuplicateField is the same scalar field set twice within one
	// machine run.
	ErrDuplicateField ParseErrorKind = "DuplicateField"
	// ErrDuplicateMachineName is two machines resolving to the same
	// name within one cluster.
	ErrDuplicateMachineName ParseErrorKind = "DuplicateMachineName"
)

// ParseError reports a rejected invocation. Parsing is all-or-nothing:
// a ParseError means no part of the argument list was applied.
type ParseError struct {
	Kind     ParseErrorKind
	Token    string // offending token, verbatim
	Position int    // 1-based position in the argument list, 0 if not positional
	Field    string // duplicated field, for ErrDuplicateField
	Name     string // machine name, for ErrDuplicateMachineName
	Reason   string
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case ErrInvalidToken:
		return fmt.Sprintf("invalid token %q at position %d: %s", e.Token, e.Position, e.Reason)
	case ErrInvalidArgument:
		return fmt.Sprintf("unrecognized token %q at position %d", e.Token, e.Position)
	case ErrDuplicateField:
		return fmt.Sprintf("duplicate %s setting %q at position %d", e.Field, e.Token, e.Position)
	case ErrDuplicateMachineName:
		return fmt.Sprintf("duplicate machine name %q", e.Name)
	default:
		return fmt.Sprintf("parse error on token %q: %s", e.Token, e.Reason)
	}
}

func newInvalidToken(tok Token, pos int) *ParseError {
	return &ParseError{Kind: ErrInvalidToken, Token: tok.Text, Position: pos, Reason: tok.Reason}
}

func newInvalidArgument(tok Token, pos int) *ParseError {
	return &ParseError{Kind: ErrInvalidArgument, Token: tok.Text, Position: pos}
}

func newDuplicateField(field string, tok Token, pos int) *ParseError {
	return &ParseError{Kind: ErrDuplicateField, Field: field, Token: tok.Text, Position: pos}
}

func newDuplicateMachineName(name string) *ParseError {
	return &ParseError{Kind: ErrDuplicateMachineName, Name: name}
}
