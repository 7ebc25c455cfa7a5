package schematic

import "fmt"

// ParseError reports a structural problem while extracting the typed
// model from the node tree: a missing required top-level tag or a
// coordinate list with the wrong arity. Unknown enum values are NOT
// parse errors; they are logged and replaced with defaults.
type ParseError struct {
	Element string
	Field   string
	Reason  string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse error in %s [%s]: %s", e.Element, e.Field, e.Reason)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Element, e.Reason)
}

func parseErr(element, field, format string, args ...any) *ParseError {
	return &ParseError{Element: element, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError reports a constraint violation at a mutating call
// site. The collection is left unchanged when one is returned.
type ValidationError struct {
	Element string
	ID      string // UUID or reference of the offending item
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	s := "invalid " + e.Element
	if e.ID != "" {
		s += " " + e.ID
	}
	if e.Field != "" {
		s += " [" + e.Field + "]"
	}
	return s + ": " + e.Reason
}

func validationErr(element, id, field, format string, args ...any) *ValidationError {
	return &ValidationError{Element: element, ID: id, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DuplicateIDError is returned by Add when an item's UUID is already
// present in the collection.
type DuplicateIDError struct {
	Element string
	ID      string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate %s uuid %q", e.Element, e.ID)
}

// MissingSymbolError is returned by Serialize when a component's
// library identifier has no lib_symbols definition. Writing such a
// document would silently corrupt it in the host application, so this
// is fatal for save.
type MissingSymbolError struct {
	LibID string
}

func (e *MissingSymbolError) Error() string {
	return fmt.Sprintf("no symbol definition for library id %q", e.LibID)
}
