// Package cmecerr defines the single domain error type raised by the driver.
// Every fatal condition carries a Kind so callers can branch with errors.Is
// while the message stays human readable.
package cmecerr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure.
type Kind string

const (
	KindMalformedLibrary        Kind = "malformed library"
	KindDuplicateModule         Kind = "duplicate module"
	KindModuleNotFound          Kind = "module not found"
	KindInvalidModuleName       Kind = "invalid module name"
	KindUnexpectedConfiguration Kind = "unexpected configuration"
	KindConfigurationNotFound   Kind = "configuration not found"
	KindNoDescriptor            Kind = "no descriptor"
	KindMalformedSettings       Kind = "malformed settings"
	KindMalformedTOC            Kind = "malformed contents"
	KindNoDriversFound          Kind = "no drivers found"
	KindOutputExists            Kind = "output exists"
	KindInvalidConfigFile       Kind = "invalid config file"
	KindMissingRequiredSetting  Kind = "missing required setting"
	KindInvalidDirectory        Kind = "invalid directory"
	KindLibraryEmpty            Kind = "library empty"
	KindUnsupportedRuntime      Kind = "unsupported runtime"
)

// Sentinels usable with errors.Is.
var (
	MalformedLibrary        = &Error{Kind: KindMalformedLibrary}
	DuplicateModule         = &Error{Kind: KindDuplicateModule}
	ModuleNotFound          = &Error{Kind: KindModuleNotFound}
	InvalidModuleName       = &Error{Kind: KindInvalidModuleName}
	UnexpectedConfiguration = &Error{Kind: KindUnexpectedConfiguration}
	ConfigurationNotFound   = &Error{Kind: KindConfigurationNotFound}
	NoDescriptor            = &Error{Kind: KindNoDescriptor}
	MalformedSettings       = &Error{Kind: KindMalformedSettings}
	MalformedTOC            = &Error{Kind: KindMalformedTOC}
	NoDriversFound          = &Error{Kind: KindNoDriversFound}
	OutputExists            = &Error{Kind: KindOutputExists}
	InvalidConfigFile       = &Error{Kind: KindInvalidConfigFile}
	MissingRequiredSetting  = &Error{Kind: KindMissingRequiredSetting}
	InvalidDirectory        = &Error{Kind: KindInvalidDirectory}
	LibraryEmpty            = &Error{Kind: KindLibraryEmpty}
	UnsupportedRuntime      = &Error{Kind: KindUnsupportedRuntime}
)

// Error is a violation of the module conventions or of the driver's own
// persisted state.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New builds an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so sentinels compare equal to any error of that kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
