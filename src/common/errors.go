package common

import (
	"errors"
	"fmt"
)

// ErrType identifies a class of failure surfaced by a DCF node.
type ErrType uint32

const (
	// AlreadyRunning is returned by Start on a running node.
	AlreadyRunning ErrType = iota
	// NotRunning is returned by Stop, and by the message pipeline, on a stopped
	// node.
	NotRunning
	// InvalidMode is returned for an unrecognised operating mode.
	InvalidMode
	// InvalidConfigKey is returned when updating a key outside the whitelist.
	InvalidConfigKey
	// InvalidValue is returned when a config value cannot be coerced.
	InvalidValue
	// ConfigLoad is returned when the configuration source cannot be read.
	ConfigLoad
	// NoRoute is returned when no path to a recipient is known.
	NoRoute
	// Transport wraps failures of the underlying transport.
	Transport
	// Serialization wraps codec failures.
	Serialization
	// PluginLoad is returned when a plugin transport cannot be resolved.
	PluginLoad
)

// String ...
func (t ErrType) String() string {
	switch t {
	case AlreadyRunning:
		return "Already Running"
	case NotRunning:
		return "Not Running"
	case InvalidMode:
		return "Invalid Mode"
	case InvalidConfigKey:
		return "Invalid Config Key"
	case InvalidValue:
		return "Invalid Value"
	case ConfigLoad:
		return "Config Load"
	case NoRoute:
		return "No Route"
	case Transport:
		return "Transport"
	case Serialization:
		return "Serialization"
	case PluginLoad:
		return "Plugin Load"
	default:
		return "Unknown"
	}
}

// DCFErr is the error type returned across package boundaries. The subject
// names the thing the error is about (a mode, a config key, a recipient...) and
// cause optionally carries the lower-level error.
type DCFErr struct {
	errType ErrType
	subject string
	cause   error
}

// NewDCFErr ...
func NewDCFErr(errType ErrType, subject string, cause error) DCFErr {
	return DCFErr{
		errType: errType,
		subject: subject,
		cause:   cause,
	}
}

// Type returns the class of the error.
func (e DCFErr) Type() ErrType {
	return e.errType
}

// Error ...
func (e DCFErr) Error() string {
	m := e.errType.String()
	if e.subject != "" {
		m = fmt.Sprintf("%s, %s", m, e.subject)
	}
	if e.cause != nil {
		m = fmt.Sprintf("%s: %v", m, e.cause)
	}
	return m
}

// Unwrap returns the underlying cause, if any.
func (e DCFErr) Unwrap() error {
	return e.cause
}

// IsDCFErr checks that err, or any error it wraps, is a DCFErr with the
// provided type.
func IsDCFErr(err error, t ErrType) bool {
	var dcfErr DCFErr
	return errors.As(err, &dcfErr) && dcfErr.errType == t
}
