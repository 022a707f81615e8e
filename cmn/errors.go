// Package cmn holds types and helpers shared by every data-path component:
// a kind-tagged error taxonomy, and small formatting helpers used at component
// boundaries. The taxonomy mirrors moby-moby/errdefs: a marker interface per
// kind plus Is<Kind> helpers that unwrap the error chain. Causes are stack-wrapped with
// github.com/pkg/errors at the call site that originates them, so a failing
// component's error carries the frame where it was first raised even after
// it has been relayed several layers up through Unwrap.
package cmn

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Kind-marker interfaces. Every error built by the New<Kind>Err
// constructors is a *kindError, which carries all of these marker methods;
// callers tell kinds apart with the Is<Kind> helpers below, which unwrap the
// error chain and compare the kind each kindError was created with.
type (
	ErrProtocol          interface{ IsProtocol() }
	ErrAllocationRefused interface{ IsAllocationRefused() }
	ErrNoMedium          interface{ IsNoMedium() }
	ErrIO                interface{ IsIO() }
	ErrCorrupted         interface{ IsCorrupted() }
	ErrUnreachableSplit  interface{ IsUnreachableSplit() }
	ErrTryAgain          interface{ IsTryAgain() }
	ErrBadFD             interface{ IsBadFD() }
)

type kindError struct {
	kind string
	msg  string
	err  error // wrapped cause, may be nil
}

func (e *kindError) Error() string {
	if e.err != nil {
		return e.kind + ": " + e.msg + ": " + e.err.Error()
	}
	return e.kind + ": " + e.msg
}

func (e *kindError) Unwrap() error { return e.err }

func (e *kindError) IsProtocol()          {}
func (e *kindError) IsAllocationRefused() {}
func (e *kindError) IsNoMedium()          {}
func (e *kindError) IsIO()                {}
func (e *kindError) IsCorrupted()         {}
func (e *kindError) IsUnreachableSplit()  {}
func (e *kindError) IsTryAgain()          {}
func (e *kindError) IsBadFD()             {}

func newKind(kind, msg string, cause error) error {
	if cause != nil {
		cause = pkgerrors.WithStack(cause)
	}
	return &kindError{kind: kind, msg: msg, err: cause}
}

func NewProtocolErr(msg string, cause error) error { return newKind("protocol", msg, cause) }
func NewAllocationRefusedErr(msg string, cause error) error {
	return newKind("allocation-refused", msg, cause)
}
func NewNoMediumErr(msg string) error         { return newKind("no-medium", msg, nil) }
func NewIOErr(msg string, cause error) error  { return newKind("io", msg, cause) }
func NewCorruptedErr(msg string) error        { return newKind("corrupted", msg, nil) }
func NewUnreachableSplitErr(msg string) error { return newKind("unreachable-split", msg, nil) }
func NewTryAgainErr(msg string) error         { return newKind("try-again", msg, nil) }
func NewBadFDErr(msg string) error            { return newKind("bad-fd", msg, nil) }

// isKind walks every kindError in err's chain and reports whether one of
// them was created with the given kind.
func isKind(err error, kind string) bool {
	for e := (*kindError)(nil); errors.As(err, &e); err = e.err {
		if e.kind == kind {
			return true
		}
	}
	return false
}

func IsProtocol(err error) bool          { return isKind(err, "protocol") }
func IsAllocationRefused(err error) bool { return isKind(err, "allocation-refused") }
func IsNoMedium(err error) bool          { return isKind(err, "no-medium") }
func IsIO(err error) bool                { return isKind(err, "io") }
func IsCorrupted(err error) bool         { return isKind(err, "corrupted") }
func IsUnreachableSplit(err error) bool  { return isKind(err, "unreachable-split") }
func IsTryAgain(err error) bool          { return isKind(err, "try-again") }
func IsBadFD(err error) bool             { return isKind(err, "bad-fd") }

// Fatal reports whether a kind is fatal for the whole transfer: everything
// except unreachable-split and try-again, which are advisory
// outcomes of the locate engine rather than transfer failures.
func Fatal(err error) bool {
	return !IsUnreachableSplit(err) && !IsTryAgain(err)
}
