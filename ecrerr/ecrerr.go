// Package ecrerr provides the typed error framework used throughout the
// engine. Every error surfaced to an embedder is an R produced by one of the
// ErrorCodes declared below (or in a component package), never a bare
// fmt.Errorf. This lets callers distinguish CommunicationError from
// ValidationError with a type assertion instead of string matching.
package ecrerr

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// R is the error interface returned by this package. It behaves like error
// (Error() is provided by Native()) but carries a message chain and an
// optional stack captured at the point of creation.
type R interface {
	Message() string
	HasStack() bool
	Stack() []string
	String() string
	Wrapped0() error
	Native() error
	AddMessage(m string)
}

// ErrorCode identifies a specific fault within an ErrorType.
type ErrorCode struct {
	Detail         string
	Type           *ErrorType
	defaultWrapped error
}

// ErrorType groups related ErrorCodes, e.g. all communication faults.
type ErrorType struct {
	Name  string
	Codes []*ErrorCode
}

// NewErrorType creates a named ErrorType. ident should be package-qualified,
// e.g. "transport.CommunicationError".
func NewErrorType(ident string) ErrorType {
	return ErrorType{Name: ident}
}

// Code declares a new ErrorCode with no default wrapped error.
func (e *ErrorType) Code(info string) *ErrorCode {
	ec := &ErrorCode{Detail: info, Type: e}
	e.Codes = append(e.Codes, ec)
	return ec
}

// CodeWithDefault declares a new ErrorCode whose Default() wraps defaultErr.
func (e *ErrorType) CodeWithDefault(info string, defaultErr error) *ErrorCode {
	ec := e.Code(info)
	ec.defaultWrapped = defaultErr
	return ec
}

// Is reports whether err was produced by this ErrorCode.
func (c *ErrorCode) Is(err R) bool {
	if err == nil {
		return c == nil
	}
	te, ok := err.(typedErr)
	return ok && te.code == c
}

// New builds an R for this code, wrapping err (which may be nil) and
// prefixing info (which may be empty) onto the message chain.
func (c *ErrorCode) New(info string, err R) R {
	var messages []string
	if info == "" {
		messages = []string{c.Detail}
	} else {
		messages = []string{c.Detail, info}
	}
	if err == nil {
		err = newErr("", captureStack())
	} else if te, ok := err.(typedErr); ok && te.code == c {
		if info != "" {
			te.messages = append(messages, te.messages...)
		}
		return te
	}
	return typedErr{messages: messages, errType: c.Type, code: c, err: err}
}

// Default builds an R from the code's default wrapped error, or a bare
// stack-captured R if none was registered.
func (c *ErrorCode) Default() R {
	if c.defaultWrapped != nil {
		return c.New("", ee(c.defaultWrapped))
	}
	return c.New("", nil)
}

type typedErr struct {
	messages []string
	errType  *ErrorType
	code     *ErrorCode
	err      R
}

func (te typedErr) AddMessage(m string) { te.messages = append([]string{m}, te.messages...) }

func (te typedErr) Message() string {
	inner := te.err.Message()
	if inner == "" {
		return strings.Join(te.messages, ": ")
	}
	return fmt.Sprintf("%s: %s", strings.Join(te.messages, ": "), inner)
}

func (te typedErr) HasStack() bool { return te.err.HasStack() }
func (te typedErr) Stack() []string { return te.err.Stack() }

func (te typedErr) String() string {
	s := ""
	if te.err.HasStack() {
		s = "\n" + strings.Join(te.Stack(), "\n") + "\n"
	}
	return te.Message() + s
}

func (te typedErr) Error() string    { return te.String() }
func (te typedErr) Wrapped0() error  { return te.err.Wrapped0() }
func (te typedErr) Native() error    { return nativeErr{te} }

// Code returns the ErrorCode that produced err, or nil if err was not
// produced by this package.
func Code(err R) *ErrorCode {
	if err == nil {
		return nil
	}
	if te, ok := err.(typedErr); ok {
		return te.code
	}
	return nil
}

type nativeErr struct{ r R }

func (n nativeErr) Error() string { return n.r.String() }
func (n nativeErr) Unwrap() error { return n.r.Wrapped0() }

type plainErr struct {
	messages []string
	e        error
	bstack   []byte
}

func (e plainErr) AddMessage(m string) {
	if e.messages == nil {
		e.messages = []string{m, e.e.Error()}
		return
	}
	e.messages = append([]string{m}, e.messages...)
}

func (e plainErr) Message() string {
	if e.messages == nil {
		return e.e.Error()
	}
	return strings.Join(e.messages, ": ")
}

func (e plainErr) HasStack() bool { return e.bstack != nil }

func (e plainErr) Stack() []string {
	if e.bstack == nil {
		return nil
	}
	lines := strings.Split(string(e.bstack), "\n")
	if len(lines) > 5 {
		lines = lines[5:]
	}
	return lines
}

func (e plainErr) String() string {
	s := ""
	if e.bstack != nil {
		s = "\n" + strings.Join(e.Stack(), "\n") + "\n"
	}
	return e.Message() + s
}

func (e plainErr) Error() string   { return e.String() }
func (e plainErr) Wrapped0() error { return e.e }
func (e plainErr) Native() error   { return nativeErr{e} }

func captureStack() []byte { return debug.Stack() }

func newErr(s string, bstack []byte) R {
	return plainErr{e: errors.New(s), bstack: bstack}
}

// New builds a stack-captured R from a plain message, with no ErrorCode.
func New(s string) R { return newErr(s, captureStack()) }

// Errorf is fmt.Errorf for R.
func Errorf(format string, a ...interface{}) R {
	return plainErr{e: fmt.Errorf(format, a...), bstack: captureStack()}
}

func ee(err error) R { return plainErr{e: err, bstack: captureStack()} }

// E wraps a native error as an R, unwrapping it first if it was itself
// produced by Native().
func E(err error) R {
	if err == nil {
		return nil
	}
	if ne, ok := err.(nativeErr); ok {
		return ne.r
	}
	return ee(err)
}

// Cis reports whether err was produced by code, tolerating a nil code.
func Cis(code *ErrorCode, err R) bool {
	if code == nil {
		return err == nil
	}
	return code.Is(err)
}
