package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NoContent is the marker body type for sub-requests whose reply carries no
// payload worth decoding. The body is ignored whether absent, null, or
// present, and FailedToParseBody is never set.
type NoContent struct{}

// Validator is implemented by body types that require fields beyond what
// encoding/json can enforce. A Validate error after a structurally valid
// unmarshal marks the body as failed-to-parse, not the whole batch.
type Validator interface {
	Validate() error
}

// AnySubResponse is the type-erased view of one decoded batch element.
// Concrete values are always *SubResponse[T] for the expected type used at
// that position; recover the typed value with [Get].
type AnySubResponse interface {
	// StatusCode returns the sub-response status code.
	StatusCode() int

	// Header returns the named sub-response header.
	Header(name string) (string, bool)

	// HasBody reports whether a body decoded successfully.
	HasBody() bool

	// BodyFailed reports whether a body was present but did not match
	// the expected shape.
	BodyFailed() bool
}

// SubResponse is one element of a batch reply, decoded against body type T.
// It is constructed exactly once by [DecodeSubResponse] and immutable
// thereafter.
//
// Invariant: FailedToParseBody implies Body == nil. Body == nil with
// FailedToParseBody false is the valid no-content state.
type SubResponse[T any] struct {
	Code              int
	Headers           map[string]string
	Body              *T
	FailedToParseBody bool
}

// StatusCode returns the sub-response status code.
func (s *SubResponse[T]) StatusCode() int { return s.Code }

// Header returns the named sub-response header.
func (s *SubResponse[T]) Header(name string) (string, bool) {
	v, ok := s.Headers[name]
	return v, ok
}

// HasBody reports whether a body decoded successfully.
func (s *SubResponse[T]) HasBody() bool { return s.Body != nil }

// BodyFailed reports whether a body was present but did not match T.
func (s *SubResponse[T]) BodyFailed() bool { return s.FailedToParseBody }

// envelope is the wire shape of one batch element. Code is a pointer so a
// missing field is distinguishable from a literal zero; Headers stays raw so
// absence is distinguishable from an empty object.
type envelope struct {
	Code    *int            `json:"code"`
	Headers json.RawMessage `json:"headers"`
	Body    json.RawMessage `json:"body"`
}

var nullLiteral = []byte("null")

// isAbsent reports whether a raw field was missing or JSON null.
func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), nullLiteral)
}

// DecodeSubResponse decodes one raw batch element against body type T.
//
// A missing or null body is the valid no-content state. A present body that
// does not match T's shape sets FailedToParseBody — a local failure that
// never aborts the enclosing array. A missing code or malformed headers is
// a structural error and returns a non-nil error.
func DecodeSubResponse[T any](elem json.RawMessage) (*SubResponse[T], error) {
	var env envelope
	if err := json.Unmarshal(elem, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	if env.Code == nil {
		return nil, fmt.Errorf("decode envelope: missing code")
	}
	if isAbsent(env.Headers) {
		return nil, fmt.Errorf("decode envelope: missing headers")
	}

	headers := make(map[string]string)
	if err := json.Unmarshal(env.Headers, &headers); err != nil {
		return nil, fmt.Errorf("decode headers: %w", err)
	}

	sub := &SubResponse[T]{
		Code:    *env.Code,
		Headers: headers,
	}

	// The NoContent marker never inspects the body.
	if _, isNoContent := any(sub.Body).(*NoContent); isNoContent {
		return sub, nil
	}

	if isAbsent(env.Body) {
		return sub, nil
	}

	body := new(T)
	if err := json.Unmarshal(env.Body, body); err != nil {
		sub.FailedToParseBody = true
		return sub, nil
	}
	if v, ok := any(body).(Validator); ok {
		if err := v.Validate(); err != nil {
			sub.FailedToParseBody = true
			return sub, nil
		}
	}

	sub.Body = body
	return sub, nil
}
