package batch

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrParsingFailed is the terminal whole-batch error: the payload was
// absent, not a JSON array, had the wrong element count, or an element was
// structurally malformed. It is never produced for a mere body-shape
// mismatch, which surfaces as FailedToParseBody on the element instead.
var ErrParsingFailed = errors.New("batch: parsing failed")

// Expected is the type-erased decoder for one position of a batch reply.
// Build one per position with [For]; the ordered list passed to [Parse]
// binds each array element to its expected body type.
type Expected func(elem json.RawMessage) (AnySubResponse, error)

// For returns the Expected descriptor for body type T. The generic decode
// is captured in a closure so a []Expected can mix arbitrary body types.
func For[T any]() Expected {
	return func(elem json.RawMessage) (AnySubResponse, error) {
		return DecodeSubResponse[T](elem)
	}
}

// Response is a fully decoded batch reply.
//
// Invariant: len(Responses) equals the length of the expected list it was
// parsed against, and position i was decoded with expected[i].
type Response struct {
	Responses []AnySubResponse
}

// Parse decodes a raw batch payload against an ordered list of expected
// sub-response types. It returns either a Response with exactly
// len(expected) entries in matching order, or ErrParsingFailed with no
// partial result.
func Parse(payload []byte, expected []Expected) (*Response, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrParsingFailed)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(payload, &elems); err != nil {
		return nil, fmt.Errorf("%w: payload is not an array: %v", ErrParsingFailed, err)
	}
	if elems == nil {
		// "null" unmarshals into a nil slice without error; an actual
		// empty array decodes to a non-nil empty slice.
		return nil, fmt.Errorf("%w: payload is not an array", ErrParsingFailed)
	}

	if len(elems) != len(expected) {
		return nil, fmt.Errorf("%w: got %d elements, expected %d",
			ErrParsingFailed, len(elems), len(expected))
	}

	responses := make([]AnySubResponse, len(elems))
	for i, elem := range elems {
		sub, err := expected[i](elem)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrParsingFailed, i, err)
		}
		responses[i] = sub
	}

	return &Response{Responses: responses}, nil
}

// Get recovers the typed sub-response at position i. Returns false if the
// index is out of range or position i was not decoded with body type T.
func Get[T any](r *Response, i int) (*SubResponse[T], bool) {
	if r == nil || i < 0 || i >= len(r.Responses) {
		return nil, false
	}
	sub, ok := r.Responses[i].(*SubResponse[T])
	return sub, ok
}
