package batch_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/xraph/courier/batch"
)

type stringBody struct {
	StringValue string `json:"stringValue"`
}

type mixedBody struct {
	IntValue     int    `json:"intValue"`
	StringValue2 string `json:"stringValue2"`
}

// strictBody requires a non-empty name beyond what encoding/json enforces.
type strictBody struct {
	Name string `json:"name"`
}

func (b *strictBody) Validate() error {
	if b.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func TestDecodeSubResponse_ValidBody(t *testing.T) {
	elem := json.RawMessage(`{"code":200,"headers":{"x-seq":"1"},"body":{"stringValue":"a"}}`)

	sub, err := batch.DecodeSubResponse[stringBody](elem)
	if err != nil {
		t.Fatalf("DecodeSubResponse: %v", err)
	}
	if sub.Code != 200 {
		t.Errorf("Code = %d, want 200", sub.Code)
	}
	if v, ok := sub.Header("x-seq"); !ok || v != "1" {
		t.Errorf("Header(x-seq) = %q, %v; want \"1\", true", v, ok)
	}
	if sub.Body == nil || sub.Body.StringValue != "a" {
		t.Errorf("Body = %+v, want StringValue \"a\"", sub.Body)
	}
	if sub.FailedToParseBody {
		t.Error("FailedToParseBody = true, want false")
	}
}

func TestDecodeSubResponse_AbsentBodyIsNoContent(t *testing.T) {
	tests := []struct {
		name string
		elem string
	}{
		{"missing body field", `{"code":204,"headers":{}}`},
		{"null body", `{"code":204,"headers":{},"body":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := batch.DecodeSubResponse[stringBody](json.RawMessage(tt.elem))
			if err != nil {
				t.Fatalf("DecodeSubResponse: %v", err)
			}
			if sub.Body != nil {
				t.Errorf("Body = %+v, want nil", sub.Body)
			}
			if sub.FailedToParseBody {
				t.Error("FailedToParseBody = true, want false (absence is not a parse failure)")
			}
		})
	}
}

func TestDecodeSubResponse_MismatchedBodyIsLocalFailure(t *testing.T) {
	elem := json.RawMessage(`{"code":200,"headers":{},"body":"oops"}`)

	sub, err := batch.DecodeSubResponse[stringBody](elem)
	if err != nil {
		t.Fatalf("DecodeSubResponse: %v", err)
	}
	if !sub.FailedToParseBody {
		t.Error("FailedToParseBody = false, want true")
	}
	if sub.Body != nil {
		t.Errorf("Body = %+v, want nil when FailedToParseBody is set", sub.Body)
	}
}

func TestDecodeSubResponse_ValidatorRejectionIsLocalFailure(t *testing.T) {
	elem := json.RawMessage(`{"code":200,"headers":{},"body":{"name":""}}`)

	sub, err := batch.DecodeSubResponse[strictBody](elem)
	if err != nil {
		t.Fatalf("DecodeSubResponse: %v", err)
	}
	if !sub.FailedToParseBody {
		t.Error("FailedToParseBody = false, want true for validator rejection")
	}
	if sub.Body != nil {
		t.Errorf("Body = %+v, want nil", sub.Body)
	}
}

func TestDecodeSubResponse_MissingCodeIsStructural(t *testing.T) {
	elem := json.RawMessage(`{"headers":{},"body":{"stringValue":"a"}}`)

	if _, err := batch.DecodeSubResponse[stringBody](elem); err == nil {
		t.Error("DecodeSubResponse succeeded, want structural error for missing code")
	}
}

func TestDecodeSubResponse_MissingHeadersIsStructural(t *testing.T) {
	elem := json.RawMessage(`{"code":200,"body":{"stringValue":"a"}}`)

	if _, err := batch.DecodeSubResponse[stringBody](elem); err == nil {
		t.Error("DecodeSubResponse succeeded, want structural error for missing headers")
	}
}

func TestDecodeSubResponse_NoContentIgnoresBody(t *testing.T) {
	tests := []struct {
		name string
		elem string
	}{
		{"absent body", `{"code":200,"headers":{}}`},
		{"null body", `{"code":200,"headers":{},"body":null}`},
		{"unexpected body", `{"code":200,"headers":{},"body":{"anything":"goes"}}`},
		{"garbage body", `{"code":200,"headers":{},"body":"oops"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := batch.DecodeSubResponse[batch.NoContent](json.RawMessage(tt.elem))
			if err != nil {
				t.Fatalf("DecodeSubResponse: %v", err)
			}
			if sub.Body != nil {
				t.Errorf("Body = %+v, want nil for NoContent", sub.Body)
			}
			if sub.FailedToParseBody {
				t.Error("FailedToParseBody = true, want false for NoContent")
			}
		})
	}
}
