package model

// ListResponse is the envelope for list output, wrapping results in a
// "resource" array with a count.
type ListResponse[T any] struct {
	Resource []T          `json:"resource"`
	Meta     ResponseMeta `json:"meta"`
}

// ResponseMeta carries list metadata.
type ResponseMeta struct {
	Count int `json:"count"`
}

// NewListResponse wraps items. A nil slice is rendered as an empty array.
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Resource: items, Meta: ResponseMeta{Count: len(items)}}
}

// ErrorResponse is the envelope for error output.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the structured form of a failed operation. Code is the
// stable machine-matchable identifier.
type ErrorDetail struct {
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}
