package types

// ResponseMeta carries metadata returned alongside list responses.
type ResponseMeta struct {
	Count    int      `json:"count"`
	Version  uint64   `json:"version,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ListResponse wraps a list payload with its metadata.
type ListResponse[T any] struct {
	Data []T          `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// NewListResponse builds a ListResponse, never emitting a null data array.
func NewListResponse[T any](items []T, version uint64) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{
		Data: items,
		Meta: ResponseMeta{Count: len(items), Version: version},
	}
}
