package model

// Page size bounds applied by callers before a list reaches the stores.
const (
	MinPageSize     = 5
	MaxPageSize     = 50
	DefaultPageSize = 10
)

// Page is one slice of a keyset-paginated listing. NextPage is empty when
// there are no further pages.
type Page[T any] struct {
	Items    []T    `json:"items"`
	NextPage string `json:"next_page,omitempty"`
}

// PageQuery is a caller's request for one page.
type PageQuery struct {
	NextPage string
	PageSize int
}

// ClampPageSize applies the default to a zero size and bounds the rest to
// [MinPageSize, MaxPageSize].
func ClampPageSize(n int) int {
	switch {
	case n == 0:
		return DefaultPageSize
	case n < MinPageSize:
		return MinPageSize
	case n > MaxPageSize:
		return MaxPageSize
	}
	return n
}
