package ports

import "context"

const (
	OpEq        = "$eq"
	OpNe        = "$ne"
	OpContainsi = "$containsi"
)

// Filter restricts a collection query. Field is a dotted path such as
// "client.documentId".
type Filter struct {
	Field string
	Op    string
	Value string
}

// Query describes a collection read against the remote backend.
type Query struct {
	// Filters are combined with AND.
	Filters []Filter
	// AnyOf holds OR groups. Filters inside a group are combined with OR;
	// groups are AND-ed with each other and with Filters.
	AnyOf    [][]Filter
	Sort     []string
	Populate []string
	Page     int
	PageSize int
}

func (q Query) With(filters ...Filter) Query {
	out := q
	out.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return out
}

// WithAnyOf adds one OR group.
func (q Query) WithAnyOf(filters ...Filter) Query {
	if len(filters) == 0 {
		return q
	}
	out := q
	out.AnyOf = append(append([][]Filter(nil), q.AnyOf...), append([]Filter(nil), filters...))
	return out
}

func Eq(field string, value string) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

func Containsi(field string, value string) Filter {
	return Filter{Field: field, Op: OpContainsi, Value: value}
}

// RemoteHandler is the CRUD surface of one backend collection. Every
// mutation returns the server's canonical entity, with the relations named
// in query.Populate filled in.
type RemoteHandler[T any] interface {
	FindAll(ctx context.Context, query Query) ([]T, error)
	FindByID(ctx context.Context, documentID string, query Query) (T, error)
	Create(ctx context.Context, input any, query Query) (T, error)
	Update(ctx context.Context, documentID string, patch any, query Query) (T, error)
	Delete(ctx context.Context, documentID string) error
}
