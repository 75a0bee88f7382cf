package devbackend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"helpdesk/internal/infrastructure/strapi"
	"helpdesk/internal/ports"
)

const (
	opContains = "$contains"
	opNull     = "$null"
	opNotNull  = "$notNull"

	defaultPageSize = 25
)

// resolver follows relation references for one request.
type resolver struct {
	ctx    context.Context
	repo   ports.DocumentRepository
	loaded map[string]gjson.Result
}

func newResolver(ctx context.Context, repo ports.DocumentRepository) *resolver {
	return &resolver{ctx: ctx, repo: repo, loaded: make(map[string]gjson.Result)}
}

// target loads the record a reference points at. Unknown references come
// back unchanged.
func (r *resolver) target(field string, ref gjson.Result) gjson.Result {
	collection, ok := relationTargets[field]
	if !ok || !ref.IsObject() {
		return ref
	}
	id := ref.Get("documentId").String()
	if id == "" {
		return ref
	}
	key := collection + "/" + id
	if cached, ok := r.loaded[key]; ok {
		return cached
	}
	doc, err := r.repo.GetDocument(r.ctx, collection, id)
	if err != nil {
		return ref
	}
	out := gjson.Parse(doc.Payload)
	r.loaded[key] = out
	return out
}

// values collects the non-null leaves reached by path. Arrays fan out, and
// references are followed when the path continues past them.
func (r *resolver) values(node gjson.Result, path []string) []gjson.Result {
	if node.IsArray() {
		var out []gjson.Result
		for _, item := range node.Array() {
			out = append(out, r.values(item, path)...)
		}
		return out
	}
	if len(path) == 0 {
		if !node.Exists() || node.Type == gjson.Null {
			return nil
		}
		return []gjson.Result{node}
	}
	if !node.IsObject() {
		return nil
	}

	field := path[0]
	child := node.Get(escapeKey(field))
	rest := path[1:]
	if len(rest) > 0 && !(len(rest) == 1 && rest[0] == "documentId") {
		if child.IsArray() {
			var out []gjson.Result
			for _, item := range child.Array() {
				out = append(out, r.values(r.target(field, item), rest)...)
			}
			return out
		}
		child = r.target(field, child)
	}
	return r.values(child, rest)
}

func (r *resolver) match(item gjson.Result, f ports.Filter) (bool, error) {
	found := r.values(item, strings.Split(f.Field, "."))
	switch f.Op {
	case ports.OpEq:
		return anyValue(found, func(v string) bool { return v == f.Value }), nil
	case ports.OpNe:
		return !anyValue(found, func(v string) bool { return v == f.Value }), nil
	case ports.OpContainsi:
		needle := strings.ToLower(f.Value)
		return anyValue(found, func(v string) bool { return strings.Contains(strings.ToLower(v), needle) }), nil
	case opContains:
		return anyValue(found, func(v string) bool { return strings.Contains(v, f.Value) }), nil
	case opNull:
		return (len(found) == 0) == (f.Value != "false"), nil
	case opNotNull:
		return (len(found) > 0) == (f.Value != "false"), nil
	default:
		return false, fmt.Errorf("unsupported filter operator %q", f.Op)
	}
}

func anyValue(found []gjson.Result, pred func(string) bool) bool {
	for _, v := range found {
		if pred(v.String()) {
			return true
		}
	}
	return false
}

// filter keeps items matching every filter and at least one filter of each
// OR group.
func (r *resolver) filter(items []gjson.Result, q ports.Query) ([]gjson.Result, error) {
	out := items[:0:0]
	for _, item := range items {
		ok, err := r.matchQuery(item, q)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *resolver) matchQuery(item gjson.Result, q ports.Query) (bool, error) {
	for _, f := range q.Filters {
		ok, err := r.match(item, f)
		if err != nil || !ok {
			return false, err
		}
	}
	for _, group := range q.AnyOf {
		if len(group) == 0 {
			continue
		}
		matched := false
		for _, f := range group {
			ok, err := r.match(item, f)
			if err != nil {
				return false, err
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// populate swaps references for their records. "*" populates every known
// relation field present on the item. Nested paths populate their first
// segment only.
func (r *resolver) populate(item gjson.Result, fields []string) []byte {
	raw := []byte(item.Raw)
	if len(fields) == 0 {
		return raw
	}
	wanted := make(map[string]struct{})
	for _, f := range fields {
		if f == "*" {
			for name := range relationTargets {
				wanted[name] = struct{}{}
			}
			continue
		}
		head, _, _ := strings.Cut(f, ".")
		wanted[head] = struct{}{}
	}
	names := make([]string, 0, len(wanted))
	for name := range wanted {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		child := item.Get(escapeKey(name))
		if !child.Exists() || child.Type == gjson.Null {
			continue
		}
		var resolved []byte
		if child.IsArray() {
			resolved = []byte(`[]`)
			for _, ref := range child.Array() {
				resolved, _ = sjson.SetRawBytes(resolved, "-1", []byte(r.target(name, ref).Raw))
			}
		} else {
			resolved = []byte(r.target(name, child).Raw)
		}
		raw, _ = sjson.SetRawBytes(raw, escapeKey(name), resolved)
	}
	return raw
}

// sortItems applies "field:asc|desc" keys in order. Numbers compare
// numerically, everything else as strings.
func sortItems(items []gjson.Result, keys []string) {
	if len(keys) == 0 {
		return
	}
	type sortKey struct {
		path string
		desc bool
	}
	parsed := make([]sortKey, 0, len(keys))
	for _, key := range keys {
		field, dir, _ := strings.Cut(strings.TrimSpace(key), ":")
		if field == "" {
			continue
		}
		parsed = append(parsed, sortKey{path: field, desc: strings.EqualFold(dir, "desc")})
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, k := range parsed {
			c := compare(items[i].Get(k.path), items[j].Get(k.path))
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compare(a, b gjson.Result) int {
	if a.Type == gjson.Number && b.Type == gjson.Number {
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
		return 0
	}
	return strings.Compare(a.String(), b.String())
}

// paginate returns everything when no pagination was requested.
func paginate(items []gjson.Result, page, pageSize int) ([]gjson.Result, strapi.Pagination) {
	total := len(items)
	if page == 0 && pageSize == 0 {
		size := total
		if size == 0 {
			size = defaultPageSize
		}
		return items, strapi.Pagination{Page: 1, PageSize: size, PageCount: 1, Total: total}
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	pageCount := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return items[start:end], strapi.Pagination{Page: page, PageSize: pageSize, PageCount: pageCount, Total: total}
}
