package strapi

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"helpdesk/internal/ports"
)

// EncodeQuery renders q with Strapi's bracket syntax, e.g.
// filters[client][documentId][$eq]=u1 and filters[$or][0][title][$containsi]=x.
// Several OR groups are nested under filters[$and][i][$or][j].
func EncodeQuery(q ports.Query) url.Values {
	values := url.Values{}
	for _, f := range q.Filters {
		values.Add("filters"+filterKey(f), f.Value)
	}
	groups := nonEmptyGroups(q.AnyOf)
	for i, group := range groups {
		prefix := "filters[$or]"
		if len(groups) > 1 {
			prefix = fmt.Sprintf("filters[$and][%d][$or]", i)
		}
		for j, f := range group {
			values.Add(fmt.Sprintf("%s[%d]", prefix, j)+filterKey(f), f.Value)
		}
	}
	for i, s := range q.Sort {
		values.Add(fmt.Sprintf("sort[%d]", i), s)
	}
	for i, p := range q.Populate {
		values.Add(fmt.Sprintf("populate[%d]", i), p)
	}
	if q.Page > 0 {
		values.Set("pagination[page]", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		values.Set("pagination[pageSize]", strconv.Itoa(q.PageSize))
	}
	return values
}

func nonEmptyGroups(groups [][]ports.Filter) [][]ports.Filter {
	out := make([][]ports.Filter, 0, len(groups))
	for _, group := range groups {
		if len(group) > 0 {
			out = append(out, group)
		}
	}
	return out
}

func filterKey(f ports.Filter) string {
	var b strings.Builder
	for _, part := range strings.Split(f.Field, ".") {
		b.WriteString("[")
		b.WriteString(part)
		b.WriteString("]")
	}
	op := f.Op
	if op == "" {
		op = ports.OpEq
	}
	b.WriteString("[")
	b.WriteString(op)
	b.WriteString("]")
	return b.String()
}

var (
	bracketPattern = regexp.MustCompile(`\[([^\[\]]*)\]`)
	indexedPattern = regexp.MustCompile(`^(sort|populate)\[(\d+)\]$`)
)

// DecodeQuery is the inverse of EncodeQuery. It also accepts the comma
// separated forms sort=a:asc,b:desc and populate=a,b.
func DecodeQuery(values url.Values) (ports.Query, error) {
	var q ports.Query
	// Top-level $or is group -1 so it sorts before $and groups.
	orGroups := map[int]map[int]ports.Filter{}
	sorted := map[int]string{}
	populated := map[int]string{}

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		value := vals[0]
		switch {
		case key == "sort":
			q.Sort = append(q.Sort, splitList(value)...)
		case key == "populate":
			q.Populate = append(q.Populate, splitList(value)...)
		case key == "pagination[page]":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return ports.Query{}, fmt.Errorf("invalid pagination[page] %q", value)
			}
			q.Page = n
		case key == "pagination[pageSize]":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return ports.Query{}, fmt.Errorf("invalid pagination[pageSize] %q", value)
			}
			q.PageSize = n
		case strings.HasPrefix(key, "filters["):
			parts := bracketParts(strings.TrimPrefix(key, "filters"))
			group, rest, grouped, err := groupParts(parts)
			if err != nil {
				return ports.Query{}, fmt.Errorf("%w in %q", err, key)
			}
			if grouped {
				idx, err := strconv.Atoi(rest[0])
				if err != nil {
					return ports.Query{}, fmt.Errorf("invalid filter index in %q", key)
				}
				f, err := filterFromParts(rest[1:], value)
				if err != nil {
					return ports.Query{}, fmt.Errorf("%w in %q", err, key)
				}
				if orGroups[group] == nil {
					orGroups[group] = map[int]ports.Filter{}
				}
				orGroups[group][idx] = f
				continue
			}
			f, err := filterFromParts(parts, value)
			if err != nil {
				return ports.Query{}, fmt.Errorf("%w in %q", err, key)
			}
			q.Filters = append(q.Filters, f)
		default:
			if m := indexedPattern.FindStringSubmatch(key); m != nil {
				idx, _ := strconv.Atoi(m[2])
				if m[1] == "sort" {
					sorted[idx] = value
				} else {
					populated[idx] = value
				}
			}
		}
	}

	q.Sort = append(q.Sort, byIndex(sorted)...)
	q.Populate = append(q.Populate, byIndex(populated)...)
	for _, groupIdx := range sortedKeys(orGroups) {
		members := orGroups[groupIdx]
		group := make([]ports.Filter, 0, len(members))
		for _, idx := range sortedKeys(members) {
			group = append(group, members[idx])
		}
		q.AnyOf = append(q.AnyOf, group)
	}
	sort.Slice(q.Filters, func(i, j int) bool { return q.Filters[i].Field < q.Filters[j].Field })
	return q, nil
}

// groupParts recognises [$or][j]... and [$and][i][$or][j]... prefixes.
func groupParts(parts []string) (group int, rest []string, grouped bool, err error) {
	switch {
	case len(parts) >= 3 && parts[0] == "$or":
		return -1, parts[1:], true, nil
	case len(parts) >= 5 && parts[0] == "$and" && parts[2] == "$or":
		idx, convErr := strconv.Atoi(parts[1])
		if convErr != nil {
			return 0, nil, false, fmt.Errorf("invalid $and index %q", parts[1])
		}
		return idx, parts[3:], true, nil
	case len(parts) > 0 && (parts[0] == "$or" || parts[0] == "$and"):
		return 0, nil, false, fmt.Errorf("unsupported filter group")
	}
	return 0, parts, false, nil
}

func filterFromParts(parts []string, value string) (ports.Filter, error) {
	if len(parts) < 2 {
		return ports.Filter{}, errors.New("filter needs a field and an operator")
	}
	op := parts[len(parts)-1]
	if !strings.HasPrefix(op, "$") {
		return ports.Filter{}, fmt.Errorf("filter operator %q must start with $", op)
	}
	return ports.Filter{Field: strings.Join(parts[:len(parts)-1], "."), Op: op, Value: value}, nil
}

func bracketParts(s string) []string {
	matches := bracketPattern.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func byIndex(m map[int]string) []string {
	out := make([]string, 0, len(m))
	for _, idx := range sortedKeys(m) {
		out = append(out, m[idx])
	}
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
