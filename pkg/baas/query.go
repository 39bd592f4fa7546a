package baas

import (
	"fmt"
	"net/url"
	"strings"
)

// Query builds PostgREST filter parameters: ?id=eq.5&order=id.asc
type Query struct {
	v url.Values
}

func NewQuery() *Query {
	return &Query{v: url.Values{}}
}

func (q *Query) Select(cols string) *Query {
	q.v.Set("select", cols)
	return q
}

func (q *Query) filter(col, op string, val any) *Query {
	q.v.Add(col, op+"."+fmt.Sprint(val))
	return q
}

func (q *Query) Eq(col string, val any) *Query  { return q.filter(col, "eq", val) }
func (q *Query) Gte(col string, val any) *Query { return q.filter(col, "gte", val) }

// Is filters on null/true/false.
func (q *Query) Is(col, val string) *Query { return q.filter(col, "is", val) }

func (q *Query) NotIs(col, val string) *Query { return q.filter(col, "not.is", val) }

func (q *Query) ILike(col, pattern string) *Query {
	return q.filter(col, "ilike", strings.ReplaceAll(pattern, "%", "*"))
}

func (q *Query) Order(col string, asc bool) *Query {
	dir := "desc"
	if asc {
		dir = "asc"
	}
	if cur := q.v.Get("order"); cur != "" {
		q.v.Set("order", cur+","+col+"."+dir)
	} else {
		q.v.Set("order", col+"."+dir)
	}
	return q
}

func (q *Query) Limit(n int) *Query {
	if n > 0 {
		q.v.Set("limit", fmt.Sprint(n))
	}
	return q
}

func (q *Query) Offset(n int) *Query {
	if n > 0 {
		q.v.Set("offset", fmt.Sprint(n))
	}
	return q
}

// Empty reports whether the query carries no row filter.
func (q *Query) Empty() bool {
	if q == nil {
		return true
	}
	for k := range q.v {
		switch k {
		case "select", "order", "limit", "offset":
		default:
			return false
		}
	}
	return true
}

func (q *Query) Values() url.Values {
	if q == nil {
		return nil
	}
	return q.v
}
