package client

import (
	"net/url"
	"strconv"
	"time"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

// query assembles a query string from only the keys the caller supplied.
type query struct {
	v url.Values
}

func newQuery() *query { return &query{v: url.Values{}} }

func (q *query) str(key, val string) *query {
	if val != "" {
		q.v.Set(key, val)
	}
	return q
}

func (q *query) int(key string, val int) *query {
	if val > 0 {
		q.v.Set(key, strconv.Itoa(val))
	}
	return q
}

func (q *query) flag(key string, val bool) *query {
	if val {
		q.v.Set(key, "true")
	}
	return q
}

func (q *query) time(key string, t time.Time) *query {
	if !t.IsZero() {
		q.v.Set(key, t.UTC().Format(time.RFC3339))
	}
	return q
}

func (q *query) page(p models.ListParams) *query {
	return q.int("page", p.Page).int("limit", p.Limit).str("cursor", p.Cursor)
}

func (q *query) path(p string) string {
	if len(q.v) == 0 {
		return p
	}
	return p + "?" + q.v.Encode()
}
