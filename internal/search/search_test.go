package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/stockflow/internal/access"
	"github.com/Skotchmaster/stockflow/internal/tenancy"
)

type fakeTransport struct {
	body   string
	status int
	reqs   []*http.Request
	bodies []string
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.reqs = append(f.reqs, req)
	var b string
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		b = string(raw)
	}
	f.bodies = append(f.bodies, b)
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	h := http.Header{}
	h.Set("X-Elastic-Product", "Elasticsearch")
	h.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(f.body)),
		Request:    req,
	}, nil
}

type staticScoper struct {
	tenant uint
	scope  access.BranchScope
	err    error
}

func (s staticScoper) Resolve(context.Context) (uint, access.BranchScope, error) {
	return s.tenant, s.scope, s.err
}

func newSearcher(t *testing.T, ft *fakeTransport, sc Scoper) *Searcher {
	t.Helper()
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://es.test:9200"},
		Transport: ft,
	})
	require.NoError(t, err)
	return NewSearcher(es, "products", sc)
}

func TestQuery_Filters(t *testing.T) {
	raw, err := json.Marshal(Query(4, access.RestrictedTo(7, 3), "bolt", 0, 20))
	require.NoError(t, err)

	var q struct {
		Query struct {
			Bool struct {
				Filter []map[string]map[string]any `json:"filter"`
			} `json:"bool"`
		} `json:"query"`
		Size int `json:"size"`
	}
	require.NoError(t, json.Unmarshal(raw, &q))
	require.Len(t, q.Query.Bool.Filter, 2)
	assert.EqualValues(t, 4, q.Query.Bool.Filter[0]["term"]["tenant_id"])
	assert.Equal(t, []any{float64(3), float64(7)}, q.Query.Bool.Filter[1]["terms"]["branch_id"])
	assert.Equal(t, 20, q.Size)

	raw, err = json.Marshal(Query(4, access.Unrestricted(), "bolt", 0, 20))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &q))
	assert.Len(t, q.Query.Bool.Filter, 1)
}

func TestSearch(t *testing.T) {
	ft := &fakeTransport{body: `{"hits":{"total":{"value":3},"hits":[
		{"_source":{"id":1,"tenant_id":4,"branch_id":3,"name":"bolt"}},
		{"_source":{"id":2,"tenant_id":4,"branch_id":5,"name":"bolt xl"}},
		{"_source":{"id":3,"tenant_id":9,"branch_id":3,"name":"bolt s"}}
	]}}`}
	s := newSearcher(t, ft, staticScoper{tenant: 4, scope: access.RestrictedTo(3)})

	res, err := s.Search(context.Background(), "  bolt ", 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)
	require.Len(t, res.Items, 1)
	assert.EqualValues(t, 1, res.Items[0].ID)

	require.Len(t, ft.reqs, 1)
	assert.Equal(t, "/products/_search", ft.reqs[0].URL.Path)
	assert.Contains(t, ft.bodies[0], `"tenant_id":4`)
	assert.Contains(t, ft.bodies[0], `"branch_id":[3]`)
}

func TestSearch_EmptyScopeSkipsBackend(t *testing.T) {
	ft := &fakeTransport{}
	s := newSearcher(t, ft, staticScoper{tenant: 4, scope: access.RestrictedTo()})

	res, err := s.Search(context.Background(), "bolt", 0, 20)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Empty(t, ft.reqs)
}

func TestSearch_Errors(t *testing.T) {
	ft := &fakeTransport{}
	s := newSearcher(t, ft, staticScoper{err: tenancy.ErrContextMissing})

	_, err := s.Search(context.Background(), " ", 0, 20)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = s.Search(context.Background(), "bolt", 0, 20)
	assert.ErrorIs(t, err, tenancy.ErrContextMissing)

	var nilSearcher *Searcher
	_, err = nilSearcher.Search(context.Background(), "bolt", 0, 20)
	assert.ErrorIs(t, err, ErrUnavailable)

	bad := newSearcher(t, &fakeTransport{status: http.StatusInternalServerError, body: `{}`}, staticScoper{tenant: 1, scope: access.Unrestricted()})
	_, err = bad.Search(context.Background(), "bolt", 0, 20)
	require.Error(t, err)
}
