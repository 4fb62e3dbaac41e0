// Package search runs full-text product search in Elasticsearch, filtered to
// the caller's tenant and visible branches.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/stockflow/internal/access"
	"github.com/Skotchmaster/stockflow/internal/models"
)

var (
	ErrEmptyQuery  = errors.New("empty search query")
	ErrUnavailable = errors.New("search backend not configured")
)

type Config struct {
	URL      string
	User     string
	Password string
}

// NewClient connects and checks the cluster answers.
func NewClient(ctx context.Context, cfg Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}
	return client, nil
}

// Scoper supplies the tenant and branch scope of the current request.
type Scoper interface {
	Resolve(ctx context.Context) (uint, access.BranchScope, error)
}

type Searcher struct {
	ES     *elasticsearch.Client
	Index  string
	Scoper Scoper
}

func NewSearcher(es *elasticsearch.Client, index string, scoper Scoper) *Searcher {
	return &Searcher{ES: es, Index: index, Scoper: scoper}
}

type Results struct {
	Total int64            `json:"total"`
	Items []models.Product `json:"products"`
}

// Query builds the request body. Tenant and branch restrictions are filters,
// so they never affect scoring.
func Query(tenantID uint, bs access.BranchScope, q string, from, size int) map[string]any {
	filter := []any{
		map[string]any{"term": map[string]any{"tenant_id": tenantID}},
	}
	if !bs.IsUnrestricted() {
		filter = append(filter, map[string]any{"terms": map[string]any{"branch_id": bs.BranchIDs()}})
	}
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{
						"multi_match": map[string]any{
							"query":     q,
							"fields":    []string{"name^2", "sku"},
							"fuzziness": "AUTO",
						},
					},
				},
				"filter": filter,
			},
		},
		"from":             from,
		"size":             size,
		"track_total_hits": true,
	}
}

func (s *Searcher) Search(ctx context.Context, q string, from, size int) (Results, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return Results{}, ErrEmptyQuery
	}
	if s == nil || s.ES == nil {
		return Results{}, ErrUnavailable
	}

	tenantID, bs, err := s.Scoper.Resolve(ctx)
	if err != nil {
		return Results{}, err
	}
	if !bs.IsUnrestricted() && len(bs.BranchIDs()) == 0 {
		return Results{Items: []models.Product{}}, nil
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(Query(tenantID, bs, q, from, size)); err != nil {
		return Results{}, fmt.Errorf("encode search: %w", err)
	}

	res, err := s.ES.Search(
		s.ES.Search.WithContext(ctx),
		s.ES.Search.WithIndex(s.Index),
		s.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return Results{}, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return Results{}, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Product `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return Results{}, fmt.Errorf("decode search: %w", err)
	}

	out := Results{Total: r.Hits.Total.Value, Items: make([]models.Product, 0, len(r.Hits.Hits))}
	for _, hit := range r.Hits.Hits {
		// filters already applied server side; drop anything a stale index
		// would leak
		if hit.Source.TenantID != tenantID || !bs.Allows(hit.Source.BranchID) {
			continue
		}
		out.Items = append(out.Items, hit.Source)
	}
	return out, nil
}

// IndexProduct writes or replaces the product document.
func (s *Searcher) IndexProduct(ctx context.Context, p models.Product) error {
	if s == nil || s.ES == nil {
		return ErrUnavailable
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}
	res, err := s.ES.Index(s.Index, bytes.NewReader(body),
		s.ES.Index.WithContext(ctx),
		s.ES.Index.WithDocumentID(strconv.FormatUint(uint64(p.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index product %d: %w", p.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index product %d: %s", p.ID, res.Status())
	}
	return nil
}
