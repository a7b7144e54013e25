package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"intake-workers/internal/common/errors"
	"intake-workers/internal/common/logger"
	"intake-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// RequestIndexMapping is the index body used by EnsureIndex.
const RequestIndexMapping = `{
	"mappings": {
		"properties": {
			"id":            {"type": "keyword"},
			"ownerIdentity": {"type": "keyword"},
			"displayName":   {"type": "text"},
			"phone":         {"type": "keyword"},
			"serviceType":   {"type": "keyword"},
			"status":        {"type": "keyword"},
			"creditorName":  {"type": "text"},
			"query":         {"type": "text"},
			"createdAt":     {"type": "date"}
		}
	}
}`

const maxSearchSize = 100

// SearchDocument is the flattened request stored in the search index.
type SearchDocument struct {
	ID            string    `json:"id"`
	OwnerIdentity string    `json:"ownerIdentity"`
	DisplayName   string    `json:"displayName"`
	Phone         string    `json:"phone"`
	ServiceType   string    `json:"serviceType"`
	Status        string    `json:"status"`
	CreditorName  string    `json:"creditorName,omitempty"`
	Query         string    `json:"query,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toSearchDocument(req models.ServiceRequest) SearchDocument {
	doc := SearchDocument{
		ID:            req.ID,
		OwnerIdentity: req.OwnerIdentity,
		DisplayName:   req.DisplayName,
		Phone:         req.Phone,
		ServiceType:   string(req.ServiceType),
		Status:        string(req.Status),
		CreditorName:  req.Details.CreditorName(),
		CreatedAt:     req.CreatedAt,
	}
	if req.Details.FileQuery != nil {
		doc.Query = req.Details.FileQuery.Query
	}
	return doc
}

// SearchQuery filters the admin search. Empty fields are ignored.
type SearchQuery struct {
	Text        string
	ServiceType string
	Status      string
	Phone       string
	From        int
	Size        int
}

type SearchResult struct {
	Documents []SearchDocument
	TotalHits int64
	Took      int64
}

// Indexer mirrors ledger rows into Elasticsearch for admin search.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	log    logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		log:    log.WithFields(map[string]interface{}{"component": "request-indexer", "index": index}),
	}
}

// Index upserts req under its ID.
func (i *Indexer) Index(ctx context.Context, req models.ServiceRequest) error {
	body, err := json.Marshal(toSearchDocument(req))
	if err != nil {
		return errors.NewSearchIndexFailedError(i.index, err)
	}

	res, err := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: req.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, i.client)
	if err != nil {
		return errors.NewSearchIndexFailedError(i.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewSearchIndexFailedError(i.index, fmt.Errorf("index %s: %s", req.ID, res.Status()))
	}

	i.log.Debug("Service request indexed", map[string]interface{}{"requestId": req.ID})
	return nil
}

// Search runs a bool query built from q.
func (i *Indexer) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	size := q.Size
	if size < 1 {
		size = 20
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}
	from := q.From
	if from < 0 {
		from = 0
	}

	body, err := json.Marshal(buildSearchBody(q))
	if err != nil {
		return nil, errors.NewSearchIndexFailedError(i.index, err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  strings.NewReader(string(body)),
		From:  &from,
		Size:  &size,
	}.Do(ctx, i.client)
	if err != nil {
		return nil, errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewSearchIndexFailedError(i.index, fmt.Errorf("search: %s", res.Status()))
	}

	var r struct {
		Took int64 `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source SearchDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, errors.NewSearchIndexFailedError(i.index, fmt.Errorf("decode search response: %w", err))
	}

	out := &SearchResult{
		TotalHits: r.Hits.Total.Value,
		Took:      r.Took,
	}
	for _, h := range r.Hits.Hits {
		out.Documents = append(out.Documents, h.Source)
	}
	return out, nil
}

func buildSearchBody(q SearchQuery) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"displayName^3", "creditorName^2", "query"},
				"type":   "best_fields",
			},
		})
	}
	for field, value := range map[string]string{
		"serviceType": q.ServiceType,
		"status":      q.Status,
		"phone":       q.Phone,
	} {
		if value != "" {
			filter = append(filter, map[string]interface{}{
				"term": map[string]interface{}{field: value},
			})
		}
	}

	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"createdAt": map[string]interface{}{"order": "desc"}},
		},
	}
}
