package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/samber/oops"

	"github.com/artztall/user-service/internal/application"
	"github.com/artztall/user-service/internal/domain/entity"
)

const requestTimeout = 3 * time.Second

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":                {"type": "keyword"},
      "kind":              {"type": "keyword"},
      "email":             {"type": "keyword"},
      "name":              {"type": "text"},
      "bio":               {"type": "text"},
      "artworkCategories": {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "profileImageRef":   {"type": "keyword", "index": false},
      "verified":          {"type": "boolean"},
      "active":            {"type": "boolean"},
      "joinedAt":          {"type": "date"}
    }
  }
}`

// accountDoc is the document stored per account.
type accountDoc struct {
	ID                string   `json:"id"`
	Kind              string   `json:"kind"`
	Email             string   `json:"email"`
	Name              string   `json:"name"`
	Bio               string   `json:"bio,omitempty"`
	ArtworkCategories []string `json:"artworkCategories,omitempty"`
	ProfileImageRef   string   `json:"profileImageRef,omitempty"`
	Verified          bool     `json:"verified"`
	Active            bool     `json:"active"`
	JoinedAt          string   `json:"joinedAt"`
}

// AccountIndex keeps an Elasticsearch directory of accounts.
type AccountIndex struct {
	es    *elasticsearch.Client
	index string
}

var _ application.AccountIndex = (*AccountIndex)(nil)

func NewAccountIndex(es *elasticsearch.Client, index string) *AccountIndex {
	return &AccountIndex{es: es, index: index}
}

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (x *AccountIndex) EnsureIndex(ctx context.Context) error {
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := x.es.Indices.Exists([]string{x.index}, x.es.Indices.Exists.WithContext(c))
	if err != nil {
		return oops.Code("ES_INDEX_EXISTS_FAILED").With("index", x.index).Wrap(err)
	}
	_ = res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}
	res, err = x.es.Indices.Create(x.index,
		x.es.Indices.Create.WithContext(c),
		x.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return oops.Code("ES_INDEX_CREATE_FAILED").With("index", x.index).Wrap(err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return oops.Code("ES_INDEX_CREATE_FAILED").With("index", x.index).Errorf("create index: %s", res.Status())
	}
	return nil
}

// Index upserts acc. Password hashes and phone numbers are never indexed.
func (x *AccountIndex) Index(ctx context.Context, acc entity.Account) error {
	doc := toDoc(acc)
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	req := esapi.IndexRequest{Index: x.index, DocumentID: doc.ID, Body: bytes.NewReader(b), Refresh: "false"}
	res, err := req.Do(c, x.es)
	if err != nil {
		return oops.Code("ES_INDEX_FAILED").With("account_id", doc.ID).Wrap(err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return oops.Code("ES_INDEX_FAILED").With("account_id", doc.ID).Errorf("index account: %s", res.Status())
	}
	return nil
}

// SearchArtisans matches query against active artisans' names, bios and categories.
func (x *AccountIndex) SearchArtisans(ctx context.Context, query string, size int) ([]application.ArtisanHit, error) {
	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":  query,
						"fields": []string{"name^2", "bio", "artworkCategories"},
					},
				},
				"filter": []any{
					map[string]any{"term": map[string]any{"kind": entity.KindArtisan.String()}},
					map[string]any{"term": map[string]any{"active": true}},
				},
			},
		},
		"size": size,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := x.es.Search(
		x.es.Search.WithContext(c),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(bytes.NewReader(b)),
	)
	if err != nil {
		return nil, oops.Code("ES_SEARCH_FAILED").With("index", x.index).Wrap(err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, oops.Code("ES_SEARCH_FAILED").With("index", x.index).Errorf("search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source accountDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]application.ArtisanHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, application.ArtisanHit{
			ID:                h.Source.ID,
			Name:              h.Source.Name,
			Bio:               h.Source.Bio,
			ArtworkCategories: h.Source.ArtworkCategories,
			ProfilePictureURL: h.Source.ProfileImageRef,
			Verified:          h.Source.Verified,
		})
	}
	return out, nil
}

func toDoc(acc entity.Account) accountDoc {
	base := acc.Base()
	doc := accountDoc{
		ID:              base.ID,
		Kind:            base.Kind.String(),
		Email:           base.Email,
		Name:            base.Name,
		ProfileImageRef: base.ProfilePictureURL,
		Active:          base.Active,
		JoinedAt:        base.JoinedAt.UTC().Format(time.RFC3339Nano),
	}
	if a, ok := acc.(entity.Artisan); ok {
		doc.Bio = a.Bio
		doc.ArtworkCategories = a.ArtworkCategories
		doc.Verified = a.Verified
	}
	return doc
}
