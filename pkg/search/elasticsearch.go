package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/pkg/errors"

	"github.com/inspirehep/inspire-matcher/pkg/models"
	"github.com/inspirehep/inspire-matcher/pkg/tracing"
)

// ElasticsearchConfig configures the Elasticsearch client
type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	Transport http.RoundTripper
}

// Elasticsearch is a Searcher backed by an Elasticsearch cluster
type Elasticsearch struct {
	client *elasticsearch.Client
	logger ectologger.Logger
}

type searchResponse struct {
	Hits struct {
		Hits []models.Hit `json:"hits"`
	} `json:"hits"`
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// NewElasticsearch creates an Elasticsearch searcher
func NewElasticsearch(logger ectologger.Logger, config ElasticsearchConfig) (*Elasticsearch, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
		Transport: config.Transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create elasticsearch client")
	}

	return &Elasticsearch{
		client: client,
		logger: logger,
	}, nil
}

// Search runs req.Body against req.Index. The document type is ignored, indices carry one type.
func (e *Elasticsearch) Search(ctx context.Context, req Request) ([]models.Hit, error) {
	ctx, span := tracing.StartSpan(ctx, "search.Elasticsearch.Search")
	defer span.End()

	body, err := json.Marshal(req.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode query body")
	}

	opts := []func(*esapi.SearchRequest){
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(req.Index),
		e.client.Search.WithBody(bytes.NewReader(body)),
	}
	if req.Size > 0 {
		opts = append(opts, e.client.Search.WithSize(req.Size))
	}
	if len(req.Source) > 0 {
		opts = append(opts, e.client.Search.WithSource(req.Source...))
	}

	res, err := e.client.Search(opts...)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, errors.Wrap(err, "search request failed")
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		var esErr errorResponse
		_ = json.Unmarshal(raw, &esErr)

		e.logger.WithContext(ctx).WithFields(map[string]any{
			"index":  req.Index,
			"status": res.StatusCode,
			"type":   esErr.Error.Type,
			"reason": esErr.Error.Reason,
		}).Error("Search backend returned an error")

		err := httperror.NewHTTPErrorf(http.StatusBadGateway, "search backend returned %d: %s", res.StatusCode, esErr.Error.Reason).
			AddMetaValue("index", req.Index).
			AddMetaValue("type", esErr.Error.Type)
		tracing.RecordError(span, err)
		return nil, err
	}

	var decoded searchResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "failed to decode search response")
	}

	return decoded.Hits.Hits, nil
}

// Ping checks that the cluster answers
func (e *Elasticsearch) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "ping failed")
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping failed: %s", res.Status())
	}
	return nil
}
