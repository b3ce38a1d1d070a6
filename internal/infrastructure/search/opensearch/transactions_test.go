package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadlantech/appraisal-engine/internal/domain/property"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/logging"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
	"github.com/nadlantech/appraisal-engine/pkg/types/common"
)

// roundTripFunc lets tests serve canned OpenSearch responses without a
// cluster; the client sends real HTTP requests through it.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestIndex(t *testing.T, rt roundTripFunc) *TransactionIndex {
	t.Helper()
	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{"http://opensearch.test:9200"},
		Transport: rt,
	})
	require.NoError(t, err)
	client := NewClientWithOpenSearch(osClient, logging.NewNopLogger())
	return NewTransactionIndex(client, "test-", logging.NewNopLogger())
}

func indexedPayload(id, city string) property.FeaturePayload {
	floors := 8
	return property.FeaturePayload{
		Attributes: property.Attributes{
			ID:           id,
			Address:      "Herzl 10",
			City:         city,
			Neighborhood: "Hadar",
			Lat:          32.794,
			Lng:          34.989,
			Type:         property.TypeApartment,
			SizeSqm:      85,
			Floor:        3,
			TotalFloors:  &floors,
			BuildingAge:  12,
			Condition:    0.7,
			HasElevator:  true,
			NoiseLevel:   0.3,
			Renovation:   property.RenovationPartial,
		},
		SaleDate:  common.Timestamp(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)),
		SalePrice: 1_850_000,
	}
}

func TestBuildPoolQuery_AllFilters(t *testing.T) {
	q := buildPoolQuery(PoolQuery{
		City:         "Haifa",
		Type:         property.TypeApartment,
		MinSaleDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CenterLat:    32.794,
		CenterLng:    34.989,
		RadiusMeters: 1500,
	})

	got, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"bool": {
			"must": [
				{"term": {"city": "Haifa"}},
				{"term": {"property_type": "apartment"}}
			],
			"filter": [
				{"range": {"sale_date": {"gte": "2024-01-01T00:00:00Z"}}},
				{"geo_distance": {
					"distance": "1500m",
					"location": {"lat": 32.794, "lon": 34.989}
				}}
			]
		}
	}`, string(got))
}

func TestBuildPoolQuery_Empty(t *testing.T) {
	got, err := json.Marshal(buildPoolQuery(PoolQuery{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"match_all": {}}`, string(got))
}

func TestBuildPoolQuery_GeoRequiresRadius(t *testing.T) {
	// Coordinates without a radius must not emit a geo clause.
	got, err := json.Marshal(buildPoolQuery(PoolQuery{CenterLat: 32.0, CenterLng: 34.0}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"match_all": {}}`, string(got))
}

func TestSearchPool_ParsesHits(t *testing.T) {
	doc := toDoc(indexedPayload("tx-1", "Haifa"))
	source, err := json.Marshal(doc)
	require.NoError(t, err)

	var capturedPath string
	var capturedBody []byte
	idx := newTestIndex(t, func(req *http.Request) (*http.Response, error) {
		capturedPath = req.URL.Path
		capturedBody, _ = io.ReadAll(req.Body)
		return jsonResponse(http.StatusOK,
			`{"hits":{"total":{"value":1},"hits":[{"_source":`+string(source)+`}]}}`), nil
	})

	pool, err := idx.SearchPool(context.Background(), PoolQuery{
		City:         "Haifa",
		RadiusMeters: 2000,
		CenterLat:    32.794,
		CenterLng:    34.989,
		Limit:        10,
	})
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, indexedPayload("tx-1", "Haifa"), pool[0])

	assert.Equal(t, "/test-transactions/_search", capturedPath)
	var dsl map[string]any
	require.NoError(t, json.Unmarshal(capturedBody, &dsl))
	assert.Equal(t, float64(10), dsl["size"])
	assert.Contains(t, string(capturedBody), `"geo_distance"`)
	assert.Contains(t, string(capturedBody), `"2000m"`)
	assert.Contains(t, string(capturedBody), `"sale_date":{"order":"desc"}`)
}

func TestSearchPool_DefaultLimit(t *testing.T) {
	var capturedBody []byte
	idx := newTestIndex(t, func(req *http.Request) (*http.Response, error) {
		capturedBody, _ = io.ReadAll(req.Body)
		return jsonResponse(http.StatusOK, `{"hits":{"total":{"value":0},"hits":[]}}`), nil
	})

	pool, err := idx.SearchPool(context.Background(), PoolQuery{})
	require.NoError(t, err)
	assert.Empty(t, pool)

	var dsl map[string]any
	require.NoError(t, json.Unmarshal(capturedBody, &dsl))
	assert.Equal(t, float64(500), dsl["size"])
}

func TestSearchPool_ErrorStatus(t *testing.T) {
	idx := newTestIndex(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError,
			`{"error":{"reason":"shard failure"}}`), nil
	})

	_, err := idx.SearchPool(context.Background(), PoolQuery{City: "Haifa"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeExternalService, errors.GetCode(err))
}

func TestIndex_WritesDocumentByID(t *testing.T) {
	var capturedPath string
	var capturedBody []byte
	idx := newTestIndex(t, func(req *http.Request) (*http.Response, error) {
		capturedPath = req.URL.Path
		capturedBody, _ = io.ReadAll(req.Body)
		return jsonResponse(http.StatusCreated, `{"result":"created"}`), nil
	})

	p := indexedPayload("tx-9", "Haifa")
	require.NoError(t, idx.Index(context.Background(), p))
	assert.Equal(t, "/test-transactions/_doc/tx-9", capturedPath)

	var doc transactionDoc
	require.NoError(t, json.Unmarshal(capturedBody, &doc))
	assert.Equal(t, p, fromDoc(doc))
}

func TestEnsureIndex_SkipsExisting(t *testing.T) {
	var calls []string
	idx := newTestIndex(t, func(req *http.Request) (*http.Response, error) {
		calls = append(calls, req.Method+" "+req.URL.Path)
		return jsonResponse(http.StatusOK, `{}`), nil
	})

	require.NoError(t, idx.EnsureIndex(context.Background()))
	require.Len(t, calls, 1)
	assert.Equal(t, "HEAD /test-transactions", calls[0])
}

func TestEnsureIndex_CreatesMissing(t *testing.T) {
	var calls []string
	idx := newTestIndex(t, func(req *http.Request) (*http.Response, error) {
		calls = append(calls, req.Method+" "+req.URL.Path)
		if req.Method == http.MethodHead {
			return jsonResponse(http.StatusNotFound, `{}`), nil
		}
		body, _ := io.ReadAll(req.Body)
		assert.Contains(t, string(body), `"geo_point"`)
		return jsonResponse(http.StatusOK, `{"acknowledged":true}`), nil
	})

	require.NoError(t, idx.EnsureIndex(context.Background()))
	require.Len(t, calls, 2)
	assert.Equal(t, "PUT /test-transactions", calls[1])
}
