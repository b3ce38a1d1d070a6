package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/nadlantech/appraisal-engine/internal/domain/property"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/logging"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
	"github.com/nadlantech/appraisal-engine/pkg/types/common"
)

const transactionIndexSuffix = "transactions"

// transactionMapping is the index schema. The location field is a geo_point
// so pools can be narrowed by radius before similarity scoring.
var transactionMapping = map[string]any{
	"settings": map[string]any{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":                 map[string]any{"type": "keyword"},
			"address":            map[string]any{"type": "text"},
			"city":               map[string]any{"type": "keyword"},
			"neighborhood":       map[string]any{"type": "keyword"},
			"location":           map[string]any{"type": "geo_point"},
			"property_type":      map[string]any{"type": "keyword"},
			"size_sqm":           map[string]any{"type": "float"},
			"floor":              map[string]any{"type": "integer"},
			"total_floors":       map[string]any{"type": "integer"},
			"building_age":       map[string]any{"type": "integer"},
			"condition":          map[string]any{"type": "float"},
			"has_elevator":       map[string]any{"type": "boolean"},
			"has_parking":        map[string]any{"type": "boolean"},
			"has_balcony":        map[string]any{"type": "boolean"},
			"has_view":           map[string]any{"type": "boolean"},
			"noise_level":        map[string]any{"type": "float"},
			"renovation_state":   map[string]any{"type": "keyword"},
			"planning_potential": map[string]any{"type": "float"},
			"sale_date":          map[string]any{"type": "date"},
			"sale_price":         map[string]any{"type": "double"},
		},
	},
}

// transactionDoc is the indexed document shape.
type transactionDoc struct {
	ID                string    `json:"id"`
	Address           string    `json:"address"`
	City              string    `json:"city"`
	Neighborhood      string    `json:"neighborhood,omitempty"`
	Location          geoPoint  `json:"location"`
	PropertyType      string    `json:"property_type"`
	SizeSqm           float64   `json:"size_sqm"`
	Floor             int       `json:"floor"`
	TotalFloors       *int      `json:"total_floors,omitempty"`
	BuildingAge       int       `json:"building_age"`
	Condition         float64   `json:"condition"`
	HasElevator       bool      `json:"has_elevator"`
	HasParking        bool      `json:"has_parking"`
	HasBalcony        bool      `json:"has_balcony"`
	HasView           bool      `json:"has_view"`
	NoiseLevel        float64   `json:"noise_level"`
	RenovationState   string    `json:"renovation_state"`
	PlanningPotential float64   `json:"planning_potential"`
	SaleDate          time.Time `json:"sale_date"`
	SalePrice         float64   `json:"sale_price"`
}

type geoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PoolQuery narrows a transaction search. Zero values mean "no filter".
type PoolQuery struct {
	City         string
	Type         property.Type
	MinSaleDate  time.Time
	CenterLat    float64
	CenterLng    float64
	RadiusMeters float64
	Limit        int
}

// TransactionIndex indexes and searches sale transactions.
type TransactionIndex struct {
	client    *Client
	logger    logging.Logger
	indexName string
}

// NewTransactionIndex builds the index accessor. indexPrefix comes from
// config; the final name is "<prefix><transactions>".
func NewTransactionIndex(client *Client, indexPrefix string, log logging.Logger) *TransactionIndex {
	return &TransactionIndex{
		client:    client,
		logger:    log,
		indexName: indexPrefix + transactionIndexSuffix,
	}
}

// EnsureIndex creates the transaction index if it does not exist yet.
func (t *TransactionIndex) EnsureIndex(ctx context.Context) error {
	existsReq := opensearchapi.IndicesExistsRequest{Index: []string{t.indexName}}
	resp, err := existsReq.Do(ctx, t.client.Raw())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to check index existence")
	}
	resp.Body.Close()
	if resp.StatusCode == 200 {
		return nil
	}

	body, err := json.Marshal(transactionMapping)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal index mapping")
	}
	createReq := opensearchapi.IndicesCreateRequest{
		Index: t.indexName,
		Body:  bytes.NewReader(body),
	}
	createResp, err := createReq.Do(ctx, t.client.Raw())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create index")
	}
	defer createResp.Body.Close()
	if createResp.IsError() {
		return t.errorResponse(createResp, "create index failed")
	}

	t.logger.Info("transaction index created", logging.String("index", t.indexName))
	return nil
}

// Index writes one transaction document, keyed by its transaction ID so
// re-ingesting the same observation overwrites rather than duplicates.
func (t *TransactionIndex) Index(ctx context.Context, p property.FeaturePayload) error {
	body, err := json.Marshal(toDoc(p))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal transaction document")
	}

	req := opensearchapi.IndexRequest{
		Index:      t.indexName,
		DocumentID: p.ID,
		Body:       bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, t.client.Raw())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to index transaction")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return t.errorResponse(resp, "index transaction failed")
	}
	return nil
}

// SearchPool returns transactions matching the query, newest sales first.
func (t *TransactionIndex) SearchPool(ctx context.Context, q PoolQuery) ([]property.FeaturePayload, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 500
	}

	dsl := map[string]any{
		"size":  limit,
		"query": buildPoolQuery(q),
		"sort": []any{
			map[string]any{"sale_date": map[string]any{"order": "desc"}},
		},
	}
	body, err := json.Marshal(dsl)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal pool query")
	}

	req := opensearchapi.SearchRequest{
		Index: []string{t.indexName},
		Body:  bytes.NewReader(body),
	}
	start := time.Now()
	resp, err := req.Do(ctx, t.client.Raw())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "pool search request failed")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return nil, t.errorResponse(resp, "pool search failed")
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source transactionDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode pool search response")
	}

	out := make([]property.FeaturePayload, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		out = append(out, fromDoc(hit.Source))
	}

	t.logger.Debug("pool search executed",
		logging.String("index", t.indexName),
		logging.Int64("total", parsed.Hits.Total.Value),
		logging.Int("returned", len(out)),
		logging.Int64("took_ms", time.Since(start).Milliseconds()))
	return out, nil
}

func buildPoolQuery(q PoolQuery) map[string]any {
	var must []any
	var filter []any

	if q.City != "" {
		must = append(must, map[string]any{"term": map[string]any{"city": q.City}})
	}
	if q.Type != "" {
		must = append(must, map[string]any{"term": map[string]any{"property_type": string(q.Type)}})
	}
	if !q.MinSaleDate.IsZero() {
		filter = append(filter, map[string]any{
			"range": map[string]any{
				"sale_date": map[string]any{"gte": q.MinSaleDate.Format(time.RFC3339)},
			},
		})
	}
	if q.RadiusMeters > 0 {
		filter = append(filter, map[string]any{
			"geo_distance": map[string]any{
				"distance": formatMeters(q.RadiusMeters),
				"location": geoPoint{Lat: q.CenterLat, Lon: q.CenterLng},
			},
		})
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	if len(boolQuery) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}
	return map[string]any{"bool": boolQuery}
}

func formatMeters(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64) + "m"
}

func (t *TransactionIndex) errorResponse(resp *opensearchapi.Response, msg string) error {
	raw, _ := io.ReadAll(resp.Body)
	t.logger.Error(msg,
		logging.String("index", t.indexName),
		logging.Int("status", resp.StatusCode),
		logging.String("body", string(raw)))
	return errors.New(errors.ErrCodeExternalService, msg)
}

func toDoc(p property.FeaturePayload) transactionDoc {
	return transactionDoc{
		ID:                p.ID,
		Address:           p.Address,
		City:              p.City,
		Neighborhood:      p.Neighborhood,
		Location:          geoPoint{Lat: p.Lat, Lon: p.Lng},
		PropertyType:      string(p.Type),
		SizeSqm:           p.SizeSqm,
		Floor:             p.Floor,
		TotalFloors:       p.TotalFloors,
		BuildingAge:       p.BuildingAge,
		Condition:         p.Condition,
		HasElevator:       p.HasElevator,
		HasParking:        p.HasParking,
		HasBalcony:        p.HasBalcony,
		HasView:           p.HasView,
		NoiseLevel:        p.NoiseLevel,
		RenovationState:   string(p.Renovation),
		PlanningPotential: p.PlanningPotential,
		SaleDate:          time.Time(p.SaleDate),
		SalePrice:         p.SalePrice,
	}
}

func fromDoc(d transactionDoc) property.FeaturePayload {
	return property.FeaturePayload{
		Attributes: property.Attributes{
			ID:                d.ID,
			Address:           d.Address,
			City:              d.City,
			Neighborhood:      d.Neighborhood,
			Lat:               d.Location.Lat,
			Lng:               d.Location.Lon,
			Type:              property.Type(d.PropertyType),
			SizeSqm:           d.SizeSqm,
			Floor:             d.Floor,
			TotalFloors:       d.TotalFloors,
			BuildingAge:       d.BuildingAge,
			Condition:         d.Condition,
			HasElevator:       d.HasElevator,
			HasParking:        d.HasParking,
			HasBalcony:        d.HasBalcony,
			HasView:           d.HasView,
			NoiseLevel:        d.NoiseLevel,
			Renovation:        property.RenovationState(d.RenovationState),
			PlanningPotential: d.PlanningPotential,
		},
		SaleDate:  common.Timestamp(d.SaleDate),
		SalePrice: d.SalePrice,
	}
}
