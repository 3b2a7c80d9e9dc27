package xm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/energia/backend/internal/contracts"
	"github.com/wonny/energia/backend/pkg/httputil"
	"github.com/wonny/energia/backend/pkg/logger"
)

const apiDateLayout = "2006-01-02"

// Client talks to the XM public data API
// ⭐ SSOT: XM HTTP calls are made here only
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new XM client
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.Module("xm"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type apiRequest struct {
	MetricID  string   `json:"MetricId"`
	StartDate string   `json:"StartDate,omitempty"`
	EndDate   string   `json:"EndDate,omitempty"`
	Entity    string   `json:"Entity"`
	Filter    []string `json:"Filter"`
}

type apiEntity struct {
	ID     string                 `json:"Id"`
	Values map[string]interface{} `json:"Values"`
}

type apiResponse struct {
	Items []map[string]json.RawMessage `json:"Items"`
}

// Fetch retrieves one metric/entity window as flattened rows
func (c *Client) Fetch(ctx context.Context, req Request) ([]RawRow, error) {
	endpoint := "/daily"
	if req.Hourly {
		endpoint = "/hourly"
	}

	body := apiRequest{
		MetricID:  req.Metric,
		StartDate: req.From.Format(apiDateLayout),
		EndDate:   req.To.Format(apiDateLayout),
		Entity:    req.Entity,
		Filter:    []string{},
	}
	if req.Resource != "" && req.Resource != contracts.SistemaSentinel {
		body.Filter = []string{req.Resource}
	}

	var resp apiResponse
	if err := c.httpClient.DecodeJSON(ctx, c.baseURL+endpoint, body, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", req.Metric, req.Entity, err)
	}

	rows, err := flatten(resp)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", req.Metric, req.Entity, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyResponse
	}

	c.logger.WithFields(map[string]interface{}{
		"metrica": req.Metric,
		"entidad": req.Entity,
		"recurso": req.Resource,
		"rows":    len(rows),
	}).Debug("XM fetch completed")

	return rows, nil
}

// Listing retrieves a reference list such as ListadoRecursos
func (c *Client) Listing(ctx context.Context, name string) ([]contracts.Resource, error) {
	body := apiRequest{
		MetricID: name,
		Entity:   "Sistema",
		Filter:   []string{},
	}

	var resp apiResponse
	if err := c.httpClient.DecodeJSON(ctx, c.baseURL+"/lists", body, &resp); err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", name, err)
	}

	rows, err := flatten(resp)
	if err != nil {
		return nil, fmt.Errorf("decode listing %s: %w", name, err)
	}

	now := time.Now()
	resources := make([]contracts.Resource, 0, len(rows))
	for _, row := range rows {
		res, ok := listingResource(name, row)
		if !ok {
			continue
		}
		res.FechaActualizacion = now
		resources = append(resources, res)
	}
	return resources, nil
}

// Ping checks that the API answers a cheap listing call
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Listing(ctx, "ListadoMetricas")
	return err
}

// flatten turns Items[].<X>Entities[] into rows carrying Date, Id and
// Values_<field> columns
func flatten(resp apiResponse) ([]RawRow, error) {
	var rows []RawRow

	for _, item := range resp.Items {
		var date string
		if raw, ok := item["Date"]; ok {
			if err := json.Unmarshal(raw, &date); err != nil {
				return nil, fmt.Errorf("item date: %w", err)
			}
		}

		for key, raw := range item {
			if !strings.HasSuffix(key, "Entities") {
				continue
			}

			var entities []apiEntity
			if err := json.Unmarshal(raw, &entities); err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}

			for _, e := range entities {
				row := RawRow{"Id": e.ID}
				if date != "" {
					row["Date"] = date
				}
				for field, v := range e.Values {
					row["Values_"+field] = v
				}
				rows = append(rows, row)
			}
		}
	}

	return rows, nil
}

func listingResource(listing string, row RawRow) (contracts.Resource, bool) {
	code := firstString(row, "Values_Code", "Values_code", "Id")
	if code == "" {
		return contracts.Resource{}, false
	}

	res := contracts.Resource{
		Catalogo: listing,
		Codigo:   code,
		Nombre:   firstString(row, "Values_Name", "Values_Nombre"),
		Tipo:     strings.ToUpper(firstString(row, "Values_Type", "Values_Tipo", "Values_EnerSource")),
		Region:   firstString(row, "Values_HydroRegion", "Values_Region", "Values_Area"),
	}
	if capacity, ok := toFloat(row["Values_EffectiveCapacity"]); ok {
		res.Capacidad = &capacity
	}
	return res, true
}

func firstString(row RawRow, keys ...string) string {
	for _, k := range keys {
		if s, ok := row[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
