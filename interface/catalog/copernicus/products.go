package copernicus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/airbusgeo/s2-indices/common"
	"github.com/airbusgeo/s2-indices/interface/catalog"
	"github.com/airbusgeo/s2-indices/service"
	"github.com/airbusgeo/s2-indices/service/log"
)

const (
	CopernicusPageLimit = 1000
	CopernicusODataURL  = "https://catalogue.dataspace.copernicus.eu/odata/v1"
	CollectionName      = "SENTINEL-2"

	// dates are truncated to the day
	dateFormat = "2006-01-02"
)

// Provider implements catalog.ProductsProvider for the Copernicus Data Space OData catalog
type Provider struct {
	BaseURL string // Defaults to CopernicusODataURL
	Limit   int    // Page size, capped to CopernicusPageLimit
	Retries int    // Number of retries on temporary errors
	Client  *http.Client
}

// BuildFilter returns the OData filter of the query
func BuildFilter(q catalog.Query) (string, error) {
	if q.AOI == "" {
		return "", fmt.Errorf("BuildFilter: missing area of interest")
	}
	parameters := []string{
		fmt.Sprintf("Collection/Name eq '%s'", CollectionName),
		fmt.Sprintf("OData.CSC.Intersects(area=geography'SRID=4326;%s')", q.AOI),
		fmt.Sprintf("ContentDate/Start ge %sT00:00:00.000Z", q.Start.UTC().Format(dateFormat)),
		fmt.Sprintf("ContentDate/Start lt %sT00:00:00.000Z", q.End.UTC().Format(dateFormat)),
	}
	if q.CloudCover != nil {
		cc := *q.CloudCover
		if !(cc >= 0 && cc <= 100) {
			return "", fmt.Errorf("BuildFilter: cloud cover must be in [0, 100], got %v", cc)
		}
		parameters = append(parameters, fmt.Sprintf("Attributes/OData.CSC.DoubleAttribute/any(att:att/Name eq 'cloudCover' and att/OData.CSC.DoubleAttribute/Value le %s)",
			strconv.FormatFloat(cc, 'f', -1, 64)))
	}
	return strings.Join(parameters, " and "), nil
}

// SearchProducts implements catalog.ProductsProvider
func (p *Provider) SearchProducts(ctx context.Context, q catalog.Query) ([]common.Product, error) {
	filter, err := BuildFilter(q)
	if err != nil {
		return nil, fmt.Errorf("Copernicus.searchProducts.%w", err)
	}
	hits, err := p.queryCopernicus(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("Copernicus.searchProducts.%w", err)
	}

	products := make([]common.Product, 0, len(hits))
	for _, hit := range hits {
		product := common.Product{
			ID:         hit.Uuid,
			Name:       hit.Identifier,
			Attributes: hit.AttributesMap,
		}
		if hit.ContentDate.BeginPosition != "" {
			if product.ContentDate, err = dateparse.ParseAny(hit.ContentDate.BeginPosition); err != nil {
				log.Logger(ctx).Sugar().Warnf("[Copernicus] %s: unable to parse date %s: %v", hit.Identifier, hit.ContentDate.BeginPosition, err)
			}
		}
		if product.ContentDate.IsZero() {
			// Sensing date from the product name
			if date, err := common.GetDateFromProductId(hit.Identifier); err == nil {
				product.ContentDate = date
			}
		}
		if len(hit.Footprint) > 0 && string(hit.Footprint) != "null" {
			if product.FootprintWKT, err = service.GeoJSONToWKT(hit.Footprint); err != nil {
				log.Logger(ctx).Sugar().Warnf("[Copernicus] %s: unable to decode footprint: %v", hit.Identifier, err)
			}
		}
		products = append(products, product)
	}
	log.Logger(ctx).Sugar().Debugf("[Copernicus] %d products found", len(products))
	return products, nil
}

type Hits struct {
	Uuid        string          `json:"Id"`
	Identifier  string          `json:"Name"`
	Footprint   json.RawMessage `json:"GeoFootprint"`
	ContentDate struct {
		BeginPosition string `json:"Start"`
	} `json:"ContentDate"`
	Attributes []struct {
		Name      string      `json:"Name"`
		Value     interface{} `json:"Value"`
		ValueType string      `json:"ValueType"`
	} `json:"Attributes"`
	AttributesMap map[string]string
}

func (p *Provider) queryCopernicus(ctx context.Context, filter string) ([]Hits, error) {
	baseurl := p.BaseURL
	if baseurl == "" {
		baseurl = CopernicusODataURL
	}
	limit := p.Limit
	if limit <= 0 || limit > CopernicusPageLimit {
		limit = CopernicusPageLimit
	}

	url := strings.TrimSuffix(baseurl, "/") + "/Products?$filter=" + neturl.QueryEscape(filter) +
		fmt.Sprintf("&$count=True&$top=%d&$expand=Attributes", limit)
	log.Logger(ctx).Sugar().Debugf("[Copernicus] Search %s", filter)

	jsonResults, err := service.GetBodyRetry(ctx, p.Client, url, p.Retries)
	if err != nil {
		return nil, fmt.Errorf("queryCopernicus: %w: %v", service.ErrCatalogUnavailable, err)
	}

	results := struct {
		Status int    `json:"status"`
		Count  int    `json:"@odata.count"`
		Hits   []Hits `json:"value"`
	}{}
	if err := json.Unmarshal(jsonResults, &results); err != nil {
		return nil, fmt.Errorf("queryCopernicus.Unmarshal: %w: %v", service.ErrCatalogUnavailable, err)
	}
	if results.Status != 0 && results.Status != 200 {
		return nil, fmt.Errorf("queryCopernicus: %w: http status: %d (response: %s)", service.ErrCatalogUnavailable, results.Status, jsonResults)
	}
	if results.Count > len(results.Hits) {
		log.Logger(ctx).Sugar().Warnf("[Copernicus] %d products match the query, only the first %d are returned", results.Count, len(results.Hits))
	}

	for i, hit := range results.Hits {
		results.Hits[i].AttributesMap = map[string]string{}
		for _, elem := range hit.Attributes {
			results.Hits[i].AttributesMap[elem.Name] = fmt.Sprintf("%v", elem.Value)
		}
		results.Hits[i].Attributes = nil
	}
	return results.Hits, nil
}
