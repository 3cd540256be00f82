package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"delivery-tracker/internal/geo"
)

// ErrNoRoute is returned when the routing engine answers with zero candidate
// routes. Callers treat it as a soft failure.
var ErrNoRoute = errors.New("no route found")

// Route is one candidate route from the routing engine.
type Route struct {
	Geometry       []geo.Point
	DistanceMeters float64
	DurationSec    float64
}

// Client queries an OSRM-compatible routing HTTP API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 8 * time.Second},
	}
}

type osrmResponse struct {
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route fetches the best driving route through the given waypoints. OSRM
// takes lon,lat pairs and returns GeoJSON geometry.
func (c *Client) Route(ctx context.Context, waypoints ...geo.Point) (*Route, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("need at least 2 waypoints, got %d", len(waypoints))
	}
	coords := make([]string, len(waypoints))
	for i, p := range waypoints {
		coords[i] = fmt.Sprintf("%.6f,%.6f", p.Lng, p.Lat)
	}
	url := fmt.Sprintf("%s/route/v1/driving/%s?overview=full&geometries=geojson",
		c.baseURL, strings.Join(coords, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing API returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode routing response: %w", err)
	}
	if len(parsed.Routes) == 0 {
		return nil, ErrNoRoute
	}

	best := parsed.Routes[0]
	out := &Route{
		DistanceMeters: best.Distance,
		DurationSec:    best.Duration,
		Geometry:       make([]geo.Point, 0, len(best.Geometry.Coordinates)),
	}
	for _, pair := range best.Geometry.Coordinates {
		if len(pair) < 2 {
			continue
		}
		out.Geometry = append(out.Geometry, geo.Point{Lat: pair[1], Lng: pair[0]})
	}
	return out, nil
}
