// Package metar fetches METAR observations from an aviation weather API.
package metar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultBaseURL is the aviationweather.gov API host.
	DefaultBaseURL = "https://aviationweather.gov"
	// DefaultEndpoint is the METAR data endpoint under DefaultBaseURL.
	DefaultEndpoint = "/api/data/metar"
	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 10 * time.Second
)

// Observation is a single station's latest METAR report. Absent fields are
// left at their zero value, or nil for the optional numeric fields.
type Observation struct {
	ICAO           string   `json:"icaoId"`
	Name           string   `json:"name"`
	MetarType      string   `json:"metarType"`
	FlightCategory string   `json:"fltCat"`
	Latitude       float64  `json:"lat"`
	Longitude      float64  `json:"lon"`
	WindGust       *float64 `json:"wgst"`
	Raw            string   `json:"rawOb"`
	Snow           *float64 `json:"snow"`
}

// Lightning reports whether the raw observation mentions lightning.
func (o Observation) Lightning() bool {
	return strings.Contains(strings.ToUpper(o.Raw), "LTG")
}

// Snowing reports whether a non-zero snow depth was reported.
func (o Observation) Snowing() bool {
	return o.Snow != nil && *o.Snow != 0
}

// Gusting reports whether a wind gust at or above threshold knots was
// reported. A zero threshold matches any reported gust.
func (o Observation) Gusting(threshold float64) bool {
	if o.WindGust == nil {
		return false
	}
	if threshold <= 0 {
		return *o.WindGust > 0
	}
	return *o.WindGust >= threshold
}

// Fetcher fetches observations for a set of station ids.
type Fetcher interface {
	Fetch(ctx context.Context, ids []string) ([]Observation, error)
}

// Client fetches observations over HTTP.
type Client struct {
	baseURL  string
	endpoint string
	http     *http.Client
}

var _ Fetcher = (*Client)(nil)

// NewClient creates a client for baseURL and endpoint. Empty values fall back
// to the defaults, and a non-positive timeout to DefaultTimeout.
func NewClient(baseURL, endpoint string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// URL returns the request URL for the given station ids.
func (c *Client) URL(ids []string) string {
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = url.QueryEscape(id)
	}
	return c.baseURL + c.endpoint + "?ids=" + strings.Join(escaped, ",") + "&format=json"
}

// Fetch returns the latest observation of each requested station that the
// API knows about, in response order. On any failure it returns an empty
// slice along with the error, so callers may ignore the error and treat the
// cycle as having no data.
func (c *Client) Fetch(ctx context.Context, ids []string) ([]Observation, error) {
	if len(ids) == 0 {
		return []Observation{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(ids), nil)
	if err != nil {
		return []Observation{}, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return []Observation{}, errors.Wrap(err, "failed to fetch METAR data")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return []Observation{}, errors.Errorf("unexpected status %s", resp.Status)
	}

	// The API answers 204 No Content when none of the stations are known.
	if resp.StatusCode == http.StatusNoContent {
		return []Observation{}, nil
	}

	var observations []Observation
	if err := json.NewDecoder(resp.Body).Decode(&observations); err != nil {
		return []Observation{}, errors.Wrap(err, "failed to decode METAR data")
	}
	if observations == nil {
		observations = []Observation{}
	}

	return observations, nil
}

// ByStation indexes observations by ICAO id. Later duplicates win.
func ByStation(observations []Observation) map[string]Observation {
	m := make(map[string]Observation, len(observations))
	for _, o := range observations {
		if o.ICAO == "" {
			continue
		}
		m[strings.ToUpper(o.ICAO)] = o
	}
	return m
}
