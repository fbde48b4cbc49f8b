package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultTierBaseURL = "https://platform.tier-services.io"
	tierRequestTimeout = 10 * time.Second

	// tierMaxResponseBytes bounds how much of a response body is read.
	tierMaxResponseBytes = 1 << 20
)

// VehicleFetcher returns the vehicles around a point, or nil when the
// request or its decoding failed.
type VehicleFetcher interface {
	Fetch(ctx context.Context, lat, lng, radius float64) *VehicleResponse
}

// VehicleResponse is the decoded body of GET /vehicle. Data is nil when the
// body had no "data" field.
type VehicleResponse struct {
	Data *[]TierVehicle `json:"data"`
}

// TierVehicle is one element of the "data" array. Coordinates are pointers so
// that absent fields can be told apart from zero.
type TierVehicle struct {
	ID           json.RawMessage `json:"id,omitempty"`
	Lat          *float64        `json:"lat"`
	Lng          *float64        `json:"lng"`
	BatteryLevel *float64        `json:"batteryLevel"`
}

func (v TierVehicle) vehicle() (Vehicle, bool) {
	if v.Lat == nil || v.Lng == nil {
		return Vehicle{}, false
	}
	out := Vehicle{ID: rawID(v.ID), Lat: *v.Lat, Lon: *v.Lng}
	if v.BatteryLevel != nil {
		out.BatteryLevel = *v.BatteryLevel
	}
	return out, true
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// TierClient queries the Tier vehicle API with a static API key.
type TierClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        Logger
}

func NewTierClient(baseURL, apiKey string, log Logger) *TierClient {
	if baseURL == "" {
		baseURL = DefaultTierBaseURL
	}
	if log == nil {
		log = NewNopLogger()
	}
	return &TierClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: tierRequestTimeout},
		log:        log,
	}
}

func (c *TierClient) resource(lat, lng, radius float64) string {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(radius, 'f', -1, 64))
	return c.baseURL + "/vehicle?" + q.Encode()
}

// Fetch never returns an error: failures are logged and reported as nil.
func (c *TierClient) Fetch(ctx context.Context, lat, lng, radius float64) *VehicleResponse {
	resource := c.resource(lat, lng, radius)
	start := time.Now()
	defer func() { fetchDuration.Observe(time.Since(start).Seconds()) }()

	body, err := c.get(ctx, resource)
	if err != nil {
		c.log.Error(err, "Error fetching data", "resource", resource)
		return nil
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, tierMaxResponseBytes+1))
	if err != nil {
		fetchTotal.WithLabelValues(fetchTransportError).Inc()
		c.log.Error(err, "Error fetching data", "resource", resource)
		return nil
	}
	if len(data) > tierMaxResponseBytes {
		err = fmt.Errorf("response body exceeds %d bytes", tierMaxResponseBytes)
	} else {
		var out VehicleResponse
		if err = json.Unmarshal(data, &out); err == nil {
			fetchTotal.WithLabelValues(fetchSuccess).Inc()
			return &out
		}
	}
	fetchTotal.WithLabelValues(fetchParseError).Inc()
	c.log.Error(err, "Error parsing data", "resource", resource)
	return nil
}

func (c *TierClient) get(ctx context.Context, resource string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resource, nil)
	if err != nil {
		fetchTotal.WithLabelValues(fetchTransportError).Inc()
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fetchTotal.WithLabelValues(fetchTransportError).Inc()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		fetchTotal.WithLabelValues(fetchHTTPStatus).Inc()
		return nil, fmt.Errorf("tier http status: %d", resp.StatusCode)
	}
	return resp.Body, nil
}
