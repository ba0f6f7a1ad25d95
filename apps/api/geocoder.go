package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	geocodeCountryQualifier = "South Korea"
	geocodeCountryCode      = "kr"
)

// GeocodeQuery is a free-text place name plus the language the result should be returned in.
type GeocodeQuery struct {
	Name     string
	Language string
}

// GeocodeResult represents the first match found for a place name
type GeocodeResult struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
}

// Geocoder abstraction for place name lookup. A nil result with a nil error means not found.
type Geocoder interface {
	Geocode(ctx context.Context, query GeocodeQuery) (*GeocodeResult, error)
}

// Pacer spaces out upstream lookups.
type Pacer interface {
	Wait(ctx context.Context) error
}

// RatePacer is a token bucket allowing one lookup per interval.
type RatePacer struct {
	limiter *rate.Limiter
}

func NewRatePacer(interval time.Duration) *RatePacer {
	if interval <= 0 {
		return &RatePacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RatePacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *RatePacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

type noopPacer struct{}

func (noopPacer) Wait(ctx context.Context) error { return ctx.Err() }

func qualifiedPlaceName(name string) string {
	return fmt.Sprintf("%s, %s", name, geocodeCountryQualifier)
}

func pace(ctx context.Context, p Pacer) error {
	if p == nil {
		return nil
	}
	if err := p.Wait(ctx); err != nil {
		return fmt.Errorf("geocoder pacing: %w", err)
	}
	return nil
}

// NominatimGeocoder implements Geocoder using OSM Nominatim search.
// CAUTION: Requires User-Agent and has strict rate limits (1 req/sec)
type NominatimGeocoder struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
	Pacer     Pacer
	Logger    *slog.Logger
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, query GeocodeQuery) (*GeocodeResult, error) {
	if err := pace(ctx, g.Pacer); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", qualifiedPlaceName(query.Name))
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	params.Set("countrycodes", geocodeCountryCode)
	if query.Language != "" {
		params.Set("accept-language", query.Language)
	}
	u := g.BaseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.UserAgent)

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim error: %d", resp.StatusCode)
	}

	// Nominatim returns coordinates as strings.
	var data []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}

	if g.Logger != nil {
		g.Logger.Debug("nominatim lookup", "query", query.Name, "lang", query.Language, "matches", len(data))
	}

	if len(data) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(data[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim latitude %q: %w", data[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(data[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim longitude %q: %w", data[0].Lon, err)
	}

	return &GeocodeResult{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: data[0].DisplayName,
	}, nil
}

// MapboxGeocoder implements Geocoder using Mapbox API v6 forward search
type MapboxGeocoder struct {
	BaseURL     string
	AccessToken string
	Client      *http.Client
	Pacer       Pacer
}

func (g *MapboxGeocoder) Geocode(ctx context.Context, query GeocodeQuery) (*GeocodeResult, error) {
	if g.AccessToken == "" {
		return nil, errors.New("mapbox access token missing")
	}
	if err := pace(ctx, g.Pacer); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", qualifiedPlaceName(query.Name))
	params.Set("country", geocodeCountryCode)
	params.Set("limit", "1")
	params.Set("access_token", g.AccessToken)
	if query.Language != "" {
		params.Set("language", query.Language)
	}
	u := g.BaseURL + "/search/geocode/v6/forward?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mapbox error (%d): %s", resp.StatusCode, string(body))
	}

	var data struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties struct {
				FullAddress string `json:"full_address"`
				Name        string `json:"name"`
			} `json:"properties"`
		} `json:"features"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}

	if len(data.Features) == 0 {
		return nil, nil // Not found
	}

	feat := data.Features[0]
	if len(feat.Geometry.Coordinates) < 2 {
		return nil, errors.New("mapbox feature without coordinates")
	}
	displayName := feat.Properties.FullAddress
	if displayName == "" {
		displayName = feat.Properties.Name
	}
	// GeoJSON order is lng, lat
	return &GeocodeResult{
		Latitude:    feat.Geometry.Coordinates[1],
		Longitude:   feat.Geometry.Coordinates[0],
		DisplayName: displayName,
	}, nil
}

// FallbackGeocoder prioritizes first, falls back to second
type FallbackGeocoder struct {
	Primary   Geocoder
	Secondary Geocoder
}

func (g *FallbackGeocoder) Geocode(ctx context.Context, query GeocodeQuery) (*GeocodeResult, error) {
	res, err := g.Primary.Geocode(ctx, query)
	if err == nil && res != nil {
		return res, nil
	}
	fallbackRes, fallbackErr := g.Secondary.Geocode(ctx, query)
	if fallbackRes != nil {
		return fallbackRes, nil
	}
	// A miss on the secondary does not hide a primary outage.
	if err != nil || fallbackErr != nil {
		return nil, errors.Join(err, fallbackErr)
	}
	return nil, nil
}
