package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPacer struct {
	calls atomic.Int32
	err   error
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.calls.Add(1)
	return p.err
}

func TestNominatimGeocoderBuildsCountryQualifiedQuery(t *testing.T) {
	var gotPath, gotQuery, gotCountry, gotLang, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("q")
		gotCountry = r.URL.Query().Get("countrycodes")
		gotLang = r.URL.Query().Get("accept-language")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"37.5666791","lon":"126.9782914","display_name":"Seoul, South Korea"},{"lat":"1","lon":"2","display_name":"ignored"}]`))
	}))
	defer server.Close()

	pacer := &countingPacer{}
	geocoder := &NominatimGeocoder{BaseURL: server.URL, UserAgent: "test-agent", Client: server.Client(), Pacer: pacer}

	result, err := geocoder.Geocode(context.Background(), GeocodeQuery{Name: "Seoul", Language: "en"})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "/search", gotPath)
	assert.Equal(t, "Seoul, South Korea", gotQuery)
	assert.Equal(t, "kr", gotCountry)
	assert.Equal(t, "en", gotLang)
	assert.Equal(t, "test-agent", gotAgent)
	assert.InDelta(t, 37.5666791, result.Latitude, 1e-9)
	assert.InDelta(t, 126.9782914, result.Longitude, 1e-9)
	assert.Equal(t, "Seoul, South Korea", result.DisplayName)
	assert.Equal(t, int32(1), pacer.calls.Load())
}

func TestNominatimGeocoderNoMatchReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	pacer := &countingPacer{}
	geocoder := &NominatimGeocoder{BaseURL: server.URL, Client: server.Client(), Pacer: pacer}

	result, err := geocoder.Geocode(context.Background(), GeocodeQuery{Name: "Atlantis", Language: "ko"})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, int32(1), pacer.calls.Load(), "pacer runs even when nothing matches")
}

func TestNominatimGeocoderUpstreamErrorIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	geocoder := &NominatimGeocoder{BaseURL: server.URL, Client: server.Client(), Pacer: noopPacer{}}

	_, err := geocoder.Geocode(context.Background(), GeocodeQuery{Name: "Seoul"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNominatimGeocoderPacerErrorSkipsLookup(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	geocoder := &NominatimGeocoder{BaseURL: server.URL, Client: server.Client(), Pacer: &countingPacer{err: context.Canceled}}

	_, err := geocoder.Geocode(context.Background(), GeocodeQuery{Name: "Seoul"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, hits)
}

func TestMapboxGeocoderReadsGeoJSONOrder(t *testing.T) {
	var gotCountry, gotLang, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/geocode/v6/forward", r.URL.Path)
		gotCountry = r.URL.Query().Get("country")
		gotLang = r.URL.Query().Get("language")
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[129.0756,35.1796]},"properties":{"full_address":"Busan, South Korea","name":"Busan"}}]}`))
	}))
	defer server.Close()

	geocoder := &MapboxGeocoder{BaseURL: server.URL, AccessToken: "token", Client: server.Client(), Pacer: noopPacer{}}

	result, err := geocoder.Geocode(context.Background(), GeocodeQuery{Name: "Busan", Language: "ko"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "kr", gotCountry)
	assert.Equal(t, "ko", gotLang)
	assert.Equal(t, "Busan, South Korea", gotQuery)
	assert.Equal(t, 35.1796, result.Latitude)
	assert.Equal(t, 129.0756, result.Longitude)
	assert.Equal(t, "Busan, South Korea", result.DisplayName)
}

func TestMapboxGeocoderRequiresToken(t *testing.T) {
	geocoder := &MapboxGeocoder{Client: http.DefaultClient}

	_, err := geocoder.Geocode(context.Background(), GeocodeQuery{Name: "Busan"})
	require.Error(t, err)
}

func TestFallbackGeocoderUsesSecondaryWhenPrimaryMisses(t *testing.T) {
	primary := &fakeGeocoder{results: map[string]*GeocodeResult{}}
	secondary := newFakeGeocoder()
	geocoder := &FallbackGeocoder{Primary: primary, Secondary: secondary}

	result, err := geocoder.Geocode(context.Background(), GeocodeQuery{Name: "Daegu", Language: "en"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 35.8714, result.Latitude)
	assert.Len(t, primary.lookups(), 1)
	assert.Len(t, secondary.lookups(), 1)
}

func TestFallbackGeocoderKeepsPrimaryErrorWhenSecondaryMisses(t *testing.T) {
	outage := errors.New("mapbox error (503): unavailable")
	primary := &fakeGeocoder{err: outage}
	secondary := &fakeGeocoder{results: map[string]*GeocodeResult{}}
	geocoder := &FallbackGeocoder{Primary: primary, Secondary: secondary}

	result, err := geocoder.Geocode(context.Background(), GeocodeQuery{Name: "Atlantis"})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, outage)
	assert.Len(t, secondary.lookups(), 1)
}

func TestFallbackGeocoderJoinsErrorsWhenBothFail(t *testing.T) {
	primaryErr := errors.New("primary down")
	secondaryErr := errors.New("secondary down")
	geocoder := &FallbackGeocoder{Primary: &fakeGeocoder{err: primaryErr}, Secondary: &fakeGeocoder{err: secondaryErr}}

	_, err := geocoder.Geocode(context.Background(), GeocodeQuery{Name: "Seoul"})
	require.Error(t, err)
	assert.ErrorIs(t, err, primaryErr)
	assert.ErrorIs(t, err, secondaryErr)
}

func TestFallbackGeocoderRecoversFromPrimaryError(t *testing.T) {
	geocoder := &FallbackGeocoder{Primary: &fakeGeocoder{err: errors.New("primary down")}, Secondary: newFakeGeocoder()}

	result, err := geocoder.Geocode(context.Background(), GeocodeQuery{Name: "Busan"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 35.1796, result.Latitude)
}

func TestFallbackGeocoderBothMissIsNotFound(t *testing.T) {
	geocoder := &FallbackGeocoder{Primary: &fakeGeocoder{results: map[string]*GeocodeResult{}}, Secondary: &fakeGeocoder{results: map[string]*GeocodeResult{}}}

	result, err := geocoder.Geocode(context.Background(), GeocodeQuery{Name: "Atlantis"})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestFallbackGeocoderSkipsSecondaryOnHit(t *testing.T) {
	primary := newFakeGeocoder()
	secondary := newFakeGeocoder()
	geocoder := &FallbackGeocoder{Primary: primary, Secondary: secondary}

	_, err := geocoder.Geocode(context.Background(), GeocodeQuery{Name: "Seoul"})
	require.NoError(t, err)
	assert.Len(t, secondary.lookups(), 0)
}

func TestRatePacerSpacesConsecutiveWaits(t *testing.T) {
	pacer := NewRatePacer(40 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, pacer.Wait(ctx))
	require.NoError(t, pacer.Wait(ctx))
	require.NoError(t, pacer.Wait(ctx))

	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestRatePacerZeroIntervalDoesNotBlock(t *testing.T) {
	pacer := NewRatePacer(0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 50; i++ {
		require.NoError(t, pacer.Wait(ctx))
	}
}

func TestRatePacerHonoursCancellation(t *testing.T) {
	pacer := NewRatePacer(time.Hour)
	require.NoError(t, pacer.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, pacer.Wait(ctx))
}
