package healthapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleFor(station, date string) domain.RawSample {
	return domain.RawSample{Station: station, ExtractionDate: date}
}

func TestFetchSamples_PagesUntilExhausted(t *testing.T) {
	all := []domain.RawSample{
		sampleFor("Ruhleben", "01.02.2022"),
		sampleFor("Waßmannsdorf", "01.02.2022"),
		sampleFor("Schönerlinde", "01.02.2022"),
		sampleFor("Ruhleben", "02.02.2022"),
		sampleFor("Waßmannsdorf", "02.02.2022"),
	}

	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		limit := 2
		offset := 0
		fmt.Sscanf(r.URL.Query().Get("offset"), "%d", &offset)

		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"items": all[offset:end],
			"total": len(all),
		}))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 2, discardLogger())
	samples, err := client.FetchSamples(context.Background(), time.Time{})
	require.NoError(t, err)

	assert.Len(t, samples, 5)
	assert.Equal(t, "Ruhleben", samples[0].Station)
	assert.Equal(t, "Waßmannsdorf", samples[4].Station)
	assert.Len(t, requests, 3)
}

func TestFetchSamples_SinceCursor(t *testing.T) {
	var gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("since")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"items": []domain.RawSample{},
			"total": 0,
		}))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 100, discardLogger())

	since := time.Date(2022, time.February, 10, 0, 0, 0, 0, time.UTC)
	_, err := client.FetchSamples(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, "10.02.2022", gotSince)
}

func TestFetchSamples_OmitsZeroSince(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("since"))
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"items": []domain.RawSample{}, "total": 0}))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 100, discardLogger())
	_, err := client.FetchSamples(context.Background(), time.Time{})
	require.NoError(t, err)
}

func TestFetchSamples_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 100, discardLogger())
	_, err := client.FetchSamples(context.Background(), time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestFetchSamples_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 100, discardLogger())
	_, err := client.FetchSamples(context.Background(), time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode page")
}

func TestFetchSamples_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, 100, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.FetchSamples(ctx, time.Time{})
	require.Error(t, err)
}
