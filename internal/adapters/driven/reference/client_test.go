package reference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
)

func TestLookupSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req lookupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ACGTACGT", req.Sequence)

		json.NewEncoder(w).Encode(lookupResponse{
			TaxonID:    "tax-042",
			TaxonName:  "Salmo trutta",
			Lineage:    "Animalia; Chordata; Actinopterygii; Salmoniformes",
			Confidence: 0.88,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	assignment, err := client.Lookup(context.Background(), "ACGTACGT")
	require.NoError(t, err)
	assert.Equal(t, "tax-042", assignment.TaxonID)
	assert.Equal(t, "Salmo trutta", assignment.TaxonName)
	assert.Equal(t, "Animalia; Chordata; Actinopterygii; Salmoniformes", assignment.Lineage)
	assert.Equal(t, 0.88, assignment.Confidence)
}

func TestLookupNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Lookup(context.Background(), "ACGT")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLookupThrottled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Lookup(context.Background(), "ACGT")
	assert.ErrorIs(t, err, domain.ErrResourceExhausted)
}

func TestLookupServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "reference db offline", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Lookup(context.Background(), "ACGT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestLookupEmptyTaxon(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(lookupResponse{})
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Lookup(context.Background(), "ACGT")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLookupContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(server.URL).Lookup(ctx, "ACGT")
	assert.Error(t, err)
}
