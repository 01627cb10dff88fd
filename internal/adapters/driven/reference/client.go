// Package reference implements the fallback reference-database lookup
// used when the local classifier's confidence is below the configured
// threshold. The remote service receives the canonical sequence and
// answers with a single taxonomic assignment.
package reference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/ports/driven"
)

// defaultTimeout bounds one lookup round trip. The inference service
// treats a slow fallback as a failed fallback, never as a hang.
const defaultTimeout = 10 * time.Second

// Client calls a remote reference-lookup service over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
}

var _ driven.ReferenceLookup = (*Client)(nil)

// NewClient creates a lookup client for the given endpoint URL.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: defaultTimeout},
	}
}

type lookupRequest struct {
	Sequence string `json:"sequence"`
}

type lookupResponse struct {
	TaxonID    string  `json:"taxon_id"`
	TaxonName  string  `json:"taxon_name"`
	Lineage    string  `json:"lineage"`
	Confidence float64 `json:"confidence"`
}

// Lookup queries the reference service for one canonical sequence.
func (c *Client) Lookup(ctx context.Context, sequence string) (*domain.Assignment, error) {
	body, err := json.Marshal(lookupRequest{Sequence: sequence})
	if err != nil {
		return nil, fmt.Errorf("encoding lookup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reference lookup: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: no reference match", domain.ErrNotFound)
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: reference service throttled", domain.ErrResourceExhausted)
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("reference lookup returned %d: %s", resp.StatusCode, snippet)
	}

	var result lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding lookup response: %w", err)
	}
	if result.TaxonID == "" {
		return nil, fmt.Errorf("%w: reference response missing taxon", domain.ErrInvalidInput)
	}

	return &domain.Assignment{
		TaxonID:    result.TaxonID,
		TaxonName:  result.TaxonName,
		Lineage:    result.Lineage,
		Confidence: result.Confidence,
	}, nil
}
