package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/genepilepsy-guide/internal/domain"
)

// ClinVarClient handles interactions with the ClinVar database via NCBI E-utilities
type ClinVarClient struct {
	baseURL    string
	apiKey     string
	tool       string
	email      string
	retMax     int
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
	observe    Observer
}

// ClinVarOption customizes a ClinVarClient.
type ClinVarOption func(*ClinVarClient)

// WithClinVarHTTPClient replaces the HTTP client.
func WithClinVarHTTPClient(client *http.Client) ClinVarOption {
	return func(c *ClinVarClient) { c.httpClient = client }
}

// WithClinVarLogger sets the logger.
func WithClinVarLogger(logger *logrus.Logger) ClinVarOption {
	return func(c *ClinVarClient) { c.logger = logger }
}

// WithClinVarObserver reports each request outcome.
func WithClinVarObserver(observe Observer) ClinVarOption {
	return func(c *ClinVarClient) { c.observe = observe }
}

// WithClinVarBreaker tunes the circuit breaker.
func WithClinVarBreaker(settings BreakerSettings) ClinVarOption {
	return func(c *ClinVarClient) {
		c.breaker = NewCircuitBreaker(ServiceClinVar, settings, c.logger)
	}
}

// NewClinVarClient creates a new ClinVar API client
func NewClinVarClient(config domain.ClinVarConfig, opts ...ClinVarOption) *ClinVarClient {
	rps := config.RateLimit
	if rps <= 0 {
		rps = 3
		if config.APIKey != "" {
			rps = 10
		}
	}
	retMax := config.RetMax
	if retMax <= 0 {
		retMax = 20
	}
	baseURL := config.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	c := &ClinVarClient{
		baseURL: baseURL,
		apiKey:  config.APIKey,
		tool:    config.Tool,
		email:   config.Email,
		retMax:  retMax,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logrus.StandardLogger(),
		observe: noopObserver,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = NewCircuitBreaker(ServiceClinVar, DefaultBreakerSettings(), c.logger)
	}
	return c
}

// SearchTerm builds the esearch term: a gene-scoped term and a quoted variant,
// each omitted when "NA", joined with AND.
func SearchTerm(gene, variant string) string {
	var terms []string
	if !domain.IsNA(gene) {
		terms = append(terms, fmt.Sprintf("%s[gene]", strings.TrimSpace(gene)))
	}
	if !domain.IsNA(variant) {
		terms = append(terms, `"`+strings.TrimSpace(variant)+`"`)
	}
	return strings.Join(terms, " AND ")
}

type esearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
		Error  string   `json:"ERROR"`
	} `json:"esearchresult"`
}

type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
	Error  string                     `json:"error"`
}

// Lookup runs the search phase then, when ids were found, one batch summary request.
// Transport failures of either phase are logged and yield an empty result.
func (c *ClinVarClient) Lookup(ctx context.Context, term string) domain.VariantLookup {
	empty := domain.VariantLookup{Records: map[string]json.RawMessage{}}
	if strings.TrimSpace(term) == "" {
		return empty
	}
	log := c.logger.WithField("term", term)

	ids, err := c.Search(ctx, term)
	if err != nil {
		log.WithError(err).Warn("ClinVar search failed")
		return empty
	}
	if len(ids) == 0 {
		log.Info("No ClinVar entries found for the search query")
		return empty
	}

	records, err := c.Summaries(ctx, ids)
	if err != nil {
		log.WithError(err).Warn("ClinVar summary request failed")
		return empty
	}

	log.WithFields(logrus.Fields{
		"ids":     len(ids),
		"records": len(records),
	}).Info("ClinVar lookup complete")

	return domain.VariantLookup{IDs: orderIDs(ids, records), Records: records}
}

// Search runs esearch and returns candidate accession ids.
func (c *ClinVarClient) Search(ctx context.Context, term string) ([]string, error) {
	params := url.Values{
		"db":      {"clinvar"},
		"term":    {term},
		"retmax":  {strconv.Itoa(c.retMax)},
		"retmode": {"json"},
	}

	body, err := c.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.observe(ServiceClinVar, "error")
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	if resp.ESearchResult.Error != "" {
		c.observe(ServiceClinVar, "error")
		return nil, fmt.Errorf("ClinVar search error: %s", resp.ESearchResult.Error)
	}
	if len(resp.ESearchResult.IDList) == 0 {
		c.observe(ServiceClinVar, "empty")
	} else {
		c.observe(ServiceClinVar, "success")
	}
	return resp.ESearchResult.IDList, nil
}

// Summaries runs one esummary request for all ids. The manifest entry and any
// non-object values are dropped.
func (c *ClinVarClient) Summaries(ctx context.Context, ids []string) (map[string]json.RawMessage, error) {
	params := url.Values{
		"db":      {"clinvar"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	}

	body, err := c.get(ctx, "esummary.fcgi", params)
	if err != nil {
		return nil, err
	}

	var resp esummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.observe(ServiceClinVar, "error")
		return nil, fmt.Errorf("failed to parse summary response: %w", err)
	}
	if resp.Error != "" {
		c.observe(ServiceClinVar, "error")
		return nil, fmt.Errorf("ClinVar summary error: %s", resp.Error)
	}

	records := make(map[string]json.RawMessage, len(resp.Result))
	for id, raw := range resp.Result {
		if id == domain.ManifestKey {
			continue
		}
		if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		records[id] = raw
	}
	c.observe(ServiceClinVar, "success")
	return records, nil
}

// get issues a rate-limited GET through the circuit breaker and returns the body of a
// 200 response.
func (c *ClinVarClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	if c.tool != "" {
		params.Set("tool", c.tool)
	}
	if c.email != "" {
		params.Set("email", c.email)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, endpoint, params.Encode())

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("ClinVar %s returned status %d", endpoint, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.observe(ServiceClinVar, "open")
			return nil, fmt.Errorf("ClinVar service unavailable (circuit breaker open): %w", err)
		}
		c.observe(ServiceClinVar, "error")
		return nil, err
	}
	return result.([]byte), nil
}

// orderIDs returns record ids in search order, followed by any extra ids the summary
// returned, sorted.
func orderIDs(searchIDs []string, records map[string]json.RawMessage) []string {
	ordered := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, id := range searchIDs {
		if _, ok := records[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	var extra []string
	for id := range records {
		if _, ok := seen[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(ordered, extra...)
}
