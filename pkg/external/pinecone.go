package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/genepilepsy-guide/internal/domain"
)

// pineconeQuerier is the part of *pinecone.IndexConnection used for retrieval.
type pineconeQuerier interface {
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	Close() error
}

// PineconeIndex queries a Pinecone serverless index through the official Go client.
type PineconeIndex struct {
	client     *pinecone.Client
	host       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
	observe    Observer

	// connect opens a data-plane connection scoped to one namespace.
	connect func(namespace string) (pineconeQuerier, error)

	mu    sync.Mutex
	conns map[string]pineconeQuerier
}

// PineconeOption customizes a PineconeIndex.
type PineconeOption func(*PineconeIndex)

// WithPineconeHTTPClient replaces the HTTP client used for control-plane calls.
func WithPineconeHTTPClient(client *http.Client) PineconeOption {
	return func(p *PineconeIndex) { p.httpClient = client }
}

// WithPineconeLogger sets the logger.
func WithPineconeLogger(logger *logrus.Logger) PineconeOption {
	return func(p *PineconeIndex) { p.logger = logger }
}

// WithPineconeObserver reports each request outcome.
func WithPineconeObserver(observe Observer) PineconeOption {
	return func(p *PineconeIndex) { p.observe = observe }
}

// NewPineconeIndex creates a client for indexName. When the config carries no host, the
// host is resolved once from the control plane. Data-plane connections open on first query.
func NewPineconeIndex(ctx context.Context, cfg domain.PineconeConfig, indexName string, opts ...PineconeOption) (*PineconeIndex, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewMissingCredentialError("vector.pinecone.api_key")
	}

	p := &PineconeIndex{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logrus.StandardLogger(),
		observe:    noopObserver,
		conns:      map[string]pineconeQuerier{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.breaker = NewCircuitBreaker(ServiceVectorIndex, DefaultBreakerSettings(), p.logger)

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey:     cfg.APIKey,
		Host:       cfg.ControlPlane,
		RestClient: p.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}
	p.client = client

	host := cfg.Host
	if host == "" {
		desc, err := client.DescribeIndex(ctx, indexName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve Pinecone index host: %w", err)
		}
		if desc == nil || desc.Host == "" {
			return nil, fmt.Errorf("failed to resolve Pinecone index host: index %q has no host", indexName)
		}
		host = desc.Host
	}
	p.host = bareHost(host)

	p.connect = func(namespace string) (pineconeQuerier, error) {
		conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: p.host, Namespace: namespace})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	p.logger.WithFields(logrus.Fields{
		"index": indexName,
		"host":  p.host,
	}).Debug("Pinecone index ready")
	return p, nil
}

// bareHost strips the scheme and trailing slash; the client expects a host name.
func bareHost(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	return strings.TrimSuffix(host, "/")
}

func (p *PineconeIndex) namespaceConn(namespace string) (pineconeQuerier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[namespace]; ok {
		return conn, nil
	}
	conn, err := p.connect(namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Pinecone index: %w", err)
	}
	p.conns[namespace] = conn
	return conn, nil
}

// Query returns the topK nearest passages in namespace with their metadata.
func (p *PineconeIndex) Query(ctx context.Context, vector []float32, topK int, namespace string) ([]domain.Match, error) {
	if topK < 1 {
		topK = 1
	}
	conn, err := p.namespaceConn(namespace)
	if err != nil {
		p.observe(ServiceVectorIndex, "error")
		return nil, err
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		res, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
			Vector:          vector,
			TopK:            uint32(topK),
			IncludeMetadata: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query Pinecone: %w", err)
		}
		return res, nil
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "open"
		}
		p.observe(ServiceVectorIndex, outcome)
		return nil, err
	}

	res := result.(*pinecone.QueryVectorsResponse)
	var matches []domain.Match
	if res != nil {
		matches = make([]domain.Match, 0, len(res.Matches))
		for _, m := range res.Matches {
			if m == nil || m.Vector == nil {
				continue
			}
			metadata := map[string]any{}
			if m.Vector.Metadata != nil {
				metadata = m.Vector.Metadata.AsMap()
			}
			matches = append(matches, domain.Match{ID: m.Vector.Id, Score: float64(m.Score), Metadata: metadata})
		}
	}

	if len(matches) == 0 {
		p.observe(ServiceVectorIndex, "empty")
		return []domain.Match{}, nil
	}
	p.observe(ServiceVectorIndex, "success")
	return matches, nil
}

// Close closes every open namespace connection.
func (p *PineconeIndex) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for namespace, conn := range p.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("namespace %s: %w", namespace, err))
		}
		delete(p.conns, namespace)
	}
	return errors.Join(errs...)
}
