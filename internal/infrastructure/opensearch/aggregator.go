package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/audit"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/config"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/metrics"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/tracing"
)

// DefaultTimeout bounds a single backend query.
const DefaultTimeout = 5 * time.Second

const (
	kindSummary = "summary"
	kindPeriods = "periods"

	maxErrorBody = 512
)

// Aggregator implements audit.MetricsSource with OpenSearch aggregations.
// Queries are never retried and failures never yield partial results.
type Aggregator struct {
	client  *opensearchgo.Client
	index   string
	timeout time.Duration
}

// Option customises aggregator instantiation.
type Option func(*opensearchgo.Config)

// WithTransport overrides the HTTP transport of the client.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *opensearchgo.Config) {
		c.Transport = rt
	}
}

// NewAggregator creates an aggregator for the configured cluster and index.
func NewAggregator(cfg config.OpenSearchConfig, opts ...Option) (*Aggregator, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" || cfg.Index == "" {
		return nil, errors.New("opensearch base url and index are required")
	}

	osCfg := opensearchgo.Config{
		Addresses:    []string{base},
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableRetry: true,
	}
	for _, opt := range opts {
		opt(&osCfg)
	}

	client, err := opensearchgo.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Aggregator{client: client, index: cfg.Index, timeout: timeout}, nil
}

// Summary returns distinct executions and failed executions of the audit within window.
func (a *Aggregator) Summary(ctx context.Context, ref audit.Ref, window audit.Window) (audit.Metrics, error) {
	q := BuildAggregationQuery(ref.Name, window.Start, window.End, 0)

	resp, err := a.search(ctx, kindSummary, ref, q)
	if err != nil {
		return audit.Metrics{}, err
	}

	m := foldExecutions(resp.Aggregations.UniqueExecutions)
	log.Debug().Str("audit_name", ref.Name).Int("executions", m.Executions).Int("failures", m.Failures).
		Msg("OpenSearch metrics result")
	return m, nil
}

// Periods returns per-bucket executions and failures of the audit over grid.
func (a *Aggregator) Periods(ctx context.Context, ref audit.Ref, grid audit.Grid) ([]audit.Period, error) {
	q := BuildAggregationQuery(ref.Name, grid.Start, grid.End, grid.Interval)

	resp, err := a.search(ctx, kindPeriods, ref, q)
	if err != nil {
		return nil, err
	}

	var buckets []periodBucket
	if resp.Aggregations.Periods != nil {
		buckets = resp.Aggregations.Periods.Buckets
	}
	return audit.AlignToGrid(grid, foldPeriods(buckets)), nil
}

// Ping checks that the cluster answers.
func (a *Aggregator) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := opensearchapi.PingRequest{}.Do(ctx, a.client)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("opensearch ping: %s", res.Status())
	}
	return nil
}

func (a *Aggregator) search(ctx context.Context, kind string, ref audit.Ref, q Query) (*searchResponse, error) {
	ctx, span := tracing.StartClientSpan(ctx, "opensearch", kind,
		attribute.String("opensearch.index", a.index),
		attribute.String("audit.name", ref.Name),
	)
	defer span.End()

	start := time.Now()
	resp, outcome, err := a.doSearch(ctx, q)
	metrics.RecordMetricsQuery(kind, outcome, time.Since(start))

	if err != nil {
		tracing.SetError(ctx, err)
		log.Error().Err(err).Str("audit_name", ref.Name).Str("kind", kind).Str("outcome", outcome).
			Msg("OpenSearch query failed")
		return nil, fmt.Errorf("%w: %w", audit.ErrNoMetrics, err)
	}
	return resp, nil
}

func (a *Aggregator) doSearch(ctx context.Context, q Query) (*searchResponse, string, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, metrics.OutcomeError, fmt.Errorf("encode query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req := opensearchapi.SearchRequest{
		Index: []string{a.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, a.client)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, metrics.OutcomeTimeout, fmt.Errorf("query timed out after %s: %w", a.timeout, err)
		}
		return nil, metrics.OutcomeError, fmt.Errorf("perform query: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		text, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, metrics.OutcomeHTTPError, fmt.Errorf("query failed with status %d: %s",
			res.StatusCode, strings.TrimSpace(string(text)))
	}

	var resp searchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, metrics.OutcomeTimeout, fmt.Errorf("query timed out after %s: %w", a.timeout, err)
		}
		return nil, metrics.OutcomeError, fmt.Errorf("decode response: %w", err)
	}
	return &resp, metrics.OutcomeOK, nil
}
