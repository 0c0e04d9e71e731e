// Package aemet fetches municipal forecasts from the AEMET OpenData API and
// normalizes them into the dashboard schema.
package aemet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/windforecast/windforecast/internal/forecast"
	"github.com/windforecast/windforecast/internal/provider/resilience"
)

const (
	// ProviderName identifies this forecast provider.
	ProviderName = "aemet"

	// DefaultBaseURL is the AEMET municipal forecast endpoint.
	DefaultBaseURL = "https://opendata.aemet.es/opendata/api/prediccion/especifica/municipio"

	// maxBodyBytes bounds metadata and data responses.
	maxBodyBytes = 16 << 20
)

// pathSegments maps a forecast kind to its endpoint segment.
var pathSegments = map[forecast.Kind]string{
	forecast.KindHourly: "horaria",
	forecast.KindDaily:  "diaria",
}

// ClientConfig holds configuration for the AEMET client.
type ClientConfig struct {
	// BaseURL is the metadata endpoint base (optional).
	BaseURL string

	// HTTPClient is the resilient client used for both phases (optional).
	HTTPClient *resilience.Client

	// Metrics records per-request outcomes (optional).
	Metrics *resilience.ProviderMetrics

	// Location interprets hourly labels. Default: Europe/Madrid.
	Location *time.Location

	// HourlyLimit caps the hourly series. Default: 72.
	HourlyLimit int

	// Now returns the current time for the hourly window. Default: time.Now.
	Now func() time.Time

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client implements the two-phase AEMET retrieval: a keyed metadata request
// that returns a temporary data URL, then an unauthenticated data request.
type Client struct {
	baseURL     string
	httpClient  *resilience.Client
	metrics     *resilience.ProviderMetrics
	location    *time.Location
	hourlyLimit int
	now         func() time.Time
	logger      zerolog.Logger
}

// NewClient creates a new AEMET client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	location := cfg.Location
	if location == nil {
		location = defaultLocation()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		metrics:     cfg.Metrics,
		location:    location,
		hourlyLimit: cfg.HourlyLimit,
		now:         now,
		logger:      cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchHourly retrieves and normalizes the hourly forecast for a municipality.
func (c *Client) FetchHourly(ctx context.Context, municipalityCode, apiKey string) forecast.Result[[]forecast.HourlyPoint] {
	raw, err := c.fetch(ctx, forecast.KindHourly, municipalityCode, apiKey)
	if err != nil {
		return forecast.Failed[[]forecast.HourlyPoint](err.Error())
	}
	return forecast.OK(NormalizeHourly(raw, NormalizeOptions{
		Now:      c.now(),
		Location: c.location,
		Limit:    c.hourlyLimit,
	}))
}

// FetchDaily retrieves and normalizes the daily forecast for a municipality.
func (c *Client) FetchDaily(ctx context.Context, municipalityCode, apiKey string) forecast.Result[[]forecast.DailySummary] {
	raw, err := c.fetch(ctx, forecast.KindDaily, municipalityCode, apiKey)
	if err != nil {
		return forecast.Failed[[]forecast.DailySummary](err.Error())
	}
	return forecast.OK(NormalizeDaily(raw))
}

// Fetch stages reported when a fetch fails.
const (
	stageMetadata = "metadata"
	stageEstado   = "estado"
	stageData     = "data"
	stagePanic    = "panic"
)

// metadataResponse is the first-phase envelope.
type metadataResponse struct {
	Estado      flexValue `json:"estado"`
	Datos       string    `json:"datos"`
	Descripcion string    `json:"descripcion"`
}

// fetch runs both phases and returns the raw data payload. Every failure,
// including a panic, comes back as an error.
func (c *Client) fetch(ctx context.Context, kind forecast.Kind, code, apiKey string) (raw []byte, err error) {
	logger := c.logger.With().
		Str("provider", ProviderName).
		Str("kind", string(kind)).
		Str("municipality", code).
		Logger()

	// stage names the step in progress and is cleared on success.
	stage := stageMetadata
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			raw, err = nil, fmt.Errorf("panic: %v", r)
			stage = stagePanic
		}
		if err == nil {
			stage = ""
		}
		c.metrics.RecordFetch(ctx, resilience.Fetch{
			Provider:     ProviderName,
			Kind:         string(kind),
			Duration:     time.Since(start),
			Stage:        stage,
			PayloadBytes: len(raw),
		})
		if err != nil {
			logger.Error().Err(err).Str("stage", stage).Msg("forecast fetch failed")
		}
	}()

	metaURL := fmt.Sprintf("%s/%s/%s", c.baseURL, pathSegments[kind], url.PathEscape(code))
	body, status, err := c.get(ctx, metaURL, apiKey)
	if err != nil {
		return nil, fmt.Errorf("metadata request: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("metadata request: unexpected status code: %d", status)
	}

	stage = stageEstado
	var meta metadataResponse
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	if estado, ok := meta.Estado.Float(); !ok || int(estado) != http.StatusOK {
		return nil, fmt.Errorf("metadata estado %s: %s", meta.Estado.String(), meta.Descripcion)
	}
	if meta.Datos == "" {
		return nil, errors.New("metadata response has no datos url")
	}

	logger.Debug().Msg("metadata resolved, fetching data")

	stage = stageData
	body, status, err = c.get(ctx, meta.Datos, "")
	if err != nil {
		return nil, fmt.Errorf("data request: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("data request: unexpected status code: %d", status)
	}
	return body, nil
}

// get performs a GET and returns the body decoded to UTF-8. The api_key
// header is only sent when apiKey is non-empty.
func (c *Client) get(ctx context.Context, target, apiKey string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("api_key", apiKey)
	}

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, resp.StatusCode, nil
	}

	reader, err := utf8Reader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// utf8Reader wraps r with a decoder for the charset named in contentType.
// AEMET serves data bodies as ISO-8859-15.
func utf8Reader(r io.Reader, contentType string) (io.Reader, error) {
	if contentType == "" {
		return r, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r, nil
	}
	charset := strings.ToLower(strings.TrimSpace(params["charset"]))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(r), nil
}
