package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/travelquotes/config"
	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/rs/zerolog"
)

const (
	tokenPath  = "/v1/security/oauth2/token"
	offersPath = "/v2/shopping/flight-offers"

	maxErrorBody = 512
)

var _ SearchClient = (*HTTPClient)(nil)

// HTTPClient searches an Amadeus-style flight-offers API using OAuth client credentials.
type HTTPClient struct {
	name         string
	baseURL      string
	clientID     string
	clientSecret string
	maxResults   int
	skew         time.Duration
	client       *http.Client
	tokens       TokenCache
	now          func() time.Time
	log          *zerolog.Logger
}

type HTTPClientOption func(*HTTPClient)

func WithHTTPClient(c *http.Client) HTTPClientOption {
	return func(h *HTTPClient) {
		h.client = c
	}
}

func WithTokenCache(tokens TokenCache) HTTPClientOption {
	return func(h *HTTPClient) {
		h.tokens = tokens
	}
}

func WithClock(now func() time.Time) HTTPClientOption {
	return func(h *HTTPClient) {
		h.now = now
	}
}

func NewHTTPClient(cfg config.ProviderConfig, log *zerolog.Logger, opts ...HTTPClientOption) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("provider base url empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid provider base url: %w", err)
	}
	clog := log.With().Str("component", "ProviderClient").Str("provider", cfg.Name).Logger()
	h := &HTTPClient{
		name:         cfg.Name,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		maxResults:   cfg.MaxResults,
		skew:         cfg.TokenExpirySkew,
		client:       &http.Client{Timeout: cfg.Timeout},
		tokens:       NewMemoryTokenCache(),
		now:          time.Now,
		log:          &clog,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *HTTPClient) Name() string { return h.name }

// Search issues one flight-offers request for criteria.
func (h *HTTPClient) Search(ctx context.Context, criteria domain.SearchCriteria) (*RawOfferBatch, error) {
	token, err := h.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := h.baseURL + offersPath + "?" + h.searchQuery(criteria).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Error{Provider: h.name, Op: "search", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	started := h.now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &Error{Provider: h.name, Op: "search", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Provider: h.name, Op: "search", StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		if derr := h.tokens.DeleteToken(ctx, h.name); derr != nil {
			h.log.Warn().Err(derr).Msg("failed to drop rejected token")
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Provider: h.name, Op: "search", StatusCode: resp.StatusCode, Body: truncate(body)}
	}

	batch, err := ParseOfferBatch(body)
	if err != nil {
		return nil, &Error{Provider: h.name, Op: "search", StatusCode: resp.StatusCode, Err: err}
	}
	h.log.Debug().
		Str("direction", string(criteria.Direction)).
		Int("offers", len(batch.Offers)).
		Dur("took", h.now().Sub(started)).
		Msg("flight offers received")
	return batch, nil
}

func (h *HTTPClient) searchQuery(c domain.SearchCriteria) url.Values {
	q := url.Values{}
	q.Set("originLocationCode", c.Origin)
	q.Set("destinationLocationCode", c.Destination)
	q.Set("departureDate", c.Date)
	adults := c.Pax.Adults
	if adults <= 0 {
		adults = 1
	}
	q.Set("adults", strconv.Itoa(adults))
	if c.Pax.Children > 0 {
		q.Set("children", strconv.Itoa(c.Pax.Children))
	}
	if c.Pax.Infants > 0 {
		q.Set("infants", strconv.Itoa(c.Pax.Infants))
	}
	if c.CabinCeiling != "" {
		q.Set("travelClass", string(c.CabinCeiling))
	}
	// the API rejects included and excluded carriers together; the included list wins
	if len(c.IncludedCarriers) > 0 {
		q.Set("includedAirlineCodes", strings.Join(c.IncludedCarriers, ","))
	} else if len(c.ExcludedCarriers) > 0 {
		q.Set("excludedAirlineCodes", strings.Join(c.ExcludedCarriers, ","))
	}
	if c.NonStop {
		q.Set("nonStop", "true")
	}
	if c.Currency != "" {
		q.Set("currencyCode", c.Currency)
	}
	if h.maxResults > 0 {
		q.Set("max", strconv.Itoa(h.maxResults))
	}
	return q
}

// accessToken returns a cached token while it is valid and fetches a new one otherwise.
func (h *HTTPClient) accessToken(ctx context.Context) (string, error) {
	cached, ok, err := h.tokens.GetToken(ctx, h.name)
	if err != nil {
		h.log.Warn().Err(err).Msg("token cache read failed")
	} else if ok && cached.ValidAt(h.now(), h.skew) {
		return cached.AccessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", h.clientID)
	form.Set("client_secret", h.clientSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Provider: h.name, Op: "token", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", &Error{Provider: h.name, Op: "token", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Provider: h.name, Op: "token", StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Provider: h.name, Op: "token", StatusCode: resp.StatusCode, Body: truncate(body)}
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &Error{Provider: h.name, Op: "token", StatusCode: resp.StatusCode, Err: err}
	}
	if out.AccessToken == "" {
		return "", &Error{Provider: h.name, Op: "token", StatusCode: resp.StatusCode, Body: "empty access token"}
	}

	token := Token{
		AccessToken: out.AccessToken,
		ExpiresAt:   h.now().Add(time.Duration(out.ExpiresIn) * time.Second),
	}
	if err := h.tokens.SetToken(ctx, h.name, token); err != nil {
		h.log.Warn().Err(err).Msg("token cache write failed")
	}
	return token.AccessToken, nil
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
