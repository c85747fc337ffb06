package ccdscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tirasundara/ccd-tax-export/internal/domain"
)

const (
	// DefaultBaseURL points at the public index API.
	DefaultBaseURL = "https://api.ccdscan.io"

	defaultTimeout = 30 * time.Second
)

// Client fetches account transaction histories from the index API. It is
// stateless between calls apart from the cursor handed to FetchPage, so a
// single instance can serve concurrent per-account fetches.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	log        zerolog.Logger
}

// NewClient creates a Client for the given base URL. A nil httpClient falls
// back to a default client with a request timeout.
func NewClient(httpClient *http.Client, baseURL string, log zerolog.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", baseURL, err)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    parsed,
		log:        log.With().Str("component", "ccdscan").Logger(),
	}, nil
}

// FetchPage implements domain.PageFetcher. It requests up to limit
// transactions involving the account, resuming after cursor when one is
// given. Server-side and network failures come back as TransientFetchError;
// rejected requests and undecodable responses as FatalFetchError.
func (c *Client) FetchPage(ctx context.Context, account domain.Account, cursor string, limit int) (domain.TransactionPage, error) {
	endpoint := c.baseURL.String() + "/v1/accounts/" + url.PathEscape(string(account)) + "/transactions"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.TransactionPage{}, domain.NewFatalFetchErrorf("creating request: %w", err)
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("order", "ascending")
	if cursor != "" {
		q.Set("from", cursor)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.TransactionPage{}, domain.NewTransientFetchErrorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return domain.TransactionPage{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TransactionPage{}, domain.NewTransientFetchErrorf("reading response body: %w", err)
	}

	var decoded transactionsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return domain.TransactionPage{}, domain.NewFatalFetchErrorf("unmarshalling response body: %w", err)
	}

	page, err := mapPage(decoded, limit)
	if err != nil {
		return domain.TransactionPage{}, err
	}

	c.log.Debug().
		Str("account", string(account)).
		Str("cursor", cursor).
		Int("count", len(page.Transactions)).
		Str("next_cursor", page.NextCursor).
		Msg("fetched transaction page")

	return page, nil
}

// classifyStatus translates a non-2xx response into the fetch error taxonomy.
// 5xx and 429 are worth retrying; any other 4xx is not.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return nil
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewTransientFetchErrorf("server answered %d: %s", resp.StatusCode, readErrorMessage(resp.Body))
	default:
		return domain.NewFatalFetchErrorf("server rejected request with %d: %s", resp.StatusCode, readErrorMessage(resp.Body))
	}
}

// readErrorMessage extracts the API's error message when the body carries one.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no response body"
	}

	var decoded struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Message != "" {
		return decoded.Message
	}

	return string(raw)
}
