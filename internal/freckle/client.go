// Package freckle reads invoice state from the freckle time tracking API.
package freckle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultAPIURL is the public freckle v2 endpoint.
const DefaultAPIURL = "https://api.letsfreckle.com/v2"

// ErrLookupUnavailable marks a cross-check that could not reach freckle.
var ErrLookupUnavailable = errors.New("freckle: lookup unavailable")

// maxPages bounds pagination against a misbehaving server.
const maxPages = 100

// Invoice is the subset of a freckle invoice the ledger cares about.
type Invoice struct {
	ID          int64  `json:"id"`
	Number      string `json:"number"`
	State       string `json:"state"`
	InvoiceDate string `json:"invoice_date"`
	Reference   string `json:"reference"`
}

// ClientConfig configures a Client.
type ClientConfig struct {
	APIURL      string
	AccessToken string
	Timeout     time.Duration
}

// Client calls the freckle API with a bearer token.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client. An access token is required.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, fmt.Errorf("freckle: access token required")
	}
	base := strings.TrimRight(cfg.APIURL, "/")
	if base == "" {
		base = DefaultAPIURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("freckle: api url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.AccessToken,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = timeout
	return &Client{baseURL: base, http: httpClient}, nil
}

// UnpaidInvoices returns every invoice freckle reports as unpaid, following
// the Link header across pages.
func (c *Client) UnpaidInvoices(ctx context.Context) ([]Invoice, error) {
	next := c.baseURL + "/invoices?state=unpaid"
	var out []Invoice
	for page := 0; next != ""; page++ {
		if page == maxPages {
			return nil, fmt.Errorf("freckle: more than %d pages of invoices", maxPages)
		}
		batch, link, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		next = link
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) ([]Invoice, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("freckle: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "account-keeping")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("freckle: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("freckle: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var batch []Invoice
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, "", fmt.Errorf("freckle: decode invoices: %w", err)
	}
	return batch, nextLink(resp.Header.Get("Link")), nil
}

// nextLink extracts the rel="next" target of an RFC 8288 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segments[1:] {
			param = strings.ReplaceAll(strings.TrimSpace(param), " ", "")
			if param == `rel="next"` || param == "rel=next" {
				return strings.Trim(target, "<>")
			}
		}
	}
	return ""
}
