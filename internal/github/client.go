// Package github implements the remote project API collaborator: a REST
// client for the GitHub v3 API and a paged project repository on top of it.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kskor/folio/internal/config"
	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/paging"
)

const (
	// DefaultBaseURL is the public API host; tests point the client elsewhere.
	DefaultBaseURL = "https://api.github.com"

	defaultTimeout = 30 * time.Second
	userAgent      = "Folio/1.0"
	apiVersion     = "2022-11-28"
)

// Client is an authenticated GitHub REST API client. Credentials are read
// from the holder on every request, so a token refresh takes effect without
// rebuilding the client.
type Client struct {
	baseURL    string
	creds      *config.Holder
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client against baseURL ("" selects the public API).
func NewClient(baseURL string, creds *config.Holder, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		creds:   creds,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// doRequest performs an authenticated request against a fully resolved URL
// and returns the body plus response headers.
func (c *Client) doRequest(ctx context.Context, method, reqURL string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)
	if token := c.creds.Snapshot().Token; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("github request", "method", method, "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("github request failed", "error", err)
		return nil, nil, domain.ErrServerOffline
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, resp.Header, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, nil, domain.ErrAuthFailed
	case http.StatusNotFound:
		return nil, nil, domain.ErrNotFound
	default:
		c.logger.Error("github request error", "status", resp.StatusCode, "body", string(body))
		return nil, nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

// endpoint joins path and query onto the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	reqURL := fmt.Sprintf("%s%s", c.baseURL, path)
	if len(query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}
	return reqURL
}

// GetUser returns the identity behind the configured token.
func (c *Client) GetUser(ctx context.Context) (UserDTO, error) {
	body, _, err := c.doRequest(ctx, http.MethodGet, c.endpoint("/user", nil))
	if err != nil {
		return UserDTO{}, err
	}
	var user UserDTO
	if err := json.Unmarshal(body, &user); err != nil {
		return UserDTO{}, fmt.Errorf("failed to parse user response: %w", err)
	}
	return user, nil
}

// ListRepos fetches one page of the configured user's repositories.
// pageURL "" requests the first page with perPage items; otherwise pageURL
// must be a locator previously extracted from a Link header. The returned
// relations carry the cursors for the surrounding pages.
func (c *Client) ListRepos(ctx context.Context, pageURL string, perPage int) ([]RepoDTO, paging.Relations, error) {
	reqURL := pageURL
	if reqURL == "" {
		user := c.creds.Snapshot().User
		if user == "" {
			return nil, nil, domain.ErrNotSignedIn
		}
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(perPage))
		query.Set("page", "1")
		reqURL = c.endpoint("/users/"+url.PathEscape(user)+"/repos", query)
	}

	body, header, err := c.doRequest(ctx, http.MethodGet, reqURL)
	if err != nil {
		return nil, nil, err
	}

	var repos []RepoDTO
	if err := json.Unmarshal(body, &repos); err != nil {
		return nil, nil, fmt.Errorf("failed to parse repos response: %w", err)
	}

	return repos, c.pageRelations(header), nil
}

// SearchRepos fetches one page of repository search results. The query uses
// the API's search syntax; pageURL continues a previous search page.
func (c *Client) SearchRepos(ctx context.Context, query, pageURL string, perPage int) (SearchDTO, paging.Relations, error) {
	reqURL := pageURL
	if reqURL == "" {
		params := url.Values{}
		params.Set("q", query)
		params.Set("per_page", strconv.Itoa(perPage))
		params.Set("page", "1")
		reqURL = c.endpoint("/search/repositories", params)
	}

	body, header, err := c.doRequest(ctx, http.MethodGet, reqURL)
	if err != nil {
		return SearchDTO{}, nil, err
	}

	var result SearchDTO
	if err := json.Unmarshal(body, &result); err != nil {
		return SearchDTO{}, nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return result, c.pageRelations(header), nil
}

// GetRepoLanguages returns the line counts per language for one repository
// of the configured user.
func (c *Client) GetRepoLanguages(ctx context.Context, repoName string) (LanguagesDTO, error) {
	user := c.creds.Snapshot().User
	if user == "" {
		return nil, domain.ErrNotSignedIn
	}
	path := fmt.Sprintf("/repos/%s/%s/languages", url.PathEscape(user), url.PathEscape(repoName))
	body, _, err := c.doRequest(ctx, http.MethodGet, c.endpoint(path, nil))
	if err != nil {
		return nil, err
	}
	var langs LanguagesDTO
	if err := json.Unmarshal(body, &langs); err != nil {
		return nil, fmt.Errorf("failed to parse languages response: %w", err)
	}
	return langs, nil
}

// GetRepo returns one repository of the configured user by name.
func (c *Client) GetRepo(ctx context.Context, repoName string) (RepoDTO, error) {
	user := c.creds.Snapshot().User
	if user == "" {
		return RepoDTO{}, domain.ErrNotSignedIn
	}
	path := fmt.Sprintf("/repos/%s/%s", url.PathEscape(user), url.PathEscape(repoName))
	body, _, err := c.doRequest(ctx, http.MethodGet, c.endpoint(path, nil))
	if err != nil {
		return RepoDTO{}, err
	}
	var repo RepoDTO
	if err := json.Unmarshal(body, &repo); err != nil {
		return RepoDTO{}, fmt.Errorf("failed to parse repo response: %w", err)
	}
	return repo, nil
}

func (c *Client) pageRelations(header http.Header) paging.Relations {
	link := header.Get("Link")
	if link == "" {
		c.logger.Debug("no link header")
		return paging.Relations{}
	}
	c.logger.Debug("raw link header", "link", link)
	return paging.ParseLinkHeader(link, c.logger)
}
