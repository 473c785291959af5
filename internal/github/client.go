// Package github lists branches and commits through the GitHub REST API.
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

	"golang.org/x/oauth2"

	"github.com/starford/jdt/internal/models"
)

const (
	DefaultBaseURL     = "https://api.github.com"
	DefaultPageSize    = 100
	DefaultPageTimeout = 15 * time.Second
)

// FetchError is returned when the API answers with a non-2xx status.
type FetchError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("github: %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	Token       string
	PageSize    int
	PageTimeout time.Duration
	Logger      *slog.Logger
}

// Client talks to the GitHub REST API.
type Client struct {
	baseURL     string
	http        *http.Client
	pageSize    int
	pageTimeout time.Duration
	log         *slog.Logger
}

// NewClient creates a client. A non-empty token is sent as a bearer token.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:     opts.BaseURL,
		http:        http.DefaultClient,
		pageSize:    opts.PageSize,
		pageTimeout: opts.PageTimeout,
		log:         opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	if c.pageTimeout <= 0 {
		c.pageTimeout = DefaultPageTimeout
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		c.http = oauth2.NewClient(context.Background(), ts)
	}
	return c
}

type branch struct {
	Name string `json:"name"`
}

// ListBranches returns the branch names of owner/repo.
func (c *Client) ListBranches(ctx context.Context, owner, repo string) ([]string, error) {
	path := fmt.Sprintf("/repos/%s/%s/branches", url.PathEscape(owner), url.PathEscape(repo))
	branches, err := listAll[branch](ctx, c, "list branches", path, url.Values{})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(branches))
	for _, b := range branches {
		names = append(names, b.Name)
	}
	return names, nil
}

// ListCommits returns every commit of branch, newest first. A zero since
// lists the whole history.
func (c *Client) ListCommits(ctx context.Context, owner, repo, branch string, since time.Time) ([]models.RawCommit, error) {
	path := fmt.Sprintf("/repos/%s/%s/commits", url.PathEscape(owner), url.PathEscape(repo))
	q := url.Values{}
	if branch != "" {
		q.Set("sha", branch)
	}
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	commits, err := listAll[models.RawCommit](ctx, c, "list commits", path, q)
	if err != nil {
		return nil, err
	}
	c.log.Debug("github: commits fetched",
		slog.String("repo", owner+"/"+repo),
		slog.String("branch", branch),
		slog.Int("count", len(commits)))
	return commits, nil
}

// listAll fetches pages in order until one comes back short. Any failed
// page fails the whole listing.
func listAll[T any](ctx context.Context, c *Client, op, path string, q url.Values) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		q.Set("per_page", strconv.Itoa(c.pageSize))
		q.Set("page", strconv.Itoa(page))

		var batch []T
		if err := c.getJSON(ctx, op, path+"?"+q.Encode(), &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < c.pageSize {
			return all, nil
		}
	}
}

func (c *Client) getJSON(ctx context.Context, op, pathAndQuery string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.pageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return fmt.Errorf("github: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &FetchError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("github: %s: decode: %w", op, err)
	}
	return nil
}
