package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// MaxPerPage is the largest page size the CMS accepts.
const MaxPerPage = 100

const invalidPageCode = "rest_post_invalid_page_number"

// Client is a read-only client for the CMS REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

func NewClient(baseURL string, httpClient *http.Client, userAgent string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

// TagBySlug returns the tag with the exact slug, or nil if none exists.
func (c *Client) TagBySlug(ctx context.Context, slug string) (*Tag, error) {
	var tags []Tag
	query := url.Values{"slug": {slug}}
	if _, err := c.get(ctx, "/tags", query, &tags); err != nil {
		return nil, fmt.Errorf("failed to get tag %q: %w", slug, err)
	}

	for i := range tags {
		if tags[i].Slug == slug {
			return &tags[i], nil
		}
	}
	return nil, nil
}

// SearchTags returns every tag whose name the CMS considers a search match.
// The result is a superset; exact matching is up to the caller.
func (c *Client) SearchTags(ctx context.Context, name string) ([]Tag, error) {
	var tags []Tag
	query := url.Values{
		"search":   {name},
		"per_page": {strconv.Itoa(MaxPerPage)},
	}
	if _, err := c.get(ctx, "/tags", query, &tags); err != nil {
		return nil, fmt.Errorf("failed to search tags %q: %w", name, err)
	}
	return tags, nil
}

// Posts returns one page of posts carrying any of the tag IDs, newest first.
func (c *Client) Posts(ctx context.Context, tagIDs []int, perPage, page int) (*PostsPage, error) {
	if perPage <= 0 || perPage > MaxPerPage {
		return nil, fmt.Errorf("per_page must be between 1 and %d, got %d", MaxPerPage, perPage)
	}
	if page < 1 {
		page = 1
	}

	ids := make([]string, len(tagIDs))
	for i, id := range tagIDs {
		ids[i] = strconv.Itoa(id)
	}

	query := url.Values{
		"tags":     {strings.Join(ids, ",")},
		"per_page": {strconv.Itoa(perPage)},
		"page":     {strconv.Itoa(page)},
		"orderby":  {"date"},
		"order":    {"desc"},
		"_embed":   {"1"},
	}

	var posts []Post
	header, err := c.get(ctx, "/posts", query, &posts)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == invalidPageCode {
			slog.Debug("Requested page beyond last upstream page", "tags", ids, "page", page)
			return &PostsPage{Page: page}, nil
		}
		return nil, fmt.Errorf("failed to get posts for tags %v page %d: %w", ids, page, err)
	}

	result := &PostsPage{
		Posts: posts,
		Page:  page,
	}

	if totalPages, err := strconv.Atoi(header.Get("X-WP-TotalPages")); err == nil {
		result.TotalPages = totalPages
		result.HasMore = page < totalPages
	} else {
		result.HasMore = len(posts) == perPage
	}

	return result, nil
}

// PostBySlug returns the post with the exact slug, or nil if none exists.
func (c *Client) PostBySlug(ctx context.Context, slug string) (*Post, error) {
	var posts []Post
	query := url.Values{
		"slug":   {slug},
		"_embed": {"1"},
	}
	if _, err := c.get(ctx, "/posts", query, &posts); err != nil {
		return nil, fmt.Errorf("failed to get post %q: %w", slug, err)
	}

	for i := range posts {
		if posts[i].Slug == slug {
			return &posts[i], nil
		}
	}
	return nil, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result any) (http.Header, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, body)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}

	return resp.Header, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Code != "" {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		return apiErr
	}

	msg := string(body)
	if len(msg) > 200 {
		msg = msg[:200]
	}
	apiErr.Message = msg
	return apiErr
}
