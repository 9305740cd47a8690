package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/tagfeed/app/database"
	"github.com/lysyi3m/tagfeed/app/entity"
	"github.com/lysyi3m/tagfeed/app/feed"
	"github.com/lysyi3m/tagfeed/app/tasks"
)

const (
	defaultResolutionLimit = 100
	maxResolutionLimit     = 1000
)

func NewHandler(resolver ResolverInterface, aliases *entity.AliasTable, aggregator AggregatorInterface,
	articles ArticleFinderInterface, resolutionRepo database.ResolutionRepository,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		resolver:       resolver,
		aliases:        aliases,
		aggregator:     aggregator,
		articles:       articles,
		generator:      feed.NewGenerator(),
		resolutionRepo: resolutionRepo,
		scheduler:      scheduler,
	}
}

// GetFeed serves one page of a tag feed.
func (h *Handler) GetFeed(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	tagIDs, err := parseTagIDs(c.Query("tagIds"), c.Query("tagId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid tag IDs",
			"message": err.Error(),
		})
		return
	}

	cursor := c.Query("cursor")
	req := feed.Request{
		TagIDs:  tagIDs,
		Page:    parseCursor(cursor),
		PinSlug: strings.TrimSpace(c.Query("pinSlug")),
	}

	result, err := h.aggregator.Run(c.Request.Context(), req)
	if err != nil {
		slog.Error("Feed build failed", "tag_ids", tagIDs, "page", req.Page, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to build feed",
			"message": err.Error(),
		})
		return
	}

	response := gin.H{
		"items":      result.Page.Items,
		"nextCursor": result.Page.NextCursor,
	}
	if c.Query("debug") == "1" {
		addDebugInfo(response, result, req, cursor)
	}

	c.JSON(http.StatusOK, response)
}

// GetEntity serves an entity page: the resolved entity and its first feed
// page. Alias slugs redirect to the canonical slug; unknown entities fall
// back to an article with the same slug.
func (h *Handler) GetEntity(c *gin.Context) {
	slug := strings.ToLower(strings.TrimSpace(c.Param("slug")))

	if canonical := h.aliases.ResolveCanonicalSlug(slug); canonical != slug {
		c.Redirect(http.StatusMovedPermanently, canonicalLocation(canonical, c.Request.URL.Query()))
		return
	}

	c.Header("Cache-Control", "no-store")

	resolved, err := h.resolver.Resolve(c.Request.Context(), slug)
	if errors.Is(err, entity.ErrNotFound) {
		h.articleFallback(c, slug, err)
		return
	}
	if err != nil {
		slog.Error("Entity resolution failed", "slug", slug, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to resolve entity",
			"message": err.Error(),
		})
		return
	}

	h.recordResolution(resolved)

	cursor := c.Query("cursor")
	req := feed.Request{
		TagIDs:  resolved.TagIDs,
		Page:    parseCursor(cursor),
		PinSlug: strings.TrimSpace(c.Query("from")),
	}

	result, err := h.aggregator.Run(c.Request.Context(), req)
	if err != nil {
		slog.Error("Feed build failed", "slug", slug, "tag_ids", resolved.TagIDs, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to build feed",
			"message": err.Error(),
		})
		return
	}

	response := gin.H{
		"entity":     resolved,
		"items":      result.Page.Items,
		"nextCursor": result.Page.NextCursor,
	}
	if c.Query("debug") == "1" {
		addDebugInfo(response, result, req, cursor)
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) articleFallback(c *gin.Context, slug string, resolveErr error) {
	article, err := h.articles.ArticleBySlug(c.Request.Context(), slug)
	if err != nil {
		slog.Warn("Article fallback lookup failed", "slug", slug, "error", err)
	}

	if article == nil {
		slog.Debug("Neither entity nor article found", "slug", slug, "error", resolveErr)
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not found",
			"message": fmt.Sprintf("No entity or article with slug %q", slug),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"article": article})
}

// GetEntityRSS renders the first page of an entity feed as RSS.
func (h *Handler) GetEntityRSS(c *gin.Context) {
	slug := h.aliases.ResolveCanonicalSlug(strings.ToLower(strings.TrimSpace(c.Param("slug"))))

	resolved, err := h.resolver.Resolve(c.Request.Context(), slug)
	if errors.Is(err, entity.ErrNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Entity resolution failed", "slug", slug, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	h.recordResolution(resolved)

	result, err := h.aggregator.Run(c.Request.Context(), feed.Request{TagIDs: resolved.TagIDs, Page: 1})
	if err != nil {
		slog.Error("Feed build failed", "slug", slug, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(feed.Channel{
		Slug:  resolved.Slug,
		Title: resolved.DisplayName,
	}, result.Page.Items)
	if err != nil {
		slog.Error("RSS generation error", "slug", slug, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("Cache-Control", "no-store")
	c.Header("X-Feed-Items", strconv.Itoa(len(result.Page.Items)))
	c.Header("X-Entity-Slug", resolved.Slug)

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"aliases":   h.aliases.Count(),
	}

	if count, err := h.resolutionRepo.GetResolutionCount(); err == nil {
		health["resolutions"] = count
	}

	c.JSON(http.StatusOK, health)
}

// APIListResolutions lists recorded entity resolutions. Entities backed by
// more tags than the alias table declares are flagged for editors.
func (h *Handler) APIListResolutions(c *gin.Context) {
	limit := defaultResolutionLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid limit",
				"message": "limit must be a positive integer",
			})
			return
		}
		limit = min(parsed, maxResolutionLimit)
	}

	resolutions, err := h.resolutionRepo.GetResolutions(limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_resolutions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Database error",
			"message": err.Error(),
		})
		return
	}

	entities := make([]map[string]interface{}, 0, len(resolutions))
	for _, resolution := range resolutions {
		declared := h.aliases.ExpandAliases(resolution.Slug)
		entities = append(entities, map[string]interface{}{
			"slug":                  resolution.Slug,
			"display_name":          resolution.DisplayName,
			"tag_ids":               resolution.TagIDs,
			"slugs":                 resolution.Slugs,
			"declared_slugs":        declared,
			"undeclared_duplicates": len(resolution.TagIDs) > len(declared),
			"fallback":              resolution.Fallback,
			"hits":                  resolution.Hits,
			"first_seen_at":         resolution.FirstSeenAt.In(time.Local).Format(time.RFC3339),
			"resolved_at":           resolution.ResolvedAt.In(time.Local).Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"entities": entities,
		"total":    len(entities),
	})
}

func (h *Handler) APIListAliases(c *gin.Context) {
	groups := h.aliases.Groups()

	c.JSON(http.StatusOK, map[string]interface{}{
		"aliases": groups,
		"total":   len(groups),
	})
}

func (h *Handler) recordResolution(resolved *entity.Entity) {
	task := tasks.NewRecordResolutionTask(database.Resolution{
		Slug:        resolved.Slug,
		DisplayName: resolved.DisplayName,
		TagIDs:      resolved.TagIDs,
		Slugs:       resolved.Slugs,
		Fallback:    resolved.Fallback,
		ResolvedAt:  time.Now(),
	}, h.resolutionRepo)

	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue RecordResolutionTask", "slug", resolved.Slug, "error", err)
	}
}

// parseTagIDs reads the preferred tagIds list, falling back to the legacy
// tagId parameter. Both accept comma-separated IDs; duplicates are dropped.
func parseTagIDs(tagIDs, legacy string) ([]int, error) {
	raw := tagIDs
	if strings.TrimSpace(raw) == "" {
		raw = legacy
	}

	var ids []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id < 1 {
			return nil, fmt.Errorf("invalid tag ID %q", part)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("tagIds or tagId is required")
	}
	return ids, nil
}

// parseCursor turns a page cursor into a 1-based page. Missing or invalid
// cursors mean the first page.
func parseCursor(cursor string) int {
	page, err := strconv.Atoi(strings.TrimSpace(cursor))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func canonicalLocation(canonical string, query url.Values) string {
	kept := url.Values{}
	for _, key := range []string{"from", "debug"} {
		if value := query.Get(key); value != "" {
			kept.Set(key, value)
		}
	}

	location := "/entities/" + url.PathEscape(canonical)
	if len(kept) > 0 {
		location += "?" + kept.Encode()
	}
	return location
}

func addDebugInfo(response gin.H, result *feed.Result, req feed.Request, cursor string) {
	preview := make([]datePreview, 0, 5)
	for _, article := range result.Page.Items[:min(5, len(result.Page.Items))] {
		preview = append(preview, datePreview{
			ID:      article.ID,
			Date:    article.Date,
			RawDate: article.RawDate,
		})
	}

	response["received"] = receivedInfo{
		TagIDs:     result.TagIDs,
		Cursor:     cursor,
		Page:       req.Page,
		PinSlug:    req.PinSlug,
		MultiTag:   result.MultiTag,
		FailedTags: result.FailedTags,
	}
	response["pinned"] = result.Pin
	response["first5"] = preview
}
