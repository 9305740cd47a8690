package feed

import (
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

const (
	embedSelector       = "blockquote.instagram-media"
	embedScriptSelector = `script[src*="instagram.com/embed.js"]`
	embedPermalinkAttr  = "data-instgrm-permalink"
)

// ContentCleaner rewrites CMS-rendered post HTML for feed display. Embed
// loader scripts are dropped (the page loads the widget once), the empty
// paragraphs the editor leaves around embeds are removed and embed
// permalinks are collected. Content without embeds is returned untouched.
type ContentCleaner struct {
	textPolicy *bluemonday.Policy
}

func NewContentCleaner() *ContentCleaner {
	return &ContentCleaner{
		textPolicy: bluemonday.StrictPolicy(),
	}
}

func (c *ContentCleaner) Run(content string) (string, []string, error) {
	if !strings.Contains(content, "instagram-media") && !strings.Contains(content, "instagram.com/embed.js") {
		return content, nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse content: %w", err)
	}

	removed := doc.Find(embedScriptSelector).Remove().Length()

	var embeds []string
	emptied := 0
	doc.Find(embedSelector).Each(func(_ int, embed *goquery.Selection) {
		if permalink := embedPermalink(embed); permalink != "" {
			embeds = append(embeds, permalink)
		}

		// an embed typed inside a paragraph parses as a sibling between
		// two empty paragraph shells
		for _, sibling := range []*goquery.Selection{embed.Prev(), embed.Next()} {
			if isEmptyParagraph(sibling) {
				sibling.Remove()
				emptied++
			}
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", nil, fmt.Errorf("failed to render content: %w", err)
	}

	slog.Debug("Embeds rewritten",
		"embeds", len(embeds),
		"scripts_removed", removed,
		"empty_paragraphs_removed", emptied)

	return strings.TrimSpace(out), embeds, nil
}

// PlainText strips all markup and decodes entities, e.g. for titles and
// excerpts rendered by the CMS.
func (c *ContentCleaner) PlainText(s string) string {
	text := html.UnescapeString(c.textPolicy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

func isEmptyParagraph(s *goquery.Selection) bool {
	if s.Length() == 0 || !s.Is("p") {
		return false
	}
	return strings.TrimSpace(s.Text()) == "" && s.Children().Not("br").Length() == 0
}

func embedPermalink(embed *goquery.Selection) string {
	if permalink, ok := embed.Attr(embedPermalinkAttr); ok && permalink != "" {
		return strings.TrimSpace(permalink)
	}
	if href, ok := embed.Find("a[href]").First().Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	return ""
}
