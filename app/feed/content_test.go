package feed

import (
	"strings"
	"testing"
)

func TestContentCleanerPassthrough(t *testing.T) {
	cleaner := NewContentCleaner()

	content := "<p>Plain   content with <em>markup</em> &amp; entities</p>\n<br>"
	out, embeds, err := cleaner.Run(content)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if out != content {
		t.Errorf("Expected content without embeds to be unchanged, got '%s'", out)
	}

	if len(embeds) != 0 {
		t.Errorf("Expected no embeds, got %v", embeds)
	}
}

func TestContentCleanerEmbeds(t *testing.T) {
	cleaner := NewContentCleaner()

	content := `<p>Intro</p>` +
		`<p><blockquote class="instagram-media" data-instgrm-permalink="https://www.instagram.com/p/abc/"><a href="https://www.instagram.com/p/abc/">View</a></blockquote></p>` +
		`<script async src="//www.instagram.com/embed.js"></script>` +
		`<p>Outro</p>`

	out, embeds, err := cleaner.Run(content)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if strings.Contains(out, "embed.js") {
		t.Error("Expected embed loader script to be removed")
	}

	if strings.Contains(out, "<p></p>") {
		t.Errorf("Expected empty paragraphs around the embed to be removed, got '%s'", out)
	}

	intro := strings.Index(out, "<p>Intro</p>")
	embed := strings.Index(out, `<blockquote class="instagram-media"`)
	outro := strings.Index(out, "<p>Outro</p>")
	if intro == -1 || embed == -1 || outro == -1 {
		t.Fatalf("Expected intro, embed and outro to be preserved, got '%s'", out)
	}
	if !(intro < embed && embed < outro) {
		t.Errorf("Expected embed between intro and outro, got '%s'", out)
	}

	if len(embeds) != 1 || embeds[0] != "https://www.instagram.com/p/abc/" {
		t.Errorf("Expected embed permalink, got %v", embeds)
	}
}

func TestContentCleanerEmbedLinkFallback(t *testing.T) {
	cleaner := NewContentCleaner()

	content := `<blockquote class="instagram-media"><a href="https://www.instagram.com/p/xyz/">View</a></blockquote>`
	_, embeds, err := cleaner.Run(content)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(embeds) != 1 || embeds[0] != "https://www.instagram.com/p/xyz/" {
		t.Errorf("Expected permalink from embed link, got %v", embeds)
	}
}

func TestPlainText(t *testing.T) {
	cleaner := NewContentCleaner()

	tests := []struct {
		input    string
		expected string
	}{
		{"Simple title", "Simple title"},
		{"Kendrick Lamar&#8217;s <em>new</em> album", "Kendrick Lamar’s new album"},
		{"<p>Excerpt text [&hellip;]</p>\n", "Excerpt text […]"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"", ""},
	}

	for _, test := range tests {
		result := cleaner.PlainText(test.input)
		if result != test.expected {
			t.Errorf("For input '%s', expected '%s', got '%s'", test.input, test.expected, result)
		}
	}
}
