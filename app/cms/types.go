package cms

// Tag is a CMS label as returned by the tags endpoint.
type Tag struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

// Rendered wraps the HTML fields of a post.
type Rendered struct {
	Rendered string `json:"rendered"`
}

type Post struct {
	ID       int       `json:"id"`
	Slug     string    `json:"slug"`
	Link     string    `json:"link"`
	Date     string    `json:"date"`     // site-local, no offset
	DateGMT  string    `json:"date_gmt"` // UTC, no offset
	Title    Rendered  `json:"title"`
	Content  Rendered  `json:"content"`
	Excerpt  Rendered  `json:"excerpt"`
	Tags     []int     `json:"tags"`
	Embedded *Embedded `json:"_embedded,omitempty"`
}

// Embedded holds the linked resources requested with _embed=1.
type Embedded struct {
	Author        []EmbeddedAuthor `json:"author"`
	FeaturedMedia []EmbeddedMedia  `json:"wp:featuredmedia"`
	Terms         [][]EmbeddedTerm `json:"wp:term"`
}

type EmbeddedAuthor struct {
	Name string `json:"name"`
}

type EmbeddedMedia struct {
	SourceURL string `json:"source_url"`
	AltText   string `json:"alt_text"`
}

type EmbeddedTerm struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Taxonomy string `json:"taxonomy"`
}

// PostsPage is one upstream page of posts.
type PostsPage struct {
	Posts      []Post
	Page       int
	TotalPages int // 0 when the upstream did not report it
	HasMore    bool
}

// AuthorName returns the first embedded author, if any.
func (p *Post) AuthorName() string {
	if p.Embedded == nil || len(p.Embedded.Author) == 0 {
		return ""
	}
	return p.Embedded.Author[0].Name
}

// FeaturedImage returns the source URL of the embedded featured media, if any.
func (p *Post) FeaturedImage() string {
	if p.Embedded == nil || len(p.Embedded.FeaturedMedia) == 0 {
		return ""
	}
	return p.Embedded.FeaturedMedia[0].SourceURL
}

// CategoryName returns the name of the first embedded category term.
func (p *Post) CategoryName() string {
	if p.Embedded == nil {
		return ""
	}
	for _, group := range p.Embedded.Terms {
		for _, term := range group {
			if term.Taxonomy == "category" && term.Name != "" {
				return term.Name
			}
		}
	}
	return ""
}
