package feed

// Article is a CMS post normalized for feed display. ID is the post slug.
type Article struct {
	ID       string   `json:"id"`
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Excerpt  string   `json:"excerpt"`
	Image    string   `json:"image"`
	Category string   `json:"category"`
	Author   string   `json:"author"`
	Link     string   `json:"link,omitempty"`
	Date     string   `json:"date"`              // display only
	RawDate  string   `json:"rawDate,omitempty"` // RFC 3339, sort key
	Comments int      `json:"comments"`
	Embeds   []string `json:"embeds,omitempty"`
}

// Page is one page of a feed. NextCursor is nil when the feed is exhausted.
type Page struct {
	Items      []Article `json:"items"`
	NextCursor *string   `json:"nextCursor"`
}

// Request describes one feed page to build.
type Request struct {
	TagIDs  []int
	Page    int // 1-based
	PinSlug string
}

type PinAction string

const (
	PinNone     PinAction = "none"
	PinKept     PinAction = "already-first"
	PinMoved    PinAction = "moved"
	PinInserted PinAction = "inserted"
)

// PinResult records what happened to a pin request. Pinning never fails a feed.
type PinResult struct {
	Requested string    `json:"requested,omitempty"`
	Applied   bool      `json:"applied"`
	Action    PinAction `json:"action"`
	Reason    string    `json:"reason,omitempty"`
}

// Result is a built feed page plus the details the debug echo reports.
type Result struct {
	Page       Page
	Pin        PinResult
	TagIDs     []int
	FailedTags []int
	MultiTag   bool
}
