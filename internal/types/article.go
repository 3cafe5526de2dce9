package types

import "time"

// Article field names used in change records.
const (
	FieldTitle       = "title"
	FieldContent     = "content"
	FieldImage       = "image"
	FieldPublishedAt = "published_at"
	FieldCategory    = "category"
)

// Article is a persisted, de-duplicated news item keyed by URL.
type Article struct {
	ID          string     `json:"id"           bson:"_id"`
	URL         string     `json:"url"          bson:"url"`
	Source      string     `json:"source"       bson:"source"`
	Title       string     `json:"title"        bson:"title"`
	Content     string     `json:"content"      bson:"content"`
	PublishedAt *time.Time `json:"published_at,omitempty" bson:"published_at,omitempty"`
	ImageURL    *string    `json:"image_url,omitempty"    bson:"image_url,omitempty"`
	Category    *string    `json:"category,omitempty"     bson:"category,omitempty"`
	CreatedAt   time.Time  `json:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"   bson:"updated_at"`
}

// ChangeRecord is an append-only audit row for one field of one article.
type ChangeRecord struct {
	ID         string    `json:"id"          bson:"_id"`
	ArticleID  string    `json:"article_id"  bson:"article_id"`
	Field      string    `json:"field"       bson:"field"`
	OldValue   string    `json:"old_value"   bson:"old_value"`
	NewValue   string    `json:"new_value"   bson:"new_value"`
	DetectedAt time.Time `json:"detected_at" bson:"detected_at"`
}

// ExtractedArticle is the transient output of the extractor for one URL.
// PublishDate is kept raw; it is parsed when the article is reconciled.
type ExtractedArticle struct {
	URL         string
	Source      string
	Title       string
	Content     string
	PublishDate string
	ImageURL    string
	Category    string

	// Strategy names the extraction strategy that produced the content.
	Strategy string
}

// CandidateLink is an absolute URL judged likely to be an article.
type CandidateLink struct {
	URL string
	// Rule names the heuristic that accepted the link.
	Rule string
}

// Summary is what the orchestrator reports for each processed article.
type Summary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Source is a listing page registered for monitoring.
type Source struct {
	ID            string     `json:"id"                        bson:"_id"`
	URL           string     `json:"url"                       bson:"url"`
	Name          string     `json:"name"                      bson:"name"`
	Enabled       bool       `json:"enabled"                   bson:"enabled"`
	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty" bson:"last_scraped_at,omitempty"`
	OwnerID       *string    `json:"owner_id,omitempty"        bson:"owner_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"                bson:"created_at"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
