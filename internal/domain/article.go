package domain

import "time"

// Article is a discovered document persisted for a topic.
type Article struct {
	ID          int64
	URL         string
	Title       string
	Snippet     string
	Content     string
	Source      string
	TopicID     string
	Processed   bool
	PublishedAt *time.Time
	CreatedAt   time.Time
}

// SearchHit is a raw search provider result; every field except URL may be empty.
type SearchHit struct {
	URL           string
	Title         string
	Content       string
	RawContent    string
	PublishedDate string
	Source        string
}

// ArticleRef is the minimal article projection shown next to a verified update.
type ArticleRef struct {
	ID    int64  `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}
