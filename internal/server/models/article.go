package models

import "time"

// Article is the rich-text body attached to a marker (1:1).
type Article struct {
	ID        string
	MarkerID  string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ArticleDetail is an article with its committed media.
type ArticleDetail struct {
	Article *Article
	Media   []*MediaAsset
}
