package models

import (
	"regexp"
	"strings"
	"time"
)

// Post types and taxonomies owned by the ad manager.
const (
	PostTypeAd         = "adcmdr_ads"
	PostTypePlacement  = "adcmdr_placements"
	PostTypeAttachment = "attachment"
	TaxonomyGroups     = "adcmdr_groups"
)

// Post statuses.
const (
	StatusPublish = "publish"
	StatusDraft   = "draft"
	StatusPending = "pending"
	StatusPrivate = "private"
	StatusFuture  = "future"
	StatusTrash   = "trash"
	StatusInherit = "inherit"
)

// Host meta keys outside the ad manager namespace.
const (
	MetaKeyThumbnail    = "_thumbnail_id"
	MetaKeyAttachedFile = "_attached_file"
)

// PostDateLayout is the on-the-wire format for post and stat timestamps.
const PostDateLayout = "2006-01-02 15:04:05"

// Max lengths enforced before insert.
const (
	MaxTitleLength = 1000
	MaxSlugLength  = 200
)

// Post is an ad, placement or attachment row in the host content store.
type Post struct {
	ID          int64     `json:"ID"`
	Type        string    `json:"post_type"`
	Status      string    `json:"post_status"`
	Date        time.Time `json:"post_date"`
	DateGMT     time.Time `json:"post_date_gmt"`
	Content     string    `json:"post_content"`
	Title       string    `json:"post_title"`
	Name        string    `json:"post_name"`
	Modified    time.Time `json:"post_modified"`
	ModifiedGMT time.Time `json:"post_modified_gmt"`
	MenuOrder   int       `json:"menu_order"`
	GUID        string    `json:"guid,omitempty"`
	MimeType    string    `json:"post_mime_type,omitempty"`
}

// CreatePostRequest holds the fields for inserting a post. A nil date lets
// the store assign the current time.
type CreatePostRequest struct {
	Type      string
	Status    string
	Date      *time.Time
	DateGMT   *time.Time
	Content   string
	Title     string
	Name      string
	MenuOrder int
	GUID      string
	MimeType  string
}

// Validate checks the request before it reaches the store.
func (r *CreatePostRequest) Validate() error {
	if r.Type == "" {
		return ErrMissingPostType
	}

	if len(r.Title) > MaxTitleLength {
		return ErrFieldTooLong("post_title", MaxTitleLength)
	}

	if len(r.Name) > MaxSlugLength {
		return ErrFieldTooLong("post_name", MaxSlugLength)
	}

	return nil
}

// Group is an ad group term.
type Group struct {
	ID   int64  `json:"term_id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CreateGroupRequest holds the fields for inserting a group term.
type CreateGroupRequest struct {
	Name string
	Slug string
}

// Validate checks the request before it reaches the store.
func (r *CreateGroupRequest) Validate() error {
	if r.Name == "" {
		return ErrMissingName
	}

	if len(r.Name) > MaxTitleLength {
		return ErrFieldTooLong("name", MaxTitleLength)
	}

	if len(r.Slug) > MaxSlugLength {
		return ErrFieldTooLong("slug", MaxSlugLength)
	}

	return nil
}

// Meta is a post or term metadata bag keyed by namespaced meta key.
type Meta map[string]string

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and collapses every run of other characters into a
// single hyphen.
func Slugify(s string) string {
	slug := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}

	return slug
}
