// Package service implements bundle export, import and stats maintenance.
package service

import (
	"context"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

// The store interfaces below are defined at the consumer so the store
// package depends on no service types.

// postStore reads and writes ad, placement and attachment posts.
type postStore interface {
	CreatePost(ctx context.Context, req models.CreatePostRequest, meta models.Meta) (*models.Post, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	ListPosts(ctx context.Context, postType string) ([]models.Post, error)
	PostIDs(ctx context.Context, postType string) ([]int64, error)
	PostExists(ctx context.Context, id int64, postType string) (bool, error)
	PostMeta(ctx context.Context, id int64) (models.Meta, error)
	SetPostMeta(ctx context.Context, id int64, meta models.Meta) error
}

// groupStore reads and writes ad group terms and their post relationships.
type groupStore interface {
	CreateGroup(ctx context.Context, req models.CreateGroupRequest, meta models.Meta) (*models.Group, error)
	GroupNameExists(ctx context.Context, name string) (bool, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	GroupMeta(ctx context.Context, id int64) (models.Meta, error)
	SetGroupMeta(ctx context.Context, id int64, meta models.Meta) error
	SetPostGroups(ctx context.Context, postID int64, groupIDs []int64) error
	PostGroups(ctx context.Context, postID int64) ([]models.Group, error)
}

// statsStore reads and writes the impression and click tables.
type statsStore interface {
	InsertStat(ctx context.Context, stat models.Stat) (bool, error)
	StatsForAds(ctx context.Context, kind models.StatKind, adIDs []int64) ([]models.Stat, error)
	FindRogue(ctx context.Context) (*models.RogueStats, error)
	DeleteStatsForAds(ctx context.Context, kind models.StatKind, adIDs []int64) (int64, error)
	DeleteAllStats(ctx context.Context) (*models.DeleteStatsResult, error)
}

// imageSideloader downloads a remote image and returns the new attachment id.
type imageSideloader interface {
	Sideload(ctx context.Context, rawURL string) (int64, error)
}
