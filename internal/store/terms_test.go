package store_test

import (
	"context"
	"testing"

	"github.com/adcommander/adcmdr-tools/internal/models"
	"github.com/adcommander/adcmdr-tools/internal/store"
)

func TestCreateGroup_UniqueSlugs(t *testing.T) {
	gs := store.NewGroupStore(setupTestBase(t))
	ctx := context.Background()

	a, err := gs.CreateGroup(ctx, models.CreateGroupRequest{Name: "Sidebar"}, models.Meta{"adcmdr_mode": "grid"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	b, err := gs.CreateGroup(ctx, models.CreateGroupRequest{Name: "Sidebar_x", Slug: "sidebar"}, nil)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	if a.Slug != "sidebar" || b.Slug != "sidebar-2" {
		t.Errorf("slugs = %q, %q; want sidebar, sidebar-2", a.Slug, b.Slug)
	}

	exists, err := gs.GroupNameExists(ctx, "Sidebar")
	if err != nil || !exists {
		t.Errorf("GroupNameExists(Sidebar) = %v, %v", exists, err)
	}

	exists, _ = gs.GroupNameExists(ctx, "sidebar")
	if exists {
		t.Error("GroupNameExists must match the exact name")
	}

	meta, _ := gs.GroupMeta(ctx, a.ID)
	if meta["adcmdr_mode"] != "grid" {
		t.Errorf("meta = %v", meta)
	}

	groups, err := gs.ListGroups(ctx)
	if err != nil || len(groups) != 2 {
		t.Errorf("ListGroups = %v, %v", groups, err)
	}
}

func TestPostGroups(t *testing.T) {
	base := setupTestBase(t)
	gs := store.NewGroupStore(base)
	ps := store.NewPostStore(base)
	ctx := context.Background()

	g1, _ := gs.CreateGroup(ctx, models.CreateGroupRequest{Name: "Top"}, nil)
	g2, _ := gs.CreateGroup(ctx, models.CreateGroupRequest{Name: "Bottom"}, nil)

	ad, err := ps.CreatePost(ctx, models.CreatePostRequest{Type: models.PostTypeAd}, nil)
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	if err := gs.SetPostGroups(ctx, ad.ID, []int64{g1.ID, g2.ID, 424242}); err != nil {
		t.Fatalf("SetPostGroups: %v", err)
	}

	if err := gs.SetPostGroups(ctx, ad.ID, []int64{g1.ID}); err != nil {
		t.Fatalf("SetPostGroups again: %v", err)
	}

	got, err := gs.PostGroups(ctx, ad.ID)
	if err != nil {
		t.Fatalf("PostGroups: %v", err)
	}

	if len(got) != 2 || got[0].ID != g1.ID || got[1].ID != g2.ID {
		t.Errorf("PostGroups = %+v", got)
	}
}
