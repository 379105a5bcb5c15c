package service_test

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

type statKey struct {
	adID int64
	ts   time.Time
}

// fakeHost is an in-memory host site implementing the post, group and stats
// stores consumed by the services.
type fakeHost struct {
	mu sync.Mutex

	nextPost  int64
	nextGroup int64
	nextStat  int64

	posts      map[int64]*models.Post
	postMeta   map[int64]models.Meta
	groups     map[int64]*models.Group
	groupMeta  map[int64]models.Meta
	postGroups map[int64][]int64
	stats      map[models.StatKind]map[statKey]models.Stat

	// onCreatePost runs before a post is stored. A non-nil error fails it.
	onCreatePost func(req models.CreatePostRequest) error
}

// newFakeHost returns an empty host whose post and group ids start at the
// given values.
func newFakeHost(firstPost, firstGroup int64) *fakeHost {
	return &fakeHost{
		nextPost:   firstPost,
		nextGroup:  firstGroup,
		posts:      make(map[int64]*models.Post),
		postMeta:   make(map[int64]models.Meta),
		groups:     make(map[int64]*models.Group),
		groupMeta:  make(map[int64]models.Meta),
		postGroups: make(map[int64][]int64),
		stats: map[models.StatKind]map[statKey]models.Stat{
			models.StatImpression: {},
			models.StatClick:      {},
		},
	}
}

func copyMeta(m models.Meta) models.Meta {
	out := make(models.Meta, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// --- seeding helpers ---

func (h *fakeHost) addPost(p models.Post, meta models.Meta) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	p.ID = h.nextPost
	h.nextPost++
	h.posts[p.ID] = &p
	h.postMeta[p.ID] = copyMeta(meta)

	return p.ID
}

func (h *fakeHost) addGroup(name string, meta models.Meta) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	g := &models.Group{ID: h.nextGroup, Name: name, Slug: models.Slugify(name)}
	h.nextGroup++
	h.groups[g.ID] = g
	h.groupMeta[g.ID] = copyMeta(meta)

	return g.ID
}

func (h *fakeHost) addStat(kind models.StatKind, adID int64, ts time.Time, count int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextStat++
	h.stats[kind][statKey{adID, ts}] = models.Stat{ID: h.nextStat, AdID: adID, Timestamp: ts, Count: count, Kind: kind}
}

func (h *fakeHost) relate(postID int64, groupIDs ...int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.postGroups[postID] = groupIDs
}

func (h *fakeHost) postsOfType(postType string) []models.Post {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []models.Post

	for _, p := range h.posts {
		if p.Type == postType {
			out = append(out, *p)
		}
	}

	slices.SortFunc(out, func(a, b models.Post) int { return int(a.ID - b.ID) })

	return out
}

func (h *fakeHost) allGroups() []models.Group {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.Group, 0, len(h.groups))
	for _, g := range h.groups {
		out = append(out, *g)
	}

	slices.SortFunc(out, func(a, b models.Group) int { return int(a.ID - b.ID) })

	return out
}

func (h *fakeHost) metaOf(id int64) models.Meta {
	h.mu.Lock()
	defer h.mu.Unlock()

	return copyMeta(h.postMeta[id])
}

func (h *fakeHost) groupMetaOf(id int64) models.Meta {
	h.mu.Lock()
	defer h.mu.Unlock()

	return copyMeta(h.groupMeta[id])
}

func (h *fakeHost) groupsOf(postID int64) []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return slices.Clone(h.postGroups[postID])
}

func (h *fakeHost) statCount(kind models.StatKind) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.stats[kind])
}

func (h *fakeHost) statsOf(kind models.StatKind, adID int64) []models.Stat {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []models.Stat

	for k, s := range h.stats[kind] {
		if k.adID == adID {
			out = append(out, s)
		}
	}

	return out
}

// --- postStore ---

func (h *fakeHost) CreatePost(_ context.Context, req models.CreatePostRequest, meta models.Meta) (*models.Post, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if h.onCreatePost != nil {
		if err := h.onCreatePost(req); err != nil {
			return nil, err
		}
	}

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	p := models.Post{
		Type:        req.Type,
		Status:      req.Status,
		Date:        now,
		DateGMT:     now,
		Content:     req.Content,
		Title:       req.Title,
		Name:        req.Name,
		Modified:    now,
		ModifiedGMT: now,
		MenuOrder:   req.MenuOrder,
		GUID:        req.GUID,
		MimeType:    req.MimeType,
	}

	if p.Status == "" {
		p.Status = models.StatusDraft
	}

	if req.Date != nil {
		p.Date = *req.Date
	}

	if req.DateGMT != nil {
		p.DateGMT = *req.DateGMT
	}

	p.ID = h.addPost(p, meta)

	return &p, nil
}

func (h *fakeHost) GetPost(_ context.Context, id int64) (*models.Post, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.posts[id]
	if !ok {
		return nil, models.ErrPostNotFound
	}

	out := *p

	return &out, nil
}

func (h *fakeHost) ListPosts(_ context.Context, postType string) ([]models.Post, error) {
	var out []models.Post

	for _, p := range h.postsOfType(postType) {
		if p.Status != models.StatusTrash {
			out = append(out, p)
		}
	}

	return out, nil
}

func (h *fakeHost) PostIDs(_ context.Context, postType string) ([]int64, error) {
	var ids []int64
	for _, p := range h.postsOfType(postType) {
		ids = append(ids, p.ID)
	}

	return ids, nil
}

func (h *fakeHost) PostExists(_ context.Context, id int64, postType string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.posts[id]

	return ok && p.Type == postType, nil
}

func (h *fakeHost) PostMeta(_ context.Context, id int64) (models.Meta, error) {
	return h.metaOf(id), nil
}

func (h *fakeHost) SetPostMeta(_ context.Context, id int64, meta models.Meta) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.posts[id]; !ok {
		return models.ErrPostNotFound
	}

	for k, v := range meta {
		h.postMeta[id][k] = v
	}

	return nil
}

// --- groupStore ---

func (h *fakeHost) CreateGroup(_ context.Context, req models.CreateGroupRequest, meta models.Meta) (*models.Group, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := h.addGroup(req.Name, meta)

	h.mu.Lock()
	defer h.mu.Unlock()

	out := *h.groups[id]

	return &out, nil
}

func (h *fakeHost) GroupNameExists(_ context.Context, name string) (bool, error) {
	for _, g := range h.allGroups() {
		if g.Name == name {
			return true, nil
		}
	}

	return false, nil
}

func (h *fakeHost) ListGroups(context.Context) ([]models.Group, error) {
	return h.allGroups(), nil
}

func (h *fakeHost) GroupMeta(_ context.Context, id int64) (models.Meta, error) {
	return h.groupMetaOf(id), nil
}

func (h *fakeHost) SetGroupMeta(_ context.Context, id int64, meta models.Meta) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.groups[id]; !ok {
		return models.ErrGroupNotFound
	}

	for k, v := range meta {
		h.groupMeta[id][k] = v
	}

	return nil
}

func (h *fakeHost) SetPostGroups(_ context.Context, postID int64, groupIDs []int64) error {
	h.relate(postID, slices.Clone(groupIDs)...)

	return nil
}

func (h *fakeHost) PostGroups(_ context.Context, postID int64) ([]models.Group, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []models.Group

	for _, id := range h.postGroups[postID] {
		if g, ok := h.groups[id]; ok {
			out = append(out, *g)
		}
	}

	return out, nil
}

// --- statsStore ---

func (h *fakeHost) InsertStat(_ context.Context, stat models.Stat) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	table, ok := h.stats[stat.Kind]
	if !ok {
		return false, models.ErrUnknownEntityType
	}

	key := statKey{stat.AdID, stat.Timestamp}
	if _, exists := table[key]; exists {
		return false, nil
	}

	h.nextStat++
	stat.ID = h.nextStat
	table[key] = stat

	return true, nil
}

func (h *fakeHost) StatsForAds(_ context.Context, kind models.StatKind, adIDs []int64) ([]models.Stat, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []models.Stat

	for k, s := range h.stats[kind] {
		if slices.Contains(adIDs, k.adID) {
			out = append(out, s)
		}
	}

	slices.SortFunc(out, func(a, b models.Stat) int {
		if a.AdID != b.AdID {
			return int(a.AdID - b.AdID)
		}

		return a.Timestamp.Compare(b.Timestamp)
	})

	return out, nil
}

func (h *fakeHost) FindRogue(context.Context) (*models.RogueStats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	isAd := func(id int64) bool {
		p, ok := h.posts[id]

		return ok && p.Type == models.PostTypeAd
	}

	rogue := &models.RogueStats{}

	for k, s := range h.stats[models.StatImpression] {
		if !isAd(k.adID) {
			rogue.Impressions = append(rogue.Impressions, s)
		}
	}

	for k, s := range h.stats[models.StatClick] {
		if !isAd(k.adID) {
			rogue.Clicks = append(rogue.Clicks, s)
		}
	}

	return rogue, nil
}

func (h *fakeHost) DeleteStatsForAds(_ context.Context, kind models.StatKind, adIDs []int64) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var n int64

	for k := range h.stats[kind] {
		if slices.Contains(adIDs, k.adID) {
			delete(h.stats[kind], k)
			n++
		}
	}

	return n, nil
}

func (h *fakeHost) DeleteAllStats(context.Context) (*models.DeleteStatsResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	res := &models.DeleteStatsResult{
		Impressions: int64(len(h.stats[models.StatImpression])),
		Clicks:      int64(len(h.stats[models.StatClick])),
	}

	h.stats[models.StatImpression] = map[statKey]models.Stat{}
	h.stats[models.StatClick] = map[statKey]models.Stat{}

	return res, nil
}

// mockSideloader records sideloaded URLs.
type mockSideloader struct {
	mu   sync.Mutex
	urls []string

	sideload func(ctx context.Context, rawURL string) (int64, error)
}

func (m *mockSideloader) Sideload(ctx context.Context, rawURL string) (int64, error) {
	m.mu.Lock()
	m.urls = append(m.urls, rawURL)
	m.mu.Unlock()

	return m.sideload(ctx, rawURL)
}

func (m *mockSideloader) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.urls)
}
