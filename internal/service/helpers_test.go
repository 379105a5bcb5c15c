package service_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/bundle"
	"github.com/adcommander/adcmdr-tools/internal/csvcodec"
	"github.com/adcommander/adcmdr-tools/internal/models"
	"github.com/adcommander/adcmdr-tools/internal/objstore"
	"github.com/adcommander/adcmdr-tools/internal/sanitize"
	"github.com/adcommander/adcmdr-tools/internal/schema"
	"github.com/adcommander/adcmdr-tools/internal/service"
)

var (
	registry = schema.NewRegistry(schema.DefaultPrefix)
	postDate = time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
)

func key(name string) string { return registry.MakeKey(name) }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

func newCodec(t *testing.T) *csvcodec.Codec {
	t.Helper()

	codec, err := csvcodec.New("")
	if err != nil {
		t.Fatalf("csvcodec.New: %v", err)
	}

	return codec
}

// mockMirror records mirrored bundles.
type mockMirror struct {
	mu      sync.Mutex
	put     []string
	removed []string
	putErr  error
}

var _ objstore.Mirror = (*mockMirror)(nil)

func (m *mockMirror) Enabled() bool { return true }

func (m *mockMirror) Put(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.putErr != nil {
		return m.putErr
	}

	m.put = append(m.put, filepath.Base(path))

	return nil
}

func (m *mockMirror) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removed = append(m.removed, name)

	return nil
}

// site wires the services around one fake host.
type site struct {
	url       string
	host      *fakeHost
	images    *mockSideloader
	exportDir string
	exporter  *service.Exporter
	importer  *service.Importer
	bundles   *service.BundleManager
	stats     *service.StatsMaintenance
}

func newSite(t *testing.T, url string, firstPost, firstGroup int64, mirror objstore.Mirror) *site {
	t.Helper()

	log := quietLogger()
	codec := newCodec(t)
	host := newFakeHost(firstPost, firstGroup)
	exportDir := filepath.Join(t.TempDir(), "export")

	images := &mockSideloader{}
	images.sideload = func(_ context.Context, rawURL string) (int64, error) {
		return host.addPost(models.Post{
			Type:   models.PostTypeAttachment,
			Status: models.StatusInherit,
			GUID:   rawURL,
		}, nil), nil
	}

	unpacker := bundle.NewUnpacker("",
		bundle.WithTempDirs(t.TempDir()),
		bundle.WithFreeSpace(func(string) (uint64, error) { return 1 << 40, nil }),
	)

	return &site{
		url:       url,
		host:      host,
		images:    images,
		exportDir: exportDir,
		exporter: service.NewExporter(service.ExporterDeps{
			Registry: registry,
			Posts:    host,
			Groups:   host,
			Stats:    host,
			Packer:   bundle.NewPacker(exportDir, codec),
			Mirror:   mirror,
			SiteURL:  url,
			Log:      log,
		}),
		importer: service.NewImporter(service.ImporterDeps{
			Registry:       registry,
			Sanitizer:      sanitize.New(registry),
			Codec:          codec,
			Unpacker:       unpacker,
			Posts:          host,
			Groups:         host,
			Stats:          host,
			Images:         images,
			FeaturedImages: true,
			SiteURL:        url,
			Log:            log,
		}),
		bundles: service.NewBundleManager(bundle.NewStore(exportDir), mirror, log),
		stats:   service.NewStatsMaintenance(host, log),
	}
}

// seeded holds the ids of the entities seedSource creates.
type seeded struct {
	group, ad1, ad2, trashed, placement, attachment int64
}

// seedSource creates one group, two live ads and a trashed one, one
// placement, ten impression rows and three click rows.
func seedSource(s *site) seeded {
	h := s.host

	var ids seeded

	ids.group = h.addGroup("Sidebar", models.Meta{key("mode"): "ordered"})
	ids.attachment = h.addPost(models.Post{
		Type:   models.PostTypeAttachment,
		Status: models.StatusInherit,
		GUID:   s.url + "/uploads/banner.png",
	}, nil)

	ids.ad1 = h.addPost(models.Post{
		Type: models.PostTypeAd, Status: models.StatusPublish,
		Date: postDate, DateGMT: postDate, Modified: postDate, ModifiedGMT: postDate,
		Title: "Spring sale", Name: "spring-sale", Content: "<p>Hello <strong>world</strong></p>",
		MenuOrder: 2,
	}, models.Meta{
		key("adtype"):         "text",
		key("adcontent_text"): "Buy now",
		key("newwindow"):      "1",
		key("display_width"):  "300",
	})
	ids.ad2 = h.addPost(models.Post{
		Type: models.PostTypeAd, Status: models.StatusPrivate,
		Date: postDate, DateGMT: postDate, Modified: postDate, ModifiedGMT: postDate,
		Title: "Banner", Name: "banner",
	}, models.Meta{
		key("adtype"):    "bannerad",
		key("bannerurl"): "https://shop.example.com/",
	})
	ids.trashed = h.addPost(models.Post{Type: models.PostTypeAd, Status: models.StatusTrash, Title: "Old"}, nil)

	h.postMeta[ids.ad1][models.MetaKeyThumbnail] = itoa(ids.attachment)
	h.groupMeta[ids.group][key("ad_order")] = "[" + itoa(ids.ad2) + "," + itoa(ids.ad1) + "]"
	h.groupMeta[ids.group][key("ad_weights")] = `{"` + itoa(ids.ad1) + `":5,"` + itoa(ids.ad2) + `":1}`
	h.relate(ids.ad1, ids.group)
	h.relate(ids.ad2, ids.group)

	ids.placement = h.addPost(models.Post{
		Type: models.PostTypePlacement, Status: models.StatusPublish,
		Date: postDate, DateGMT: postDate, Title: "After content",
	}, models.Meta{
		key("placement_items"): `["g_` + itoa(ids.group) + `","a_` + itoa(ids.ad2) + `"]`,
		key("position"):        "after_content",
	})

	for n := range 10 {
		ad := ids.ad1
		if n%2 == 1 {
			ad = ids.ad2
		}

		h.addStat(models.StatImpression, ad, postDate.Add(time.Duration(n)*time.Hour), int64(n+1))
	}

	for n := range 3 {
		h.addStat(models.StatClick, ids.ad1, postDate.Add(time.Duration(n)*time.Hour), 1)
	}

	return ids
}

// entityCSV is the content of one entity file in a hand-built bundle.
type entityCSV struct {
	headings []string
	rows     []models.Row
}

// bundleBytes zips one CSV per entity type.
func bundleBytes(t *testing.T, files map[models.EntityType]entityCSV) []byte {
	t.Helper()

	codec := newCodec(t)

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)

	for et, f := range files {
		w, err := zw.Create(bundle.EntityFileName(et.String(), "_20240101000000_abcde"))
		if err != nil {
			t.Fatalf("zip Create: %v", err)
		}

		if err := codec.Encode(w, f.headings, f.rows); err != nil {
			t.Fatalf("Encode %s: %v", et, err)
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close: %v", err)
	}

	return buf.Bytes()
}

func importBytes(t *testing.T, s *site, name string, data []byte, opts models.ImportOptions) *models.ImportResult {
	t.Helper()

	res, err := s.importer.ImportBundle(context.Background(), bytes.NewReader(data), int64(len(data)), name, opts)
	if err != nil {
		t.Fatalf("ImportBundle: %v", err)
	}

	return res
}

func importFile(t *testing.T, s *site, path string, opts models.ImportOptions) *models.ImportResult {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	return importBytes(t, s, filepath.Base(path), data, opts)
}

func exportAll(t *testing.T, s *site) *models.ExportResult {
	t.Helper()

	res, err := s.exporter.Export(context.Background(), models.ExportRequest{
		Types:        []models.EntityType{models.EntityGroups, models.EntityAds, models.EntityPlacements},
		IncludeStats: true,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	return res
}

func allTypes() []models.EntityType { return models.AllEntityTypes() }

func itoa(n int64) string { return models.CellString(n) }

func findPost(t *testing.T, h *fakeHost, postType, title string) models.Post {
	t.Helper()

	for _, p := range h.postsOfType(postType) {
		if p.Title == title {
			return p
		}
	}

	t.Fatalf("no %s titled %q", postType, title)

	return models.Post{}
}
