package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adcommander/adcmdr-tools/internal/bundle"
	"github.com/adcommander/adcmdr-tools/internal/models"
)

const testBundle = "bundle_20240101000000_abcde.zip"

func TestExport_Success(t *testing.T) {
	t.Parallel()

	ta := newTestAPI(t)

	var got models.ExportRequest

	ta.exports.exportFn = func(_ context.Context, req models.ExportRequest) (*models.ExportResult, error) {
		got = req

		return &models.ExportResult{Bundle: testBundle, Rows: map[models.EntityType]int{models.EntityAds: 2}}, nil
	}

	w := ta.sendJSON(http.MethodPost, "/api/v1/export", models.ActionExportNow, `{"types":["ads","groups"],"include_stats":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", w.Code, w.Body.String())
	}

	if len(got.Types) != 2 || !got.IncludeStats {
		t.Errorf("export request = %+v, want 2 types with stats", got)
	}

	resp := decodeAction(t, w)
	if resp.Action != models.ActionExportNow || resp.Result != models.ResultSuccess {
		t.Errorf("response = %+v, want export-now success", resp)
	}

	data, _ := resp.Data.(map[string]any)
	if data["download"] != "/api/v1/bundles/"+testBundle {
		t.Errorf("download = %v, want /api/v1/bundles/%s", data["download"], testBundle)
	}
}

func TestExport_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{"unknown type", `{"types":["widgets"]}`, nil, http.StatusBadRequest},
		{"nothing selected", `{"types":[]}`, models.ErrNoEntityTypes, http.StatusBadRequest},
		{"empty site", `{"types":["ads"]}`, bundle.ErrNothingToExport, http.StatusBadRequest},
		{"unwritable", `{"types":["ads"]}`, fmt.Errorf("probe: %w", bundle.ErrExportUnavailable), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ta := newTestAPI(t)
			ta.exports.exportFn = func(context.Context, models.ExportRequest) (*models.ExportResult, error) {
				return nil, tt.err
			}

			w := ta.sendJSON(http.MethodPost, "/api/v1/export", models.ActionExportNow, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("got %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}

			if resp := decodeAction(t, w); resp.Result != models.ResultFail || resp.Notice == "" {
				t.Errorf("response = %+v, want fail with a notice", resp)
			}
		})
	}
}

func TestExport_UnexpectedError(t *testing.T) {
	t.Parallel()

	ta := newTestAPI(t)
	ta.exports.exportFn = func(context.Context, models.ExportRequest) (*models.ExportResult, error) {
		return nil, errors.New("connection reset")
	}

	w := ta.sendJSON(http.MethodPost, "/api/v1/export", models.ActionExportNow, `{"types":["ads"]}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", w.Code)
	}

	if body := decodeBody(t, w); body["code"] != "internal_error" {
		t.Errorf("code = %v, want internal_error", body["code"])
	}
}

func TestExport_RedirectsFormPost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   string
		redirect bool
	}{
		{"relative path", "/wp-admin/admin.php?page=adcmdr-tools", true},
		{"same origin", testSiteURL + "/wp-admin/", true},
		{"other host", "https://evil.example.com/", false},
		{"scheme relative", "//evil.example.com/", false},
		{"not a path", "javascript:alert(1)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ta := newTestAPI(t)
			ta.exports.exportFn = func(context.Context, models.ExportRequest) (*models.ExportResult, error) {
				return &models.ExportResult{Bundle: testBundle}, nil
			}

			w := ta.sendForm("/api/v1/export", models.ActionExportNow, url.Values{
				"types[]":     {"ads"},
				"redirect_to": {tt.target},
			})

			if !tt.redirect {
				if w.Code != http.StatusOK {
					t.Errorf("got %d, want 200 JSON", w.Code)
				}

				return
			}

			if w.Code != http.StatusSeeOther {
				t.Fatalf("got %d, want 303", w.Code)
			}

			loc, err := url.Parse(w.Header().Get("Location"))
			if err != nil {
				t.Fatalf("bad Location: %v", err)
			}

			q := loc.Query()
			if q.Get("action") != models.ActionExportNow || q.Get("result") != models.ResultSuccess || q.Get("notice") == "" {
				t.Errorf("redirect query = %v", q)
			}

			if tt.name == "relative path" && q.Get("page") != "adcmdr-tools" {
				t.Errorf("existing query lost: %v", q)
			}
		})
	}
}

func TestBundles_List(t *testing.T) {
	t.Parallel()

	ta := newTestAPI(t)
	ta.bundles.listFn = func() ([]models.BundleInfo, error) {
		return []models.BundleInfo{{Name: testBundle, Size: 42, ModTime: time.Now().UTC()}}, nil
	}

	w := ta.send(http.MethodGet, "/api/v1/bundles", "", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}

	if !strings.Contains(w.Body.String(), testBundle) {
		t.Errorf("body %s does not list %s", w.Body.String(), testBundle)
	}
}

func TestBundles_Download(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), testBundle)
	if err := os.WriteFile(path, []byte("PK\x03\x04zip"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ta := newTestAPI(t)
	ta.bundles.openFn = func(name string) (*os.File, time.Time, error) {
		switch name {
		case testBundle:
			f, err := os.Open(path)
			return f, time.Now(), err
		default:
			return nil, time.Time{}, bundle.ErrBundleNotFound
		}
	}

	w := ta.send(http.MethodGet, "/api/v1/bundles/"+testBundle, "", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}

	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, testBundle) {
		t.Errorf("Content-Disposition = %q", cd)
	}

	if w.Body.String() != "PK\x03\x04zip" {
		t.Errorf("body = %q", w.Body.String())
	}

	if w := ta.send(http.MethodGet, "/api/v1/bundles/missing.zip", "", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing bundle: got %d, want 404", w.Code)
	}
}

func TestBundles_Delete(t *testing.T) {
	t.Parallel()

	ta := newTestAPI(t)

	var deleted []string

	ta.bundles.deleteFn = func(name string) error {
		if name != testBundle {
			return bundle.ErrBundleNotFound
		}

		deleted = append(deleted, name)

		return nil
	}

	w := ta.send(http.MethodDelete, "/api/v1/bundles/"+testBundle, models.ActionDeleteBundle, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}

	if len(deleted) != 1 {
		t.Errorf("deleted = %v, want [%s]", deleted, testBundle)
	}

	if w := ta.send(http.MethodDelete, "/api/v1/bundles/other.zip", models.ActionDeleteBundle, "", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing bundle: got %d, want 404", w.Code)
	}
}
