package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/api"
	"github.com/adcommander/adcmdr-tools/internal/middleware"
	"github.com/adcommander/adcmdr-tools/internal/models"
	"github.com/adcommander/adcmdr-tools/internal/nonce"
)

const (
	testAPIKey  = "test-admin-key-0123456789"
	testSiteURL = "https://ads.example.com"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

// doRequest performs an HTTP request against the test router and returns the recorder.
func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

// testAPI is a full router over mock services.
type testAPI struct {
	handler http.Handler
	nonces  *nonce.Service
	exports *mockExports
	imports *mockImports
	bundles *mockBundles
	stats   *mockStats
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	nonces, err := nonce.NewService("nonce-secret-for-api-tests")
	if err != nil {
		t.Fatalf("nonce.NewService: %v", err)
	}

	ta := &testAPI{
		nonces:  nonces,
		exports: &mockExports{},
		imports: &mockImports{},
		bundles: &mockBundles{},
		stats:   &mockStats{},
	}

	ta.handler = api.NewRouter(t.Context(), &api.RouterDeps{
		Log:            testLogger(),
		Exports:        ta.exports,
		Imports:        ta.imports,
		Bundles:        ta.bundles,
		Stats:          ta.stats,
		Nonces:         nonces,
		AdminAPIKey:    testAPIKey,
		Version:        "test-v1",
		SiteURL:        testSiteURL,
		MaxUploadBytes: 1 << 20,
	})

	return ta
}

// send performs an authenticated request. A non-empty action adds a valid
// nonce for it.
func (ta *testAPI) send(method, path, action, contentType string, body io.Reader) *httptest.ResponseRecorder {
	if body == nil {
		body = http.NoBody
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if action != "" {
		req.Header.Set(middleware.NonceHeader, ta.nonces.Issue(action))
	}

	w := httptest.NewRecorder()
	ta.handler.ServeHTTP(w, req)

	return w
}

func (ta *testAPI) sendJSON(method, path, action, body string) *httptest.ResponseRecorder {
	return ta.send(method, path, action, "application/json", strings.NewReader(body))
}

func (ta *testAPI) sendForm(path, action string, form url.Values) *httptest.ResponseRecorder {
	return ta.send(http.MethodPost, path, action, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

// uploadForm builds a multipart body holding a bundle file and fields.
func uploadForm(t *testing.T, filename string, data []byte, fields url.Values) (string, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	for key, values := range fields {
		for _, v := range values {
			if err := mw.WriteField(key, v); err != nil {
				t.Fatalf("WriteField: %v", err)
			}
		}
	}

	if filename != "" {
		fw, err := mw.CreateFormFile(api.FieldBundle, filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}

		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write upload: %v", err)
		}
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("multipart Close: %v", err)
	}

	return mw.FormDataContentType(), &buf
}

func decodeAction(t *testing.T, w *httptest.ResponseRecorder) models.ActionResponse {
	t.Helper()

	var resp models.ActionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}

	return resp
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}

	return body
}
