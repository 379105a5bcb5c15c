package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

// BundleService exports, lists, downloads, deletes and imports bundles.
type BundleService struct {
	c *Client
}

type exportBody struct {
	Types        []string `json:"types"`
	IncludeStats bool     `json:"include_stats"`
}

// Export asks the server to write a bundle of the named entity types.
func (s *BundleService) Export(ctx context.Context, types []string, includeStats bool) (*ExportReport, error) {
	var report ExportReport

	resp, err := s.c.action(ctx, http.MethodPost, "/api/v1/export", models.ActionExportNow,
		exportBody{Types: types, IncludeStats: includeStats}, &report)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	report.Notice = resp.Notice

	return &report, nil
}

// List returns the bundles in the server's export dir, newest first.
func (s *BundleService) List(ctx context.Context) ([]models.BundleInfo, error) {
	var resp struct {
		Bundles []models.BundleInfo `json:"bundles"`
	}
	if err := s.c.get(ctx, "/api/v1/bundles", nil, &resp); err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}

	return resp.Bundles, nil
}

// Download streams bundle name into w and returns the bytes written.
func (s *BundleService) Download(ctx context.Context, name string, w io.Writer) (int64, error) {
	req, err := s.c.newRequest(ctx, http.MethodGet, "/api/v1/bundles/"+url.PathEscape(name), nil, "")
	if err != nil {
		return 0, err
	}

	resp, err := s.c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return 0, parseAPIError(resp.StatusCode, body)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", name, err)
	}

	return n, nil
}

// Delete removes bundle name from the server.
func (s *BundleService) Delete(ctx context.Context, name string) error {
	if _, err := s.c.action(ctx, http.MethodDelete, "/api/v1/bundles/"+url.PathEscape(name), models.ActionDeleteBundle, nil, nil); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}

	return nil
}

// Import uploads a bundle read from r. Types are entity names; status is
// "draft" or "match".
func (s *BundleService) Import(ctx context.Context, filename string, r io.Reader, types []string, status string) (*ImportReport, error) {
	nonce, err := s.c.Nonce(ctx, models.ActionImportBundle)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeImportForm(mw, filename, r, types, status))
	}()

	req, err := s.c.newRequest(ctx, http.MethodPost, "/api/v1/import", pr, mw.FormDataContentType())
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set(NonceHeader, nonce)

	var report ImportReport

	resp, err := s.c.sendAction(req, &report)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}

	report.Result = resp.Result
	report.Notice = resp.Notice

	return &report, nil
}

func writeImportForm(mw *multipart.Writer, filename string, r io.Reader, types []string, status string) error {
	for _, t := range types {
		if err := mw.WriteField("types[]", t); err != nil {
			return err
		}
	}

	if status != "" {
		if err := mw.WriteField("status", status); err != nil {
			return err
		}
	}

	fw, err := mw.CreateFormFile("bundle", filename)
	if err != nil {
		return err
	}

	if _, err := io.Copy(fw, r); err != nil {
		return err
	}

	return mw.Close()
}
