package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/domain"
	"github.com/adcommander/adcmdr-tools/internal/httputil"
	"github.com/adcommander/adcmdr-tools/internal/models"
)

// Import form fields.
const (
	FieldBundle = "bundle"
	FieldTypes  = "types[]"
	FieldStatus = "status"
)

// ImportHandler serves the bundle upload endpoint.
type ImportHandler struct {
	*actions
	imports domain.ImportService
}

// NewImportHandler creates an ImportHandler.
func NewImportHandler(imports domain.ImportService, log *logrus.Logger, siteURL string) *ImportHandler {
	return &ImportHandler{actions: newActions(log, siteURL), imports: imports}
}

// Import handles POST /api/v1/import.
func (h *ImportHandler) Import(c *gin.Context) {
	header, err := c.FormFile(FieldBundle)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, httputil.CodePayloadTooLarge, "upload exceeds the size limit")
			return
		}

		h.audit(c, models.ActionImportBundle, models.ResultFail, logrus.Fields{"error": err.Error()})
		h.respond(c, http.StatusBadRequest, models.ActionResponse{
			Action: models.ActionImportBundle,
			Result: models.ResultFail,
			Notice: "no bundle uploaded",
		})

		return
	}

	if c.Request.MultipartForm != nil {
		defer c.Request.MultipartForm.RemoveAll() //nolint:errcheck // temp files only.
	}

	types, err := models.ParseEntityTypes(c.PostFormArray(FieldTypes))
	if err != nil {
		h.respondFailure(c, models.ActionImportBundle, err)
		return
	}

	upload, err := header.Open()
	if err != nil {
		h.respondFailure(c, models.ActionImportBundle, fmt.Errorf("opening upload: %w", err))
		return
	}
	defer upload.Close() //nolint:errcheck // read-only upload.

	res, err := h.imports.ImportBundle(c.Request.Context(), upload, header.Size, header.Filename, models.ImportOptions{
		Types:        types,
		StatusPolicy: models.ParseStatusPolicy(c.PostForm(FieldStatus)),
	})
	if err != nil {
		h.respondFailure(c, models.ActionImportBundle, err)
		return
	}

	result := models.ResultSuccess
	if res.Created() == 0 && failedRows(res) > 0 {
		result = models.ResultFail
	}

	h.audit(c, models.ActionImportBundle, result, logrus.Fields{
		"import_id": res.ImportID,
		"file":      header.Filename,
		"created":   res.Created(),
		"failed":    failedRows(res),
		"warnings":  len(res.Warnings),
	})

	h.respond(c, http.StatusOK, models.ActionResponse{
		Action: models.ActionImportBundle,
		Result: result,
		Notice: importNotice(res),
		Data:   res,
	})
}

func failedRows(res *models.ImportResult) int {
	n := 0
	for _, c := range res.Entities {
		n += c.Failed
	}

	return n
}

// importNotice summarises res in one line, e.g.
// "Imported 2 groups, 5 ads. 1 row failed."
func importNotice(res *models.ImportResult) string {
	parts := make([]string, 0, len(res.Types))

	for _, t := range res.Types {
		if c, ok := res.Entities[t]; ok {
			parts = append(parts, fmt.Sprintf("%d %s", c.Created, t))
		}
	}

	notice := "Imported " + strings.Join(parts, ", ") + "."
	if len(parts) == 0 {
		notice = "Nothing was imported."
	}

	switch n := failedRows(res); n {
	case 0:
	case 1:
		notice += " 1 row failed."
	default:
		notice += fmt.Sprintf(" %d rows failed.", n)
	}

	return notice
}
