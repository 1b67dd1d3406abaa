package handler

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/brifyai/pptx/internal/analysis"
	"github.com/brifyai/pptx/internal/cloner"
	"github.com/brifyai/pptx/internal/mapping"
	"github.com/brifyai/pptx/internal/matcher"
	"github.com/brifyai/pptx/internal/patcher"
	"github.com/brifyai/pptx/internal/pptx"
	"github.com/brifyai/pptx/internal/vision"
)

const (
	maxUploadBytes = 50 << 20
	pptxMediaType  = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// TemplateService is the part of analysis.Service the HTTP surface needs.
type TemplateService interface {
	AnalyzeTemplate(ctx context.Context, req analysis.AnalyzeRequest) (*mapping.Mapping, error)
	Correct(ctx context.Context, hash, elementID, typ string) (bool, error)
	Mapping(ctx context.Context, hash string) (*mapping.Mapping, bool, error)
	Templates(ctx context.Context) ([]mapping.Summary, error)
	DeleteTemplate(ctx context.Context, hash string) (bool, error)
	Clone(ctx context.Context, template []byte, content []patcher.SlideContent) (analysis.CloneResult, error)
	Inspect(template []byte) (cloner.TemplateInfo, error)
}

type TemplateHandler struct {
	svc TemplateService
}

func NewTemplateHandler(svc TemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

// HandleClone patches the uploaded template with the "content" field and
// streams the new deck back.
func (h *TemplateHandler) HandleClone(w http.ResponseWriter, r *http.Request) {
	template, ok := readUpload(w, r)
	if !ok {
		return
	}
	content, err := patcher.ParseContent([]byte(firstValue(r, "content", "data")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := h.svc.Clone(r.Context(), template, content)
	if err != nil {
		writeServiceError(w, "clone", err)
		return
	}
	w.Header().Set("Content-Type", pptxMediaType)
	w.Header().Set("Content-Disposition", `attachment; filename="presentacion.pptx"`)
	w.Header().Set("X-Replacements", strconv.Itoa(res.Report.Replacements))
	w.Header().Set("X-Preservation-Status", res.Report.Preservation.Status)
	if res.OutputKey != "" {
		w.Header().Set("X-Output-Key", res.OutputKey)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Output)))
	_, _ = w.Write(res.Output)
}

// HandleAnalyze lists the template's slides with their classified text runs.
func (h *TemplateHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	template, ok := readUpload(w, r)
	if !ok {
		return
	}
	info, err := h.svc.Inspect(template)
	if err != nil {
		writeServiceError(w, "analyze", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *TemplateHandler) HandleAnalyzeTemplate(w http.ResponseWriter, r *http.Request) {
	template, ok := readUpload(w, r)
	if !ok {
		return
	}
	image, err := readImage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	force, _ := strconv.ParseBool(strings.TrimSpace(r.FormValue("force")))
	m, err := h.svc.AnalyzeTemplate(r.Context(), analysis.AnalyzeRequest{
		Template: template,
		Image:    image,
		Name:     firstNonEmpty(r.FormValue("name"), uploadName(r)),
		Force:    force,
	})
	if err != nil {
		writeServiceError(w, "analyze-template", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *TemplateHandler) HandleUpdateMapping(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TemplateHash string `json:"template_hash"`
		ElementID    string `json:"element_id"`
		NewType      string `json:"new_type"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	hash := strings.TrimSpace(in.TemplateHash)
	elementID := strings.TrimSpace(in.ElementID)
	if hash == "" || elementID == "" || strings.TrimSpace(in.NewType) == "" {
		http.Error(w, "template_hash, element_id and new_type are required", http.StatusBadRequest)
		return
	}
	ok, err := h.svc.Correct(r.Context(), hash, elementID, in.NewType)
	if err != nil {
		writeServiceError(w, "update-mapping", err)
		return
	}
	if !ok {
		http.Error(w, "template or element not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("element %s updated to %s", elementID, matcher.ParseElementType(in.NewType)),
	})
}

func (h *TemplateHandler) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Templates(r.Context())
	if err != nil {
		writeServiceError(w, "list templates", err)
		return
	}
	if list == nil {
		list = []mapping.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"templates": list,
		"total":     len(list),
	})
}

func (h *TemplateHandler) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	m, ok, err := h.svc.Mapping(r.Context(), r.PathValue("hash"))
	if err != nil {
		writeServiceError(w, "get template", err)
		return
	}
	if !ok {
		http.Error(w, "template not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *TemplateHandler) HandleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	ok, err := h.svc.DeleteTemplate(r.Context(), r.PathValue("hash"))
	if err != nil {
		writeServiceError(w, "delete template", err)
		return
	}
	if !ok {
		http.Error(w, "template not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// readUpload returns the uploaded template, writing a 400 when it is missing.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return nil, false
	}
	for _, field := range []string{"file", "template"} {
		raw, found, err := formFile(r, field)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return nil, false
		}
		if found {
			return raw, true
		}
	}
	http.Error(w, "file is required", http.StatusBadRequest)
	return nil, false
}

func formFile(r *http.Request, field string) ([]byte, bool, error) {
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", field, err)
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", field, err)
	}
	return raw, len(raw) > 0, nil
}

func uploadName(r *http.Request) string {
	for _, field := range []string{"file", "template"} {
		if r.MultipartForm == nil {
			return ""
		}
		if hs := r.MultipartForm.File[field]; len(hs) > 0 {
			return strings.TrimSuffix(hs[0].Filename, ".pptx")
		}
	}
	return ""
}

// readImage accepts either an "image" file part or a data URL in the
// "image" field.
func readImage(r *http.Request) ([]byte, error) {
	raw, found, err := formFile(r, "image")
	if err != nil || found {
		return raw, err
	}
	if v := strings.TrimSpace(r.FormValue("image")); v != "" {
		return vision.DecodeDataURL(v)
	}
	return nil, nil
}

func firstValue(r *http.Request, fields ...string) string {
	for _, f := range fields {
		if v := r.FormValue(f); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("handler: %s failed: %v", op, err)
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	var partErr *pptx.PartError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	case errors.Is(err, analysis.ErrTemplateRequired),
		errors.Is(err, analysis.ErrInvalidType),
		errors.Is(err, pptx.ErrNoSlides),
		errors.Is(err, pptx.ErrPartMissing),
		errors.Is(err, matcher.ErrInvalidDimensions),
		errors.Is(err, zip.ErrFormat),
		errors.As(err, &partErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
