package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/evidenca/internal/imaging"
	"github.com/erazemk/evidenca/internal/render"
	"github.com/erazemk/evidenca/internal/search"
	"github.com/erazemk/evidenca/internal/service"
)

// Request limits.
const (
	maxBulkItems     = 500
	maxSearchResults = 1000
	multipartSlack   = 1 << 20
	maxQRSize        = 2048
)

// ItemsHandler handles item endpoints.
type ItemsHandler struct {
	Svc    *service.Service
	QRSize int
}

type bulkRequest struct {
	Items []service.NewItem `json:"items"`
}

// List handles GET /api/items. Without q it lists filtered items by name.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit", 0, 0, maxSearchResults)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.Svc.Search(r.Context(), q.Get("q"), search.Filters{
		Category: q.Get("category"),
		Location: q.Get("location"),
		Status:   q.Get("status"),
	}, limit)
	if err != nil {
		serviceError(w, r, err, "failed to search items")
		return
	}
	jsonResponse(w, http.StatusOK, results)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.NewItem
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reg, err := h.Svc.Register(r.Context(), req, actorID(r))
	if err != nil {
		serviceError(w, r, err, "failed to register item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item registered", "user", claims.Username, "item", reg.Item.Name,
		"mnemonic", reg.Item.MnemonicCode, "fallback", reg.Fallback)
	jsonResponse(w, http.StatusCreated, reg)
}

// Bulk handles POST /api/items/bulk. It answers 201 when every item was
// registered and 207 when some were rejected.
func (h *ItemsHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		jsonError(w, http.StatusBadRequest, "items required")
		return
	}
	if len(req.Items) > maxBulkItems {
		jsonError(w, http.StatusBadRequest, "too many items, at most "+strconv.Itoa(maxBulkItems))
		return
	}

	res, err := h.Svc.RegisterBulk(r.Context(), req.Items, actorID(r))
	claims := GetClaims(r.Context())
	slog.Info("bulk registration", "user", claims.Username,
		"registered", len(res.Registered), "failed", len(res.Failed))
	if err != nil {
		slog.Warn("bulk registration incomplete", "error", err, "request_id", RequestIDFrom(r.Context()))
	}

	status := http.StatusCreated
	if len(res.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	jsonResponse(w, status, res)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.Svc.GetItem(r.Context(), id)
	if err != nil {
		serviceError(w, r, err, "failed to get item")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Similar handles GET /api/items/similar?name=&threshold=.
func (h *ItemsHandler) Similar(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	var threshold float64
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			jsonError(w, http.StatusBadRequest, "threshold must be between 0 and 1")
			return
		}
		threshold = v
	}

	results, err := h.Svc.SimilarNames(r.Context(), name, threshold)
	if err != nil {
		serviceError(w, r, err, "failed to find similar items")
		return
	}
	jsonResponse(w, http.StatusOK, results)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req service.ItemUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Svc.UpdateItem(r.Context(), id, req, actorID(r))
	if err != nil {
		serviceError(w, r, err, "failed to update item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item updated", "user", claims.Username, "item", item.Name, "id", id)
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := h.Svc.DeleteItem(r.Context(), id, actorID(r)); err != nil {
		serviceError(w, r, err, "failed to delete item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item deleted", "user", claims.Username, "id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// Reissue handles POST /api/items/{id}/codes.
func (h *ItemsHandler) Reissue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	reg, err := h.Svc.ReissueCodes(r.Context(), id, actorID(r))
	if err != nil {
		serviceError(w, r, err, "failed to reissue codes")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("codes reissued", "user", claims.Username, "id", id, "mnemonic", reg.Item.MnemonicCode)
	jsonResponse(w, http.StatusOK, reg)
}

// GetHistory handles GET /api/items/{id}/history.
func (h *ItemsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	movements, err := h.Svc.History(r.Context(), id)
	if err != nil {
		serviceError(w, r, err, "failed to get item history")
		return
	}
	jsonResponse(w, http.StatusOK, movements)
}

// RetiredCodes handles GET /api/items/{id}/retired-codes.
func (h *ItemsHandler) RetiredCodes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	codes, err := h.Svc.RetiredCodes(r.Context(), id)
	if err != nil {
		serviceError(w, r, err, "failed to list retired codes")
		return
	}
	jsonResponse(w, http.StatusOK, codes)
}

// UploadImage handles PUT /api/items/{id}/image. The file is sent as the
// multipart field "image".
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	limit := h.Svc.Photos.MaxBytes
	if limit <= 0 {
		limit = imaging.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)
	if err := r.ParseMultipartForm(limit + multipartSlack); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := h.Svc.SetPhoto(r.Context(), id, file, actorID(r))
	if err != nil {
		serviceError(w, r, err, "failed to save image")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "image uploaded",
		"mime":    photo.MIME,
		"width":   photo.Width,
		"height":  photo.Height,
	})
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	data, mime, err := h.Svc.Photo(r.Context(), id)
	if err != nil {
		serviceError(w, r, err, "failed to get image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// QR handles GET /api/items/{id}/qr, rendering the scan payload as PNG.
func (h *ItemsHandler) QR(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	size, err := queryInt(r, "size", h.QRSize, render.MinQRSize, maxQRSize)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	png, err := h.Svc.LabelQR(r.Context(), id, size)
	if err != nil {
		serviceError(w, r, err, "failed to render label")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// ByCode handles GET /api/codes/{code}.
func (h *ItemsHandler) ByCode(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.PathValue("code"))
	if code == "" {
		jsonError(w, http.StatusBadRequest, "code required")
		return
	}

	match, err := h.Svc.ByCode(r.Context(), code)
	if err != nil {
		serviceError(w, r, err, "failed to look up code")
		return
	}
	if match.Empty() {
		jsonError(w, http.StatusNotFound, "no item matches code")
		return
	}
	jsonResponse(w, http.StatusOK, match)
}
