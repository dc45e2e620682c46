package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vendhub/vendhub/internal/model"
	"github.com/vendhub/vendhub/internal/server/middleware"
	"github.com/vendhub/vendhub/internal/store"
)

// DocumentHandler stores uploaded documents: metadata in the store, bytes on
// disk under dir. Route guards decide who may call each method.
type DocumentHandler struct {
	store   *store.Store
	dir     string
	maxSize int64
}

// NewDocumentHandler creates a new DocumentHandler rooted at dir.
func NewDocumentHandler(st *store.Store, dir string, maxSize int64) *DocumentHandler {
	return &DocumentHandler{store: st, dir: dir, maxSize: maxSize}
}

// List returns document metadata, newest first.
// GET /api/v1/document
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryInt(r, "limit", 50), 1, 500)
	offset := clampInt(queryInt(r, "offset", 0), 0, 1<<30)

	docs, total, err := h.store.ListDocuments(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list documents: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: docs,
		Meta: &model.ResponseMeta{
			Count:  len(docs),
			Total:  total,
			Limit:  limit,
			Offset: offset,
		},
	})
}

// Create stores the request body as a new document. The document name comes
// from the X-Document-Name header or defaults to the generated id.
// POST /api/v1/document
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	id := uuid.Must(uuid.NewV7()).String()
	if err := os.MkdirAll(h.dir, 0750); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to prepare document storage: "+err.Error())
		return
	}

	path := filepath.Join(h.dir, id)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store document: "+err.Error())
		return
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hasher), http.MaxBytesReader(w, r.Body, h.maxSize))
	closeErr := f.Close()
	if err != nil || closeErr != nil {
		os.Remove(path)
		if err == nil {
			err = closeErr
		}
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "Document exceeds the size limit")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to store document: "+err.Error())
		return
	}

	name := r.Header.Get("X-Document-Name")
	if name == "" {
		name = id
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	owner := p.OperatorID
	if owner == "" {
		owner = p.TokenOwner
	}

	doc := &model.Document{
		ID:          id,
		Name:        name,
		ContentType: contentType,
		SizeBytes:   size,
		SHA256:      hex.EncodeToString(hasher.Sum(nil)),
		OwnerID:     owner,
	}
	if err := h.store.CreateDocument(r.Context(), doc); err != nil {
		os.Remove(path)
		writeError(w, http.StatusInternalServerError, "Failed to save document metadata: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// Get returns a document's metadata.
// GET /api/v1/document/{documentId}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.GetDocument(r.Context(), chi.URLParam(r, "documentId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load document: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Content streams a document's bytes with its stored content type.
// GET /api/v1/document/{documentId}/content
func (h *DocumentHandler) Content(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.GetDocument(r.Context(), chi.URLParam(r, "documentId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load document: "+err.Error())
		return
	}

	f, err := os.Open(filepath.Join(h.dir, doc.ID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Document content unavailable: "+err.Error())
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Name+`"`)
	http.ServeContent(w, r, doc.Name, doc.CreatedAt, f)
}

// Delete removes a document's metadata and bytes.
// DELETE /api/v1/document/{documentId}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentId")
	if err := h.store.DeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete document: "+err.Error())
		return
	}
	if err := os.Remove(filepath.Join(h.dir, id)); err != nil && !os.IsNotExist(err) {
		writeError(w, http.StatusInternalServerError, "Failed to delete document content: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
