package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/renliu0x/askdoc/internal/extract"
	"github.com/renliu0x/askdoc/internal/filestore"
	"github.com/renliu0x/askdoc/internal/jobengine"
	"github.com/renliu0x/askdoc/internal/model"
	appErr "github.com/renliu0x/askdoc/internal/pkg/errors"
	"github.com/renliu0x/askdoc/internal/pkg/response"
	"github.com/renliu0x/askdoc/internal/pkg/timeutil"
	"github.com/renliu0x/askdoc/internal/repo"
)

type DocumentHandler struct {
	docs   *repo.DocumentRepo
	chunks *repo.ChunkRepo
	files  filestore.Store
	engine *jobengine.Engine
}

func NewDocumentHandler(docs *repo.DocumentRepo, chunks *repo.ChunkRepo, files filestore.Store, engine *jobengine.Engine) *DocumentHandler {
	return &DocumentHandler{docs: docs, chunks: chunks, files: files, engine: engine}
}

type uploadResponse struct {
	Document *model.Document `json:"document"`
	JobID    string          `json:"job_id"`
}

// Upload stores the raw file, records the document as processing and
// enqueues an indexing job. The response carries the job ID so the
// client can poll indexing progress.
func (h *DocumentHandler) Upload(c *gin.Context) {
	sessionID := strings.TrimSpace(c.PostForm("session_id"))
	if sessionID == "" {
		response.Error(c, http.StatusBadRequest, "session_id is required")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "file is required")
		return
	}
	docType := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Filename), "."))
	if _, err := extract.ForType(docType); err != nil {
		handleError(c, fmt.Errorf("%w: file type %q", appErr.ErrUnsupported, docType))
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "failed to open file")
		return
	}
	defer opened.Close()

	key := buildFileKey(sessionID, file.Filename)
	if err := h.files.Save(c.Request.Context(), key, opened, file.Size); err != nil {
		handleError(c, fmt.Errorf("save file: %w", err))
		return
	}

	now := timeutil.NowUnix()
	doc := &model.Document{
		ID:        randomHex(16),
		SessionID: sessionID,
		Name:      file.Filename,
		FileKey:   key,
		DocType:   docType,
		Status:    model.DocumentStatusProcessing,
		Ctime:     now,
		Mtime:     now,
	}
	if err := h.docs.Create(c.Request.Context(), doc); err != nil {
		handleError(c, err)
		return
	}

	payload, _ := json.Marshal(model.IndexDocumentPayload{DocumentID: doc.ID})
	job, err := h.engine.Enqueue(c.Request.Context(), model.JobTypeIndexDocument, string(payload))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, uploadResponse{Document: doc, JobID: job.ID})
}

func (h *DocumentHandler) List(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		response.Error(c, http.StatusBadRequest, "session_id is required")
		return
	}
	docs, err := h.docs.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"documents": docs})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.docs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

// Delete removes the document row and all of its chunks. The stored
// file is left behind when removal fails; indexing never resurrects it
// because the document row is gone.
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID := c.Param("id")
	if _, err := h.docs.Get(c.Request.Context(), docID); err != nil {
		handleError(c, err)
		return
	}
	if err := h.chunks.DeleteByDocument(c.Request.Context(), docID); err != nil {
		handleError(c, err)
		return
	}
	if err := h.docs.Delete(c.Request.Context(), docID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": docID})
}

// Download streams the stored file back, local store only.
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, err := h.docs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	file, err := h.files.Open(c.Request.Context(), doc.FileKey)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			handleError(c, err)
			return
		}
		c.Status(http.StatusNotFound)
		return
	}
	defer file.Close()
	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	_, _ = io.Copy(c.Writer, file)
}

func buildFileKey(sessionID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return sessionID + "_" + randomHex(8) + ext
}

func randomHex(size int) string {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
