package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/renliu0x/askdoc/internal/jobengine"
	"github.com/renliu0x/askdoc/internal/model"
	"github.com/renliu0x/askdoc/internal/pkg/response"
	"github.com/renliu0x/askdoc/internal/service"
)

type QueryHandler struct {
	rag    *service.RAGService
	engine *jobengine.Engine
}

func NewQueryHandler(rag *service.RAGService, engine *jobengine.Engine) *QueryHandler {
	return &QueryHandler{rag: rag, engine: engine}
}

type queryRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Style     string `json:"style"`
	TopK      int    `json:"top_k"`
	Stream    bool   `json:"stream"`
}

type asyncQueryResponse struct {
	JobID         string `json:"job_id"`
	QueuePosition int    `json:"queue_position"`
	Status        string `json:"status"`
}

// Query answers a question over the session's documents. Small
// sessions are answered inline, optionally streaming tokens over SSE;
// sessions past the async thresholds get a queued job instead.
func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request")
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Question = strings.TrimSpace(req.Question)
	if req.SessionID == "" || req.Question == "" {
		response.Error(c, http.StatusBadRequest, "session_id and question are required")
		return
	}
	if req.Style == "" {
		req.Style = model.AnswerStylePlain
	}
	if req.Style != model.AnswerStylePlain && req.Style != model.AnswerStyleStructured {
		response.Error(c, http.StatusBadRequest, "unknown answer style")
		return
	}
	ctx := c.Request.Context()

	history, err := h.rag.RecentHistory(ctx, req.SessionID)
	if err != nil {
		handleError(c, err)
		return
	}

	if h.rag.ShouldRunAsync(ctx, req.SessionID) {
		payload, _ := json.Marshal(model.AnswerQueryPayload{
			SessionID: req.SessionID,
			Question:  req.Question,
			Style:     req.Style,
		})
		job, err := h.engine.Enqueue(ctx, model.JobTypeAnswerQuery, string(payload))
		if err != nil {
			handleError(c, err)
			return
		}
		response.Success(c, asyncQueryResponse{
			JobID:         job.ID,
			QueuePosition: h.engine.QueuePosition(job.ID),
			Status:        job.Status,
		})
		return
	}

	opts := service.QueryOptions{TopK: req.TopK, Style: req.Style}
	if req.Stream {
		h.stream(c, req, history, opts)
		return
	}

	answer, err := h.rag.RunQuery(ctx, req.SessionID, req.Question, history, opts)
	if err != nil {
		handleError(c, err)
		return
	}
	if err := h.rag.RecordExchange(ctx, req.SessionID, req.Question, answer); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, answer)
}

// stream relays generation tokens as SSE events. The final normalized
// answer follows as its own event once the stream completes.
func (h *QueryHandler) stream(c *gin.Context, req queryRequest, history []*model.Turn, opts service.QueryOptions) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	onToken := func(token string) error {
		return writeSSE(c, "token", token)
	}
	onProgress := func(stage string, percent int) {
		_ = writeSSE(c, "progress", fmt.Sprintf(`{"stage":%q,"percent":%d}`, stage, percent))
	}
	answer, err := h.rag.RunQueryStreaming(ctx, req.SessionID, req.Question, history, opts, onProgress, onToken)
	if err != nil {
		_ = writeSSE(c, "error", err.Error())
		return
	}
	if err := h.rag.RecordExchange(ctx, req.SessionID, req.Question, answer); err != nil {
		_ = writeSSE(c, "error", err.Error())
		return
	}
	data, _ := json.Marshal(answer)
	_ = writeSSE(c, "answer", string(data))
}

func writeSSE(c *gin.Context, event, data string) error {
	if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
		return err
	}
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(c.Writer, "\n"); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}
