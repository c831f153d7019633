package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/renliu0x/askdoc/internal/jobengine"
	"github.com/renliu0x/askdoc/internal/model"
	"github.com/renliu0x/askdoc/internal/pkg/response"
)

type JobHandler struct {
	engine *jobengine.Engine
}

func NewJobHandler(engine *jobengine.Engine) *JobHandler {
	return &JobHandler{engine: engine}
}

type jobStatusResponse struct {
	Job           *model.Job `json:"job"`
	QueuePosition int        `json:"queue_position"`
}

func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.engine.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	position := -1
	if job.Status == model.JobStatusQueued {
		position = h.engine.QueuePosition(job.ID)
	}
	response.Success(c, jobStatusResponse{Job: job, QueuePosition: position})
}

func (h *JobHandler) QueueState(c *gin.Context) {
	state, err := h.engine.QueueState(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, state)
}
