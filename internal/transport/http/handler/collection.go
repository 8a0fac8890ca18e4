package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/internal/domain"
	"github.com/ErlanBelekov/tweet-pipeline/internal/usecase"
	"github.com/gin-gonic/gin"
)

type CollectionHandler struct {
	collections *usecase.CollectionUsecase
	logger      *slog.Logger
}

func NewCollectionHandler(collections *usecase.CollectionUsecase, logger *slog.Logger) *CollectionHandler {
	return &CollectionHandler{
		collections: collections,
		logger:      logger.With("component", "collection_handler"),
	}
}

type submitRequest struct {
	Username    string `json:"username"     binding:"required,min=1,max=64"`
	TargetCount int    `json:"target_count" binding:"omitempty,min=1,max=10000"`
}

type submitResponse struct {
	ID          string        `json:"id"`
	Username    string        `json:"username"`
	TargetCount int           `json:"target_count"`
	Status      domain.Status `json:"status"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

func (h *CollectionHandler) Submit(ctx *gin.Context) {
	var req submitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.collections.Submit(ctx.Request.Context(), req.Username, req.TargetCount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateJob):
			ctx.JSON(http.StatusConflict, gin.H{"error": errDuplicateJob})
		case errors.Is(err, domain.ErrQueueFull):
			ctx.JSON(http.StatusTooManyRequests, gin.H{"error": errQueueFull})
		default:
			h.logger.Error("submit collection", "username", req.Username, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	ctx.JSON(http.StatusAccepted, submitResponse{
		ID:          job.ID,
		Username:    job.Username,
		TargetCount: job.TargetCount,
		Status:      job.Status,
		SubmittedAt: job.SubmittedAt,
	})
}

type statusResponse struct {
	Active      int             `json:"active"`
	QueueLength int             `json:"queue_length"`
	ActiveJobs  []statusJobInfo `json:"active_jobs"`
}

type statusJobInfo struct {
	ID       string        `json:"id"`
	Username string        `json:"username"`
	Status   domain.Status `json:"status"`
}

func (h *CollectionHandler) Status(ctx *gin.Context) {
	st := h.collections.Status()

	resp := statusResponse{
		Active:      st.Active,
		QueueLength: st.QueueLength,
		ActiveJobs:  make([]statusJobInfo, 0, len(st.ActiveJobs)),
	}
	for _, j := range st.ActiveJobs {
		resp.ActiveJobs = append(resp.ActiveJobs, statusJobInfo{ID: j.ID, Username: j.Username, Status: j.Status})
	}
	ctx.JSON(http.StatusOK, resp)
}

func (h *CollectionHandler) Terminate(ctx *gin.Context) {
	jobID := ctx.Param("id")

	if err := h.collections.Terminate(jobID); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errJobNotFound})
			return
		}
		h.logger.Error("terminate job", "job_id", jobID, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "terminated"})
}

type runResponse struct {
	ID          string        `json:"id"`
	JobID       string        `json:"job_id"`
	Status      domain.Status `json:"status"`
	Collected   int           `json:"collected"`
	ReachedEnd  bool          `json:"reached_end"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Error       *string       `json:"error,omitempty"`
}

func (h *CollectionHandler) ListRuns(ctx *gin.Context) {
	username := ctx.Param("username")
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	runs, err := h.collections.Runs(ctx.Request.Context(), username, limit)
	if err != nil {
		h.logger.Error("list runs", "username", username, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	resp := make([]runResponse, 0, len(runs))
	for _, r := range runs {
		resp = append(resp, runResponse{
			ID:          r.ID,
			JobID:       r.JobID,
			Status:      r.Status,
			Collected:   r.Collected,
			ReachedEnd:  r.ReachedEnd,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
			Error:       r.Error,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"runs": resp})
}
