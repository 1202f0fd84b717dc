package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/posfleet/printpool/internal/core"
)

type SubmitJobRequest struct {
	// Payload is the rendered job content, base64-encoded.
	Payload     string `json:"payload" binding:"required"`
	PrinterID   string `json:"printer_id"`
	MaxAttempts int    `json:"max_attempts"`
}

type JobResultResponse struct {
	Completed         bool   `json:"completed"`
	PrinterID         string `json:"printer_id,omitempty"`
	Error             string `json:"error,omitempty"`
	AttemptsExhausted bool   `json:"attempts_exhausted"`
}

type JobHandler struct {
	dispatcher *core.Dispatcher
}

func NewJobHandler(dispatcher *core.Dispatcher) *JobHandler {
	return &JobHandler{dispatcher: dispatcher}
}

// SubmitJob dispatches a job and responds with its terminal result.
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "payload is not valid base64",
		})
		return
	}

	result := h.dispatcher.Submit(c.Request.Context(), core.Job{
		Payload:         payload,
		TargetPrinterID: req.PrinterID,
		MaxAttempts:     req.MaxAttempts,
	})

	if result.Completed() {
		c.JSON(http.StatusOK, JobResultResponse{
			Completed: true,
			PrinterID: result.PrinterID,
		})
		return
	}

	status := http.StatusBadGateway
	if errors.Is(result.Err, core.ErrNoEligiblePrinter) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, JobResultResponse{
		Completed:         false,
		Error:             result.Err.Error(),
		AttemptsExhausted: result.AttemptsExhausted,
	})
}
