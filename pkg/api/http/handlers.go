package http

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aescanero/promptlab/internal/application/experiments"
	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
	"github.com/aescanero/promptlab/pkg/render"
)

const markdownContentType = "text/markdown; charset=utf-8"

// avatarContentType is fixed for all uploads; the endpoint does not
// sniff the file.
const avatarContentType = "image/jpeg"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// UploadAvatarResponse represents a successful avatar upload
type UploadAvatarResponse struct {
	Message   string `json:"message"`
	AvatarURL string `json:"avatar_url"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleUploadAvatar handles avatar uploads. The error body is a flat
// {"error": ...} object, unlike the enveloped /api/v1 responses.
func (s *Server) handleUploadAvatar(c *gin.Context) {
	userID := c.Param("userID")

	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		s.metrics.RecordAvatarUpload("invalid", 0)
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}
	defer func() { _ = file.Close() }()

	if s.objects == nil {
		s.metrics.RecordAvatarUpload("error", 0)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "avatar storage is not configured"})
		return
	}

	// Timestamp keeps object names unique across repeated uploads
	object := fmt.Sprintf("avatars/%s/%d-%s", userID, time.Now().UnixNano(), filepath.Base(header.Filename))

	url, err := s.objects.Upload(c.Request.Context(), object, avatarContentType, file)
	if err != nil {
		s.logger.Error("failed to upload avatar",
			zap.String("user_id", userID),
			zap.String("object", object),
			zap.Error(err))
		s.metrics.RecordAvatarUpload("error", 0)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload avatar"})
		return
	}
	s.metrics.RecordAvatarUpload("success", header.Size)

	c.JSON(http.StatusOK, UploadAvatarResponse{
		Message:   "avatar uploaded successfully",
		AvatarURL: url,
	})
}

// handleRunExperiment runs one completion synchronously
func (s *Server) handleRunExperiment(c *gin.Context) {
	var req domain.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	exp, err := s.service.Run(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, experiments.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: ErrorDetail{
					Code:    "INVALID_REQUEST",
					Message: err.Error(),
				},
			})
			return
		}
		s.logger.Error("failed to run experiment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "EXPERIMENT_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, exp)
}

// handleListExperiments lists saved experiments, newest first
func (s *Server) handleListExperiments(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: ErrorDetail{
					Code:    "INVALID_REQUEST",
					Message: "limit must be an integer",
				},
			})
			return
		}
		limit = parsed
	}

	exps, err := s.service.ListExperiments(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list experiments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORAGE_ERROR",
				Message: "Failed to list experiments",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"experiments": exps,
		"total":       len(exps),
	})
}

// handleGetExperiment returns one experiment by ID
func (s *Server) handleGetExperiment(c *gin.Context) {
	exp, err := s.service.GetExperiment(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondStorageError(c, err, "Experiment not found")
		return
	}

	c.JSON(http.StatusOK, exp)
}

// handleDeleteExperiment removes one experiment
func (s *Server) handleDeleteExperiment(c *gin.Context) {
	id := c.Param("id")

	if err := s.service.DeleteExperiment(c.Request.Context(), id); err != nil {
		s.respondStorageError(c, err, "Experiment not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"experiment_id": id,
		"status":        "deleted",
	})
}

// handleExperimentReport renders one experiment as markdown
func (s *Server) handleExperimentReport(c *gin.Context) {
	exp, err := s.service.GetExperiment(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondStorageError(c, err, "Experiment not found")
		return
	}

	c.Data(http.StatusOK, markdownContentType, []byte(render.ExperimentMarkdown(exp)))
}

// handleSubmitBatch submits a comparison batch for asynchronous
// execution
func (s *Server) handleSubmitBatch(c *gin.Context) {
	var req domain.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	batch, err := s.service.SubmitBatch(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, experiments.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: ErrorDetail{
					Code:    "INVALID_REQUEST",
					Message: err.Error(),
				},
			})
			return
		}
		s.logger.Error("failed to submit batch", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "BATCH_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusAccepted, batch)
}

// handleGetBatch returns one batch with its per-target results
func (s *Server) handleGetBatch(c *gin.Context) {
	batch, err := s.service.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondStorageError(c, err, "Batch not found")
		return
	}

	c.JSON(http.StatusOK, batch)
}

// handleBatchReport renders a batch comparison as markdown
func (s *Server) handleBatchReport(c *gin.Context) {
	batch, exps, err := s.service.BatchExperiments(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondStorageError(c, err, "Batch not found")
		return
	}

	c.Data(http.StatusOK, markdownContentType, []byte(render.BatchMarkdown(batch, exps)))
}

// handleListProviders lists configured providers and their models
func (s *Server) handleListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers": s.service.Providers(),
	})
}

// respondStorageError maps store errors to 404 or 500
func (s *Server) respondStorageError(c *gin.Context, err error, notFoundMsg string) {
	if errors.Is(err, ports.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: notFoundMsg,
			},
		})
		return
	}

	s.logger.Error("storage error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: ErrorDetail{
			Code:    "STORAGE_ERROR",
			Message: err.Error(),
		},
	})
}
