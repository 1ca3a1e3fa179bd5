package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"recast/internal/config"
)

// WorkflowRequest is the submission payload. AppConfig and SystemConfig
// override the service's merged configuration for this run only.
type WorkflowRequest struct {
	ProjectPath  string         `json:"project_path" binding:"required"`
	Intent       map[string]any `json:"intent"`
	AppConfig    map[string]any `json:"app_config,omitempty"`
	SystemConfig map[string]any `json:"system_config,omitempty"`
}

// WorkflowResponse acknowledges a submission.
type WorkflowResponse struct {
	WorkflowID  string `json:"workflow_id"`
	Status      string `json:"status"`
	StoragePath string `json:"storage_path,omitempty"`
}

func (s *Server) handleCreateWorkflow(c *gin.Context) {
	var req WorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prepared, wfCtx, err := s.workflows.InitializeWorkflow(req.ProjectPath, req.Intent)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.SystemConfig) > 0 {
		prepared = config.DeepMerge(prepared, req.SystemConfig)
	}
	if len(req.AppConfig) > 0 {
		prepared = config.DeepMerge(prepared, req.AppConfig)
	}
	wfCtx["config"] = map[string]any(prepared)

	workflowID := config.GetString(prepared, "workflow_run_id")
	storagePath := config.GetString(prepared, "project.workspace_root")
	s.store.Create(workflowID, storagePath)

	go s.runWorkflow(workflowID, wfCtx)

	s.logger.Info("server: accepted workflow %s for %s", workflowID, req.ProjectPath)
	c.JSON(http.StatusOK, WorkflowResponse{
		WorkflowID:  workflowID,
		Status:      StatusPending,
		StoragePath: storagePath,
	})
}

// runWorkflow executes in the background; the submission has already been
// acknowledged so all outcomes land in the store.
func (s *Server) runWorkflow(workflowID string, wfCtx config.Config) {
	s.store.SetStatus(workflowID, StatusRunning, nil, "")

	result, err := s.workflows.ExecuteWorkflow(context.Background(), s.cfg.EntryTeam, wfCtx)
	if err != nil {
		s.logger.Error("server: workflow %s failed: %v", workflowID, err)
		s.store.SetStatus(workflowID, StatusError, nil, err.Error())
		return
	}

	status, _ := result["status"].(string)
	if status != "success" {
		errMsg, _ := result["error"].(string)
		s.store.SetStatus(workflowID, StatusError, result, errMsg)
		return
	}
	s.store.SetStatus(workflowID, StatusSuccess, result, "")
}

func (s *Server) handleWorkflowStatus(c *gin.Context) {
	rec := s.store.Get(c.Param("id"))
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(s.startTime).String(),
	})
}
