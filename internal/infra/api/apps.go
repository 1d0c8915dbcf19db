package api

import (
	"net/http"
	"strconv"

	"appdeck/internal/application/command/control_app"
	"appdeck/internal/application/command/delete_app"
	"appdeck/internal/application/command/import_app"
	"appdeck/internal/application/command/import_descriptor"
	"appdeck/internal/application/command/put_descriptor"
	"appdeck/internal/application/command/run_pipeline"
	"appdeck/internal/application/command/set_auto_update"
	"appdeck/internal/application/query/get_app"
	"appdeck/internal/application/query/get_app_events"
	"appdeck/internal/application/query/get_apps"
	"appdeck/internal/application/query/get_descriptor"
	"appdeck/internal/application/query/reconcile_descriptor"
	"appdeck/internal/domain/model"
	"appdeck/pkg/cqrs"

	"github.com/gin-gonic/gin"
)

// ImportRequest registers a source-controlled application.
type ImportRequest struct {
	Location string `json:"location" binding:"required"`
}

// ImportDescriptorRequest registers an application from descriptor text.
type ImportDescriptorRequest struct {
	Name       string `json:"name"`
	Descriptor string `json:"descriptor" binding:"required"`
}

// DescriptorBody carries descriptor text in both directions.
type DescriptorBody struct {
	Descriptor string `json:"descriptor"`
}

// DeployRequest starts a pipeline run. Omitted options keep their defaults.
type DeployRequest struct {
	model.RunOptions
	// Wait blocks the request until the run completes.
	Wait bool `json:"wait"`
}

// DeployResponse is returned when a run is accepted without waiting.
type DeployResponse struct {
	RunID string `json:"run_id"`
}

// ReconcileResponse reports the difference between two descriptors.
type ReconcileResponse struct {
	model.DiffResult
	TransferableKeys []model.TransferableKey `json:"transferable_keys"`
}

// AutoUpdateRequest configures update checks.
type AutoUpdateRequest struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"interval_minutes"`
}

// SelfResponse describes the application a capability token belongs to.
type SelfResponse struct {
	AppID  string            `json:"app_id"`
	Source string            `json:"source"`
	App    *model.AppDetails `json:"app,omitempty"`
}

func (s *Server) handleListApps(c *gin.Context) {
	apps, err := cqrs.DispatchAs[[]*model.App](c.Request.Context(), s.deps.Queries, get_apps.GetAppsQuery{})
	if err != nil {
		respondError(c, err)
		return
	}
	if apps == nil {
		apps = []*model.App{}
	}
	c.JSON(http.StatusOK, apps)
}

func (s *Server) handleImport(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	id := s.deps.NewID()
	if err := s.deps.Commands.Dispatch(c.Request.Context(), import_app.ImportAppCommand{AppID: id, Location: req.Location}); err != nil {
		respondError(c, err)
		return
	}
	s.respondApp(c, http.StatusCreated, id, false)
}

func (s *Server) handleImportDescriptor(c *gin.Context) {
	var req ImportDescriptorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	id := s.deps.NewID()
	cmd := import_descriptor.ImportDescriptorCommand{AppID: id, AppName: req.Name, Descriptor: req.Descriptor}
	if err := s.deps.Commands.Dispatch(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	s.respondApp(c, http.StatusCreated, id, false)
}

func (s *Server) handleGetApp(c *gin.Context) {
	s.respondApp(c, http.StatusOK, c.Param("id"), true)
}

func (s *Server) respondApp(c *gin.Context, code int, id string, withRuntime bool) {
	details, err := cqrs.DispatchAs[*model.AppDetails](c.Request.Context(), s.deps.Queries,
		get_app.GetAppQuery{AppID: id, WithRuntime: withRuntime})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(code, details)
}

func (s *Server) handleRemove(c *gin.Context) {
	preserve := false
	if v := c.Query("preserve_data"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "invalid preserve_data value")
			return
		}
		preserve = parsed
	}
	cmd := delete_app.DeleteAppCommand{AppID: c.Param("id"), PreserveData: preserve}
	if err := s.deps.Commands.Dispatch(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeploy(c *gin.Context) {
	req := DeployRequest{RunOptions: model.DefaultRunOptions()}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	var result model.RunResult
	cmd := run_pipeline.RunPipelineCommand{
		AppID:   c.Param("id"),
		RunID:   s.deps.NewID(),
		Options: req.RunOptions,
		Wait:    req.Wait,
		Result:  &result,
	}
	if err := s.deps.Commands.Dispatch(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	if req.Wait {
		c.JSON(http.StatusOK, result)
		return
	}
	c.JSON(http.StatusAccepted, DeployResponse{RunID: cmd.RunID})
}

func (s *Server) handleGetDescriptor(c *gin.Context) {
	text, err := cqrs.DispatchAs[string](c.Request.Context(), s.deps.Queries,
		get_descriptor.GetDescriptorQuery{AppID: c.Param("id")})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DescriptorBody{Descriptor: text})
}

func (s *Server) handlePutDescriptor(c *gin.Context) {
	var body DescriptorBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	cmd := put_descriptor.PutDescriptorCommand{AppID: c.Param("id"), Descriptor: body.Descriptor}
	if err := s.deps.Commands.Dispatch(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReconcile(c *gin.Context) {
	var body DescriptorBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	diff, err := cqrs.DispatchAs[model.DiffResult](c.Request.Context(), s.deps.Queries,
		reconcile_descriptor.ReconcileDescriptorQuery{AppID: c.Param("id"), Descriptor: body.Descriptor})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReconcileResponse{DiffResult: diff, TransferableKeys: diff.TransferableKeys()})
}

func (s *Server) handleControl(start bool) gin.HandlerFunc {
	action := control_app.AppActionStop
	if start {
		action = control_app.AppActionStart
	}
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := s.deps.Commands.Dispatch(c.Request.Context(), control_app.ControlAppCommand{AppID: id, Action: action}); err != nil {
			respondError(c, err)
			return
		}
		s.respondApp(c, http.StatusOK, id, false)
	}
}

func (s *Server) handleAutoUpdate(c *gin.Context) {
	var req AutoUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	id := c.Param("id")
	cmd := set_auto_update.SetAutoUpdateCommand{AppID: id, Enabled: req.Enabled, IntervalMinutes: req.IntervalMinutes}
	if err := s.deps.Commands.Dispatch(c.Request.Context(), cmd); err != nil {
		respondError(c, err)
		return
	}
	s.respondApp(c, http.StatusOK, id, false)
}

func (s *Server) handleEvents(c *gin.Context) {
	q := get_app_events.GetAppEventsQuery{AppID: c.Param("id"), RunID: c.Query("run_id")}
	if v := c.Query("after"); v != "" {
		after, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid after value")
			return
		}
		q.AfterSeq = after
	}
	list, err := cqrs.DispatchAs[[]model.Event](c.Request.Context(), s.deps.Queries, q)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []model.Event{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleSelf(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
		return
	}
	resp := SelfResponse{AppID: claims.Subject, Source: claims.Source}
	details, err := cqrs.DispatchAs[*model.AppDetails](c.Request.Context(), s.deps.Queries,
		get_app.GetAppQuery{AppID: claims.Subject})
	if err != nil {
		respondError(c, err)
		return
	}
	resp.App = details
	c.JSON(http.StatusOK, resp)
}
