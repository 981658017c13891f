package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/hierarchy"
	"github.com/zulandar/tracker/internal/models"
	"github.com/zulandar/tracker/internal/status"
	"github.com/zulandar/tracker/internal/store"
	"github.com/zulandar/tracker/internal/tracker"
	"github.com/zulandar/tracker/internal/workitem"
)

type handlers struct {
	svc *tracker.Service
	loc *time.Location
	log *zap.SugaredLogger
}

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	v1 := router.Group("/api/v1")

	v1.GET("/projects", h.listProjects)
	v1.POST("/projects", h.createProject)
	v1.GET("/projects/:id/hierarchy", h.getHierarchy)
	v1.GET("/projects/:id/sprints", h.listSprints)

	v1.POST("/issues", h.createIssue)
	v1.GET("/issues", h.listIssues)
	v1.GET("/issues/:id", h.getIssue)
	v1.DELETE("/issues/:id", h.deleteIssue)
	v1.POST("/issues/:id/transition", h.transition)
	v1.POST("/issues/:id/cancel", h.cancel)
	v1.POST("/issues/:id/priority", h.priority)
	v1.PATCH("/issues/:id/fields", h.updateField)
	v1.POST("/issues/:id/visibility", h.visibility)
	v1.POST("/issues/:id/approval", h.submitApproval)
	v1.POST("/issues/:id/approval/resubmit", h.resubmitApproval)
	v1.POST("/issues/:id/approval/revert", h.revertApproval)
	v1.PUT("/issues/:id/parent", h.attach)
	v1.DELETE("/issues/:id/parent", h.detach)
	v1.PUT("/issues/:id/sprint", h.assignSprint)
	v1.DELETE("/issues/:id/sprint", h.backlog)
	v1.POST("/issues/:id/comments", h.comment)
	v1.GET("/issues/:id/links", h.listLinks)
	v1.POST("/issues/:id/links", h.addLink)
	v1.DELETE("/issues/:id/links", h.removeLink)
	v1.POST("/issues/:id/subtasks", h.createSubtask)
	v1.GET("/issues/:id/history", h.history)
	v1.GET("/issues/:id/timeline", h.timeline)

	v1.POST("/epics/:id/close", h.closeEpic)

	v1.POST("/events/issue-removed", h.issueRemoved)

	v1.POST("/sprints", h.createSprint)
	v1.GET("/sprints/:id", h.getSprint)
	v1.POST("/sprints/:id/close", h.closeSprint)
	v1.GET("/sprints/:id/velocity", h.velocity)
	v1.GET("/sprints/:id/timeline", h.timeline)
}

func actor(c *gin.Context) string { return c.GetHeader(ActorHeader) }

// respondIssue writes the issue or the error.
func respondIssue(c *gin.Context, issue *models.Issue, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIssue(issue))
}

// --- Projects ---

func (h *handlers) listProjects(c *gin.Context) {
	ps, err := h.svc.ListProjects(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]projectJSON, 0, len(ps))
	for i := range ps {
		out = append(out, toProject(&ps[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) createProject(c *gin.Context) {
	var req struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.svc.CreateProject(c.Request.Context(), actor(c), req.Key, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProject(p))
}

func (h *handlers) getHierarchy(c *gin.Context) {
	hier, err := h.svc.GetHierarchy(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toHierarchy(hier))
}

// --- Issues ---

type createIssueRequest struct {
	Project       string   `json:"project"`
	Kind          string   `json:"kind"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Priority      string   `json:"priority"`
	Assignee      string   `json:"assignee"`
	StoryPoints   *float64 `json:"story_points"`
	ClientVisible bool     `json:"client_visible"`
	Parent        string   `json:"parent"`
	Sprint        string   `json:"sprint"`
}

func (r createIssueRequest) opts() workitem.CreateOpts {
	return workitem.CreateOpts{
		ProjectID:     r.Project,
		Kind:          models.Kind(r.Kind),
		Title:         r.Title,
		Description:   r.Description,
		Priority:      models.Priority(r.Priority),
		AssigneeID:    r.Assignee,
		StoryPoints:   r.StoryPoints,
		ClientVisible: r.ClientVisible,
	}
}

func (h *handlers) createIssue(c *gin.Context) {
	var req createIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	issue, err := h.svc.CreateIssue(c.Request.Context(), actor(c), tracker.CreateIssueOpts{
		CreateOpts: req.opts(),
		ParentRef:  req.Parent,
		SprintID:   req.Sprint,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toIssue(issue))
}

func (h *handlers) listIssues(c *gin.Context) {
	f := store.IssueFilter{
		ProjectID:  c.Query("project"),
		SprintID:   c.Query("sprint"),
		ParentID:   c.Query("parent"),
		Kind:       models.Kind(c.Query("kind")),
		Status:     models.Status(c.Query("status")),
		AssigneeID: c.Query("assignee"),
	}
	if b := c.Query("backlog"); b != "" {
		v, err := strconv.ParseBool(b)
		if err != nil {
			writeError(c, errs.Validation("backlog_invalid", "backlog must be a boolean"))
			return
		}
		f.Backlog = v
	}
	issues, err := h.svc.ListIssues(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIssues(issues))
}

func (h *handlers) getIssue(c *gin.Context) {
	issue, err := h.svc.GetIssue(c.Request.Context(), c.Param("id"))
	respondIssue(c, issue, err)
}

func (h *handlers) deleteIssue(c *gin.Context) {
	res, err := h.svc.DeleteIssue(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// issueRemoved lets an external system report an issue it deleted so that
// dangling parent links are cleared.
func (h *handlers) issueRemoved(c *gin.Context) {
	var req struct {
		IssueID string `json:"issue_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.IssueRemoved(c.Request.Context(), actor(c), req.IssueID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) transition(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	issue, err := h.svc.TransitionStatus(c.Request.Context(), actor(c), c.Param("id"), models.Status(req.Status))
	respondIssue(c, issue, err)
}

func (h *handlers) cancel(c *gin.Context) {
	issue, err := h.svc.Cancel(c.Request.Context(), actor(c), c.Param("id"))
	respondIssue(c, issue, err)
}

func (h *handlers) priority(c *gin.Context) {
	var req struct {
		Priority string `json:"priority"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	issue, err := h.svc.ChangePriority(c.Request.Context(), actor(c), c.Param("id"), models.Priority(req.Priority))
	respondIssue(c, issue, err)
}

func (h *handlers) updateField(c *gin.Context) {
	var req struct {
		Field string  `json:"field"`
		Value *string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	issue, err := h.svc.UpdateField(c.Request.Context(), actor(c), c.Param("id"), status.Field(req.Field), req.Value)
	respondIssue(c, issue, err)
}

func (h *handlers) visibility(c *gin.Context) {
	var req struct {
		Visible *bool `json:"visible"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Visible == nil {
		writeError(c, errs.Validation("visible_required", "visible is required"))
		return
	}
	issue, err := h.svc.SetClientVisible(c.Request.Context(), actor(c), c.Param("id"), *req.Visible)
	respondIssue(c, issue, err)
}

func (h *handlers) submitApproval(c *gin.Context) {
	var req struct {
		Status   string `json:"status"`
		Feedback string `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	issue, err := h.svc.SubmitApproval(c.Request.Context(), actor(c), c.Param("id"), models.ApprovalStatus(req.Status), req.Feedback)
	respondIssue(c, issue, err)
}

func (h *handlers) resubmitApproval(c *gin.Context) {
	issue, err := h.svc.ResubmitApproval(c.Request.Context(), actor(c), c.Param("id"))
	respondIssue(c, issue, err)
}

func (h *handlers) revertApproval(c *gin.Context) {
	issue, err := h.svc.RevertApproval(c.Request.Context(), actor(c), c.Param("id"))
	respondIssue(c, issue, err)
}

func (h *handlers) attach(c *gin.Context) {
	var req struct {
		Epic string `json:"epic"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	issue, err := h.svc.AttachToEpic(c.Request.Context(), actor(c), c.Param("id"), req.Epic)
	respondIssue(c, issue, err)
}

func (h *handlers) detach(c *gin.Context) {
	issue, err := h.svc.DetachFromEpic(c.Request.Context(), actor(c), c.Param("id"))
	respondIssue(c, issue, err)
}

func (h *handlers) assignSprint(c *gin.Context) {
	var req struct {
		Sprint string `json:"sprint"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	issue, err := h.svc.AssignToSprint(c.Request.Context(), actor(c), c.Param("id"), req.Sprint)
	respondIssue(c, issue, err)
}

func (h *handlers) backlog(c *gin.Context) {
	issue, err := h.svc.MoveToBacklog(c.Request.Context(), actor(c), c.Param("id"))
	respondIssue(c, issue, err)
}

func (h *handlers) comment(c *gin.Context) {
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	issue, err := h.svc.AddComment(c.Request.Context(), actor(c), c.Param("id"), req.Body)
	respondIssue(c, issue, err)
}

func (h *handlers) listLinks(c *gin.Context) {
	urls, err := h.svc.Links(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if urls == nil {
		urls = []string{}
	}
	c.JSON(http.StatusOK, urls)
}

func (h *handlers) addLink(c *gin.Context) {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	issue, err := h.svc.AddLink(c.Request.Context(), actor(c), c.Param("id"), req.URL)
	respondIssue(c, issue, err)
}

func (h *handlers) removeLink(c *gin.Context) {
	issue, err := h.svc.RemoveLink(c.Request.Context(), actor(c), c.Param("id"), c.Query("url"))
	respondIssue(c, issue, err)
}

func (h *handlers) createSubtask(c *gin.Context) {
	var req createIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	issue, err := h.svc.CreateSubtask(c.Request.Context(), actor(c), c.Param("id"), req.opts())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toIssue(issue))
}

func (h *handlers) history(c *gin.Context) {
	entries, err := h.svc.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAudit(entries))
}

func (h *handlers) timeline(c *gin.Context) {
	loc := h.loc
	if tz := c.Query("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			writeError(c, errs.Validation("tz_invalid", "unknown time zone %q", tz))
			return
		}
		loc = l
	}
	days, err := h.svc.Timeline(c.Request.Context(), c.Param("id"), loc)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timezone": loc.String(), "days": days})
}

// --- Epics ---

func (h *handlers) closeEpic(c *gin.Context) {
	var req struct {
		Resolution string `json:"resolution"`
		Target     string `json:"target"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	resolution, err := hierarchy.ParseResolution(req.Resolution)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := h.svc.CloseEpic(c.Request.Context(), actor(c), c.Param("id"), resolution, req.Target)
	if err != nil {
		writeError(c, err)
		return
	}
	code := http.StatusOK
	if !res.OK() {
		code = http.StatusMultiStatus
	}
	c.JSON(code, gin.H{
		"epic":      toIssue(res.Epic),
		"updated":   nonNil(res.Updated),
		"failed":    res.Failed,
		"untouched": nonNil(res.Untouched),
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// --- Sprints ---

func (h *handlers) createSprint(c *gin.Context) {
	var req struct {
		Project   string `json:"project"`
		Name      string `json:"name"`
		Goal      string `json:"goal"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate, h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate, h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	sp, err := h.svc.CreateSprint(c.Request.Context(), actor(c), workitem.SprintOpts{
		ProjectID: req.Project,
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSprint(sp))
}

func parseDate(field, s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, errs.Validation(field+"_invalid", "%s must be YYYY-MM-DD", field)
	}
	return t, nil
}

func (h *handlers) listSprints(c *gin.Context) {
	sprints, err := h.svc.ListSprints(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]sprintJSON, 0, len(sprints))
	for i := range sprints {
		out = append(out, toSprint(&sprints[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) getSprint(c *gin.Context) {
	sp, err := h.svc.GetSprint(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSprint(sp))
}

func (h *handlers) closeSprint(c *gin.Context) {
	var req struct {
		CarryTo *string `json:"carry_to"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	res, err := h.svc.CloseSprint(c.Request.Context(), actor(c), c.Param("id"), req.CarryTo)
	if err != nil {
		writeError(c, err)
		return
	}
	code := http.StatusOK
	if !res.OK() {
		code = http.StatusMultiStatus
	}
	c.JSON(code, gin.H{
		"sprint":  toSprint(&res.Sprint),
		"updated": nonNil(res.Updated),
		"failed":  res.Failed,
	})
}

func (h *handlers) velocity(c *gin.Context) {
	v, err := h.svc.Velocity(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
