package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/zulandar/tracker/internal/errs"
	"github.com/zulandar/tracker/internal/models"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// GormStore implements Store on a gorm connection.
type GormStore struct {
	db    *gorm.DB
	newID func() string
}

// New returns a GormStore using db. Tables must already be migrated.
func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db, newID: newULID}
}

// DB returns the underlying connection.
func (s *GormStore) DB() *gorm.DB { return s.db }

// newULID returns a lexicographically sortable id. ulid.Make is monotonic
// within a millisecond and safe for concurrent use.
func newULID() string {
	return ulid.Make().String()
}

// translate maps driver and gorm errors onto the error taxonomy.
func translate(op, resource, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errs.NotFound(resource, id)
	case isDuplicateKey(err):
		return &errs.ConflictError{Resource: resource, ID: id}
	default:
		return errs.Storage(op, err)
	}
}

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// Atomic runs fn inside a database transaction.
func (s *GormStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, newID: s.newID})
	})
}

// --- Projects ---

func (s *GormStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = s.newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return translate("create project", "project", p.Key, s.db.WithContext(ctx).Create(p).Error)
}

func (s *GormStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate("get project", "project", id, err)
	}
	return &p, nil
}

func (s *GormStore) GetProjectByKey(ctx context.Context, key string) (*models.Project, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).Where("`key` = ?", key).First(&p).Error; err != nil {
		return nil, translate("get project", "project", key, err)
	}
	return &p, nil
}

func (s *GormStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	if err := s.db.WithContext(ctx).Order("`key` ASC").Find(&out).Error; err != nil {
		return nil, errs.Storage("list projects", err)
	}
	return out, nil
}

// --- Issues ---

// InsertIssue assigns the id and the next project number, then inserts. The
// project counter only ever grows, so numbers are never reused.
func (s *GormStore) InsertIssue(ctx context.Context, issue *models.Issue) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bump := tx.Model(&models.Project{}).Where("id = ?", issue.ProjectID).
			UpdateColumn("last_number", gorm.Expr("last_number + 1"))
		if bump.Error != nil {
			return errs.Storage("next issue number", bump.Error)
		}
		if bump.RowsAffected == 0 {
			return errs.NotFound("project", issue.ProjectID)
		}
		var p models.Project
		if err := tx.Where("id = ?", issue.ProjectID).First(&p).Error; err != nil {
			return translate("next issue number", "project", issue.ProjectID, err)
		}

		if issue.ID == "" {
			issue.ID = s.newID()
		}
		issue.Number = p.LastNumber
		issue.Key = fmt.Sprintf("%s-%d", p.Key, p.LastNumber)
		if issue.Version == 0 {
			issue.Version = 1
		}
		return translate("insert issue", "issue", issue.Key, tx.Create(issue).Error)
	})
}

func (s *GormStore) LoadIssue(ctx context.Context, id string) (*models.Issue, error) {
	var issue models.Issue
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&issue).Error; err != nil {
		return nil, translate("load issue", "issue", id, err)
	}
	return &issue, nil
}

func (s *GormStore) LoadIssueByKey(ctx context.Context, key string) (*models.Issue, error) {
	var issue models.Issue
	if err := s.db.WithContext(ctx).Where("`key` = ?", key).First(&issue).Error; err != nil {
		return nil, translate("load issue", "issue", key, err)
	}
	return &issue, nil
}

// SaveIssue writes every mutable column if the stored version still matches
// issue.Version, then advances issue.Version.
func (s *GormStore) SaveIssue(ctx context.Context, issue *models.Issue) error {
	res := s.db.WithContext(ctx).Model(&models.Issue{}).
		Where("id = ? AND version = ?", issue.ID, issue.Version).
		Updates(map[string]interface{}{
			"kind":                   issue.Kind,
			"title":                  issue.Title,
			"description":            issue.Description,
			"status":                 issue.Status,
			"priority":               issue.Priority,
			"parent_id":              issue.ParentID,
			"sprint_id":              issue.SprintID,
			"client_visible":         issue.ClientVisible,
			"client_approval_status": issue.ClientApprovalStatus,
			"client_feedback":        issue.ClientFeedback,
			"assignee_id":            issue.AssigneeID,
			"story_points":           issue.StoryPoints,
			"epic_closed":            issue.EpicClosed,
			"closed_at":              issue.ClosedAt,
			"version":                issue.Version + 1,
			"updated_at":             issue.UpdatedAt,
		})
	if res.Error != nil {
		return translate("save issue", "issue", issue.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missingOrStale(ctx, &models.Issue{}, "issue", issue.ID)
	}
	issue.Version++
	return nil
}

// missingOrStale distinguishes a deleted row from a concurrent update after a
// versioned write matched nothing.
func (s *GormStore) missingOrStale(ctx context.Context, model interface{}, resource, id string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return errs.Storage("save "+resource, err)
	}
	if n == 0 {
		return errs.NotFound(resource, id)
	}
	return &errs.ConflictError{Resource: resource, ID: id}
}

func (s *GormStore) ListIssues(ctx context.Context, f IssueFilter) ([]models.Issue, error) {
	q := s.db.WithContext(ctx).Model(&models.Issue{})
	if f.ProjectID != "" {
		q = q.Where("project_id = ?", f.ProjectID)
	}
	if f.SprintID != "" {
		q = q.Where("sprint_id = ?", f.SprintID)
	}
	if f.Backlog {
		q = q.Where("sprint_id IS NULL")
	}
	if f.ParentID != "" {
		q = q.Where("parent_id = ?", f.ParentID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AssigneeID != "" {
		q = q.Where("assignee_id = ?", f.AssigneeID)
	}
	var out []models.Issue
	if err := q.Order("project_id ASC, number ASC").Find(&out).Error; err != nil {
		return nil, errs.Storage("list issues", err)
	}
	return out, nil
}

func (s *GormStore) DeleteIssue(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Issue{})
	if res.Error != nil {
		return errs.Storage("delete issue", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("issue", id)
	}
	return nil
}

// --- Sprints ---

func (s *GormStore) InsertSprint(ctx context.Context, sp *models.Sprint) error {
	if sp.ID == "" {
		sp.ID = s.newID()
	}
	if sp.Version == 0 {
		sp.Version = 1
	}
	return translate("insert sprint", "sprint", sp.ID, s.db.WithContext(ctx).Create(sp).Error)
}

func (s *GormStore) LoadSprint(ctx context.Context, id string) (*models.Sprint, error) {
	var sp models.Sprint
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sp).Error; err != nil {
		return nil, translate("load sprint", "sprint", id, err)
	}
	return &sp, nil
}

func (s *GormStore) SaveSprint(ctx context.Context, sp *models.Sprint) error {
	res := s.db.WithContext(ctx).Model(&models.Sprint{}).
		Where("id = ? AND version = ?", sp.ID, sp.Version).
		Updates(map[string]interface{}{
			"name":       sp.Name,
			"goal":       sp.Goal,
			"start_date": sp.StartDate,
			"end_date":   sp.EndDate,
			"closed_at":  sp.ClosedAt,
			"version":    sp.Version + 1,
			"updated_at": sp.UpdatedAt,
		})
	if res.Error != nil {
		return translate("save sprint", "sprint", sp.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.missingOrStale(ctx, &models.Sprint{}, "sprint", sp.ID)
	}
	sp.Version++
	return nil
}

func (s *GormStore) ListSprints(ctx context.Context, projectID string) ([]models.Sprint, error) {
	q := s.db.WithContext(ctx).Model(&models.Sprint{})
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	var out []models.Sprint
	if err := q.Order("start_date ASC, id ASC").Find(&out).Error; err != nil {
		return nil, errs.Storage("list sprints", err)
	}
	return out, nil
}

// --- Audit ---

// AppendAudit inserts one entry. There is deliberately no update or delete.
func (s *GormStore) AppendAudit(ctx context.Context, e *models.AuditEntry) error {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return errs.Storage("append audit", err)
	}
	return nil
}

func (s *GormStore) QueryAudit(ctx context.Context, resourceID string) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	err := s.db.WithContext(ctx).Where("resource_id = ?", resourceID).
		Order("created_at ASC, id ASC").Find(&out).Error
	if err != nil {
		return nil, errs.Storage("query audit", err)
	}
	return out, nil
}

func (s *GormStore) AuditSince(ctx context.Context, since time.Time) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	err := s.db.WithContext(ctx).Where("created_at > ?", since).
		Order("created_at ASC, id ASC").Find(&out).Error
	if err != nil {
		return nil, errs.Storage("audit since", err)
	}
	return out, nil
}
