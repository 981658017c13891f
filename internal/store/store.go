// Package store defines the persistence interface used by the tracker and a
// gorm implementation of it.
package store

import (
	"context"
	"time"

	"github.com/zulandar/tracker/internal/models"
)

// IssueFilter specifies filters for listing issues. Zero fields are ignored.
type IssueFilter struct {
	ProjectID  string
	SprintID   string
	ParentID   string
	Backlog    bool // only issues without a sprint
	Kind       models.Kind
	Status     models.Status
	AssigneeID string
}

// Store is the persistence collaborator. Mutating issue and sprint saves are
// version-checked and fail with *errs.ConflictError when the row changed
// since it was loaded. Audit entries can only be appended.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectByKey(ctx context.Context, key string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)

	// Issues
	InsertIssue(ctx context.Context, issue *models.Issue) error
	LoadIssue(ctx context.Context, id string) (*models.Issue, error)
	LoadIssueByKey(ctx context.Context, key string) (*models.Issue, error)
	SaveIssue(ctx context.Context, issue *models.Issue) error
	ListIssues(ctx context.Context, filter IssueFilter) ([]models.Issue, error)
	// DeleteIssue removes the row only. Callers detach dependents afterwards.
	DeleteIssue(ctx context.Context, id string) error

	// Sprints
	InsertSprint(ctx context.Context, s *models.Sprint) error
	LoadSprint(ctx context.Context, id string) (*models.Sprint, error)
	SaveSprint(ctx context.Context, s *models.Sprint) error
	ListSprints(ctx context.Context, projectID string) ([]models.Sprint, error)

	// Audit
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
	QueryAudit(ctx context.Context, resourceID string) ([]models.AuditEntry, error)
	AuditSince(ctx context.Context, since time.Time) ([]models.AuditEntry, error)

	// Atomic runs fn in a single unit of work. If fn returns an error every
	// write made through tx is discarded.
	Atomic(ctx context.Context, fn func(tx Store) error) error
}
