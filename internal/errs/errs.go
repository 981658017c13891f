// Package errs defines the error taxonomy shared by the workflow packages.
//
// Every failure surfaced by the core is one of the concrete types below so
// callers (HTTP handlers, CLI commands) can branch with errors.As without
// string matching.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing input. Rule names the
// violated constraint, e.g. "title_required" or "feedback_required".
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Rule, e.Message)
}

// Validation builds a ValidationError.
func Validation(rule, format string, args ...any) error {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// IllegalTransitionError reports a state-machine edge that is not allowed.
type IllegalTransitionError struct {
	Machine string // "status" or "approval"
	From    string
	To      string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition from %q to %q", e.Machine, e.From, e.To)
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// InvalidHierarchyError reports an epic/child structure violation.
type InvalidHierarchyError struct {
	IssueID string
	Reason  string
}

func (e *InvalidHierarchyError) Error() string {
	return fmt.Sprintf("invalid hierarchy for %s: %s", e.IssueID, e.Reason)
}

// CrossProjectError reports a link between resources of different projects.
type CrossProjectError struct {
	IssueProject  string
	TargetProject string
}

func (e *CrossProjectError) Error() string {
	return fmt.Sprintf("cross-project link: issue in %q, target in %q", e.IssueProject, e.TargetProject)
}

// ConflictError reports that a resource changed underneath a mutation.
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Resource, e.ID)
}

// NotVisibleError reports an approval attempt on an issue that is not client-visible.
type NotVisibleError struct {
	IssueID string
}

func (e *NotVisibleError) Error() string {
	return fmt.Sprintf("issue %s is not client-visible", e.IssueID)
}

// StorageError wraps a failure of the persistence collaborator.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError unless it already is one of the
// taxonomy types, in which case it is returned untouched.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTaxonomy(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsTaxonomy reports whether err is (or wraps) one of the package's error types.
func IsTaxonomy(err error) bool {
	return Is[*ValidationError](err) ||
		Is[*IllegalTransitionError](err) ||
		Is[*NotFoundError](err) ||
		Is[*InvalidHierarchyError](err) ||
		Is[*CrossProjectError](err) ||
		Is[*ConflictError](err) ||
		Is[*NotVisibleError](err) ||
		Is[*StorageError](err)
}

// Is reports whether err wraps an error of type T.
func Is[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
