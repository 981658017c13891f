// Package audit defines the typed payload carried by each audit action and
// appends entries to the append-only ledger.
package audit

import (
	"encoding/json"
	"fmt"

	"github.com/zulandar/tracker/internal/models"
)

// Payload is the closed set of audit payloads. Each concrete type belongs to
// exactly one action tag.
type Payload interface {
	Action() models.Action
	isPayload()
}

// CreateIssue is the first entry of every issue.
type CreateIssue struct {
	Key   string      `json:"key"`
	Kind  models.Kind `json:"kind"`
	Title string      `json:"title"`
}

// StatusChange records one edge of the status table.
type StatusChange struct {
	Old models.Status `json:"old"`
	New models.Status `json:"new"`
}

// PriorityChange records a priority edit.
type PriorityChange struct {
	Old models.Priority `json:"old"`
	New models.Priority `json:"new"`
}

// UpdateField covers scalar edits. Nil values mean the field was unset.
type UpdateField struct {
	Field string  `json:"field"`
	Old   *string `json:"old"`
	New   *string `json:"new"`
}

// ClientApproval is written for decisions, resubmissions and reverts alike.
type ClientApproval struct {
	Status   models.ApprovalStatus `json:"status"`
	Feedback *string               `json:"feedback"`
}

// ClientVisibility records the client-visible flag being turned on or off.
type ClientVisibility struct {
	Visible bool `json:"visible"`
}

// AddComment holds the comment body; comments exist only in the audit log.
type AddComment struct {
	Body string `json:"body"`
}

// AddLink optionally carries the linked resource's title and state when the
// link could be resolved.
type AddLink struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	State string `json:"state,omitempty"`
}

// RemoveLink removes a URL previously added with AddLink.
type RemoveLink struct {
	URL string `json:"url"`
}

// DeleteIssue is the last entry of a deleted issue. The trail outlives the
// row.
type DeleteIssue struct {
	Key   string      `json:"key"`
	Kind  models.Kind `json:"kind"`
	Title string      `json:"title"`
}

// CreateSubtask is recorded on the parent epic.
type CreateSubtask struct {
	SubtaskID  string `json:"subtask_id"`
	SubtaskKey string `json:"subtask_key"`
	Title      string `json:"title"`
}

// SetParent holds epic keys.
type SetParent struct {
	Old *string `json:"old"`
	New *string `json:"new"`
}

// SetSprint holds sprint ids plus names for display.
type SetSprint struct {
	Old     *string `json:"old"`
	New     *string `json:"new"`
	OldName string  `json:"old_name,omitempty"`
	NewName string  `json:"new_name,omitempty"`
}

// CloseEpic is recorded on the epic. Open counts the children the resolution
// applied to.
type CloseEpic struct {
	Resolution string  `json:"resolution"`
	Target     *string `json:"target"`
	Open       int     `json:"open"`
}

// CreateSprint is recorded on the sprint with its dates as YYYY-MM-DD.
type CreateSprint struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// CloseSprint is recorded on the sprint. CarriedTo is nil when open issues
// went to the backlog.
type CloseSprint struct {
	CarriedTo *string `json:"carried_to"`
	Moved     int     `json:"moved"`
}

// Unknown holds an entry whose tag this build does not know, or whose payload
// could not be decoded.
type Unknown struct {
	Tag models.Action
	Raw json.RawMessage
}

func (CreateIssue) Action() models.Action      { return models.ActionCreateIssue }
func (DeleteIssue) Action() models.Action      { return models.ActionDeleteIssue }
func (StatusChange) Action() models.Action     { return models.ActionStatusChange }
func (PriorityChange) Action() models.Action   { return models.ActionPriorityChange }
func (UpdateField) Action() models.Action      { return models.ActionUpdateField }
func (ClientApproval) Action() models.Action   { return models.ActionClientApproval }
func (ClientVisibility) Action() models.Action { return models.ActionClientVisibility }
func (AddComment) Action() models.Action       { return models.ActionAddComment }
func (AddLink) Action() models.Action          { return models.ActionAddLink }
func (RemoveLink) Action() models.Action       { return models.ActionRemoveLink }
func (CreateSubtask) Action() models.Action    { return models.ActionCreateSubtask }
func (SetParent) Action() models.Action        { return models.ActionSetParent }
func (SetSprint) Action() models.Action        { return models.ActionSetSprint }
func (CloseEpic) Action() models.Action        { return models.ActionCloseEpic }
func (CreateSprint) Action() models.Action     { return models.ActionCreateSprint }
func (CloseSprint) Action() models.Action      { return models.ActionCloseSprint }
func (u Unknown) Action() models.Action        { return u.Tag }

func (CreateIssue) isPayload()      {}
func (DeleteIssue) isPayload()      {}
func (StatusChange) isPayload()     {}
func (PriorityChange) isPayload()   {}
func (UpdateField) isPayload()      {}
func (ClientApproval) isPayload()   {}
func (ClientVisibility) isPayload() {}
func (AddComment) isPayload()       {}
func (AddLink) isPayload()          {}
func (RemoveLink) isPayload()       {}
func (CreateSubtask) isPayload()    {}
func (SetParent) isPayload()        {}
func (SetSprint) isPayload()        {}
func (CloseEpic) isPayload()        {}
func (CreateSprint) isPayload()     {}
func (CloseSprint) isPayload()      {}
func (Unknown) isPayload()          {}

// Encode serializes p to the JSON text stored in AuditEntry.Payload.
func Encode(p Payload) (string, error) {
	if u, ok := p.(Unknown); ok {
		return string(u.Raw), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("audit: encode %s: %w", p.Action(), err)
	}
	return string(b), nil
}

var decoders = map[models.Action]func(string) (Payload, error){
	models.ActionCreateIssue:      decodeAs[CreateIssue],
	models.ActionDeleteIssue:      decodeAs[DeleteIssue],
	models.ActionStatusChange:     decodeAs[StatusChange],
	models.ActionPriorityChange:   decodeAs[PriorityChange],
	models.ActionUpdateField:      decodeAs[UpdateField],
	models.ActionClientApproval:   decodeAs[ClientApproval],
	models.ActionClientVisibility: decodeAs[ClientVisibility],
	models.ActionAddComment:       decodeAs[AddComment],
	models.ActionAddLink:          decodeAs[AddLink],
	models.ActionRemoveLink:       decodeAs[RemoveLink],
	models.ActionCreateSubtask:    decodeAs[CreateSubtask],
	models.ActionSetParent:        decodeAs[SetParent],
	models.ActionSetSprint:        decodeAs[SetSprint],
	models.ActionCloseEpic:        decodeAs[CloseEpic],
	models.ActionCreateSprint:     decodeAs[CreateSprint],
	models.ActionCloseSprint:      decodeAs[CloseSprint],
}

// Known reports whether tag has a typed payload in this build.
func Known(tag models.Action) bool {
	_, ok := decoders[tag]
	return ok
}

// Decode parses a stored payload. Unknown tags decode to Unknown with a nil
// error. A known tag with a malformed payload returns Unknown and the error.
func Decode(tag models.Action, raw string) (Payload, error) {
	dec, ok := decoders[tag]
	if !ok {
		return Unknown{Tag: tag, Raw: json.RawMessage(raw)}, nil
	}
	p, err := dec(raw)
	if err != nil {
		return Unknown{Tag: tag, Raw: json.RawMessage(raw)}, fmt.Errorf("audit: decode %s: %w", tag, err)
	}
	return p, nil
}

func decodeAs[T Payload](raw string) (Payload, error) {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}
