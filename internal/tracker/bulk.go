package tracker

// ItemFailure is one item of a bulk operation that could not be updated.
type ItemFailure struct {
	IssueID string `json:"issue_id"`
	Reason  string `json:"reason"`
	Err     error  `json:"-"`
}

// BulkResult reports a bulk operation item by item. Bulk operations are not
// transactional as a whole: updated items stay updated when others fail, and
// failed items can be retried one by one.
type BulkResult struct {
	Updated []string      `json:"updated"`
	Failed  []ItemFailure `json:"failed"`
}

func (r *BulkResult) add(id string, err error) {
	if err != nil {
		r.Failed = append(r.Failed, ItemFailure{IssueID: id, Reason: err.Error(), Err: err})
		return
	}
	r.Updated = append(r.Updated, id)
}

// OK reports whether every item succeeded.
func (r *BulkResult) OK() bool { return len(r.Failed) == 0 }
