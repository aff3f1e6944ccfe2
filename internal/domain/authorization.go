package domain

import "time"

type ApproverStatus string

const (
	ApproverStatusPending  ApproverStatus = "pending"
	ApproverStatusApproved ApproverStatus = "approved"
	ApproverStatusRejected ApproverStatus = "rejected"
)

type Approver struct {
	ID         string         `json:"id"`
	Status     ApproverStatus `json:"status"`
	Signature  string         `json:"signature,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	ApprovedAt *time.Time     `json:"approved_at,omitempty"`
}

// Authorization tracks multi-party approval against a threshold.
type Authorization struct {
	Required  int        `json:"required"`
	Collected int        `json:"collected"`
	Approvers []Approver `json:"approvers"`
}

// Find returns a pointer into the approver slice, or nil.
func (a *Authorization) Find(approverID string) *Approver {
	for i := range a.Approvers {
		if a.Approvers[i].ID == approverID {
			return &a.Approvers[i]
		}
	}
	return nil
}

// Recount recomputes Collected from the approver list. Adding or
// removing approvers never adjusts the tally directly; it always goes
// through here.
func (a *Authorization) Recount() {
	collected := 0
	for _, ap := range a.Approvers {
		if ap.Status == ApproverStatusApproved {
			collected++
		}
	}
	a.Collected = collected
}

func (a *Authorization) ThresholdMet() bool {
	return a.Collected >= a.Required
}
