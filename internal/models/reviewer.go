package models

// ReviewerTier is the seniority band a reviewer belongs to.
type ReviewerTier string

const (
	TierDepartmentHead ReviewerTier = "department_head"
	TierSectionChief   ReviewerTier = "section_chief"
	TierTeamLeader     ReviewerTier = "team_leader"
)

// Reviewer is a staff member able to decide appeals.
type Reviewer struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Tier         ReviewerTier `json:"tier"`
	DepartmentID string       `json:"departmentId,omitempty"`
}

// Ref converts the reviewer into the reference stored on an appeal.
func (r Reviewer) Ref() ReviewerRef {
	return ReviewerRef{ID: r.ID, Name: r.Name, Email: r.Email, Tier: r.Tier}
}
