package entity

type CaseStatus string

const (
	CaseStatusOpen             CaseStatus = "open"
	CaseStatusInProgress       CaseStatus = "in_progress"
	CaseStatusAwaitingExternal CaseStatus = "awaiting_external"
	CaseStatusResolved         CaseStatus = "resolved"
	CaseStatusClosed           CaseStatus = "closed"
)

var caseStatusRank = map[CaseStatus]int{
	CaseStatusOpen:             0,
	CaseStatusInProgress:       1,
	CaseStatusAwaitingExternal: 2,
	CaseStatusResolved:         3,
	CaseStatusClosed:           4,
}

func (s CaseStatus) Valid() bool {
	_, ok := caseStatusRank[s]
	return ok
}

// CanTransitionTo reports whether a case may move from s to next.
// Progress is forward only; resolved and closed cases may reopen to in_progress.
func (s CaseStatus) CanTransitionTo(next CaseStatus) bool {
	from, ok := caseStatusRank[s]
	if !ok {
		return false
	}
	to, ok := caseStatusRank[next]
	if !ok {
		return false
	}
	if to > from {
		return true
	}
	return next == CaseStatusInProgress && (s == CaseStatusResolved || s == CaseStatusClosed)
}
