package domain

// ShouldTriggerTransfer decides whether an event has just reached quorum and
// transfer generation should run. The pending check is what makes the trigger
// idempotent: once an event leaves pending, later approvals can keep pushing
// the counter past the threshold without ever re-firing generation.
func ShouldTriggerTransfer(currentApprovals, requiredApprovals int, status EventStatus) bool {
	return status == EventStatusPending && currentApprovals >= requiredApprovals
}
