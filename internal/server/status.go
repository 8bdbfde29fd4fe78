// status.go - File status state machine and deletion policy.
package server

import (
	"fmt"
	"time"
)

// Status is the approval/print state of a file record.
type Status string

const (
	StatusUploaded           Status = "UPLOADED"
	StatusWaitingForApproval Status = "WAITING_FOR_APPROVAL"
	StatusApproved           Status = "APPROVED"
	StatusBeingPrinted       Status = "BEING_PRINTED"
	StatusPrintCompleted     Status = "PRINT_COMPLETED"
	StatusRejected           Status = "REJECTED"
	StatusCancelled          Status = "CANCELLED"
)

// validTransitions maps each status to the set of statuses it may move to.
// PRINT_COMPLETED, REJECTED and CANCELLED are terminal.
var validTransitions = map[Status][]Status{
	StatusUploaded:           {StatusWaitingForApproval, StatusCancelled, StatusRejected, StatusBeingPrinted},
	StatusWaitingForApproval: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:           {StatusBeingPrinted, StatusCancelled},
	// A print failure can push the file back to APPROVED or straight to REJECTED.
	StatusBeingPrinted:   {StatusPrintCompleted, StatusApproved, StatusRejected},
	StatusPrintCompleted: {},
	StatusRejected:       {},
	StatusCancelled:      {},
}

// ParseStatus validates a wire-level status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validTransitions[st]; !ok {
		return "", ValidationError{Msg: fmt.Sprintf("invalid status %q", s)}
	}
	return st, nil
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	targets, ok := validTransitions[s]
	return ok && len(targets) == 0
}

// InvalidTransitionError is returned when a requested status change is not
// in the transition table. The caller must not mutate storage.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// Transition decides whether a file may move from current to requested.
// Requesting the current status again is an idempotent no-op: ok is returned
// true with changed false, and the caller must leave the record untouched
// (statusUpdatedAt included).
func Transition(current, requested Status) (changed bool, err error) {
	if requested == current {
		return false, nil
	}
	for _, t := range validTransitions[current] {
		if t == requested {
			return true, nil
		}
	}
	return false, InvalidTransitionError{From: current, To: requested}
}

// applyStatus mutates rec for an accepted transition into next.
// Entering PRINT_COMPLETED is the only transition with extra side effects:
// it sets the printed flag and timestamp.
func applyStatus(rec *FileRecord, next Status, rejectionReason string, now time.Time) {
	rec.Status = next
	rec.StatusUpdatedAt = now
	rec.RejectionReason = rejectionReason
	if next == StatusPrintCompleted {
		rec.IsPrinted = true
		rec.PrintedAt = &now
	}
}

// deletionOutcome maps the current status to the terminal resting status a
// soft delete leaves behind. PRINT_COMPLETED, APPROVED and REJECTED are
// preserved so both parties can still read the outcome from history;
// everything else is forced to CANCELLED.
func deletionOutcome(current Status) Status {
	switch current {
	case StatusPrintCompleted, StatusApproved, StatusRejected:
		return current
	default:
		return StatusCancelled
	}
}

// applyDeletion mutates rec for a soft delete: the record keeps (or is
// forced into) a terminal status, gains a deletion timestamp and leaves the
// default listings. Deleting a completed print re-asserts the printed flag.
func applyDeletion(rec *FileRecord, now time.Time) {
	final := deletionOutcome(rec.Status)
	if final != rec.Status {
		rec.Status = final
		rec.StatusUpdatedAt = now
	}
	if final == StatusPrintCompleted {
		rec.IsPrinted = true
		if rec.PrintedAt == nil {
			rec.PrintedAt = &now
		}
	}
	rec.IsDeleted = true
	rec.DeletedAt = &now
}
