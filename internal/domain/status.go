package domain

import "time"

// RecentWindow is how long after its last update a project keeps the
// "recently updated" badge on the board.
const RecentWindow = 24 * time.Hour

// StageForStatus returns the canonical board stage for a status.
// in_progress fans out to three display stages; candidates_found is the
// deterministic default chosen on load. Canceled projects have no stage
// (hidden from the board), signaled by ok=false.
func StageForStatus(s Status) (stage Stage, ok bool) {
	switch s {
	case StatusPlanning:
		return StageProjectStart, true
	case StatusInProgress:
		return StageCandidatesFound, true
	case StatusReview:
		return StageFinalReview, true
	case StatusCompleted:
		return StageCompleted, true
	default:
		return "", false
	}
}

// StatusForStage maps a board stage back to the status that gets
// persisted when a card is dropped there. Because candidates_found,
// contact_made and interviews_scheduled all collapse to in_progress,
// moves between those three columns are same-status no-ops.
func StatusForStage(st Stage) (Status, bool) {
	switch st {
	case StageProjectStart:
		return StatusPlanning, true
	case StageCandidatesFound, StageContactMade, StageInterviewsScheduled:
		return StatusInProgress, true
	case StageFinalReview:
		return StatusReview, true
	case StageCompleted:
		return StatusCompleted, true
	default:
		return "", false
	}
}

// ProgressForStatus projects a status onto a 0-100 progress value.
func ProgressForStatus(s Status) int {
	switch s {
	case StatusPlanning:
		return 10
	case StatusInProgress:
		return 50
	case StatusReview:
		return 80
	case StatusCompleted:
		return 100
	default:
		return 0
	}
}

// RecentlyUpdated reports whether updatedAt falls inside RecentWindow
// as seen from now.
func RecentlyUpdated(updatedAt, now time.Time) bool {
	if updatedAt.IsZero() {
		return false
	}
	d := now.Sub(updatedAt)
	return d >= 0 && d < RecentWindow
}
