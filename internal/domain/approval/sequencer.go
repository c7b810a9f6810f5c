package approval

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"intranet/internal/domain/apperr"
)

// NumberLines turns the ordered specs into PENDING lines with Seq 1..N.
func NumberLines(docID string, specs []LineSpec) []Line {
	lines := make([]Line, 0, len(specs))
	for i, spec := range specs {
		lineType := spec.Type
		if lineType == "" {
			lineType = LineApproval
		}
		lines = append(lines, Line{
			ID:         uuid.NewString(),
			DocumentID: docID,
			Seq:        i + 1,
			ApproverID: spec.ApproverID,
			Type:       lineType,
			Status:     LinePending,
			Optional:   spec.Optional,
		})
	}
	return lines
}

func SortLines(lines []Line) {
	sort.Slice(lines, func(i, j int) bool { return lines[i].Seq < lines[j].Seq })
}

// Current returns the index of the lowest-Seq PENDING line.
func Current(lines []Line) (int, bool) {
	idx := -1
	for i, l := range lines {
		if l.Status != LinePending {
			continue
		}
		if idx < 0 || l.Seq < lines[idx].Seq {
			idx = i
		}
	}
	return idx, idx >= 0
}

// Next returns the index of the line at seq+1. Optional lines are not
// skipped; the flag is informational.
func Next(lines []Line, seq int) (int, bool) {
	for i, l := range lines {
		if l.Seq == seq+1 && l.Status == LinePending {
			return i, true
		}
	}
	return -1, false
}

func EffectiveApprover(l Line) string {
	return l.EffectiveApprover()
}

// SkipRemaining marks every PENDING line SKIPPED and returns the indexes it
// changed.
func SkipRemaining(lines []Line) []int {
	var changed []int
	for i := range lines {
		if lines[i].Status == LinePending {
			lines[i].Status = LineSkipped
			changed = append(changed, i)
		}
	}
	return changed
}

// Validate checks that Seq runs 1..N without gaps and approvers are unique.
func Validate(lines []Line) error {
	if len(lines) == 0 {
		return apperr.Validation("lines", "at least one approval line is required")
	}
	seen := make(map[int]bool, len(lines))
	approvers := make(map[string]bool, len(lines))
	for _, l := range lines {
		if l.Seq < 1 || l.Seq > len(lines) || seen[l.Seq] {
			return apperr.Validation("lines", "sequence numbers must run 1..N")
		}
		seen[l.Seq] = true
		if approvers[l.ApproverID] {
			return apperr.Validation("lines", "approver "+l.ApproverID+" appears twice")
		}
		approvers[l.ApproverID] = true
	}
	return nil
}

func stamp(t time.Time) *time.Time {
	return &t
}
