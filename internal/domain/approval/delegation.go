package approval

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"intranet/internal/domain/apperr"
	"intranet/internal/platform/tracing"
)

// Delegate hands every pending line of in.ApproverID to in.DelegateID.
// Documents currently waiting on the approver move to the delegate. Lines are
// reassigned at once, so ValidFrom may not lie in the future; the window is
// recorded and reassigned lines are not handed back when it ends. Documents
// drafted by the delegate, or on which the delegate already holds a line, keep
// their approver.
func (s *Service) Delegate(ctx context.Context, in DelegateInput) (d Delegation, err error) {
	ctx, span := tracing.Start(ctx, "approval.Delegate", "user.id", in.ApproverID, "delegate.id", in.DelegateID)
	defer func() { span.End(err) }()

	in.ApproverID = strings.TrimSpace(in.ApproverID)
	in.DelegateID = strings.TrimSpace(in.DelegateID)
	if in.ApproverID == "" {
		return Delegation{}, apperr.Validation("approverId", "required")
	}
	if in.DelegateID == "" {
		return Delegation{}, apperr.Validation("delegateId", "required")
	}
	if in.ApproverID == in.DelegateID {
		return Delegation{}, apperr.Validation("delegateId", "cannot delegate to yourself")
	}
	now := s.Now().UTC()
	if in.ValidFrom.IsZero() {
		in.ValidFrom = now
	}
	if in.ValidFrom.After(now) {
		return Delegation{}, apperr.Validation("validFrom", "must not be in the future")
	}
	if !in.ValidTo.IsZero() && !in.ValidTo.After(in.ValidFrom) {
		return Delegation{}, apperr.Validation("validTo", "must be after validFrom")
	}

	moved := map[string]Document{}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.Resolve(ctx, in.ApproverID); err != nil {
			return err
		}
		if _, err := s.users.Resolve(ctx, in.DelegateID); err != nil {
			return err
		}

		pending, err := s.store.ListPendingLinesFor(ctx, in.ApproverID)
		if err != nil {
			return err
		}
		docIDs := make([]string, 0, len(pending))
		seen := map[string]bool{}
		for _, l := range pending {
			if !seen[l.DocumentID] {
				seen[l.DocumentID] = true
				docIDs = append(docIDs, l.DocumentID)
			}
		}
		// lock in id order so concurrent delegations cannot deadlock
		sort.Strings(docIDs)

		reassigned := 0
		for _, id := range docIDs {
			doc, err := s.store.LockDocument(ctx, id)
			if err != nil {
				return err
			}
			if doc.Status.Terminal() {
				continue
			}
			if doc.DrafterID == in.DelegateID || holdsLine(doc.Lines, in.DelegateID) {
				logger(ctx).Info("delegation skipped document", "document_id", doc.ID, "approver_id", in.ApproverID, "delegate_id", in.DelegateID)
				continue
			}
			for i := range doc.Lines {
				line := &doc.Lines[i]
				if line.Status != LinePending || line.EffectiveApprover() != in.ApproverID {
					continue
				}
				line.DelegatedTo = in.DelegateID
				line.DelegatedAt = stamp(now)
				if err := s.store.UpdateLine(ctx, *line); err != nil {
					return err
				}
				reassigned++
			}
			if doc.Status != StatusPending {
				continue
			}
			if idx, ok := Current(doc.Lines); ok && doc.Lines[idx].EffectiveApprover() != doc.CurrentApproverID {
				doc.CurrentApproverID = doc.Lines[idx].EffectiveApprover()
				doc.UpdatedAt = now
				if err := s.store.UpdateDocument(ctx, doc); err != nil {
					return err
				}
				moved[doc.ID] = doc
			}
		}

		d = Delegation{
			ID:              uuid.NewString(),
			ApproverID:      in.ApproverID,
			DelegateID:      in.DelegateID,
			ValidFrom:       in.ValidFrom.UTC(),
			ValidTo:         in.ValidTo.UTC(),
			LinesReassigned: reassigned,
			CreatedAt:       now,
		}
		return s.store.InsertDelegation(ctx, d)
	})
	if err != nil {
		return Delegation{}, err
	}

	span.SetAttribute("delegation.lines", strconv.Itoa(d.LinesReassigned))
	s.count("delegated")
	for _, doc := range moved {
		s.notify(ctx, doc, EventDelegated, in.ApproverID, "", in.DelegateID)
	}
	return d, nil
}

// holdsLine reports whether userID already approves a line of the document,
// whatever its status.
func holdsLine(lines []Line, userID string) bool {
	for _, l := range lines {
		if l.EffectiveApprover() == userID {
			return true
		}
	}
	return false
}

func (s *Service) ListDelegations(ctx context.Context, approverID string) ([]Delegation, error) {
	if strings.TrimSpace(approverID) == "" {
		return nil, apperr.Validation("approverId", "required")
	}
	return s.store.ListDelegations(ctx, approverID)
}
