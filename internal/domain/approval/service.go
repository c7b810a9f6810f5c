package approval

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"intranet/internal/domain/apperr"
	"intranet/internal/platform/tracing"
)

// Service is the document state machine: DRAFT -> PENDING -> APPROVED,
// REJECTED or CANCELLED. Every transition locks the document inside a store
// transaction.
type Service struct {
	store    StoreAPI
	users    Directory
	hook     Hook
	Notifier Notifier
	Metrics  Recorder
	Now      func() time.Time
}

func NewService(store StoreAPI, users Directory, hook Hook) *Service {
	return &Service{store: store, users: users, hook: hook, Now: time.Now}
}

func (s *Service) Draft(ctx context.Context, in DraftInput) (doc Document, err error) {
	ctx, span := tracing.Start(ctx, "approval.Draft", "user.id", in.DrafterID, "document.type", string(in.Type))
	defer func() { span.End(err) }()

	in.Title = strings.TrimSpace(in.Title)
	if !in.Type.Valid() {
		return Document{}, apperr.Validation("type", "unknown document type")
	}
	if in.Title == "" {
		return Document{}, apperr.Validation("title", "required")
	}
	if in.Urgency == "" {
		in.Urgency = UrgencyNormal
	}
	if in.Urgency != UrgencyNormal && in.Urgency != UrgencyUrgent {
		return Document{}, apperr.Validation("urgency", "must be NORMAL or URGENT")
	}
	if len(in.FormData) > 0 && !json.Valid(in.FormData) {
		return Document{}, apperr.Validation("formData", "must be valid JSON")
	}
	if err := checkPayload(in.Type, in.Payload); err != nil {
		return Document{}, err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.Resolve(ctx, in.DrafterID); err != nil {
			return err
		}
		refs := make([]string, 0, len(in.References))
		seen := map[string]bool{}
		for _, ref := range in.References {
			ref = strings.TrimSpace(ref)
			if ref == "" || seen[ref] {
				continue
			}
			if _, err := s.users.Resolve(ctx, ref); err != nil {
				return err
			}
			seen[ref] = true
			refs = append(refs, ref)
		}

		now := s.Now().UTC()
		doc = Document{
			ID:          uuid.NewString(),
			DocNumber:   NewDocNumber(now),
			Type:        in.Type,
			Title:       in.Title,
			Content:     in.Content,
			FormData:    in.FormData,
			Status:      StatusDraft,
			DrafterID:   in.DrafterID,
			Urgency:     in.Urgency,
			CreatedAt:   now,
			UpdatedAt:   now,
			References:  refs,
			Attachments: make([]Attachment, 0, len(in.Attachments)),
			Payload:     in.Payload,
		}
		for _, a := range in.Attachments {
			if strings.TrimSpace(a.FileName) == "" {
				return apperr.Validation("attachments.fileName", "required")
			}
			a.ID = uuid.NewString()
			a.DocumentID = doc.ID
			a.CreatedAt = now
			doc.Attachments = append(doc.Attachments, a)
		}
		return s.store.InsertDocument(ctx, doc)
	})
	if err != nil {
		return Document{}, err
	}
	span.SetAttribute("document.id", doc.ID)
	s.count("drafted")
	return doc, nil
}

// SetApprovalLines replaces the whole line set of a DRAFT document.
func (s *Service) SetApprovalLines(ctx context.Context, docID, actorID string, specs []LineSpec) (doc Document, err error) {
	ctx, span := tracing.Start(ctx, "approval.SetApprovalLines", "document.id", docID)
	defer func() { span.End(err) }()

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		doc, err = s.store.LockDocument(ctx, docID)
		if err != nil {
			return err
		}
		if doc.Status != StatusDraft {
			return apperr.State("set approval lines of", doc.ID, string(doc.Status))
		}
		if actorID != doc.DrafterID {
			return apperr.Permission("set approval lines", actorID, "only the drafter may edit the approval line")
		}

		seen := make(map[string]bool, len(specs))
		for i := range specs {
			specs[i].ApproverID = strings.TrimSpace(specs[i].ApproverID)
			spec := specs[i]
			if spec.Type != "" && !spec.Type.Valid() {
				return apperr.Validation("lines.type", "unknown line type")
			}
			if spec.ApproverID == doc.DrafterID {
				return apperr.Validation("lines", "the drafter cannot approve their own document")
			}
			if seen[spec.ApproverID] {
				return apperr.Validation("lines", "approver "+spec.ApproverID+" appears twice")
			}
			if _, err := s.users.Resolve(ctx, spec.ApproverID); err != nil {
				return err
			}
			seen[spec.ApproverID] = true
		}

		doc.Lines = NumberLines(doc.ID, specs)
		if err := s.store.ReplaceLines(ctx, doc.ID, doc.Lines); err != nil {
			return err
		}
		doc.UpdatedAt = s.Now().UTC()
		return s.store.UpdateDocument(ctx, doc)
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *Service) Submit(ctx context.Context, docID, actorID string) (doc Document, err error) {
	ctx, span := tracing.Start(ctx, "approval.Submit", "document.id", docID, "user.id", actorID)
	defer func() { span.End(err) }()

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		doc, err = s.store.LockDocument(ctx, docID)
		if err != nil {
			return err
		}
		if doc.Status != StatusDraft {
			return apperr.State("submit", doc.ID, string(doc.Status))
		}
		if actorID != doc.DrafterID {
			return apperr.Permission("submit", actorID, "only the drafter may submit")
		}
		if err := Validate(doc.Lines); err != nil {
			return err
		}
		idx, ok := Current(doc.Lines)
		if !ok {
			return apperr.Validation("lines", "no pending approval line")
		}

		now := s.Now().UTC()
		doc.Status = StatusPending
		doc.CurrentApproverID = doc.Lines[idx].EffectiveApprover()
		doc.DraftedAt = stamp(now)
		doc.UpdatedAt = now
		return s.store.UpdateDocument(ctx, doc)
	})
	if err != nil {
		return Document{}, err
	}

	s.count("submitted")
	s.notify(ctx, doc, EventSubmitted, actorID, "", doc.CurrentApproverID)
	return doc, nil
}

// Approve records the current approver's approval. The last approval
// completes the document and runs the approval hook in the same transaction;
// a hook failure rolls the whole approval back.
func (s *Service) Approve(ctx context.Context, docID, approverID, comment string) (doc Document, err error) {
	ctx, span := tracing.Start(ctx, "approval.Approve", "document.id", docID, "user.id", approverID)
	defer func() { span.End(err) }()

	completed := false
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		var idx int
		doc, idx, err = s.lockForDecision(ctx, "approve", docID, approverID)
		if err != nil {
			return err
		}

		now := s.Now().UTC()
		line := &doc.Lines[idx]
		line.Status = LineApproved
		line.Comment = strings.TrimSpace(comment)
		line.ApprovedAt = stamp(now)
		if err := s.store.UpdateLine(ctx, *line); err != nil {
			return err
		}

		if next, ok := Next(doc.Lines, line.Seq); ok {
			doc.CurrentApproverID = doc.Lines[next].EffectiveApprover()
		} else {
			doc.Status = StatusApproved
			doc.CurrentApproverID = ""
			doc.CompletedAt = stamp(now)
			completed = true
		}
		doc.UpdatedAt = now
		if err := s.store.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		if completed && s.hook != nil {
			return s.hook.OnApproved(ctx, doc)
		}
		return nil
	})
	if err != nil {
		return Document{}, err
	}

	if completed {
		s.count("approved")
		s.notify(ctx, doc, EventApproved, approverID, comment, doc.DrafterID)
	} else {
		s.count("advanced")
		s.notify(ctx, doc, EventAdvanced, approverID, comment, doc.CurrentApproverID)
	}
	return doc, nil
}

// Reject ends the document. The rejection commits first; the rejection hook
// then runs in its own transaction and its failure is only logged.
func (s *Service) Reject(ctx context.Context, docID, approverID, reason string) (doc Document, err error) {
	ctx, span := tracing.Start(ctx, "approval.Reject", "document.id", docID, "user.id", approverID)
	defer func() { span.End(err) }()

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		var idx int
		doc, idx, err = s.lockForDecision(ctx, "reject", docID, approverID)
		if err != nil {
			return err
		}

		now := s.Now().UTC()
		line := &doc.Lines[idx]
		line.Status = LineRejected
		line.Comment = strings.TrimSpace(reason)
		line.ApprovedAt = stamp(now)
		if err := s.store.UpdateLine(ctx, *line); err != nil {
			return err
		}
		if err := s.skipRemaining(ctx, doc.Lines); err != nil {
			return err
		}

		doc.Status = StatusRejected
		doc.CurrentApproverID = ""
		doc.CompletedAt = stamp(now)
		doc.UpdatedAt = now
		return s.store.UpdateDocument(ctx, doc)
	})
	if err != nil {
		return Document{}, err
	}

	if s.hook != nil {
		if hookErr := s.store.WithTx(ctx, func(ctx context.Context) error {
			return s.hook.OnRejected(ctx, doc)
		}); hookErr != nil {
			logger(ctx).Warn("rejection side effect failed", "err", hookErr, "document_id", doc.ID)
		}
	}

	s.count("rejected")
	s.notify(ctx, doc, EventRejected, approverID, reason, doc.DrafterID)
	return doc, nil
}

// Cancel withdraws a PENDING document. Only the drafter may cancel and no
// side effect runs.
func (s *Service) Cancel(ctx context.Context, docID, userID string) (doc Document, err error) {
	ctx, span := tracing.Start(ctx, "approval.Cancel", "document.id", docID, "user.id", userID)
	defer func() { span.End(err) }()

	var notifyIDs []string
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		doc, err = s.store.LockDocument(ctx, docID)
		if err != nil {
			return err
		}
		if doc.Status != StatusPending {
			return apperr.State("cancel", doc.ID, string(doc.Status))
		}
		if userID != doc.DrafterID {
			return apperr.Permission("cancel", userID, "only the drafter may cancel")
		}
		if doc.CurrentApproverID != "" {
			notifyIDs = append(notifyIDs, doc.CurrentApproverID)
		}
		if err := s.skipRemaining(ctx, doc.Lines); err != nil {
			return err
		}

		now := s.Now().UTC()
		doc.Status = StatusCancelled
		doc.CurrentApproverID = ""
		doc.CompletedAt = stamp(now)
		doc.UpdatedAt = now
		return s.store.UpdateDocument(ctx, doc)
	})
	if err != nil {
		return Document{}, err
	}

	s.count("cancelled")
	s.notify(ctx, doc, EventCancelled, userID, "", notifyIDs...)
	return doc, nil
}

// lockForDecision loads the document for approve/reject and checks that
// approverID is the one the document waits for.
func (s *Service) lockForDecision(ctx context.Context, op, docID, approverID string) (Document, int, error) {
	doc, err := s.store.LockDocument(ctx, docID)
	if err != nil {
		return Document{}, -1, err
	}
	if doc.Status != StatusPending {
		return Document{}, -1, apperr.State(op, doc.ID, string(doc.Status))
	}
	if approverID == "" || approverID != doc.CurrentApproverID {
		return Document{}, -1, apperr.Permission(op, approverID, "not the current approver")
	}
	idx, ok := Current(doc.Lines)
	if !ok || doc.Lines[idx].EffectiveApprover() != approverID {
		return Document{}, -1, apperr.NotFound("approval line", doc.ID+"/"+approverID)
	}
	return doc, idx, nil
}

func (s *Service) skipRemaining(ctx context.Context, lines []Line) error {
	for _, i := range SkipRemaining(lines) {
		if err := s.store.UpdateLine(ctx, lines[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) count(name string) {
	if s.Metrics != nil {
		s.Metrics.IncTransition(name)
	}
}

func (s *Service) notify(ctx context.Context, doc Document, typ EventType, actorID, comment string, recipients ...string) {
	if s.Notifier == nil {
		return
	}
	ids := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r != "" {
			ids = append(ids, r)
		}
	}
	if len(ids) == 0 {
		return
	}
	s.Notifier.Notify(ctx, Event{
		Type:       typ,
		DocumentID: doc.ID,
		DocNumber:  doc.DocNumber,
		Title:      doc.Title,
		ActorID:    actorID,
		Recipients: ids,
		Comment:    comment,
	})
}
