package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"intranet/internal/domain/apperr"
	"intranet/internal/domain/approval"
)

const documentColumns = `id, doc_number, doc_type, title, content, form_data, status, drafter_id,
	current_approver_id, urgency, payload_json, drafted_at, completed_at, created_at, updated_at`

const lineColumns = `id, document_id, seq, approver_id, line_type, status, optional, comment,
	approved_at, delegated_to, delegated_at`

func (s *Store) InsertDocument(ctx context.Context, doc approval.Document) error {
	payload, err := approval.EncodePayload(doc.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	q := s.q(ctx)
	_, err = q.Exec(ctx, `
    INSERT INTO documents (`+documentColumns+`)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
  `, doc.ID, doc.DocNumber, string(doc.Type), doc.Title, doc.Content, nullBytes(doc.FormData), string(doc.Status), doc.DrafterID,
		nullIfEmpty(doc.CurrentApproverID), string(doc.Urgency), nullBytes(payload), doc.DraftedAt, doc.CompletedAt,
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("docNumber", "document number "+doc.DocNumber+" already exists")
		}
		return fmt.Errorf("insert document: %w", err)
	}
	for _, ref := range doc.References {
		if _, err := q.Exec(ctx, `INSERT INTO document_references (document_id, user_id) VALUES ($1,$2)`, doc.ID, ref); err != nil {
			return fmt.Errorf("insert document reference: %w", err)
		}
	}
	for _, a := range doc.Attachments {
		if _, err := q.Exec(ctx, `
      INSERT INTO document_attachments (id, document_id, file_name, content_type, file_size, storage_key, created_at)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, a.ID, doc.ID, a.FileName, a.ContentType, a.FileSize, a.StorageKey, a.CreatedAt); err != nil {
			return fmt.Errorf("insert document attachment: %w", err)
		}
	}
	for _, l := range doc.Lines {
		if err := s.insertLine(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (approval.Document, error) {
	return s.getDocument(ctx, id, "")
}

// LockDocument takes the row lock on the document for the rest of the
// transaction carried on ctx.
func (s *Store) LockDocument(ctx context.Context, id string) (approval.Document, error) {
	return s.getDocument(ctx, id, " FOR UPDATE")
}

func (s *Store) getDocument(ctx context.Context, id, suffix string) (approval.Document, error) {
	doc, err := scanDocument(s.q(ctx).QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`+suffix, id))
	if err != nil {
		return approval.Document{}, notFound(err, "document", id)
	}
	if err := s.loadChildren(ctx, &doc); err != nil {
		return approval.Document{}, err
	}
	return doc, nil
}

func (s *Store) UpdateDocument(ctx context.Context, doc approval.Document) error {
	tag, err := s.q(ctx).Exec(ctx, `
    UPDATE documents
    SET status = $1, current_approver_id = $2, drafted_at = $3, completed_at = $4, updated_at = $5
    WHERE id = $6
  `, string(doc.Status), nullIfEmpty(doc.CurrentApproverID), doc.DraftedAt, doc.CompletedAt, doc.UpdatedAt, doc.ID)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return expectOne(tag, "document", doc.ID)
}

func (s *Store) ReplaceLines(ctx context.Context, docID string, lines []approval.Line) error {
	if _, err := s.q(ctx).Exec(ctx, `DELETE FROM approval_lines WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("delete approval lines: %w", err)
	}
	for _, l := range lines {
		if err := s.insertLine(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertLine(ctx context.Context, l approval.Line) error {
	_, err := s.q(ctx).Exec(ctx, `
    INSERT INTO approval_lines (`+lineColumns+`)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
  `, l.ID, l.DocumentID, l.Seq, l.ApproverID, string(l.Type), string(l.Status), l.Optional, nullIfEmpty(l.Comment),
		l.ApprovedAt, nullIfEmpty(l.DelegatedTo), l.DelegatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("lines", fmt.Sprintf("sequence %d already exists", l.Seq))
		}
		return fmt.Errorf("insert approval line: %w", err)
	}
	return nil
}

func (s *Store) UpdateLine(ctx context.Context, l approval.Line) error {
	tag, err := s.q(ctx).Exec(ctx, `
    UPDATE approval_lines
    SET status = $1, comment = $2, approved_at = $3, delegated_to = $4, delegated_at = $5
    WHERE id = $6
  `, string(l.Status), nullIfEmpty(l.Comment), l.ApprovedAt, nullIfEmpty(l.DelegatedTo), l.DelegatedAt, l.ID)
	if err != nil {
		return fmt.Errorf("update approval line: %w", err)
	}
	return expectOne(tag, "approval line", l.ID)
}

func (s *Store) ListPendingLinesFor(ctx context.Context, userID string) ([]approval.Line, error) {
	rows, err := s.q(ctx).Query(ctx, `
    SELECT `+prefixed("l", lineColumns)+`
    FROM approval_lines l
    JOIN documents d ON d.id = l.document_id
    WHERE l.status = 'PENDING'
      AND d.status IN ('DRAFT', 'PENDING')
      AND (l.delegated_to = $1 OR (l.approver_id = $1 AND l.delegated_to IS NULL))
    ORDER BY l.document_id, l.seq
  `, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending lines: %w", err)
	}
	return collectLines(rows)
}

func (s *Store) ListDocuments(ctx context.Context, filter approval.DocumentFilter) ([]approval.Document, error) {
	where, args := documentWhere(filter)
	n := len(args)
	args = append(args, filter.Limit, filter.Offset)
	rows, err := s.q(ctx).Query(ctx, fmt.Sprintf(`
    SELECT %s
    FROM documents
    %s
    ORDER BY created_at DESC, id
    LIMIT $%d OFFSET $%d
  `, documentColumns, where, n+1, n+2), args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []approval.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *Store) CountDocuments(ctx context.Context, filter approval.DocumentFilter) (int, error) {
	where, args := documentWhere(filter)
	var total int
	if err := s.q(ctx).QueryRow(ctx, `SELECT COUNT(1) FROM documents `+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return total, nil
}

func documentWhere(filter approval.DocumentFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.CurrentApproverID != "" {
		add("current_approver_id = $%d", filter.CurrentApproverID)
	}
	if filter.DrafterID != "" {
		add("drafter_id = $%d", filter.DrafterID)
	}
	if filter.Keyword != "" {
		add("(title ILIKE $%[1]d OR content ILIKE $%[1]d OR doc_number ILIKE $%[1]d)", likePattern(filter.Keyword))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) InsertDelegation(ctx context.Context, d approval.Delegation) error {
	var validTo *time.Time
	if !d.ValidTo.IsZero() {
		validTo = &d.ValidTo
	}
	_, err := s.q(ctx).Exec(ctx, `
    INSERT INTO delegations (id, approver_id, delegate_id, valid_from, valid_to, lines_reassigned, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, d.ID, d.ApproverID, d.DelegateID, d.ValidFrom, validTo, d.LinesReassigned, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert delegation: %w", err)
	}
	return nil
}

func (s *Store) ListDelegations(ctx context.Context, approverID string) ([]approval.Delegation, error) {
	rows, err := s.q(ctx).Query(ctx, `
    SELECT id, approver_id, delegate_id, valid_from, valid_to, lines_reassigned, created_at
    FROM delegations
    WHERE approver_id = $1 OR delegate_id = $1
    ORDER BY created_at DESC, id
  `, approverID)
	if err != nil {
		return nil, fmt.Errorf("list delegations: %w", err)
	}
	defer rows.Close()

	out := []approval.Delegation{}
	for rows.Next() {
		var d approval.Delegation
		var validTo *time.Time
		if err := rows.Scan(&d.ID, &d.ApproverID, &d.DelegateID, &d.ValidFrom, &validTo, &d.LinesReassigned, &d.CreatedAt); err != nil {
			return nil, err
		}
		if validTo != nil {
			d.ValidTo = *validTo
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// loadChildren attaches lines, references and attachments. pgx cannot run a
// query on a transaction while another result set is open, so each one is
// fully read first.
func (s *Store) loadChildren(ctx context.Context, doc *approval.Document) error {
	q := s.q(ctx)
	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM approval_lines WHERE document_id = $1 ORDER BY seq`, doc.ID)
	if err != nil {
		return fmt.Errorf("load approval lines: %w", err)
	}
	if doc.Lines, err = collectLines(rows); err != nil {
		return err
	}

	refRows, err := q.Query(ctx, `SELECT user_id FROM document_references WHERE document_id = $1 ORDER BY user_id`, doc.ID)
	if err != nil {
		return fmt.Errorf("load document references: %w", err)
	}
	if doc.References, err = pgx.CollectRows(refRows, pgx.RowTo[string]); err != nil {
		return err
	}

	attRows, err := q.Query(ctx, `
    SELECT id, document_id, file_name, content_type, file_size, storage_key, created_at
    FROM document_attachments WHERE document_id = $1 ORDER BY created_at, id
  `, doc.ID)
	if err != nil {
		return fmt.Errorf("load document attachments: %w", err)
	}
	doc.Attachments, err = pgx.CollectRows(attRows, func(row pgx.CollectableRow) (approval.Attachment, error) {
		var a approval.Attachment
		err := row.Scan(&a.ID, &a.DocumentID, &a.FileName, &a.ContentType, &a.FileSize, &a.StorageKey, &a.CreatedAt)
		return a, err
	})
	return err
}

func collectLines(rows pgx.Rows) ([]approval.Line, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (approval.Line, error) {
		var l approval.Line
		var lineType, status string
		var comment, delegatedTo *string
		if err := row.Scan(&l.ID, &l.DocumentID, &l.Seq, &l.ApproverID, &lineType, &status, &l.Optional,
			&comment, &l.ApprovedAt, &delegatedTo, &l.DelegatedAt); err != nil {
			return approval.Line{}, err
		}
		l.Type = approval.LineType(lineType)
		l.Status = approval.LineStatus(status)
		if comment != nil {
			l.Comment = *comment
		}
		if delegatedTo != nil {
			l.DelegatedTo = *delegatedTo
		}
		return l, nil
	})
}

func scanDocument(row pgx.Row) (approval.Document, error) {
	var doc approval.Document
	var docType, status, urgency string
	var formData, currentApprover, payload *string
	if err := row.Scan(&doc.ID, &doc.DocNumber, &docType, &doc.Title, &doc.Content, &formData, &status, &doc.DrafterID,
		&currentApprover, &urgency, &payload, &doc.DraftedAt, &doc.CompletedAt, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return approval.Document{}, err
	}
	doc.Type = approval.DocumentType(docType)
	doc.Status = approval.Status(status)
	doc.Urgency = approval.Urgency(urgency)
	if formData != nil && *formData != "" {
		doc.FormData = []byte(*formData)
	}
	if currentApprover != nil {
		doc.CurrentApproverID = *currentApprover
	}
	if payload != nil {
		p, err := approval.DecodePayload(doc.Type, []byte(*payload))
		if err != nil {
			return approval.Document{}, err
		}
		doc.Payload = p
	}
	return doc, nil
}
