package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

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
	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.DocNumber, doc.Type, doc.Title, doc.Content, nullBytes(doc.FormData), doc.Status, doc.DrafterID,
		nullIfEmpty(doc.CurrentApproverID), doc.Urgency, nullBytes(payload), nullTime(doc.DraftedAt), nullTime(doc.CompletedAt),
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("docNumber", "document number "+doc.DocNumber+" already exists")
		}
		return fmt.Errorf("insert document: %w", err)
	}
	for _, ref := range doc.References {
		if _, err := q.ExecContext(ctx, `INSERT INTO document_references (document_id, user_id) VALUES (?, ?)`, doc.ID, ref); err != nil {
			return fmt.Errorf("insert document reference: %w", err)
		}
	}
	for _, a := range doc.Attachments {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO document_attachments (id, document_id, file_name, content_type, file_size, storage_key, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, a.ID, doc.ID, a.FileName, a.ContentType, a.FileSize, a.StorageKey, formatTime(a.CreatedAt)); err != nil {
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
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return approval.Document{}, notFound(err, "document", id)
	}
	if err := s.loadChildren(ctx, &doc); err != nil {
		return approval.Document{}, err
	}
	return doc, nil
}

// LockDocument reads the aggregate inside the caller's transaction. The
// immediate transaction already serializes writers.
func (s *Store) LockDocument(ctx context.Context, id string) (approval.Document, error) {
	return s.GetDocument(ctx, id)
}

func (s *Store) UpdateDocument(ctx context.Context, doc approval.Document) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE documents
		SET status = ?, current_approver_id = ?, drafted_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, doc.Status, nullIfEmpty(doc.CurrentApproverID), nullTime(doc.DraftedAt), nullTime(doc.CompletedAt),
		formatTime(doc.UpdatedAt), doc.ID)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return expectOne(res, "document", doc.ID)
}

func (s *Store) ReplaceLines(ctx context.Context, docID string, lines []approval.Line) error {
	if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM approval_lines WHERE document_id = ?`, docID); err != nil {
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
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO approval_lines (`+lineColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.DocumentID, l.Seq, l.ApproverID, l.Type, l.Status, l.Optional, nullIfEmpty(l.Comment),
		nullTime(l.ApprovedAt), nullIfEmpty(l.DelegatedTo), nullTime(l.DelegatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("lines", fmt.Sprintf("sequence %d already exists", l.Seq))
		}
		return fmt.Errorf("insert approval line: %w", err)
	}
	return nil
}

func (s *Store) UpdateLine(ctx context.Context, l approval.Line) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE approval_lines
		SET status = ?, comment = ?, approved_at = ?, delegated_to = ?, delegated_at = ?
		WHERE id = ?
	`, l.Status, nullIfEmpty(l.Comment), nullTime(l.ApprovedAt), nullIfEmpty(l.DelegatedTo), nullTime(l.DelegatedAt), l.ID)
	if err != nil {
		return fmt.Errorf("update approval line: %w", err)
	}
	return expectOne(res, "approval line", l.ID)
}

func (s *Store) ListPendingLinesFor(ctx context.Context, userID string) ([]approval.Line, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+prefixed("l", lineColumns)+`
		FROM approval_lines l
		JOIN documents d ON d.id = l.document_id
		WHERE l.status = 'PENDING'
		  AND d.status IN ('DRAFT', 'PENDING')
		  AND (l.delegated_to = ? OR (l.approver_id = ? AND l.delegated_to IS NULL))
		ORDER BY l.document_id, l.seq
	`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending lines: %w", err)
	}
	return collectLines(rows)
}

func (s *Store) ListDocuments(ctx context.Context, filter approval.DocumentFilter) ([]approval.Document, error) {
	where, args := documentWhere(filter)
	args = append(args, filter.Limit, filter.Offset)
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		`+where+`
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, args...)
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
	if err := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(1) FROM documents `+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return total, nil
}

func documentWhere(filter approval.DocumentFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.CurrentApproverID != "" {
		clauses = append(clauses, "current_approver_id = ?")
		args = append(args, filter.CurrentApproverID)
	}
	if filter.DrafterID != "" {
		clauses = append(clauses, "drafter_id = ?")
		args = append(args, filter.DrafterID)
	}
	if filter.Keyword != "" {
		clauses = append(clauses, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\' OR LOWER(doc_number) LIKE ? ESCAPE '\')`)
		p := likePattern(filter.Keyword)
		args = append(args, p, p, p)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) InsertDelegation(ctx context.Context, d approval.Delegation) error {
	var validTo any
	if !d.ValidTo.IsZero() {
		validTo = formatTime(d.ValidTo)
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO delegations (id, approver_id, delegate_id, valid_from, valid_to, lines_reassigned, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.ApproverID, d.DelegateID, formatTime(d.ValidFrom), validTo, d.LinesReassigned, formatTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert delegation: %w", err)
	}
	return nil
}

func (s *Store) ListDelegations(ctx context.Context, approverID string) ([]approval.Delegation, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, approver_id, delegate_id, valid_from, valid_to, lines_reassigned, created_at
		FROM delegations
		WHERE approver_id = ? OR delegate_id = ?
		ORDER BY created_at DESC, id
	`, approverID, approverID)
	if err != nil {
		return nil, fmt.Errorf("list delegations: %w", err)
	}
	defer rows.Close()

	out := []approval.Delegation{}
	for rows.Next() {
		var d approval.Delegation
		var validFrom, createdAt string
		var validTo sql.NullString
		if err := rows.Scan(&d.ID, &d.ApproverID, &d.DelegateID, &validFrom, &validTo, &d.LinesReassigned, &createdAt); err != nil {
			return nil, err
		}
		if d.ValidFrom, err = parseTime(validFrom); err != nil {
			return nil, err
		}
		if d.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if to, err := parseNullTime(validTo); err != nil {
			return nil, err
		} else if to != nil {
			d.ValidTo = *to
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// loadChildren attaches lines, references and attachments. Each result set is
// drained before the next query since a transaction holds one connection.
func (s *Store) loadChildren(ctx context.Context, doc *approval.Document) error {
	q := s.q(ctx)
	rows, err := q.QueryContext(ctx, `SELECT `+lineColumns+` FROM approval_lines WHERE document_id = ? ORDER BY seq`, doc.ID)
	if err != nil {
		return fmt.Errorf("load approval lines: %w", err)
	}
	if doc.Lines, err = collectLines(rows); err != nil {
		return err
	}

	refRows, err := q.QueryContext(ctx, `SELECT user_id FROM document_references WHERE document_id = ? ORDER BY user_id`, doc.ID)
	if err != nil {
		return fmt.Errorf("load document references: %w", err)
	}
	defer refRows.Close()
	for refRows.Next() {
		var ref string
		if err := refRows.Scan(&ref); err != nil {
			return err
		}
		doc.References = append(doc.References, ref)
	}
	if err := refRows.Err(); err != nil {
		return err
	}
	refRows.Close()

	attRows, err := q.QueryContext(ctx, `
		SELECT id, document_id, file_name, content_type, file_size, storage_key, created_at
		FROM document_attachments WHERE document_id = ? ORDER BY created_at, id
	`, doc.ID)
	if err != nil {
		return fmt.Errorf("load document attachments: %w", err)
	}
	defer attRows.Close()
	for attRows.Next() {
		var a approval.Attachment
		var createdAt string
		if err := attRows.Scan(&a.ID, &a.DocumentID, &a.FileName, &a.ContentType, &a.FileSize, &a.StorageKey, &createdAt); err != nil {
			return err
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return err
		}
		doc.Attachments = append(doc.Attachments, a)
	}
	return attRows.Err()
}

func collectLines(rows *sql.Rows) ([]approval.Line, error) {
	defer rows.Close()
	var out []approval.Line
	for rows.Next() {
		var l approval.Line
		var comment, approvedAt, delegatedTo, delegatedAt sql.NullString
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.Seq, &l.ApproverID, &l.Type, &l.Status, &l.Optional,
			&comment, &approvedAt, &delegatedTo, &delegatedAt); err != nil {
			return nil, err
		}
		l.Comment = comment.String
		l.DelegatedTo = delegatedTo.String
		var err error
		if l.ApprovedAt, err = parseNullTime(approvedAt); err != nil {
			return nil, err
		}
		if l.DelegatedAt, err = parseNullTime(delegatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanDocument(row scanner) (approval.Document, error) {
	var doc approval.Document
	var formData, currentApprover, payload, draftedAt, completedAt sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&doc.ID, &doc.DocNumber, &doc.Type, &doc.Title, &doc.Content, &formData, &doc.Status, &doc.DrafterID,
		&currentApprover, &doc.Urgency, &payload, &draftedAt, &completedAt, &createdAt, &updatedAt); err != nil {
		return approval.Document{}, err
	}
	if formData.Valid && formData.String != "" {
		doc.FormData = []byte(formData.String)
	}
	doc.CurrentApproverID = currentApprover.String
	var err error
	if doc.Payload, err = approval.DecodePayload(doc.Type, []byte(payload.String)); err != nil {
		return approval.Document{}, err
	}
	if doc.DraftedAt, err = parseNullTime(draftedAt); err != nil {
		return approval.Document{}, err
	}
	if doc.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return approval.Document{}, err
	}
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return approval.Document{}, err
	}
	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return approval.Document{}, err
	}
	return doc, nil
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
