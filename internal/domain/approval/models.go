package approval

import (
	"encoding/json"
	"time"
)

// Document is the aggregate root routed through its approval lines.
type Document struct {
	ID                string          `json:"id"`
	DocNumber         string          `json:"docNumber"`
	Type              DocumentType    `json:"type"`
	Title             string          `json:"title"`
	Content           string          `json:"content"`
	FormData          json.RawMessage `json:"formData,omitempty"`
	Status            Status          `json:"status"`
	DrafterID         string          `json:"drafterId"`
	CurrentApproverID string          `json:"currentApproverId,omitempty"`
	Urgency           Urgency         `json:"urgency"`
	DraftedAt         *time.Time      `json:"draftedAt,omitempty"`
	CompletedAt       *time.Time      `json:"completedAt,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	Lines             []Line          `json:"lines,omitempty"`
	References        []string        `json:"references,omitempty"`
	Attachments       []Attachment    `json:"attachments,omitempty"`
	Payload           Payload         `json:"payload,omitempty"`
}

// Line is one ordered approval step. DocumentID is a plain foreign key; the
// document assembles its lines at query time.
type Line struct {
	ID          string     `json:"id"`
	DocumentID  string     `json:"documentId"`
	Seq         int        `json:"seq"`
	ApproverID  string     `json:"approverId"`
	Type        LineType   `json:"type"`
	Status      LineStatus `json:"status"`
	Optional    bool       `json:"optional"`
	Comment     string     `json:"comment,omitempty"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	DelegatedTo string     `json:"delegatedTo,omitempty"`
	DelegatedAt *time.Time `json:"delegatedAt,omitempty"`
}

// EffectiveApprover is the user who has to act on the line.
func (l Line) EffectiveApprover() string {
	if l.DelegatedTo != "" {
		return l.DelegatedTo
	}
	return l.ApproverID
}

// Attachment is metadata only; the binary lives in the attachment store.
type Attachment struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"documentId"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	FileSize    int64     `json:"fileSize"`
	StorageKey  string    `json:"storageKey"`
	CreatedAt   time.Time `json:"createdAt"`
}

type LineSpec struct {
	ApproverID string   `json:"approverId"`
	Type       LineType `json:"type"`
	Optional   bool     `json:"optional"`
}

type DraftInput struct {
	Type        DocumentType
	Title       string
	Content     string
	FormData    json.RawMessage
	DrafterID   string
	Urgency     Urgency
	Payload     Payload
	References  []string
	Attachments []Attachment
}

type DelegateInput struct {
	ApproverID string
	DelegateID string
	ValidFrom  time.Time
	ValidTo    time.Time
}

// Delegation records one delegate call and its validity window.
type Delegation struct {
	ID              string    `json:"id"`
	ApproverID      string    `json:"approverId"`
	DelegateID      string    `json:"delegateId"`
	ValidFrom       time.Time `json:"validFrom"`
	ValidTo         time.Time `json:"validTo"`
	LinesReassigned int       `json:"linesReassigned"`
	CreatedAt       time.Time `json:"createdAt"`
}

type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// DocumentFilter selects document headers. Empty fields do not filter.
type DocumentFilter struct {
	Status            Status
	CurrentApproverID string
	DrafterID         string
	Keyword           string
	Limit             int
	Offset            int
}

type DocumentList struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
}
