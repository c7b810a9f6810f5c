package notifications

const (
	TypeApprovalRequested = "approval_requested"
	TypeDocumentApproved  = "document_approved"
	TypeDocumentRejected  = "document_rejected"
	TypeDocumentCancelled = "document_cancelled"
	TypeDocumentDelegated = "document_delegated"
	TypeLeaveExpiring     = "leave_expiring"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)
