package approval

type DocumentType string

const (
	TypeLeaveRequest    DocumentType = "LEAVE_REQUEST"
	TypeOvertimeRequest DocumentType = "OVERTIME_REQUEST"
	TypeExpenseRequest  DocumentType = "EXPENSE_REQUEST"
	TypePurchaseRequest DocumentType = "PURCHASE_REQUEST"
	TypeGeneralApproval DocumentType = "GENERAL_APPROVAL"
	TypeBusinessTrip    DocumentType = "BUSINESS_TRIP"
	TypeWorkFromHome    DocumentType = "WORK_FROM_HOME"
	TypeResignation     DocumentType = "RESIGNATION"
)

func (t DocumentType) Valid() bool {
	switch t {
	case TypeLeaveRequest, TypeOvertimeRequest, TypeExpenseRequest, TypePurchaseRequest,
		TypeGeneralApproval, TypeBusinessTrip, TypeWorkFromHome, TypeResignation:
		return true
	}
	return false
}

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

type Urgency string

const (
	UrgencyNormal Urgency = "NORMAL"
	UrgencyUrgent Urgency = "URGENT"
)

type LineType string

const (
	LineApproval     LineType = "APPROVAL"
	LineAgreement    LineType = "AGREEMENT"
	LineReference    LineType = "REFERENCE"
	LineNotification LineType = "NOTIFICATION"
)

func (t LineType) Valid() bool {
	switch t {
	case LineApproval, LineAgreement, LineReference, LineNotification:
		return true
	}
	return false
}

type LineStatus string

const (
	LinePending  LineStatus = "PENDING"
	LineApproved LineStatus = "APPROVED"
	LineRejected LineStatus = "REJECTED"
	LineSkipped  LineStatus = "SKIPPED"
)

type LeaveType string

const (
	LeaveAnnual    LeaveType = "ANNUAL"
	LeaveSick      LeaveType = "SICK"
	LeaveSpecial   LeaveType = "SPECIAL"
	LeaveMaternity LeaveType = "MATERNITY"
	LeavePaternity LeaveType = "PATERNITY"
	LeaveChildcare LeaveType = "CHILDCARE"
	LeaveOther     LeaveType = "OTHER"
)

func (t LeaveType) Valid() bool {
	switch t {
	case LeaveAnnual, LeaveSick, LeaveSpecial, LeaveMaternity, LeavePaternity, LeaveChildcare, LeaveOther:
		return true
	}
	return false
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)
