package entity

// SubjectType distinguishes the two kinds of subject that go through approval
type SubjectType string

const (
	SubjectTypeTravel  SubjectType = "travel"
	SubjectTypeExpense SubjectType = "expense"
)

// IsValid reports whether t is a known subject type
func (t SubjectType) IsValid() bool {
	switch t {
	case SubjectTypeTravel, SubjectTypeExpense:
		return true
	default:
		return false
	}
}

// SubjectStatus is the derived overall status of a subject
type SubjectStatus string

const (
	SubjectStatusDraft    SubjectStatus = "draft"
	SubjectStatusPending  SubjectStatus = "pending"
	SubjectStatusApproved SubjectStatus = "approved"
	SubjectStatusRejected SubjectStatus = "rejected"
)

// IsTerminal reports whether no further decisions are accepted
func (s SubjectStatus) IsTerminal() bool {
	return s == SubjectStatusApproved || s == SubjectStatusRejected
}

// RecordStatus is the status of one approval record
type RecordStatus string

const (
	RecordStatusPending  RecordStatus = "pending"
	RecordStatusApproved RecordStatus = "approved"
	RecordStatusRejected RecordStatus = "rejected"
)

// IsValid reports whether s is a known record status
func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordStatusPending, RecordStatusApproved, RecordStatusRejected:
		return true
	default:
		return false
	}
}

// Action is the verb of a decision
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ApproverType says how a policy step's approver is resolved
type ApproverType string

const (
	ApproverTypeManager        ApproverType = "manager"
	ApproverTypeSpecificUser   ApproverType = "specific_user"
	ApproverTypeRole           ApproverType = "role"
	ApproverTypeDepartmentHead ApproverType = "department_head"
	ApproverTypeFinance        ApproverType = "finance"
)

// IsValid reports whether t is a known approver type
func (t ApproverType) IsValid() bool {
	switch t {
	case ApproverTypeManager, ApproverTypeSpecificUser, ApproverTypeRole, ApproverTypeDepartmentHead, ApproverTypeFinance:
		return true
	default:
		return false
	}
}

// PolicyScopeAll marks a policy that applies to every subject type
const PolicyScopeAll = "all"

// DefaultStepTimeoutHours is used when a policy step does not set a timeout
const DefaultStepTimeoutHours = 48
