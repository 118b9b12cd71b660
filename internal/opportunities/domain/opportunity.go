// Package domain holds the opportunity pipeline rules: the stage graph, the
// per-stage field guard, close resolution, attachment classification and
// access policy. Nothing in this package performs I/O.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field names a client-mutable opportunity attribute, using its wire name.
type Field string

const (
	FieldStage              Field = "stage"
	FieldMeetingDate        Field = "meeting_date"
	FieldFeedback           Field = "feedback"
	FieldExpectedCloseDate  Field = "expected_close_date"
	FieldResult             Field = "result"
	FieldAttachmentLinks    Field = "attachment_links"
	FieldCloseOption        Field = "close_option"
	FieldReason             Field = "reason"
	FieldClosedOn           Field = "closed_on"
	FieldContractAttachment Field = "contract_attachment"
)

// AttachmentRef is one entry of attachment_links or contract_attachment.
type AttachmentRef struct {
	ID         uuid.UUID `json:"id"`
	FileName   string    `json:"file_name"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploaded_at"`
	FileType   string    `json:"file_type"`
}

// Opportunity is the pipeline view of a tenant-scoped sales opportunity.
type Opportunity struct {
	ID                 uuid.UUID
	OrganizationID     uuid.UUID
	Name               string
	Stage              Stage
	MeetingDate        *time.Time
	Feedback           *string
	ExpectedCloseDate  *time.Time
	Result             bool
	Probability        int
	AttachmentLinks    []AttachmentRef
	ContractAttachment []AttachmentRef
	Reason             *string
	AccountID          *uuid.UUID
	LeadID             *uuid.UUID
	ClosedBy           *uuid.UUID
	ClosedOn           *time.Time
	CreatedBy          *uuid.UUID
	IsActive           bool
	ContactIDs         []uuid.UUID
	AssigneeIDs        []uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsAssignee reports whether userID is in assigned_to.
func (o Opportunity) IsAssignee(userID uuid.UUID) bool {
	for _, id := range o.AssigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsCreator reports whether userID created the opportunity.
func (o Opportunity) IsCreator(userID uuid.UUID) bool {
	return o.CreatedBy != nil && *o.CreatedBy == userID
}

// Patch is a pipeline update request. A nil pointer means the field was not
// supplied; AttachmentLinksSet distinguishes an explicit empty list.
type Patch struct {
	Stage              *Stage
	MeetingDate        *time.Time
	Feedback           *string
	ExpectedCloseDate  *time.Time
	Result             *bool
	AttachmentLinks    []AttachmentRef
	AttachmentLinksSet bool
	CloseOption        *Stage
	Reason             *string
	ClosedOn           *time.Time
}

// DataFields lists the supplied non-control fields in a stable order.
// stage and close_option are control fields and are never listed.
func (p Patch) DataFields() []Field {
	fields := make([]Field, 0, 7)
	if p.MeetingDate != nil {
		fields = append(fields, FieldMeetingDate)
	}
	if p.Feedback != nil {
		fields = append(fields, FieldFeedback)
	}
	if p.ExpectedCloseDate != nil {
		fields = append(fields, FieldExpectedCloseDate)
	}
	if p.Result != nil {
		fields = append(fields, FieldResult)
	}
	if p.AttachmentLinksSet {
		fields = append(fields, FieldAttachmentLinks)
	}
	if p.Reason != nil {
		fields = append(fields, FieldReason)
	}
	if p.ClosedOn != nil {
		fields = append(fields, FieldClosedOn)
	}
	return fields
}

// IsEmpty reports whether the patch requests nothing at all.
func (p Patch) IsEmpty() bool {
	return p.Stage == nil && p.CloseOption == nil && len(p.DataFields()) == 0
}

// only returns a copy of p restricted to the given data fields.
func (p Patch) only(fields ...Field) Patch {
	var out Patch
	for _, f := range fields {
		switch f {
		case FieldMeetingDate:
			out.MeetingDate = p.MeetingDate
		case FieldFeedback:
			out.Feedback = p.Feedback
		case FieldExpectedCloseDate:
			out.ExpectedCloseDate = p.ExpectedCloseDate
		case FieldResult:
			out.Result = p.Result
		case FieldAttachmentLinks:
			out.AttachmentLinks = p.AttachmentLinks
			out.AttachmentLinksSet = p.AttachmentLinksSet
		case FieldReason:
			out.Reason = p.Reason
		case FieldClosedOn:
			out.ClosedOn = p.ClosedOn
		}
	}
	return out
}

// without returns a copy of p with the given data fields removed.
func (p Patch) without(fields ...Field) Patch {
	keep := make([]Field, 0, len(p.DataFields()))
	for _, f := range p.DataFields() {
		drop := false
		for _, excluded := range fields {
			if f == excluded {
				drop = true
				break
			}
		}
		if !drop {
			keep = append(keep, f)
		}
	}
	return p.only(keep...)
}

// changedFrom lists the supplied data fields whose value differs from opp.
// result is compared against the persisted won flag.
func (p Patch) changedFrom(opp Opportunity) []Field {
	var changed []Field
	for _, f := range p.DataFields() {
		if p.differs(opp, f) {
			changed = append(changed, f)
		}
	}
	return changed
}

func (p Patch) differs(opp Opportunity, f Field) bool {
	switch f {
	case FieldMeetingDate:
		return !sameDate(p.MeetingDate, opp.MeetingDate)
	case FieldFeedback:
		return !sameText(p.Feedback, opp.Feedback)
	case FieldExpectedCloseDate:
		return !sameDate(p.ExpectedCloseDate, opp.ExpectedCloseDate)
	case FieldResult:
		return *p.Result != opp.Result
	case FieldAttachmentLinks:
		return !sameRefs(p.AttachmentLinks, opp.AttachmentLinks)
	case FieldReason:
		return !sameText(p.Reason, opp.Reason)
	case FieldClosedOn:
		return !sameDate(p.ClosedOn, opp.ClosedOn)
	default:
		return true
	}
}

func sameDate(supplied, persisted *time.Time) bool {
	return persisted != nil && DateOf(*supplied).Equal(DateOf(*persisted))
}

func sameText(supplied, persisted *string) bool {
	return persisted != nil && *supplied == *persisted
}

func sameRefs(a, b []AttachmentRef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].URL != b[i].URL || a[i].FileName != b[i].FileName || a[i].FileType != b[i].FileType {
			return false
		}
	}
	return true
}

// mergedView answers "is this precondition field present" against the
// persisted opportunity overlaid with the incoming patch.
type mergedView struct {
	opp   Opportunity
	patch Patch
}

func (v mergedView) has(field Field) bool {
	switch field {
	case FieldMeetingDate:
		return v.patch.MeetingDate != nil || v.opp.MeetingDate != nil
	case FieldFeedback:
		if v.patch.Feedback != nil {
			return notBlank(v.patch.Feedback)
		}
		return notBlank(v.opp.Feedback)
	case FieldAttachmentLinks:
		if v.patch.AttachmentLinksSet {
			return len(v.patch.AttachmentLinks) > 0
		}
		return len(v.opp.AttachmentLinks) > 0
	case FieldReason:
		if v.patch.Reason != nil {
			return notBlank(v.patch.Reason)
		}
		return notBlank(v.opp.Reason)
	case FieldContractAttachment:
		return len(v.opp.ContractAttachment) > 0
	default:
		return false
	}
}

func notBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
