package enquiry

import (
	"time"

	"github.com/Younus004/wisdom/internal/datetime"
)

const (
	Collection          = "enquiries"
	FollowupsCollection = "followups"
)

var (
	Sources   = []string{"Website", "Walk-in", "Referral", "Ad", "Other"}
	Statuses  = []string{StatusNew, "Contacted", "Converted", "Not Interested"}
	LeadTemps = []string{"Hot", "Warm", "Cold"}
)

const StatusNew = "New"

type Enquiry struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Mobile          string        `json:"mobile"`
	Email           string        `json:"email,omitempty"`
	ClassInterested string        `json:"class_interested"`
	Source          string        `json:"source,omitempty"`
	Status          string        `json:"status"`
	LeadTemp        string        `json:"lead_temp"`
	Notes           string        `json:"notes,omitempty"`
	InquiryDate     datetime.Date `json:"inquiry_date"`
	// NextFollowup always equals the next_followup of the latest followup.
	NextFollowup  time.Time `json:"next_followup"`
	FollowupCount int       `json:"followup_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Followup is an append-only history entry of an enquiry. Seq numbers the
// entries of one enquiry from 1.
type Followup struct {
	Seq          int       `json:"seq"`
	Comment      string    `json:"comment"`
	Timestamp    time.Time `json:"timestamp"`
	NextFollowup time.Time `json:"next_followup"`
}

type CreateRequest struct {
	Name            string        `json:"name" validate:"notblank"`
	Mobile          string        `json:"mobile" validate:"mobile"`
	Email           string        `json:"email,omitempty" validate:"omitempty,email"`
	ClassInterested string        `json:"class_interested" validate:"notblank"`
	Source          string        `json:"source,omitempty" validate:"omitempty,enquiry_source"`
	Status          string        `json:"status,omitempty" validate:"omitempty,enquiry_status"`
	LeadTemp        string        `json:"lead_temp" validate:"lead_temp"`
	Notes           string        `json:"notes,omitempty"`
	InquiryDate     datetime.Date `json:"inquiry_date,omitempty"`
	NextFollowup    time.Time     `json:"next_followup,omitempty"`
}

type FollowupRequest struct {
	Comment      string    `json:"comment" validate:"notblank"`
	NextFollowup time.Time `json:"next_followup" validate:"required"`
}

// UpdateRequest changes only the fields that are set.
type UpdateRequest struct {
	Status   *string `json:"status,omitempty" validate:"omitempty,enquiry_status"`
	LeadTemp *string `json:"lead_temp,omitempty" validate:"omitempty,lead_temp"`
}

type ListFilter struct {
	ClassInterested string
	Status          string
	// Search matches name case-insensitively or a substring of the mobile.
	Search string
}
