package student

import (
	"time"

	"github.com/Younus004/wisdom/internal/datetime"

	"github.com/shopspring/decimal"
)

var (
	Classes  = []string{"Nursery", "LKG", "UKG", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}
	Sections = []string{"A", "B", "C", "D", "E"}

	Genders     = []string{"Male", "Female", "Other"}
	BloodGroups = []string{"A+", "A-", "B+", "B-", "O+", "O-", "AB+", "AB-"}

	// AdmissionPaymentModes are accepted for the fee paid at registration.
	AdmissionPaymentModes = []string{"Cash", "Cheque", "Online", "Google Pay", "PhonePe", "Paytm", "UPI"}
)

// MaxDiscount caps the discount granted at registration.
var MaxDiscount = decimal.NewFromInt(2000)

// Profile is the personal and guardian information captured at registration.
type Profile struct {
	Name           string        `json:"name" validate:"notblank"`
	DOB            datetime.Date `json:"dob" validate:"required"`
	Gender         string        `json:"gender" validate:"gender"`
	Aadhaar        string        `json:"aadhar,omitempty" validate:"omitempty,numeric,len=12"`
	BloodGroup     string        `json:"blood_group" validate:"blood_group"`
	PreviousSchool string        `json:"previous_school,omitempty"`
	Class          string        `json:"class" validate:"class"`
	Section        string        `json:"section" validate:"section"`
	FatherName     string        `json:"father_name" validate:"notblank"`
	FatherMobile   string        `json:"father_mobile" validate:"mobile"`
	MotherName     string        `json:"mother_name" validate:"notblank"`
	MotherMobile   string        `json:"mother_mobile" validate:"mobile"`
	ParentEmail    string        `json:"parent_email,omitempty" validate:"omitempty,email"`
	Address        string        `json:"address" validate:"notblank"`
	PhotoPath      string        `json:"photo_path,omitempty"`
}

// FeeHeads are the fee components billed at registration.
type FeeHeads struct {
	AdmissionFee decimal.Decimal `json:"admission_fee" validate:"gte=0"`
	SchoolFee    decimal.Decimal `json:"school_fee" validate:"gte=0"`
	BookFee      decimal.Decimal `json:"book_fee" validate:"gte=0"`
	UniformFee   decimal.Decimal `json:"uniform_fee" validate:"gte=0"`
	TransportFee decimal.Decimal `json:"transport_fee" validate:"gte=0"`
	LabFee       decimal.Decimal `json:"lab_fee" validate:"gte=0"`
	Discount     decimal.Decimal `json:"discount" validate:"gte=0,lte=2000"`
}

// Total is the sum of all heads less the discount.
func (f FeeHeads) Total() decimal.Decimal {
	return decimal.Sum(f.AdmissionFee, f.SchoolFee, f.BookFee, f.UniformFee, f.TransportFee, f.LabFee).Sub(f.Discount)
}

// Student is stored under its admission number. Paid, Balance and
// FeeDueDate change only through ledger transactions.
type Student struct {
	AdmissionNo string `json:"admission_no"`
	BillNo      int64  `json:"bill_no"`
	Profile
	FeeHeads
	TotalFee       decimal.Decimal `json:"total_fee"`
	Paid           decimal.Decimal `json:"paid"`
	Balance        decimal.Decimal `json:"balance"`
	PaymentMode    string          `json:"payment_mode"`
	BalanceDueDate datetime.Date   `json:"balance_due_date"`
	// FeeDueDate is nil for students without an active due-date schedule.
	FeeDueDate       *datetime.Date `json:"fee_due_date,omitempty"`
	RegistrationDate time.Time      `json:"registration_date"`
}

func (s *Student) Status() string {
	if s.Balance.IsPositive() {
		return StatusDue
	}
	return StatusPaid
}

// ListItem is a row of the registered students list.
type ListItem struct {
	Student
	FeeStatus string `json:"status"`
}

func NewListItem(st Student) ListItem {
	return ListItem{Student: st, FeeStatus: st.Status()}
}

const (
	StatusPaid = "Paid"
	StatusDue  = "Due"
)

type RegisterRequest struct {
	Profile
	FeeHeads
	Paid           decimal.Decimal `json:"paid" validate:"gte=0"`
	PaymentMode    string          `json:"payment_mode" validate:"admission_payment_mode"`
	BalanceDueDate datetime.Date   `json:"balance_due_date" validate:"required"`
	FeeDueDate     *datetime.Date  `json:"fee_due_date,omitempty"`
}

// ListFilter narrows the registered students list. Empty fields match all.
type ListFilter struct {
	Class   string
	Section string
	Status  string
	// Search matches name or admission number case-insensitively, or a
	// substring of the father's mobile.
	Search string
}
