package fees

import (
	"time"

	"github.com/Younus004/wisdom/internal/datetime"

	"github.com/shopspring/decimal"
)

// PaymentModes are accepted for fee collection.
var PaymentModes = []string{"Cash", "Online Transfer", "Cheque", "UPI", "Card"}

const ReceiptsCollection = "receipts"

type PaymentRequest struct {
	Amount  decimal.Decimal `json:"amount" validate:"gt=0"`
	Mode    string          `json:"mode" validate:"fee_payment_mode"`
	NextDue datetime.Date   `json:"next_due" validate:"required"`
	Remarks string          `json:"remarks,omitempty" validate:"max=500"`
}

// Receipt is the immutable record of one committed payment, stored under
// students/<admission_no>/receipts.
type Receipt struct {
	ReceiptNo   int64           `json:"receipt_no"`
	AdmissionNo string          `json:"admission_no"`
	Amount      decimal.Decimal `json:"amount"`
	Mode        string          `json:"mode"`
	Timestamp   time.Time       `json:"timestamp"`
	NextDue     datetime.Date   `json:"next_due"`
	Remarks     string          `json:"remarks,omitempty"`
	// Balance and FeeDueDate are the student's values right after the
	// payment, so the document can be rebuilt later.
	Balance    decimal.Decimal `json:"balance"`
	FeeDueDate *datetime.Date  `json:"fee_due_date,omitempty"`
	// DocumentPath is empty when rendering failed.
	DocumentPath string `json:"document_path"`
}

// DueEntry is one row of the fee due list.
type DueEntry struct {
	Name         string          `json:"name"`
	AdmissionNo  string          `json:"admission_no"`
	Class        string          `json:"class"`
	Section      string          `json:"section"`
	FeeDueDate   *datetime.Date  `json:"fee_due_date,omitempty"`
	Balance      decimal.Decimal `json:"balance"`
	FatherMobile string          `json:"father_mobile"`
}
