// Package document renders the printable fee receipt and registration form
// and keeps the rendered files under deterministic per-entity names.
package document

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/Younus004/wisdom/internal/datetime"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
)

const (
	KindReceipt      = "receipt"
	KindRegistration = "registration_form"
)

type School struct {
	Name     string
	Address  string
	LogoPath string
}

type Receipt struct {
	ReceiptNo   int64
	StudentName string
	AdmissionNo string
	Class       string
	Section     string
	Amount      decimal.Decimal
	Mode        string
	NewBalance  decimal.Decimal
	// FeeDueDate is the student's schedule at payment time, empty when none is set.
	FeeDueDate string
	NextDue    datetime.Date
	Remarks    string
	PaidAt     time.Time
}

type Registration struct {
	AdmissionNo      string
	BillNo           int64
	Name             string
	Class            string
	Section          string
	DOB              string
	Gender           string
	BloodGroup       string
	FatherName       string
	FatherMobile     string
	MotherName       string
	MotherMobile     string
	Email            string
	Address          string
	TotalFee         decimal.Decimal
	Paid             decimal.Decimal
	Balance          decimal.Decimal
	RegistrationDate time.Time
	PhotoPath        string
}

func ReceiptFileName(receiptNo int64) string {
	return fmt.Sprintf("REC%05d.pdf", receiptNo)
}

func RegistrationFileName(admissionNo string) string {
	return admissionNo + "_form.pdf"
}

// Renderer draws A4 documents with fpdf. Logo and photo files are read
// through fs so tests can supply them in memory.
type Renderer struct {
	fs       afero.Fs
	school   School
	compress bool
	now      func() time.Time
	loc      *time.Location
}

type RendererOption func(*Renderer)

// WithoutCompression leaves page streams readable, for inspecting output.
func WithoutCompression() RendererOption {
	return func(r *Renderer) { r.compress = false }
}

func WithClock(now func() time.Time) RendererOption {
	return func(r *Renderer) { r.now = now }
}

func NewRenderer(fs afero.Fs, school School, loc *time.Location, opts ...RendererOption) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	r := &Renderer{fs: fs, school: school, compress: true, now: time.Now, loc: loc}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const (
	pageMargin = 15.0
	rowHeight  = 8.0
)

var columnWidths = [4]float64{35, 55, 35, 55}

func (r *Renderer) newDocument(title string) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetTitle(title, false)
	pdf.SetCreator(r.school.Name, false)
	pdf.SetCreationDate(r.now())
	pdf.AddPage()
	return pdf
}

func (r *Renderer) header(pdf *fpdf.Fpdf, subtitle string) {
	if r.image(pdf, r.school.LogoPath, (210-40)/2, pdf.GetY(), 40, 20) {
		pdf.SetY(pdf.GetY() + 24)
	}

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, r.school.Name, "", 1, "C", false, 0, "")
	if r.school.Address != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, r.school.Address, "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, subtitle, "", 1, "C", false, 0, "")
	pdf.Ln(4)
}

// image places the file at path when it exists and decodes. A missing or
// unreadable image is left out of the document.
func (r *Renderer) image(pdf *fpdf.Fpdf, path string, x, y, w, h float64) bool {
	if path == "" {
		return false
	}
	f, err := r.fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	opts := fpdf.ImageOptions{ImageType: imageType(path)}
	pdf.RegisterImageOptionsReader(path, opts, f)
	if pdf.Err() {
		pdf.ClearError()
		return false
	}
	pdf.ImageOptions(path, x, y, w, h, false, opts, 0, "")
	return true
}

func imageType(path string) string {
	ext := strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "JPEG" {
		return "JPG"
	}
	return ext
}

func (r *Renderer) table(pdf *fpdf.Fpdf, rows [][4]string) {
	pdf.SetDrawColor(0, 68, 102)
	for i, row := range rows {
		fill := i%2 == 0
		if fill {
			pdf.SetFillColor(240, 240, 240)
		}
		for col, text := range row {
			style := ""
			if col%2 == 0 {
				style = "B"
			}
			pdf.SetFont("Helvetica", style, 10)
			pdf.CellFormat(columnWidths[col], rowHeight, text, "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}
}

func (r *Renderer) signatures(pdf *fpdf.Fpdf, left, right string) {
	pdf.Ln(20)
	half := (210 - 2*pageMargin) / 2
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(half, 6, "______________________", "", 0, "C", false, 0, "")
	pdf.CellFormat(half, 6, "______________________", "", 1, "C", false, 0, "")
	pdf.CellFormat(half, 6, left, "", 0, "C", false, 0, "")
	pdf.CellFormat(half, 6, right, "", 1, "C", false, 0, "")
}

func (r *Renderer) footer(pdf *fpdf.Fpdf) {
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 8)
	generated := r.now().In(r.loc).Format("02-01-2006 15:04:05")
	pdf.CellFormat(0, 5, "Generated on: "+generated, "", 1, "R", false, 0, "")
}

// FeeReceipt writes the receipt for one committed payment.
func (r *Renderer) FeeReceipt(w io.Writer, rc Receipt) error {
	pdf := r.newDocument(fmt.Sprintf("Fee Receipt %d", rc.ReceiptNo))
	r.header(pdf, fmt.Sprintf("Fee Receipt #%d", rc.ReceiptNo))

	dueDate := rc.FeeDueDate
	if dueDate == "" {
		dueDate = "Not Set"
	}

	r.table(pdf, [][4]string{
		{"Student", rc.StudentName, "Adm No", rc.AdmissionNo},
		{"Class/Section", rc.Class + " / " + rc.Section, "Due Date", dueDate},
		{"Amount Paid", money(rc.Amount), "Mode", rc.Mode},
		{"New Balance", money(rc.NewBalance), "Next Due", rc.NextDue.String()},
		{"Paid At", rc.PaidAt.In(r.loc).Format("02-01-2006 15:04"), "Receipt No", fmt.Sprintf("%d", rc.ReceiptNo)},
	})

	if rc.Remarks != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, "Remarks: "+rc.Remarks, "", "L", false)
	}

	r.signatures(pdf, "Accounts Signature", "Principal Signature")
	r.footer(pdf)
	return output(pdf, w)
}

// RegistrationForm writes the full student profile with a signature block.
func (r *Renderer) RegistrationForm(w io.Writer, reg Registration) error {
	pdf := r.newDocument("Student Registration Form " + reg.AdmissionNo)
	r.header(pdf, "Student Registration Form")

	if r.image(pdf, reg.PhotoPath, 210-pageMargin-30, pdf.GetY(), 30, 40) {
		pdf.SetY(pdf.GetY() + 44)
	}

	r.table(pdf, [][4]string{
		{"Name", reg.Name, "Admission No", reg.AdmissionNo},
		{"Class", reg.Class, "Section", reg.Section},
		{"DOB", reg.DOB, "Gender", reg.Gender},
		{"Blood Group", reg.BloodGroup, "Bill No", fmt.Sprintf("%d", reg.BillNo)},
		{"Father Name", reg.FatherName, "Mobile", reg.FatherMobile},
		{"Mother Name", reg.MotherName, "Mobile", reg.MotherMobile},
		{"Email", reg.Email, "Registered", reg.RegistrationDate.In(r.loc).Format("02-01-2006 15:04")},
		{"Total Fee", money(reg.TotalFee), "Paid", money(reg.Paid)},
		{"Balance", money(reg.Balance), "", ""},
	})

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(columnWidths[0], rowHeight, "Address", "1", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, rowHeight, reg.Address, "1", "L", false)

	r.signatures(pdf, "Principal Signature", "Parent Signature")
	r.footer(pdf)
	return output(pdf, w)
}

func output(pdf *fpdf.Fpdf, w io.Writer) error {
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func money(d decimal.Decimal) string {
	return "Rs. " + d.StringFixed(2)
}
