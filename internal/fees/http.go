package fees

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Younus004/wisdom/common/httputil"
	"github.com/Younus004/wisdom/internal/apperr"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/students/{admissionNo}/payments", h.ProcessPayment)
	router.Get("/students/{admissionNo}/receipts", h.Receipts)
	router.Get("/students/{admissionNo}/receipts/{receiptNo}/document", h.ReceiptDocument)
	router.Get("/fees/due", h.DueList)
	router.Get("/fees/due.csv", h.DueListCSV)
}

func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	rc, err := h.service.ProcessPayment(r.Context(), chi.URLParam(r, "admissionNo"), req)
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, rc)
}

func (h *Handler) Receipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.service.Receipts(r.Context(), chi.URLParam(r, "admissionNo"))
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, receipts)
}

func (h *Handler) ReceiptDocument(w http.ResponseWriter, r *http.Request) {
	receiptNo, err := strconv.ParseInt(chi.URLParam(r, "receiptNo"), 10, 64)
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, apperr.Invalid("receipt_no", "receipt_no must be a number"))
		return
	}

	stored, err := h.service.ReceiptDocument(r.Context(), chi.URLParam(r, "admissionNo"), receiptNo)
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	f, err := h.service.OpenReceipt(stored.Name)
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	w.Header().Set("X-Document-Created", strconv.FormatBool(stored.Created))
	httputil.ServeDocument(w, r, stored.Name, f, info.ModTime())
}

type dueListResponse struct {
	Students    []DueEntry      `json:"students"`
	Count       int             `json:"count"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

func (h *Handler) DueList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.DueList(r.Context())
	if err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, dueListResponse{
		Students:    entries,
		Count:       len(entries),
		Outstanding: Outstanding(entries),
	})
}

func (h *Handler) DueListCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.WriteDueListCSV(r.Context(), &buf); err != nil {
		httputil.RespondWithAppError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=fee_due_list.csv")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write due list csv", "error", err)
	}
}
