package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/export"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
)

const (
	maxMultipartMemory = 10 << 20 // 10MB
	maxJSONBodyBytes   = 16 << 20 // base64 selfies inflate by a third
)

type AttendanceHandler interface {
	CheckIn(w http.ResponseWriter, r *http.Request)
	CheckOut(w http.ResponseWriter, r *http.Request)
	Today(w http.ResponseWriter, r *http.Request)
	TodayStatus(w http.ResponseWriter, r *http.Request)
	GetMyAttendance(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Summary(w http.ResponseWriter, r *http.Request)
	Download(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	attendanceService attendance.AttendanceService
}

func NewAttendanceHandler(attendanceService attendance.AttendanceService) AttendanceHandler {
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
	}
}

// CheckIn implements AttendanceHandler.
func (h *attendanceHandlerImpl) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req attendance.CheckInRequest

	cleanup, ok := decodeAttendanceBody(w, r, &req, &req.Selfie)
	if !ok {
		return
	}
	defer cleanup()

	result, err := h.attendanceService.CheckIn(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Check in successful", result)
}

// CheckOut implements AttendanceHandler.
func (h *attendanceHandlerImpl) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req attendance.CheckOutRequest

	cleanup, ok := decodeAttendanceBody(w, r, &req, &req.Selfie)
	if !ok {
		return
	}
	defer cleanup()

	result, err := h.attendanceService.CheckOut(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Check out successful", result)
}

// Today implements AttendanceHandler.
func (h *attendanceHandlerImpl) Today(w http.ResponseWriter, r *http.Request) {
	result, err := h.attendanceService.Today(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// TodayStatus implements AttendanceHandler.
func (h *attendanceHandlerImpl) TodayStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.attendanceService.TodayStatus(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// GetMyAttendance implements AttendanceHandler. Without an {id} the caller's own history
// is returned.
func (h *attendanceHandlerImpl) GetMyAttendance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		identity, err := jwt.IdentityFromContext(r.Context())
		if err != nil {
			response.HandleError(w, err)
			return
		}
		userID = identity.UserID
	}

	query := r.URL.Query()
	filter := attendance.MyAttendanceFilter{
		StartDate: queryString(query.Get("start_date")),
		EndDate:   queryString(query.Get("end_date")),
		Page:      queryInt(query.Get("page")),
		Limit:     queryInt(query.Get("limit")),
		SortOrder: query.Get("sort_order"),
	}

	result, err := h.attendanceService.GetUserAttendance(r.Context(), userID, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// List implements AttendanceHandler.
func (h *attendanceHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := attendance.AttendanceFilter{
		UserID:     queryString(query.Get("user_id")),
		Department: queryString(query.Get("department")),
		Date:       queryString(query.Get("date")),
		StartDate:  queryString(query.Get("start_date")),
		EndDate:    queryString(query.Get("end_date")),
		Page:       queryInt(query.Get("page")),
		Limit:      queryInt(query.Get("limit")),
		SortOrder:  query.Get("sort_order"),
	}

	result, err := h.attendanceService.ListAttendance(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Summary implements AttendanceHandler.
func (h *attendanceHandlerImpl) Summary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := attendance.SummaryFilter{
		Date:       queryString(query.Get("date")),
		Department: queryString(query.Get("department")),
	}

	result, err := h.attendanceService.Summary(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Download implements AttendanceHandler.
func (h *attendanceHandlerImpl) Download(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		response.BadRequest(w, "Format must be csv, xlsx or pdf", nil)
		return
	}

	query := r.URL.Query()
	filter := attendance.ExportFilter{
		UserID:     queryString(query.Get("user_id")),
		Department: queryString(query.Get("department")),
		StartDate:  queryString(query.Get("start_date")),
		EndDate:    queryString(query.Get("end_date")),
	}

	report, err := h.attendanceService.Export(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	table := export.Table{Title: report.Title, Headers: report.Headers, Rows: report.Rows}
	response.Attachment(w, report.Filename+"."+string(format), format.ContentType(), func(out io.Writer) error {
		return export.Write(out, format, table)
	})
}

// ==================== HELPERS ====================

// decodeAttendanceBody accepts either multipart form data (JSON in 'data', photo in 'selfie')
// or a JSON body with a base64 selfie. It writes the error response itself and reports
// whether the handler should continue.
func decodeAttendanceBody(w http.ResponseWriter, r *http.Request, dst interface{}, selfie *attendance.Selfie) (func(), bool) {
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			slog.Error("Failed to decode JSON body", "error", err)
			response.BadRequest(w, "Invalid request format", nil)
			return noop, false
		}
		return noop, true
	}

	// Parse multipart form (max 10MB)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		slog.Error("Failed to parse multipart form", "error", err)
		response.BadRequest(w, "Failed to parse form data", nil)
		return noop, false
	}

	// Get JSON data from 'data' field
	dataJSON := r.FormValue("data")
	if dataJSON == "" {
		response.BadRequest(w, "Field 'data' is required", nil)
		return noop, false
	}

	if err := json.Unmarshal([]byte(dataJSON), dst); err != nil {
		slog.Error("Failed to unmarshal JSON data", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return noop, false
	}

	file, fileHeader, err := r.FormFile("selfie")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			// validation decides whether the selfie was required
			return noop, true
		}
		slog.Error("Failed to get file from form", "error", err)
		response.BadRequest(w, "Invalid file upload", nil)
		return noop, false
	}

	selfie.File = file
	selfie.Header = fileHeader
	return func() { closeFile(file) }, true
}

func closeFile(f multipart.File) {
	if err := f.Close(); err != nil {
		slog.Warn("Failed to close uploaded file", "error", err)
	}
}

func queryString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// queryInt returns 0 for a missing or malformed value; filters apply their defaults.
func queryInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
