package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/officehours"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/user"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

var (
	rina = user.Identity{UserID: "u-rina", Name: "Rina", Department: "Engineering", Role: user.RoleEmployee}
	dewi = user.Identity{UserID: "u-dewi", Name: "Dewi", Department: "Engineering", Role: user.RoleManager}
	hana = user.Identity{UserID: "u-hana", Name: "Hana", Department: "People", Role: user.RoleHR}
)

// ===== FAKES =====

type fakeAttendanceService struct {
	mu          sync.Mutex
	checkIn     attendance.CheckInRequest
	selfieBytes []byte
	checkOut    attendance.CheckOutRequest
	userID      string
	myFilter    attendance.MyAttendanceFilter
	listFilter  attendance.AttendanceFilter
	err         error
}

func (f *fakeAttendanceService) CheckIn(ctx context.Context, req attendance.CheckInRequest) (attendance.AttendanceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkIn = req
	if req.Selfie.Header != nil {
		r, _, err := req.Selfie.Open()
		if err != nil {
			return attendance.AttendanceResponse{}, err
		}
		f.selfieBytes, _ = io.ReadAll(r)
	}
	if f.err != nil {
		return attendance.AttendanceResponse{}, f.err
	}
	return attendance.AttendanceResponse{ID: "att-1", UserID: req.UserID, State: attendance.StateCheckedIn}, nil
}

func (f *fakeAttendanceService) CheckOut(ctx context.Context, req attendance.CheckOutRequest) (attendance.AttendanceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkOut = req
	if f.err != nil {
		return attendance.AttendanceResponse{}, f.err
	}
	return attendance.AttendanceResponse{ID: "att-1", UserID: req.UserID, State: attendance.StateCheckedOut}, nil
}

func (f *fakeAttendanceService) Today(ctx context.Context) (attendance.TodayResponse, error) {
	return attendance.TodayResponse{Date: "2025-03-10", CanCheckIn: true}, f.err
}

func (f *fakeAttendanceService) TodayStatus(ctx context.Context) (attendance.TodayStatusResponse, error) {
	return attendance.TodayStatusResponse{Summary: attendance.SummaryResponse{Date: "2025-03-10", Present: 2}}, f.err
}

func (f *fakeAttendanceService) GetUserAttendance(ctx context.Context, userID string, filter attendance.MyAttendanceFilter) (attendance.ListAttendanceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userID = userID
	f.myFilter = filter
	return attendance.ListAttendanceResponse{Showing: "0 of 0", Attendances: []attendance.AttendanceResponse{}}, f.err
}

func (f *fakeAttendanceService) ListAttendance(ctx context.Context, filter attendance.AttendanceFilter) (attendance.ListAttendanceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFilter = filter
	return attendance.ListAttendanceResponse{Showing: "0 of 0", Attendances: []attendance.AttendanceResponse{}}, f.err
}

func (f *fakeAttendanceService) Summary(ctx context.Context, filter attendance.SummaryFilter) (attendance.SummaryResponse, error) {
	return attendance.SummaryResponse{Date: "2025-03-10", Department: filter.Department, Present: 3}, f.err
}

func (f *fakeAttendanceService) Export(ctx context.Context, filter attendance.ExportFilter) (attendance.ExportResponse, error) {
	if f.err != nil {
		return attendance.ExportResponse{}, f.err
	}
	return attendance.ExportResponse{
		Filename: "attendance_report_20250301_20250331",
		Title:    "Attendance Report",
		Headers:  []string{"User ID", "Date"},
		Rows:     [][]string{{"u-rina", "2025-03-10"}},
	}, nil
}

type fakeOfficeHoursService struct {
	officehours.OfficeHoursService
	upserted *officehours.UpsertRuleRequest
	deleted  string
	reloads  int
}

func (f *fakeOfficeHoursService) List(ctx context.Context) (officehours.ListRulesResponse, error) {
	return officehours.ListRulesResponse{Departments: []officehours.RuleResponse{}}, nil
}

func (f *fakeOfficeHoursService) Upsert(ctx context.Context, req officehours.UpsertRuleRequest) (officehours.RuleResponse, error) {
	if err := req.Validate(); err != nil {
		return officehours.RuleResponse{}, err
	}
	f.upserted = &req
	return officehours.NewRuleResponse(req.Rule()), nil
}

func (f *fakeOfficeHoursService) Delete(ctx context.Context, id string) (officehours.DeleteRuleResponse, error) {
	if id != "rule-1" {
		return officehours.DeleteRuleResponse{}, officehours.ErrRuleNotFound
	}
	f.deleted = id
	return officehours.DeleteRuleResponse{}, nil
}

func (f *fakeOfficeHoursService) Reload(ctx context.Context) error {
	f.reloads++
	return nil
}

type fakeSessionService struct {
	location.SessionService
	owner string
}

func (f *fakeSessionService) Start(ctx context.Context, userID string, req location.StartSessionRequest) (location.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		return location.SessionResponse{}, err
	}
	f.owner = userID
	return location.SessionResponse{ID: "sess-1", State: location.StateFastFix}, nil
}

func (f *fakeSessionService) Get(ctx context.Context, userID string, sessionID string) (location.SessionResponse, error) {
	if sessionID != "sess-1" || userID != f.owner {
		return location.SessionResponse{}, location.ErrSessionNotFound
	}
	return location.SessionResponse{ID: sessionID, State: location.StateRefining}, nil
}

func (f *fakeSessionService) Push(ctx context.Context, userID string, sessionID string, req location.PushFixRequest) (location.SessionResponse, error) {
	if _, err := f.Get(ctx, userID, sessionID); err != nil {
		return location.SessionResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return location.SessionResponse{}, err
	}
	return location.SessionResponse{ID: sessionID, State: location.StateSettled}, nil
}

func (f *fakeSessionService) Cancel(ctx context.Context, userID string, sessionID string) (location.SessionResponse, error) {
	if _, err := f.Get(ctx, userID, sessionID); err != nil {
		return location.SessionResponse{}, err
	}
	return location.SessionResponse{}, location.ErrSessionClosed
}

// ===== HELPERS =====

type testEnv struct {
	router      http.Handler
	jwtService  jwt.Service
	attendance  *fakeAttendanceService
	officeHours *fakeOfficeHoursService
	sessions    *fakeSessionService
	hub         *sse.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		jwtService:  jwt.NewJWTService(handlerTestSecret, "1h"),
		attendance:  &fakeAttendanceService{},
		officeHours: &fakeOfficeHoursService{},
		sessions:    &fakeSessionService{},
		hub:         sse.NewHub(),
	}
	env.router = NewRouter(
		RouterOptions{AppName: "attendance-engine-test", Env: "test", LogLevel: slog.LevelError, AllowedOrigins: []string{"*"}},
		env.jwtService,
		NewAttendanceHandler(env.attendance),
		NewOfficeHoursHandler(env.officeHours),
		NewLocationHandler(env.sessions, env.jwtService, env.hub),
	)
	return env
}

func (e *testEnv) token(t *testing.T, identity user.Identity) string {
	t.Helper()
	token, _, err := e.jwtService.GenerateAccessToken(identity)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, identity *user.Identity, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, *identity))
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Data    json.RawMessage       `json:"data"`
	Error   *response.ErrorDetail `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

func checkInBody() map[string]interface{} {
	return map[string]interface{}{
		"user_id": rina.UserID,
		"gps_location": map[string]interface{}{
			"latitude":  -6.2088,
			"longitude": 106.8456,
			"accuracy":  12.5,
		},
		"work_location": "office",
		"selfie":        "placeholder",
	}
}

// ===== AUTH & ROLES =====

func TestRouter_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, nil, http.MethodGet, "/api/v1/attendance/today", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_RejectsForeignSignature(t *testing.T) {
	env := newTestEnv(t)
	other := jwt.NewJWTService("another-secret", "1h")
	token, _, err := other.GenerateAccessToken(rina)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/today", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_RoleGates(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		identity user.Identity
		method   string
		target   string
		body     interface{}
		want     int
	}{
		{"employee reads own today", rina, http.MethodGet, "/api/v1/attendance/today", nil, http.StatusOK},
		{"employee cannot list all", rina, http.MethodGet, "/api/v1/attendance/all", nil, http.StatusForbidden},
		{"employee cannot summarize", rina, http.MethodGet, "/api/v1/attendance/summary", nil, http.StatusForbidden},
		{"employee cannot export", rina, http.MethodGet, "/api/v1/attendance/download/csv", nil, http.StatusForbidden},
		{"manager lists all", dewi, http.MethodGet, "/api/v1/attendance/all", nil, http.StatusOK},
		{"manager today status", dewi, http.MethodGet, "/api/v1/attendance/today-status", nil, http.StatusOK},
		{"employee reads office hours", rina, http.MethodGet, "/api/v1/attendance/office-hours", nil, http.StatusOK},
		{"manager cannot write office hours", dewi, http.MethodPut, "/api/v1/attendance/office-hours", map[string]interface{}{"start_time": "09:00", "end_time": "18:00"}, http.StatusForbidden},
		{"hr writes office hours", hana, http.MethodPut, "/api/v1/attendance/office-hours", map[string]interface{}{"start_time": "09:00", "end_time": "18:00"}, http.StatusOK},
		{"employee cannot reload", rina, http.MethodPost, "/api/v1/attendance/office-hours/reload", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := tt.identity
			rr := env.do(t, &identity, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, nil, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "attendance_geocode_requests_total")
}

// ===== ATTENDANCE =====

func TestAttendanceHandler_CheckIn_JSON(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, &rina, http.MethodPost, "/api/v1/attendance/check-in", checkInBody())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	body := decode(t, rr)
	assert.True(t, body.Success)
	assert.Equal(t, "Check in successful", body.Message)

	got := env.attendance.checkIn
	assert.Equal(t, rina.UserID, got.UserID)
	require.NotNil(t, got.GPSLocation)
	assert.Equal(t, -6.2088, *got.GPSLocation.Latitude)
	assert.Equal(t, "placeholder", got.Selfie.Base64)
}

func TestAttendanceHandler_CheckIn_Multipart(t *testing.T) {
	env := newTestEnv(t)

	data, err := json.Marshal(map[string]interface{}{
		"user_id":      rina.UserID,
		"gps_location": map[string]float64{"latitude": -6.2, "longitude": 106.8},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("data", string(data)))
	part, err := mw.CreateFormFile("selfie", "selfie.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0, 'j', 'p', 'g'})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/check-in", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token(t, rina))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	got := env.attendance.checkIn
	require.NotNil(t, got.Selfie.Header)
	assert.Equal(t, "selfie.jpg", got.Selfie.Header.Filename)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xE0, 'j', 'p', 'g'}, env.attendance.selfieBytes)
}

func TestAttendanceHandler_CheckIn_MultipartWithoutData(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "nothing"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/check-in", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token(t, rina))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode(t, rr).Error.Message, "data")
}

func TestAttendanceHandler_CheckIn_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/check-in", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.token(t, rina))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAttendanceHandler_CheckIn_UnsupportedContentType(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/check-in", strings.NewReader("lat=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+env.token(t, rina))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
}

func TestAttendanceHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"validation", validator.ValidationErrors{{Field: "work_summary", Message: "work_summary is required"}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"already checked out", attendance.ErrAlreadyCheckedOut, http.StatusConflict, "CONFLICT"},
		{"not checked in", attendance.ErrNotCheckedIn, http.StatusConflict, "CONFLICT"},
		{"user mismatch", attendance.ErrUserMismatch, http.StatusForbidden, "FORBIDDEN"},
		{"outside radius", attendance.ErrOutsideAllowedRadius, http.StatusForbidden, "FORBIDDEN"},
		{"no location", attendance.ErrLocationRequired, http.StatusBadRequest, "BAD_REQUEST"},
		{"session gone", location.ErrSessionNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"no fix yet", location.ErrNoFix, http.StatusConflict, "CONFLICT"},
		{"permission denied", location.ErrPermissionDenied, http.StatusBadRequest, "BAD_REQUEST"},
		{"unexpected", io.ErrUnexpectedEOF, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.attendance.err = tt.err

			rr := env.do(t, &rina, http.MethodPost, "/api/v1/attendance/check-out", map[string]interface{}{
				"user_id":      rina.UserID,
				"work_summary": "Reviewed pull requests",
			})
			assert.Equal(t, tt.want, rr.Code)

			body := decode(t, rr)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestAttendanceHandler_ValidationDetails(t *testing.T) {
	env := newTestEnv(t)
	env.attendance.err = validator.ValidationErrors{{Field: "work_summary", Message: "work_summary is required"}}

	rr := env.do(t, &rina, http.MethodPost, "/api/v1/attendance/check-out", map[string]interface{}{"user_id": rina.UserID})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "work_summary is required", decode(t, rr).Error.Details["work_summary"])
}

func TestAttendanceHandler_GetMyAttendance(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, &rina, http.MethodGet, "/api/v1/attendance/my-attendance?start_date=2025-03-01&end_date=2025-03-31&page=2&limit=5", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, rina.UserID, env.attendance.userID)
	require.NotNil(t, env.attendance.myFilter.StartDate)
	assert.Equal(t, "2025-03-01", *env.attendance.myFilter.StartDate)
	assert.Equal(t, 2, env.attendance.myFilter.Page)
	assert.Equal(t, 5, env.attendance.myFilter.Limit)

	rr = env.do(t, &dewi, http.MethodGet, "/api/v1/attendance/my-attendance/u-budi", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u-budi", env.attendance.userID)
}

func TestAttendanceHandler_ListFilters(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, &hana, http.MethodGet, "/api/v1/attendance/all?department=Sales&date=2025-03-10&limit=abc", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	filter := env.attendance.listFilter
	require.NotNil(t, filter.Department)
	assert.Equal(t, "Sales", *filter.Department)
	require.NotNil(t, filter.Date)
	assert.Equal(t, "2025-03-10", *filter.Date)
	assert.Nil(t, filter.UserID)
	assert.Equal(t, 0, filter.Limit)
}

func TestAttendanceHandler_Download(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, &dewi, http.MethodGet, "/api/v1/attendance/download/csv?start_date=2025-03-01&end_date=2025-03-31", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
	assert.Equal(t, `attachment; filename="attendance_report_20250301_20250331.csv"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "User ID,Date\nu-rina,2025-03-10\n", rr.Body.String())

	rr = env.do(t, &dewi, http.MethodGet, "/api/v1/attendance/download/xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "spreadsheetml")
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")))

	rr = env.do(t, &dewi, http.MethodGet, "/api/v1/attendance/download/pdf", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".pdf")
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))

	rr = env.do(t, &dewi, http.MethodGet, "/api/v1/attendance/download/docx", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// ===== OFFICE HOURS =====

func TestOfficeHoursHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, &hana, http.MethodPut, "/api/v1/attendance/office-hours", map[string]interface{}{
		"department":             "Engineering",
		"start_time":             "09:30",
		"end_time":               "18:30",
		"check_in_grace_minutes": 15,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rule officehours.RuleResponse
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &rule))
	assert.Equal(t, "09:45", rule.LateAfter)
	require.NotNil(t, env.officeHours.upserted)

	rr = env.do(t, &hana, http.MethodPut, "/api/v1/attendance/office-hours", map[string]interface{}{
		"start_time": "18:00",
		"end_time":   "09:00",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = env.do(t, &hana, http.MethodDelete, "/api/v1/attendance/office-hours/rule-1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "rule-1", env.officeHours.deleted)

	rr = env.do(t, &hana, http.MethodDelete, "/api/v1/attendance/office-hours/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, &hana, http.MethodPost, "/api/v1/attendance/office-hours/reload", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, env.officeHours.reloads)
}

// ===== LOCATION SESSIONS =====

func TestLocationHandler_Session(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, &rina, http.MethodPost, "/api/v1/location/sessions", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, rina.UserID, env.sessions.owner)

	rr = env.do(t, &rina, http.MethodGet, "/api/v1/location/sessions/sess-1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, &dewi, http.MethodGet, "/api/v1/location/sessions/sess-1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, &rina, http.MethodPost, "/api/v1/location/sessions/sess-1/fixes", map[string]interface{}{
		"latitude":  -6.2,
		"longitude": 106.8,
		"accuracy":  8,
	})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, &rina, http.MethodPost, "/api/v1/location/sessions/sess-1/fixes", map[string]interface{}{
		"error": "sensor_on_fire",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = env.do(t, &rina, http.MethodDelete, "/api/v1/location/sessions/sess-1", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestLocationHandler_StartRejectsBadOptions(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, &rina, http.MethodPost, "/api/v1/location/sessions", map[string]interface{}{"target_accuracy": -1})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestLocationHandler_StreamAuth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, nil, http.MethodGet, "/api/v1/location/sessions/sess-1/events", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// an access token is not an SSE token
	rr = env.do(t, nil, http.MethodGet, "/api/v1/location/sessions/sess-1/events?token="+env.token(t, rina), nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// a token bound to another session is rejected
	token, _, err := env.jwtService.GenerateSSEToken(rina.UserID, "sess-2")
	require.NoError(t, err)
	rr = env.do(t, nil, http.MethodGet, "/api/v1/location/sessions/sess-1/events?token="+token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLocationHandler_Stream(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.owner = rina.UserID

	rr := env.do(t, &rina, http.MethodPost, "/api/v1/location/sessions/sess-1/sse-token", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var tokenResp location.SSETokenResponse
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &tokenResp))
	require.NotEmpty(t, tokenResp.Token)
	assert.Equal(t, 300, tokenResp.ExpiresIn)

	server := httptest.NewServer(env.router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/location/sessions/sess-1/events?token="+tokenResp.Token, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		t.Helper()
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "":
				return name, data
			}
		}
	}

	name, data := readEvent()
	assert.Equal(t, "location", name)
	assert.Contains(t, data, `"state":"refining"`)

	require.Eventually(t, func() bool { return env.hub.SubscriberCount("sess-1") == 1 }, time.Second, 10*time.Millisecond)
	env.hub.Publish("sess-1", sse.Event{Event: "location", Data: map[string]string{"state": "settled"}})
	name, data = readEvent()
	assert.Equal(t, "location", name)
	assert.JSONEq(t, `{"state":"settled"}`, data)

	env.hub.Close("sess-1")
	name, _ = readEvent()
	assert.Equal(t, "closed", name)
}
