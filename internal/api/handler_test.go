package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"guest-visits-backend/config"
	"guest-visits-backend/internal/access"
	"guest-visits-backend/internal/auth"
	"guest-visits-backend/internal/db"
	"guest-visits-backend/internal/model"
	"guest-visits-backend/internal/projection"
	"guest-visits-backend/internal/realtime"
	"guest-visits-backend/internal/store"
	"guest-visits-backend/internal/visits"
	"guest-visits-backend/internal/workdays"
)

var msk = time.FixedZone("MSK", 3*3600)

// switchOracle fails until it is brought up, then answers from the weekday
// rule and its holidays.
type switchOracle struct {
	up       atomic.Bool
	holidays map[string]bool
}

func (o *switchOracle) DayType(_ context.Context, date time.Time) (workdays.DayType, error) {
	if !o.up.Load() {
		return 0, errors.New("oracle unavailable")
	}
	if o.holidays[date.Format("2006-01-02")] {
		return workdays.NonWorking, nil
	}
	return workdays.Fallback(date), nil
}

type testEnv struct {
	router http.Handler
	store  store.Store
	hub    *realtime.Broadcaster
	oracle *switchOracle
	tokens map[string]string
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEnv(t *testing.T, vapid *webpush.Options) *testEnv {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	st := store.NewGormStore(gormDB)
	guardRole, err := st.UpsertRole(ctx, model.Role{Name: "guard", InterfaceType: "guard"},
		[]string{"can_view", "can_mark_completed", "can_mark_completed_ui"})
	require.NoError(t, err)
	userRole, err := st.UpsertRole(ctx, model.Role{Name: "user", InterfaceType: "user"}, codes(access.All()))
	require.NoError(t, err)

	users := map[string]*model.User{
		"root":   {Username: "root", FullName: "Root", IsAdmin: true, IsActive: true},
		"anna":   {Username: "anna", FullName: "Anna", IsActive: true, RoleID: &userRole.ID},
		"guard1": {Username: "guard1", IsActive: true, RoleID: &guardRole.ID},
		"nobody": {Username: "nobody", IsActive: true},
	}
	tokens := auth.NewTokens("test-secret", time.Hour)
	issued := make(map[string]string)
	for name, u := range users {
		require.NoError(t, st.CreateUser(ctx, u))
		tok, err := tokens.Issue(u.ID, u.Username, 0)
		require.NoError(t, err)
		issued[name] = tok
	}

	oracle := &switchOracle{holidays: map[string]bool{}}
	resolver := workdays.NewResolver(oracle, msk, nil)
	hub := realtime.NewBroadcaster(nil)
	svc := visits.NewService(st, projection.NewBuilder(resolver, st), hub, nil, msk, 100, nil)
	h := NewHandler(svc, st, auth.NewResolver(tokens, st, nil), hub, vapid, config.RealtimeConfig{
		PingInterval: time.Second,
		WriteTimeout: time.Second,
	})
	router := NewRouter(h, &config.ServerConfig{CacheTTLSeconds: 60})

	return &testEnv{router: router, store: st, hub: hub, oracle: oracle, tokens: issued}
}

func codes(cs []access.Code) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

func (e *testEnv) do(method, path, user string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[user])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst))
}

func today(clock string) string {
	return time.Now().In(msk).Format("2006-01-02") + "T" + clock
}

func (e *testEnv) createEntry(t *testing.T, name string) store.EntryView {
	t.Helper()
	w := e.do(http.MethodPost, "/api/v1/entries", "anna", gin.H{"name": name, "datetime": today("10:00:00")})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var view store.EntryView
	decode(t, w, &view)
	return view
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/v1/entries", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body errorStruct
	decode(t, w, &body)
	assert.Equal(t, []string{"AUTH_REQUIRED"}, body.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entries", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	decode(t, w, &body)
	assert.Equal(t, []string{"AUTH_INVALID_TOKEN"}, body.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/entries?token="+env.tokens["anna"], nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEntries_CreateListAndPermissions(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createEntry(t, "Ivan Petrov")
	assert.Equal(t, today("10:00:00"), created.ScheduledAt)

	w := env.do(http.MethodGet, "/api/v1/entries", "guard1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var window projection.Window
	decode(t, w, &window)
	require.Len(t, window.Entries, 1)
	assert.Equal(t, created.ID, window.Entries[0].ID)
	assert.GreaterOrEqual(t, len(window.CalendarStructure), 7)
	assert.NotEmpty(t, window.ReferenceDates.PreviousWorkday)

	w = env.do(http.MethodPost, "/api/v1/entries", "guard1", gin.H{"name": "x", "datetime": today("11:00")})
	assert.Equal(t, http.StatusForbidden, w.Code)
	var body errorStruct
	decode(t, w, &body)
	assert.Equal(t, "permission can_add required", body.Message)
	assert.Equal(t, []string{"FORBIDDEN"}, body.Code)

	w = env.do(http.MethodGet, "/api/v1/entries", "nobody", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPatch, "/api/v1/entries/"+created.ID+"/completed", "guard1", gin.H{"is_completed": true})
	require.Equal(t, http.StatusOK, w.Code)
	var view store.EntryView
	decode(t, w, &view)
	assert.True(t, view.IsCompleted)
}

func TestEntries_BadInput(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createEntry(t, "Guest")

	w := env.do(http.MethodPost, "/api/v1/entries", "anna", gin.H{"name": "x", "datetime": "next friday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPatch, "/api/v1/entries/"+created.ID+"/completed", "anna", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/entries?date=2024-13-40", "anna", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body errorStruct
	decode(t, w, &body)
	assert.Contains(t, body.Message, "2024-13-40")

	w = env.do(http.MethodDelete, "/api/v1/entries/future", "root", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEntries_Lifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createEntry(t, "Guest")
	base := "/api/v1/entries/" + created.ID

	w := env.do(http.MethodPut, base, "anna", gin.H{"name": "Renamed", "responsible": "Sidorov"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPatch, base+"/cancelled", "anna", gin.H{"is_cancelled": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPatch, base+"/move", "anna", gin.H{"datetime": today("18:15")})
	require.Equal(t, http.StatusOK, w.Code)
	var view store.EntryView
	decode(t, w, &view)
	assert.Equal(t, today("18:15:00"), view.ScheduledAt)
	assert.True(t, view.IsCancelled)
	assert.Equal(t, "Renamed", view.Name)

	w = env.do(http.MethodDelete, base+"/pass", "anna", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, base+"/pass", "anna", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Equal(t, "ordered", *view.PassStatus)

	w = env.do(http.MethodDelete, base+"/pass", "anna", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Equal(t, "revoked", *view.PassStatus)

	w = env.do(http.MethodDelete, base, "anna", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodDelete, base, "anna", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodGet, base, "anna", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted_at"`)

	w = env.do(http.MethodPatch, base+"/completed", "anna", gin.H{"is_completed": true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEntries_AdminBulkDeletes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createEntry(t, "A")
	env.createEntry(t, "B")

	w := env.do(http.MethodDelete, "/api/v1/entries/all", "anna", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodDelete, "/api/v1/entries/future?date=2000-01-01", "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"deleted_count":2,"from_date":"2000-01-01"}`, w.Body.String())

	env.createEntry(t, "C")
	w = env.do(http.MethodDelete, "/api/v1/entries/all", "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"deleted_count":3}`, w.Body.String())
}

func TestSuggestResponsible(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, r := range []string{"Sidorov", "sidorenko", "Petrov"} {
		w := env.do(http.MethodPost, "/api/v1/entries", "anna", gin.H{"name": "Guest", "responsible": r, "datetime": today("10:00")})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(http.MethodGet, "/api/v1/entries/responsible-autocomplete?q=sid", "anna", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"suggestions":["Sidorov","sidorenko"]}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/entries/responsible-autocomplete?q=si", "anna", nil)
	assert.JSONEq(t, `{"suggestions":[]}`, w.Body.String())
}

func TestGetMe(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/v1/me", "guard1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me meResponse
	decode(t, w, &me)
	assert.Equal(t, "guard1", me.Username)
	require.NotNil(t, me.Role)
	assert.Equal(t, "guard", *me.Role)
	assert.Equal(t, []access.Code{access.CanMarkCompletedUI}, me.Permissions)

	w = env.do(http.MethodGet, "/api/v1/me", "root", nil)
	decode(t, w, &me)
	assert.True(t, me.IsAdmin)
	assert.Nil(t, me.Role)
	for _, c := range me.Permissions {
		assert.True(t, c.IsUI(), c)
	}
	assert.Contains(t, me.Permissions, access.CanRevokePassUI)

	w = env.do(http.MethodGet, "/api/v1/me", "nobody", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"permissions":[]`)
}

func TestCalendarWeek_Cached(t *testing.T) {
	env := newTestEnv(t, nil)
	env.oracle.up.Store(true)

	w := env.do(http.MethodGet, "/api/v1/calendar/week?date=2024-03-06", "anna", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	var cal projection.Calendar
	decode(t, w, &cal)
	assert.Len(t, cal.CalendarStructure, 7)
	assert.Equal(t, "2024-03-05", cal.ReferenceDates.PreviousWorkday)
	assert.Equal(t, "2024-03-07", cal.ReferenceDates.NextWorkday)

	w = env.do(http.MethodGet, "/api/v1/calendar/week?date=2024-03-06", "guard1", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	w = env.do(http.MethodGet, "/api/v1/calendar/week?date=2024-03-06", "nobody", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCalendarWeek_FallbackNotCached(t *testing.T) {
	env := newTestEnv(t, nil)
	env.oracle.holidays["2024-03-06"] = true
	path := "/api/v1/calendar/week?date=2024-03-06"

	w := env.do(http.MethodGet, path, "anna", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var cal projection.Calendar
	decode(t, w, &cal)
	assert.True(t, cal.CalendarStructure[2].IsWorkday)

	env.oracle.up.Store(true)
	w = env.do(http.MethodGet, path, "anna", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Empty(t, w.Header().Get("Cache-Control"))
	decode(t, w, &cal)
	assert.Equal(t, "2024-03-06", cal.CalendarStructure[2].Date)
	assert.False(t, cal.CalendarStructure[2].IsWorkday)

	w = env.do(http.MethodGet, path, "anna", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
}

func TestCalendarWeek_CurrentWeekNotCached(t *testing.T) {
	env := newTestEnv(t, nil)
	env.oracle.up.Store(true)

	env.do(http.MethodGet, "/api/v1/calendar/week", "anna", nil)
	w := env.do(http.MethodGet, "/api/v1/calendar/week", "anna", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestPushSubscriptions(t *testing.T) {
	env := newTestEnv(t, nil)
	endpoint := "https://push.example.com/send/abc%3D"

	w := env.do(http.MethodGet, "/api/v1/push/subscriptions?endpoint="+endpoint, "anna", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPut, "/api/v1/push/subscriptions", "anna", gin.H{"endpoint": endpoint, "p256dh": "key", "auth": "secret"})
	require.Equal(t, http.StatusCreated, w.Code)

	sub, err := env.store.GetPushSubscription(context.Background(), endpoint)
	require.NoError(t, err)
	assert.NotEmpty(t, sub.UserID)

	w = env.do(http.MethodGet, "/api/v1/push/subscriptions?endpoint="+endpoint, "anna", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), endpoint)

	w = env.do(http.MethodPut, "/api/v1/push/subscriptions", "anna", gin.H{"endpoint": endpoint})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodDelete, "/api/v1/push/subscriptions", "anna", gin.H{"endpoint": endpoint})
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, err = env.store.GetPushSubscription(context.Background(), endpoint)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodGet, "/api/v1/push/vapid_public_key", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	env = newTestEnv(t, &webpush.Options{VAPIDPublicKey: "BPub"})
	w = env.do(http.MethodGet, "/api/v1/push/vapid_public_key", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"BPub"}`, w.Body.String())
}

func TestGetErrorInfo_HidesInternalCause(t *testing.T) {
	info := GetErrorInfo(fmt.Errorf("wrapped: %w", errors.New("password=hunter2")))
	assert.Equal(t, "An internal error occurred", info.Message)
	assert.False(t, strings.Contains(info.Message, "hunter2"))
}
