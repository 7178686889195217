package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnavshah/ionm-board/pkg/auth"
	"github.com/arnavshah/ionm-board/pkg/board"
	"github.com/arnavshah/ionm-board/pkg/models"
	"github.com/arnavshah/ionm-board/pkg/store"
)

type testServer struct {
	router *gin.Engine
	store  *store.Memory
	board  *board.Session
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemory(nil)
	engine := board.NewEngine(st, zap.NewNop())
	sess := board.NewSession(st, engine, zap.NewNop())
	require.NoError(t, sess.Start(context.Background()))
	t.Cleanup(func() { _ = sess.Close() })

	h := &Handler{
		Store:      st,
		Engine:     engine,
		Board:      sess,
		Issuer:     auth.NewIssuer("handlers-test-secret", time.Hour),
		DefaultPin: "1234",
		Logger:     zap.NewNop(),
	}
	r := gin.New()
	h.Routes(r)
	return &testServer{router: r, store: st, board: sess}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, name string) (string, models.StaffRecord) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"name": name, "pin": "1234"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		AccessToken string             `json:"access_token"`
		Staff       models.StaffRecord `json:"staff"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken, resp.Staff
}

func (s *testServer) waitForSlot(t *testing.T, label, staffID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		slot, _ := s.board.Snapshot().Slot(label)
		return slot.AssignedStaffID == staffID
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), Version)

	w = s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ionm_board")
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	_, rec := s.login(t, "Ann")
	assert.Equal(t, models.RoleUser, rec.Role)

	w := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"name": "Ann", "pin": "9999"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"name": "Ann", "pin": "123456"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"pin": "1234"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"name": "Ann", "pin": "1234"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "$2a$")
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/board", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/board", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _ := s.login(t, "Ann")
	w = s.do(t, http.MethodGet, "/api/board", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/board/drop", token, gin.H{
		"draggedStaffId": "x", "sourceKind": "roster", "targetSlotLabel": "1",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/board/reset", token, gin.H{"confirm": true})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDropAndBoard(t *testing.T) {
	s := newTestServer(t)
	admin, _ := s.login(t, "Charge Admin")
	_, ann := s.login(t, "Ann")

	w := s.do(t, http.MethodPost, "/api/board/drop", admin, gin.H{
		"draggedStaffId": ann.ID, "sourceKind": "roster", "draggedDuty": "204", "targetSlotLabel": "OC",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"lateNumber":"OC"`)
	assert.Contains(t, w.Body.String(), `"staffId":"`+ann.ID+`"`)
	assert.NotContains(t, w.Body.String(), "late_number")
	s.waitForSlot(t, "OC", ann.ID)

	w = s.do(t, http.MethodGet, "/api/board", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap board.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, ann.ID, snap.Slots[20].AssignedStaffID)
	assert.Equal(t, "204", snap.Slots[20].Duty)

	got, err := s.store.Get(context.Background(), ann.ID)
	require.NoError(t, err)
	assert.Equal(t, "204", got.Room)
}

func TestDrop_BadRequests(t *testing.T) {
	s := newTestServer(t)
	admin, _ := s.login(t, "Charge Admin")

	w := s.do(t, http.MethodPost, "/api/board/drop", admin, gin.H{"sourceKind": "roster", "targetSlotLabel": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/board/drop", admin, gin.H{
		"draggedStaffId": "a", "sourceKind": "roster", "targetSlotLabel": "21",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/board/drop", admin, gin.H{
		"draggedStaffId": "a", "sourceKind": "shelf", "targetSlotLabel": "1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.store.FailWrites = assert.AnError
	w = s.do(t, http.MethodPost, "/api/board/drop", admin, gin.H{
		"draggedStaffId": "a", "sourceKind": "roster", "targetSlotLabel": "1",
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSetDuty(t *testing.T) {
	s := newTestServer(t)
	admin, _ := s.login(t, "Charge Admin")
	_, ann := s.login(t, "Ann")

	require.NoError(t, s.store.Update(context.Background(), ann.ID, models.Fields{models.FieldLateNumber: "3"}))
	s.waitForSlot(t, "3", ann.ID)

	w := s.do(t, http.MethodPut, "/api/board/slots/3/duty", admin, gin.H{"duty": "Lunch Relief"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got, err := s.store.Get(context.Background(), ann.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lunch Relief", got.Duty)
	assert.Empty(t, got.Room)

	w = s.do(t, http.MethodPut, "/api/board/slots/SV/duty", admin, gin.H{"duty": "12"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nothing written")

	w = s.do(t, http.MethodPut, "/api/board/slots/0/duty", admin, gin.H{"duty": "12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetBoard(t *testing.T) {
	s := newTestServer(t)
	admin, _ := s.login(t, "Charge Admin")
	_, ann := s.login(t, "Ann")

	require.NoError(t, s.store.Update(context.Background(), ann.ID, models.Fields{models.FieldLateNumber: "7"}))
	s.waitForSlot(t, "7", ann.ID)

	w := s.do(t, http.MethodPost, "/api/board/reset", admin, gin.H{})
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)

	w = s.do(t, http.MethodPost, "/api/board/reset", admin, gin.H{"confirm": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"cleared":1`)
	s.waitForSlot(t, "7", "")
}

func TestStaffRoutes(t *testing.T) {
	s := newTestServer(t)
	admin, _ := s.login(t, "Charge Admin")
	user, ann := s.login(t, "Ann")

	w := s.do(t, http.MethodPatch, "/api/staff/me", user, gin.H{"status": "begin", "caseType": "Spine"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got, err := s.store.Get(context.Background(), ann.ID)
	require.NoError(t, err)
	assert.Equal(t, "begin", got.Status)
	assert.Equal(t, "Spine", got.CaseType)
	assert.Regexp(t, `^\d\d:\d\d$`, got.BeginTime)

	w = s.do(t, http.MethodPatch, "/api/staff/me", user, gin.H{"lateNumber": "3"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPatch, "/api/staff/"+ann.ID, admin, gin.H{"lateNumber": "3", "lateCover": "Bob"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s.waitForSlot(t, "3", ann.ID)

	w = s.do(t, http.MethodPatch, "/api/staff/missing", admin, gin.H{"room": "204"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Eventually(t, func() bool {
		w := s.do(t, http.MethodGet, "/api/staff", user, nil)
		return w.Code == http.StatusOK && strings.Count(w.Body.String(), `"id"`) == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStaffPatchFields(t *testing.T) {
	now := time.Date(2024, 3, 1, 7, 5, 0, 0, time.UTC)
	str := func(s string) *string { return &s }
	yes := true

	f, err := StaffPatch{Status: str("done"), HelpNeeded: &yes}.Fields(now, false)
	require.NoError(t, err)
	assert.Equal(t, models.Fields{
		models.FieldStatus:     "done",
		models.FieldDoneTime:   "07:05",
		models.FieldHelpNeeded: true,
	}, f)

	f, err = StaffPatch{LunchStatus: str("No"), LunchCover: str("Bob"), BreakStatus: str("Request")}.Fields(now, false)
	require.NoError(t, err)
	assert.Equal(t, noCover, f[models.FieldLunchCover])
	assert.Equal(t, "Request", f[models.FieldBreakStatus])

	_, err = StaffPatch{Name: str("Ann")}.Fields(now, false)
	assert.ErrorIs(t, err, errAdminOnlyField)

	_, err = StaffPatch{Name: str("")}.Fields(now, true)
	assert.Error(t, err)

	_, err = StaffPatch{Status: str("napping")}.Fields(now, true)
	assert.Error(t, err)

	_, err = StaffPatch{CaseType: str("Cardiac")}.Fields(now, true)
	assert.Error(t, err)

	_, err = StaffPatch{LunchStatus: str("Maybe")}.Fields(now, true)
	assert.Error(t, err)

	_, err = StaffPatch{}.Fields(now, true)
	assert.Error(t, err)
}

func TestBoardSocket(t *testing.T) {
	s := newTestServer(t)
	admin, _ := s.login(t, "Charge Admin")
	_, ann := s.login(t, "Ann")
	require.NoError(t, s.store.Update(context.Background(), ann.ID, models.Fields{
		models.FieldLateNumber: "2", models.FieldDuty: "204",
	}))
	s.waitForSlot(t, "2", ann.ID)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/board/ws?token=" + admin
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	read := func(match func(WSResponse) bool) WSResponse {
		t.Helper()
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		for {
			var msg WSResponse
			require.NoError(t, ws.ReadJSON(&msg))
			if match(msg) {
				return msg
			}
		}
	}

	first := read(func(m WSResponse) bool { return m.Type == "board" && m.Board.Slots[1].Occupied() })
	assert.Equal(t, "204", first.Board.Slots[1].Duty)

	require.NoError(t, ws.WriteJSON(WSRequest{Type: msgDutyEdit, Slot: "2", Text: "Float"}))
	read(func(m WSResponse) bool { return m.Type == "board" && m.Board.Slots[1].Duty == "Float" })

	got, err := s.store.Get(context.Background(), ann.ID)
	require.NoError(t, err)
	assert.Equal(t, "204", got.Duty)

	require.NoError(t, ws.WriteJSON(WSRequest{Type: msgDutyCommit, Slot: "2"}))
	require.Eventually(t, func() bool {
		got, err := s.store.Get(context.Background(), ann.ID)
		return err == nil && got.Duty == "Float"
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, ws.WriteJSON(WSRequest{Type: msgReset}))
	msg := read(func(m WSResponse) bool { return m.Type == "error" })
	assert.Contains(t, msg.Error, "confirm")

	require.NoError(t, ws.WriteJSON(WSRequest{Type: "wave"}))
	msg = read(func(m WSResponse) bool { return m.Type == "error" })
	assert.Contains(t, msg.Error, "wave")
}

func TestQueryTokenOnlyOnSocket(t *testing.T) {
	s := newTestServer(t)
	admin, _ := s.login(t, "Charge Admin")

	w := s.do(t, http.MethodGet, "/api/board?token="+admin, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/staff?token="+admin, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Without an upgrade the socket route still authenticates first.
	user, _ := s.login(t, "Ann")
	w = s.do(t, http.MethodGet, "/api/board/ws?token="+user, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodGet, "/api/board/ws?token=garbage", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAccessLogOmitsQuery(t *testing.T) {
	line := accessLogLine(gin.LogFormatterParams{
		TimeStamp:  time.Date(2024, 3, 1, 7, 5, 0, 0, time.UTC),
		StatusCode: http.StatusSwitchingProtocols,
		Method:     http.MethodGet,
		Path:       "/api/board/ws?token=eyJhbGciOiJIUzI1NiJ9.secret",
	})
	assert.Contains(t, line, `"/api/board/ws"`)
	assert.NotContains(t, line, "token")
	assert.NotContains(t, line, "secret")

	var buf bytes.Buffer
	r := gin.New()
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{Formatter: accessLogLine, Output: &buf}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping?token=abc", nil))
	assert.Contains(t, buf.String(), `"/ping"`)
	assert.NotContains(t, buf.String(), "abc")
}
