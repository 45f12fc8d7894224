package sbi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RestComm/charging-server/internal/abmf"
	"github.com/RestComm/charging-server/internal/metrics"
	"github.com/RestComm/charging-server/internal/sbi"
)

type userDoc struct {
	Msisdn   string `json:"msisdn"`
	Balance  int64  `json:"balance"`
	Reserved int64  `json:"reserved"`
}

func newTestServer(t *testing.T) (*sbi.Server, *abmf.MemoryEngine) {
	t.Helper()

	engine := abmf.NewMemoryEngine()
	engine.LoadUsers(map[string]int64{"48600100100": 1000, "48600100101": 50})

	s, err := sbi.NewServer(sbi.Config{
		BindingAddr: "127.0.0.1:0",
		Scheme:      "http",
	}, engine, metrics.New())
	require.NoError(t, err)
	return s, engine
}

func do(s *sbi.Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestListUsers(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, "GET", "/charging/users")
	require.Equal(t, http.StatusOK, rec.Code)

	var users []userDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 2)
	require.Equal(t, "48600100100", users[0].Msisdn)
	require.EqualValues(t, 1000, users[0].Balance)

	rec = do(s, "GET", "/charging/users?filter=48600100101")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
}

func TestGetUser(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, "GET", "/charging/users/48600100100")
	require.Equal(t, http.StatusOK, rec.Code)

	var user userDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	require.EqualValues(t, 1000, user.Balance)

	rec = do(s, "GET", "/charging/users/999")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetBalanceCreatesUser(t *testing.T) {
	s, engine := newTestServer(t)

	rec := do(s, "PUT", "/charging/users/48600100999/balance/700")
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := engine.GetUser("48600100999")
	require.NoError(t, err)
	require.EqualValues(t, 700, user.Balance)

	rec = do(s, "PUT", "/charging/users/48600100999/balance/abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSanitizeUser(t *testing.T) {
	s, engine := newTestServer(t)

	_, err := engine.SetReserved("48600100100", 300)
	require.NoError(t, err)

	rec := do(s, "POST", "/charging/users/48600100100/sanitize")
	require.Equal(t, http.StatusOK, rec.Code)

	var user userDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	require.EqualValues(t, 1300, user.Balance)
	require.EqualValues(t, 0, user.Reserved)
}

func TestDeleteUser(t *testing.T) {
	s, engine := newTestServer(t)

	rec := do(s, "DELETE", "/charging/users/48600100101")
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err := engine.GetUser("48600100101")
	require.Error(t, err)

	rec = do(s, "DELETE", "/charging/users/48600100101")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, "GET", "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ocs_server_start_time_seconds")
}
