package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jontk/ticketd/internal/services/order"
	"github.com/jontk/ticketd/internal/services/train"
	"github.com/jontk/ticketd/internal/services/user"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	userSvc, err := user.Open(user.Options{DataDir: t.TempDir(), NodeFanout: 4, BlockCapacity: 4, CacheK: 2, CacheCapacity: 16})
	require.NoError(t, err)
	t.Cleanup(func() { _ = userSvc.Close() })

	trainSvc, err := train.Open(train.Options{DataDir: t.TempDir(), NodeFanout: 4, BlockCapacity: 4, CacheK: 2, CacheCapacity: 16})
	require.NoError(t, err)
	t.Cleanup(func() { _ = trainSvc.Close() })

	orderSvc, err := order.Open(order.Options{DataDir: t.TempDir(), NodeFanout: 4, BlockCapacity: 4, CacheK: 2, CacheCapacity: 16}, trainSvc, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = orderSvc.Close() })

	return NewServer(userSvc, trainSvc, orderSvc, nil)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestAddUserAndLoginRoundTrip(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/users", addUserRequest{
		Cur: "anybody", Username: "root", Password: "r00t", Name: "Root", Mail: "r@x", Privilege: 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = doJSON(t, s, http.MethodPost, "/sessions", loginRequest{Username: "root", Password: "r00t"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/users/root?cur=root", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBuyTicketEndToEnd(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/trains", addTrainRequest{
		TrainID: "G1", StationNum: 3, SeatNum: 5,
		Stations: []string{"A", "B", "C"}, Prices: []int32{10, 10},
		TravelTimes: []int32{60, 60}, StopoverTimes: []int32{10},
		StartTime: 480, SaleStart: "06-01", SaleEnd: "06-05", Type: "G",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/trains/G1/release", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/orders", buyTicketRequest{
		Username: "alice", TrainID: "G1", Date: "06-02", Num: 2, From: "A", To: "C", Timestamp: 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int32
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, int32(40), resp["price"])

	rec = doJSON(t, s, http.MethodGet, "/orders?username=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAddTrainRejectsBadDate(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/trains", addTrainRequest{
		TrainID: "G1", StationNum: 2, SeatNum: 5, Stations: []string{"A", "B"},
		Prices: []int32{10}, TravelTimes: []int32{60}, StartTime: 480,
		SaleStart: "not-a-date", SaleEnd: "06-05", Type: "G",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
