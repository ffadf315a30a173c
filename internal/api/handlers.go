package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/jontk/ticketd/internal/dateutil"
	"github.com/jontk/ticketd/internal/services/user"
	"github.com/jontk/ticketd/pkg/ticketerr"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.stats.recordError(err)

	re, ok := err.(*ticketerr.ReservationError)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	status := http.StatusInternalServerError
	switch re.Category {
	case ticketerr.CategoryValidation:
		status = http.StatusBadRequest
	case ticketerr.CategoryNotFound:
		status = http.StatusNotFound
	case ticketerr.CategoryDomain:
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"code": string(re.Code), "error": re.Message})
}

type addUserRequest struct {
	Cur       string `json:"cur"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Mail      string `json:"mail"`
	Privilege int32  `json:"privilege"`
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var req addUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if err := s.users.AddUser(req.Cur, req.Username, req.Password, req.Name, req.Mail, req.Privilege); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if err := s.users.Login(req.Username, req.Password); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": req.Username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	if err := s.users.Logout(username); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueryProfile(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	cur := r.URL.Query().Get("cur")
	rec, err := s.users.QueryProfile(cur, username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type modifyProfileRequest struct {
	Cur       string  `json:"cur"`
	Password  *string `json:"password,omitempty"`
	Name      *string `json:"name,omitempty"`
	Mail      *string `json:"mail,omitempty"`
	Privilege *int32  `json:"privilege,omitempty"`
}

func (s *Server) handleModifyProfile(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	var req modifyProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	rec, err := s.users.ModifyProfile(req.Cur, username, user.ProfileUpdate{
		Password: req.Password, Name: req.Name, Mail: req.Mail, Privilege: req.Privilege,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type addTrainRequest struct {
	TrainID       string   `json:"trainId"`
	StationNum    int      `json:"stationNum"`
	SeatNum       int32    `json:"seatNum"`
	Stations      []string `json:"stations"`
	Prices        []int32  `json:"prices"`
	TravelTimes   []int32  `json:"travelTimes"`
	StopoverTimes []int32  `json:"stopoverTimes"`
	StartTime     int32    `json:"startTime"`
	SaleStart     string   `json:"saleStart"`
	SaleEnd       string   `json:"saleEnd"`
	Type          string   `json:"type"`
}

func (s *Server) handleAddTrain(w http.ResponseWriter, r *http.Request) {
	var req addTrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	saleStart, err := dateutil.Parse(req.SaleStart)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid saleStart"})
		return
	}
	saleEnd, err := dateutil.Parse(req.SaleEnd)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid saleEnd"})
		return
	}
	var trainType byte
	if len(req.Type) > 0 {
		trainType = req.Type[0]
	}
	if err := s.trains.AddTrain(req.TrainID, req.StationNum, req.SeatNum, req.Stations,
		req.Prices, req.TravelTimes, req.StopoverTimes, req.StartTime, saleStart, saleEnd, trainType); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"trainId": req.TrainID})
}

func (s *Server) handleDeleteTrain(w http.ResponseWriter, r *http.Request) {
	trainID := mux.Vars(r)["trainID"]
	if err := s.trains.DeleteTrain(trainID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReleaseTrain(w http.ResponseWriter, r *http.Request) {
	trainID := mux.Vars(r)["trainID"]
	if err := s.trains.ReleaseTrain(trainID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"trainId": trainID})
}

func (s *Server) handleQueryTrain(w http.ResponseWriter, r *http.Request) {
	trainID := mux.Vars(r)["trainID"]
	date, err := dateutil.Parse(r.URL.Query().Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date"})
		return
	}
	lines, err := s.trains.QueryTrain(trainID, date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (s *Server) handleQueryTicket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := dateutil.Parse(q.Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date"})
		return
	}
	sortBy := q.Get("sort")
	if sortBy == "" {
		sortBy = "time"
	}
	out, err := s.trains.QueryTicket(q.Get("from"), q.Get("to"), date, sortBy)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQueryTransfer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := dateutil.Parse(q.Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date"})
		return
	}
	sortBy := q.Get("sort")
	if sortBy == "" {
		sortBy = "time"
	}
	plan, found, err := s.trains.QueryTransfer(q.Get("from"), q.Get("to"), date, sortBy)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no transfer itinerary found"})
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

type buyTicketRequest struct {
	Username    string `json:"username"`
	TrainID     string `json:"trainId"`
	Date        string `json:"date"`
	Num         int32  `json:"num"`
	From        string `json:"from"`
	To          string `json:"to"`
	QueueIfFull bool   `json:"queueIfFull"`
	Timestamp   int64  `json:"timestamp"`
}

func (s *Server) handleBuyTicket(w http.ResponseWriter, r *http.Request) {
	var req buyTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	date, err := dateutil.Parse(req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date"})
		return
	}
	price, err := s.orders.BuyTicket(req.Username, req.TrainID, date, req.Num, req.From, req.To, req.QueueIfFull, req.Timestamp)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int32{"price": price})
}

func (s *Server) handleQueryOrder(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	orders, err := s.orders.QueryOrder(username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.snapshot())
}

func (s *Server) handleRefundTicket(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order index"})
		return
	}
	if err := s.orders.RefundTicket(username, index); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
