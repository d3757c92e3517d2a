package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/and161185/dispatch/internal/assignment"
	"github.com/and161185/dispatch/internal/candidates"
	"github.com/and161185/dispatch/internal/commission"
	"github.com/and161185/dispatch/internal/config"
	"github.com/and161185/dispatch/internal/deps"
	"github.com/and161185/dispatch/internal/distribution"
	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/middleware"
	"github.com/and161185/dispatch/internal/model"
	"github.com/and161185/dispatch/internal/scheduler"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/crypto/bcrypt"
)

//go:generate mockgen -source=server.go -destination=../mocks/server_mocks.go -package=mocks

type Storage interface {
	GetStaffByLogin(ctx context.Context, login string) (model.Staff, string, error)
	GetStaffByID(ctx context.Context, id int64) (model.Staff, error)
	GetOrder(ctx context.Context, id int64) (model.Order, error)
	ListOrderHistory(ctx context.Context, orderID int64) ([]model.HistoryEntry, error)
	Ping(ctx context.Context) error
}

type CandidateInspector interface {
	Evaluate(ctx context.Context, order model.Order, mode candidates.Mode, limit int) (candidates.Evaluation, error)
}

type Assigner interface {
	Assign(ctx context.Context, orderID, masterID, staffID int64) (assignment.Result, error)
}

type OfferResponder interface {
	AcceptOffer(ctx context.Context, offerID, masterID int64) (distribution.AcceptResult, error)
	DeclineOffer(ctx context.Context, offerID, masterID int64) error
	MarkViewed(ctx context.Context, offerID, masterID int64) error
}

type CommissionCreator interface {
	CreateForOrder(ctx context.Context, orderID int64) (commission.Result, error)
}

type Services struct {
	Candidates CandidateInspector
	Assignment Assigner
	Offers     OfferResponder
	Commission CommissionCreator
}

type Server struct {
	storage  Storage
	services Services
	jobs     *scheduler.Scheduler
	config   *config.Config
	deps     *deps.Deps
}

func NewServer(storage Storage, services Services, jobs *scheduler.Scheduler, config *config.Config, deps *deps.Deps) *Server {
	return &Server{
		storage:  storage,
		services: services,
		jobs:     jobs,
		config:   config,
		deps:     deps,
	}
}

func (srv *Server) buildRouter() http.Handler {
	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.StripSlashes)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   srv.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Content-Encoding", "Accept-Encoding"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.LogMiddleware(srv.deps.Logger))
	router.Use(middleware.DecompressMiddleware)
	router.Use(middleware.CompressMiddleware(srv.deps.Logger))

	router.Get("/ping", srv.PingHandler)
	router.Post("/api/staff/login", srv.LoginHandler)

	router.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(srv.storage, srv.deps.TokenManager))

		r.Get("/api/orders/{id}/candidates", srv.CandidatesHandler)
		r.Post("/api/orders/{id}/assign", srv.AssignHandler)
		r.Post("/api/orders/{id}/commission", srv.CommissionHandler)
		r.Get("/api/orders/{id}/history", srv.HistoryHandler)

		r.Post("/api/offers/{id}/accept", srv.AcceptOfferHandler)
		r.Post("/api/offers/{id}/decline", srv.DeclineOfferHandler)
		r.Post("/api/offers/{id}/view", srv.ViewOfferHandler)
	})

	return router
}

func (srv *Server) Run(ctx context.Context) error {
	router := srv.buildRouter()

	server := &http.Server{
		Addr:              srv.config.RunAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srv.deps.Logger.Fatalf("server error: %v", err)
		}
	}()

	if srv.jobs != nil {
		srv.jobs.Start(ctx)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := server.Shutdown(shutdownCtx)

	if srv.jobs != nil {
		srv.jobs.Wait()
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (srv *Server) PingHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.storage.Ping(r.Context()); err != nil {
		srv.deps.Logger.Errorf("ping: %v", err)
		http.Error(w, "db unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials

	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if creds.Login == "" || creds.Password == "" {
		http.Error(w, "login and password required", http.StatusBadRequest)
		return
	}

	staff, hash, err := srv.storage.GetStaffByLogin(r.Context(), creds.Login)
	if err != nil {
		if errors.Is(err, errs.ErrStaffNotFound) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if !staff.IsActive {
		http.Error(w, "staff account disabled", http.StatusForbidden)
		return
	}

	token, err := srv.deps.TokenManager.GenerateToken(staff)
	if err != nil {
		http.Error(w, "token error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	w.WriteHeader(http.StatusOK)
}

// loadOrder writes the error response itself and reports whether to go on.
func (srv *Server) loadOrder(w http.ResponseWriter, r *http.Request) (model.Order, bool) {
	orderID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return model.Order{}, false
	}

	order, err := srv.storage.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, errs.ErrOrderNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return model.Order{}, false
		}
		srv.deps.Logger.Errorf("get order %d: %v", orderID, err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return model.Order{}, false
	}
	return order, true
}

func (srv *Server) CandidatesHandler(w http.ResponseWriter, r *http.Request) {
	order, ok := srv.loadOrder(w, r)
	if !ok {
		return
	}

	ev, err := srv.services.Candidates.Evaluate(r.Context(), order, candidates.ModeInspect, 0)
	if err != nil {
		if errors.Is(err, errs.ErrUnmappedCategory) {
			http.Error(w, "order category has no skill mapping", http.StatusUnprocessableEntity)
			return
		}
		srv.deps.Logger.Errorf("evaluate candidates for order %d: %v", order.ID, err)
		http.Error(w, "candidate search failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, newCandidatesResponse(order.ID, ev))
}

func (srv *Server) AssignHandler(w http.ResponseWriter, r *http.Request) {
	staff, ok := middleware.StaffFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	orderID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	var req model.AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MasterID <= 0 {
		http.Error(w, "master_id required", http.StatusBadRequest)
		return
	}

	res, err := srv.services.Assignment.Assign(r.Context(), orderID, req.MasterID, staff.ID)
	if err != nil {
		srv.deps.Logger.Errorf("assign order %d: %v", orderID, err)
		http.Error(w, "assign failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, assignStatus(res.Code), res)
}

func assignStatus(code string) int {
	switch code {
	case assignment.CodeAssigned:
		return http.StatusOK
	case assignment.CodeOrderNotFound:
		return http.StatusNotFound
	case assignment.CodeAlreadyAssigned, assignment.CodeLostRace:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func (srv *Server) decodeOfferRequest(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	offerID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid offer id", http.StatusBadRequest)
		return 0, 0, false
	}

	var req model.OfferResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MasterID <= 0 {
		http.Error(w, "master_id required", http.StatusBadRequest)
		return 0, 0, false
	}
	return offerID, req.MasterID, true
}

func (srv *Server) AcceptOfferHandler(w http.ResponseWriter, r *http.Request) {
	offerID, masterID, ok := srv.decodeOfferRequest(w, r)
	if !ok {
		return
	}

	res, err := srv.services.Offers.AcceptOffer(r.Context(), offerID, masterID)
	if err != nil {
		srv.deps.Logger.Errorf("accept offer %d: %v", offerID, err)
		http.Error(w, "accept failed", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	switch res.Code {
	case distribution.CodeAlreadyTaken:
		status = http.StatusConflict
	case distribution.CodeOfferNotFound:
		status = http.StatusNotFound
	case distribution.CodeNotYourOffer:
		status = http.StatusForbidden
	}
	writeJSON(w, status, res)
}

func (srv *Server) DeclineOfferHandler(w http.ResponseWriter, r *http.Request) {
	srv.respondOffer(w, r, srv.services.Offers.DeclineOffer)
}

func (srv *Server) ViewOfferHandler(w http.ResponseWriter, r *http.Request) {
	srv.respondOffer(w, r, srv.services.Offers.MarkViewed)
}

func (srv *Server) respondOffer(w http.ResponseWriter, r *http.Request, respond func(ctx context.Context, offerID, masterID int64) error) {
	offerID, masterID, ok := srv.decodeOfferRequest(w, r)
	if !ok {
		return
	}

	err := respond(r.Context(), offerID, masterID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, errs.ErrOfferNotFound):
		http.Error(w, "offer not found", http.StatusNotFound)
	case errors.Is(err, errs.ErrOfferNotActive):
		http.Error(w, "offer is no longer active", http.StatusConflict)
	default:
		srv.deps.Logger.Errorf("respond offer %d: %v", offerID, err)
		http.Error(w, "offer update failed", http.StatusInternalServerError)
	}
}

func (srv *Server) CommissionHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r)
	if !ok {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	res, err := srv.services.Commission.CreateForOrder(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrOrderNotFound):
			http.Error(w, "order not found", http.StatusNotFound)
		case errors.Is(err, errs.ErrOrderNotCompleted), errors.Is(err, errs.ErrNoAssignedMaster):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			srv.deps.Logger.Errorf("create commission for order %d: %v", orderID, err)
			http.Error(w, "commission failed", http.StatusInternalServerError)
		}
		return
	}

	status := http.StatusOK
	if res.Outcome == commission.OutcomeCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (srv *Server) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	order, ok := srv.loadOrder(w, r)
	if !ok {
		return
	}

	entries, err := srv.storage.ListOrderHistory(r.Context(), order.ID)
	if err != nil {
		srv.deps.Logger.Errorf("order %d history: %v", order.ID, err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	if len(entries) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, newHistoryResponse(entries))
}
