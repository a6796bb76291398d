package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"poll-voting/internal/app"
	"poll-voting/internal/model"
	"poll-voting/internal/ports/http/middleware/auth"
	"poll-voting/internal/ports/http/middleware/cors"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const readHeaderTimeout = 5 * time.Second

type Server struct {
	app        *app.App
	validator  auth.TokenValidator
	httpServer *http.Server
	addr       string
	origins    []string
	logger     *zap.Logger
}

func NewServer(logger *zap.Logger, a *app.App, validator auth.TokenValidator, address string, origins ...string) *Server {
	return &Server{
		app:       a,
		validator: validator,
		addr:      address,
		origins:   origins,
		logger:    logger,
	}
}

func (ser *Server) badRequest(w http.ResponseWriter, message string) {
	w.WriteHeader(http.StatusBadRequest)
	if _, err := w.Write([]byte(message)); err != nil {
		ser.logger.Error("failed to write a bad request error message: " + err.Error())
	}

	ser.logger.Warn(message)
}

func (ser *Server) serverError(w http.ResponseWriter, message string) {
	w.WriteHeader(http.StatusInternalServerError)
	if _, err := w.Write([]byte(message)); err != nil {
		ser.logger.Error("failed to write a server error message: " + err.Error())
	}

	ser.logger.Error(message)
}

// appError answers with the status matching the kind of err.
func (ser *Server) appError(w http.ResponseWriter, message string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		ser.serverError(w, message+": "+err.Error())
		return
	}

	body := err.Error()
	var serverErr *model.ServerError
	if errors.As(err, &serverErr) {
		body = serverErr.Body
	}

	w.WriteHeader(status)
	if _, writeErr := w.Write([]byte(body)); writeErr != nil {
		ser.logger.Error("failed to write an error message: " + writeErr.Error())
	}
	ser.logger.Info(message+": "+err.Error(), zap.Int("status", status))
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrMissingCredential):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrAuth):
		return http.StatusForbidden
	case errors.Is(err, model.ErrAlreadyVoted), errors.Is(err, model.ErrAttemptInFlight):
		return http.StatusConflict
	case errors.Is(err, model.ErrPollNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrProtocol):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNetwork):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrServer):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (ser *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	response, err := json.Marshal(v)
	if err != nil {
		ser.serverError(w, "marshalling the response failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		ser.logger.Error("failed to write the response: " + err.Error())
	}
}

func (ser *Server) registerHandlers(router *mux.Router) {

	router.HandleFunc("/health", healthcheck)
	router.HandleFunc("/popup/{tag}", ser.receiveProof).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(ser.validator.ValidateGetRole)

	api.HandleFunc("/ballots", ser.getBallots).Methods(http.MethodGet)
	api.HandleFunc("/ballots/{ballotID}", ser.getBallot).Methods(http.MethodGet)
	api.HandleFunc("/ballots/{ballotID}/votes", ser.postBallotVotes).Methods(http.MethodPost)
	api.HandleFunc("/polls/{pollID}/votes", ser.postVote).Methods(http.MethodPost)
	api.HandleFunc("/polls/{pollID}/votes", ser.cancelVote).Methods(http.MethodDelete)
	api.HandleFunc("/votes/{tag}", ser.getVoteStatus).Methods(http.MethodGet)

}

func healthcheck(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("all good here"))
}

// Handler is the whole API with the CORS policy applied.
func (ser *Server) Handler() http.Handler {
	router := mux.NewRouter()
	ser.registerHandlers(router)

	return cors.AddCorsPolicy(router, ser.origins...)
}

func (ser *Server) Run() error {
	ser.httpServer = &http.Server{
		Handler:           ser.Handler(),
		Addr:              ser.addr,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ser.logger.Info("listening on " + ser.addr)
	if err := ser.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (ser *Server) Shutdown(ctx context.Context) error {
	if ser.httpServer == nil {
		return nil
	}
	return ser.httpServer.Shutdown(ctx)
}
