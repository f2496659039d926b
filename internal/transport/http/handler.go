package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/logging"
	"quiz-session-service/internal/metrics"
)

// Handler maps the REST surface onto the quiz use cases. Payload shape
// validation happens here, before the service is invoked.
type Handler struct {
	service  *app.QuizService
	validate *validator.Validate
	log      *logrus.Logger
	metrics  *metrics.Metrics
}

func NewHandler(service *app.QuizService, log *logrus.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		log:      log,
		metrics:  m,
	}
}

// Register wires the routes into the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/quiz/start", h.instrument("start_quiz", h.startQuiz))
	mux.HandleFunc("GET /api/quiz/questions/{id}", h.instrument("fetch_question", h.fetchQuestion))
	mux.HandleFunc("POST /api/quiz/sessions/{id}/answers", h.instrument("submit_answers", h.submitAnswers))
	mux.HandleFunc("GET /api/quiz/sessions/{id}/result", h.instrument("get_result", h.getResult))
	mux.HandleFunc("POST /api/quiz/sessions/{id}/email", h.instrument("send_result_email", h.sendResultEmail))
	mux.HandleFunc("GET /api/users", h.instrument("list_users", h.listUsers))
}

type startQuizRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type startQuizResponse struct {
	SessionID int64 `json:"sessionId"`
}

type answerPayload struct {
	QuestionID    int64 `json:"questionId" validate:"required"`
	AlternativeID int64 `json:"alternativeId" validate:"required"`
}

type submitAnswersRequest struct {
	Answers []answerPayload `json:"answers" validate:"required,min=1,dive"`
}

type scoreResponse struct {
	Score int `json:"score"`
}

type deliveredResponse struct {
	Delivered bool `json:"delivered"`
}

type errorResponse struct {
	Error      string  `json:"error"`
	Missing    []int64 `json:"missing,omitempty"`
	QuestionID int64   `json:"questionId,omitempty"`
}

func (h *Handler) startQuiz(w http.ResponseWriter, r *http.Request) {
	var req startQuizRequest
	if !h.decode(w, r, &req) {
		return
	}
	sessionID, err := h.service.StartQuiz(r.Context(), req.Name, req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, startQuizResponse{SessionID: sessionID})
}

func (h *Handler) fetchQuestion(w http.ResponseWriter, r *http.Request) {
	questionID, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := h.service.FetchQuestion(r.Context(), questionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) submitAnswers(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req submitAnswersRequest
	if !h.decode(w, r, &req) {
		return
	}
	answers := make([]domain.AnswerSubmission, len(req.Answers))
	for i, answer := range req.Answers {
		answers[i] = domain.AnswerSubmission{
			QuestionID:    answer.QuestionID,
			AlternativeID: answer.AlternativeID,
		}
	}
	score, err := h.service.SubmitAnswers(r.Context(), sessionID, answers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{Score: score})
}

func (h *Handler) getResult(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.service.GetResult(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) sendResultEmail(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r)
	if !ok {
		return
	}
	delivered, err := h.service.SendResultEmail(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveredResponse{Delivered: delivered})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// instrument wraps a route with request-id logging and metrics.
func (h *Handler) instrument(operation string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		// downstream log entries pick the id up from the context
		r = r.WithContext(logging.WithRequestID(r.Context(), requestID))
		next(recorder, r)

		status := strconv.Itoa(recorder.status)
		if h.metrics != nil {
			h.metrics.Observe(operation, status, start)
		}
		h.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"operation":  operation,
			"status":     recorder.status,
			"duration":   time.Since(start).String(),
		}).Info("request handled")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// decode unmarshals and shape-validates the request body. Malformed input
// never reaches the service.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var missingErr *domain.MissingAnswersError
	var choiceErr *domain.InvalidChoiceError
	var deliveryErr *domain.DeliveryError

	switch {
	case errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &missingErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Missing: missingErr.Missing})
	case errors.As(err, &choiceErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), QuestionID: choiceErr.QuestionID})
	case errors.Is(err, domain.ErrSessionCompleted):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &deliveryErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		// internal detail stays out of the response
		logging.FromContext(r.Context(), h.log).WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
