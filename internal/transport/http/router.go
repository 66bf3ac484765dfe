package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"survey-flow-service/internal/answer"
	"survey-flow-service/internal/app"
	"survey-flow-service/internal/domain"
)

// API exposes survey administration and answer lookup over REST.
type API struct {
	surveys   *app.SurveyService
	responses *app.ResponseService
}

func NewAPI(surveys *app.SurveyService, responses *app.ResponseService) *API {
	return &API{surveys: surveys, responses: responses}
}

// NewRouter mounts the REST endpoints and the websocket channel.
func NewRouter(api *API, ws *WSHandler) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS)
	r.HandleFunc("/sessions", api.sessions).Methods(http.MethodGet)

	s := r.PathPrefix("/surveys/{id:[0-9]+}").Subrouter()
	s.HandleFunc("/validation", api.validation).Methods(http.MethodGet)
	s.HandleFunc("/cycle", api.cycle).Methods(http.MethodGet)
	s.HandleFunc("/endpoints", api.endpoints).Methods(http.MethodGet)
	s.HandleFunc("/activate", api.activate).Methods(http.MethodPost)
	s.HandleFunc("/deactivate", api.deactivate).Methods(http.MethodPost)
	s.HandleFunc("/respondents/{respondentId}/answers", api.answers).Methods(http.MethodGet)
	return r
}

func (a *API) sessions(w http.ResponseWriter, r *http.Request) {
	ids, err := a.responses.ActiveSurveys(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, map[string][]int64{"surveyIds": ids})
}

func (a *API) validation(w http.ResponseWriter, r *http.Request) {
	id, ok := surveyID(w, r)
	if !ok {
		return
	}
	report, err := a.surveys.Report(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) cycle(w http.ResponseWriter, r *http.Request) {
	id, ok := surveyID(w, r)
	if !ok {
		return
	}
	result, err := a.surveys.DetectCycle(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type endpointsResponse struct {
	SurveyID  int64   `json:"surveyId"`
	Endpoints []int64 `json:"endpoints"`
}

func (a *API) endpoints(w http.ResponseWriter, r *http.Request) {
	id, ok := surveyID(w, r)
	if !ok {
		return
	}
	endpoints, err := a.surveys.FindSurveyEndpoints(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if endpoints == nil {
		endpoints = []int64{}
	}
	writeJSON(w, http.StatusOK, endpointsResponse{SurveyID: id, Endpoints: endpoints})
}

func (a *API) activate(w http.ResponseWriter, r *http.Request) {
	id, ok := surveyID(w, r)
	if !ok {
		return
	}
	report, err := a.surveys.Activate(r.Context(), id)
	if errors.Is(err, domain.ErrInvalidStructure) {
		writeJSON(w, http.StatusUnprocessableEntity, report)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := surveyID(w, r)
	if !ok {
		return
	}
	if err := a.surveys.Deactivate(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type answerResponse struct {
	QuestionID int64        `json:"questionId"`
	Value      answer.Value `json:"value"`
	Display    string       `json:"display"`
	AnsweredAt time.Time    `json:"answeredAt"`
}

func (a *API) answers(w http.ResponseWriter, r *http.Request) {
	id, ok := surveyID(w, r)
	if !ok {
		return
	}
	records, err := a.responses.Answers(r.Context(), id, mux.Vars(r)["respondentId"])
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]answerResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, answerResponse{
			QuestionID: rec.QuestionID,
			Value:      rec.Value,
			Display:    rec.Value.DisplayValue(),
			AnsweredAt: rec.AnsweredAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func surveyID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "bad_request", Message: "invalid survey id"})
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	code := errorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case "not_found":
		status = http.StatusNotFound
	case "invalid_structure", "invalid_answer":
		status = http.StatusUnprocessableEntity
	case "survey_inactive", "survey_completed", "unexpected_question":
		status = http.StatusConflict
	default:
		log.Errorf("request failed: %v", err)
	}
	writeJSON(w, status, errorPayload{Code: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warnf("encode response: %v", err)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("http request")
	})
}
