package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"survey-flow-service/internal/answer"
	"survey-flow-service/internal/app"
	"survey-flow-service/internal/domain"
)

type WSHandler struct {
	service  *app.ResponseService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ResponseService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// answerPayload carries the raw answer fields next to the question id.
type answerPayload struct {
	QuestionID int64 `json:"questionId"`
	answer.Input
}

type questionPayload struct {
	RespondentID string          `json:"respondentId"`
	Question     domain.Question `json:"question"`
}

type answerAccepted struct {
	QuestionID int64        `json:"questionId"`
	Answer     answer.Value `json:"answer"`
	Display    string       `json:"display"`
}

type completedPayload struct {
	SurveyID     int64  `json:"surveyId"`
	RespondentID string `json:"respondentId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and walks one respondent through a survey.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	surveyID, err := strconv.ParseInt(r.URL.Query().Get("surveyId"), 10, 64)
	if err != nil || surveyID <= 0 {
		http.Error(w, "missing or invalid surveyId", http.StatusBadRequest)
		return
	}
	respondentID := r.URL.Query().Get("respondentId")
	if respondentID == "" {
		respondentID = uuid.NewString()
	}
	logger := log.WithFields(log.Fields{"survey_id": surveyID, "respondent_id": respondentID})

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	first, err := h.service.Start(r.Context(), surveyID, respondentID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), surveyID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: toErrorPayload(err)})
		return
	}
	defer cancel()
	defer h.service.Leave(r.Context(), surveyID, respondentID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warnf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "progress", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "question", Payload: questionPayload{RespondentID: respondentID, Question: first}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "invalid answer payload"}}
				continue
			}
			step, err := h.service.SubmitAnswer(r.Context(), surveyID, respondentID, payload.QuestionID, payload.Input)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: toErrorPayload(err)}
				continue
			}
			send <- outboundMessage[any]{Type: "answerAccepted", Payload: answerAccepted{
				QuestionID: payload.QuestionID,
				Answer:     step.Answer,
				Display:    step.Answer.DisplayValue(),
			}}
			if step.Completed {
				logger.Info("respondent completed survey")
				send <- outboundMessage[any]{Type: "completed", Payload: completedPayload{SurveyID: surveyID, RespondentID: respondentID}}
				continue
			}
			send <- outboundMessage[any]{Type: "question", Payload: questionPayload{RespondentID: respondentID, Question: *step.Next}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func toErrorPayload(err error) errorPayload {
	return errorPayload{Code: errorCode(err), Message: err.Error()}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrSurveyNotFound), errors.Is(err, domain.ErrQuestionNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrSurveyInactive):
		return "survey_inactive"
	case errors.Is(err, domain.ErrSurveyCompleted):
		return "survey_completed"
	case errors.Is(err, domain.ErrUnexpectedQuestion):
		return "unexpected_question"
	case errors.Is(err, domain.ErrInvalidAnswerFormat), errors.Is(err, domain.ErrInvalidQuestionType):
		return "invalid_answer"
	case errors.Is(err, domain.ErrInvalidStructure), errors.Is(err, domain.ErrSurveyTooLarge):
		return "invalid_structure"
	}
	return "internal"
}
