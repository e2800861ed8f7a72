// Package dummy is an in-memory stand-in for the answer service, used to
// try quizload locally and in tests.
package dummy

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	CodeSuccess      = 200
	CodeBadRequest   = 400
	CodeBusinessFail = 5001
)

type ServerConfig struct {
	Addr string

	// Latency is added to every request, plus up to Jitter at random.
	Latency time.Duration
	Jitter  time.Duration

	// ErrorRate is the share of requests answered with HTTP 500,
	// AppErrorRate the share answered 200 with a failing ApiResponse code.
	ErrorRate    float64
	AppErrorRate float64

	// TotalStudents is reported by the statistic endpoint.
	TotalStudents int
}

// ApiResponse is the envelope every endpoint answers with.
type ApiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type answerRequest struct {
	QuestionID *int64 `json:"questionId"`
	StudentID  *int64 `json:"studentId"`
	Answer     string `json:"answer"`
	PlanID     *int   `json:"planId"`
}

// Statistic is the answer distribution of one question in one plan.
type Statistic struct {
	QuestionID       int64 `json:"questionId"`
	PlanID           int   `json:"planId"`
	TotalStudents    int   `json:"totalStudents"`
	AnsweredCount    int   `json:"answeredCount"`
	NotAnsweredCount int   `json:"notAnsweredCount"`
	ACount           int   `json:"aCount"`
	BCount           int   `json:"bCount"`
	CCount           int   `json:"cCount"`
	DCount           int   `json:"dCount"`
}

type questionKey struct {
	question int64
	plan     int
}

// Service holds submitted answers, last answer per student winning.
type Service struct {
	cfg  ServerConfig
	log  logrus.FieldLogger
	rand func() float64

	mu      sync.RWMutex
	answers map[questionKey]map[int64]string
}

func NewService(cfg ServerConfig, log logrus.FieldLogger) *Service {
	if cfg.TotalStudents <= 0 {
		cfg.TotalStudents = 50
	}
	return &Service{
		cfg:     cfg,
		log:     log,
		rand:    rand.Float64,
		answers: make(map[questionKey]map[int64]string),
	}
}

// Handler routes the submit and statistic endpoints.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/answer/submit-db", s.inject(s.submit))
	mux.HandleFunc("GET /api/answer/statistic/db/{questionId}/{planId}", s.inject(s.statistic))
	return mux
}

// inject applies the configured latency and failures before h.
func (s *Service) inject(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		delay := s.cfg.Latency
		if s.cfg.Jitter > 0 {
			delay += time.Duration(s.rand() * float64(s.cfg.Jitter))
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if s.cfg.ErrorRate > 0 && s.rand() < s.cfg.ErrorRate {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("500 Internal Server Error"))
			return
		}
		if s.cfg.AppErrorRate > 0 && s.rand() < s.cfg.AppErrorRate {
			writeJSON(w, ApiResponse{Code: CodeBusinessFail, Message: "system busy"})
			return
		}
		h(w, r)
	}
}

func (s *Service) submit(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, ApiResponse{Code: CodeBadRequest, Message: "malformed body"})
		return
	}
	if req.QuestionID == nil || req.StudentID == nil || req.PlanID == nil {
		writeJSON(w, ApiResponse{Code: CodeBadRequest, Message: "questionId, studentId and planId are required"})
		return
	}
	switch req.Answer {
	case "A", "B", "C", "D":
	default:
		writeJSON(w, ApiResponse{Code: CodeBadRequest, Message: "answer must be one of A, B, C, D"})
		return
	}

	key := questionKey{question: *req.QuestionID, plan: *req.PlanID}
	s.mu.Lock()
	byStudent, ok := s.answers[key]
	if !ok {
		byStudent = make(map[int64]string)
		s.answers[key] = byStudent
	}
	byStudent[*req.StudentID] = req.Answer
	s.mu.Unlock()

	writeJSON(w, ApiResponse{Code: CodeSuccess, Message: "Answer submitted successfully"})
}

func (s *Service) statistic(w http.ResponseWriter, r *http.Request) {
	qid, err := strconv.ParseInt(r.PathValue("questionId"), 10, 64)
	if err != nil {
		writeJSON(w, ApiResponse{Code: CodeBadRequest, Message: "bad questionId"})
		return
	}
	plan, err := strconv.Atoi(r.PathValue("planId"))
	if err != nil {
		writeJSON(w, ApiResponse{Code: CodeBadRequest, Message: "bad planId"})
		return
	}
	writeJSON(w, ApiResponse{Code: CodeSuccess, Message: "success", Data: s.Statistic(qid, plan)})
}

// Statistic counts the answers stored for a question.
func (s *Service) Statistic(questionID int64, planID int) Statistic {
	st := Statistic{QuestionID: questionID, PlanID: planID, TotalStudents: s.cfg.TotalStudents}

	s.mu.RLock()
	for _, a := range s.answers[questionKey{question: questionID, plan: planID}] {
		st.AnsweredCount++
		switch a {
		case "A":
			st.ACount++
		case "B":
			st.BCount++
		case "C":
			st.CCount++
		case "D":
			st.DCount++
		}
	}
	s.mu.RUnlock()

	st.NotAnsweredCount = max(st.TotalStudents-st.AnsweredCount, 0)
	return st
}

func writeJSON(w http.ResponseWriter, resp ApiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// Start serves the service on cfg.Addr until ctx is cancelled.
func Start(ctx context.Context, cfg ServerConfig, log logrus.FieldLogger) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, NewService(cfg, log), log)
}

// Serve is Start on an existing listener.
func Serve(ctx context.Context, ln net.Listener, svc *Service, log logrus.FieldLogger) error {
	server := &http.Server{
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", ln.Addr().String()).Info("answer service listening")
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
