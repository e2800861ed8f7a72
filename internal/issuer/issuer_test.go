package issuer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizload/internal/logging"
	"quizload/internal/sequencer"
	"quizload/internal/stats"
)

type weirdError struct{}

func (weirdError) Error() string { return "weird" }

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		resp   Response
		err    error
		reason string
	}{
		{"deadline", Response{}, context.DeadlineExceeded, "Timeout"},
		{"net timeout", Response{}, timeoutError{}, "Timeout"},
		{"eof", Response{}, io.EOF, "Connection Error"},
		{"other", Response{}, weirdError{}, "Exception: issuer.weirdError"},
		{"server error", Response{Status: 500, Body: []byte(`{"code":200}`)}, nil, "Status 500"},
		{"not found", Response{Status: 404}, nil, "Status 404"},
		{"api failure", Response{Status: 200, Body: []byte(`{"code":5001,"message":"duplicate answer"}`)}, nil, "ApiResponse code 5001: duplicate answer"},
		{"api failure without message", Response{Status: 200, Body: []byte(`{"code":400}`)}, nil, "ApiResponse code 400: Unknown error"},
		{"api failure with null message", Response{Status: 200, Body: []byte(`{"code":400,"message":null}`)}, nil, "ApiResponse code 400: null"},
		{"api string code", Response{Status: 200, Body: []byte(`{"code":"200","message":"ok"}`)}, nil, "ApiResponse code 200: ok"},
		{"api success", Response{Status: 200, Body: []byte(`{"code":200,"message":"ok"}`)}, nil, ""},
		{"no body", Response{Status: 200}, nil, ""},
		{"plain text", Response{Status: 200, Body: []byte("OK")}, nil, ""},
		{"json array", Response{Status: 201, Body: []byte(`[1,2]`)}, nil, ""},
		{"object without code", Response{Status: 200, Body: []byte(`{"data":1}`)}, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Classify(tt.resp, tt.err, 200)
			if tt.reason == "" {
				assert.Nil(t, f)
				return
			}
			require.NotNil(t, f)
			assert.Equal(t, tt.reason, f.Error())
		})
	}
}

func TestParseResponseVariants(t *testing.T) {
	assert.Equal(t, RawHTTP{Status: 503}, parseResponse(Response{Status: 503}))
	assert.Equal(t, Unrecognized{}, parseResponse(Response{Status: 200, Body: []byte("{")}))
	assert.Equal(t, Recognized{Code: float64(200), Message: "ok"},
		parseResponse(Response{Status: 200, Body: []byte(`{"code":200,"message":"ok"}`)}))
}

func TestFailureUnwrap(t *testing.T) {
	f := Classify(Response{}, context.DeadlineExceeded, 200)
	assert.ErrorIs(t, f, context.DeadlineExceeded)
	assert.Equal(t, TransportTimeout, f.Kind)
}

// scriptedTransport answers from a per-call function and advances a fake
// clock by a fixed latency on every call.
type scriptedTransport struct {
	mu      sync.Mutex
	now     time.Time
	latency time.Duration
	calls   []Call
	reply   func(n int) (Response, error)
}

func (s *scriptedTransport) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *scriptedTransport) Do(_ context.Context, call Call) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	s.now = s.now.Add(s.latency)
	return s.reply(len(s.calls))
}

func TestSubmitTasksEndToEnd(t *testing.T) {
	tr := &scriptedTransport{
		now:     time.Unix(0, 0),
		latency: 100 * time.Millisecond,
		reply: func(n int) (Response, error) {
			if n == 5 {
				return Response{Status: 500, Body: []byte("boom")}, nil
			}
			return Response{Status: 200}, nil
		},
	}
	m := stats.NewMetrics()
	iss := New(Config{BaseURL: "http://svc", SubmitPath: "/submit", PlanID: 19, Answers: []string{"A"}},
		tr, m, logging.Discard(), WithClock(tr.clock))

	seq := sequencer.New(sequencer.Config{StudentCount: 50, QuestionOffset: 100, StudentOffset: 100})
	for i := 0; i < 10; i++ {
		iss.SubmitTask(context.Background(), seq.Take())
	}

	snap := m.Snapshot(stats.Submit)
	assert.Equal(t, uint64(9), snap.Success)
	assert.Equal(t, uint64(1), snap.Failure)
	assert.Len(t, snap.Latencies, 9)
	assert.Equal(t, map[string]uint64{"Status 500": 1}, snap.FailureReasons)
	assert.InDelta(t, 100.0, stats.Describe(snap.Latencies).Mean, 1e-9)
}

func TestSubmitTaskRunsEveryStep(t *testing.T) {
	tr := &scriptedTransport{
		now: time.Unix(0, 0),
		reply: func(n int) (Response, error) {
			if n == 1 {
				return Response{}, errors.New("first step broken")
			}
			return Response{Status: 200, Body: []byte(`{"code":200}`)}, nil
		},
	}
	m := stats.NewMetrics()
	iss := New(Config{BaseURL: "http://svc", SubmitPath: "/api/answer/submit-db", PlanID: 19,
		Answers: []string{"A", "B", "C", "C", "D"}}, tr, m, logging.Discard(), WithClock(tr.clock))

	out := iss.SubmitTask(context.Background(), sequencer.Target{QuestionID: 7, StudentID: 101})
	require.Len(t, out, 5)
	assert.False(t, out[0].Success)
	for _, o := range out[1:] {
		assert.True(t, o.Success)
	}

	require.Len(t, tr.calls, 5)
	assert.Equal(t, http.MethodPost, tr.calls[2].Method)
	assert.Equal(t, "http://svc/api/answer/submit-db", tr.calls[2].URL)
	assert.JSONEq(t, `{"questionId":7,"studentId":101,"answer":"C","planId":19}`, string(tr.calls[2].Body))
}

func TestStatPathTemplate(t *testing.T) {
	tr := &scriptedTransport{reply: func(int) (Response, error) { return Response{Status: 200}, nil }}
	m := stats.NewMetrics()
	iss := New(Config{BaseURL: "http://svc", StatPath: "/api/answer/statistic/db/{questionId}/{planId}", PlanID: 19},
		tr, m, logging.Discard(), WithClock(tr.clock))

	o := iss.StatOne(context.Background(), 125)
	assert.True(t, o.Success)
	require.Len(t, tr.calls, 1)
	assert.Equal(t, http.MethodGet, tr.calls[0].Method)
	assert.Equal(t, "http://svc/api/answer/statistic/db/125/19", tr.calls[0].URL)
	assert.Equal(t, uint64(1), m.Snapshot(stats.Stat).Success)
}

func TestHTTPTransportAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/slow":
			time.Sleep(300 * time.Millisecond)
		case "/busy":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"code":503,"message":"busy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := stats.NewMetrics()
	iss := New(Config{BaseURL: srv.URL, StatPath: "/ok"}, NewHTTPTransport(100*time.Millisecond, 4), m, logging.Discard())

	assert.True(t, iss.StatOne(context.Background(), 1).Success)

	iss.cfg.StatPath = "/slow"
	o := iss.StatOne(context.Background(), 1)
	assert.Equal(t, "Timeout", o.FailureReason)

	iss.cfg.StatPath = "/busy"
	o = iss.StatOne(context.Background(), 1)
	assert.Equal(t, "ApiResponse code 503: busy", o.FailureReason)
}

func TestHTTPTransportConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := stats.NewMetrics()
	iss := New(Config{BaseURL: url, StatPath: "/x"}, NewHTTPTransport(time.Second, 1), m, logging.Discard())
	o := iss.StatOne(context.Background(), 1)
	assert.Equal(t, "Connection Error", o.FailureReason)
	assert.Empty(t, m.Snapshot(stats.Stat).Latencies)
}
