package issuer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"syscall"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FailureKind is the taxonomy of per-call failures.
type FailureKind int

const (
	TransportTimeout FailureKind = iota + 1
	TransportConnectionFailure
	TransportOtherException
	HTTPStatusError
	ApplicationStatusError
)

// Failure describes why a call did not succeed. Its Error text is the
// reason string used as histogram key.
type Failure struct {
	Kind    FailureKind
	Status  int
	Code    string
	Message string
	Err     error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case TransportTimeout:
		return "Timeout"
	case TransportConnectionFailure:
		return "Connection Error"
	case TransportOtherException:
		return "Exception: " + errorKind(f.Err)
	case HTTPStatusError:
		return fmt.Sprintf("Status %d", f.Status)
	case ApplicationStatusError:
		return fmt.Sprintf("ApiResponse code %s: %s", f.Code, f.Message)
	default:
		return "Unknown"
	}
}

func (f *Failure) Unwrap() error { return f.Err }

// parsedResponse is the decoded shape of a reply.
type parsedResponse interface {
	isParsed()
}

// Recognized is a 2xx reply whose body carries an application status code.
type Recognized struct {
	Code    any
	Message string
}

// Unrecognized is a 2xx reply without a usable structured body.
type Unrecognized struct{}

// RawHTTP is a non-2xx reply, judged on its status alone.
type RawHTTP struct {
	Status int
}

func (Recognized) isParsed()   {}
func (Unrecognized) isParsed() {}
func (RawHTTP) isParsed()      {}

func parseResponse(resp Response) parsedResponse {
	if resp.Status < 200 || resp.Status >= 300 {
		return RawHTTP{Status: resp.Status}
	}
	if len(resp.Body) == 0 {
		return Unrecognized{}
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body, &body); err != nil || body == nil {
		return Unrecognized{}
	}
	code, ok := body["code"]
	if !ok {
		return Unrecognized{}
	}

	msg := "Unknown error"
	raw, present := body["message"]
	switch m := raw.(type) {
	case nil:
		if present {
			msg = "null"
		}
	case string:
		msg = m
	default:
		msg = fmt.Sprint(m)
	}
	return Recognized{Code: code, Message: msg}
}

// Classify judges a call. A nil result means success.
func Classify(resp Response, err error, successCode int) *Failure {
	if err != nil {
		return transportFailure(err)
	}

	switch p := parseResponse(resp).(type) {
	case RawHTTP:
		return &Failure{Kind: HTTPStatusError, Status: p.Status}
	case Recognized:
		if isSuccessCode(p.Code, successCode) {
			return nil
		}
		return &Failure{
			Kind:    ApplicationStatusError,
			Status:  resp.Status,
			Code:    formatCode(p.Code),
			Message: p.Message,
		}
	default:
		return nil
	}
}

func transportFailure(err error) *Failure {
	switch {
	case isTimeout(err):
		return &Failure{Kind: TransportTimeout, Err: err}
	case isConnectionError(err):
		return &Failure{Kind: TransportConnectionFailure, Err: err}
	default:
		return &Failure{Kind: TransportOtherException, Err: err}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnectionError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// errorKind names the innermost error type, without the url.Error wrapper
// net/http adds to every client error.
func errorKind(err error) string {
	if err == nil {
		return "nil"
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		err = ue.Err
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

func isSuccessCode(code any, successCode int) bool {
	switch c := code.(type) {
	case float64:
		return c == float64(successCode)
	case int:
		return c == successCode
	default:
		return false
	}
}

func formatCode(code any) string {
	switch c := code.(type) {
	case nil:
		return "null"
	case float64:
		if c == float64(int64(c)) {
			return strconv.FormatInt(int64(c), 10)
		}
		return strconv.FormatFloat(c, 'f', -1, 64)
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}
