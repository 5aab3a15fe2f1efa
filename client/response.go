package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/deepsight-client/internal/errors"
)

// ResultKind classifies every Response so callers can switch on it instead of
// inspecting status codes and bodies.
type ResultKind int

const (
	ResultOK              ResultKind = iota // 2xx from the server
	ResultHTTPError                         // any other server status except 401
	ResultAuthRequired                      // no usable access token, or a server 401
	ResultCSRFUnavailable                   // anti-forgery token could not be obtained
	ResultTransportError                    // the request never produced a response
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultHTTPError:
		return "http_error"
	case ResultAuthRequired:
		return "auth_required"
	case ResultCSRFUnavailable:
		return "csrf_unavailable"
	case ResultTransportError:
		return "transport_error"
	}
	return fmt.Sprintf("ResultKind(%d)", int(k))
}

// Response is the outcome of AuthenticatedRequest. Synthetic responses were
// produced locally without a server round trip (or after a failed one); they
// carry a status code mirroring the failure (401 or 500) and Err.
type Response struct {
	Kind       ResultKind
	StatusCode int
	Header     http.Header
	Body       []byte
	Synthetic  bool
	Err        error
}

// envelope mirrors the API's {"success", "message", "data"} body so that
// synthetic responses decode like real ones.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (r *Response) OK() bool {
	return r.Kind == ResultOK
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body (status %d)", r.StatusCode)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	return nil
}

// Error returns nil for successful responses and a descriptive error otherwise.
func (r *Response) Error() error {
	switch {
	case r.Kind == ResultOK:
		return nil
	case r.Err != nil:
		return r.Err
	case r.Kind == ResultAuthRequired:
		return fmt.Errorf("%w: server returned %d", errors.ErrAuthRequired, r.StatusCode)
	case r.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: server returned %d", errors.ErrNotFound, r.StatusCode)
	}
	return fmt.Errorf("unexpected status %d", r.StatusCode)
}

func newResponse(status int, header http.Header, body []byte) *Response {
	kind := ResultHTTPError
	switch {
	case status >= 200 && status <= 299:
		kind = ResultOK
	case status == http.StatusUnauthorized:
		kind = ResultAuthRequired
	}
	return &Response{Kind: kind, StatusCode: status, Header: header, Body: body}
}

func syntheticResponse(kind ResultKind, err error) *Response {
	status := http.StatusInternalServerError
	if kind == ResultAuthRequired {
		status = http.StatusUnauthorized
	}

	body, _ := json.Marshal(envelope{Success: false, Message: err.Error(), Data: json.RawMessage("{}")})
	return &Response{
		Kind:       kind,
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       body,
		Synthetic:  true,
		Err:        err,
	}
}
