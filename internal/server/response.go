package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Response is the result of a dispatch.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponse creates a response with an empty header set.
func NewResponse(status int, body []byte) *Response {
	return &Response{Status: status, Header: make(http.Header), Body: body}
}

// Text creates a text/plain response.
func Text(status int, body string) *Response {
	r := NewResponse(status, []byte(body))
	r.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return r
}

// HTML creates a text/html response.
func HTML(status int, body string) *Response {
	r := NewResponse(status, []byte(body))
	r.Header.Set("Content-Type", "text/html; charset=utf-8")
	return r
}

// JSON creates an application/json response. If v cannot be encoded the
// result is a 500 response.
func JSON(status int, v any) *Response {
	body, err := json.Marshal(v)
	if err != nil {
		return Text(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
	r := NewResponse(status, body)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// NoContent creates a 204 response.
func NoContent() *Response {
	return NewResponse(http.StatusNoContent, nil)
}

// Redirect creates a redirect response to location.
func Redirect(status int, location string) *Response {
	r := NewResponse(status, nil)
	r.Header.Set("Location", location)
	return r
}

// SetHeader sets a header, creating the header map if needed.
func (r *Response) SetHeader(key, value string) {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
}

// Send writes the response to w.
func (r *Response) Send(w http.ResponseWriter) error {
	h := w.Header()
	for k, vs := range r.Header {
		h[k] = append([]string(nil), vs...)
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	if len(r.Body) > 0 && h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}
	w.WriteHeader(status)
	if len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}

// HTTPError is an error that carries the status code it should be answered with.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

// NewHTTPError creates an HTTPError. An empty message uses the status text.
func NewHTTPError(status int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &HTTPError{Status: status, Message: message}
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// Wrap sets the underlying cause.
func (e *HTTPError) Wrap(err error) *HTTPError {
	e.Err = err
	return e
}

// StatusOf returns the status code err should be answered with. Errors that
// are not HTTPErrors map to 500.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) && he.Status != 0 {
		return he.Status
	}
	return http.StatusInternalServerError
}

// ErrorResponse renders err as a JSON error body. Messages of 5xx errors that
// are not HTTPErrors are replaced by the status text.
func ErrorResponse(err error) *Response {
	status := StatusOf(err)
	message := http.StatusText(status)
	var he *HTTPError
	if errors.As(err, &he) && he.Message != "" {
		message = he.Message
	}
	return JSON(status, map[string]any{
		"error": map[string]any{
			"status":  status,
			"message": message,
		},
	})
}
