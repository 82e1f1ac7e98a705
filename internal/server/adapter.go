package server

import (
	"fmt"
	"io"
	"net/http"
)

// BodyFunc produces response content for Adapt.
type BodyFunc func(c *Context) (any, error)

// Adapt turns a content generator into a terminal handler. The generator may
// return:
//   - *Response or Response: used as is
//   - string: 200 text/plain
//   - []byte: 200 with a sniffed content type
//   - io.Reader: read fully, then treated like []byte; closed if it is an io.Closer
//   - nil: 200 with an empty body
func Adapt(fn BodyFunc) HandlerFunc {
	return func(c *Context) (*Response, error) {
		content, err := fn(c)
		if err != nil {
			return nil, err
		}
		return toResponse(content)
	}
}

func toResponse(content any) (*Response, error) {
	switch v := content.(type) {
	case nil:
		return NewResponse(http.StatusOK, nil), nil
	case *Response:
		if v == nil {
			return NewResponse(http.StatusOK, nil), nil
		}
		return v, nil
	case Response:
		if v.Header == nil {
			v.Header = make(http.Header)
		}
		return &v, nil
	case string:
		return Text(http.StatusOK, v), nil
	case []byte:
		return sniffed(v), nil
	case io.Reader:
		if rc, ok := v.(io.Closer); ok {
			defer rc.Close()
		}
		body, err := io.ReadAll(v)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		return sniffed(body), nil
	default:
		return nil, fmt.Errorf("unsupported response content %T", content)
	}
}

func sniffed(body []byte) *Response {
	r := NewResponse(http.StatusOK, body)
	if len(body) > 0 {
		r.Header.Set("Content-Type", http.DetectContentType(body))
	}
	return r
}
