package middleware

import (
	"encoding/json"
	"fmt"

	"github.com/tjfontaine/stepwise/internal/pipeline"
	"github.com/tjfontaine/stepwise/internal/server"
)

// StatusStopPolling tells htmx to stop polling the element that made the request.
const StatusStopPolling = 286

// Swap is a value of the HX-Reswap response header.
type Swap string

const (
	SwapInnerHTML   Swap = "innerHTML"
	SwapOuterHTML   Swap = "outerHTML"
	SwapTextContent Swap = "textContent"
	SwapBeforeBegin Swap = "beforebegin"
	SwapAfterBegin  Swap = "afterbegin"
	SwapBeforeEnd   Swap = "beforeend"
	SwapAfterEnd    Swap = "afterend"
	SwapDelete      Swap = "delete"
	SwapNone        Swap = "none"
)

// HTMX describes the htmx request headers and sets htmx response headers.
type HTMX struct {
	// Boosted is set for requests from an hx-boost element.
	Boosted               bool
	CurrentURL            string
	HistoryRestoreRequest bool
	// Prompt is the user's answer to hx-prompt.
	Prompt string
	// Request is set for every request htmx makes.
	Request     bool
	Target      string
	TriggerName string
	TriggerID   string
}

// HTMXField holds the parsed htmx headers.
var HTMXField = pipeline.NewField[*HTMX]("htmx")

// HTMXRequest parses the HX-* request headers into the htmx field. The field
// is always present.
func HTMXRequest() server.Decorator {
	return pipeline.Provide(HTMXField, func(c *server.Context) (*HTMX, bool, error) {
		h := c.Request.Header
		return &HTMX{
			Boosted:               h.Get("HX-Boosted") == "true",
			CurrentURL:            h.Get("HX-Current-URL"),
			HistoryRestoreRequest: h.Get("HX-History-Restore-Request") == "true",
			Prompt:                h.Get("HX-Prompt"),
			Request:               h.Get("HX-Request") == "true",
			Target:                h.Get("HX-Target"),
			TriggerName:           h.Get("HX-Trigger-Name"),
			TriggerID:             h.Get("HX-Trigger"),
		}, true, nil
	})
}

// GetHTMX returns the htmx field, or a zero HTMX when HTMXRequest is not in the chain.
func GetHTMX(c *server.Context) *HTMX {
	if h, ok := pipeline.Get(c, HTMXField); ok {
		return h
	}
	return &HTMX{}
}

// IsHTMX reports whether the request came from htmx, boosted or not.
func (h *HTMX) IsHTMX() bool {
	return h.Request || h.Boosted
}

// SetLocation sets HX-Location so the client navigates without a full reload.
func (h *HTMX) SetLocation(res *server.Response, location string) {
	res.SetHeader("HX-Location", location)
}

// PushURL sets HX-Push-Url to push url onto the browser history.
func (h *HTMX) PushURL(res *server.Response, url string) {
	res.SetHeader("HX-Push-Url", url)
}

// Redirect sets HX-Redirect for a full client-side redirect to url.
func (h *HTMX) Redirect(res *server.Response, url string) {
	res.SetHeader("HX-Redirect", url)
}

// Refresh sets HX-Refresh so the client reloads the whole page.
func (h *HTMX) Refresh(res *server.Response) {
	res.SetHeader("HX-Refresh", "true")
}

// ReplaceURL sets HX-Replace-Url to replace the current history entry.
func (h *HTMX) ReplaceURL(res *server.Response, url string) {
	res.SetHeader("HX-Replace-Url", url)
}

// Reswap sets HX-Reswap to override the swap strategy of the request.
func (h *HTMX) Reswap(res *server.Response, swap Swap) {
	res.SetHeader("HX-Reswap", string(swap))
}

// Retarget sets HX-Retarget to swap the response into selector instead.
func (h *HTMX) Retarget(res *server.Response, selector string) {
	res.SetHeader("HX-Retarget", selector)
}

// Reselect sets HX-Reselect to choose which part of the response is swapped.
func (h *HTMX) Reselect(res *server.Response, selector string) {
	res.SetHeader("HX-Reselect", selector)
}

// Trigger sets HX-Trigger. A string is an event name; anything else is
// encoded as a JSON object of events and their details.
func (h *HTMX) Trigger(res *server.Response, events any) error {
	return triggerHeader(res, "HX-Trigger", events)
}

// TriggerAfterSettle sets HX-Trigger-After-Settle like Trigger.
func (h *HTMX) TriggerAfterSettle(res *server.Response, events any) error {
	return triggerHeader(res, "HX-Trigger-After-Settle", events)
}

// TriggerAfterSwap sets HX-Trigger-After-Swap like Trigger.
func (h *HTMX) TriggerAfterSwap(res *server.Response, events any) error {
	return triggerHeader(res, "HX-Trigger-After-Swap", events)
}

// StopPolling returns a copy of res with status 286.
func (h *HTMX) StopPolling(res *server.Response) *server.Response {
	out := &server.Response{Status: StatusStopPolling, Body: res.Body}
	if res.Header != nil {
		out.Header = res.Header.Clone()
	}
	return out
}

func triggerHeader(res *server.Response, header string, events any) error {
	if name, ok := events.(string); ok {
		res.SetHeader(header, name)
		return nil
	}
	b, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode %s: %w", header, err)
	}
	res.SetHeader(header, string(b))
	return nil
}
