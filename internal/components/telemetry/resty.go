package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	report_http_request    = "http.request"
	report_http_response   = "http.response"
	report_http_throttled  = "http.throttled"
	report_http_round_trip = "http.round-trip"
)

// statuses sites answer with once they start blocking a scraper
var throttleStatuses = map[int]bool{
	http.StatusForbidden:          true,
	http.StatusTooManyRequests:    true,
	http.StatusServiceUnavailable: true,
}

type restyHooks struct {
	tel API
	seq atomic.Uint64

	mutex sync.Mutex
	// host -> consecutive throttle answers
	throttled map[string]int
}

// InstrumentResty reports the traffic of a resty client: requests and responses as debug
// messages, failed round trips as broken and throttle answers (403, 429, 503) as warnings
// carrying the host, the status, the Retry-After header and how many throttle answers in a
// row the host gave.
func InstrumentResty(client *resty.Client, tel API) {
	h := &restyHooks{tel: tel, throttled: map[string]int{}}
	client.OnBeforeRequest(h.onBeforeRequest)
	client.OnAfterResponse(h.onAfterResponse)
	client.OnError(h.onError)
}

type reqCtxKeyType int

var reqCtxKey reqCtxKeyType

type reqCtx struct {
	seq   uint64
	start time.Time
}

func requestHost(req *resty.Request) string {
	if req.RawRequest != nil && req.RawRequest.URL != nil {
		return req.RawRequest.URL.Host
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return req.URL
	}
	return u.Host
}

func (h *restyHooks) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	rc := reqCtx{seq: h.seq.Add(1), start: time.Now()}
	req.SetContext(context.WithValue(req.Context(), reqCtxKey, rc))
	h.tel.ReportDebug(
		report_http_request,
		slog.Uint64("req", rc.seq),
		slog.String("method", req.Method),
		slog.String("url", req.URL),
	)
	return nil
}

// throttle counts a throttle answer from host, any other answer resets the count.
func (h *restyHooks) throttle(host string, throttled bool) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !throttled {
		delete(h.throttled, host)
		return 0
	}
	h.throttled[host]++
	return h.throttled[host]
}

func (h *restyHooks) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	rc, ok := res.Request.Context().Value(reqCtxKey).(reqCtx)
	if !ok {
		return nil
	}

	host := requestHost(res.Request)
	status := res.StatusCode()
	if streak := h.throttle(host, throttleStatuses[status]); streak > 0 {
		h.tel.ReportWarning(
			report_http_throttled,
			slog.String("host", host),
			slog.Int("status", status),
			slog.String("retry_after", res.Header().Get("Retry-After")),
			slog.Int("streak", streak),
		)
	}
	h.tel.ReportDebug(
		report_http_response,
		slog.Uint64("req", rc.seq),
		slog.String("status", res.Status()),
		slog.Duration("took", time.Since(rc.start)),
	)
	return nil
}

func (h *restyHooks) onError(req *resty.Request, err error) {
	var took time.Duration
	if rc, ok := req.Context().Value(reqCtxKey).(reqCtx); ok {
		took = time.Since(rc.start)
	}
	h.tel.ReportBroken(
		report_http_round_trip,
		err,
		slog.String("method", req.Method),
		slog.String("url", req.URL),
		slog.Duration("took", took),
	)
}
