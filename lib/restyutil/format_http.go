package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

const redacted = "REDACTED"

// redactor masks credentials in dumped urls and headers, keys are compared case
// insensitively.
type redactor struct {
	keys map[string]bool
}

func newRedactor(extra []string) redactor {
	r := redactor{keys: map[string]bool{
		"api_key":       true,
		"key":           true,
		"authorization": true,
		"cookie":        true,
		"set-cookie":    true,
	}}
	for _, k := range extra {
		r.keys[strings.ToLower(k)] = true
	}
	return r
}

func (r redactor) masks(key string) bool {
	return r.keys[strings.ToLower(key)]
}

func (r redactor) url(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	query := u.Query()
	for k := range query {
		if r.masks(k) {
			query.Set(k, redacted)
		}
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func (r redactor) headers(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out strings.Builder
	for _, k := range keys {
		for _, v := range headers[k] {
			if r.masks(k) {
				v = redacted
			}
			out.WriteString(fmt.Sprintf("%s: %s\n", k, v))
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func formatRequestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return "<NO BODY AVAILABLE>"
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	readBody, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(readBody)
}

// 1: request method
// 2: request url
// 3: request headers in ("Key: Value" format)
// 4: request body
// 5: response status
// 6: response url
// 7: response headers in ("Key: Value" format)
// 8: response body
const messageInfoTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%s %s

%s

%s`

func formatHttpMessage(res *resty.Response, r redactor) string {
	var requestHeaders string
	if res.Request.RawRequest != nil {
		requestHeaders = r.headers(res.Request.RawRequest.Header)
	}

	responseUrl := res.Request.URL
	if res.RawResponse != nil {
		redirected, err := res.RawResponse.Location()
		if err == nil {
			responseUrl = redirected.String()
		}
	}

	return fmt.Sprintf(
		messageInfoTemplate,

		res.Request.Method, r.url(res.Request.URL),
		requestHeaders,
		formatRequestBody(res.Request.RawRequest),

		strconv.Itoa(res.StatusCode()), r.url(responseUrl),
		r.headers(res.Header()),
		res.String(),
	)
}
