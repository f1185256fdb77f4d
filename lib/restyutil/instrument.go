package restyutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

type InstrumentOutput interface {
	Write(id string, contents string)
}

type InstrumentOptions struct {
	// Source names the scraper, it becomes the span prefix and a span attribute.
	Source string
	// Tracer defaults to otel.Tracer("resty").
	Tracer trace.Tracer
	// Output receives one file per request/response pair, nil disables dumps.
	Output InstrumentOutput
	// Redact lists query parameters and headers masked in dumps, api keys and
	// Authorization are always masked.
	Redact []string
}

type instrumentCtx struct {
	source    string
	output    InstrumentOutput
	tracer    trace.Tracer
	redactor  redactor
	idcounter *uint64
}

// InstrumentClient records an otel span per request and, when opts.Output is set, dumps
// every request/response pair into it with credentials masked.
func InstrumentClient(client *resty.Client, opts InstrumentOptions) {
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("resty")
	}

	var idcounter uint64
	i := instrumentCtx{
		source:    opts.Source,
		output:    opts.Output,
		tracer:    opts.Tracer,
		redactor:  newRedactor(opts.Redact),
		idcounter: &idcounter,
	}
	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

type messageIdKeyType struct{}

var messageIdContextKey messageIdKeyType

func (i instrumentCtx) spanName(method string) string {
	if i.source == "" {
		return fmt.Sprintf("http %s", method)
	}
	return fmt.Sprintf("%s %s", i.source, method)
}

func (i instrumentCtx) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	ctx, span := i.tracer.Start(req.Context(), i.spanName(req.Method))
	if i.source != "" {
		span.SetAttributes(attribute.String("scraper.source", i.source))
	}

	if i.output != nil {
		messageId := fmt.Sprintf(
			"%04d_%s.txt",
			atomic.AddUint64(i.idcounter, 1),
			SafeFilename(req.Method, i.redactor.url(req.URL)),
		)
		ctx = context.WithValue(ctx, messageIdContextKey, messageId)
	}

	req.SetContext(ctx)
	return nil
}

func (i instrumentCtx) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	ctx := res.Request.Context()
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)
	// res.Request.RawRequest is nil in onBeforeRequest
	span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)
	if res.IsError() {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", res.StatusCode()))
	}

	if messageId, ok := ctx.Value(messageIdContextKey).(string); ok && i.output != nil {
		i.output.Write(messageId, formatHttpMessage(res, i.redactor))
	}
	return nil
}

func (i instrumentCtx) onError(req *resty.Request, err error) {
	span := trace.SpanFromContext(req.Context())
	defer span.End()

	span.RecordError(err)
	span.SetStatus(codes.Error, "request failed")
	if req.RawRequest != nil {
		span.SetAttributes(httpconv.ClientRequest(req.RawRequest)...)
	}

	if messageId, ok := req.Context().Value(messageIdContextKey).(string); ok && i.output != nil {
		i.output.Write(messageId, fmt.Sprintf(
			"---- REQUEST ----\n\n%s %s\n\n---- ERROR ----\n\n%s",
			req.Method, i.redactor.url(req.URL), err.Error(),
		))
	}
}
