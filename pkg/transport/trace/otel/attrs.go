package otel

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/keboola/go-httpchain/pkg/request"
)

const (
	maskedAttrValue = "****"
)

type attributes struct {
	config config
	// definition attributes for span and metrics
	definition []attribute.KeyValue
	// definitionExtra attributes for span only
	definitionExtra []attribute.KeyValue
	// httpRequest attributes for span and metrics
	httpRequest []attribute.KeyValue
	// httpRequestExtra attributes for span only
	httpRequestExtra []attribute.KeyValue
	// httpResponse attributes for span and metrics
	httpResponse []attribute.KeyValue
	// httpResponseExtra attributes for span only
	httpResponseExtra []attribute.KeyValue
	// httpResponseError attributes for metrics
	httpResponseError []attribute.KeyValue
}

func newAttributes(cfg config, reqCfg request.Config) *attributes {
	out := &attributes{config: cfg}

	responseType := reqCfg.ResponseType
	if responseType == "" {
		responseType = request.ResponseTypeJSON
	}

	// Definition base
	reqURL, _ := url.Parse(reqCfg.FullURL())
	if reqURL == nil {
		reqURL = &url.URL{}
	}
	out.definition = []attribute.KeyValue{
		attribute.String("definition.method", reqCfg.MethodOrDefault()),
		attribute.String("definition.response_type", responseType),
		attribute.String("definition.url.full", mustURLPathUnescape(cfg.redactURL(reqURL))),
		attribute.String("definition.url.path", mustURLPathUnescape(reqURL.Path)),
		attribute.String("definition.url.host.full", reqURL.Host),
	}
	if dotPos := strings.IndexByte(reqURL.Host, '.'); dotPos > 0 {
		out.definition = append(out.definition,
			// Host prefix, e.g. "api", "auth" ...
			attribute.String("definition.url.host.prefix", reqURL.Host[:dotPos]),
			// Host suffix, e.g. "example.com"
			attribute.String("definition.url.host.suffix", strings.TrimLeft(reqURL.Host[dotPos:], ".")),
		)
	}

	// Definition extra
	if reqCfg.Timeout > 0 {
		out.definitionExtra = append(out.definitionExtra, attribute.String("definition.timeout", reqCfg.Timeout.String()))
	}
	out.definitionExtra = append(out.definitionExtra, cfg.headerAttrs("definition.header.", request.FlattenHeaders(reqCfg.Headers, reqCfg.MethodOrDefault()))...)
	out.definitionExtra = append(out.definitionExtra, cfg.queryAttrs("definition.params.", reqURL.Query())...)
	var extAttrs []attribute.KeyValue
	for k, v := range reqCfg.Extensions {
		extAttrs = append(extAttrs, attribute.String("definition.extension."+k, cast.ToString(v)))
	}
	sortAttrs(extAttrs)
	out.definitionExtra = append(out.definitionExtra, extAttrs...)

	return out
}

func (v *attributes) SetFromRequest(req *http.Request) {
	if req == nil {
		v.httpRequest = nil
		v.httpRequestExtra = nil
		return
	}

	// Base
	v.httpRequest = []attribute.KeyValue{
		semconv.HTTPMethodKey.String(req.Method),
		semconv.HTTPURLKey.String(v.config.redactURL(req.URL)),
		semconv.NetPeerNameKey.String(req.URL.Hostname()),
	}
	if ua := req.UserAgent(); ua != "" {
		v.httpRequest = append(v.httpRequest, semconv.HTTPUserAgentKey.String(ua))
	}

	// Extra, user agent is already present
	header := req.Header.Clone()
	header.Del("User-Agent")
	v.httpRequestExtra = v.config.headerAttrs("http.header.", header)
}

func (v *attributes) SetFromResponse(res *http.Response, err error) {
	if res == nil {
		v.httpResponse = nil
		v.httpResponseExtra = nil
	} else {
		v.httpResponse = []attribute.KeyValue{semconv.HTTPStatusCodeKey.Int(res.StatusCode)}
		v.httpResponseExtra = v.config.headerAttrs("http.response.header.", res.Header)
	}

	// Error
	var netErr net.Error
	errors.As(err, &netErr)
	v.httpResponseError = []attribute.KeyValue{
		attribute.Bool("http.response.is_success", isSuccess(res, err)),
		attribute.Bool("http.response.is_redirection", isRedirection(res)),
		attribute.Bool("http.response.error.has", err != nil),
		attribute.Bool("http.response.error.net", netErr != nil),
		attribute.Bool("http.response.error.timeout", netErr != nil && netErr.Timeout()),
		attribute.Bool("http.response.error.cancelled", errors.Is(err, context.Canceled)),
		attribute.Bool("http.response.error.deadline_exceeded", errors.Is(err, context.DeadlineExceeded)),
	}
}

func (c config) headerAttrs(prefix string, header http.Header) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for key, values := range header {
		value := strings.Join(values, ";")
		if c.isRedactedHeader(key) {
			value = maskedAttrValue
		}
		attrs = append(attrs, attribute.String(prefix+strings.ToLower(key), value))
	}
	sortAttrs(attrs)
	return attrs
}

func (c config) queryAttrs(prefix string, query url.Values) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for key, values := range query {
		value := strings.Join(values, ";")
		if c.isRedactedQueryParam(key) {
			value = maskedAttrValue
		}
		attrs = append(attrs, attribute.String(prefix+key, value))
	}
	sortAttrs(attrs)
	return attrs
}

// redactURL masks values of the redacted query parameters and the user password.
func (c config) redactURL(in *url.URL) string {
	if in == nil {
		return ""
	}
	out := *in
	if out.User != nil {
		out.User = url.User(out.User.Username())
	}
	if len(c.redactedQueryParams) > 0 && out.RawQuery != "" {
		// The order of the parameters is kept
		pairs := strings.Split(out.RawQuery, "&")
		for i, pair := range pairs {
			key, _, _ := strings.Cut(pair, "=")
			if unescaped, err := url.QueryUnescape(key); err == nil && c.isRedactedQueryParam(unescaped) {
				pairs[i] = key + "=" + maskedAttrValue
			}
		}
		out.RawQuery = strings.Join(pairs, "&")
	}
	return out.String()
}

func sortAttrs(attrs []attribute.KeyValue) {
	sort.SliceStable(attrs, func(i, j int) bool {
		return attrs[i].Key < attrs[j].Key
	})
}

func mustURLPathUnescape(in string) string {
	out, err := url.PathUnescape(in)
	if err != nil {
		return in
	}
	return out
}
