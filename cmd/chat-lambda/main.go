package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/wolfman30/webchat-support-agent/cmd/mainconfig"
	"github.com/wolfman30/webchat-support-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/webchat-support-agent/internal/config"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

// The Lambda runtime serves the same router as cmd/api behind API Gateway.
// Sessions must use a shared backend (redis or dynamodb) since invocations do
// not share memory.
func main() {
	cfg := appconfig.Load()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	logger := logging.New(cfg.LogLevel)
	if cfg.SessionBackend == appconfig.SessionBackendMemory {
		logger.Warn("memory session backend does not survive Lambda cold starts")
	}

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		panic(err)
	}
	app, err := bootstrap.BuildApp(ctx, cfg, awsCfg, logger)
	if err != nil {
		panic(err)
	}
	defer app.Close()

	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return handle(ctx, app.Handler, evt)
	})
}

func handle(ctx context.Context, handler http.Handler, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}
	if path == "" {
		path = "/"
	}

	if path == "/_health" {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK, Body: "ok"}, nil
	}
	if path == "/chat/ws" {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNotImplemented, Body: "websocket transport is not available on this deployment"}, nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid body"}, nil
	}

	target := path
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		target += "?" + qs
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid request"}, nil
	}
	for k, v := range evt.Headers {
		req.Header.Set(k, v)
	}
	for _, c := range evt.Cookies {
		req.Header.Add("Cookie", c)
	}
	if ip := strings.TrimSpace(evt.RequestContext.HTTP.SourceIP); ip != "" {
		if headerValue(evt.Headers, "x-real-ip") == "" {
			req.Header.Set("X-Real-IP", ip)
		}
		req.RemoteAddr = ip + ":0"
	}
	if host := strings.TrimSpace(evt.RequestContext.DomainName); host != "" {
		req.Host = host
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	out := events.APIGatewayV2HTTPResponse{
		StatusCode: rec.Code,
		Headers:    map[string]string{},
	}
	for k, values := range rec.Header() {
		if len(values) == 0 {
			continue
		}
		if strings.EqualFold(k, "Set-Cookie") {
			out.Cookies = append(out.Cookies, values...)
			continue
		}
		out.Headers[strings.ToLower(k)] = strings.Join(values, ",")
	}
	if isBinary(out.Headers) {
		out.Body = base64.StdEncoding.EncodeToString(rec.Body.Bytes())
		out.IsBase64Encoded = true
	} else {
		out.Body = rec.Body.String()
	}
	return out, nil
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(evt.Body)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// isBinary reports whether the response was compressed by the router's
// Compress middleware and must be base64 encoded for API Gateway.
func isBinary(headers map[string]string) bool {
	return headers["content-encoding"] != ""
}
