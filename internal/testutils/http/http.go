package http

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"
)

type request struct {
	req    *http.Request
	names  []string
	values []string
}

type Option func(*request)

func Header(key string, values ...string) Option {
	return func(r *request) {
		for _, v := range values {
			r.req.Header.Add(key, v)
		}
	}
}

// Param sets a path parameter which the router would have extracted.
func Param(name string, value string) Option {
	return func(r *request) {
		r.names = append(r.names, name)
		r.values = append(r.values, value)
	}
}

// Request builds an echo.Context for calling handlers directly, without routing.
func Request(e *echo.Echo, method string, target string, body string, opts ...Option) (echo.Context, *httptest.ResponseRecorder) {
	r := &request{req: httptest.NewRequest(method, target, strings.NewReader(body))}
	for _, o := range opts {
		o(r)
	}
	resp := httptest.NewRecorder()
	c := e.NewContext(r.req, resp)
	if 0 < len(r.names) {
		c.SetParamNames(r.names...)
		c.SetParamValues(r.values...)
	}
	return c, resp
}

func Get(e *echo.Echo, target string, opts ...Option) (echo.Context, *httptest.ResponseRecorder) {
	return Request(e, http.MethodGet, target, "", opts...)
}

// PostJSON posts body as "application/json".
func PostJSON(e *echo.Echo, target string, body string, opts ...Option) (echo.Context, *httptest.ResponseRecorder) {
	opts = append([]Option{Header(echo.HeaderContentType, echo.MIMEApplicationJSON)}, opts...)
	return Request(e, http.MethodPost, target, body, opts...)
}
