package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

// statusOf tells the http status of an error returned from handlers. 0 means no error.
func statusOf(err error) int {
	if err == nil {
		return 0
	}
	var herr *echo.HTTPError
	if errors.As(err, &herr) {
		return herr.Code
	}
	return -1
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(resp.Body.Bytes(), &v); err != nil {
		t.Fatalf("response is not json: %s\n%s", err, resp.Body.String())
	}
	return v
}
