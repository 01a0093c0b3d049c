package hook_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/opst/prodplan/cmd/loops/hook"
	cfg_hook "github.com/opst/prodplan/pkg/configs/hook"
	"github.com/opst/prodplan/pkg/utils/try"
)

type Value struct {
	Content string `json:"content"`
}

func TestWeb(t *testing.T) {
	type When struct {
		status1 int
		status2 int
	}
	type Then struct {
		invoked1 bool
		invoked2 bool
		err      error
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			server := func(name string, status int, invoked *bool) *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					*invoked = true
					if r.Method != http.MethodPost {
						t.Errorf("%s: unexpected method: %s", name, r.Method)
					}
					if ct := r.Header.Get("Content-Type"); ct != "application/json" {
						t.Errorf("%s: unexpected content type: %s", name, ct)
					}
					var got Value
					if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
						t.Errorf("%s: unexpected error: %v", name, err)
					}
					if got.Content != "hello" {
						t.Errorf("%s: unexpected payload: %+v", name, got)
					}
					w.Header().Set("Content-Type", "text/plain")
					w.WriteHeader(status)
					w.Write([]byte("response from " + name))
				}))
			}

			for _, after := range []bool{false, true} {
				invoked1, invoked2 := false, false
				server1 := server("server1", when.status1, &invoked1)
				defer server1.Close()
				server2 := server("server2", when.status2, &invoked2)
				defer server2.Close()

				urls := []*url.URL{
					try.To(url.Parse(server1.URL)).OrFatal(t),
					try.To(url.Parse(server2.URL)).OrFatal(t),
				}

				var err error
				if after {
					err = hook.Web[Value]{AfterURL: urls}.After(context.Background(), Value{Content: "hello"})
				} else {
					err = hook.Web[Value]{BeforeURL: urls}.Before(context.Background(), Value{Content: "hello"})
				}

				if !errors.Is(err, then.err) {
					t.Errorf("(after = %v) error: want %v, got %v", after, then.err, err)
				}
				if invoked1 != then.invoked1 || invoked2 != then.invoked2 {
					t.Errorf(
						"(after = %v) invoked: want (%v, %v), got (%v, %v)",
						after, then.invoked1, then.invoked2, invoked1, invoked2,
					)
				}
			}
		}
	}

	t.Run("all URLs succeed", theory(
		When{status1: http.StatusOK, status2: http.StatusNoContent},
		Then{invoked1: true, invoked2: true, err: nil},
	))
	t.Run("first URL fails", theory(
		When{status1: http.StatusNotFound, status2: http.StatusOK},
		Then{invoked1: true, invoked2: false, err: hook.ErrHookFailed},
	))
	t.Run("second URL fails", theory(
		When{status1: http.StatusOK, status2: http.StatusInternalServerError},
		Then{invoked1: true, invoked2: true, err: hook.ErrHookFailed},
	))
}

func TestWeb_NoURLs(t *testing.T) {
	testee := hook.Build[Value](cfg_hook.WebHook{})
	if err := testee.Before(context.Background(), Value{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testee.After(context.Background(), Value{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWeb_Unreachable(t *testing.T) {
	testee := hook.Web[Value]{
		BeforeURL: []*url.URL{try.To(url.Parse("http://somewhere.invalid")).OrFatal(t)},
	}
	if err := testee.Before(context.Background(), Value{}); !errors.Is(err, hook.ErrHookFailed) {
		t.Errorf("expected ErrHookFailed, but %v", err)
	}
}

func TestFunc(t *testing.T) {
	fakeErr := errors.New("fake error")
	testee := hook.Func[Value]{
		AfterFn: func(context.Context, Value) error { return fakeErr },
	}

	if err := testee.Before(context.Background(), Value{}); err != nil {
		t.Errorf("nil BeforeFn should succeed: %v", err)
	}
	err := testee.After(context.Background(), Value{})
	if !errors.Is(err, fakeErr) || !errors.Is(err, hook.ErrHookFailed) {
		t.Errorf("unexpected error: %v", err)
	}
}
