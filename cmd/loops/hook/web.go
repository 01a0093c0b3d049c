package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	cfg_hook "github.com/opst/prodplan/pkg/configs/hook"
)

// Web is a webhook. The value is POSTed as JSON to each URL in order.
//
// The hook succeeds if and only if all URLs respond with 2xx status.
// URLs after the first failure are not called.
type Web[T any] struct {
	BeforeURL []*url.URL
	AfterURL  []*url.URL

	// If nil, http.DefaultClient is used.
	Client *http.Client
}

// Build a webhook from its configuration.
func Build[T any](cfg cfg_hook.WebHook) Web[T] {
	return Web[T]{BeforeURL: cfg.Before, AfterURL: cfg.After}
}

func (w Web[T]) Before(ctx context.Context, value T) error {
	return w.hook(ctx, value, w.BeforeURL)
}

func (w Web[T]) After(ctx context.Context, value T) error {
	return w.hook(ctx, value, w.AfterURL)
}

func (w Web[T]) hook(ctx context.Context, value T, urls []*url.URL) error {
	if len(urls) == 0 {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	for _, u := range urls {
		if err := w.send(ctx, u.String(), payload); err != nil {
			return err
		}
	}
	return nil
}

func (w Web[T]) send(ctx context.Context, url string, payload []byte) error {
	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHookFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHookFailed, err)
	}
	defer resp.Body.Close()

	if 200 <= resp.StatusCode && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	ctype := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ctype, "text/") && !strings.Contains(ctype, "json") {
		return fmt.Errorf("%w (%s %d, Content-Type: %s)", ErrHookFailed, url, resp.StatusCode, ctype)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf(
		"%w (%s %d, Content-Type: %s): %s",
		ErrHookFailed, url, resp.StatusCode, ctype, string(body),
	)
}
