package content

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"
)

const defaultMaxSize = 10 << 20

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

var defaultClient = &http.Client{Timeout: 30 * time.Second}

// WithHTTPClient sets the client LoadURL fetches with.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

// WithMaxSize limits the response body LoadURL accepts. The default is 10MiB.
func WithMaxSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

// LoadURL fetches JSON or YAML from an http or https URL into target. A
// single object loaded into a collection becomes its only element. The
// body is parsed as YAML when the response's content type or the URL path
// says so, and as JSON otherwise.
func LoadURL(ctx context.Context, rawURL string, target any, opts ...Option) error {
	o := newOptions(opts)
	out, err := targetValue(target)
	if err != nil {
		return err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("content: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("content: only http/https URLs are allowed, got %s://", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("content: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9")
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("content: GET %s: %s", rawURL, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, o.maxSize+1))
	if err != nil {
		return fmt.Errorf("content: GET %s: %w", rawURL, err)
	}
	if int64(len(body)) > o.maxSize {
		return fmt.Errorf("content: GET %s: response exceeds %d bytes", rawURL, o.maxSize)
	}

	var parser Parser = JSONParser{}
	if isYAML(resp.Header.Get("Content-Type"), u.Path) {
		parser = YAMLParser{}
	}
	data, err := parser.Parse(body)
	if err != nil {
		return fmt.Errorf("content: GET %s: %w", rawURL, err)
	}
	if o.afterParse != nil {
		if data, err = o.afterParse(rawURL, data); err != nil {
			return fmt.Errorf("content: %s: %w", rawURL, err)
		}
	}

	switch d := data.(type) {
	case []any, map[string]any:
	default:
		return fmt.Errorf("content: GET %s: expected an array or object, got %T", rawURL, d)
	}

	if out.Kind() == reflect.Slice {
		items, ok := data.([]any)
		if !ok {
			items = []any{data}
		}
		return o.convertList(items, out)
	}
	if err := convert(o.converters, data, out); err != nil {
		return fmt.Errorf("content: %s: %w", rawURL, err)
	}
	return nil
}

func isYAML(contentType, path string) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.Contains(mt, "yaml") {
		return true
	}
	return hasExt(path, ".yaml", ".yml")
}
