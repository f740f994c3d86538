package inject

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxMemory bounds multipart parsing; larger uploads spill to temp files.
const maxMemory = 32 << 20

// FromRequest builds the dependency bindings for one HTTP request: the
// request itself, method, path, headers, cookies and query, plus body,
// form and files for requests that carry a body.
func FromRequest(r *http.Request) map[string]any {
	headers := make(map[string]any)
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	cookies := make(map[string]any)
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}

	values := map[string]any{
		"request": r,
		"method":  r.Method,
		"path":    r.URL.Path,
		"query":   queryToMap(r.URL.RawQuery),
		"headers": headers,
		"cookies": cookies,
	}

	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
		body, form, files := parseRequestBody(r)
		values["body"] = body
		values["form"] = form
		values["files"] = files
	}
	return values
}

// Middleware binds the request's dependencies, and the response writer as
// "response", into the request context for templates rendered downstream.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		values := FromRequest(r)
		values["response"] = w
		ctx := With(r.Context(), values)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// queryToMap converts URL query parameters to a map, treating valueless keys as true.
//
//	?flag        -> {flag: true}
//	?a&b=1       -> {a: true, b: "1"}
//	?x=1&x=2     -> {x: ["1", "2"]}
func queryToMap(rawQuery string) map[string]any {
	result := make(map[string]any)
	accumulated := make(map[string][]any)
	var order []string

	for _, token := range strings.Split(rawQuery, "&") {
		if token == "" {
			continue
		}
		keyPart, valPart, hasEquals := strings.Cut(token, "=")
		key := unescape(keyPart)
		if key == "" {
			continue
		}
		var value any = true
		if hasEquals {
			value = unescape(valPart)
		}
		if _, seen := accumulated[key]; !seen {
			order = append(order, key)
		}
		accumulated[key] = append(accumulated[key], value)
	}

	for _, key := range order {
		if vals := accumulated[key]; len(vals) == 1 {
			result[key] = vals[0]
		} else {
			result[key] = vals
		}
	}
	return result
}

func unescape(s string) string {
	if out, err := url.QueryUnescape(s); err == nil {
		return out
	}
	return s
}

// parseRequestBody parses the request body based on content type.
// Returns the raw body, form values and file metadata.
func parseRequestBody(r *http.Request) (string, map[string]any, map[string]any) {
	contentType := r.Header.Get("Content-Type")

	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		return parseMultipartForm(r)
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		return parseURLEncodedForm(r)
	case strings.HasPrefix(contentType, "application/json"):
		return parseJSONBody(r)
	}
	return parseRawBody(r), nil, nil
}

func parseMultipartForm(r *http.Request) (string, map[string]any, map[string]any) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return "", nil, nil
	}

	form := make(map[string]any)
	files := make(map[string]any)
	if r.MultipartForm == nil {
		return "", form, files
	}
	for k, v := range r.MultipartForm.Value {
		form[k] = collapse(v)
	}
	// File metadata only; contents stay with the request.
	for k, headers := range r.MultipartForm.File {
		list := make([]any, 0, len(headers))
		for _, fh := range headers {
			list = append(list, map[string]any{
				"filename":     fh.Filename,
				"size":         fh.Size,
				"content_type": fh.Header.Get("Content-Type"),
			})
		}
		if len(list) == 1 {
			files[k] = list[0]
		} else {
			files[k] = list
		}
	}
	return "", form, files
}

func parseURLEncodedForm(r *http.Request) (string, map[string]any, map[string]any) {
	if err := r.ParseForm(); err != nil {
		return "", nil, nil
	}
	form := make(map[string]any)
	for k, v := range r.PostForm {
		form[k] = collapse(v)
	}
	return "", form, nil
}

func parseJSONBody(r *http.Request) (string, map[string]any, map[string]any) {
	body := parseRawBody(r)
	var data map[string]any
	if err := json.Unmarshal([]byte(body), &data); err == nil {
		return body, data, nil
	}
	return body, nil, nil
}

func parseRawBody(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return ""
	}
	return string(body)
}

func collapse(v []string) any {
	if len(v) == 1 {
		return v[0]
	}
	out := make([]any, len(v))
	for i, s := range v {
		out[i] = s
	}
	return out
}
