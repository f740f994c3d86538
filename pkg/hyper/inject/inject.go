// Package inject carries dependency values for a single render.
//
// Bindings live in a context.Context, so concurrent renders each see their
// own values. Template props whose type names a dependency (Request,
// Header[...], and so on) are filled from these bindings instead of from the
// caller's arguments.
package inject

import (
	"context"
	"net/textproto"
	"strings"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const bindingsKey contextKey = "hyper_inject"

// dependencyTypes are the type names resolved from the render context.
var dependencyTypes = map[string]bool{
	"Request":    true,
	"Response":   true,
	"Header":     true,
	"Cookie":     true,
	"Query":      true,
	"Form":       true,
	"Body":       true,
	"File":       true,
	"UploadFile": true,
	"Annotated":  true,
}

// With returns a context carrying values on top of any bindings already in
// ctx. Later bindings shadow earlier ones.
func With(ctx context.Context, values map[string]any) context.Context {
	merged := make(map[string]any, len(values))
	if parent, ok := ctx.Value(bindingsKey).(map[string]any); ok {
		for k, v := range parent {
			merged[k] = v
		}
	}
	for k, v := range values {
		merged[k] = v
	}
	return context.WithValue(ctx, bindingsKey, merged)
}

// Lookup returns the value bound to name in ctx.
func Lookup(ctx context.Context, name string) (any, bool) {
	if ctx == nil {
		return nil, false
	}
	values, ok := ctx.Value(bindingsKey).(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := values[name]
	return v, ok
}

// Values returns a copy of every binding in ctx.
func Values(ctx context.Context) map[string]any {
	out := map[string]any{}
	if values, ok := ctx.Value(bindingsKey).(map[string]any); ok {
		for k, v := range values {
			out[k] = v
		}
	}
	return out
}

// BaseType strips type parameters: "Header[string]" is "Header".
func BaseType(typeName string) string {
	typeName = strings.TrimSpace(typeName)
	if i := strings.IndexByte(typeName, '['); i >= 0 {
		typeName = typeName[:i]
	}
	return strings.TrimSpace(typeName)
}

// IsDependency reports whether a prop of this type is injected rather
// than passed by the caller.
func IsDependency(typeName string) bool {
	return dependencyTypes[BaseType(typeName)]
}

// Resolve finds the value for a dependency prop. A binding under the prop
// name wins; otherwise Header, Cookie, Query and Form props pick the
// matching entry from the request bindings, so `user_agent: Header` reads
// the User-Agent header.
func Resolve(ctx context.Context, name, typeName string) (any, bool) {
	if v, ok := Lookup(ctx, name); ok {
		return v, true
	}
	var group, key string
	switch BaseType(typeName) {
	case "Header":
		group, key = "headers", textproto.CanonicalMIMEHeaderKey(strings.ReplaceAll(name, "_", "-"))
	case "Cookie":
		group, key = "cookies", name
	case "Query":
		group, key = "query", name
	case "Form":
		group, key = "form", name
	case "Request":
		group = "request"
	case "Response":
		group = "response"
	case "Body":
		group = "body"
	default:
		return nil, false
	}
	v, ok := Lookup(ctx, group)
	if !ok || key == "" {
		return v, ok
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok = m[key]
	return v, ok
}
