// Package errors provides structured error types for hyper templates.
//
// HyperError is the single error type used across the parse, compile and
// render stages. Its Class tells the stages apart; CompileErrors wrap the
// error that caused them so callers can reach the original ParseError with
// errors.As.
package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassParse     ErrorClass = "parse"     // Markup, directive or expression syntax
	ClassCompile   ErrorClass = "compile"   // Template compilation failed
	ClassProp      ErrorClass = "prop"      // Per-call prop binding
	ClassType      ErrorClass = "type"      // Type mismatches at render time
	ClassUndefined ErrorClass = "undefined" // Not found/defined
	ClassImport    ErrorClass = "import"    // Template lookup and imports
	ClassRuntime   ErrorClass = "runtime"   // Arithmetic and evaluation faults
	ClassIO        ErrorClass = "io"        // File and network reads
	ClassInternal  ErrorClass = "internal"  // Broken engine invariants
)

// HyperError represents any error raised while parsing, compiling or
// rendering a template.
type HyperError struct {
	Class   ErrorClass     `json:"class"`           // Error category
	Code    string         `json:"code"`            // Error code (e.g., "PARSE-0001")
	Message string         `json:"message"`         // Human-readable message
	Hints   []string       `json:"hints,omitempty"` // Suggestions or diagnostic tables
	Line    int            `json:"line"`            // 1-based line (0 if unknown)
	Column  int            `json:"column"`          // 1-based column (0 if unknown)
	File    string         `json:"file,omitempty"`  // File path or template name
	Data    map[string]any `json:"data,omitempty"`  // Template variables
	Err     error          `json:"-"`               // Wrapped cause
}

// Error implements the error interface.
func (e *HyperError) Error() string {
	return e.String()
}

// Unwrap returns the wrapped cause, if any.
func (e *HyperError) Unwrap() error {
	return e.Err
}

// String returns a formatted string representation of the error.
func (e *HyperError) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line, e.Column))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line formatted string for display.
func (e *HyperError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassParse:
		sb.WriteString("Parse error")
	case ClassCompile:
		sb.WriteString("Compile error")
	case ClassProp:
		sb.WriteString("Prop error")
	default:
		sb.WriteString("Render error")
	}

	if e.File != "" {
		sb.WriteString(":\n  in: ")
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(fmt.Sprintf("\n  at: line %d, column %d", e.Line, e.Column))
		}
		sb.WriteString("\n  ")
	} else if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Line, e.Column))
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	var cause *HyperError
	if stderrors.As(e.Err, &cause) {
		sb.WriteString("\n  caused by: ")
		sb.WriteString(strings.ReplaceAll(cause.String(), "\n", "\n  "))
	} else if e.Err != nil {
		sb.WriteString("\n  caused by: ")
		sb.WriteString(e.Err.Error())
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *HyperError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithFile returns a copy of the error with the file path set.
func (e *HyperError) WithFile(file string) *HyperError {
	copy := *e
	copy.File = file
	return &copy
}

// WithPosition returns a copy of the error with line and column set.
func (e *HyperError) WithPosition(line, column int) *HyperError {
	copy := *e
	copy.Line = line
	copy.Column = column
	return &copy
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass // Error category
	Template string     // Message template with {{.placeholders}}
	Hints    []string   // Hint templates (may use {{.placeholders}})
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Markup structure (PARSE-00xx)
	"PARSE-0001": {
		Class:    ClassParse,
		Template: "mismatched closing tag: expected </{{.Expected}}>, got </{{.Got}}>",
	},
	"PARSE-0002": {
		Class:    ClassParse,
		Template: "unexpected closing tag </{{.Tag}}>",
	},
	"PARSE-0003": {
		Class:    ClassParse,
		Template: "unclosed {{.Kind}} {{.Name}}",
	},
	"PARSE-0004": {
		Class:    ClassParse,
		Template: "fragments cannot have attributes",
		Hints:    []string{"wrap the content in an element to attach attributes"},
	},
	"PARSE-0005": {
		Class:    ClassParse,
		Template: "component closing tag {{.Got}} does not match opening tag {{.Expected}}",
	},
	"PARSE-0006": {
		Class:    ClassParse,
		Template: "interpolation {{.Index}} was never consumed",
	},
	"PARSE-0007": {
		Class:    ClassParse,
		Template: "interpolation is not allowed in {{.Where}}",
	},
	"PARSE-0008": {
		Class:    ClassParse,
		Template: "unterminated interpolation",
		Hints:    []string{"use {{`{{`}} to write a literal brace"},
	},
	"PARSE-0009": {
		Class:    ClassParse,
		Template: "unmatched '}' in template body",
		Hints:    []string{"use {{`}}`}} to write a literal brace"},
	},

	// Directives (PARSE-01xx)
	"PARSE-0101": {
		Class:    ClassParse,
		Template: "{{.Directive}} directive requires exactly one interpolation",
	},
	"PARSE-0102": {
		Class:    ClassParse,
		Template: "{{.Directive}} directive without matching {{.Opener}}",
	},
	"PARSE-0103": {
		Class:    ClassParse,
		Template: "{{.Directive}} directive after else",
	},
	"PARSE-0104": {
		Class:    ClassParse,
		Template: "unknown directive '{{.Directive}}'",
		Hints:    []string{"directives are if, elif, else, match, case and end"},
	},
	"PARSE-0105": {
		Class:    ClassParse,
		Template: "match must start with a case, got {{.Got}}",
	},
	"PARSE-0106": {
		Class:    ClassParse,
		Template: "end directive while <{{.Tag}}> is still open",
		Hints:    []string{"close </{{.Tag}}> before <!--@ end -->"},
	},
	"PARSE-0107": {
		Class:    ClassParse,
		Template: "{{.Directive}} directive does not take an interpolation",
	},

	// Expressions (PARSE-02xx)
	"PARSE-0201": {
		Class:    ClassParse,
		Template: "expected {{.Expected}}, got '{{.Got}}'",
	},
	"PARSE-0202": {
		Class:    ClassParse,
		Template: "unexpected token '{{.Token}}'",
	},
	"PARSE-0203": {
		Class:    ClassParse,
		Template: "unterminated string",
	},
	"PARSE-0204": {
		Class:    ClassParse,
		Template: "invalid number literal: {{.Literal}}",
	},
	"PARSE-0205": {
		Class:    ClassParse,
		Template: "illegal character '{{.Char}}'",
	},

	// Compilation (COMP-0xxx)
	"COMP-0001": {
		Class:    ClassCompile,
		Template: "cannot compile template {{.Name}}",
	},
	"COMP-0002": {
		Class:    ClassCompile,
		Template: "prop '{{.Prop}}' has unknown type '{{.Type}}'",
		Hints:    []string{"known types: {{.Known}}"},
	},
	"COMP-0003": {
		Class:    ClassCompile,
		Template: "default for prop '{{.Prop}}' must be a constant",
	},
	"COMP-0004": {
		Class:    ClassCompile,
		Template: "'{{.Prop}}' is reserved and cannot be declared as a prop",
	},
	"COMP-0005": {
		Class:    ClassCompile,
		Template: "prop '{{.Prop}}' declared twice",
	},
	"COMP-0006": {
		Class:    ClassCompile,
		Template: "wildcard case must be the last case of a match",
	},
	"COMP-0007": {
		Class:    ClassInternal,
		Template: "unsupported {{.Kind}} {{.Type}}",
	},

	// Prop binding (PROP-0xxx)
	"PROP-0001": {
		Class:    ClassProp,
		Template: "{{.Template}}: missing required prop '{{.Prop}}'",
	},
	"PROP-0002": {
		Class:    ClassProp,
		Template: "{{.Template}}.{{.Prop}}: expected {{.Expected}}, got {{.Got}}",
	},
	"PROP-0003": {
		Class:    ClassProp,
		Template: "{{.Template}}: '{{.Prop}}' dependency not available in render context",
		Hints:    []string{"bind it with inject.With(ctx, ...) before rendering"},
	},

	// Lookup and imports (IMPORT-0xxx)
	"IMPORT-0001": {
		Class:    ClassImport,
		Template: "template '{{.Name}}' not found",
	},
	"IMPORT-0002": {
		Class:    ClassImport,
		Template: "import cycle: {{.Cycle}}",
	},
	"IMPORT-0003": {
		Class:    ClassImport,
		Template: "cannot read template {{.Path}}",
	},

	// Undefined (UNDEF-0xxx)
	"UNDEF-0001": {
		Class:    ClassUndefined,
		Template: "identifier not found: {{.Name}}",
	},
	"UNDEF-0002": {
		Class:    ClassUndefined,
		Template: "unknown method '{{.Method}}' for {{.Type}}",
	},
	"UNDEF-0003": {
		Class:    ClassUndefined,
		Template: "{{.Type}} has no field or key '{{.Name}}'",
	},

	// Render-time type errors (TYPE-0xxx)
	"TYPE-0001": {
		Class:    ClassType,
		Template: "unsupported operand types for {{.Op}}: {{.Left}} and {{.Right}}",
	},
	"TYPE-0002": {
		Class:    ClassType,
		Template: "{{.Type}} is not callable",
	},
	"TYPE-0003": {
		Class:    ClassType,
		Template: "cannot index {{.Type}} with {{.Index}}",
	},
	"TYPE-0004": {
		Class:    ClassType,
		Template: "{{.Func}}() expects {{.Expected}} argument(s), got {{.Got}}",
	},
	"TYPE-0005": {
		Class:    ClassType,
		Template: "{{.Func}}(): {{.Problem}}",
	},
	"TYPE-0006": {
		Class:    ClassType,
		Template: "{{.Type}} is not a component",
		Hints:    []string{"components are compiled templates or vm.ComponentFunc values"},
	},
	"TYPE-0007": {
		Class:    ClassType,
		Template: "cannot iterate over {{.Type}}",
	},
	"TYPE-0008": {
		Class:    ClassType,
		Template: "spread expects a mapping, got {{.Type}}",
	},

	// Runtime faults (RUN-0xxx)
	"RUN-0001": {
		Class:    ClassRuntime,
		Template: "division by zero",
	},
	"RUN-0002": {
		Class:    ClassRuntime,
		Template: "index {{.Index}} out of range (length {{.Length}})",
	},
}

// New creates a HyperError from the catalog.
// If the code is not found, creates a generic error with the message.
func New(code string, data map[string]any) *HyperError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &HyperError{
			Class:   ClassRuntime,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		rendered := renderTemplate(hintTmpl, data)
		if rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &HyperError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewWithPosition creates a HyperError with position information.
func NewWithPosition(code string, line, column int, data map[string]any) *HyperError {
	err := New(code, data)
	err.Line = line
	err.Column = column
	return err
}

// NewSimple creates a simple error without using the catalog.
func NewSimple(class ErrorClass, message string) *HyperError {
	return &HyperError{
		Class:   class,
		Message: message,
	}
}

// Wrap creates a CompileError for the named template wrapping cause.
// Position and file are lifted from cause when it is a HyperError.
func Wrap(name string, cause error) *HyperError {
	err := New("COMP-0001", map[string]any{"Name": name}).WithFile(name)
	err.Err = cause
	var inner *HyperError
	if stderrors.As(cause, &inner) {
		err = err.WithPosition(inner.Line, inner.Column)
		if inner.File != "" {
			err = err.WithFile(inner.File)
		}
		err.Message = err.Message + ": " + inner.Message
		err.Hints = append(err.Hints, inner.Hints...)
	} else if cause != nil {
		err.Message = err.Message + ": " + cause.Error()
	}
	return err
}

func is(err error, class ErrorClass) bool {
	for err != nil {
		var he *HyperError
		if !stderrors.As(err, &he) {
			return false
		}
		if he.Class == class {
			return true
		}
		err = he.Err
	}
	return false
}

// IsParse reports whether err is, or wraps, a parse error.
func IsParse(err error) bool { return is(err, ClassParse) }

// IsCompile reports whether err is, or wraps, a compile error.
func IsCompile(err error) bool { return is(err, ClassCompile) }

// IsProp reports whether err is, or wraps, a prop validation error.
func IsProp(err error) bool { return is(err, ClassProp) }

// renderTemplate renders a Go template with the given data.
func renderTemplate(tmplStr string, data map[string]any) string {
	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// FindClosestMatch finds the closest match to input among candidates.
// Returns "" when nothing is close enough to be a plausible typo.
func FindClosestMatch(input string, candidates []string) string {
	if len(input) == 0 || len(candidates) == 0 {
		return ""
	}

	inputLower := strings.ToLower(input)
	var bestMatch string
	bestDistance := -1
	for _, candidate := range candidates {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if bestDistance == -1 || dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	// 1 edit for short words, 2 for medium, 3 for long
	threshold := 1
	if len(input) >= 4 && len(input) <= 6 {
		threshold = 2
	} else if len(input) >= 7 {
		threshold = 3
	}
	if bestDistance <= 0 || bestDistance > threshold {
		return ""
	}
	return bestMatch
}

// NewUndefinedIdentifier creates an undefined identifier error with a
// "did you mean" hint when a close candidate exists.
func NewUndefinedIdentifier(name string, available []string) *HyperError {
	err := New("UNDEF-0001", map[string]any{"Name": name})
	if suggestion := FindClosestMatch(name, available); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean `"+suggestion+"`?")
	}
	return err
}

// NewUndefinedMethod creates an unknown method error with a "did you mean" hint.
func NewUndefinedMethod(method, typeName string, available []string) *HyperError {
	err := New("UNDEF-0002", map[string]any{"Method": method, "Type": typeName})
	if suggestion := FindClosestMatch(method, available); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean `"+suggestion+"`?")
	}
	return err
}
