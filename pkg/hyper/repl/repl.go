// Package repl is an interactive prompt for template expressions and
// markup.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/sambeau/hyper/pkg/hyper/ast"
	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/evaluator"
	"github.com/sambeau/hyper/pkg/hyper/hyper"
	"github.com/sambeau/hyper/pkg/hyper/nodes"
	"github.com/sambeau/hyper/pkg/hyper/object"
	"github.com/sambeau/hyper/pkg/hyper/parser"
)

const (
	prompt             = ">> "
	continuationPrompt = ".. "
)

const logo = `
█░█ █▄█ █▀█ █▀▀ █▀█
█▀█ ░█░ █▀▀ ██▄ █▀▄ `

var keywords = []string{"if", "else", "for", "in", "and", "or", "not", "true", "false", "nil"}

// Session evaluates REPL input against a scope that persists between
// inputs. Lines starting with '<' are rendered as template markup with the
// scope's names visible to it; anything else is run as expression-language
// statements.
type Session struct {
	ctx  context.Context
	env  *evaluator.Environment
	opts []hyper.Option
}

// NewSession returns a session with an empty scope. opts configure the
// templates compiled from markup input.
func NewSession(ctx context.Context, opts ...hyper.Option) *Session {
	s := &Session{ctx: ctx, opts: opts}
	s.Reset()
	return s
}

// Reset clears every name bound in the session.
func (s *Session) Reset() {
	s.env = evaluator.NewEnvironment()
	s.env.Ctx = s.ctx
}

// Set binds a name in the session scope.
func (s *Session) Set(name string, value any) {
	s.env.Set(name, value)
}

// Vars returns the names bound in the session and their values.
func (s *Session) Vars() map[string]any {
	vars := map[string]any{}
	for _, name := range s.env.Names() {
		vars[name], _ = s.env.Get(name)
	}
	return vars
}

// Eval runs one complete input and returns the text to show for it. An
// expression statement at the end of the input shows its value;
// assignments show nothing.
func (s *Session) Eval(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}
	if strings.HasPrefix(input, "<") {
		return s.render(input)
	}

	program, err := parser.ParseProgram(input)
	if err != nil {
		return "", err
	}
	var result string
	for i, stmt := range program.Statements {
		if es, ok := stmt.(*ast.ExpressionStatement); ok && i == len(program.Statements)-1 {
			v, err := evaluator.Eval(es.Expression, s.env)
			if err != nil {
				return "", err
			}
			result = object.Inspect(v)
			continue
		}
		if _, ok := stmt.(*ast.ImportStatement); ok {
			return "", fmt.Errorf("imports are only allowed in template headers")
		}
		if err := evaluator.Exec(stmt, s.env); err != nil {
			return "", err
		}
	}
	return result, nil
}

func (s *Session) render(markup string) (string, error) {
	opts := append([]hyper.Option{hyper.WithGlobals(s.Vars())}, s.opts...)
	tmpl, err := hyper.Compile("repl", markup, opts...)
	if err != nil {
		return "", err
	}
	out, err := tmpl.Render(s.ctx, nil)
	return string(out), err
}

// Start runs the interactive prompt on the terminal until the user exits.
// History is kept in the user's cache directory.
func Start(ctx context.Context, out io.Writer, version string, opts ...hyper.Option) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	session := NewSession(ctx, opts...)
	line.SetCompleter(func(input string) []string {
		return completions(input, session.env.Names())
	})

	historyFile := historyPath()
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintf(out, "%s", logo)
	fmt.Fprintln(out, "v", version)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Type 'exit' or Ctrl+D to quit, ':help' for commands")
	fmt.Fprintln(out, "")

	var buf strings.Builder
	for {
		p := prompt
		if buf.Len() > 0 {
			p = continuationPrompt
		}
		input, err := line.Prompt(p)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(out, "^C")
				buf.Reset()
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}

		trimmed := strings.TrimSpace(input)
		if buf.Len() == 0 {
			if trimmed == "exit" || trimmed == "quit" {
				fmt.Fprintln(out, "Goodbye!")
				return
			}
			if strings.HasPrefix(trimmed, ":") {
				session.Command(trimmed, out)
				continue
			}
			if trimmed == "" {
				continue
			}
		}

		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(input)
		full := buf.String()
		if needsMoreInput(full) {
			continue
		}
		buf.Reset()
		line.AppendHistory(full)

		result, err := session.Eval(full)
		if err != nil {
			printError(out, err)
			continue
		}
		if result != "" {
			fmt.Fprintln(out, result)
		}
	}
}

// Command runs a ':' meta-command, writing its output to out.
func (s *Session) Command(cmd string, out io.Writer) {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case ":help", ":h", ":?":
		fmt.Fprintln(out, "REPL Commands:")
		fmt.Fprintln(out, "  :help, :h, :?   Show this help")
		fmt.Fprintln(out, "  :env            Show names in scope")
		fmt.Fprintln(out, "  :clear          Clear all names")
		fmt.Fprintln(out, "  :render FILE    Render a template file with the scope as props")
		fmt.Fprintln(out, "  exit, quit      Exit the REPL")
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, "Input starting with '<' is rendered as markup.")

	case ":env":
		s.printEnv(out)

	case ":clear":
		s.Reset()
		fmt.Fprintln(out, "Scope cleared")

	case ":render":
		if arg == "" {
			fmt.Fprintln(out, "usage: :render FILE")
			return
		}
		tmpl, err := hyper.Load(arg, s.opts...)
		if err != nil {
			printError(out, err)
			return
		}
		props := map[string]any{}
		for _, p := range tmpl.Props() {
			if v, ok := s.env.Get(p.Name); ok {
				props[p.Name] = v
			}
		}
		html, err := tmpl.Render(s.ctx, props)
		if err != nil {
			printError(out, err)
			return
		}
		fmt.Fprintln(out, string(html))

	default:
		fmt.Fprintf(out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

func (s *Session) printEnv(out io.Writer) {
	vars := s.Vars()
	if len(vars) == 0 {
		fmt.Fprintln(out, "(no names bound)")
		return
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := object.Inspect(vars[name])
		if len(value) > 60 {
			value = value[:57] + "..."
		}
		fmt.Fprintf(out, "  %s: %s = %s\n", name, object.TypeName(vars[name]), value)
	}
}

func historyPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, ".hyper_history")
}

// completions returns the keywords, built-ins and scope names starting
// with the word under the cursor.
func completions(line string, names []string) []string {
	if strings.TrimSpace(line) == "" || strings.HasSuffix(line, " ") || strings.HasSuffix(line, "\t") {
		return nil
	}
	start := strings.LastIndexFunc(line, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	prefix, word := line[:start+1], line[start+1:]
	if word == "" {
		return nil
	}

	seen := map[string]bool{}
	var matches []string
	for _, list := range [][]string{keywords, evaluator.BuiltinNames(), names} {
		for _, w := range list {
			if strings.HasPrefix(w, word) && !seen[w] {
				seen[w] = true
				matches = append(matches, prefix+w)
			}
		}
	}
	sort.Strings(matches)
	return matches
}

// needsMoreInput reports whether input has unclosed braces, brackets or
// parentheses, or, for markup, unclosed tags.
func needsMoreInput(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	if strings.HasPrefix(input, "<") {
		return markupNeedsMore(input)
	}

	braces, brackets, parens := 0, 0, 0
	var quote byte
	for i := 0; i < len(input); i++ {
		ch := input[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '{':
			braces++
		case '}':
			braces--
		case '[':
			brackets++
		case ']':
			brackets--
		case '(':
			parens++
		case ')':
			parens--
		}
	}
	return braces > 0 || brackets > 0 || parens > 0
}

func markupNeedsMore(input string) bool {
	tags, braces := 0, 0
	for i := 0; i < len(input); i++ {
		switch input[i] {
		case '{':
			braces++
		case '}':
			braces--
		case '<':
			if i+1 >= len(input) {
				return true
			}
			next := input[i+1]
			if next != '/' && !isTagStart(next) {
				continue
			}
			end := findTagEnd(input, i)
			if end < 0 {
				return true
			}
			tag := input[i+1 : end]
			switch {
			case next == '/':
				tags--
			case next == '!':
			case strings.HasSuffix(tag, "/"):
			case nodes.IsVoid(tagName(tag)):
			default:
				tags++
			}
			i = end
		}
	}
	return tags > 0 || braces > 0
}

func tagName(tag string) string {
	if i := strings.IndexAny(tag, " \t\n/"); i >= 0 {
		return tag[:i]
	}
	return tag
}

func isTagStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '{' || ch == '>' || ch == '!'
}

// findTagEnd returns the index of the '>' closing the tag that opens at
// pos, or -1.
func findTagEnd(input string, pos int) int {
	var quote byte
	depth := 0
	for i := pos + 1; i < len(input); i++ {
		ch := input[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '{':
			depth++
		case '}':
			depth--
		case '>':
			if depth <= 0 {
				return i
			}
		}
	}
	return -1
}

func printError(out io.Writer, err error) {
	var he *herrors.HyperError
	if errors.As(err, &he) {
		fmt.Fprintln(out, he.PrettyString())
		return
	}
	fmt.Fprintf(out, "error: %v\n", err)
}
