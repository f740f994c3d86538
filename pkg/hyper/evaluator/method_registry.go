package evaluator

import (
	"sort"
	"strconv"
	"strings"

	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/lexer"
	"github.com/sambeau/hyper/pkg/hyper/object"
)

// MethodFunc is the signature for built-in method implementations.
type MethodFunc func(receiver any, args []any, env *Environment) (any, error)

// MethodEntry defines a single built-in method.
type MethodEntry struct {
	Fn          MethodFunc
	Arity       string // "0", "1", "0-1", "1+", "2", etc.
	Description string
}

// MethodRegistry maps method names to their entries for one kind of value.
type MethodRegistry map[string]MethodEntry

// Names returns a sorted list of method names in this registry.
// Used for fuzzy matching in error messages.
func (r MethodRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the method entry for the given name, if it exists.
func (r MethodRegistry) Get(name string) (MethodEntry, bool) {
	entry, ok := r[name]
	return entry, ok
}

// registryFor picks the built-in methods for a receiver.
func registryFor(recv any) MethodRegistry {
	if _, ok := recv.(*object.Dict); ok {
		return dictMethods
	}
	if _, ok := object.AsString(recv); ok {
		return stringMethods
	}
	if _, ok := object.AsDict(recv); ok {
		return dictMethods
	}
	if _, ok := object.Items(recv); ok {
		return listMethods
	}
	return nil
}

// parseArity turns an arity spec into a min/max pair; max is -1 when
// unbounded.
func parseArity(arity string) (min, max int) {
	switch {
	case arity == "":
		return 0, -1
	case strings.HasSuffix(arity, "+"):
		n, _ := strconv.Atoi(strings.TrimSuffix(arity, "+"))
		return n, -1
	case strings.Contains(arity, "-"):
		lo, hi, _ := strings.Cut(arity, "-")
		a, _ := strconv.Atoi(lo)
		b, _ := strconv.Atoi(hi)
		return a, b
	}
	n, _ := strconv.Atoi(arity)
	return n, n
}

func checkArity(tok lexer.Token, name, arity string, got int) error {
	min, max := parseArity(arity)
	if got < min || (max >= 0 && got > max) {
		expected := arity
		if strings.HasSuffix(arity, "+") {
			expected = "at least " + strings.TrimSuffix(arity, "+")
		} else if min != max {
			expected = strconv.Itoa(min) + " to " + strconv.Itoa(max)
		}
		return at(tok, arityError(name, expected, got))
	}
	return nil
}

func problem(fn, msg string) *herrors.HyperError {
	return herrors.New("TYPE-0005", map[string]any{"Func": fn, "Problem": msg})
}
