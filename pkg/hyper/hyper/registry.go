package hyper

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sambeau/hyper/pkg/hyper/compiler"
	herrors "github.com/sambeau/hyper/pkg/hyper/errors"
	"github.com/sambeau/hyper/pkg/hyper/logging"
	"github.com/sambeau/hyper/pkg/hyper/vm"
)

// Registry finds templates by name under a root directory, compiles them
// once and resolves their imports. It is safe for concurrent use.
type Registry struct {
	dir      string
	s        *settings
	compiler *compiler.Compiler
	log      *logging.Logger

	mu        sync.RWMutex
	templates map[string]*Template // by absolute path
	listeners []func(paths []string)

	// loadMu serialises loads so that loading records the import chain
	// of the one load in progress.
	loadMu  sync.Mutex
	loading []string
}

// NewRegistry creates a registry rooted at dir.
func NewRegistry(dir string, opts ...Option) *Registry {
	s := newSettings(opts)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	r := &Registry{
		dir:       dir,
		s:         s,
		log:       s.logger.With("registry"),
		templates: make(map[string]*Template),
	}
	copts := s.compilerOptions()
	copts.Resolver = compiler.ResolverFunc(r.resolve)
	r.compiler = compiler.New(copts)
	return r
}

// Dir returns the registry's root directory.
func (r *Registry) Dir() string { return r.dir }

// Lookup returns the template called name. name may include directories
// relative to the root; the file is found as written, lowercased, in
// snake_case or in PascalCase.
func (r *Registry) Lookup(name string) (*Template, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	path, ok := r.find(r.dir, name)
	if !ok {
		return nil, herrors.New("IMPORT-0001", map[string]any{"Name": name})
	}
	return r.load(path)
}

// Load returns the template in the file at path.
func (r *Registry) Load(path string) (*Template, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	return r.load(path)
}

// Resolve finds path relative to fromDir, then to the root, and loads it.
// It implements compiler.Resolver.
func (r *Registry) Resolve(fromDir, path string) (vm.Component, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	return r.resolve(fromDir, path)
}

func (r *Registry) resolve(fromDir, path string) (vm.Component, error) {
	for _, dir := range []string{fromDir, r.dir} {
		if found, ok := r.find(dir, path); ok {
			t, err := r.load(found)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
	}
	return nil, herrors.New("IMPORT-0001", map[string]any{"Name": path})
}

// find locates name under dir: as written, then by naming convention with
// the template extension added.
func (r *Registry) find(dir, name string) (string, bool) {
	if filepath.IsAbs(name) {
		return name, isFile(name) && !r.excluded(name)
	}
	if p := filepath.Join(dir, name); isFile(p) && !r.excluded(p) {
		return p, true
	}
	base := strings.TrimSuffix(filepath.Base(name), r.s.extension)
	sub := filepath.Dir(name)
	for _, candidate := range candidates(base) {
		p := filepath.Join(dir, sub, candidate+r.s.extension)
		if isFile(p) && !r.excluded(p) {
			return p, true
		}
	}
	return "", false
}

func (r *Registry) load(path string) (*Template, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if r.excluded(abs) {
		return nil, herrors.New("IMPORT-0001", map[string]any{"Name": path})
	}

	r.mu.RLock()
	t, ok := r.templates[abs]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	for i, p := range r.loading {
		if p == abs {
			chain := make([]string, 0, len(r.loading)-i+1)
			for _, q := range r.loading[i:] {
				chain = append(chain, r.name(q))
			}
			chain = append(chain, r.name(abs))
			return nil, herrors.New("IMPORT-0002", map[string]any{"Cycle": strings.Join(chain, " -> ")}).WithFile(abs)
		}
	}
	r.loading = append(r.loading, abs)
	defer func() { r.loading = r.loading[:len(r.loading)-1] }()

	src, err := os.ReadFile(abs)
	if err != nil {
		e := herrors.New("IMPORT-0003", map[string]any{"Path": abs}).WithFile(abs)
		e.Err = err
		return nil, e
	}
	compiled, err := r.compiler.Compile(r.name(abs), abs, src)
	if err != nil {
		return nil, err
	}
	t = newTemplate(compiled)

	r.mu.Lock()
	r.templates[abs] = t
	r.mu.Unlock()
	r.log.Debugf("loaded %s", r.name(abs))
	return t, nil
}

// name is the template name of the file at abs: its path relative to the
// root without the extension.
func (r *Registry) name(abs string) string {
	rel, err := filepath.Rel(r.dir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(abs)
	}
	return filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
}

// Names lists the templates under the root, sorted.
func (r *Registry) Names() ([]string, error) {
	var names []string
	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != r.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == r.s.extension && !r.excluded(path) {
			names = append(names, r.name(path))
		}
		return nil
	})
	sort.Strings(names)
	return names, err
}

// LoadAll loads every template under the root and reports each failure
// by template name.
func (r *Registry) LoadAll() (map[string]*Template, map[string]error) {
	loaded := make(map[string]*Template)
	failed := make(map[string]error)
	names, err := r.Names()
	if err != nil {
		failed[r.dir] = err
	}
	for _, name := range names {
		t, err := r.Load(filepath.Join(r.dir, filepath.FromSlash(name)+r.s.extension))
		if err != nil {
			failed[name] = err
			continue
		}
		loaded[name] = t
	}
	return loaded, failed
}

// Clear forgets every loaded template. Importers hold their imports, so a
// change to any file invalidates them all.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.templates = make(map[string]*Template)
	r.mu.Unlock()
	r.compiler.Clear()
}

// Len returns the number of loaded templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

// OnChange registers fn to be called by Watch after it drops templates.
func (r *Registry) OnChange(fn func(paths []string)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) excluded(path string) bool {
	if len(r.s.exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(r.dir, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(path)
	for _, pattern := range r.s.exclude {
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// candidates returns the file stems name may be stored under: as written,
// lower camel, snake_case and PascalCase, without duplicates.
func candidates(name string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(name)
	add(lowerFirst(name))
	add(snakeCase(name))
	add(pascalCase(name))
	return out
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func snakeCase(s string) string {
	var sb strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if r == '-' || r == ' ' {
			sb.WriteByte('_')
			continue
		}
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func pascalCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	caser := cases.Title(language.Und, cases.NoLower)
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(caser.String(p))
	}
	return sb.String()
}
