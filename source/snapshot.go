// Package source gives one discovery run a consistent view of a Go source
// tree. Every file is read and parsed at most once per Snapshot, so all
// components that share a snapshot see the same bytes even if the tree
// changes mid-run.
package source

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/mod/modfile"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/logger"
)

// File is one parsed Go source file
type File struct {
	Path    string // absolute, OS-specific
	Rel     string // slash-separated, relative to the snapshot root
	Package string // import path of the containing package
	Src     []byte
	AST     *ast.File

	tf    *token.File
	lines []string
}

// Snapshot is a per-run, read-once view of a module's source tree
type Snapshot struct {
	Root       string // directory containing go.mod
	ModulePath string
	Fset       *token.FileSet

	includeTests bool
	log          *zap.SugaredLogger

	mu    sync.Mutex
	files map[string]*File
	names map[string]string // import path -> package name
}

// Option configures a Snapshot
type Option func(*Snapshot)

// WithTests includes _test.go files in package listings and tree walks
func WithTests(include bool) Option {
	return func(s *Snapshot) { s.includeTests = include }
}

// Open creates a snapshot rooted at the module containing dir.
// The module root is found by walking up from dir to the nearest go.mod.
func Open(dir string, opts ...Option) (*Snapshot, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve source root %s", dir)
	}

	root, data, err := findModule(abs)
	if err != nil {
		return nil, err
	}

	modPath := modfile.ModulePath(data)
	if modPath == "" {
		return nil, errors.WithHint(
			errors.Newf("%s has no module directive", filepath.Join(root, "go.mod")),
			"source.root must point inside a Go module")
	}

	s := &Snapshot{
		Root:       root,
		ModulePath: modPath,
		Fset:       token.NewFileSet(),
		log:        logger.ComponentLogger("source"),
		files:      make(map[string]*File),
		names:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func findModule(dir string) (string, []byte, error) {
	for d := dir; ; {
		data, err := os.ReadFile(filepath.Join(d, "go.mod"))
		if err == nil {
			return d, data, nil
		}
		parent := filepath.Dir(d)
		if parent == d {
			return "", nil, errors.WithHint(
				errors.Wrapf(errors.ErrNotFound, "no go.mod at or above %s", dir),
				"set source.root to a directory inside a Go module")
		}
		d = parent
	}
}

// abs makes p absolute, interpreting relative paths against the root
func (s *Snapshot) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.Root, filepath.FromSlash(p))
}

// Contains reports whether p lies inside the snapshot root
func (s *Snapshot) Contains(p string) bool {
	if p == "" {
		return false
	}
	rel, err := filepath.Rel(s.Root, s.abs(p))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Rel returns p relative to the root with forward slashes
func (s *Snapshot) Rel(p string) string {
	rel, err := filepath.Rel(s.Root, s.abs(p))
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// ImportPath returns the import path of the package containing file p,
// or "" when p is outside the root
func (s *Snapshot) ImportPath(p string) string {
	if !s.Contains(p) {
		return ""
	}
	dir := path.Dir(s.Rel(p))
	if dir == "." {
		return s.ModulePath
	}
	return s.ModulePath + "/" + dir
}

// InModule reports whether importPath belongs to the snapshot's module
func (s *Snapshot) InModule(importPath string) bool {
	return importPath == s.ModulePath || strings.HasPrefix(importPath, s.ModulePath+"/")
}

// PackageDir returns the directory holding importPath, if it is in the module
func (s *Snapshot) PackageDir(importPath string) (string, bool) {
	if !s.InModule(importPath) {
		return "", false
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(importPath, s.ModulePath), "/")
	return filepath.Join(s.Root, filepath.FromSlash(rest)), true
}

// File returns the parsed file at p, reading it on first use only
func (s *Snapshot) File(p string) (*File, error) {
	abs := s.abs(p)

	s.mu.Lock()
	f, ok := s.files[abs]
	s.mu.Unlock()
	if ok {
		return f, nil
	}

	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", s.Rel(abs))
	}
	parsed, err := parser.ParseFile(s.Fset, abs, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", s.Rel(abs))
	}

	f = &File{
		Path:    abs,
		Rel:     s.Rel(abs),
		Package: s.ImportPath(abs),
		Src:     src,
		AST:     parsed,
		tf:      s.Fset.File(parsed.Pos()),
		lines:   strings.Split(strings.ReplaceAll(string(src), "\r\n", "\n"), "\n"),
	}

	// First reader wins so every caller shares one copy of the bytes
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.files[abs]; ok {
		return existing, nil
	}
	s.files[abs] = f
	return f, nil
}

// Overlay returns the bytes of every file read so far, keyed by absolute
// path. Type checkers given this overlay see the same source as the snapshot.
func (s *Snapshot) Overlay() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.files))
	for p, f := range s.files {
		out[p] = f.Src
	}
	return out
}

// Line returns the text of a 1-based line in file p, without surrounding whitespace
func (s *Snapshot) Line(p string, line int) (string, error) {
	f, err := s.File(p)
	if err != nil {
		return "", err
	}
	if line < 1 || line > len(f.lines) {
		return "", errors.Newf("%s has no line %d", f.Rel, line)
	}
	return strings.TrimSpace(f.lines[line-1]), nil
}

// LineOf returns the 1-based line of pos
func (f *File) LineOf(pos token.Pos) int {
	return f.tf.Line(pos)
}

// Text returns the source between pos and end
func (f *File) Text(pos, end token.Pos) string {
	start, stop := f.tf.Offset(pos), f.tf.Offset(end)
	if start < 0 || stop > len(f.Src) || start > stop {
		return ""
	}
	return string(f.Src[start:stop])
}

// HasPackage reports whether importPath is a module package with Go files
func (s *Snapshot) HasPackage(importPath string) bool {
	files, err := s.goFiles(importPath)
	return err == nil && len(files) > 0
}

func (s *Snapshot) goFiles(importPath string) ([]string, error) {
	dir, ok := s.PackageDir(importPath)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "package %s is outside module %s", importPath, s.ModulePath)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "package %s: %v", importPath, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !s.wantFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (s *Snapshot) wantFile(name string) bool {
	if !strings.HasSuffix(name, ".go") || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return false
	}
	return s.includeTests || !strings.HasSuffix(name, "_test.go")
}

// PackageFiles returns the parsed files of a module package in name order.
// External test packages (package foo_test) are left out.
func (s *Snapshot) PackageFiles(importPath string) ([]*File, error) {
	paths, err := s.goFiles(importPath)
	if err != nil {
		return nil, err
	}

	var files []*File
	for _, p := range paths {
		f, err := s.File(p)
		if err != nil {
			return nil, err
		}
		if strings.HasSuffix(f.AST.Name.Name, "_test") {
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "package %s has no Go files", importPath)
	}
	return files, nil
}

// PackageName returns the declared name of a package. Packages outside the
// module fall back to the last import path element, minus a /vN suffix.
func (s *Snapshot) PackageName(importPath string) string {
	s.mu.Lock()
	name, ok := s.names[importPath]
	s.mu.Unlock()
	if ok {
		return name
	}

	name = guessPackageName(importPath)
	if files, err := s.PackageFiles(importPath); err == nil {
		name = files[0].AST.Name.Name
	}

	s.mu.Lock()
	s.names[importPath] = name
	s.mu.Unlock()
	return name
}

func guessPackageName(importPath string) string {
	elems := strings.Split(importPath, "/")
	last := elems[len(elems)-1]
	if len(elems) > 1 && len(last) > 1 && last[0] == 'v' && strings.Trim(last[1:], "0123456789") == "" {
		last = elems[len(elems)-2]
	}
	last = strings.TrimPrefix(last, "go-")
	if i := strings.IndexAny(last, ".-"); i > 0 {
		last = last[:i]
	}
	return last
}

// Walk parses every Go file under the root in parallel and returns them
// sorted by relative path. vendor, testdata, hidden and underscore
// directories are skipped, as are nested modules. Files that fail to parse
// are logged and left out.
func (s *Snapshot) Walk(ctx context.Context) ([]*File, error) {
	var paths []string
	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == s.Root {
				return nil
			}
			name := d.Name()
			if name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			if _, err := os.Stat(filepath.Join(p, "go.mod")); err == nil {
				return filepath.SkipDir
			}
			return nil
		}
		if s.wantFile(d.Name()) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", s.Root)
	}
	sort.Strings(paths)

	parsed := make([]*File, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := s.File(p)
			if err != nil {
				s.log.Warnw("Skipping unparsable file", logger.FieldFile, s.Rel(p), logger.FieldError, err)
				return nil
			}
			parsed[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := parsed[:0]
	for _, f := range parsed {
		if f != nil {
			files = append(files, f)
		}
	}
	return files, nil
}

// SplitQualified splits "import/path.Name.Member" into the package path and
// the dotted names after it. Dots before the last slash belong to the path.
func SplitQualified(qualified string) (string, []string) {
	slash := strings.LastIndex(qualified, "/")
	head, tail := qualified[:slash+1], qualified[slash+1:]
	parts := strings.Split(tail, ".")
	return head + parts[0], parts[1:]
}
