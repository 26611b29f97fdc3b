package templatestore

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/content"
)

const templatePattern = "**/*.{html,htm,docx,md,markdown}"

// extPriority decides which file backs an ID when several share a stem.
var extPriority = map[string]int{".html": 0, ".htm": 1, ".docx": 2, ".md": 3, ".markdown": 4}

type workingCopy struct {
	templateID string
	name       string
	doc        *content.Document
	created    time.Time
}

// Local serves templates from a directory tree and keeps working copies in
// memory. A template's ID is its slash-separated path relative to the root,
// without extension.
type Local struct {
	root    string
	fsys    fs.FS
	printer Printer
	log     *slog.Logger

	mu     sync.Mutex
	copies map[string]*workingCopy
}

var _ Store = (*Local)(nil)

// NewLocal opens the template directory at root. printer may be nil, in
// which case PDF export fails with ErrUnsupported.
func NewLocal(root string, printer Printer, log *slog.Logger) (*Local, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("template dir: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("template dir %s: not a directory", root)
	}
	return &Local{
		root:    root,
		fsys:    os.DirFS(root),
		printer: printer,
		log:     log,
		copies:  make(map[string]*workingCopy),
	}, nil
}

// List returns the template catalogue sorted by ID.
func (l *Local) List(ctx context.Context) ([]Info, error) {
	files, err := l.index()
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(files))
	for id, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st, err := fs.Stat(l.fsys, rel)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", rel, err)
		}
		infos = append(infos, Info{
			ID:       id,
			Path:     rel,
			Format:   strings.TrimPrefix(path.Ext(rel), "."),
			Size:     st.Size(),
			Modified: st.ModTime(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

func (l *Local) index() (map[string]string, error) {
	matches, err := doublestar.Glob(l.fsys, templatePattern)
	if err != nil {
		return nil, fmt.Errorf("glob templates: %w", err)
	}
	files := make(map[string]string, len(matches))
	for _, rel := range matches {
		ext := strings.ToLower(path.Ext(rel))
		id := strings.TrimSuffix(rel, path.Ext(rel))
		if prev, ok := files[id]; ok && extPriority[strings.ToLower(path.Ext(prev))] <= extPriority[ext] {
			continue
		}
		files[id] = rel
	}
	return files, nil
}

// Template parses the template identified by id.
func (l *Local) Template(ctx context.Context, id string) (*content.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := l.index()
	if err != nil {
		return nil, err
	}
	rel, ok := files[strings.Trim(filepath.ToSlash(id), "/")]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}

	p, err := content.ForFile(rel)
	if err != nil {
		return nil, err
	}
	f, err := l.fsys.Open(rel)
	if err != nil {
		return nil, fmt.Errorf("open template %s: %w", rel, err)
	}
	defer f.Close()

	doc, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", rel, err)
	}
	return doc, nil
}

func (l *Local) CreateWorkingCopy(ctx context.Context, templateID, name string) (string, error) {
	doc, err := l.Template(ctx, templateID)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	l.mu.Lock()
	l.copies[id] = &workingCopy{templateID: templateID, name: name, doc: doc, created: time.Now()}
	l.mu.Unlock()

	l.log.Debug("working copy created", "copy_id", id, "template", templateID, "name", name)
	return id, nil
}

// WorkingCopy returns a private clone of the copy's current tree.
func (l *Local) WorkingCopy(ctx context.Context, copyID string) (*content.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	wc, ok := l.copies[copyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCopyNotFound, copyID)
	}
	return wc.doc.Clone(), nil
}

func (l *Local) UpdateCopy(ctx context.Context, copyID string, doc *content.Document) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	wc, ok := l.copies[copyID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCopyNotFound, copyID)
	}
	wc.doc = doc.Clone()
	return nil
}

func (l *Local) Export(ctx context.Context, copyID string, format Format) ([]byte, error) {
	l.mu.Lock()
	wc, ok := l.copies[copyID]
	var doc *content.Document
	if ok {
		doc = wc.doc.Clone()
	}
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCopyNotFound, copyID)
	}

	html, err := content.HTML(doc)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", copyID, err)
	}
	switch format {
	case FormatHTML:
		return html, nil
	case FormatPDF:
		if l.printer == nil {
			return nil, fmt.Errorf("%w: %s (no printer configured)", ErrUnsupported, format)
		}
		pdf, err := l.printer.Print(ctx, html)
		if err != nil {
			return nil, fmt.Errorf("export %s as pdf: %w", copyID, err)
		}
		return pdf, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
}

func (l *Local) DeleteCopy(ctx context.Context, copyID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.copies[copyID]; !ok {
		return fmt.Errorf("%w: %s", ErrCopyNotFound, copyID)
	}
	delete(l.copies, copyID)
	return nil
}

// Copies returns the number of live working copies.
func (l *Local) Copies() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.copies)
}
