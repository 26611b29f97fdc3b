package templatestore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/content"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePrinter struct {
	calls int
	last  []byte
}

func (p *fakePrinter) Print(ctx context.Context, html []byte) ([]byte, error) {
	p.calls++
	p.last = html
	return []byte("%PDF-fake"), nil
}

func writeFile(t *testing.T, dir, rel, body string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func newLocal(t *testing.T, printer Printer) *Local {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "cover.html", `<html><body><h1>{{제안서명}}</h1></body></html>`)
	writeFile(t, dir, "cover.md", "# shadowed by the html file\n")
	writeFile(t, dir, "pages/detail.md", "# {{지점명}}\n\n{{IMAGE_OPTION_PLAN}}\n")
	writeFile(t, dir, "notes.txt", "ignored")
	l, err := NewLocal(dir, printer, testLogger())
	require.NoError(t, err)
	return l
}

func TestLocal_List(t *testing.T) {
	l := newLocal(t, nil)
	infos, err := l.List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "cover", infos[0].ID)
	assert.Equal(t, "html", infos[0].Format)
	assert.Equal(t, "pages/detail", infos[1].ID)
	assert.Equal(t, "md", infos[1].Format)
}

func TestLocal_TemplateNotFound(t *testing.T) {
	l := newLocal(t, nil)
	_, err := l.Template(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	_, err = l.CreateWorkingCopy(context.Background(), "missing", "x")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.Zero(t, l.Copies())
}

func TestLocal_WorkingCopyLifecycle(t *testing.T) {
	printer := &fakePrinter{}
	l := newLocal(t, printer)
	ctx := context.Background()

	id, err := l.CreateWorkingCopy(ctx, "cover", "proposal_1_cover")
	require.NoError(t, err)
	assert.Equal(t, 1, l.Copies())

	doc, err := l.WorkingCopy(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, doc.PlainText(), "{{제안서명}}")

	// Mutating the returned tree does not touch the stored copy until updated.
	for _, run := range content.Runs(doc) {
		run.Node.Text = strings.ReplaceAll(run.Node.Text, "{{제안서명}}", "강남 오피스 제안")
	}
	html, err := l.Export(ctx, id, FormatHTML)
	require.NoError(t, err)
	assert.Contains(t, string(html), "{{제안서명}}")

	require.NoError(t, l.UpdateCopy(ctx, id, doc))
	html, err = l.Export(ctx, id, FormatHTML)
	require.NoError(t, err)
	assert.Contains(t, string(html), "강남 오피스 제안")

	pdf, err := l.Export(ctx, id, FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-fake", string(pdf))
	assert.Equal(t, 1, printer.calls)
	assert.Contains(t, string(printer.last), "강남 오피스 제안")

	require.NoError(t, l.DeleteCopy(ctx, id))
	assert.Zero(t, l.Copies())
	assert.ErrorIs(t, l.DeleteCopy(ctx, id), ErrCopyNotFound)
	_, err = l.WorkingCopy(ctx, id)
	assert.ErrorIs(t, err, ErrCopyNotFound)
}

func TestLocal_MarkdownTemplate(t *testing.T) {
	l := newLocal(t, nil)
	doc, err := l.Template(context.Background(), "pages/detail")
	require.NoError(t, err)
	assert.Contains(t, doc.PlainText(), "{{지점명}}")
	assert.Contains(t, doc.PlainText(), "{{IMAGE_OPTION_PLAN}}")
}

func TestLocal_PDFWithoutPrinter(t *testing.T) {
	l := newLocal(t, nil)
	id, err := l.CreateWorkingCopy(context.Background(), "cover", "c")
	require.NoError(t, err)
	_, err = l.Export(context.Background(), id, FormatPDF)
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = l.Export(context.Background(), id, Format("docx"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestNewLocal_RejectsMissingDir(t *testing.T) {
	_, err := NewLocal(filepath.Join(t.TempDir(), "nope"), nil, testLogger())
	assert.Error(t, err)
}

// remoteServer is an in-memory template service speaking the Remote protocol.
type remoteServer struct {
	mu      sync.Mutex
	copies  map[string]string
	nextID  int
	status  int
	auth    string
	deletes int
}

func (s *remoteServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = r.Header.Get("Authorization")
	if s.status != 0 {
		if s.status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "7")
		}
		http.Error(w, "unavailable", s.status)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "templates":
		if parts[1] != "cover" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `<html><body><p>{{고객사명}}</p></body></html>`)
	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "copies":
		if parts[1] != "cover" {
			http.NotFound(w, r)
			return
		}
		s.nextID++
		id := "copy-" + string(rune('0'+s.nextID))
		s.copies[id] = `<html><body><p>{{고객사명}}</p></body></html>`
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"`+id+`"}`)
	case len(parts) >= 2 && parts[0] == "copies":
		doc, ok := s.copies[parts[1]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		switch {
		case r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "export":
			if r.URL.Query().Get("format") == "pdf" {
				io.WriteString(w, "%PDF-"+doc)
				return
			}
			io.WriteString(w, doc)
		case r.Method == http.MethodGet:
			io.WriteString(w, doc)
		case r.Method == http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			s.copies[parts[1]] = string(b)
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodDelete:
			delete(s.copies, parts[1])
			s.deletes++
			w.WriteHeader(http.StatusNoContent)
		}
	default:
		http.NotFound(w, r)
	}
}

func (s *remoteServer) setStatus(code int) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

func (s *remoteServer) snapshot() (auth string, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth, s.deletes
}

func newRemote(t *testing.T) (*Remote, *remoteServer) {
	t.Helper()
	rs := &remoteServer{copies: map[string]string{}}
	srv := httptest.NewServer(rs)
	t.Cleanup(srv.Close)
	c := NewRemote(srv.URL+"/", "secret", 5*time.Second)
	t.Cleanup(c.Close)
	return c, rs
}

func TestRemote_Lifecycle(t *testing.T) {
	c, rs := newRemote(t)
	ctx := context.Background()

	tpl, err := c.Template(ctx, "cover")
	require.NoError(t, err)
	assert.Contains(t, tpl.PlainText(), "{{고객사명}}")
	auth, _ := rs.snapshot()
	assert.Equal(t, "Bearer secret", auth)

	id, err := c.CreateWorkingCopy(ctx, "cover", "p1_cover")
	require.NoError(t, err)

	doc, err := c.WorkingCopy(ctx, id)
	require.NoError(t, err)
	for _, run := range content.Runs(doc) {
		run.Node.Text = strings.ReplaceAll(run.Node.Text, "{{고객사명}}", "에이비씨")
	}
	require.NoError(t, c.UpdateCopy(ctx, id, doc))

	pdf, err := c.Export(ctx, id, FormatPDF)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))
	assert.Contains(t, string(pdf), "에이비씨")

	require.NoError(t, c.DeleteCopy(ctx, id))
	_, deletes := rs.snapshot()
	assert.Equal(t, 1, deletes)
	assert.ErrorIs(t, c.DeleteCopy(ctx, id), ErrCopyNotFound)
}

func TestRemote_ErrorKinds(t *testing.T) {
	c, rs := newRemote(t)
	ctx := context.Background()

	_, err := c.Template(ctx, "missing")
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	rs.setStatus(http.StatusTooManyRequests)
	_, err = c.CreateWorkingCopy(ctx, "cover", "x")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	var qe *QuotaError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, 7*time.Second, qe.RetryAfter)

	rs.setStatus(http.StatusServiceUnavailable)
	_, err = c.Template(ctx, "cover")
	var te *TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	assert.False(t, errors.Is(err, ErrQuotaExceeded))

	rs.setStatus(http.StatusBadRequest)
	err = c.DeleteCopy(ctx, "copy-1")
	require.Error(t, err)
	assert.False(t, errors.As(err, &te))
	assert.Contains(t, err.Error(), "status 400")
}

func TestRemote_TransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewRemote(url, "", time.Second)
	defer c.Close()

	_, err := c.CreateWorkingCopy(context.Background(), "cover", "x")
	var te *TransientError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, "create working copy", te.Op)
	assert.Error(t, te.Err)
	assert.Zero(t, te.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Template(ctx, "cover")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.As(err, &te))
}

func TestRemote_RejectsUnknownFormat(t *testing.T) {
	c, _ := newRemote(t)
	_, err := c.Export(context.Background(), "copy-1", Format("odt"))
	assert.ErrorIs(t, err, ErrUnsupported)
}
