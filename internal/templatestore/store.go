// Package templatestore loads proposal templates and manages the working
// copies a page render fills in.
package templatestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/content"
)

// Format is an export artifact format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

func (f Format) Valid() bool {
	return f == FormatPDF || f == FormatHTML
}

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrCopyNotFound     = errors.New("working copy not found")
	ErrQuotaExceeded    = errors.New("template store quota exceeded")
	ErrUnsupported      = errors.New("unsupported export format")
)

// Store is the template service a renderer works against. Templates are
// read-only; every render works on its own copy and deletes it afterwards.
type Store interface {
	Template(ctx context.Context, id string) (*content.Document, error)
	CreateWorkingCopy(ctx context.Context, templateID, name string) (string, error)
	WorkingCopy(ctx context.Context, copyID string) (*content.Document, error)
	UpdateCopy(ctx context.Context, copyID string, doc *content.Document) error
	Export(ctx context.Context, copyID string, format Format) ([]byte, error)
	DeleteCopy(ctx context.Context, copyID string) error
}

// Printer turns a rendered HTML page into PDF bytes.
type Printer interface {
	Print(ctx context.Context, html []byte) ([]byte, error)
}

// QuotaError is returned when the store rejects a request for rate or
// quota reasons. It matches ErrQuotaExceeded.
type QuotaError struct {
	Op         string
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: quota exceeded (retry after %s)", e.Op, e.RetryAfter)
	}
	return e.Op + ": quota exceeded"
}

func (e *QuotaError) Is(target error) bool { return target == ErrQuotaExceeded }

// TransientError is a server-side or network failure that may succeed when
// retried. Err is set for transport failures, StatusCode otherwise.
type TransientError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Info describes a template in the catalogue.
type Info struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Format   string    `json:"format"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}
