package templatestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/content"
)

// Remote talks to a template service over HTTP. Documents travel as HTML.
type Remote struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Store = (*Remote)(nil)

func NewRemote(baseURL, apiKey string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type createCopyRequest struct {
	Name string `json:"name"`
}

type createCopyResponse struct {
	ID string `json:"id"`
}

func (c *Remote) Template(ctx context.Context, id string) (*content.Document, error) {
	return c.getDocument(ctx, "get template", "/templates/"+url.PathEscape(id), ErrTemplateNotFound)
}

func (c *Remote) CreateWorkingCopy(ctx context.Context, templateID, name string) (string, error) {
	body, err := json.Marshal(createCopyRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("marshal copy request: %w", err)
	}
	op := "create working copy"
	resp, err := c.do(ctx, op, http.MethodPost, "/templates/"+url.PathEscape(templateID)+"/copies", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(op, resp, ErrTemplateNotFound, http.StatusOK, http.StatusCreated); err != nil {
		return "", err
	}

	var out createCopyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode copy: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%s: empty copy id", op)
	}
	return out.ID, nil
}

func (c *Remote) WorkingCopy(ctx context.Context, copyID string) (*content.Document, error) {
	return c.getDocument(ctx, "get working copy", "/copies/"+url.PathEscape(copyID), ErrCopyNotFound)
}

func (c *Remote) UpdateCopy(ctx context.Context, copyID string, doc *content.Document) error {
	body, err := content.HTML(doc)
	if err != nil {
		return fmt.Errorf("encode copy: %w", err)
	}
	op := "update working copy"
	resp, err := c.do(ctx, op, http.MethodPut, "/copies/"+url.PathEscape(copyID), "text/html; charset=utf-8", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(op, resp, ErrCopyNotFound, http.StatusOK, http.StatusNoContent)
}

func (c *Remote) Export(ctx context.Context, copyID string, format Format) ([]byte, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
	op := "export working copy"
	p := "/copies/" + url.PathEscape(copyID) + "/export?format=" + url.QueryEscape(string(format))
	resp, err := c.do(ctx, op, http.MethodGet, p, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(op, resp, ErrCopyNotFound, http.StatusOK); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return data, nil
}

func (c *Remote) DeleteCopy(ctx context.Context, copyID string) error {
	op := "delete working copy"
	resp, err := c.do(ctx, op, http.MethodDelete, "/copies/"+url.PathEscape(copyID), "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(op, resp, ErrCopyNotFound, http.StatusOK, http.StatusNoContent)
}

func (c *Remote) getDocument(ctx context.Context, op, p string, notFound error) (*content.Document, error) {
	resp, err := c.do(ctx, op, http.MethodGet, p, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(op, resp, notFound, http.StatusOK); err != nil {
		return nil, err
	}
	doc, err := content.ParseHTML(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: parse: %w", op, err)
	}
	return doc, nil
}

func (c *Remote) do(ctx context.Context, op, method, p, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return nil, &TransientError{Op: op, Err: err}
	}
	return resp, nil
}

// checkStatus maps a response status onto the store's error kinds.
func checkStatus(op string, resp *http.Response, notFound error, ok ...int) error {
	for _, code := range ok {
		if resp.StatusCode == code {
			return nil
		}
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, notFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &QuotaError{Op: op, RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return &TransientError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(respBody))
}

func retryAfter(h string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// Close releases idle connections.
func (c *Remote) Close() {
	c.httpClient.CloseIdleConnections()
}
