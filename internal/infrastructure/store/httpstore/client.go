package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/billed-app/billed/internal/core/domain"
	"github.com/billed-app/billed/internal/infrastructure/resilience"
)

const jsonContentType = "application/json"

// Client talks to the bills store API. It implements ports.BillStore.
type Client struct {
	baseURL    string
	email      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string, options Options) *Client {
	httpClient := options.HTTPClient
	if httpClient == nil {
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
	}
}

// ForUser scopes List to the bills of one employee.
func (c *Client) ForUser(email string) *Client {
	scoped := *c
	scoped.email = email
	return &scoped
}

func (c *Client) List(ctx context.Context) ([]domain.Bill, error) {
	path := "/v1/bills"
	if c.email != "" {
		path += "?email=" + url.QueryEscape(c.email)
	}

	bills, err := resilience.Do(ctx, c.executor, "store.list", func(callCtx context.Context) ([]domain.Bill, error) {
		var out []domain.Bill
		if err := c.doJSON(callCtx, http.MethodGet, path, nil, "", &out, "list"); err != nil {
			return nil, err
		}
		return out, nil
	}, classifyStoreError)
	if err != nil {
		return nil, wrapKind("list", err)
	}
	if bills == nil {
		bills = []domain.Bill{}
	}
	return bills, nil
}

func (c *Client) Create(ctx context.Context, payload domain.UploadPayload, headers domain.StoreHeaders) (domain.CreateResult, error) {
	body, contentType, err := encodeUpload(payload)
	if err != nil {
		return domain.CreateResult{}, err
	}
	// Without NoContentType the store's default JSON header applies, as for
	// every other call.
	if !headers.NoContentType {
		contentType = jsonContentType
	}

	result, err := resilience.Do(ctx, c.executor, "store.create", func(callCtx context.Context) (domain.CreateResult, error) {
		var out domain.CreateResult
		if err := c.doJSON(callCtx, http.MethodPost, "/v1/bills", body, contentType, &out, "create"); err != nil {
			return domain.CreateResult{}, err
		}
		return out, nil
	}, classifyCreateError)
	if err != nil {
		return domain.CreateResult{}, wrapKind("create", err)
	}
	return result, nil
}

func (c *Client) Update(ctx context.Context, data []byte, selector string) (*domain.Bill, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "store update", fmt.Errorf("empty selector"))
	}
	path := "/v1/bills/" + url.PathEscape(selector)

	bill, err := resilience.Do(ctx, c.executor, "store.update", func(callCtx context.Context) (*domain.Bill, error) {
		var out domain.Bill
		if err := c.doJSON(callCtx, http.MethodPatch, path, data, jsonContentType, &out, "update"); err != nil {
			return nil, err
		}
		return &out, nil
	}, classifyStoreError)
	if err != nil {
		return nil, wrapKind("update", err)
	}
	return bill, nil
}

func encodeUpload(payload domain.UploadPayload) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("email", payload.Email); err != nil {
		return nil, "", fmt.Errorf("write email field: %w", err)
	}
	part, err := writer.CreatePart(filePartHeader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(payload.Content); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, contentType string, out any, operation string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Accept", jsonContentType)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("store %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func filePartHeader(payload domain.UploadPayload) textproto.MIMEHeader {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, payload.FileName))
	mimeType := payload.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)
	return header
}
