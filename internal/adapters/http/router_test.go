package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/billed-app/billed/internal/config"
	"github.com/billed-app/billed/internal/core/domain"
	"github.com/billed-app/billed/internal/observability/metrics"
)

type billServiceFake struct {
	createErr  error
	updateErr  error
	getErr     error
	proof      string
	updates    int
	lastCreate struct {
		email, filename, mimeType, body string
	}
	lastUpdate domain.Bill
	lastEmail  string
}

func (f *billServiceFake) Create(_ context.Context, email, filename, mimeType string, body io.Reader) (domain.CreateResult, error) {
	if f.createErr != nil {
		return domain.CreateResult{}, f.createErr
	}
	raw, _ := io.ReadAll(body)
	f.lastCreate.email, f.lastCreate.filename, f.lastCreate.mimeType, f.lastCreate.body = email, filename, mimeType, string(raw)
	return domain.CreateResult{FileURL: "http://localhost:8080/v1/bills/1234/file", Key: "1234"}, nil
}

func (f *billServiceFake) Update(_ context.Context, id string, bill domain.Bill) (*domain.Bill, error) {
	f.updates++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	bill.ID = id
	f.lastUpdate = bill
	return &bill, nil
}

func (f *billServiceFake) List(_ context.Context, email string) ([]domain.Bill, error) {
	f.lastEmail = email
	return []domain.Bill{{ID: "1", Email: email, Status: domain.BillStatusPending}}, nil
}

func (f *billServiceFake) GetByID(_ context.Context, id string) (*domain.Bill, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &domain.Bill{ID: id, FileName: "facture.png", Status: domain.BillStatusAccepted}, nil
}

func (f *billServiceFake) OpenProof(ctx context.Context, id string) (io.ReadCloser, *domain.Bill, error) {
	bill, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return io.NopCloser(strings.NewReader(f.proof)), bill, nil
}

type exporterFake struct {
	err error
}

func (f exporterFake) Export(_ context.Context, _ string, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := w.Write([]byte("PK-xlsx"))
	return err
}

func testConfig() config.Config {
	return config.Config{
		MaxUploadBytes:    1 << 20,
		OpenAPIValidation: true,
	}
}

func newTestHandler(t *testing.T, cfg config.Config, svc *billServiceFake, exp exporterFake) http.Handler {
	t.Helper()
	handler, err := NewRouter(cfg, svc, exp, metrics.NewHTTPServerMetrics(serviceName)).Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return handler
}

func multipartProof(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("email", "a@a"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte(content))
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestCreateBillReturns201WithFileURLAndKey(t *testing.T) {
	svc := &billServiceFake{}
	handler := newTestHandler(t, testConfig(), svc, exporterFake{})

	body, contentType := multipartProof(t, "facture.jpg", "jpeg-bytes")
	req := httptest.NewRequest(http.MethodPost, "/v1/bills", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var result domain.CreateResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Key != "1234" || result.FileURL == "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if svc.lastCreate.email != "a@a" || svc.lastCreate.filename != "facture.jpg" || svc.lastCreate.body != "jpeg-bytes" {
		t.Fatalf("unexpected create call %+v", svc.lastCreate)
	}
}

func TestCreateBillMapsInvalidInputTo400(t *testing.T) {
	svc := &billServiceFake{createErr: domain.WrapError(domain.ErrInvalidInput, "create bill", errors.New("unsupported proof extension"))}
	handler := newTestHandler(t, testConfig(), svc, exporterFake{})

	body, contentType := multipartProof(t, "facture.pdf", "%PDF")
	req := httptest.NewRequest(http.MethodPost, "/v1/bills", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestCreateBillRejectsOversizedUpload(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 64
	handler := newTestHandler(t, cfg, &billServiceFake{}, exporterFake{})

	body, contentType := multipartProof(t, "facture.jpg", strings.Repeat("x", 4096))
	req := httptest.NewRequest(http.MethodPost, "/v1/bills", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestUpdateBillReturns404ForUnknownBill(t *testing.T) {
	svc := &billServiceFake{updateErr: domain.WrapError(domain.ErrBillNotFound, "update bill", errors.New("id=missing"))}
	handler := newTestHandler(t, testConfig(), svc, exporterFake{})

	req := httptest.NewRequest(http.MethodPatch, "/v1/bills/missing", strings.NewReader(`{"name":"train","status":"pending"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestUpdateBillAcceptsNullAmount(t *testing.T) {
	svc := &billServiceFake{}
	handler := newTestHandler(t, testConfig(), svc, exporterFake{})

	req := httptest.NewRequest(http.MethodPatch, "/v1/bills/1234", strings.NewReader(`{"name":"train","amount":null,"pct":20,"status":"pending"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if svc.lastUpdate.ID != "1234" || svc.lastUpdate.Amount != nil || svc.lastUpdate.Pct != 20 {
		t.Fatalf("unexpected update %+v", svc.lastUpdate)
	}
}

func TestUpdateBillRejectsContractViolationBeforeService(t *testing.T) {
	svc := &billServiceFake{}
	handler := newTestHandler(t, testConfig(), svc, exporterFake{})

	req := httptest.NewRequest(http.MethodPatch, "/v1/bills/1234", strings.NewReader(`{"amount":"douze"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if svc.updates != 0 {
		t.Fatalf("service must not be called on contract violation")
	}
}

func TestListBillsPassesEmailFilter(t *testing.T) {
	svc := &billServiceFake{}
	handler := newTestHandler(t, testConfig(), svc, exporterFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/bills?email=a@a", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if svc.lastEmail != "a@a" {
		t.Fatalf("expected email filter a@a, got %q", svc.lastEmail)
	}
}

func TestGetProofStreamsFileWithContentType(t *testing.T) {
	svc := &billServiceFake{proof: "png-bytes"}
	handler := newTestHandler(t, testConfig(), svc, exporterFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/bills/1234/file", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %q", res.Header().Get("Content-Type"))
	}
	if res.Body.String() != "png-bytes" {
		t.Fatalf("unexpected body %q", res.Body.String())
	}
}

func TestExportReturnsSpreadsheet(t *testing.T) {
	handler := newTestHandler(t, testConfig(), &billServiceFake{}, exporterFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/bills/export.xlsx", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("unexpected content type %q", res.Header().Get("Content-Type"))
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), exportFileName) {
		t.Fatalf("unexpected disposition %q", res.Header().Get("Content-Disposition"))
	}
}

func TestExportMapsTemporaryFailureTo503(t *testing.T) {
	exp := exporterFake{err: domain.WrapError(domain.ErrTemporary, "export", errors.New("db down"))}
	handler := newTestHandler(t, testConfig(), &billServiceFake{}, exp)

	req := httptest.NewRequest(http.MethodGet, "/v1/bills/export.xlsx", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	cfg := testConfig()
	cfg.APIRateLimitRPS = 1
	cfg.APIRateLimitBurst = 1
	handler := newTestHandler(t, cfg, &billServiceFake{}, exporterFake{})

	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, httptest.NewRequest(http.MethodGet, "/v1/bills", nil))
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, httptest.NewRequest(http.MethodGet, "/v1/bills", nil))
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}

	health := httptest.NewRecorder()
	handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("healthz must bypass the limiter, got %d", health.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	handler := newTestHandler(t, testConfig(), &billServiceFake{}, exporterFake{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := map[error]int{
		domain.ErrInvalidInput:       http.StatusBadRequest,
		domain.ErrUnauthorized:       http.StatusUnauthorized,
		domain.ErrBillNotFound:       http.StatusNotFound,
		domain.ErrSubmissionInFlight: http.StatusConflict,
		domain.ErrTemporary:          http.StatusServiceUnavailable,
		errors.New("boom"):           http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := mapErrorToHTTPStatus(domain.WrapError(err, "op", errors.New("x"))); got != want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", err, got, want)
		}
	}
}
