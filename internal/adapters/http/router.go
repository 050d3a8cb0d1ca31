package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/billed-app/billed/internal/config"
	"github.com/billed-app/billed/internal/core/domain"
	"github.com/billed-app/billed/internal/core/ports"
	"github.com/billed-app/billed/internal/observability/metrics"
)

const (
	serviceName        = "api"
	maxJSONBodyBytes   = 1 << 20
	multipartMemory    = 8 << 20
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultProofMIME   = "application/octet-stream"
	exportFileName     = "notes-de-frais.xlsx"
	defaultUploadLimit = 10 << 20
)

type Router struct {
	cfg      config.Config
	bills    ports.BillStoreService
	exporter ports.BillExportService
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	bills ports.BillStoreService,
	exporter ports.BillExportService,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		bills:    bills,
		exporter: exporter,
		metrics:  httpMetrics,
	}
}

// Handler builds the full middleware chain. It fails only when the embedded
// OpenAPI contract cannot be loaded.
func (rt *Router) Handler() (http.Handler, error) {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", rt.healthz).Methods(http.MethodGet)
	r.HandleFunc("/openapi.yaml", rt.openAPI).Methods(http.MethodGet)
	if rt.metrics != nil {
		r.Handle("/metrics", rt.metrics.Handler()).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/bills", rt.listBills).Methods(http.MethodGet)
	v1.HandleFunc("/bills", rt.createBill).Methods(http.MethodPost)
	v1.HandleFunc("/bills/export.xlsx", rt.exportBills).Methods(http.MethodGet)
	v1.HandleFunc("/bills/{id}", rt.getBill).Methods(http.MethodGet)
	v1.HandleFunc("/bills/{id}", rt.updateBill).Methods(http.MethodPatch)
	v1.HandleFunc("/bills/{id}/file", rt.getProof).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var handler http.Handler = r
	if rt.cfg.OpenAPIValidation {
		contract, err := loadOpenAPIRouter(context.Background())
		if err != nil {
			return nil, err
		}
		handler = openAPIValidationMiddleware(contract, handler)
	}
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler, nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(OpenAPISpec())
}

func (rt *Router) listBills(w http.ResponseWriter, r *http.Request) {
	bills, err := rt.bills.List(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		rt.writeDomainError(w, r, "list bills", err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

func (rt *Router) createBill(w http.ResponseWriter, r *http.Request) {
	limit := rt.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = defaultUploadLimit
	}
	if r.ContentLength > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "proof exceeds upload limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		status := mapErrorToHTTPStatus(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		writeError(w, status, "invalid multipart body")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	result, err := rt.bills.Create(
		r.Context(),
		r.FormValue("email"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.writeDomainError(w, r, "create bill", err)
		return
	}
	if rt.metrics != nil {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")
		rt.metrics.RecordBillCreated(serviceName, ext, fileHeader.Size)
	}
	writeJSON(w, http.StatusCreated, result)
}

func (rt *Router) getBill(w http.ResponseWriter, r *http.Request) {
	bill, err := rt.bills.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		rt.writeDomainError(w, r, "get bill", err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (rt *Router) updateBill(w http.ResponseWriter, r *http.Request) {
	var bill domain.Bill
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	if err := decoder.Decode(&bill); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	updated, err := rt.bills.Update(r.Context(), mux.Vars(r)["id"], bill)
	if err != nil {
		rt.writeDomainError(w, r, "update bill", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordBillUpdated(serviceName, string(updated.Status))
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *Router) getProof(w http.ResponseWriter, r *http.Request) {
	rc, bill, err := rt.bills.OpenProof(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		rt.writeDomainError(w, r, "open proof", err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(bill.FileName)))
	if contentType == "" {
		contentType = defaultProofMIME
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": bill.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("proof_stream_failed", "request_id", requestIDFromContext(r.Context()), "bill_id", bill.ID, "error", err)
	}
}

func (rt *Router) exportBills(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := rt.exporter.Export(r.Context(), r.URL.Query().Get("email"), &buf)
	if rt.metrics != nil {
		rt.metrics.RecordExport(serviceName, err)
	}
	if err != nil {
		rt.writeDomainError(w, r, "export bills", err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"operation", operation,
			"error", err,
		)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
