package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Layr-Labs/kissyface-enclave/internal/metrics"
	"github.com/Layr-Labs/kissyface-enclave/internal/service"
	"github.com/Layr-Labs/kissyface-enclave/pkg/attest"
	"github.com/Layr-Labs/kissyface-enclave/pkg/auth"
	"github.com/Layr-Labs/kissyface-enclave/pkg/crypto"
	"github.com/Layr-Labs/kissyface-enclave/pkg/types"
)

const (
	processDataPath = "/process_data"
	healthCheckPath = "/health_check"
	keyInfoPath     = "/get_key_info"
	metricsPath     = "/metrics"

	maxRequestBytes = 1 << 20 // 1 MiB
)

type processor interface {
	Process(ctx context.Context, req types.ImageGenRequest) (*types.SignedResponse[types.ImageGenResponse], error)
}

type keyInfoSource interface {
	Get() (*types.SignedResponse[types.KeyInfo], error)
}

type handler struct {
	logger  *zap.Logger
	svc     processor
	keyInfo keyInfoSource
	address crypto.Address
	metrics *metrics.Metrics
}

func (h *handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(processDataPath, h.handleProcessData)
	mux.HandleFunc(healthCheckPath, h.handleHealthCheck)
	mux.HandleFunc(keyInfoPath, h.handleKeyInfo)
	mux.Handle(metricsPath, h.metrics.Handler())
	return mux
}

func (h *handler) handleProcessData(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		h.metrics.ObserveRequest(strconv.Itoa(rec.status), time.Since(start))
	}()

	if r.Method != http.MethodPost {
		writeError(rec, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	body, err := readBodyLimited(r.Body, maxRequestBytes)
	if err != nil {
		writeError(rec, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	var req types.ProcessDataRequest[types.ImageGenRequest]
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(rec, http.StatusBadRequest, "invalid_request", "invalid JSON request")
		return
	}

	resp, err := h.svc.Process(r.Context(), req.Payload)
	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			h.logger.Sugar().Errorw("process_data failed", "code", code, "error", err)
			writeError(rec, status, code, http.StatusText(status))
			return
		}
		h.logger.Sugar().Infow("process_data rejected", "code", code, "error", err)
		writeError(rec, status, code, err.Error())
		return
	}

	writeJSON(rec, http.StatusOK, resp)
}

func (h *handler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ok", Address: h.address.String()})
}

func (h *handler) handleKeyInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	doc, err := h.keyInfo.Get()
	if err != nil {
		h.logger.Sugar().Errorw("key info error", "error", err)
		writeError(w, http.StatusInternalServerError, "key_info_error", "failed to issue key info")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// classify maps a Process error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrMalformedSignature),
		errors.Is(err, auth.ErrUnsupportedScheme),
		errors.Is(err, auth.ErrInvalidKeyMaterial):
		return http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, auth.ErrSignatureMismatch):
		return http.StatusUnauthorized, "signature_mismatch"
	case errors.Is(err, auth.ErrStaleDate):
		return http.StatusUnauthorized, "stale_date"
	case errors.Is(err, service.ErrUnknownLora):
		return http.StatusBadRequest, "unknown_lora"
	case errors.Is(err, service.ErrInsufficientCredit):
		return http.StatusPaymentRequired, "insufficient_credit"
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, service.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, attest.ErrClock):
		return http.StatusInternalServerError, "clock_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func readBodyLimited(r io.Reader, max int64) ([]byte, error) {
	lr := io.LimitReader(r, max+1)
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > max {
		return nil, fmt.Errorf("body too large (max %d bytes)", max)
	}
	return b, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	var e apiError
	e.Error.Code = code
	e.Error.Message = msg
	writeJSON(w, status, e)
}
