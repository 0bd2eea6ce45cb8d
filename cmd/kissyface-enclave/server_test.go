package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Layr-Labs/kissyface-enclave/internal/metrics"
	"github.com/Layr-Labs/kissyface-enclave/internal/service"
	"github.com/Layr-Labs/kissyface-enclave/pkg/attest"
	"github.com/Layr-Labs/kissyface-enclave/pkg/auth"
	"github.com/Layr-Labs/kissyface-enclave/pkg/crypto"
	"github.com/Layr-Labs/kissyface-enclave/pkg/intent"
	"github.com/Layr-Labs/kissyface-enclave/pkg/types"
)

type stubProcessor struct {
	keys *crypto.KeyPair
	got  types.ImageGenRequest
	err  error
}

func (s *stubProcessor) Process(_ context.Context, req types.ImageGenRequest) (*types.SignedResponse[types.ImageGenResponse], error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return attest.SignResponse(s.keys, types.ImageGenResponse{Image: "aW1n", Prompt: req.Prompt, Seed: req.Seed}, 1000, intent.ScopeProcessData)
}

type testServer struct {
	*httptest.Server
	keys     *crypto.KeyPair
	proc     *stubProcessor
	registry *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	keys, err := crypto.KeyPairFromSeed(make([]byte, 32))
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	proc := &stubProcessor{keys: keys}
	h := &handler{
		logger:  zaptest.NewLogger(t),
		svc:     proc,
		keyInfo: service.NewKeyInfoSource(keys, time.Minute, nil),
		address: keys.Address(),
		metrics: metrics.New(reg),
	}
	srv := httptest.NewServer(h.routes())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, keys: keys, proc: proc, registry: reg}
}

func (s *testServer) post(t *testing.T, body string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	resp, err := http.Post(s.URL+processDataPath, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestProcessData_OK(t *testing.T) {
	s := newTestServer(t)
	resp, out := s.post(t, `{"payload":{"prompt":"a red torch","seed":42,"width":1280,"height":832,"steps":33,"lora_path":"x","lora_scale":1,"trigger_prefix":"Icon Kit","signature":"sig","date":"2024-12-21"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, out, "payload")
	require.Contains(t, out, "timestamp_ms")
	require.Contains(t, out, "signature")

	require.Equal(t, "a red torch", s.proc.got.Prompt)
	require.Equal(t, "Icon Kit", *s.proc.got.TriggerPrefix)
	require.Nil(t, s.proc.got.TriggerSuffix)

	var signed types.SignedResponse[types.ImageGenResponse]
	raw, err := json.Marshal(out)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &signed))
	require.NoError(t, attest.VerifyResponse(s.keys.PublicKey(), intent.ScopeProcessData, &signed))

	require.NoError(t, testutil.GatherAndCompare(s.registry, strings.NewReader(`
# HELP kissyface_requests_total process_data requests by HTTP status
# TYPE kissyface_requests_total counter
kissyface_requests_total{status="200"} 1
`), "kissyface_requests_total"))
}

func TestProcessData_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: invalid base64", auth.ErrMalformedSignature), http.StatusBadRequest, "invalid_signature"},
		{auth.ErrUnsupportedScheme, http.StatusBadRequest, "invalid_signature"},
		{auth.ErrInvalidKeyMaterial, http.StatusBadRequest, "invalid_signature"},
		{fmt.Errorf("%w: digest x", auth.ErrSignatureMismatch), http.StatusUnauthorized, "signature_mismatch"},
		{auth.ErrStaleDate, http.StatusUnauthorized, "stale_date"},
		{service.ErrUnknownLora, http.StatusBadRequest, "unknown_lora"},
		{service.ErrInsufficientCredit, http.StatusPaymentRequired, "insufficient_credit"},
		{service.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{fmt.Errorf("%w: together down", service.ErrUpstream), http.StatusBadGateway, "upstream_error"},
		{fmt.Errorf("%w: rtc", attest.ErrClock), http.StatusInternalServerError, "clock_error"},
		{errors.New("other"), http.StatusInternalServerError, "internal_error"},
	}
	s := newTestServer(t)
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			s.proc.err = tc.err
			resp, out := s.post(t, `{"payload":{"prompt":"p"}}`)
			require.Equal(t, tc.status, resp.StatusCode)

			var e apiError
			require.NoError(t, json.Unmarshal(mustJSON(t, out), &e))
			require.Equal(t, tc.code, e.Error.Code)
			if tc.status >= http.StatusInternalServerError {
				require.NotContains(t, e.Error.Message, tc.err.Error())
			}
		})
	}
}

func TestProcessData_BadRequests(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.post(t, `{"payload":`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	big := `{"payload":{"prompt":"` + strings.Repeat("a", maxRequestBytes) + `"}}`
	resp, out := s.post(t, big)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(out["error"]), "invalid_body")

	r, err := http.Get(s.URL + processDataPath)
	require.NoError(t, err)
	r.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, r.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + healthCheckPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var h types.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	require.Equal(t, "ok", h.Status)
	require.Equal(t, s.keys.Address().String(), h.Address)
}

func TestKeyInfo(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + keyInfoPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc types.SignedResponse[types.KeyInfo]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	require.Equal(t, s.keys.PublicKey(), doc.Payload.PublicKey)
	require.NoError(t, attest.VerifyKeyInfo(&doc, time.UnixMilli(int64(doc.Payload.IssuedAtMs))))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + metricsPath)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoadKeys(t *testing.T) {
	a, err := loadKeys("")
	require.NoError(t, err)
	b, err := loadKeys("")
	require.NoError(t, err)
	require.NotEqual(t, a.Address(), b.Address())

	const mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	c, err := loadKeys(mnemonic)
	require.NoError(t, err)
	d, err := loadKeys(mnemonic)
	require.NoError(t, err)
	require.Equal(t, c.Address(), d.Address())

	_, err = loadKeys("not a mnemonic")
	require.Error(t, err)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
