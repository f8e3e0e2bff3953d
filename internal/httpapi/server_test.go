package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"glowhost/internal/host"
	"glowhost/internal/hosterr"
	"glowhost/pkg/types"
)

// mockService is a hand-rolled Service stand-in; no mocking library is
// pulled in for an eight-method interface.
type mockService struct {
	addErr       error
	removeErr    error
	clearErr     error
	added        map[string]bool
	dag          *types.CompiledDAG
	dagErr       error
	runErr       error
	status       types.HostStatus
	ready        bool
	lastModule   *types.Module
	lastCC       host.CompilationContext
}

func (m *mockService) AddNetwork(module *types.Module, cc host.CompilationContext) error {
	m.lastModule = module
	m.lastCC = cc
	return m.addErr
}
func (m *mockService) RemoveNetwork(name string) error { return m.removeErr }
func (m *mockService) NetworkAdded(name string) bool    { return m.added[name] }
func (m *mockService) GetNetworkDAG(name string) (*types.CompiledDAG, error) {
	return m.dag, m.dagErr
}
func (m *mockService) RunNetworkBlocking(ctx context.Context, name string, execCtx *types.ExecContext) error {
	if m.runErr == nil {
		execCtx.Outputs["out"] = types.Tensor{}
	}
	return m.runErr
}
func (m *mockService) Status() types.HostStatus { return m.status }
func (m *mockService) Ready() bool               { return m.ready }
func (m *mockService) ClearHost() error          { return m.clearErr }

func TestAddNetworkHandler(t *testing.T) {
	svc := &mockService{added: map[string]bool{}}
	h := NewMux(svc)

	body := `{"module":{"functions":[{"name":"f","nodes":[]}]},"compilation_context":{"quant_mode":"quantize"}}`
	req := httptest.NewRequest(http.MethodPost, "/networks", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastModule == nil || len(svc.lastModule.Functions) != 1 {
		t.Fatalf("expected module to be decoded, got %+v", svc.lastModule)
	}
}

func TestAddNetworkHandlerBadJSON(t *testing.T) {
	svc := &mockService{}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodPost, "/networks", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAddNetworkHandlerMapsDomainError(t *testing.T) {
	svc := &mockService{addErr: hosterr.NetBusy("dup")}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodPost, "/networks", bytes.NewBufferString(`{"module":{"functions":[]}}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRemoveNetworkHandler(t *testing.T) {
	svc := &mockService{}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodDelete, "/networks/f", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestRemoveNetworkHandlerBusy(t *testing.T) {
	svc := &mockService{removeErr: hosterr.NetBusy("f")}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodDelete, "/networks/f", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestGetNetworkDAGHandler(t *testing.T) {
	dag := &types.CompiledDAG{FunctionName: "f", Root: &types.DagNode{Name: "root"}}
	svc := &mockService{dag: dag}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodGet, "/networks/f/dag", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got types.CompiledDAG
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.FunctionName != "f" {
		t.Fatalf("expected function_name f, got %q", got.FunctionName)
	}
}

func TestGetNetworkDAGHandlerNotFound(t *testing.T) {
	svc := &mockService{dagErr: hosterr.NetNotFound("missing")}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodGet, "/networks/missing/dag", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestInferHandler(t *testing.T) {
	svc := &mockService{}
	h := NewMux(svc)
	body := `{"inputs":{}}`
	req := httptest.NewRequest(http.MethodPost, "/networks/f/infer", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got types.ExecContext
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := got.Outputs["out"]; !ok {
		t.Fatalf("expected output populated, got %+v", got.Outputs)
	}
}

func TestInferHandlerNetworkNotFound(t *testing.T) {
	svc := &mockService{runErr: hosterr.NetNotFound("f")}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodPost, "/networks/f/infer", bytes.NewBufferString(`{"inputs":{}}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestInferHandlerBadJSON(t *testing.T) {
	svc := &mockService{}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodPost, "/networks/f/infer", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.HostStatus{MaxActiveRequests: 4, MaxQueueSize: 64}}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got types.HostStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.MaxActiveRequests != 4 {
		t.Fatalf("expected MaxActiveRequests 4, got %d", got.MaxActiveRequests)
	}
}

func TestHealthz(t *testing.T) {
	h := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	h := NewMux(&mockService{ready: true})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyzNotReady(t *testing.T) {
	h := NewMux(&mockService{ready: false})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestClearHandler(t *testing.T) {
	svc := &mockService{}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodPost, "/clear", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestClearHandlerError(t *testing.T) {
	svc := &mockService{clearErr: hosterr.NetBusy("f")}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodPost, "/clear", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
