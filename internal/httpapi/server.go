package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"glowhost/internal/backend"
	"glowhost/internal/host"
	"glowhost/pkg/types"
)

// NewMux builds the HTTP surface in front of a Service: network lifecycle
// (add/remove/list/dag), synchronous inference, and the usual operational
// endpoints (healthz/readyz/metrics/swagger).
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(securityHeaders)
	r.Use(MetricsMiddleware)

	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	r.Post("/networks", addNetworkHandler(svc))
	r.Delete("/networks/{name}", removeNetworkHandler(svc))
	r.Get("/networks", listNetworksHandler(svc))
	r.Get("/networks/{name}", getNetworkHandler(svc))
	r.Get("/networks/{name}/dag", getNetworkDAGHandler(svc))
	r.Post("/networks/{name}/infer", inferHandler(svc))
	r.Post("/clear", clearHandler(svc))

	r.Get("/status", statusHandler(svc))
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler(svc))
	r.Handle("/metrics", promhttp.Handler())

	MountSwagger(r)

	return r
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// addNetworkRequest is the wire shape of POST /networks. CompilationContext
// mirrors host.CompilationContext field-for-field but with JSON tags and a
// string-typed QuantMode, since host.CompilationContext itself carries no
// wire format opinion.
type addNetworkRequest struct {
	Module             types.Module             `json:"module"`
	CompilationContext addNetworkCompilationCtx `json:"compilation_context"`
}

type addNetworkCompilationCtx struct {
	DumpFinalGraph                      bool              `json:"dump_final_graph,omitempty"`
	DelayAndRecordConstantModification  bool              `json:"delay_and_record_constant_modification,omitempty"`
	BackendSpecificOpts                 map[string]string `json:"backend_specific_opts,omitempty"`
	BackendSpecificNodeInfo             map[string]string `json:"backend_specific_node_info,omitempty"`
	QuantMode                           string            `json:"quant_mode,omitempty"`
	EnableP2P                           bool              `json:"enable_p2p,omitempty"`
	EnableDRT                           bool              `json:"enable_drt,omitempty"`
	CallDagOptimizer                    bool              `json:"call_dag_optimizer,omitempty"`
	SerializeCompiledDAG                bool              `json:"serialize_compiled_dag,omitempty"`
	SkipModuleStrip                     bool              `json:"skip_module_strip,omitempty"`
	VerboseCompile                      bool              `json:"verbose_compile,omitempty"`
}

func parseQuantMode(s string) (backend.QuantMode, error) {
	switch s {
	case "", "none":
		return backend.QuantModeNone, nil
	case "quantize":
		return backend.QuantModeQuantize, nil
	case "profile":
		return backend.QuantModeProfile, nil
	default:
		return backend.QuantModeNone, errors.New("unknown quant_mode: " + s)
	}
}

func addNetworkHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req addNetworkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		quantMode, err := parseQuantMode(req.CompilationContext.QuantMode)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		cc := host.CompilationContext{
			DumpFinalGraph:                      req.CompilationContext.DumpFinalGraph,
			DelayAndRecordConstantModification:  req.CompilationContext.DelayAndRecordConstantModification,
			BackendSpecificOpts:                 req.CompilationContext.BackendSpecificOpts,
			BackendSpecificNodeInfo:             req.CompilationContext.BackendSpecificNodeInfo,
			QuantMode:                           quantMode,
			EnableP2P:                           req.CompilationContext.EnableP2P,
			EnableDRT:                           req.CompilationContext.EnableDRT,
			CallDagOptimizer:                    req.CompilationContext.CallDagOptimizer,
			SerializeCompiledDAG:                req.CompilationContext.SerializeCompiledDAG,
			SkipModuleStrip:                     req.CompilationContext.SkipModuleStrip,
			VerboseCompile:                       req.CompilationContext.VerboseCompile,
		}
		if err := svc.AddNetwork(&req.Module, cc); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func removeNetworkHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := svc.RemoveNetwork(name); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listNetworksHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status().Networks)
	}
}

func getNetworkHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if !svc.NetworkAdded(name) {
			writeJSONError(w, http.StatusNotFound, "network not found: "+name)
			return
		}
		for _, n := range svc.Status().Networks {
			if n.Name == name {
				writeJSON(w, http.StatusOK, n)
				return
			}
		}
		writeJSONError(w, http.StatusNotFound, "network not found: "+name)
	}
}

func getNetworkDAGHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		dag, err := svc.GetNetworkDAG(name)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dag)
	}
}

func inferHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		logLevel := requestLogLevel(r)

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var execCtx types.ExecContext
		if err := json.NewDecoder(r.Body).Decode(&execCtx); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if execCtx.Outputs == nil {
			execCtx.Outputs = make(map[string]types.Tensor)
		}

		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if inferTimeout > 0 {
			var timeoutCancel context.CancelFunc
			ctx, timeoutCancel = context.WithTimeout(ctx, time.Duration(inferTimeout)*time.Second)
			defer timeoutCancel()
		}

		start := time.Now()
		err := svc.RunNetworkBlocking(ctx, name, &execCtx)
		if logLevel >= LevelInfo && zlog != nil {
			ev := zlog.Info()
			if logLevel >= LevelDebug {
				ev = zlog.Debug()
			}
			ev.Str("network", name).Dur("took", time.Since(start)).Err(err).Msg("infer")
		}
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				writeJSONError(w, http.StatusGatewayTimeout, "infer timed out")
				return
			}
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, execCtx)
	}
}

func clearHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ClearHost(); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func statusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func readyzHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !svc.Ready() {
			writeJSONError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps a Service error to an HTTP status, using the
// StatusCode a domain error carries (hosterr's kinds all implement
// HTTPError) and falling back to 500 for anything else.
func writeServiceError(w http.ResponseWriter, err error) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		writeJSONError(w, httpErr.StatusCode(), err.Error())
		return
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
}
