package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/aretw0/kiln/internal/presentation/graph"
	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/plan"
	"github.com/aretw0/kiln/pkg/schema"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// APIVersion is the version of the read-only inspection API.
const APIVersion = "0.1.0"

// Engine defines the part of the kiln engine the server inspects.
type Engine interface {
	Root() string
	Groups() []string
	Vars() map[string]any
	Types() schema.Schema
	Build(target string) (*plan.DAG, error)
	Ninja(w io.Writer, target string, overrides map[string]string) error
}

// Server serves plan inspection endpoints. It never executes the plan.
type Server struct {
	Engine  Engine
	Version string
	// Metrics, when set, is mounted on /metrics.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Vertex is the JSON view of one flattened step.
type Vertex struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Group    string   `json:"group"`
	Kind     string   `json:"kind"`
	Action   string   `json:"action,omitempty"`
	Deps     []int    `json:"deps,omitempty"`
	FreshKey string   `json:"fresh_key,omitempty"`
	Guarded  bool     `json:"guarded,omitempty"`
	Outputs  []string `json:"outputs,omitempty"`
}

// PlanResponse is the body of GET /plan/{target}.
type PlanResponse struct {
	Root   string   `json:"root"`
	Groups []string `json:"groups"`
	Steps  []Vertex `json:"steps"`
}

// NewHandler creates the HTTP handler for s.
func NewHandler(s *Server) http.Handler {
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, map[string]string{"status": "ok"})
	})
	r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, map[string]string{
			"app":         "kiln-http",
			"version":     s.Version,
			"api_version": APIVersion,
		})
	})
	r.Get("/groups", s.GetGroups)
	r.Get("/vars", s.GetVars)
	r.Get("/plan/{target}", s.GetPlan)
	r.Get("/graph/{target}", s.GetGraph)
	r.Get("/ninja/{target}", s.GetNinja)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}
	return r
}

// GetGroups handles GET /groups.
func (s *Server) GetGroups(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"root":   s.Engine.Root(),
		"groups": s.Engine.Groups(),
	})
}

// GetVars handles GET /vars with the default variables and their declared types.
func (s *Server) GetVars(w http.ResponseWriter, r *http.Request) {
	types := s.Engine.Types()
	if types == nil {
		types = schema.Schema{}
	}
	s.writeJSON(w, map[string]any{
		"vars":  s.Engine.Vars(),
		"types": types,
	})
}

// GetPlan handles GET /plan/{target}.
func (s *Server) GetPlan(w http.ResponseWriter, r *http.Request) {
	dag, ok := s.build(w, r)
	if !ok {
		return
	}
	resp := PlanResponse{Root: dag.Root(), Groups: dag.Groups()}
	for _, v := range dag.Order() {
		view := Vertex{
			ID:       v.ID,
			Name:     v.Name,
			Group:    v.Group,
			Kind:     "deferred",
			FreshKey: v.Step.FreshKey,
			Guarded:  v.Step.Guard != nil,
		}
		if v.Step.Static() {
			view.Kind = string(v.Step.Action.Kind())
			view.Action = v.Step.Action.Describe()
		}
		if cmd, ok := v.Step.Command(); ok {
			view.Outputs = cmd.Outputs
		}
		for _, d := range dag.Deps(v) {
			view.Deps = append(view.Deps, d.ID)
		}
		sort.Ints(view.Deps)
		resp.Steps = append(resp.Steps, view)
	}
	s.writeJSON(w, resp)
}

// GetGraph handles GET /graph/{target} with a Mermaid flowchart.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	dag, ok := s.build(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, graph.GenerateMermaid(dag, nil))
}

// GetNinja handles GET /ninja/{target}. Query parameters override plan variables.
func (s *Server) GetNinja(w http.ResponseWriter, r *http.Request) {
	overrides := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			overrides[k] = v[len(v)-1]
		}
	}

	var buf bytes.Buffer
	if err := s.Engine.Ninja(&buf, chi.URLParam(r, "target"), overrides); err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) build(w http.ResponseWriter, r *http.Request) (*plan.DAG, bool) {
	dag, err := s.Engine.Build(chi.URLParam(r, "target"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return dag, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var planErr *domain.PlanError
	var serErr *domain.SerializationError
	switch {
	case errors.Is(err, domain.ErrUnknownGroup):
		status = http.StatusNotFound
	case errors.As(err, &planErr), errors.As(err, &serErr):
		status = http.StatusUnprocessableEntity
	}
	http.Error(w, fmt.Sprintf("%v", err), status)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("encode response", "err", err)
	}
}
