package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/KaramelBytes/flowloom-cli/internal/dataset"
	"github.com/KaramelBytes/flowloom-cli/internal/flow"
	"github.com/KaramelBytes/flowloom-cli/internal/logger"
	"github.com/KaramelBytes/flowloom-cli/internal/narrative"
	"github.com/KaramelBytes/flowloom-cli/internal/render"
)

type columnsResponse struct {
	Name    string               `json:"name"`
	Columns []dataset.ColumnInfo `json:"columns"`
	Rows    int                  `json:"rows"`
}

type flowResponse struct {
	render.Document
	Title  string         `json:"title"`
	Trace  render.Trace   `json:"trace"`
	Layout map[string]any `json:"layout"`
}

type narrativeResponse struct {
	Kind         string `json:"kind"`
	Content      string `json:"content"`
	Subject      string `json:"subject,omitempty"`
	Body         string `json:"body,omitempty"`
	Commentary   string `json:"commentary,omitempty"`
	Model        string `json:"model,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	PromptTokens int    `json:"prompt_tokens,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and a {"error": ...} body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var re *requestError
	switch {
	case errors.As(err, &re):
		status = re.status
	case errors.Is(err, flow.ErrInvalidInput), errors.Is(err, narrative.ErrEmptyGraph):
		status = http.StatusBadRequest
	case errors.Is(err, dataset.ErrUnsupported):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	level := logger.Warn
	if status >= 500 {
		level = logger.Error
	}
	level("request failed", "path", r.URL.Path, "status", status, "request_id", middleware.GetReqID(r.Context()), "err", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	t, _, err := s.parseUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, columnsResponse{Name: t.Name, Columns: t.Describe(), Rows: t.Len()})
}

// build parses the upload and builds the graph.
func (s *Server) build(w http.ResponseWriter, r *http.Request) (*flow.Graph, flowRequest, error) {
	t, req, err := s.parseUpload(w, r)
	if err != nil {
		return nil, req, err
	}
	spec, err := s.spec(req)
	if err != nil {
		return nil, req, err
	}
	g, err := flow.Build(t, spec)
	if err != nil {
		return nil, req, err
	}
	logger.Debug("graph built", "mode", g.Mode, "nodes", len(g.Labels), "links", len(g.Edges), "rows_used", g.RowsUsed)
	return g, req, nil
}

func titleFor(g *flow.Graph, req flowRequest) string {
	if req.Title != "" {
		return req.Title
	}
	return render.DefaultTitle(g)
}

func (s *Server) handleFlow(w http.ResponseWriter, r *http.Request) {
	g, req, err := s.build(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	title := titleFor(g, req)
	writeJSON(w, http.StatusOK, flowResponse{
		Document: render.NewDocument(g, true),
		Title:    title,
		Trace:    render.SankeyTrace(g),
		Layout:   render.SankeyLayout(title),
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	g, req, err := s.build(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := uuid.NewString()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="sankey-%s.html"`, id[:8]))
	if err := render.Write(w, g, render.HTML, render.Options{Title: titleFor(g, req), ChartID: "sankey-" + id}); err != nil {
		logger.Error("render chart", "err", err)
	}
}

func (s *Server) handleNarrative(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Narrator == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "narrative generation is not configured (set an API key or provider)"})
		return
	}
	g, req, err := s.build(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.NarrativeTimeout)
	defer cancel()

	kind := req.Kind
	if kind == "" {
		kind = string(narrative.KindCommentary)
	}
	var out narrativeResponse
	switch kind {
	case string(narrative.KindCommentary):
		res, err := s.cfg.Narrator.Commentary(ctx, g)
		if err != nil {
			writeError(w, r, upstream(err))
			return
		}
		out = fromResult(res)
	case string(narrative.KindEmail), "both":
		commentary := ""
		if kind == "both" {
			res, err := s.cfg.Narrator.Commentary(ctx, g)
			if err != nil {
				writeError(w, r, upstream(err))
				return
			}
			commentary = res.Content
		}
		res, err := s.cfg.Narrator.Email(ctx, g, commentary)
		if err != nil {
			writeError(w, r, upstream(err))
			return
		}
		out = fromResult(res)
		e := narrative.ParseEmail(res.Content)
		out.Subject, out.Body = e.Subject, e.Body
		out.Commentary = commentary
		out.Kind = kind
	}
	writeJSON(w, http.StatusOK, out)
}

func fromResult(res *narrative.Result) narrativeResponse {
	return narrativeResponse{
		Kind:         string(res.Kind),
		Content:      res.Content,
		Model:        res.Model,
		RequestID:    res.RequestID,
		PromptTokens: res.PromptTokens,
	}
}

// upstream marks narrator failures as 502 unless they are caller errors.
func upstream(err error) error {
	if errors.Is(err, narrative.ErrEmptyGraph) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, narrative.ErrNoRuntime) {
		return &requestError{status: http.StatusServiceUnavailable, err: err}
	}
	return &requestError{status: http.StatusBadGateway, err: err}
}
