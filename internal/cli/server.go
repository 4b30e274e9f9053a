package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/framegraph/pkg/buildinfo"
	"github.com/matzehuels/framegraph/pkg/engine"
	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/eval"
	"github.com/matzehuels/framegraph/pkg/nodes"
	"github.com/matzehuels/framegraph/pkg/project"
	"github.com/matzehuels/framegraph/pkg/store"
	"github.com/matzehuels/framegraph/pkg/viewer"
)

// server exposes stored projects over HTTP.
type server struct {
	store   store.Store
	logger  *log.Logger
	eval    eval.Options
	timeout time.Duration // per-render evaluation timeout; zero is unbounded
}

// newRouter mounts the project API, health check and metrics handler.
func newRouter(s *server, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Use(middleware.SetHeader("Server", buildinfo.UserAgent()))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": buildinfo.Get()})
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", s.listProjects)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.getProject)
			r.Get("/dot", s.projectDOT)
			r.Get("/render/{viewer}", s.renderViewer)
		})
	})
	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := s.logger.With("request_id", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(withLogger(r.Context(), l)))
		l.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "elapsed", time.Since(start))
	})
}

func (s *server) listProjects(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": names})
}

func (s *server) load(r *http.Request) (*project.Document, error) {
	ctx := r.Context()
	var doc *project.Document
	err := store.RetryWithBackoff(ctx, func() error {
		var err error
		doc, err = s.store.Load(ctx, chi.URLParam(r, "name"))
		return err
	})
	return doc, err
}

func (s *server) getProject(w http.ResponseWriter, r *http.Request) {
	f := project.FormatJSON
	if q := r.URL.Query().Get("format"); q != "" {
		var err error
		if f, err = project.ParseFormat(q); err != nil {
			writeError(w, r, err)
			return
		}
	}
	doc, err := s.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := project.Marshal(doc, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypes[f])
	_, _ = w.Write(data)
}

var contentTypes = map[project.Format]string{
	project.FormatJSON: "application/json",
	project.FormatYAML: "application/yaml",
	project.FormatTOML: "application/toml",
}

func (s *server) projectDOT(w http.ResponseWriter, r *http.Request) {
	doc, err := s.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	svg := r.URL.Query().Get("format") == "svg"
	detailed, _ := strconv.ParseBool(r.URL.Query().Get("detailed"))
	data, err := exportDOT(r.Context(), doc, svg, detailed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if svg {
		w.Header().Set("Content-Type", "image/svg+xml")
	} else {
		w.Header().Set("Content-Type", "text/vnd.graphviz")
	}
	_, _ = w.Write(data)
}

// renderViewer evaluates one viewer of a stored project and responds with
// the frame it shows, encoded as PNG.
func (s *server) renderViewer(w http.ResponseWriter, r *http.Request) {
	doc, err := s.load(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, ix, err := project.Build(doc, nodes.Default())
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := chi.URLParam(r, "viewer")
	if _, err := selectViewers(g, doc, ix, []string{name}); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	eng := engine.New(engine.Options{Graph: g, Eval: s.eval, Logger: loggerFromContext(ctx)})
	defer eng.Close()

	frames := viewer.NewChannelSink(1)
	if err := eng.Attach(ctx, ix[name], frames); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := eng.Render(ctx, ix[name]); err != nil {
		writeError(w, r, err)
		return
	}
	var frame viewer.Frame
	select {
	case frame = <-frames.Frames():
	default:
		writeError(w, r, fgerrors.New(fgerrors.ErrCodeInternal, "viewer %s produced no frame", name))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Framegraph-Pass", frame.PassID)
	if err := imaging.Encode(w, frame.Texture, imaging.PNG); err != nil {
		loggerFromContext(ctx).Warn("encode frame", "viewer", name, "err", err)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
	Node  string `json:"node,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		loggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	}
	body := errorBody{
		Code:  string(fgerrors.GetCode(err)),
		Error: fgerrors.UserMessage(err),
	}
	if failed := innermost(err); failed != nil {
		body.Node = failed.NodeID
		body.Error = describeError(err, nil)
	}
	writeJSON(w, status, body)
}

func statusFor(err error) int {
	switch fgerrors.GetCode(err) {
	case fgerrors.ErrCodeNotFound, fgerrors.ErrCodeLookup:
		return http.StatusNotFound
	case fgerrors.ErrCodeInvalidInput, fgerrors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case fgerrors.ErrCodeInvalidDocument, fgerrors.ErrCodeEvaluation, fgerrors.ErrCodeUnsupported:
		return http.StatusUnprocessableEntity
	case fgerrors.ErrCodeCanceled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
