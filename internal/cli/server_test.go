package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/eval"
	"github.com/matzehuels/framegraph/pkg/observability"
	"github.com/matzehuels/framegraph/pkg/project"
	"github.com/matzehuels/framegraph/pkg/store"
	"github.com/matzehuels/framegraph/pkg/store/storetest"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	require.NoError(t, s.Save(context.Background(), storetest.Sample("sample")))

	reg := prometheus.NewRegistry()
	srv := httptest.NewServer(newRouter(&server{
		store:  s,
		logger: log.New(io.Discard),
		eval:   eval.Options{Parallel: true},
	}, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	t.Cleanup(srv.Close)
	return srv, s
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestServerHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Server"), "framegraph/"))
}

func TestServerListProjects(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+"/projects")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct{ Projects []string }
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, []string{"sample"}, got.Projects)
}

func TestServerGetProject(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/projects/sample")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), `"name": "sample"`)

	resp, body = get(t, srv.URL+"/projects/sample?format=yaml")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "name: sample")

	resp, _ = get(t, srv.URL+"/projects/sample?format=xml")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerProjectDOT(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+"/projects/sample/dot")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/vnd.graphviz", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "digraph G {")
}

func TestServerRenderViewer(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+"/projects/sample/render/preview")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Framegraph-Pass"))

	img, err := imaging.Decode(strings.NewReader(string(body)))
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestServerErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		path   string
		status int
		code   fgerrors.Code
	}{
		{"/projects/missing", http.StatusNotFound, fgerrors.ErrCodeNotFound},
		{"/projects/missing/dot", http.StatusNotFound, fgerrors.ErrCodeNotFound},
		{"/projects/sample/render/nope", http.StatusNotFound, fgerrors.ErrCodeLookup},
		{"/projects/sample/render/bg", http.StatusBadRequest, fgerrors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, srv.URL+tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
			var e errorBody
			require.NoError(t, json.Unmarshal(body, &e))
			assert.Equal(t, string(tt.code), e.Code)
		})
	}
}

func TestServerRenderFailure(t *testing.T) {
	srv, s := newTestServer(t)
	doc := storetest.Sample("broken")
	doc.Nodes[0] = project.NodeDoc{Name: "bg", Type: "image", Params: map[string]any{"path": "/definitely/not/here.png"}}
	require.NoError(t, s.Save(context.Background(), doc))

	resp, body := get(t, srv.URL+"/projects/broken/render/preview")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var e errorBody
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, string(fgerrors.ErrCodeEvaluation), e.Code)
	assert.NotEmpty(t, e.Node)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.EOF))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(fgerrors.New(fgerrors.ErrCodeCanceled, "x")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(fgerrors.New(fgerrors.ErrCodeInvalidDocument, "x")))
}

func TestSetupObservability(t *testing.T) {
	t.Cleanup(observability.Reset)
	c := newTestCLI(t)

	shutdown, err := c.setupObservability(context.Background(), prometheus.NewRegistry())
	require.NoError(t, err)
	assert.IsType(t, observability.Multi{}, observability.Eval())
	assert.IsType(t, observability.Multi{}, observability.Graph())

	shutdown()
	assert.IsType(t, observability.NoopEvalHooks{}, observability.Eval())
}
