package prompt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressdesk/internal/langfuse"
)

func writeTemplate(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestResolve_LocalAppendsExtension(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "extraction_press.md", "You extract facts.")

	r := NewResolver(dir, nil)
	body, err := r.Resolve(context.Background(), Ref{Name: "extraction_press", Source: SourceLocal, Version: VersionLatest})
	require.NoError(t, err)
	assert.Equal(t, "You extract facts.", body)

	// Name already carrying the extension works too.
	body, err = r.Resolve(context.Background(), Ref{Name: "extraction_press.md", Source: SourceLocal})
	require.NoError(t, err)
	assert.Equal(t, "You extract facts.", body)
}

func TestResolve_MissingLocalIsTypedError(t *testing.T) {
	r := NewResolver(t.TempDir(), nil)
	_, err := r.Resolve(context.Background(), Ref{Name: "nope", Source: SourceLocal})
	require.ErrorIs(t, err, ErrTemplateNotFound)
	assert.Contains(t, err.Error(), "nope.md")
}

func TestResolve_RemoteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/public/v2/prompts/fact_check", r.URL.Path)
		assert.Equal(t, "production", r.URL.Query().Get("label"))
		w.Write([]byte(`{"name":"fact_check","type":"text","prompt":"You verify claims."}`))
	}))
	defer srv.Close()

	r := NewResolver(t.TempDir(), langfuse.New(srv.URL, "pk", "sk"))
	body, err := r.Resolve(context.Background(), Ref{Name: "fact_check", Source: SourceRemote, Version: "production"})
	require.NoError(t, err)
	assert.Equal(t, "You verify claims.", body)
}

func TestResolve_RemoteLatestSendsNoLabel(t *testing.T) {
	var gotLabel *string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := r.URL.Query().Get("label")
		gotLabel = &l
		w.Write([]byte(`{"name":"fact_check","type":"text","prompt":"current"}`))
	}))
	defer srv.Close()

	r := NewResolver(t.TempDir(), langfuse.New(srv.URL, "pk", "sk"))
	body, err := r.Resolve(context.Background(), Ref{Name: "fact_check", Source: SourceRemote, Version: VersionLatest})
	require.NoError(t, err)
	assert.Equal(t, "current", body)
	require.NotNil(t, gotLabel)
	assert.Empty(t, *gotLabel)
}

func TestResolve_RemoteFailureFallsBackToLocal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeTemplate(t, dir, "fact_check.md", "local fallback body")

	r := NewResolver(dir, langfuse.New(srv.URL, "pk", "sk"))
	body, err := r.Resolve(context.Background(), Ref{Name: "fact_check", Source: SourceRemote, Version: "production"})
	require.NoError(t, err)
	assert.Equal(t, "local fallback body", body)
}

func TestResolve_RemoteFailureThenLocalMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewResolver(t.TempDir(), langfuse.New(srv.URL, "pk", "sk"))
	_, err := r.Resolve(context.Background(), Ref{Name: "fact_check", Source: SourceRemote, Version: "production"})
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestResolve_ChatPromptFlattens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"x","type":"chat","prompt":[{"role":"system","content":"part one"},{"role":"user","content":"part two"}]}`))
	}))
	defer srv.Close()

	r := NewResolver(t.TempDir(), langfuse.New(srv.URL, "pk", "sk"))
	body, err := r.Resolve(context.Background(), Ref{Name: "x", Source: SourceRemote, Version: VersionLatest})
	require.NoError(t, err)
	assert.Equal(t, "part one\n\npart two", body)
}
