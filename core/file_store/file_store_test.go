package file_store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStager(t *testing.T) *Stager {
	t.Helper()
	s, err := NewStager(context.Background(), &Config{StagingDir: t.TempDir()})
	require.NoError(t, err)
	return s
}

func TestStageHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.pdf" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("AgentChat supports MCP."))
	}))
	defer srv.Close()

	ctx := context.Background()
	s := newStager(t)
	path, temp, err := s.Stage(ctx, "kb1", "f1", "Guide.MD", srv.URL+"/files/guide")
	require.NoError(t, err)
	assert.True(t, temp)
	assert.Equal(t, ".md", filepath.Ext(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "AgentChat supports MCP.", string(raw))

	s.Cleanup(ctx, path, temp)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, _, err = s.Stage(ctx, "kb1", "f2", "x.pdf", srv.URL+"/missing.pdf")
	assert.True(t, errors.HasCode(err, errors.ErrFileDownloadFailed))
}

func TestStageLocal(t *testing.T) {
	ctx := context.Background()
	s := newStager(t)
	local := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o644))

	path, temp, err := s.Stage(ctx, "kb1", "f1", "a.txt", local)
	require.NoError(t, err)
	assert.False(t, temp)
	assert.Equal(t, local, path)

	path, _, err = s.Stage(ctx, "kb1", "f1", "a.txt", "file://"+local)
	require.NoError(t, err)
	assert.Equal(t, local, path)

	_, _, err = s.Stage(ctx, "kb1", "f1", "a.txt", "/nope/a.txt")
	assert.True(t, errors.HasCode(err, errors.ErrFileReadFailed))
}

func TestStageObjectWithoutMinio(t *testing.T) {
	_, _, err := newStager(t).Stage(context.Background(), "kb1", "f1", "a.pdf", "s3://bucket/a.pdf")
	assert.True(t, errors.HasCode(err, errors.ErrConfigInvalid))

	_, _, err = newStager(t).Stage(context.Background(), "kb1", "f1", "a.pdf", "ftp://host/a.pdf")
	assert.True(t, errors.HasCode(err, errors.ErrUnsupportedFormat))
}
