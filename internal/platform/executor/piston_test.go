package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dsa_tracker/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_SendsPinnedVersionAndParsesRun(t *testing.T) {
	var got pistonRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/execute", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"language":"python","version":"3.10.0","run":{"stdout":"3\n","stderr":"","code":0,"output":"3\n"}}`))
	}))
	defer srv.Close()

	c := NewPistonClient(srv.URL+"/", time.Second)
	res, err := c.Execute(context.Background(), "print(1+2)", "python", "")
	require.NoError(t, err)

	assert.Equal(t, "python", got.Language)
	assert.Equal(t, "3.10.0", got.Version)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "print(1+2)", got.Files[0].Content)
	assert.Equal(t, "3\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecute_CompileFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"compile":{"output":"error: expected ';'","code":1},"run":{"stdout":"","stderr":"","code":0}}`))
	}))
	defer srv.Close()

	res, err := NewPistonClient(srv.URL, time.Second).Execute(context.Background(), "int main(){}", "cpp", "")
	require.NoError(t, err)
	assert.Equal(t, "error: expected ';'", res.CompileOutput)
	assert.Equal(t, 1, res.ExitCode)
}

func TestExecute_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"runtime is unknown"}`))
	}))
	defer srv.Close()
	c := NewPistonClient(srv.URL, time.Second)

	_, err := c.Execute(context.Background(), "x", "cobol", "")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = c.Execute(context.Background(), "x", "java", "")
	assert.ErrorIs(t, err, common.ErrBadRequest)
	assert.Contains(t, err.Error(), "runtime is unknown")

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	_, err = NewPistonClient(down.URL, time.Second).Execute(context.Background(), "x", "c", "")
	assert.ErrorIs(t, err, common.ErrServiceUnavailable)
}
