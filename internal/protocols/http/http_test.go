package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchDownloadsToTempFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("id,name\n1,alice\n"))
	}))
	defer srv.Close()

	path, cleanup, err := Fetch(context.Background(), srv.URL+"/data.csv")
	require.NoError(t, err)
	defer cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,alice\n", string(data))
}

func TestFetchErrorsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := Fetch(context.Background(), srv.URL+"/missing.csv")
	assert.Error(t, err)
}

func TestFetchInvalidURL(t *testing.T) {
	_, _, err := Fetch(context.Background(), "://not-a-url")
	assert.Error(t, err)
}
