package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quizrunner/internal/config"
	"quizrunner/internal/task"
)

func TestFetch_PDFSuffixWithArbitraryContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer ts.Close()

	f := NewFetcher(config.FetchConfig{}, zap.NewNop())
	res, err := f.Fetch(context.Background(), &task.Instruction{ResourceURL: ts.URL + "/doc.pdf"})
	require.NoError(t, err)
	assert.Equal(t, task.KindDocument, res.Kind)
	assert.Equal(t, []byte("%PDF-1.4 fake"), res.Body)
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	f := NewFetcher(config.FetchConfig{}, zap.NewNop())
	_, err := f.Fetch(context.Background(), &task.Instruction{ResourceURL: ts.URL + "/missing.pdf"})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
}

func TestFetch_BodyLimitApplied(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 1024))
	}))
	defer ts.Close()

	f := NewFetcher(config.FetchConfig{MaxBodyBytes: 100}, zap.NewNop())
	res, err := f.Fetch(context.Background(), &task.Instruction{ResourceURL: ts.URL + "/big.pdf"})
	require.NoError(t, err)
	assert.Len(t, res.Body, 100)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name        string
		url         string
		contentType string
		want        task.ResourceKind
	}{
		{"pdf content type", "https://host/file", "application/pdf", task.KindDocument},
		{"pdf content type with charset", "https://host/file", "application/pdf; charset=binary", task.KindDocument},
		{"pdf suffix, no content type", "https://host/doc.pdf", "", task.KindDocument},
		{"pdf suffix, misleading content type", "https://host/doc.PDF", "text/plain", task.KindDocument},
		{"pdf suffix with query string", "https://host/doc.pdf?token=1", "", task.KindDocument},
		{"html page", "https://host/page.html", "text/html", task.KindUnknown},
		{"no hints", "https://host/data", "application/octet-stream", task.KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.url, tc.contentType))
		})
	}
}
