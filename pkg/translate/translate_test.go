package translate

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "/translate_a/single", r.URL.Path)
		assert.Equal(t, "gtx", r.URL.Query().Get("client"))
		assert.Equal(t, "t", r.URL.Query().Get("dt"))
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testContext() context.Context {
	return logger.New().WithContext(context.Background())
}

func TestTranslate_JoinsSentences(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := newServer(t, http.StatusOK, `[[["Привет. ","Hello. ",null,null,1],["Мир","World",null,null,1]],null,"en"]`, &hits)

	tr, err := New(Options{HTTPClient: srv.Client(), Endpoint: srv.URL, Target: "ru"})
	require.NoError(t, err)

	assert.Equal(t, "Привет. Мир", tr.Translate(testContext(), "Hello. World"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestTranslate_SkipsTextInTargetScript(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := newServer(t, http.StatusOK, `[]`, &hits)

	tr, err := New(Options{HTTPClient: srv.Client(), Endpoint: srv.URL, Target: "ru"})
	require.NoError(t, err)

	assert.Equal(t, "Уже по-русски", tr.Translate(testContext(), "Уже по-русски"))
	assert.Equal(t, "   ", tr.Translate(testContext(), "   "))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestTranslate_LatinTargetAlwaysAsks(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := newServer(t, http.StatusOK, `[[["Hallo","Hello",null,null,1]]]`, &hits)

	tr, err := New(Options{HTTPClient: srv.Client(), Endpoint: srv.URL, Target: "de"})
	require.NoError(t, err)

	assert.Equal(t, "Hallo", tr.Translate(testContext(), "Hello"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestTranslate_FailuresReturnInput(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		status int
		body   string
	}{
		"server error": {http.StatusTooManyRequests, `{}`},
		"bad json":     {http.StatusOK, `not json`},
		"empty result": {http.StatusOK, `[[]]`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var hits int32
			srv := newServer(t, tc.status, tc.body, &hits)
			tr, err := New(Options{HTTPClient: srv.Client(), Endpoint: srv.URL, Target: "ru"})
			require.NoError(t, err)
			assert.Equal(t, "Hello", tr.Translate(testContext(), "Hello"))
		})
	}
}

func TestNew_InvalidTarget(t *testing.T) {
	t.Parallel()
	_, err := New(Options{Target: "not a language!"})
	require.Error(t, err)
}
