package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/straye-as/salesdesk/internal/backend"
	"github.com/straye-as/salesdesk/internal/config"
	"github.com/straye-as/salesdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T, srv *httptest.Server, retries int) *backend.Client {
	t.Helper()
	client, err := backend.NewClient(&config.BackendConfig{
		BaseURL:          srv.URL + "/api",
		TimeoutSeconds:   5,
		MaxRetries:       retries,
		RetryBaseDelayMs: 1,
		RetryMaxDelayMs:  5,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := backend.NewClient(&config.BackendConfig{BaseURL: "not a url", TimeoutSeconds: 1}, zap.NewNop())
	assert.Error(t, err)
}

func TestSource_FetchPage(t *testing.T) {
	var gotQuery url.Values
	var gotAuth, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/leads", r.URL.Path)
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("x-api-key")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":  []map[string]any{{"_id": "l1", "name": "Acme"}},
			"total": 25,
		})
	}))
	defer srv.Close()

	creds := backend.Chain{backend.BearerToken("user-token"), backend.APIKey("svc-key")}
	src := backend.NewSource[domain.Lead](newClient(t, srv, 0), creds, backend.Endpoints{List: "/leads"})

	page, err := src.FetchPage(context.Background(), url.Values{"page": {"1"}, "stage": {"follow up"}})
	require.NoError(t, err)

	assert.Equal(t, int64(25), page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "l1", page.Data[0].ID)
	assert.Equal(t, "follow up", gotQuery.Get("stage"))
	assert.Equal(t, "Bearer user-token", gotAuth)
	assert.Equal(t, "svc-key", gotKey)
}

func TestSource_FetchPage_NullData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"total":0}`))
	}))
	defer srv.Close()

	src := backend.NewSource[domain.Lead](newClient(t, srv, 0), nil, backend.Endpoints{List: "/leads"})
	page, err := src.FetchPage(context.Background(), nil)

	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)
}

func TestClient_RetriesServerErrorsOnGet(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"stageCounts":{"warm":4,"won":1}}`))
	}))
	defer srv.Close()

	src := backend.NewSource[domain.Lead](newClient(t, srv, 2), nil, backend.Endpoints{Counts: "/leads/stage-counts"})
	counts, err := src.FetchCounts(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, domain.StageCounts{"warm": 4, "won": 1}, counts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"not your leads"}`))
	}))
	defer srv.Close()

	src := backend.NewSource[domain.Lead](newClient(t, srv, 3), nil, backend.Endpoints{List: "/leads"})
	_, err := src.FetchPage(context.Background(), nil)

	var serverErr *backend.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusForbidden, serverErr.Status)
	assert.Equal(t, "not your leads", serverErr.Message)
	assert.Equal(t, backend.KindServer, backend.Kind(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := backend.NewSource[domain.Lead](newClient(t, srv, 2), nil, backend.Endpoints{List: "/leads"})
	_, err := src.FetchPage(context.Background(), nil)

	var serverErr *backend.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, "boom", serverErr.Message)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_TimeoutIsDistinguishable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	src := backend.NewSource[domain.Lead](newClient(t, srv, 0), nil, backend.Endpoints{List: "/leads"})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := src.FetchPage(ctx, nil)

	assert.ErrorIs(t, err, backend.ErrTimeout)
	assert.Equal(t, backend.KindTimeout, backend.Kind(err))
}

func TestClient_CanceledIsNotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	src := backend.NewSource[domain.Lead](newClient(t, srv, 0), nil, backend.Endpoints{List: "/leads"})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := src.FetchPage(ctx, nil)

	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Equal(t, backend.KindCanceled, backend.Kind(err))
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	src := backend.NewSource[domain.Lead](newClient(t, srv, 0), nil, backend.Endpoints{List: "/leads"})
	_, err := src.FetchPage(context.Background(), nil)

	assert.ErrorIs(t, err, backend.ErrDecode)
}

func TestSource_MutationsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/leads/priority", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := backend.NewSource[domain.Lead](newClient(t, srv, 3), nil, backend.Endpoints{Priority: "/leads/priority"})
	err := src.UpdatePriority(context.Background(), []string{"a", "b"}, "high")

	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "high", body["priority"])
	assert.ElementsMatch(t, []any{"a", "b"}, body["ids"])
}

func TestSource_UpdateStatusEscapesID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	src := backend.NewSource[domain.Task](newClient(t, srv, 0), nil, backend.Endpoints{Status: "/tasks/{id}/status"})
	require.NoError(t, src.UpdateStatus(context.Background(), "t 1", "completed"))

	assert.Equal(t, "/api/tasks/t%201/status", gotPath)
}

func TestSource_UnsupportedOperations(t *testing.T) {
	src := backend.NewSource[domain.Group](nil, nil, backend.Endpoints{List: "/groups"})

	_, err := src.FetchCounts(context.Background(), nil)
	assert.ErrorIs(t, err, backend.ErrUnsupported)
	assert.ErrorIs(t, src.UpdatePriority(context.Background(), []string{"x"}, "low"), backend.ErrUnsupported)
	assert.ErrorIs(t, src.UpdateStatus(context.Background(), "x", "done"), backend.ErrUnsupported)
}
