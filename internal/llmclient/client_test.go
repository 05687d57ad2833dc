package llmclient

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selector-healer/pkg/apperr"
)

func TestNew_RejectsHostOutsideAllowList(t *testing.T) {
	_, err := New(Params{BaseURL: "http://evil.example.com:11434", Model: "llama3"})
	assert.Error(t, err)
}

func TestNew_RejectsPortOutsideAllowList(t *testing.T) {
	_, err := New(Params{BaseURL: "http://localhost:9999", Model: "llama3"})
	assert.Error(t, err)
}

func TestNew_AcceptsLoopbackOllamaPort(t *testing.T) {
	client, err := New(Params{BaseURL: "http://localhost:11434", Model: "llama3"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNew_HonorsCustomAllowLists(t *testing.T) {
	client, err := New(Params{
		BaseURL:      "http://my-llm-host:9001",
		Model:        "llama3",
		AllowedHosts: []string{"my-llm-host"},
		AllowedPorts: []string{"9001"},
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestAvailable_ReportsBackendHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	assert.True(t, client.Available(t.Context()))
}

func TestAvailable_FalseOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	assert.False(t, client.Available(t.Context()))
}

func TestGenerate_ReturnsResponseText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"{\"suggestions\":[]}"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	response, err := client.Generate(t.Context(), "heal this selector")

	require.NoError(t, err)
	assert.Equal(t, `{"suggestions":[]}`, response)
}

func TestGenerate_NonOKStatusIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Generate(t.Context(), "prompt")

	require.Error(t, err)
	assert.Equal(t, apperr.CodeLLMUnavailable, apperr.Code(err))
}

func TestGenerate_MalformedBodyReportsLLMMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Generate(t.Context(), "prompt")

	require.Error(t, err)
	assert.Equal(t, apperr.CodeLLMMalformed, apperr.Code(err))
}

// newTestClient builds a Client pointed at an httptest server by
// bypassing the loopback host/port allow-list default (httptest picks
// an ephemeral high port) via an explicit custom allow-list.
func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	u, err := parseHostPort(serverURL)
	require.NoError(t, err)

	client, err := New(Params{
		BaseURL:      serverURL,
		Model:        "llama3",
		Timeout:      2 * time.Second,
		AllowedHosts: []string{u.host},
		AllowedPorts: []string{u.port},
	})
	require.NoError(t, err)

	return client
}

type hostPort struct {
	host, port string
}

func parseHostPort(raw string) (hostPort, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return hostPort{}, err
	}

	return hostPort{host: u.Hostname(), port: u.Port()}, nil
}
