package appinsights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/apps/app-123/query", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "traces | take 1", body["query"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"tables": [
				{
					"name": "PrimaryResult",
					"columns": [{"name": "timestamp", "type": "datetime"}, {"name": "message", "type": "string"}],
					"rows": [
						["2024-03-15T10:00:01.5Z", "Transaction Request: {\"a\":1}"],
						["2024-03-15T10:00:02Z", "Transaction post success. Response - {\"b\":2}"]
					]
				}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "app-123", "secret", 5*time.Second, zerolog.Nop())
	rows, err := client.Query(context.Background(), "traces | take 1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.True(t, time.Date(2024, 3, 15, 10, 0, 1, 500000000, time.UTC).Equal(rows[0].Timestamp))
	assert.Equal(t, `Transaction Request: {"a":1}`, rows[0].Message)
	assert.Equal(t, `Transaction post success. Response - {"b":2}`, rows[1].Message)
}

func TestClientQuerySkipsBadRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"tables": [{"rows": [
			["not-a-time", "x"],
			["2024-03-15T10:00:00Z"],
			[12, "x"],
			["2024-03-15T10:00:00Z", 7],
			["2024-03-15T10:00:00Z", "kept"]
		]}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "app", "", 5*time.Second, zerolog.Nop())
	rows, err := client.Query(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "kept", rows[0].Message)
}

func TestClientQueryEmptyTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"tables": [{"rows": []}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "app", "", 5*time.Second, zerolog.Nop())
	rows, err := client.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestClientQueryNoTables(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"tables": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "app", "", 5*time.Second, zerolog.Nop())
	_, err := client.Query(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNoTables)
}

func TestClientQueryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":"InvalidApiKey"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "app", "bad", 5*time.Second, zerolog.Nop())
	_, err := client.Query(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "InvalidApiKey")
}

func TestNewClient(t *testing.T) {
	client := NewClient("", "app", "", 30*time.Second, zerolog.Nop())
	assert.NotNil(t, client)
	assert.Equal(t, "https://api.applicationinsights.io", client.baseURL)
}
