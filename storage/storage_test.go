package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"agmark-sync/config"
	"agmark-sync/models"
	"agmark-sync/utils"
)

const testDB = "https://prices-test.firebaseio.com"

func quietLogger() *utils.Logger {
	return utils.NewLoggerWithLevel(io.Discard, slog.LevelError, true)
}

func newMockFirebase(t *testing.T, token string) (*FirebaseStore, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	fs, err := NewFirebaseStore(FirebaseOptions{
		DatabaseURL: testDB + "/",
		AuthToken:   token,
		HTTPClient:  &http.Client{Transport: transport},
	}, quietLogger())
	require.NoError(t, err)
	return fs, transport
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "market_prices", want: "market_prices"},
		{in: "/regions/karnataka/prices/", want: "regions/karnataka/prices"},
		{in: "", wantErr: true},
		{in: "/", wantErr: true},
		{in: "a//b", wantErr: true},
		{in: "prices.v2", wantErr: true},
		{in: "a/$b", wantErr: true},
		{in: "a/[0]", wantErr: true},
		{in: "a/#b", wantErr: true},
	}

	for _, tt := range tests {
		got, err := CleanPath(tt.in)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrInvalidPath, "path %q", tt.in)
			continue
		}
		require.NoError(t, err, "path %q", tt.in)
		require.Equal(t, tt.want, got)
	}
}

func TestFirebasePush(t *testing.T) {
	fs, transport := newMockFirebase(t, "secret")

	var gotBody map[string]any
	var gotAuth string
	transport.RegisterResponder(http.MethodPost, testDB+"/market_prices.json",
		func(req *http.Request) (*http.Response, error) {
			gotAuth = req.URL.Query().Get("auth")
			body, _ := io.ReadAll(req.Body)
			_ = json.Unmarshal(body, &gotBody)
			return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"name": "-NxA1"})
		})

	col, err := fs.Collection(context.Background(), "/market_prices/")
	require.NoError(t, err)
	require.Equal(t, "market_prices", col.Path())

	key, err := col.Push(context.Background(), models.Document{"City": "Bangalore", "S_No": "1"})
	require.NoError(t, err)
	require.Equal(t, "-NxA1", key)
	require.Equal(t, "secret", gotAuth)
	require.Equal(t, "Bangalore", gotBody["City"])
	require.Equal(t, 1, transport.GetTotalCallCount())
}

func TestFirebasePushError(t *testing.T) {
	fs, transport := newMockFirebase(t, "")
	transport.RegisterResponder(http.MethodPost, testDB+"/market_prices.json",
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"error":"Permission denied"}`))

	col, err := fs.Collection(context.Background(), "market_prices")
	require.NoError(t, err)

	_, err = col.Push(context.Background(), models.Document{"City": "Bangalore"})
	var se *StoreError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusUnauthorized, se.Status)
	require.Contains(t, se.Error(), "Permission denied")
}

func TestFirebasePushMissingKey(t *testing.T) {
	fs, transport := newMockFirebase(t, "")
	transport.RegisterResponder(http.MethodPost, testDB+"/market_prices.json",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{}))

	col, err := fs.Collection(context.Background(), "market_prices")
	require.NoError(t, err)
	_, err = col.Push(context.Background(), models.Document{})
	require.Error(t, err)
}

func TestFirebasePing(t *testing.T) {
	fs, transport := newMockFirebase(t, "tok")
	transport.RegisterResponder(http.MethodGet, testDB+"/.json",
		httpmock.NewStringResponder(http.StatusOK, `{"market_prices":true}`))
	require.NoError(t, fs.Ping(context.Background()))

	transport.Reset()
	transport.RegisterResponder(http.MethodGet, testDB+"/.json",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))
	require.Error(t, fs.Ping(context.Background()))
}

func TestFirebaseCollectionInvalidPath(t *testing.T) {
	fs, _ := newMockFirebase(t, "")
	_, err := fs.Collection(context.Background(), "prices.today")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestMemoryStore(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	col, err := ms.Collection(ctx, "regions/karnataka")
	require.NoError(t, err)

	doc := models.Document{"City": "Bangalore"}
	k1, err := col.Push(ctx, doc)
	require.NoError(t, err)
	doc["City"] = "mutated"
	k2, err := col.Push(ctx, models.Document{"City": "Mysore"})
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)

	entries := ms.Entries("/regions/karnataka/")
	require.Len(t, entries, 2)
	require.Equal(t, "Bangalore", entries[0].Doc["City"])
	require.Less(t, entries[0].Key, entries[1].Key)

	n, err := ms.Count(ctx, "regions/karnataka")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestMemoryPushCancelled(t *testing.T) {
	ms := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	col, err := ms.Collection(ctx, "market_prices")
	require.NoError(t, err)
	cancel()

	_, err = col.Push(ctx, models.Document{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenMemoryBackend(t *testing.T) {
	s, err := Open(context.Background(), &config.Config{StoreBackend: config.BackendMemory}, quietLogger())
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)
	require.NoError(t, s.Close())
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreBackend: "mongo"}, quietLogger())
	require.Error(t, err)
}
