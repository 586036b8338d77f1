package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newClient(t *testing.T) *storage.Client {
	t.Helper()
	client, err := storage.NewClient(context.Background(),
		option.WithoutAuthentication(),
		option.WithEndpoint("http://127.0.0.1:1/storage/v1/"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "pages"})
	assert.Error(t, err)

	_, err = New(newClient(t), Config{Bucket: "  "})
	assert.Error(t, err)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	client := newClient(t)
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "pages/abc.html"},
		{prefix: "archive", want: "archive/pages/abc.html"},
		{prefix: "/archive/2016/", want: "archive/2016/pages/abc.html"},
	}
	for _, tt := range tests {
		store, err := New(client, Config{Bucket: "b", Prefix: tt.prefix})
		require.NoError(t, err)
		assert.Equal(t, tt.want, store.ObjectName("pages/abc.html"))
	}
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store, err := New(newClient(t), Config{Bucket: "b"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), " ", "text/html", nil)
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}
