package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG
const pixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR4nGMAAQAABQABDQottAAAAABJRU5ErkJggg=="

func pngDataURI() string {
	return "data:image/png;base64," + pixelPNG
}

func TestDecodeDataURI(t *testing.T) {
	img, err := DecodeDataURI(pngDataURI())
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, ".png", img.Extension)

	raw, _ := base64.StdEncoding.DecodeString(pixelPNG)
	assert.Equal(t, raw, img.Data)

	for _, bad := range []string{
		"",
		pixelPNG,
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png;base64,!!!",
		"data:image/png,plain",
	} {
		_, err := DecodeDataURI(bad)
		assert.ErrorIs(t, err, ErrInvalidImage, bad)
	}
}

func TestLocalStore(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root, "/media/")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := store.Save(ctx, "recipes/images", pngDataURI())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/media/recipes/images/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	path := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(url, "/media/")))
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, url))
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// deleting twice or a foreign URL is a no-op
	assert.NoError(t, store.Delete(ctx, url))
	assert.NoError(t, store.Delete(ctx, "https://cdn.example.com/x.png"))
	assert.NoError(t, store.Delete(ctx, "/media/../etc/passwd"))
}

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	deletes []string
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	client := &fakeS3{}
	store := NewS3StoreWithClient(client, "foodgram", "http://minio:9000/foodgram/")
	ctx := context.Background()

	url, err := store.Save(ctx, "users/avatars", pngDataURI())
	require.NoError(t, err)
	require.Len(t, client.puts, 1)
	key := aws.ToString(client.puts[0].Key)
	assert.True(t, strings.HasPrefix(key, "users/avatars/"))
	assert.Equal(t, "image/png", aws.ToString(client.puts[0].ContentType))
	assert.Equal(t, "http://minio:9000/foodgram/"+key, url)

	require.NoError(t, store.Delete(ctx, url))
	assert.Equal(t, []string{key}, client.deletes)

	require.NoError(t, store.Delete(ctx, "/media/other.png"))
	assert.Len(t, client.deletes, 1)

	client.err = errors.New("boom")
	_, err = store.Save(ctx, "users/avatars", pngDataURI())
	assert.Error(t, err)
}
