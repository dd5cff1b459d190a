package volume

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir_Open(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "archive.7z.002"), []byte("volume two"), 0644))

	src := Dir{Path: dir}

	r, err := src.Open(context.Background(), "archive.7z.002")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "volume two", string(data))
	require.NoError(t, r.Close())

	_, err = src.Open(context.Background(), "archive.7z.003")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDir_RejectsEscapingNames(t *testing.T) {
	src := Dir{Path: t.TempDir()}

	for _, name := range []string{"../secret", "sub/volume", "..", ""} {
		_, err := src.Open(context.Background(), name)
		assert.Errorf(t, err, "name %q", name)
		assert.NotErrorIs(t, err, ErrNotFound)
	}
}

// fakeS3 serves one object out of memory, honoring Range requests.
type fakeS3 struct {
	key      string
	data     []byte
	getCalls int
}

func (f *fakeS3) HeadObject(_ context.Context, input *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if aws.ToString(input.Key) != f.key {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(f.data)))}, nil
}

func (f *fakeS3) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if aws.ToString(input.Key) != f.key {
		return nil, &types.NoSuchKey{}
	}
	f.getCalls++

	var start, end int64
	if _, err := fmt.Sscanf(aws.ToString(input.Range), "bytes=%d-%d", &start, &end); err != nil {
		return nil, fmt.Errorf("unexpected range %q", aws.ToString(input.Range))
	}
	if end >= int64(len(f.data)) {
		end = int64(len(f.data)) - 1
	}

	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(f.data[start : end+1])))}, nil
}

func TestS3_Open(t *testing.T) {
	client := &fakeS3{key: "backups/archive.7z.002", data: []byte("0123456789abcdef")}
	src := S3{Client: client, Bucket: "bucket", Prefix: "backups"}

	r, err := src.Open(context.Background(), "archive.7z.002")
	require.NoError(t, err)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", string(data))
	require.NoError(t, r.Close())

	_, err = src.Open(context.Background(), "archive.7z.003")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3_SeekThenRead(t *testing.T) {
	client := &fakeS3{key: "archive.7z.002", data: []byte("0123456789abcdef")}
	src := S3{Client: client, Bucket: "bucket"}

	r, err := src.Open(context.Background(), "archive.7z.002")
	require.NoError(t, err)

	off, err := r.Seek(10, io.SeekStart)
	require.NoError(t, err)
	require.EqualValues(t, 10, off)

	buf := make([]byte, 4)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf))

	off, err = r.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	require.EqualValues(t, 14, off)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(data))
}

func TestS3_SmallSequentialReadsShareOneRequest(t *testing.T) {
	client := &fakeS3{key: "archive.7z.002", data: []byte(strings.Repeat("x", 1024))}
	src := S3{Client: client, Bucket: "bucket"}

	r, err := src.Open(context.Background(), "archive.7z.002")
	require.NoError(t, err)

	buf := make([]byte, 16)
	for i := 0; i < 64; i++ {
		_, err = io.ReadFull(r, buf)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, client.getCalls, "sequential reads must be served from the readahead buffer")
}
