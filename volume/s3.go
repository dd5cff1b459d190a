package volume

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Client abstracts the API needed to resolve volumes out of a bucket.
type S3Client interface {
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3 resolves volumes as objects under one bucket and key prefix, reading them with ranged GetObject so the engine
// can seek without downloading whole volumes.
type S3 struct {
	Client S3Client
	Bucket string
	Prefix string

	// ModifyGetObjectInput can be used to modify the GetObject input parameters such as adding
	// ExpectedBucketOwner. Its return value is used to make the call.
	ModifyGetObjectInput func(*s3.GetObjectInput) *s3.GetObjectInput
}

var _ Source = S3{}

// Open resolves the named volume, verifying existence and capturing its size up front.
func (s S3) Open(ctx context.Context, name string) (io.ReadSeekCloser, error) {
	key := path.Join(s.Prefix, name)

	head, err := s.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return nil, fmt.Errorf(`volume "%s": %w`, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf(`head volume "%s" error: %w`, name, err)
	}

	return &s3Stream{
		ctx:    ctx,
		source: s,
		key:    key,
		size:   aws.ToInt64(head.ContentLength),
	}, nil
}

const s3BufferSize = 64 * 1024

// s3Stream reads one S3 object through ranged requests, buffering ahead so small sequential engine reads do not each
// pay a round trip.
type s3Stream struct {
	ctx    context.Context
	source S3
	key    string

	off  int64 // next read position as seen by the caller
	size int64
	buf  bytes.Buffer // readahead starting at off
}

func (o *s3Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if o.off >= o.size {
		return 0, io.EOF
	}

	if o.buf.Len() == 0 {
		rangeStart := o.off
		rangeEnd := min(o.off+max(int64(len(p)), s3BufferSize), o.size) - 1

		input := &s3.GetObjectInput{
			Bucket: aws.String(o.source.Bucket),
			Key:    aws.String(o.key),
			Range:  aws.String(fmt.Sprintf("bytes=%d-%d", rangeStart, rangeEnd)),
		}
		if fn := o.source.ModifyGetObjectInput; fn != nil {
			input = fn(input)
		}

		out, err := o.source.Client.GetObject(o.ctx, input)
		if err != nil {
			return 0, fmt.Errorf(`read volume "%s" error: %w`, o.key, err)
		}

		_, err = o.buf.ReadFrom(out.Body)
		if cerr := out.Body.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return 0, fmt.Errorf(`read volume "%s" error: %w`, o.key, err)
		}
	}

	n, _ := o.buf.Read(p)
	o.off += int64(n)
	return n, nil
}

func (o *s3Stream) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = o.off + offset
	case io.SeekEnd:
		abs = o.size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative seek position")
	}

	if abs != o.off {
		o.buf.Reset()
	}
	o.off = abs
	return abs, nil
}

func (o *s3Stream) Close() error {
	o.buf.Reset()
	return nil
}
