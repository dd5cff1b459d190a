// Package volumes builds the volume source a command resolves multi-volume archives against.
package volumes

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nguyengg/zbridge/volume"
)

// Parse turns a command's --volumes flag into a volume source.
//
// An empty value resolves sibling volumes in dir; an s3://bucket/prefix URI resolves them out of S3 using the default
// credential chain.
func Parse(ctx context.Context, value, dir string) (volume.Source, error) {
	if value == "" {
		return volume.Dir{Path: dir}, nil
	}

	uri, ok := strings.CutPrefix(value, "s3://")
	if !ok {
		return volume.Dir{Path: value}, nil
	}

	bucket, prefix, _ := strings.Cut(uri, "/")
	if bucket == "" {
		return nil, fmt.Errorf(`invalid S3 URI "%s"`, value)
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load default config error: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(options *s3.Options) {
		// without this, getting a bunch of WARN message below:
		// WARN Response has no supported checksum. Not validating response payload.
		options.DisableLogOutputChecksumValidationSkipped = true
	})

	return volume.S3{Client: client, Bucket: bucket, Prefix: prefix}, nil
}
