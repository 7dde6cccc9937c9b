// Package knowledge loads the static company text the QA handler answers from.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const s3Scheme = "s3://"

// S3API is the subset of the S3 client used to fetch remote knowledge.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Load reads knowledge from a local path or an s3://bucket/key URI.
// A missing file or object yields an empty string and no error.
func Load(ctx context.Context, source string, client S3API) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", nil
	}
	if strings.HasPrefix(source, s3Scheme) {
		bucket, key, err := ParseS3URI(source)
		if err != nil {
			return "", err
		}
		return loadS3(ctx, client, bucket, key)
	}
	return loadFile(source)
}

// ParseS3URI splits s3://bucket/key into its parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("knowledge: invalid s3 uri %q", uri)
	}
	return bucket, key, nil
}

func loadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("knowledge: read %s: %w", path, err)
	}
	return string(data), nil
}

func loadS3(ctx context.Context, client S3API, bucket, key string) (string, error) {
	if client == nil {
		return "", fmt.Errorf("knowledge: s3 client required for s3://%s/%s", bucket, key)
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("knowledge: s3 get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("knowledge: read s3://%s/%s: %w", bucket, key, err)
	}
	return string(data), nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
