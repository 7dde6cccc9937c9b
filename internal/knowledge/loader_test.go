package knowledge

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	err     error
	input   *s3.GetObjectInput
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "company.md")
	require.NoError(t, os.WriteFile(path, []byte("# Acme\nWe sell anvils."), 0o600))

	got, err := Load(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Contains(t, got, "We sell anvils.")
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	got, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.md"), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad_EmptySource(t *testing.T) {
	got, err := Load(context.Background(), "  ", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad_S3Object(t *testing.T) {
	api := &fakeS3{objects: map[string]string{"kb/docs/company.md": "remote knowledge"}}

	got, err := Load(context.Background(), "s3://kb/docs/company.md", api)
	require.NoError(t, err)
	assert.Equal(t, "remote knowledge", got)
	assert.Equal(t, "docs/company.md", aws.ToString(api.input.Key))
}

func TestLoad_S3MissingIsEmpty(t *testing.T) {
	got, err := Load(context.Background(), "s3://kb/missing.md", &fakeS3{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad_S3APIErrorNotFound(t *testing.T) {
	api := &fakeS3{err: &smithy.GenericAPIError{Code: "NotFound", Message: "gone"}}
	got, err := Load(context.Background(), "s3://kb/company.md", api)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad_S3OtherErrorPropagates(t *testing.T) {
	_, err := Load(context.Background(), "s3://kb/company.md", &fakeS3{err: errors.New("access denied")})
	assert.Error(t, err)
}

func TestLoad_S3WithoutClient(t *testing.T) {
	_, err := Load(context.Background(), "s3://kb/company.md", nil)
	assert.Error(t, err)
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://bucket/a/b.md", "bucket", "a/b.md", false},
		{"s3://bucket", "", "", true},
		{"s3:///key", "", "", true},
		{"s3://bucket/", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}
