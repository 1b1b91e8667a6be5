package config

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *Document
		wantErr bool
	}{
		{
			name: "nested app document",
			raw:  `{"app": {"namespace": "acme", "aws": {"s3Bucket": "acme-backups", "accessKey": "AK", "secretKey": "SK"}}}`,
			want: &Document{Namespace: "acme", BucketBase: "acme-backups", AccessKey: "AK", SecretKey: "SK"},
		},
		{
			name: "flat document with bucket prefix",
			raw:  `{"namespace": "acme", "aws": {"bucketPrefix": "acme", "accessKey": "AK", "secretKey": "SK"}}`,
			want: &Document{Namespace: "acme", BucketBase: "acme", AccessKey: "AK", SecretKey: "SK"},
		},
		{
			name: "full bucket name wins over prefix",
			raw:  `{"namespace": "acme", "aws": {"s3Bucket": "full", "bucketPrefix": "pre", "accessKey": "AK", "secretKey": "SK"}}`,
			want: &Document{Namespace: "acme", BucketBase: "full", AccessKey: "AK", SecretKey: "SK"},
		},
		{
			name: "surrounding whitespace is ignored",
			raw:  "\n  {\"namespace\": \"acme\", \"aws\": {\"bucketPrefix\": \"acme\", \"accessKey\": \"AK\", \"secretKey\": \"SK\"}}\n",
			want: &Document{Namespace: "acme", BucketBase: "acme", AccessKey: "AK", SecretKey: "SK"},
		},
		{
			name:    "not json",
			raw:     "PHP Warning: something went wrong",
			wantErr: true,
		},
		{
			name:    "empty output",
			raw:     "   ",
			wantErr: true,
		},
		{
			name:    "missing secret key",
			raw:     `{"app": {"namespace": "acme", "aws": {"s3Bucket": "b", "accessKey": "AK"}}}`,
			wantErr: true,
		},
		{
			name:    "empty namespace",
			raw:     `{"namespace": "", "aws": {"bucketPrefix": "b", "accessKey": "AK", "secretKey": "SK"}}`,
			wantErr: true,
		},
		{
			name:    "no bucket at all",
			raw:     `{"namespace": "acme", "aws": {"accessKey": "AK", "secretKey": "SK"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDocument([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandProvider_Fetch(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		p := NewCommandProvider([]string{"sh", "-c",
			`echo '{"namespace": "acme", "aws": {"bucketPrefix": "acme", "accessKey": "AK", "secretKey": "SK"}}'`,
		}, t.TempDir(), 5*time.Second, zerolog.Nop())

		doc, err := p.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, "acme", doc.Namespace)
	})

	t.Run("non_zero_exit", func(t *testing.T) {
		p := NewCommandProvider([]string{"sh", "-c", "echo broken >&2; exit 3"}, t.TempDir(), 5*time.Second, zerolog.Nop())

		_, err := p.Fetch(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
	})

	t.Run("timeout", func(t *testing.T) {
		p := NewCommandProvider([]string{"sleep", "5"}, t.TempDir(), 50*time.Millisecond, zerolog.Nop())

		_, err := p.Fetch(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("empty_command", func(t *testing.T) {
		p := NewCommandProvider(nil, t.TempDir(), time.Second, zerolog.Nop())

		_, err := p.Fetch(ctx)
		assert.Error(t, err)
	})
}
