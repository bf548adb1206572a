package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nsagency/pkg/compression"
	"github.com/ajitpratap0/nsagency/pkg/config"
	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

func testEntities() []*models.Entity {
	ts := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	failed := &models.Entity{SrcID: "1002", TxTypeSrcID: "order-1002", CreatedAt: ts, UpdatedAt: ts}
	failed.Fail(&models.Failure{Type: "mapping", Message: "tranId is missing"})
	return []*models.Entity{
		{
			SrcID:       "1001",
			TxTypeSrcID: "order-1001",
			CreatedAt:   ts,
			UpdatedAt:   ts,
			Data:        map[string]interface{}{"tranId": "SO-1001"},
			TxStatus:    models.StatusSuccess,
			TgtID:       "77",
		},
		failed,
	}
}

func TestLocalSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewLocalSink(dir, "run-1", compression.Gzip, nil)

	location, err := sink.Write(context.Background(), "order", testEntities())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "order", "run-1.jsonl.gz"), location)

	f, err := os.Open(location)
	require.NoError(t, err)
	defer f.Close()

	got, err := Read(f, compression.Gzip)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "order-1001", got[0].TxTypeSrcID)
	assert.Equal(t, "SO-1001", got[0].Data["tranId"])
	assert.Equal(t, models.StatusFailed, got[1].TxStatus)
	assert.Equal(t, "mapping: tranId is missing", got[1].TxNote)
}

type fakeUploader struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(input.Body)
	f.inputs = append(f.inputs, input)
	f.bodies = append(f.bodies, buf.Bytes())
	return &manager.UploadOutput{}, nil
}

func TestS3Sink(t *testing.T) {
	up := &fakeUploader{}
	sink := NewS3SinkWithUploader(up, "archive-bucket", "nsagency", "run-2", compression.Zstd, nil)

	location, err := sink.Write(context.Background(), "customer", testEntities())
	require.NoError(t, err)
	assert.Equal(t, "s3://archive-bucket/nsagency/customer/run-2.jsonl.zst", location)

	require.Len(t, up.inputs, 1)
	in := up.inputs[0]
	assert.Equal(t, "nsagency/customer/run-2.jsonl.zst", *in.Key)
	assert.Equal(t, "zstd", *in.ContentEncoding)
	assert.Equal(t, "2", in.Metadata["entities"])

	got, err := Read(bytes.NewReader(up.bodies[0]), compression.Zstd)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestS3SinkUploadError(t *testing.T) {
	up := &fakeUploader{err: assert.AnError}
	sink := NewS3SinkWithUploader(up, "b", "", "run", compression.Gzip, nil)

	_, err := sink.Write(context.Background(), "order", testEntities())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.ArchiveConfig{Type: "none"}, "", nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	s, err = New(ctx, config.ArchiveConfig{Type: "local", Dir: t.TempDir()}, "", nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalSink{}, s)

	_, err = New(ctx, config.ArchiveConfig{Type: "local"}, "", nil)
	assert.Error(t, err)

	_, err = New(ctx, config.ArchiveConfig{Type: "local", Dir: "x", Compression: "brotli"}, "", nil)
	assert.Error(t, err)

	_, err = New(ctx, config.ArchiveConfig{Type: "ftp"}, "", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
