package cloud

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dakino/household-service/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	uploads   []*UploadRequest
	body      []byte
	uploadErr error
	listReq   *ListFilesRequest
}

func (f *fakeProvider) UploadFile(_ context.Context, req *UploadRequest) (*UploadResponse, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploads = append(f.uploads, req)
	body, _ := io.ReadAll(req.Content)
	f.body = body
	return &UploadResponse{
		FileID:      req.FileID,
		PublicURL:   "https://archive.example/" + req.FileID,
		Size:        int64(len(body)),
		ContentType: req.ContentType,
		UploadedAt:  time.Now(),
	}, nil
}

func (f *fakeProvider) GetFileURL(context.Context, string) (string, error) { return "", nil }
func (f *fakeProvider) GetPresignedURL(_ context.Context, fileID string, _ time.Duration) (string, error) {
	return "https://archive.example/" + fileID + "?sig=1", nil
}
func (f *fakeProvider) DeleteFile(context.Context, string) error { return nil }
func (f *fakeProvider) ListFiles(_ context.Context, req *ListFilesRequest) (*ListFilesResponse, error) {
	f.listReq = req
	return &ListFilesResponse{Files: []*FileInfo{{FileID: req.Prefix + "a.jpg"}}}, nil
}
func (f *fakeProvider) GetFileInfo(context.Context, string) (*FileInfo, error) {
	return nil, ErrFileNotFound
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUploadTicketImage(t *testing.T) {
	provider := &fakeProvider{}
	svc := NewServiceWithProvider(provider, discardLogger())
	householdID, userID := uuid.New(), uuid.New()

	result, err := svc.UploadTicketImage(context.Background(), householdID, userID,
		"IMG_0001.HEIC", bytes.NewReader([]byte("jpeg-bytes")), "image/jpeg", 10)

	require.NoError(t, err)
	require.Len(t, provider.uploads, 1)
	req := provider.uploads[0]
	assert.True(t, strings.HasPrefix(req.FileID, "tickets/"+householdID.String()+"/"), req.FileID)
	assert.True(t, strings.HasSuffix(req.FileID, ".jpg"), req.FileID)
	assert.Equal(t, userID.String(), req.Metadata["user_id"])
	assert.Equal(t, "ticket_scan", req.Tags["source"])
	assert.Equal(t, []byte("jpeg-bytes"), provider.body)
	assert.Equal(t, int64(10), result.Size)
	assert.Equal(t, "https://archive.example/"+req.FileID, result.PublicURL)
}

func TestUploadTicketImageErrors(t *testing.T) {
	disabled := NewServiceWithProvider(nil, discardLogger())
	_, err := disabled.UploadTicketImage(context.Background(), uuid.New(), uuid.New(), "a.jpg", strings.NewReader("x"), "image/jpeg", 1)
	assert.ErrorIs(t, err, ErrArchiveDisabled)
	assert.False(t, disabled.Enabled())

	svc := NewServiceWithProvider(&fakeProvider{}, discardLogger())
	_, err = svc.UploadTicketImage(context.Background(), uuid.New(), uuid.New(), "a.pdf", strings.NewReader("x"), "application/pdf", 1)
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	failing := NewServiceWithProvider(&fakeProvider{uploadErr: &CloudError{Code: "UPLOAD_FAILED", Message: "boom"}}, discardLogger())
	_, err = failing.UploadTicketImage(context.Background(), uuid.New(), uuid.New(), "a.png", strings.NewReader("x"), "image/png", 1)
	assert.ErrorIs(t, err, ErrUploadFailed)
}

func TestListHouseholdTickets(t *testing.T) {
	provider := &fakeProvider{}
	svc := NewServiceWithProvider(provider, discardLogger())
	householdID := uuid.New()

	files, err := svc.ListHouseholdTickets(context.Background(), householdID, 20)

	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "tickets/"+householdID.String()+"/", provider.listReq.Prefix)
	assert.Equal(t, 20, provider.listReq.MaxResults)
}

func TestGetFileInfoWrapsNotFound(t *testing.T) {
	svc := NewServiceWithProvider(&fakeProvider{}, discardLogger())
	_, err := svc.GetFileInfo(context.Background(), "tickets/x.jpg")
	assert.True(t, errors.Is(err, ErrFileNotFound))
}

func TestNewServiceDisabled(t *testing.T) {
	svc, err := NewService(config.CloudConfig{Provider: "none"}, discardLogger())
	require.NoError(t, err)
	assert.False(t, svc.Enabled())

	svc, err = NewService(config.CloudConfig{}, discardLogger())
	require.NoError(t, err)
	assert.False(t, svc.Enabled())
}

func TestValidateConfig(t *testing.T) {
	testCases := []struct {
		name     string
		config   Config
		wantCode string
	}{
		{name: "none", config: Config{Provider: "none"}},
		{name: "empty means none", config: Config{}},
		{name: "unknown", config: Config{Provider: "gcs"}, wantCode: "INVALID_PROVIDER"},
		{
			name:     "azure without account",
			config:   Config{Provider: "azure", Azure: AzureConfig{ContainerName: "tickets"}},
			wantCode: "MISSING_AZURE_ACCOUNT",
		},
		{
			name:     "azure without container",
			config:   Config{Provider: "Azure", Azure: AzureConfig{ConnectionString: "UseDevelopmentStorage=true"}},
			wantCode: "MISSING_AZURE_CONTAINER",
		},
		{
			name:   "azure with key",
			config: Config{Provider: "azure", Azure: AzureConfig{StorageAccountName: "acc", StorageAccountKey: "a2V5", ContainerName: "tickets"}},
		},
		{
			name:     "s3 without bucket",
			config:   Config{Provider: "s3", S3: S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}},
			wantCode: "MISSING_S3_BUCKET",
		},
		{
			name:     "s3 without credentials",
			config:   Config{Provider: "s3", S3: S3Config{Endpoint: "localhost:9000", Bucket: "tickets"}},
			wantCode: "MISSING_S3_CREDENTIALS",
		},
		{
			name:   "s3 complete",
			config: Config{Provider: "s3", S3: S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "tickets"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.config)
			if tc.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			var cloudErr *CloudError
			require.ErrorAs(t, err, &cloudErr)
			assert.Equal(t, tc.wantCode, cloudErr.Code)
		})
	}
}

func TestNewS3ProviderBuildsURLs(t *testing.T) {
	provider, err := NewProvider(Config{
		Provider: "s3",
		S3:       S3Config{Endpoint: "minio.local:9000", AccessKey: "a", SecretKey: "b", Bucket: "tickets"},
	})
	require.NoError(t, err)

	url, err := provider.GetFileURL(context.Background(), "tickets/h1/photo 1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "http://minio.local:9000/tickets/tickets/h1/photo%201.jpg", url)

	_, err = provider.GetFileURL(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidFileID)
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, "jpg", fileExtension("photo.png", "image/jpeg"))
	assert.Equal(t, "png", fileExtension("", "image/png"))
	assert.Equal(t, "jpg", fileExtension("scan.JPEG", ""))
	assert.Equal(t, "", fileExtension("noext", ""))

	key := TicketObjectKey(uuid.MustParse("7f1c1f0e-3d3b-4a5e-9d8e-2a1b3c4d5e6f"), "x", "image/webp")
	assert.True(t, strings.HasPrefix(key, "tickets/7f1c1f0e-3d3b-4a5e-9d8e-2a1b3c4d5e6f/"))
	assert.True(t, strings.HasSuffix(key, ".webp"))
}

func TestTicketImageKey(t *testing.T) {
	householdID := uuid.MustParse("7f1c1f0e-3d3b-4a5e-9d8e-2a1b3c4d5e6f")

	key, err := TicketImageKey(householdID, "a1b2.jpg")
	require.NoError(t, err)
	assert.Equal(t, "tickets/7f1c1f0e-3d3b-4a5e-9d8e-2a1b3c4d5e6f/a1b2.jpg", key)

	for _, name := range []string{"", ".", "..", "../other/x.jpg", `..\x.jpg`} {
		_, err := TicketImageKey(householdID, name)
		assert.ErrorIs(t, err, ErrInvalidFileID, name)
	}
}
