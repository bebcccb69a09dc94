package cloud

import (
	"context"
	"io"
	"time"
)

// Provider is a blob store the ticket archive writes to
type Provider interface {
	// UploadFile stores req.Content under req.FileID, generating an ID when empty
	UploadFile(ctx context.Context, req *UploadRequest) (*UploadResponse, error)

	GetFileURL(ctx context.Context, fileID string) (string, error)

	// GetPresignedURL returns a read-only URL valid for expiration
	GetPresignedURL(ctx context.Context, fileID string, expiration time.Duration) (string, error)

	DeleteFile(ctx context.Context, fileID string) error

	ListFiles(ctx context.Context, req *ListFilesRequest) (*ListFilesResponse, error)

	GetFileInfo(ctx context.Context, fileID string) (*FileInfo, error)
}

type UploadRequest struct {
	// FileID is the object key, e.g. tickets/<household>/<uuid>.jpg
	FileID string

	FileName    string
	ContentType string
	Content     io.Reader

	// ContentLength is -1 when unknown
	ContentLength int64

	Metadata map[string]string
	Tags     map[string]string
}

type UploadResponse struct {
	FileID      string
	PublicURL   string
	Size        int64
	ContentType string
	ETag        string
	UploadedAt  time.Time
}

type ListFilesRequest struct {
	Prefix            string
	MaxResults        int
	ContinuationToken string
}

type ListFilesResponse struct {
	Files                 []*FileInfo
	NextContinuationToken string
	IsTruncated           bool
}

type FileInfo struct {
	FileID       string            `json:"file_id"`
	FileName     string            `json:"file_name"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	ETag         string            `json:"etag"`
	LastModified time.Time         `json:"last_modified"`
	PublicURL    string            `json:"public_url"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

const (
	ProviderAzure = "azure"
	ProviderS3    = "s3"
	ProviderNone  = "none"
)

type Config struct {
	// Provider is azure, s3 or none
	Provider string
	Azure    AzureConfig
	S3       S3Config
}

type AzureConfig struct {
	StorageAccountName string
	StorageAccountKey  string

	// ConnectionString replaces name and key when set
	ConnectionString string
	ContainerName    string

	// BaseURL overrides the generated blob URL, e.g. for a CDN or Azurite
	BaseURL  string
	UseHTTPS bool
}

// S3Config targets any S3 compatible store (AWS, MinIO, R2)
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

var (
	ErrFileNotFound     = &CloudError{Code: "FILE_NOT_FOUND", Message: "File not found"}
	ErrInvalidFileID    = &CloudError{Code: "INVALID_FILE_ID", Message: "Invalid file ID"}
	ErrUploadFailed     = &CloudError{Code: "UPLOAD_FAILED", Message: "File upload failed"}
	ErrInvalidConfig    = &CloudError{Code: "INVALID_CONFIG", Message: "Invalid configuration"}
	ErrArchiveDisabled  = &CloudError{Code: "ARCHIVE_DISABLED", Message: "Ticket archive is disabled"}
	ErrUnsupportedImage = &CloudError{Code: "UNSUPPORTED_IMAGE", Message: "Unsupported image type"}
)

type CloudError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CloudError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *CloudError) Unwrap() error {
	return e.Cause
}

// Is matches CloudErrors by code so wrapped provider errors compare equal to the sentinels
func (e *CloudError) Is(target error) bool {
	t, ok := target.(*CloudError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
