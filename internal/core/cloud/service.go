package cloud

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dakino/household-service/config"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("cloud-service")

// Service archives ticket photos. A Service without provider is disabled.
type Service struct {
	provider Provider
	logger   *slog.Logger
}

// NewService builds the archive from configuration; provider "none" yields a disabled service
func NewService(cfg config.CloudConfig, logger *slog.Logger) (*Service, error) {
	cloudConfig := Config{
		Provider: cfg.Provider,
		Azure: AzureConfig{
			StorageAccountName: cfg.Azure.StorageAccountName,
			StorageAccountKey:  cfg.Azure.StorageAccountKey,
			ConnectionString:   cfg.Azure.ConnectionString,
			ContainerName:      cfg.Azure.ContainerName,
			BaseURL:            cfg.Azure.BaseURL,
			UseHTTPS:           cfg.Azure.UseHTTPS,
		},
		S3: S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		},
	}

	if err := ValidateConfig(cloudConfig); err != nil {
		return nil, fmt.Errorf("invalid cloud storage configuration: %w", err)
	}

	provider, err := NewProvider(cloudConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud storage provider: %w", err)
	}

	if provider == nil {
		logger.Info("Ticket photo archive disabled")
	} else {
		logger.Info("Ticket photo archive enabled", "provider", normalizeProvider(cfg.Provider))
	}

	return NewServiceWithProvider(provider, logger), nil
}

func NewServiceWithProvider(provider Provider, logger *slog.Logger) *Service {
	return &Service{
		provider: provider,
		logger:   logger,
	}
}

func (s *Service) Enabled() bool {
	return s != nil && s.provider != nil
}

// UploadTicketImage stores a ticket photo under tickets/<household>/<uuid>.<ext>
func (s *Service) UploadTicketImage(ctx context.Context, householdID, userID uuid.UUID, fileName string, content io.Reader, contentType string, size int64) (*FileUploadResult, error) {
	ctx, span := tracer.Start(ctx, "cloud.UploadTicketImage")
	defer span.End()

	if !s.Enabled() {
		return nil, ErrArchiveDisabled
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrUnsupportedImage
	}

	metadata := map[string]string{
		"source":       "ticket_scan",
		"household_id": householdID.String(),
		"user_id":      userID.String(),
		"uploaded":     time.Now().UTC().Format(time.RFC3339),
	}
	tags := map[string]string{
		"source": "ticket_scan",
		"type":   "image",
	}

	resp, err := s.provider.UploadFile(ctx, &UploadRequest{
		FileID:        TicketObjectKey(householdID, fileName, contentType),
		FileName:      fileName,
		ContentType:   contentType,
		Content:       content,
		ContentLength: size,
		Metadata:      metadata,
		Tags:          tags,
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Error("Failed to archive ticket photo",
			"household_id", householdID,
			"user_id", userID,
			"file_name", fileName,
			"error", err)
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	s.logger.Info("Ticket photo archived",
		"household_id", householdID,
		"file_id", resp.FileID,
		"size", resp.Size)

	return &FileUploadResult{
		FileID:      resp.FileID,
		PublicURL:   resp.PublicURL,
		Size:        resp.Size,
		ContentType: resp.ContentType,
		UploadedAt:  resp.UploadedAt,
		Metadata:    metadata,
	}, nil
}

// ListHouseholdTickets lists archived ticket photos of one household
func (s *Service) ListHouseholdTickets(ctx context.Context, householdID uuid.UUID, maxResults int) ([]*FileInfo, error) {
	if !s.Enabled() {
		return nil, ErrArchiveDisabled
	}

	resp, err := s.provider.ListFiles(ctx, &ListFilesRequest{
		Prefix:     TicketPrefix(householdID),
		MaxResults: maxResults,
	})
	if err != nil {
		s.logger.Error("Failed to list ticket photos", "household_id", householdID, "error", err)
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return resp.Files, nil
}

// GetTemporaryFileURL returns a presigned read URL for an archived photo
func (s *Service) GetTemporaryFileURL(ctx context.Context, fileID string, expiration time.Duration) (string, error) {
	if !s.Enabled() {
		return "", ErrArchiveDisabled
	}

	url, err := s.provider.GetPresignedURL(ctx, fileID, expiration)
	if err != nil {
		s.logger.Error("Failed to generate temporary URL", "file_id", fileID, "error", err)
		return "", fmt.Errorf("failed to get presigned URL: %w", err)
	}
	return url, nil
}

func (s *Service) DeleteFile(ctx context.Context, fileID string) error {
	if !s.Enabled() {
		return ErrArchiveDisabled
	}

	if err := s.provider.DeleteFile(ctx, fileID); err != nil {
		s.logger.Error("Failed to delete file", "file_id", fileID, "error", err)
		return fmt.Errorf("failed to delete file: %w", err)
	}

	s.logger.Info("Deleted archived file", "file_id", fileID)
	return nil
}

func (s *Service) GetFileInfo(ctx context.Context, fileID string) (*FileInfo, error) {
	if !s.Enabled() {
		return nil, ErrArchiveDisabled
	}

	info, err := s.provider.GetFileInfo(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	return info, nil
}

type FileUploadResult struct {
	FileID      string
	PublicURL   string
	Size        int64
	ContentType string
	UploadedAt  time.Time
	Metadata    map[string]string
}
