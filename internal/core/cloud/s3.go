package cloud

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Provider stores ticket photos in an S3 compatible bucket
type S3Provider struct {
	api    *minio.Client
	bucket string
	config S3Config
}

func NewS3Provider(config S3Config) (*S3Provider, error) {
	if err := ValidateS3Config(config); err != nil {
		return nil, err
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, &CloudError{
			Code:    "S3_CLIENT_ERROR",
			Message: "failed to create S3 client",
			Cause:   err,
		}
	}

	return &S3Provider{
		api:    client,
		bucket: config.Bucket,
		config: config,
	}, nil
}

func (p *S3Provider) UploadFile(ctx context.Context, req *UploadRequest) (*UploadResponse, error) {
	if req == nil {
		return nil, &CloudError{Code: "INVALID_REQUEST", Message: "upload request cannot be nil"}
	}

	fileID := req.FileID
	if fileID == "" {
		fileID = newFileID(req.FileName, req.ContentType)
	}

	metadata := make(map[string]string, len(req.Metadata)+1)
	if req.FileName != "" {
		metadata["filename"] = req.FileName
	}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	size := req.ContentLength
	if size <= 0 {
		size = -1
	}

	info, err := p.api.PutObject(ctx, p.bucket, fileID, req.Content, size, minio.PutObjectOptions{
		ContentType:  req.ContentType,
		UserMetadata: metadata,
		UserTags:     req.Tags,
	})
	if err != nil {
		return nil, &CloudError{
			Code:    ErrUploadFailed.Code,
			Message: "failed to upload file to S3",
			Cause:   err,
		}
	}

	return &UploadResponse{
		FileID:      fileID,
		PublicURL:   p.publicURL(fileID),
		Size:        info.Size,
		ContentType: req.ContentType,
		ETag:        info.ETag,
		UploadedAt:  time.Now().UTC(),
	}, nil
}

func (p *S3Provider) GetFileURL(_ context.Context, fileID string) (string, error) {
	if fileID == "" {
		return "", ErrInvalidFileID
	}
	return p.publicURL(fileID), nil
}

func (p *S3Provider) GetPresignedURL(ctx context.Context, fileID string, expiration time.Duration) (string, error) {
	if fileID == "" {
		return "", ErrInvalidFileID
	}

	if _, err := p.api.StatObject(ctx, p.bucket, fileID, minio.StatObjectOptions{}); err != nil {
		return "", s3Error(err, "failed to stat object")
	}

	u, err := p.api.PresignedGetObject(ctx, p.bucket, fileID, expiration, nil)
	if err != nil {
		return "", &CloudError{
			Code:    "PRESIGN_FAILED",
			Message: "failed to presign S3 object",
			Cause:   err,
		}
	}
	return u.String(), nil
}

func (p *S3Provider) DeleteFile(ctx context.Context, fileID string) error {
	if fileID == "" {
		return ErrInvalidFileID
	}

	if err := p.api.RemoveObject(ctx, p.bucket, fileID, minio.RemoveObjectOptions{}); err != nil {
		return s3Error(err, "failed to delete file from S3")
	}
	return nil
}

func (p *S3Provider) ListFiles(ctx context.Context, req *ListFilesRequest) (*ListFilesResponse, error) {
	if req == nil {
		req = &ListFilesRequest{}
	}

	opts := minio.ListObjectsOptions{
		Prefix:       req.Prefix,
		Recursive:    true,
		WithMetadata: true,
		StartAfter:   req.ContinuationToken,
	}

	out := &ListFilesResponse{Files: []*FileInfo{}}

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range p.api.ListObjects(listCtx, p.bucket, opts) {
		if obj.Err != nil {
			return nil, &CloudError{
				Code:    "LIST_FAILED",
				Message: "failed to list files from S3",
				Cause:   obj.Err,
			}
		}

		if req.MaxResults > 0 && len(out.Files) == req.MaxResults {
			out.IsTruncated = true
			out.NextContinuationToken = out.Files[len(out.Files)-1].FileID
			break
		}

		info := &FileInfo{
			FileID:       obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
			PublicURL:    p.publicURL(obj.Key),
			Metadata:     userMetadata(obj.UserMetadata),
			Tags:         obj.UserTags,
		}
		info.FileName = info.Metadata["filename"]
		out.Files = append(out.Files, info)
	}

	return out, nil
}

func (p *S3Provider) GetFileInfo(ctx context.Context, fileID string) (*FileInfo, error) {
	if fileID == "" {
		return nil, ErrInvalidFileID
	}

	obj, err := p.api.StatObject(ctx, p.bucket, fileID, minio.StatObjectOptions{})
	if err != nil {
		return nil, s3Error(err, "failed to stat object")
	}

	info := &FileInfo{
		FileID:       fileID,
		Size:         obj.Size,
		ContentType:  obj.ContentType,
		ETag:         obj.ETag,
		LastModified: obj.LastModified,
		PublicURL:    p.publicURL(fileID),
		Metadata:     userMetadata(obj.UserMetadata),
		Tags:         obj.UserTags,
	}
	info.FileName = info.Metadata["filename"]
	return info, nil
}

func (p *S3Provider) publicURL(fileID string) string {
	scheme := "http"
	if p.config.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, p.config.Endpoint, p.bucket, escapeKey(fileID))
}

// userMetadata strips the X-Amz-Meta- prefix S3 puts on user metadata keys
func userMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[normalizeMetaKey(k)] = v
	}
	return out
}

func normalizeMetaKey(k string) string {
	k = strings.ToLower(k)
	return strings.TrimPrefix(k, "x-amz-meta-")
}

func s3Error(err error, message string) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
		return &CloudError{Code: ErrFileNotFound.Code, Message: ErrFileNotFound.Message, Cause: err}
	}
	return &CloudError{Code: "S3_REQUEST_FAILED", Message: message, Cause: err}
}
