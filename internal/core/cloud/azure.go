package cloud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

// AzureProvider stores ticket photos in an Azure Blob Storage container
type AzureProvider struct {
	client        *azblob.Client
	credential    *azblob.SharedKeyCredential
	containerName string
	config        AzureConfig
}

func NewAzureProvider(config AzureConfig) (*AzureProvider, error) {
	if err := ValidateAzureConfig(config); err != nil {
		return nil, err
	}

	var (
		client     *azblob.Client
		credential *azblob.SharedKeyCredential
		err        error
	)

	if config.ConnectionString != "" {
		client, err = azblob.NewClientFromConnectionString(config.ConnectionString, nil)
	} else {
		credential, err = azblob.NewSharedKeyCredential(config.StorageAccountName, config.StorageAccountKey)
		if err != nil {
			return nil, &CloudError{
				Code:    "AZURE_CREDENTIAL_ERROR",
				Message: "failed to create Azure credentials",
				Cause:   err,
			}
		}
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", config.StorageAccountName)
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
		// account keys are always served over https
		config.UseHTTPS = true
	}

	if err != nil {
		return nil, &CloudError{
			Code:    "AZURE_CLIENT_ERROR",
			Message: "failed to create Azure Blob Storage client",
			Cause:   err,
		}
	}

	return &AzureProvider{
		client:        client,
		credential:    credential,
		containerName: config.ContainerName,
		config:        config,
	}, nil
}

func (p *AzureProvider) UploadFile(ctx context.Context, req *UploadRequest) (*UploadResponse, error) {
	if req == nil {
		return nil, &CloudError{Code: "INVALID_REQUEST", Message: "upload request cannot be nil"}
	}

	fileID := req.FileID
	if fileID == "" {
		fileID = newFileID(req.FileName, req.ContentType)
	}

	metadata := make(map[string]*string, len(req.Metadata)+1)
	if req.FileName != "" {
		metadata["filename"] = to.Ptr(req.FileName)
	}
	for k, v := range req.Metadata {
		metadata[k] = to.Ptr(v)
	}

	opts := &azblob.UploadStreamOptions{
		Metadata: metadata,
		Tags:     req.Tags,
	}
	if req.ContentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(req.ContentType)}
	}

	resp, err := p.client.UploadStream(ctx, p.containerName, fileID, req.Content, opts)
	if err != nil {
		return nil, &CloudError{
			Code:    ErrUploadFailed.Code,
			Message: "failed to upload file to Azure Blob Storage",
			Cause:   err,
		}
	}

	out := &UploadResponse{
		FileID:      fileID,
		PublicURL:   p.publicURL(fileID),
		ContentType: req.ContentType,
		UploadedAt:  time.Now().UTC(),
	}
	if resp.ETag != nil {
		out.ETag = string(*resp.ETag)
	}
	if req.ContentLength > 0 {
		out.Size = req.ContentLength
	}

	return out, nil
}

func (p *AzureProvider) GetFileURL(_ context.Context, fileID string) (string, error) {
	if fileID == "" {
		return "", ErrInvalidFileID
	}
	return p.publicURL(fileID), nil
}

func (p *AzureProvider) GetPresignedURL(ctx context.Context, fileID string, expiration time.Duration) (string, error) {
	if fileID == "" {
		return "", ErrInvalidFileID
	}
	if p.credential == nil {
		return "", &CloudError{
			Code:    "SAS_GENERATION_FAILED",
			Message: "presigned URLs need account name and key credentials",
		}
	}

	blobClient := p.client.ServiceClient().NewContainerClient(p.containerName).NewBlobClient(fileID)
	if _, err := blobClient.GetProperties(ctx, nil); err != nil {
		return "", azureError(err, "failed to read blob properties")
	}

	params, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		ExpiryTime:    time.Now().UTC().Add(expiration),
		ContainerName: p.containerName,
		BlobName:      fileID,
		Permissions:   to.Ptr(sas.BlobPermissions{Read: true}).String(),
	}.SignWithSharedKey(p.credential)
	if err != nil {
		return "", &CloudError{
			Code:    "SAS_GENERATION_FAILED",
			Message: "failed to generate SAS token",
			Cause:   err,
		}
	}

	return p.publicURL(fileID) + "?" + params.Encode(), nil
}

func (p *AzureProvider) DeleteFile(ctx context.Context, fileID string) error {
	if fileID == "" {
		return ErrInvalidFileID
	}

	if _, err := p.client.DeleteBlob(ctx, p.containerName, fileID, nil); err != nil {
		return azureError(err, "failed to delete file from Azure Blob Storage")
	}
	return nil
}

func (p *AzureProvider) ListFiles(ctx context.Context, req *ListFilesRequest) (*ListFilesResponse, error) {
	if req == nil {
		req = &ListFilesRequest{}
	}

	opts := &container.ListBlobsFlatOptions{
		Include: container.ListBlobsInclude{Metadata: true, Tags: true},
	}
	if req.Prefix != "" {
		opts.Prefix = to.Ptr(req.Prefix)
	}
	if req.MaxResults > 0 {
		opts.MaxResults = to.Ptr(int32(req.MaxResults))
	}
	if req.ContinuationToken != "" {
		opts.Marker = to.Ptr(req.ContinuationToken)
	}

	pager := p.client.ServiceClient().NewContainerClient(p.containerName).NewListBlobsFlatPager(opts)
	out := &ListFilesResponse{Files: []*FileInfo{}}

	// one page per call, callers continue with NextContinuationToken
	if !pager.More() {
		return out, nil
	}
	page, err := pager.NextPage(ctx)
	if err != nil {
		return nil, &CloudError{
			Code:    "LIST_FAILED",
			Message: "failed to list files from Azure Blob Storage",
			Cause:   err,
		}
	}

	for _, blob := range page.Segment.BlobItems {
		if blob.Name == nil {
			continue
		}

		info := &FileInfo{
			FileID:    *blob.Name,
			PublicURL: p.publicURL(*blob.Name),
			Metadata:  derefMap(blob.Metadata),
			Tags:      make(map[string]string),
		}
		info.FileName = info.Metadata["filename"]

		if props := blob.Properties; props != nil {
			if props.ContentLength != nil {
				info.Size = *props.ContentLength
			}
			if props.ContentType != nil {
				info.ContentType = *props.ContentType
			}
			if props.LastModified != nil {
				info.LastModified = *props.LastModified
			}
			if props.ETag != nil {
				info.ETag = string(*props.ETag)
			}
		}

		if blob.BlobTags != nil {
			for _, tag := range blob.BlobTags.BlobTagSet {
				if tag.Key != nil && tag.Value != nil {
					info.Tags[*tag.Key] = *tag.Value
				}
			}
		}

		out.Files = append(out.Files, info)
	}

	if page.NextMarker != nil && *page.NextMarker != "" {
		out.NextContinuationToken = *page.NextMarker
		out.IsTruncated = true
	}

	return out, nil
}

func (p *AzureProvider) GetFileInfo(ctx context.Context, fileID string) (*FileInfo, error) {
	if fileID == "" {
		return nil, ErrInvalidFileID
	}

	blobClient := p.client.ServiceClient().NewContainerClient(p.containerName).NewBlobClient(fileID)

	props, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		return nil, azureError(err, "failed to read blob properties")
	}

	info := &FileInfo{
		FileID:    fileID,
		PublicURL: p.publicURL(fileID),
		Metadata:  derefMap(props.Metadata),
		Tags:      make(map[string]string),
	}
	info.FileName = info.Metadata["filename"]
	if props.ContentLength != nil {
		info.Size = *props.ContentLength
	}
	if props.ContentType != nil {
		info.ContentType = *props.ContentType
	}
	if props.LastModified != nil {
		info.LastModified = *props.LastModified
	}
	if props.ETag != nil {
		info.ETag = string(*props.ETag)
	}

	// tags are best effort, SAS scoped clients may not be allowed to read them
	if tags, err := blobClient.GetTags(ctx, nil); err == nil {
		for _, tag := range tags.BlobTagSet {
			if tag.Key != nil && tag.Value != nil {
				info.Tags[*tag.Key] = *tag.Value
			}
		}
	}

	return info, nil
}

func (p *AzureProvider) publicURL(fileID string) string {
	if p.config.BaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", p.config.BaseURL, p.containerName, escapeKey(fileID))
	}

	protocol := "https"
	if !p.config.UseHTTPS {
		protocol = "http"
	}

	return fmt.Sprintf("%s://%s.blob.core.windows.net/%s/%s",
		protocol, p.config.StorageAccountName, p.containerName, escapeKey(fileID))
}

func azureError(err error, message string) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return &CloudError{Code: ErrFileNotFound.Code, Message: ErrFileNotFound.Message, Cause: err}
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		message = fmt.Sprintf("%s (status %d)", message, respErr.StatusCode)
	}
	return &CloudError{Code: "AZURE_REQUEST_FAILED", Message: message, Cause: err}
}

func derefMap(m map[string]*string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}
