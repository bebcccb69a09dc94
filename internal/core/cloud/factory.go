package cloud

import (
	"fmt"
	"strings"
)

// NewProvider creates the storage provider named in config.
// It returns nil without error when archiving is disabled.
func NewProvider(config Config) (Provider, error) {
	switch normalizeProvider(config.Provider) {
	case ProviderAzure:
		return NewAzureProvider(config.Azure)
	case ProviderS3:
		return NewS3Provider(config.S3)
	case ProviderNone:
		return nil, nil
	default:
		return nil, &CloudError{
			Code:    "INVALID_PROVIDER",
			Message: fmt.Sprintf("unsupported cloud provider: %s", config.Provider),
		}
	}
}

func normalizeProvider(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return ProviderNone
	}
	return p
}

func ValidateConfig(config Config) error {
	switch normalizeProvider(config.Provider) {
	case ProviderAzure:
		return ValidateAzureConfig(config.Azure)
	case ProviderS3:
		return ValidateS3Config(config.S3)
	case ProviderNone:
		return nil
	default:
		return &CloudError{
			Code:    "INVALID_PROVIDER",
			Message: fmt.Sprintf("unsupported cloud provider: %s", config.Provider),
		}
	}
}

func ValidateAzureConfig(config AzureConfig) error {
	if config.ConnectionString == "" {
		if config.StorageAccountName == "" {
			return &CloudError{
				Code:    "MISSING_AZURE_ACCOUNT",
				Message: "Azure storage account name or connection string is required",
			}
		}
		if config.StorageAccountKey == "" {
			return &CloudError{
				Code:    "MISSING_AZURE_KEY",
				Message: "Azure storage account key is required when not using connection string",
			}
		}
	}

	if config.ContainerName == "" {
		return &CloudError{
			Code:    "MISSING_AZURE_CONTAINER",
			Message: "Azure blob container name is required",
		}
	}

	return nil
}

func ValidateS3Config(config S3Config) error {
	if config.Endpoint == "" {
		return &CloudError{
			Code:    "MISSING_S3_ENDPOINT",
			Message: "S3 endpoint is required",
		}
	}

	if config.AccessKey == "" || config.SecretKey == "" {
		return &CloudError{
			Code:    "MISSING_S3_CREDENTIALS",
			Message: "S3 access key and secret key are required",
		}
	}

	if config.Bucket == "" {
		return &CloudError{
			Code:    "MISSING_S3_BUCKET",
			Message: "S3 bucket name is required",
		}
	}

	return nil
}
