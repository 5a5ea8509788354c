package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// DefaultContainer is the container Azure serves static websites from.
const DefaultContainer = "$web"

// AzureConfig configures an AzureTarget.
type AzureConfig struct {
	ConnectionString string
	Container        string
	// PublicAccess creates a missing container with container-level public
	// read access.
	PublicAccess bool
}

// AzureTarget deploys into an Azure Blob Storage container.
type AzureTarget struct {
	client    *azblob.Client
	container string
	public    bool
}

// NewAzureTarget builds a client from a storage connection string.
func NewAzureTarget(cfg AzureConfig) (*AzureTarget, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("azure target: connection string is empty")
	}
	if cfg.Container == "" {
		cfg.Container = DefaultContainer
	}
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("azure target: %w", err)
	}
	return &AzureTarget{client: client, container: cfg.Container, public: cfg.PublicAccess}, nil
}

func (a *AzureTarget) Name() string { return "azure:" + a.container }

func (a *AzureTarget) EnsureContainer(ctx context.Context) error {
	var opts *azblob.CreateContainerOptions
	if a.public {
		access := azblob.PublicAccessTypeContainer
		opts = &azblob.CreateContainerOptions{Access: &access}
	}
	_, err := a.client.CreateContainer(ctx, a.container, opts)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return err
	}
	return nil
}

func (a *AzureTarget) List(ctx context.Context) ([]BlobInfo, error) {
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{
		Include: azblob.ListBlobsInclude{Metadata: true},
	})
	var out []BlobInfo
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			info := BlobInfo{Name: *item.Name}
			for k, v := range item.Metadata {
				if strings.EqualFold(k, HashMetadataKey) && v != nil {
					info.Hash = *v
				}
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func (a *AzureTarget) Delete(ctx context.Context, name string) error {
	_, err := a.client.DeleteBlob(ctx, a.container, name, nil)
	if err != nil && bloberror.HasCode(err, bloberror.BlobNotFound) {
		return nil
	}
	return err
}

func (a *AzureTarget) Upload(ctx context.Context, name string, data []byte, h Headers, hash string) error {
	ct, cc := h.ContentType, h.CacheControl
	opts := &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType:  &ct,
			BlobCacheControl: &cc,
		},
	}
	if hash != "" {
		opts.Metadata = map[string]*string{HashMetadataKey: &hash}
	}
	_, err := a.client.UploadBuffer(ctx, a.container, name, data, opts)
	return err
}
