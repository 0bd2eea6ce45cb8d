package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

const (
	DefaultWalrusPublisherURL  = "https://walrus-mainnet-publisher.nami.cloud"
	DefaultWalrusAggregatorURL = "https://aggregator.walrus-mainnet.walrus.space"
	walrusEpochs               = 1
)

// WalrusClient implements BlobStore on a Walrus publisher.
type WalrusClient struct {
	baseClient
	publisherURL  string
	aggregatorURL string
	endpointKey   string
}

func NewWalrusClient(logger *zap.Logger, publisherURL, aggregatorURL, endpointKey string, opts ...Option) *WalrusClient {
	if publisherURL == "" {
		publisherURL = DefaultWalrusPublisherURL
	}
	if aggregatorURL == "" {
		aggregatorURL = DefaultWalrusAggregatorURL
	}
	return &WalrusClient{
		baseClient:    newBaseClient(logger, opts),
		publisherURL:  publisherURL,
		aggregatorURL: aggregatorURL,
		endpointKey:   endpointKey,
	}
}

type walrusResponse struct {
	BlobID       string `json:"blobId"`
	NewlyCreated struct {
		BlobObject struct {
			BlobID string `json:"blobId"`
		} `json:"blobObject"`
	} `json:"newlyCreated"`
	AlreadyCertified struct {
		BlobID string `json:"blobId"`
	} `json:"alreadyCertified"`
}

func (r walrusResponse) blobID() string {
	switch {
	case r.BlobID != "":
		return r.BlobID
	case r.NewlyCreated.BlobObject.BlobID != "":
		return r.NewlyCreated.BlobObject.BlobID
	default:
		return r.AlreadyCertified.BlobID
	}
}

// Put stores data for one epoch and returns its aggregator URL.
func (c *WalrusClient) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/v1/blobs?epochs=%d", c.publisherURL, url.PathEscape(c.endpointKey), walrusEpochs)

	body, err := c.retryHTTPRequest(ctx, "Uploading blob to Walrus...", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("walrus upload failed: %w", err)
	}

	var resp walrusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse walrus response: %w", err)
	}
	id := resp.blobID()
	if id == "" {
		return "", fmt.Errorf("failed to get blob id from walrus response")
	}

	blobURL := c.aggregatorURL + "/v1/" + id
	c.logger.Sugar().Infow("Uploaded blob to Walrus", "url", blobURL, "bytes", len(data))
	return blobURL, nil
}
