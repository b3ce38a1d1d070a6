// Package opensearch maintains a secondary full-text and geo index over sale
// transactions, used to assemble comparable pools by city, type, and radius.
package opensearch

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/nadlantech/appraisal-engine/internal/config"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/logging"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
)

var (
	ErrInvalidConfig    = errors.New(errors.ErrCodeValidation, "invalid opensearch configuration")
	ErrConnectionFailed = errors.New(errors.ErrCodeExternalService, "opensearch connection failed")
)

// Client manages the OpenSearch connection.
type Client struct {
	client  *opensearch.Client
	logger  logging.Logger
	healthy atomic.Bool
}

// NewClient creates an OpenSearch client and verifies connectivity.
func NewClient(cfg config.OpenSearchConfig, log logging.Logger) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, ErrInvalidConfig
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.User,
		Password:      cfg.Password,
		MaxRetries:    3,
		RetryBackoff:  func(int) time.Duration { return 100 * time.Millisecond },
		RetryOnStatus: []int{429, 502, 503, 504},
		Transport:     transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to create opensearch client")
	}

	c := &Client{client: osClient, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		return nil, ErrConnectionFailed
	}

	log.Info("connected to OpenSearch", logging.Int("addresses", len(cfg.Addresses)))
	return c, nil
}

// NewClientWithOpenSearch wraps an existing client. Test use.
func NewClientWithOpenSearch(osClient *opensearch.Client, log logging.Logger) *Client {
	return &Client{client: osClient, logger: log}
}

// Ping checks the connection and updates the health flag.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		c.healthy.Store(false)
		return errors.Wrap(err, errors.ErrCodeExternalService, "opensearch ping failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		c.healthy.Store(false)
		return errors.New(errors.ErrCodeExternalService, "opensearch ping returned error status")
	}
	c.healthy.Store(true)
	return nil
}

// IsHealthy reports the result of the most recent ping.
func (c *Client) IsHealthy() bool {
	return c.healthy.Load()
}

// Raw returns the underlying OpenSearch client.
func (c *Client) Raw() *opensearch.Client {
	return c.client
}
