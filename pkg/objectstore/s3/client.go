package s3

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/quarrydata/quarry/pkg/config"
	"github.com/quarrydata/quarry/pkg/errors"
)

// fallbackRegion is the last tier of the region resolution chain, applied
// when neither an explicit region nor an ambient default is available.
const fallbackRegion = "us-west-2"

// newClient builds a configured S3 client from layered configuration:
// ambient defaults loaded from the environment first, then explicit
// overrides applied in fixed precedence (credentials, region, endpoint,
// retry policy, timeout policy). Absent overrides fall through to the
// loaded defaults.
func newClient(ctx context.Context, cfg config.StoreConfig) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error

	if !cfg.Credentials.Empty() {
		provider := credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.Credentials.AccessKeyID,
				SecretAccessKey: cfg.Credentials.SecretAccessKey,
				SessionToken:    cfg.Credentials.SessionToken,
				Source:          cfg.Credentials.Provider,
			},
		}
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(provider))
	}

	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	if retryer := buildRetryer(cfg.Retry); retryer != nil {
		loadOpts = append(loadOpts, awsconfig.WithRetryer(retryer))
	}

	if cfg.OperationTimeout > 0 {
		httpClient := awshttp.NewBuildableClient().WithTimeout(cfg.OperationTimeout)
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(httpClient))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load ambient configuration")
	}

	awsCfg.Region = resolveRegion(cfg.Region, awsCfg.Region)

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return client, nil
}

// resolveRegion applies the three-tier region chain: explicit value,
// ambient default, hardcoded fallback.
func resolveRegion(explicit, ambient string) string {
	if explicit != "" {
		return explicit
	}
	if ambient != "" {
		return ambient
	}
	return fallbackRegion
}

// buildRetryer translates the retry policy into an SDK retryer constructor.
// A nil return keeps the SDK default.
func buildRetryer(rc config.RetryConfig) func() aws.Retryer {
	if rc.Disabled {
		return func() aws.Retryer { return aws.NopRetryer{} }
	}
	if rc.MaxAttempts == 0 && rc.MaxBackoff == 0 {
		return nil
	}
	return func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			if rc.MaxAttempts > 0 {
				o.MaxAttempts = rc.MaxAttempts
			}
			if rc.MaxBackoff > 0 {
				o.MaxBackoff = rc.MaxBackoff
			}
		})
	}
}

// lazyClient builds the S3 client on first use and reuses it afterwards.
// The Go SDK client is goroutine-safe, so one client serves a store and
// every reader derived from it. Construction errors are never cached: a
// failed attempt (a cancelled first caller's context, say) is retried by
// the next caller instead of poisoning the store.
type lazyClient struct {
	cfg   config.StoreConfig
	build func(context.Context, config.StoreConfig) (*s3.Client, error)

	mu     sync.Mutex
	client *s3.Client
}

func newLazyClient(cfg config.StoreConfig) *lazyClient {
	return &lazyClient{cfg: cfg, build: newClient}
}

func (lc *lazyClient) get(ctx context.Context) (*s3.Client, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.client != nil {
		return lc.client, nil
	}

	client, err := lc.build(ctx, lc.cfg)
	if err != nil {
		return nil, err
	}
	lc.client = client
	return client, nil
}
