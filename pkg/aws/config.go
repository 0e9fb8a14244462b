package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"go.uber.org/zap"
)

// LoadAWSConfig loads the default SDK config. When AWS_ENDPOINT is set every
// client built from it targets that URL instead of AWS (LocalStack).
func LoadAWSConfig(ctx context.Context, log *zap.Logger) (sdkaws.Config, error) {
	var opts []func(*config.LoadOptions) error
	endpoint := os.Getenv("AWS_ENDPOINT")
	if endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}

	if log != nil {
		log.Debug("aws config loaded", zap.String("region", cfg.Region), zap.String("endpoint", endpoint))
	}
	return cfg, nil
}
