package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DrSkyle/bridgestore/pkg/config"
	"github.com/DrSkyle/bridgestore/pkg/version"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// NewAWSConfig builds an SDK config from explicit settings only. Shared
// profiles and ambient AWS_* variables are never consulted, so the backend
// talks to exactly what BRIDGE_AWS_* describes.
func NewAWSConfig(cfg config.AWS, verbose bool, logger *slog.Logger) aws.Config {
	awsCfg := aws.Config{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	}
	if cfg.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	awsCfg.APIOptions = append(awsCfg.APIOptions, withUserAgent)
	if verbose && logger != nil {
		awsCfg.APIOptions = append(awsCfg.APIOptions, withCallLogger(logger))
	}
	return awsCfg
}

func withUserAgent(stack *middleware.Stack) error {
	return stack.Build.Add(middleware.BuildMiddlewareFunc("BridgeUserAgent", func(ctx context.Context, input middleware.BuildInput, next middleware.BuildHandler) (
		middleware.BuildOutput, middleware.Metadata, error,
	) {
		if req, ok := input.Request.(*smithyhttp.Request); ok {
			ua := req.Header.Get("User-Agent")
			suffix := fmt.Sprintf("%s/%s", version.AppName, version.Current)
			if ua == "" {
				ua = suffix
			} else {
				ua += " " + suffix
			}
			req.Header.Set("User-Agent", ua)
		}
		return next.HandleBuild(ctx, input)
	}), middleware.After)
}

// withCallLogger logs every API call before serialization.
func withCallLogger(logger *slog.Logger) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Initialize.Add(middleware.InitializeMiddlewareFunc("BridgeCallLogger", func(ctx context.Context, input middleware.InitializeInput, next middleware.InitializeHandler) (
			middleware.InitializeOutput, middleware.Metadata, error,
		) {
			logger.Debug("AWS API call",
				"service", awsmiddleware.GetServiceID(ctx),
				"operation", awsmiddleware.GetOperationName(ctx),
			)
			return next.HandleInitialize(ctx, input)
		}), middleware.Before)
	}
}

// VerifyIdentity checks the credentials in awsCfg against STS and returns the
// account ID they belong to.
func VerifyIdentity(ctx context.Context, awsCfg aws.Config) (string, error) {
	out, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", normalizeAWSError(err)
	}
	return aws.ToString(out.Account), nil
}
