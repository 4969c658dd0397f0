package providers

import (
	"context"
	"errors"
	"fmt"

	"nathanbeddoewebdev/cloudharvest/internal/domain"
	"nathanbeddoewebdev/cloudharvest/internal/services/auth"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"
)

type ec2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

type cloudwatchAPI interface {
	GetMetricData(ctx context.Context, params *cloudwatch.GetMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error)
	ListMetrics(ctx context.Context, params *cloudwatch.ListMetricsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.ListMetricsOutput, error)
}

// AWSProvider reads inventory from EC2 and metrics from CloudWatch.
type AWSProvider struct {
	ec2 ec2API
	cw  cloudwatchAPI
}

// NewAWSProvider loads credentials and region from the SDK's default chain
// (environment, shared config files, instance role). A non-empty region
// overrides the chain's region.
func NewAWSProvider(ctx context.Context, region string, optFns ...func(*awsconfig.LoadOptions) error) (*AWSProvider, error) {
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("aws: failed to load config: %w", err)
	}
	return newAWSProvider(ec2.NewFromConfig(cfg), cloudwatch.NewFromConfig(cfg)), nil
}

func newAWSProvider(ec2Client ec2API, cwClient cloudwatchAPI) *AWSProvider {
	return &AWSProvider{ec2: ec2Client, cw: cwClient}
}

// RegisterAWS registers the AWS provider factory with the global registry.
// Credentials come from the SDK chain, not the token store.
func RegisterAWS() {
	Register("aws", func(_ auth.Store, opts Options) (domain.Provider, error) {
		return NewAWSProvider(context.Background(), opts.Region)
	})
}

func (a *AWSProvider) GetDisplayName() string {
	return "AWS"
}

// awsError maps SDK error codes to domain sentinels.
func awsError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "RequestLimitExceeded", "TooManyRequestsException":
			return fmt.Errorf("%s: %w: %v", op, domain.ErrRateLimited, err)
		case "AuthFailure", "UnauthorizedOperation", "AccessDenied", "AccessDeniedException",
			"UnrecognizedClientException", "ExpiredToken", "ExpiredTokenException", "InvalidClientTokenId":
			return fmt.Errorf("%s: %w: %v", op, domain.ErrUnauthorized, err)
		case "ResourceNotFound", "ResourceNotFoundException", "InvalidInstanceID.NotFound":
			return fmt.Errorf("%s: %w: %v", op, domain.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

