package providers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/time/rate"

	"github.com/driftguard/driftguard/internal/domain/environment"
	"github.com/driftguard/driftguard/internal/pkg/errors"
	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/services"
)

// addressTag is the tag/label that links a live resource back to its
// declared address (e.g. aws_instance.web). Resources without it fall back
// to a type/cloud-id key.
const addressTag = "driftguard-address"

// AWSCredentials carries static credentials; when empty the default chain
// (env, shared config, instance profile) applies
type AWSCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// AWSCollector fetches observed state documents for EC2 instances and S3
// buckets in an environment's region
type AWSCollector struct {
	creds   AWSCredentials
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewAWSCollector creates an AWS collector. rps bounds cloud API calls per
// second.
func NewAWSCollector(creds AWSCredentials, rps float64, log *logger.Logger) services.Collector {
	if rps <= 0 {
		rps = 10
	}
	return &AWSCollector{
		creds:   creds,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  log,
	}
}

// Provider returns "aws"
func (c *AWSCollector) Provider() string {
	return environment.ProviderAWS
}

// Collect fetches EC2 and S3 state for the environment's region
func (c *AWSCollector) Collect(ctx context.Context, env *environment.Environment) (map[string]map[string]interface{}, error) {
	cfg, err := c.loadConfig(ctx, env.Region)
	if err != nil {
		return nil, errors.ProviderAuthError("aws", err)
	}

	observed := make(map[string]map[string]interface{})

	if err := c.collectEC2(ctx, cfg, observed); err != nil {
		return nil, err
	}
	if err := c.collectS3(ctx, cfg, observed); err != nil {
		// Bucket listing failing should not discard the instance documents
		c.logger.WithError(err).Warn("S3 collection failed, continuing with EC2 state")
	}

	return observed, nil
}

func (c *AWSCollector) loadConfig(ctx context.Context, region string) (aws.Config, error) {
	if c.creds.AccessKeyID != "" && c.creds.SecretAccessKey != "" {
		return awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.creds.AccessKeyID, c.creds.SecretAccessKey, "")),
		)
	}
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
}

func (c *AWSCollector) collectEC2(ctx context.Context, cfg aws.Config, observed map[string]map[string]interface{}) error {
	client := ec2.NewFromConfig(cfg)
	p := ec2.NewDescribeInstancesPaginator(client, &ec2.DescribeInstancesInput{})

	for p.HasMorePages() {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		page, err := p.NextPage(ctx)
		if err != nil {
			return errors.ProviderAPIError("aws", err)
		}

		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				doc := map[string]interface{}{
					"instance_type": string(inst.InstanceType),
				}
				if inst.State != nil {
					doc["state"] = string(inst.State.Name)
				}
				if inst.ImageId != nil {
					doc["ami"] = *inst.ImageId
				}
				if inst.SubnetId != nil {
					doc["subnet_id"] = *inst.SubnetId
				}
				if inst.VpcId != nil {
					doc["vpc_id"] = *inst.VpcId
				}
				if inst.PublicIpAddress != nil {
					doc["public_ip"] = *inst.PublicIpAddress
				}

				groups := make([]interface{}, 0, len(inst.SecurityGroups))
				for _, sg := range inst.SecurityGroups {
					if sg.GroupId != nil {
						groups = append(groups, *sg.GroupId)
					}
				}
				doc["security_groups"] = groups

				tags := make(map[string]interface{}, len(inst.Tags))
				address := ""
				for _, t := range inst.Tags {
					if t.Key == nil || t.Value == nil {
						continue
					}
					if *t.Key == addressTag {
						address = *t.Value
						continue
					}
					tags[*t.Key] = *t.Value
				}
				doc["tags"] = tags

				if address == "" {
					address = fmt.Sprintf("aws_instance.%s", aws.ToString(inst.InstanceId))
				}
				observed[address] = doc
			}
		}
	}

	return nil
}

func (c *AWSCollector) collectS3(ctx context.Context, cfg aws.Config, observed map[string]map[string]interface{}) error {
	client := s3.NewFromConfig(cfg)

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return errors.ProviderAPIError("aws", err)
	}

	for _, bucket := range resp.Buckets {
		if bucket.Name == nil {
			continue
		}
		name := *bucket.Name

		doc := map[string]interface{}{
			"bucket": name,
		}
		if bucket.CreationDate != nil {
			doc["created_at"] = bucket.CreationDate.UTC().Format("2006-01-02T15:04:05Z")
		}

		address := fmt.Sprintf("aws_s3_bucket.%s", name)
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if tagging, err := client.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: bucket.Name}); err == nil {
			tags := make(map[string]interface{}, len(tagging.TagSet))
			for _, t := range tagging.TagSet {
				if t.Key == nil || t.Value == nil {
					continue
				}
				if *t.Key == addressTag {
					address = *t.Value
					continue
				}
				tags[*t.Key] = *t.Value
			}
			doc["tags"] = tags
		}

		observed[address] = doc
	}

	return nil
}
