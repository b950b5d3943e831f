package providers

import (
	"context"
	"fmt"

	compute "cloud.google.com/go/compute/apiv1"
	"cloud.google.com/go/storage"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	computepb "google.golang.org/genproto/googleapis/cloud/compute/v1"

	"github.com/driftguard/driftguard/internal/domain/environment"
	"github.com/driftguard/driftguard/internal/pkg/errors"
	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/services"
)

// GCPCredentials carries the project and optional service account JSON;
// empty JSON means application default credentials
type GCPCredentials struct {
	ProjectID          string
	ServiceAccountJSON string
}

// GCPCollector fetches observed state documents for Compute Engine
// instances and Cloud Storage buckets
type GCPCollector struct {
	creds   GCPCredentials
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewGCPCollector creates a GCP collector. rps bounds cloud API calls per
// second.
func NewGCPCollector(creds GCPCredentials, rps float64, log *logger.Logger) services.Collector {
	if rps <= 0 {
		rps = 10
	}
	return &GCPCollector{
		creds:   creds,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  log,
	}
}

// Provider returns "gcp"
func (c *GCPCollector) Provider() string {
	return environment.ProviderGCP
}

// Collect fetches compute and storage state for the environment's project
func (c *GCPCollector) Collect(ctx context.Context, env *environment.Environment) (map[string]map[string]interface{}, error) {
	var opts []option.ClientOption
	if c.creds.ServiceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(c.creds.ServiceAccountJSON)))
	}

	project := c.creds.ProjectID
	if env.AccountID != "" {
		project = env.AccountID
	}

	observed := make(map[string]map[string]interface{})

	if err := c.collectInstances(ctx, project, opts, observed); err != nil {
		return nil, err
	}
	if err := c.collectBuckets(ctx, project, opts, observed); err != nil {
		c.logger.WithError(err).Warn("Storage collection failed, continuing with compute state")
	}

	return observed, nil
}

func (c *GCPCollector) collectInstances(ctx context.Context, project string, opts []option.ClientOption, observed map[string]map[string]interface{}) error {
	client, err := compute.NewInstancesRESTClient(ctx, opts...)
	if err != nil {
		return errors.ProviderAuthError("gcp", err)
	}
	defer client.Close()

	it := client.AggregatedList(ctx, &computepb.AggregatedListInstancesRequest{Project: project})
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		pair, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return errors.ProviderAPIError("gcp", err)
		}
		if pair.Value == nil {
			continue
		}

		for _, inst := range pair.Value.Instances {
			doc := map[string]interface{}{
				"name":                inst.GetName(),
				"machine_type":        inst.GetMachineType(),
				"status":              inst.GetStatus(),
				"zone":                inst.GetZone(),
				"deletion_protection": inst.GetDeletionProtection(),
			}

			labels := make(map[string]interface{}, len(inst.Labels))
			address := ""
			for k, v := range inst.Labels {
				if k == addressTag {
					address = v
					continue
				}
				labels[k] = v
			}
			doc["labels"] = labels

			if len(inst.NetworkInterfaces) > 0 {
				networks := make([]interface{}, 0, len(inst.NetworkInterfaces))
				for _, ni := range inst.NetworkInterfaces {
					networks = append(networks, map[string]interface{}{
						"network":    ni.GetNetwork(),
						"subnetwork": ni.GetSubnetwork(),
						"network_ip": ni.GetNetworkIP(),
					})
				}
				doc["network_interfaces"] = networks
			}

			if len(inst.ServiceAccounts) > 0 {
				accounts := make([]interface{}, 0, len(inst.ServiceAccounts))
				for _, sa := range inst.ServiceAccounts {
					accounts = append(accounts, map[string]interface{}{
						"email": sa.GetEmail(),
					})
				}
				doc["service_accounts"] = accounts
			}

			if address == "" {
				address = fmt.Sprintf("google_compute_instance.%s", inst.GetName())
			}
			observed[address] = doc
		}
	}

	return nil
}

func (c *GCPCollector) collectBuckets(ctx context.Context, project string, opts []option.ClientOption, observed map[string]map[string]interface{}) error {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return errors.ProviderAuthError("gcp", err)
	}
	defer client.Close()

	it := client.Buckets(ctx, project)
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return errors.ProviderAPIError("gcp", err)
		}

		doc := map[string]interface{}{
			"name":                     attrs.Name,
			"location":                 attrs.Location,
			"storage_class":            attrs.StorageClass,
			"versioning_enabled":       attrs.VersioningEnabled,
			"public_access_prevention": attrs.PublicAccessPrevention.String(),
			"uniform_bucket_level_access": map[string]interface{}{
				"enabled": attrs.UniformBucketLevelAccess.Enabled,
			},
		}
		if attrs.Encryption != nil {
			doc["encryption"] = map[string]interface{}{
				"default_kms_key": attrs.Encryption.DefaultKMSKeyName,
			}
		}

		labels := make(map[string]interface{}, len(attrs.Labels))
		address := ""
		for k, v := range attrs.Labels {
			if k == addressTag {
				address = v
				continue
			}
			labels[k] = v
		}
		doc["labels"] = labels

		if address == "" {
			address = fmt.Sprintf("google_storage_bucket.%s", attrs.Name)
		}
		observed[address] = doc
	}

	return nil
}
