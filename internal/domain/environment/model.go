package environment

import "time"

// Environment represents a cloud environment (AWS, GCP, Azure) owned by an organization
type Environment struct {
	ID        int64             `json:"id"`
	OrgID     int64             `json:"org_id"`
	Name      string            `json:"name"`
	Slug      string            `json:"slug"`
	Provider  string            `json:"provider"`
	Region    string            `json:"region"`
	AccountID string            `json:"account_id"`
	Tags      map[string]string `json:"tags,omitempty"`
	IsActive  bool              `json:"is_active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
}

// Cloud providers
const (
	ProviderAWS   = "aws"
	ProviderGCP   = "gcp"
	ProviderAzure = "azure"
)

// ReadyForScan reports whether the environment has the credentials context
// needed for drift detection. Scans against an environment that is not ready
// fail with NotConfigured.
func (e *Environment) ReadyForScan() bool {
	return e.IsActive && e.AccountID != "" && e.Region != ""
}
