package iac

import "time"

// SourceRepository is an IaC repository (Terraform, CloudFormation) being monitored
type SourceRepository struct {
	ID        int64     `json:"id"`
	OrgID     int64     `json:"org_id"`
	Name      string    `json:"name"`
	Platform  string    `json:"platform"`
	URL       string    `json:"url"`
	Branch    string    `json:"branch"`
	IaCType   string    `json:"iac_type"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Repository platforms
const (
	PlatformGitHub    = "github"
	PlatformGitLab    = "gitlab"
	PlatformBitbucket = "bitbucket"
)

// IaC types
const (
	TypeTerraform      = "terraform"
	TypeCloudFormation = "cloudformation"
	TypePulumi         = "pulumi"
)

// DeclaredResource is one resource definition extracted from an IaC repository.
// ResourceID is the stable key of the resource within its repository; the pair
// (RepositoryID, ResourceID) is unique.
type DeclaredResource struct {
	ID             int64                  `json:"id"`
	RepositoryID   int64                  `json:"repository_id"`
	EnvironmentID  int64                  `json:"environment_id"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     string                 `json:"resource_id"`
	DeclaredState  map[string]interface{} `json:"declared_state"`
	SourceRevision string                 `json:"source_revision"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at,omitempty"`
}
