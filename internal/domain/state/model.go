package state

import "time"

// ObservedResource is the latest observed snapshot of a live cloud resource,
// matched to a declared resource by resource identifier within an environment.
// Each scan replaces the snapshot wholesale; no history is kept.
type ObservedResource struct {
	EnvironmentID int64                  `json:"environment_id"`
	ResourceID    string                 `json:"resource_id"`
	State         map[string]interface{} `json:"state"`
	ObservedAt    time.Time              `json:"observed_at"`
}
