package ir

// Version constants for the agent and its persisted records.
const (
	// SchemaVersion is the version of the persisted record layout.
	SchemaVersion = "1"

	// AgentVersion is the vacatrack agent version.
	AgentVersion = "0.1.0"
)
