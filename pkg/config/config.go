// Package config loads and validates gptbatch's YAML configuration,
// following the teacher's load → merge-with-defaults → validate → registry
// pipeline.
package config

// Config is the fully resolved, ready-to-use configuration.
type Config struct {
	configDir string

	Packer       *PackerConfig
	Station      *StationConfig
	Orchestrator *OrchestratorConfig
	Provider     *ProviderConfig
	BlobStore    *BlobStoreConfig
	APIKeys      []APIKeyConfig

	// OntologyPath points at the YAML concept catalog consumed by
	// pkg/ontology.
	OntologyPath string
}

// ConfigStats summarizes the loaded configuration, surfaced on /health.
type ConfigStats struct {
	APIKeys int
}

// Stats returns summary counts for the health endpoint.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{APIKeys: len(c.APIKeys)}
}

// ConfigDir returns the directory this configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}
