package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// gptbatchYAMLConfig mirrors the gptbatch.yaml file structure.
type gptbatchYAMLConfig struct {
	Packer       *PackerConfig       `yaml:"packer"`
	Station      *StationConfig      `yaml:"station"`
	Orchestrator *OrchestratorConfig `yaml:"orchestrator"`
	Provider     *ProviderConfig     `yaml:"provider"`
	BlobStore    *BlobStoreConfig    `yaml:"blob_store"`
	APIKeys      []APIKeyConfig      `yaml:"api_keys"`
	OntologyPath string              `yaml:"ontology_path"`
}

// Initialize loads, merges and validates configuration from configDir,
// returning a ready-to-use Config.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	raw, err := loadYAML(configDir)
	if err != nil {
		return nil, err
	}

	packerCfg := DefaultPackerConfig()
	if raw.Packer != nil {
		if err := mergo.Merge(packerCfg, raw.Packer, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging packer config: %w", err)
		}
	}

	stationCfg := DefaultStationConfig()
	if raw.Station != nil {
		if err := mergo.Merge(stationCfg, raw.Station, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging station config: %w", err)
		}
	}

	providerCfg := DefaultProviderConfig()
	if raw.Provider != nil {
		if err := mergo.Merge(providerCfg, raw.Provider, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging provider config: %w", err)
		}
	}

	orchestratorCfg := DefaultOrchestratorConfig()
	if raw.Orchestrator != nil {
		if err := mergo.Merge(orchestratorCfg, raw.Orchestrator, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging orchestrator config: %w", err)
		}
	}

	cfg := &Config{
		configDir:    configDir,
		Packer:       packerCfg,
		Station:      stationCfg,
		Orchestrator: orchestratorCfg,
		Provider:     providerCfg,
		BlobStore:    raw.BlobStore,
		APIKeys:      raw.APIKeys,
		OntologyPath: resolveOntologyPath(configDir, raw.OntologyPath),
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("configuration initialized", "api_keys", len(cfg.APIKeys))
	return cfg, nil
}

func loadYAML(configDir string) (*gptbatchYAMLConfig, error) {
	path := filepath.Join(configDir, "gptbatch.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &gptbatchYAMLConfig{}, nil
		}
		return nil, NewLoadError(path, err)
	}

	var raw gptbatchYAMLConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}
	return &raw, nil
}

func resolveOntologyPath(configDir, configured string) string {
	if configured == "" {
		return filepath.Join(configDir, "ontology.yaml")
	}
	if filepath.IsAbs(configured) {
		return configured
	}
	return filepath.Join(configDir, configured)
}
