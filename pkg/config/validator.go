package config

import "fmt"

// validate performs structural validation on loaded configuration.
func validate(cfg *Config) error {
	if cfg.Packer.MaxRequestsPerFile <= 0 {
		return NewValidationError("packer", "max_requests_per_file", "", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if cfg.Packer.MaxTokensPerFile <= 0 {
		return NewValidationError("packer", "max_tokens_per_file", "", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if cfg.Packer.MaxFileSizeBytes <= 0 {
		return NewValidationError("packer", "max_file_size_bytes", "", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}

	if cfg.Provider.BaseURL == "" {
		return NewValidationError("provider", "base_url", "", ErrMissingRequiredField)
	}

	seen := make(map[string]bool, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k.ID == "" {
			return NewValidationError("api_key", "", "id", ErrMissingRequiredField)
		}
		if seen[k.ID] {
			return NewValidationError("api_key", k.ID, "id", fmt.Errorf("%w: duplicate key id", ErrInvalidValue))
		}
		seen[k.ID] = true
		if k.SecretEnv == "" {
			return NewValidationError("api_key", k.ID, "secret_env", ErrMissingRequiredField)
		}
		if k.QuotaTokens <= 0 {
			return NewValidationError("api_key", k.ID, "quota_tokens", ErrInvalidValue)
		}
	}

	return nil
}
