package config

// ProviderConfig points at the batch inference provider's HTTP endpoints.
type ProviderConfig struct {
	BaseURL        string `yaml:"base_url"`
	UploadPath     string `yaml:"upload_path"`
	CreateBatchPath string `yaml:"create_batch_path"`
	RetrievePath   string `yaml:"retrieve_path"` // printf-style, takes external batch ID
	FileContentPath string `yaml:"file_content_path"` // printf-style, takes file ID
}

// DefaultProviderConfig returns the built-in OpenAI-compatible batch API
// paths.
func DefaultProviderConfig() *ProviderConfig {
	return &ProviderConfig{
		BaseURL:         "https://api.openai.com/v1",
		UploadPath:      "/files",
		CreateBatchPath: "/batches",
		RetrievePath:    "/batches/%s",
		FileContentPath: "/files/%s/content",
	}
}

// BlobStoreConfig points at the S3-compatible blob store holding input/
// output JSONL files.
type BlobStoreConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	AccessKeyEnv    string `yaml:"access_key_env"`
	SecretKeyEnv    string `yaml:"secret_key_env"`
	UseSSL          bool   `yaml:"use_ssl"`
}

// APIKeyConfig is one entry in the API key registry: an identifier, the
// environment variable holding the secret, and its quota.
type APIKeyConfig struct {
	ID            string `yaml:"id"`
	SecretEnv     string `yaml:"secret_env"`
	QuotaTokens   int64  `yaml:"quota_tokens"`
	QuotaRequests int64  `yaml:"quota_requests"`
}
