package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "priorart-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// PatentDBConfig holds settings for the patent search backends.
type PatentDBConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Primary selects the backend for boolean and semantic strategies:
	// "patsnap" or "patentsview" (default "patsnap").
	Primary string `json:"primary" yaml:"primary" mapstructure:"primary"`

	// Username and Password are the PatSnap account credentials. Usually
	// supplied through .secrets/ or .env rather than the config file.
	Username string `json:"username,omitempty" yaml:"username,omitempty" mapstructure:"username"`
	Password string `json:"-" yaml:"-" mapstructure:"password"`

	// ClientID is the OAuth client identifier sent with the PatSnap login.
	ClientID string `json:"client_id,omitempty" yaml:"client_id,omitempty" mapstructure:"client_id"`

	// PassportURL is the PatSnap login service base URL.
	PassportURL string `json:"passport_url,omitempty" yaml:"passport_url,omitempty" mapstructure:"passport_url"`

	// SearchURL is the PatSnap search API base URL.
	SearchURL string `json:"search_url,omitempty" yaml:"search_url,omitempty" mapstructure:"search_url"`

	// PatentsViewAPIKey authenticates PatentsView requests.
	PatentsViewAPIKey string `json:"patentsview_api_key,omitempty" yaml:"patentsview_api_key,omitempty" mapstructure:"patentsview_api_key"`

	// EnableScholar routes Fundamental strategies to Semantic Scholar.
	EnableScholar bool `json:"enable_scholar" yaml:"enable_scholar" mapstructure:"enable_scholar"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`

	// MaxRetries bounds retries on HTTP 429 (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// AIConfig holds settings for the language model used by planning,
// scoring and keyword harvesting.
type AIConfig struct {
	// Provider selects the client: "openai" (structured outputs) or
	// "langchain" (JSON mode with repair). Default "openai".
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`

	// BaseURL points at an OpenAI-compatible endpoint. Empty uses the default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Model is the reasoning model used for planning and claim charts.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// FastModel is used for cheap passes such as keyword harvesting.
	// Empty falls back to Model.
	FastModel string `json:"fast_model,omitempty" yaml:"fast_model,omitempty" mapstructure:"fast_model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// MaxTokens caps each completion (default 2000).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AgentConfig holds the search agent's loop and budget settings.
type AgentConfig struct {
	// MaxIterations bounds the number of rounds (default 3).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations" mapstructure:"max_iterations"`

	// Concurrency is the worker pool size for strategy execution (default 5).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// QueryTimeout bounds each external search call (default 60s).
	QueryTimeout time.Duration `json:"query_timeout" yaml:"query_timeout" mapstructure:"query_timeout"`

	// SearchLimit is the page size of a first attempt (default 100).
	SearchLimit int `json:"search_limit" yaml:"search_limit" mapstructure:"search_limit"`

	// RelaxedLimit is the page size of a relaxed retry (default 50).
	RelaxedLimit int `json:"relaxed_limit" yaml:"relaxed_limit" mapstructure:"relaxed_limit"`

	// NoiseThreshold is the hit count above which a narrow query is skipped (default 1000).
	NoiseThreshold int `json:"noise_threshold" yaml:"noise_threshold" mapstructure:"noise_threshold"`

	// BroadNoiseThreshold applies to Broad strategies (default 2000).
	BroadNoiseThreshold int `json:"broad_noise_threshold" yaml:"broad_noise_threshold" mapstructure:"broad_noise_threshold"`

	// ReviewBatch caps the candidates scored per round (default 5).
	ReviewBatch int `json:"review_batch" yaml:"review_batch" mapstructure:"review_batch"`

	// ExpandSeeds is the number of top documents expanded per round (default 3).
	ExpandSeeds int `json:"expand_seeds" yaml:"expand_seeds" mapstructure:"expand_seeds"`

	// ExpandLimit caps family and citation results per seed (default 20).
	ExpandLimit int `json:"expand_limit" yaml:"expand_limit" mapstructure:"expand_limit"`

	// SecondaryCandidates caps references checked per missing feature (default 8).
	SecondaryCandidates int `json:"secondary_candidates" yaml:"secondary_candidates" mapstructure:"secondary_candidates"`

	// MaxValidatedCodes caps the validated classification codes (default 8).
	MaxValidatedCodes int `json:"max_validated_codes" yaml:"max_validated_codes" mapstructure:"max_validated_codes"`

	// HarvestDocuments is the number of high-value documents mined for keywords (default 3).
	HarvestDocuments int `json:"harvest_documents" yaml:"harvest_documents" mapstructure:"harvest_documents"`
}

// WithDefaults returns a copy with zero fields replaced by their defaults.
func (c AgentConfig) WithDefaults() AgentConfig {
	def := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	def(&c.MaxIterations, 3)
	def(&c.Concurrency, 5)
	def(&c.SearchLimit, 100)
	def(&c.RelaxedLimit, 50)
	def(&c.NoiseThreshold, 1000)
	def(&c.BroadNoiseThreshold, 2000)
	def(&c.ReviewBatch, 5)
	def(&c.ExpandSeeds, 3)
	def(&c.ExpandLimit, 20)
	def(&c.SecondaryCandidates, 8)
	def(&c.MaxValidatedCodes, 8)
	def(&c.HarvestDocuments, 3)
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 60 * time.Second
	}
	return c
}

// ArchiveConfig holds settings for the session archive.
type ArchiveConfig struct {
	// Dir is the directory holding the archive database (default "archive").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// MetricsConfig holds settings for the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics (e.g. ":9090"). Empty disables it.
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// PipelineConfig groups all component configurations.
type PipelineConfig struct {
	PatentDB PatentDBConfig `json:"patentdb" yaml:"patentdb" mapstructure:"patentdb"`
	AI       AIConfig       `json:"ai" yaml:"ai" mapstructure:"ai"`
	Agent    AgentConfig    `json:"agent" yaml:"agent" mapstructure:"agent"`
	Archive  ArchiveConfig  `json:"archive" yaml:"archive" mapstructure:"archive"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}
