package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/archiva-labs/doclens/internal/core/domain"
)

// Settings is the full on-disk configuration: the pipeline core
// configuration plus adapter-level settings the core never sees.
type Settings struct {
	// Config is the validated pipeline configuration.
	Config domain.Config

	// DataDir is the SQLite data directory. Empty means the default.
	DataDir string

	// InboxDir is the directory watched for new documents.
	InboxDir string

	// APIKey is the model provider API key. The OPENAI_API_KEY
	// environment variable takes precedence over the file value.
	APIKey string

	// BaseURL overrides the provider API base URL.
	BaseURL string
}

// duration parses TOML duration strings like "24h" or "500ms".
type duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// fileConfig mirrors the TOML file layout.
type fileConfig struct {
	Pipeline struct {
		ChunkSize     int      `toml:"chunk_size"`
		ChunkOverlap  int      `toml:"chunk_overlap"`
		RetryAttempts int      `toml:"retry_attempts"`
		RetryDelay    duration `toml:"retry_delay"`
		StageTimeout  duration `toml:"stage_timeout"`
		RunTimeout    duration `toml:"run_timeout"`
		Formats       []string `toml:"formats"`
		MaxFileSize   int64    `toml:"max_file_size_bytes"`
	} `toml:"pipeline"`

	Cache struct {
		Capacity     int      `toml:"capacity"`
		EmbeddingTTL duration `toml:"embedding_ttl"`
		AnalysisTTL  duration `toml:"analysis_ttl"`
		SearchTTL    duration `toml:"search_ttl"`
	} `toml:"cache"`

	Provider struct {
		APIKey         string  `toml:"api_key"`
		BaseURL        string  `toml:"base_url"`
		Model          string  `toml:"model"`
		EmbeddingModel string  `toml:"embedding_model"`
		MaxTokens      int     `toml:"max_tokens"`
		Temperature    float64 `toml:"temperature"`
	} `toml:"provider"`

	Search struct {
		ClassificationThreshold float64 `toml:"classification_threshold"`
		SimilarityThreshold     float64 `toml:"similarity_threshold"`
		MaxResults              int     `toml:"max_results"`
	} `toml:"search"`

	Index struct {
		Dimension int    `toml:"dimension"`
		Metric    string `toml:"metric"`
		Lists     int    `toml:"lists"`
		Probes    int    `toml:"probes"`
	} `toml:"index"`

	Storage struct {
		DataDir  string `toml:"data_dir"`
		InboxDir string `toml:"inbox_dir"`
	} `toml:"storage"`
}

// DefaultPath returns the default configuration file location,
// ~/.doclens/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".doclens", "config.toml"), nil
}

// Load reads the TOML file at path and merges it over the defaults.
// A missing file yields the defaults unchanged.
func Load(path string) (*Settings, error) {
	settings := &Settings{Config: domain.DefaultConfig()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(settings)
			return settings, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	apply(settings, fc)
	applyEnv(settings)

	if err := settings.Config.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// apply copies non-zero file values over the defaults.
func apply(s *Settings, fc fileConfig) {
	cfg := &s.Config

	if fc.Pipeline.ChunkSize > 0 {
		cfg.ChunkSize = fc.Pipeline.ChunkSize
	}
	if fc.Pipeline.ChunkOverlap > 0 {
		cfg.ChunkOverlap = fc.Pipeline.ChunkOverlap
	}
	if fc.Pipeline.RetryAttempts > 0 {
		cfg.RetryAttempts = fc.Pipeline.RetryAttempts
	}
	if fc.Pipeline.RetryDelay > 0 {
		cfg.RetryDelay = time.Duration(fc.Pipeline.RetryDelay)
	}
	if fc.Pipeline.StageTimeout > 0 {
		cfg.StageTimeout = time.Duration(fc.Pipeline.StageTimeout)
	}
	if fc.Pipeline.RunTimeout > 0 {
		cfg.RunTimeout = time.Duration(fc.Pipeline.RunTimeout)
	}
	if len(fc.Pipeline.Formats) > 0 {
		cfg.SupportedFormats = fc.Pipeline.Formats
	}
	if fc.Pipeline.MaxFileSize > 0 {
		cfg.MaxFileSizeBytes = fc.Pipeline.MaxFileSize
	}

	if fc.Cache.Capacity > 0 {
		cfg.CacheCapacity = fc.Cache.Capacity
	}
	if fc.Cache.EmbeddingTTL > 0 {
		cfg.EmbeddingTTL = time.Duration(fc.Cache.EmbeddingTTL)
	}
	if fc.Cache.AnalysisTTL > 0 {
		cfg.AnalysisTTL = time.Duration(fc.Cache.AnalysisTTL)
	}
	if fc.Cache.SearchTTL > 0 {
		cfg.SearchTTL = time.Duration(fc.Cache.SearchTTL)
	}

	if fc.Provider.Model != "" {
		cfg.Model = fc.Provider.Model
	}
	if fc.Provider.EmbeddingModel != "" {
		cfg.EmbeddingModel = fc.Provider.EmbeddingModel
	}
	if fc.Provider.MaxTokens > 0 {
		cfg.MaxTokens = fc.Provider.MaxTokens
	}
	if fc.Provider.Temperature > 0 {
		cfg.Temperature = fc.Provider.Temperature
	}

	if fc.Search.ClassificationThreshold > 0 {
		cfg.ClassificationThreshold = fc.Search.ClassificationThreshold
	}
	if fc.Search.SimilarityThreshold > 0 {
		cfg.SimilarityThreshold = fc.Search.SimilarityThreshold
	}
	if fc.Search.MaxResults > 0 {
		cfg.MaxResults = fc.Search.MaxResults
	}

	if fc.Index.Dimension > 0 {
		cfg.VectorDimension = fc.Index.Dimension
	}
	if fc.Index.Metric != "" {
		cfg.Metric = domain.DistanceMetric(fc.Index.Metric)
	}
	if fc.Index.Lists > 0 {
		cfg.IndexLists = fc.Index.Lists
	}
	if fc.Index.Probes > 0 {
		cfg.IndexProbes = fc.Index.Probes
	}

	s.APIKey = fc.Provider.APIKey
	s.BaseURL = fc.Provider.BaseURL
	s.DataDir = fc.Storage.DataDir
	s.InboxDir = fc.Storage.InboxDir
}

// applyEnv overrides file values from the environment.
func applyEnv(s *Settings) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		s.APIKey = key
	}
}
