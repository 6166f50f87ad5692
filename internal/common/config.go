package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Input   InputConfig   `yaml:"input"`
	OCR     OCRConfig     `yaml:"ocr"`
	LLM     LLMConfig     `yaml:"llm"`
	Chunk   ChunkConfig   `yaml:"chunk"`
	Text    TextConfig    `yaml:"text"`
	Records RecordsConfig `yaml:"records"`
	Export  ExportConfig  `yaml:"export"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
}

// InputConfig holds document discovery configuration
type InputConfig struct {
	Dir           string        `yaml:"dir"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
	QueueSize     int           `yaml:"queue_size"`
	JobTimeout    time.Duration `yaml:"job_timeout"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine        string  `yaml:"engine"`
	MinChars      int     `yaml:"min_chars"`
	MinPrintable  float64 `yaml:"min_printable"`
	Lang          string  `yaml:"lang"`
	DPI           int     `yaml:"dpi"`
	TessdataDir   string  `yaml:"tessdata_dir"`
	TSVConfidence bool    `yaml:"tsv_confidence"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"-"`
	Temperature  float64       `yaml:"temperature"`
	TopP         float64       `yaml:"top_p"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	Concurrency  int           `yaml:"concurrency"`
}

// ChunkConfig holds chunking configuration. Sizes are in characters.
type ChunkConfig struct {
	Size      int  `yaml:"size"`
	Overlap   int  `yaml:"overlap"`
	Prefilter bool `yaml:"prefilter"`
}

// TextConfig holds text normalization configuration
type TextConfig struct {
	MinLangConfidence float64  `yaml:"min_lang_confidence"`
	ExpectedLangs     []string `yaml:"expected_langs"`
	StopTerms         []string `yaml:"stop_terms"`
}

// RecordsConfig holds record quality filtering configuration
type RecordsConfig struct {
	MinSpeciesTokens int  `yaml:"min_species_tokens"`
	RequireUse       bool `yaml:"require_use"`
}

// ExportConfig holds output configuration
type ExportConfig struct {
	OutputFile string `yaml:"output_file"`
}

// StoreConfig holds run ledger configuration
type StoreConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Dir:           "data_pdf",
			WatchDebounce: 2 * time.Second,
			QueueSize:     32,
			JobTimeout:    30 * time.Minute,
		},
		OCR: OCRConfig{
			Engine:       "tesseract",
			MinChars:     50,
			MinPrintable: 0.85,
			Lang:         "spa+eng",
			DPI:          300,
		},
		LLM: LLMConfig{
			Provider:     "ollama",
			Model:        "olmo2:7b",
			BaseURL:      "http://localhost:11434",
			Temperature:  0,
			TopP:         0.1,
			Timeout:      2 * time.Minute,
			MaxRetries:   3,
			RetryBackoff: time.Second,
			Concurrency:  1,
		},
		Chunk: ChunkConfig{
			Size:      4000,
			Overlap:   0,
			Prefilter: true,
		},
		Text: TextConfig{
			MinLangConfidence: 0,
			ExpectedLangs:     []string{"es", "en"},
		},
		Records: RecordsConfig{
			MinSpeciesTokens: 2,
		},
		Export: ExportConfig{
			OutputFile: "outputs/especies_precolombinas.xlsx",
		},
		Store: StoreConfig{
			MaxConns: 4,
		},
		Log: LogConfig{
			File:  "outputs/extractor_especies.log",
			Level: "info",
		},
	}
}

// LoadConfig loads configuration: defaults, then the YAML file at path (if any),
// then environment variables. An empty path falls back to CONFIG_FILE.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewAppError(CodeConfig, "read config file "+path, ErrInvalidInput, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return NewAppError(CodeConfig, "parse config file "+path, ErrInvalidInput, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Input.Dir = getEnv("INPUT_DIR", c.Input.Dir)
	c.Input.WatchDebounce = getEnvAsDuration("WATCH_DEBOUNCE", c.Input.WatchDebounce)
	c.Input.QueueSize = getEnvAsInt("WATCH_QUEUE_SIZE", c.Input.QueueSize)
	c.Input.JobTimeout = getEnvAsDuration("WATCH_JOB_TIMEOUT", c.Input.JobTimeout)

	c.OCR.Engine = getEnv("OCR_ENGINE", c.OCR.Engine)
	c.OCR.MinChars = getEnvAsInt("OCR_MIN_CHARS", c.OCR.MinChars)
	c.OCR.MinPrintable = getEnvAsFloat("OCR_MIN_PRINTABLE", c.OCR.MinPrintable)
	c.OCR.Lang = getEnv("TESSERACT_LANG", c.OCR.Lang)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.TSVConfidence = getEnvAsBool("OCR_TSV_CONFIDENCE", c.OCR.TSVConfidence)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.Temperature = getEnvAsFloat("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.TopP = getEnvAsFloat("LLM_TOP_P", c.LLM.TopP)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.MaxRetries = getEnvAsInt("LLM_MAX_RETRIES", c.LLM.MaxRetries)
	c.LLM.RetryBackoff = getEnvAsDuration("LLM_RETRY_BACKOFF", c.LLM.RetryBackoff)
	c.LLM.Concurrency = getEnvAsInt("LLM_CONCURRENCY", c.LLM.Concurrency)

	c.Chunk.Size = getEnvAsInt("CHUNK_SIZE", c.Chunk.Size)
	c.Chunk.Overlap = getEnvAsInt("CHUNK_OVERLAP", c.Chunk.Overlap)
	c.Chunk.Prefilter = getEnvAsBool("CHUNK_PREFILTER", c.Chunk.Prefilter)

	c.Text.MinLangConfidence = getEnvAsFloat("MIN_LANG_CONFIDENCE", c.Text.MinLangConfidence)
	c.Text.ExpectedLangs = getEnvAsList("EXPECTED_LANGS", c.Text.ExpectedLangs)
	c.Text.StopTerms = getEnvAsList("STOP_TERMS", c.Text.StopTerms)

	c.Records.MinSpeciesTokens = getEnvAsInt("MIN_SPECIES_TOKENS", c.Records.MinSpeciesTokens)
	c.Records.RequireUse = getEnvAsBool("REQUIRE_USE", c.Records.RequireUse)

	c.Export.OutputFile = getEnv("OUTPUT_FILE", c.Export.OutputFile)

	c.Store.DSN = getEnv("STORE_DSN", c.Store.DSN)
	c.Store.MaxConns = getEnvAsInt32("STORE_MAX_CONNS", c.Store.MaxConns)

	c.Log.File = getEnv("LOG_FILE", c.Log.File)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("INPUT_DIR", c.Input.Dir, Required)
	v.Field("OUTPUT_FILE", c.Export.OutputFile, Required)
	v.Field("WATCH_JOB_TIMEOUT", c.Input.JobTimeout, Positive)
	v.Field("LLM_PROVIDER", c.LLM.Provider, OneOf("ollama", "openai"))
	v.Field("LLM_MODEL", c.LLM.Model, Required)
	v.Field("LLM_BASE_URL", c.LLM.BaseURL, Required)
	v.Field("LLM_TEMPERATURE", c.LLM.Temperature, NonNegativeFloat)
	v.Field("LLM_TOP_P", c.LLM.TopP, Ratio)
	v.Field("LLM_TIMEOUT", c.LLM.Timeout, Positive)
	v.Field("LLM_MAX_RETRIES", c.LLM.MaxRetries, NonNegative, AtMost(10))
	v.Field("LLM_RETRY_BACKOFF", c.LLM.RetryBackoff, NonNegative)
	v.Field("LLM_CONCURRENCY", c.LLM.Concurrency, Positive, AtMost(64))
	v.Field("CHUNK_SIZE", c.Chunk.Size, Positive)
	v.Field("CHUNK_OVERLAP", c.Chunk.Overlap, NonNegative, AtMost(c.Chunk.Size/2))
	v.Field("OCR_ENGINE", c.OCR.Engine, OneOf("tesseract", "gosseract", "none"))
	v.Field("OCR_MIN_CHARS", c.OCR.MinChars, NonNegative)
	v.Field("OCR_MIN_PRINTABLE", c.OCR.MinPrintable, Ratio)
	v.Field("OCR_DPI", c.OCR.DPI, Positive)
	v.Field("MIN_LANG_CONFIDENCE", c.Text.MinLangConfidence, Ratio)
	v.Field("MIN_SPECIES_TOKENS", c.Records.MinSpeciesTokens, Positive)
	v.Field("LOG_LEVEL", c.Log.Level, OneOf("debug", "info", "warn", "error"))
	if strings.EqualFold(c.LLM.Provider, "openai") {
		v.Field("OPENAI_API_KEY", c.LLM.APIKey, Required)
	}
	if c.Text.MinLangConfidence > 0 {
		v.Field("EXPECTED_LANGS", c.Text.ExpectedLangs, Required)
	}
	return v.Err(CodeConfig)
}

// String renders the configuration for startup logs with secrets masked.
func (c *Config) String() string {
	key := ""
	if c.LLM.APIKey != "" {
		key = "***"
	}
	return fmt.Sprintf("input=%s output=%s provider=%s model=%s base_url=%s api_key=%s chunk=%d/%d concurrency=%d ocr=%s store=%t",
		c.Input.Dir, c.Export.OutputFile, c.LLM.Provider, c.LLM.Model, c.LLM.BaseURL, key,
		c.Chunk.Size, c.Chunk.Overlap, c.LLM.Concurrency, c.OCR.Engine, c.Store.DSN != "")
}
