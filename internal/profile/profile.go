package profile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol).
	LLMProvider string // Provider identifier: openai, deepseek, siliconflow, ollama
	LLMAPIKey   string
	LLMBaseURL  string // Optional, has default per provider
	LLMModel    string
	LLMTimeout  int // Request timeout in seconds (default: 120)

	// Embedding configuration.
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int

	Mode    string
	Addr    string
	Port    int
	Data    string
	Driver  string
	DSN     string
	Version string

	// Orchestration knobs.
	DefaultTaskDurationMin int // Duration assumed when the user gives none
	RecentTurnLimit        int // Short-term turns injected into prompts
	RetrievalTopK          int // Memory summaries retrieved per query
	ContextBudgetChars     int // Composed context size ceiling
	SummaryEveryNTurns     int // Turns between memory summarizations
	ClarificationRetries   int // Clarification re-prompts before giving up
	SummaryRetryLimit      int // Background summary upsert attempts

	// HardDeleteOnConflictCancel removes the losing task row instead of
	// soft-cancelling it when the user picks "cancel the existing task".
	HardDeleteOnConflictCancel bool
}

// Provider default configurations for LLM.
// Used when LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an LLM API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// FromEnv fills AI and orchestration settings from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = strings.ToLower(getEnvOrDefault("SERANI_LLM_PROVIDER", "openai"))
	p.LLMAPIKey = os.Getenv("SERANI_LLM_API_KEY")
	p.LLMBaseURL = os.Getenv("SERANI_LLM_BASE_URL")
	p.LLMModel = os.Getenv("SERANI_LLM_MODEL")
	p.LLMTimeout = getEnvOrDefaultInt("SERANI_LLM_TIMEOUT", 120)

	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = defaults.Model
		}
	}

	p.EmbeddingModel = getEnvOrDefault("SERANI_EMBEDDING_MODEL", "text-embedding-3-small")
	p.EmbeddingAPIKey = getEnvOrDefault("SERANI_EMBEDDING_API_KEY", p.LLMAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("SERANI_EMBEDDING_BASE_URL", "")
	p.EmbeddingDimensions = getEnvOrDefaultInt("SERANI_EMBEDDING_DIMENSIONS", 1536)

	p.DefaultTaskDurationMin = getEnvOrDefaultInt("SERANI_DEFAULT_TASK_DURATION_MIN", 60)
	p.RecentTurnLimit = getEnvOrDefaultInt("SERANI_RECENT_TURN_LIMIT", 4)
	p.RetrievalTopK = getEnvOrDefaultInt("SERANI_RETRIEVAL_TOP_K", 5)
	p.ContextBudgetChars = getEnvOrDefaultInt("SERANI_CONTEXT_BUDGET_CHARS", 4000)
	p.SummaryEveryNTurns = getEnvOrDefaultInt("SERANI_SUMMARY_EVERY_N_TURNS", 4)
	p.ClarificationRetries = getEnvOrDefaultInt("SERANI_CLARIFICATION_RETRIES", 3)
	p.SummaryRetryLimit = getEnvOrDefaultInt("SERANI_SUMMARY_RETRY_LIMIT", 3)
	p.HardDeleteOnConflictCancel = getEnvOrDefaultBool("SERANI_HARD_DELETE_ON_CONFLICT_CANCEL", false)
}

// Validate normalizes and checks the profile.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/serani"
	}

	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	switch p.Driver {
	case "sqlite":
		if p.DSN == "" {
			dbFile := filepath.Join(p.Data, "serani_"+p.Mode+".db")
			p.DSN = dbFile
		}
	case "postgres":
		if p.DSN == "" {
			return errors.New("dsn is required for postgres driver")
		}
	default:
		return errors.Errorf("unsupported database driver: %s", p.Driver)
	}

	if p.DefaultTaskDurationMin <= 0 {
		p.DefaultTaskDurationMin = 60
	}
	if p.SummaryEveryNTurns <= 0 {
		p.SummaryEveryNTurns = 4
	}
	if p.ClarificationRetries <= 0 {
		p.ClarificationRetries = 3
	}

	return nil
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing "/" in case the user supplies one.
	dataDir = strings.TrimRight(dataDir, "/")

	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}

	return dataDir, nil
}
