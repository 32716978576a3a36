package types

import "time"

// Vendor is the closed set of LLM provider kinds a ProviderConfig may name.
type Vendor string

const (
	VendorDeepSeek  Vendor = "deepseek"
	VendorOpenAI    Vendor = "openai"
	VendorAnthropic Vendor = "anthropic"
	VendorGemini    Vendor = "gemini"
	VendorOllama    Vendor = "ollama"
	VendorAzure     Vendor = "azure"
)

// ProviderConfig describes one LLM vendor. Immutable after construction.
type ProviderConfig struct {
	Name               string
	Vendor             Vendor
	APIKey             string
	APIKeyEnv          string
	Model              string
	BaseURL            string
	Temperature        float32
	MaxTokens          int
	ConnectTimeout     time.Duration
	ReadTimeout        time.Duration
	RetryCount         int
	RetryBaseDelay     time.Duration
	MinRequestInterval time.Duration
	InputCostPer1K     float64
	OutputCostPer1K    float64
	Enabled            bool
}

// ProviderStatus is the mutable per-provider health record owned by the
// router. Invariant: ConsecutiveErrors >= 3 implies Healthy == false; any
// successful call resets ConsecutiveErrors to 0 and sets Healthy true.
type ProviderStatus struct {
	Healthy           bool
	ConsecutiveErrors int
	SuccessCount      int
	AvgResponseTime   time.Duration
	LastCheck         time.Time
	LastError         ErrorKind
	AccruedCost       float64
}

// MessageRole is one of system/user/assistant.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is one turn of an ordered conversation.
type ChatMessage struct {
	Role    MessageRole
	Content string
}

// ChatOverrides lets a caller override per-request generation parameters;
// zero values mean "use the provider's configured default".
type ChatOverrides struct {
	Temperature *float32
	MaxTokens   *int
	Provider    string // caller-named provider, empty = let router choose
}

// Usage mirrors the provider's reported token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the uniform result of a ChatCompletion call. When Success
// is false, Content is empty and Error is populated.
type ChatResponse struct {
	Success      bool
	Content      string
	Provider     string
	Model        string
	Latency      time.Duration
	Usage        *Usage
	FinishReason string
	Error        *CallError
}

// CostEstimate is the pre-call cost projection an adapter can produce.
type CostEstimate struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64
}

// RouterStats tracks router-wide counters, read via Router.Stats().
type RouterStats struct {
	TotalRequests      int
	SuccessfulRequests int
	FailedRequests     int
	FallbackCount      int
	ProviderUsage      map[string]int
}
