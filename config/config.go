package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig         `mapstructure:"server"`
	Database      DatabaseConfig       `mapstructure:"database"`
	Redis         RedisConfig          `mapstructure:"redis"`
	JWT           JWTConfig            `mapstructure:"jwt"`
	OSS           OSSConfig            `mapstructure:"oss"`
	OAuth         OAuthConfig          `mapstructure:"oauth"`
	Email         EmailConfig          `mapstructure:"email"`
	Queue         QueueConfig          `mapstructure:"queue"`
	CORS          CORSConfig           `mapstructure:"cors"`
	Billing       BillingConfig        `mapstructure:"billing"`
	LLM           LLMConfig            `mapstructure:"llm"`
	Embedding     EmbeddingConfig      `mapstructure:"embedding"`
	Retrieval     RetrievalConfig      `mapstructure:"retrieval"`
	QuestionTypes []QuestionTypeConfig `mapstructure:"question_types"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type OAuthConfig struct {
	Github GithubOAuthConfig `mapstructure:"github"`
}

type GithubOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type QueueConfig struct {
	VectorizeQueue string `mapstructure:"vectorize_queue"`
	MaxWorkers     int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// BillingConfig 计费相关配置
type BillingConfig struct {
	Currency          string          `mapstructure:"currency"`           // 货币代码，如 RUB
	CurrencySymbol    string          `mapstructure:"currency_symbol"`    // 货币符号
	ExchangeRate      float64         `mapstructure:"exchange_rate"`      // USD 报价转本币汇率
	ReservationExpire int             `mapstructure:"reservation_expire"` // 预扣事务过期时间（分钟）
	PaymentMethods    []PaymentMethod `mapstructure:"payment_methods"`
}

type PaymentMethod struct {
	Code        string `mapstructure:"code"` // 如 sbp_qr, bank_card
	DisplayName string `mapstructure:"display_name"`
	Enabled     bool   `mapstructure:"enabled"`
}

// LLMConfig 生成模型配置
type LLMConfig struct {
	DefaultModel   string           `mapstructure:"default_model"`
	TimeoutSeconds int              `mapstructure:"timeout_seconds"`
	Models         []LLMModelConfig `mapstructure:"models"`
}

type LLMModelConfig struct {
	Name             string  `mapstructure:"name"` // 如 yandexgpt-lite, gpt-4o-mini
	DisplayName      string  `mapstructure:"display_name"`
	Provider         string  `mapstructure:"provider"` // yandex / openai
	APIKey           string  `mapstructure:"api_key"`
	FolderID         string  `mapstructure:"folder_id"`           // Yandex Cloud folder
	InputPricePer1M  float64 `mapstructure:"input_price_per_1m"`  // USD / 1M tokens
	OutputPricePer1M float64 `mapstructure:"output_price_per_1m"` // USD / 1M tokens
	Description      string  `mapstructure:"description"`
}

// EmbeddingConfig 向量模型配置
type EmbeddingConfig struct {
	DefaultModel string                 `mapstructure:"default_model"`
	Models       []EmbeddingModelConfig `mapstructure:"models"`
}

type EmbeddingModelConfig struct {
	Name       string `mapstructure:"name"`     // 如 multilingual-e5-base
	Provider   string `mapstructure:"provider"` // openai / yandex
	APIKey     string `mapstructure:"api_key"`
	FolderID   string `mapstructure:"folder_id"` // Yandex Cloud folder
	Dimensions int    `mapstructure:"dimensions"`
}

// RetrievalConfig 检索参数
type RetrievalConfig struct {
	TopK       int `mapstructure:"top_k"`       // 返回的片段数
	PerIndexK  int `mapstructure:"per_index_k"` // 每个索引取的候选数
	MaxSnippet int `mapstructure:"max_snippet"` // 提示词中单个片段最大字符数
}

// QuestionTypeConfig 问题类型定义：分类标签、复杂度与计费参数
type QuestionTypeConfig struct {
	ID             string   `mapstructure:"id"`
	DisplayName    string   `mapstructure:"display_name"`
	Complexity     string   `mapstructure:"complexity"` // low / medium / high
	Free           bool     `mapstructure:"free"`
	FreeDailyLimit int      `mapstructure:"free_daily_limit"`
	InputTokens    int      `mapstructure:"input_tokens"`  // 平均输入 token 数
	OutputTokens   int      `mapstructure:"output_tokens"` // 平均输出 token 数
	Keywords       []string `mapstructure:"keywords"`
	Description    string   `mapstructure:"description"`
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	// 检查 config.local.yaml 是否存在
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)

	return &cfg, nil
}

// ApplyDefaults 填充未配置的默认值，保证空配置也能启动
func ApplyDefaults(cfg *Config) {
	if cfg.Billing.Currency == "" {
		cfg.Billing.Currency = "RUB"
	}
	if cfg.Billing.CurrencySymbol == "" {
		cfg.Billing.CurrencySymbol = "₽"
	}
	if cfg.Billing.ExchangeRate == 0 {
		cfg.Billing.ExchangeRate = 100.0
	}
	if cfg.Billing.ReservationExpire == 0 {
		cfg.Billing.ReservationExpire = 30
	}
	if len(cfg.Billing.PaymentMethods) == 0 {
		cfg.Billing.PaymentMethods = []PaymentMethod{
			{Code: "sbp_qr", DisplayName: "СБП 二维码支付", Enabled: true},
			{Code: "bank_card", DisplayName: "银行卡", Enabled: true},
		}
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.PerIndexK == 0 {
		cfg.Retrieval.PerIndexK = 5
	}
	if cfg.Retrieval.MaxSnippet == 0 {
		cfg.Retrieval.MaxSnippet = 800
	}
	if len(cfg.QuestionTypes) == 0 {
		cfg.QuestionTypes = DefaultQuestionTypes()
	}
}

// DefaultQuestionTypes 内置问题类型目录。
// token 估算来自线上统计：简单条文引用约 1050 blended tokens，
// 深度法规分析约 8500 blended tokens。
func DefaultQuestionTypes() []QuestionTypeConfig {
	return []QuestionTypeConfig{
		{
			ID:             "simple_reference",
			DisplayName:    "条文引用",
			Complexity:     "low",
			Free:           true,
			FreeDailyLimit: 10,
			InputTokens:    800,
			OutputTokens:   250,
			Keywords:       []string{"是什么", "定义", "第几条", "哪条", "多少", "期限", "что такое", "какой срок"},
			Description:    "查询单个条文、定义或具体数值",
		},
		{
			ID:             "document_search",
			DisplayName:    "文档检索",
			Complexity:     "low",
			Free:           true,
			FreeDailyLimit: 20,
			InputTokens:    600,
			OutputTokens:   150,
			Keywords:       []string{"找", "哪个文件", "哪部法规", "出处", "найди", "где написано"},
			Description:    "定位规定所在的文件与条款",
		},
		{
			ID:             "practical_procedure",
			DisplayName:    "办事流程",
			Complexity:     "medium",
			Free:           false,
			FreeDailyLimit: 0,
			InputTokens:    2200,
			OutputTokens:   900,
			Keywords:       []string{"怎么办", "流程", "步骤", "如何申请", "как оформить", "порядок"},
			Description:    "多条文组合的办理流程说明",
		},
		{
			ID:             "legal_analysis",
			DisplayName:    "法规分析",
			Complexity:     "high",
			Free:           false,
			FreeDailyLimit: 0,
			InputTokens:    6000,
			OutputTokens:   2500,
			Keywords:       []string{"分析", "是否合法", "对比", "冲突", "责任", "анализ", "правомерно"},
			Description:    "跨文档法律分析与结论",
		},
	}
}
