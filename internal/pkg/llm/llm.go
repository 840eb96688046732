package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/qs3c/normqa_go_server/config"
)

var (
	ErrProviderTimeout = errors.New("模型响应超时")
	ErrProviderFailed  = errors.New("模型调用失败")
	ErrModelNotFound   = errors.New("模型不存在")
)

// GenerateResult 一次生成调用的结果及实测 token 用量
type GenerateResult struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Provider 文本生成能力，按配置键选择实现
type Provider interface {
	Generate(ctx context.Context, system, prompt string) (*GenerateResult, error)
}

// Embedder 文本向量化能力
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Registry 按名字持有所有已配置的生成模型与向量模型
type Registry struct {
	providers map[string]Provider
	embedders map[string]Embedder
}

// NewRegistry 根据配置构建所有 provider。
// 未知 provider 类型直接报错，避免静默降级。
func NewRegistry(llmCfg config.LLMConfig, embCfg config.EmbeddingConfig) (*Registry, error) {
	r := &Registry{
		providers: make(map[string]Provider),
		embedders: make(map[string]Embedder),
	}

	for _, m := range llmCfg.Models {
		switch m.Provider {
		case "yandex":
			r.providers[m.Name] = NewYandexProvider(m.APIKey, m.FolderID, m.Name)
		case "openai":
			r.providers[m.Name] = NewOpenAIProvider(m.APIKey, m.Name)
		default:
			return nil, fmt.Errorf("未知的生成模型 provider: %s", m.Provider)
		}
	}

	for _, m := range embCfg.Models {
		switch m.Provider {
		case "yandex":
			r.embedders[m.Name] = NewYandexEmbedder(m.APIKey, m.FolderID, m.Dimensions)
		case "openai":
			r.embedders[m.Name] = NewOpenAIEmbedder(m.APIKey, m.Name, m.Dimensions)
		default:
			return nil, fmt.Errorf("未知的向量模型 provider: %s", m.Provider)
		}
	}

	return r, nil
}

// Provider 按模型名取生成实现
func (r *Registry) Provider(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrModelNotFound
	}
	return p, nil
}

// Embedder 按模型名取向量实现
func (r *Registry) Embedder(name string) (Embedder, error) {
	e, ok := r.embedders[name]
	if !ok {
		return nil, ErrModelNotFound
	}
	return e, nil
}

// RegisterProvider 注册生成实现（测试用）
func (r *Registry) RegisterProvider(name string, p Provider) {
	r.providers[name] = p
}

// RegisterEmbedder 注册向量实现（测试用）
func (r *Registry) RegisterEmbedder(name string, e Embedder) {
	r.embedders[name] = e
}
