package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

const (
	yandexCompletionURL = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"
	yandexEmbeddingURL  = "https://llm.api.cloud.yandex.net/foundationModels/v1/textEmbedding"
)

// YandexProvider YandexGPT 生成实现（REST，无官方 Go SDK）
type YandexProvider struct {
	apiKey   string
	folderID string
	model    string // yandexgpt-lite / yandexgpt
	url      string
	client   *http.Client
}

func NewYandexProvider(apiKey, folderID, model string) *YandexProvider {
	return &YandexProvider{
		apiKey:   apiKey,
		folderID: folderID,
		model:    model,
		url:      yandexCompletionURL,
		client:   &http.Client{},
	}
}

// SetEndpoint 替换 API 地址（测试用）
func (p *YandexProvider) SetEndpoint(url string) {
	p.url = url
}

type yandexMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type yandexCompletionRequest struct {
	ModelURI          string `json:"modelUri"`
	CompletionOptions struct {
		Stream      bool    `json:"stream"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"maxTokens"`
	} `json:"completionOptions"`
	Messages []yandexMessage `json:"messages"`
}

type yandexCompletionResponse struct {
	Result struct {
		Alternatives []struct {
			Message yandexMessage `json:"message"`
			Status  string        `json:"status"`
		} `json:"alternatives"`
		Usage struct {
			InputTextTokens  string `json:"inputTextTokens"`
			CompletionTokens string `json:"completionTokens"`
			TotalTokens      string `json:"totalTokens"`
		} `json:"usage"`
	} `json:"result"`
}

// Generate 调用 foundationModels/v1/completion
func (p *YandexProvider) Generate(ctx context.Context, system, prompt string) (*GenerateResult, error) {
	req := yandexCompletionRequest{
		ModelURI: fmt.Sprintf("gpt://%s/%s", p.folderID, p.model),
	}
	req.CompletionOptions.Stream = false
	req.CompletionOptions.Temperature = 0.3
	req.CompletionOptions.MaxTokens = 2000
	if system != "" {
		req.Messages = append(req.Messages, yandexMessage{Role: "system", Text: system})
	}
	req.Messages = append(req.Messages, yandexMessage{Role: "user", Text: prompt})

	var resp yandexCompletionResponse
	if err := postYandex(ctx, p.client, p.apiKey, p.url, req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Result.Alternatives) == 0 {
		return nil, fmt.Errorf("%w: 响应中没有候选结果", ErrProviderFailed)
	}

	// Yandex 的 usage 字段是字符串数字
	tokensIn, _ := strconv.Atoi(resp.Result.Usage.InputTextTokens)
	tokensOut, _ := strconv.Atoi(resp.Result.Usage.CompletionTokens)

	return &GenerateResult{
		Text:      resp.Result.Alternatives[0].Message.Text,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
	}, nil
}

// YandexEmbedder Yandex 文本向量化实现
type YandexEmbedder struct {
	apiKey   string
	folderID string
	dims     int
	url      string
	client   *http.Client
}

func NewYandexEmbedder(apiKey, folderID string, dims int) *YandexEmbedder {
	return &YandexEmbedder{
		apiKey:   apiKey,
		folderID: folderID,
		dims:     dims,
		url:      yandexEmbeddingURL,
		client:   &http.Client{},
	}
}

// SetEndpoint 替换 API 地址（测试用）
func (e *YandexEmbedder) SetEndpoint(url string) {
	e.url = url
}

type yandexEmbeddingRequest struct {
	ModelURI string `json:"modelUri"`
	Text     string `json:"text"`
}

type yandexEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *YandexEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := yandexEmbeddingRequest{
		ModelURI: fmt.Sprintf("emb://%s/text-search-query/latest", e.folderID),
		Text:     text,
	}

	var resp yandexEmbeddingResponse
	if err := postYandex(ctx, e.client, e.apiKey, e.url, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: 响应中没有向量", ErrProviderFailed)
	}
	return resp.Embedding, nil
}

func (e *YandexEmbedder) Dimensions() int {
	return e.dims
}

func postYandex(ctx context.Context, client *http.Client, apiKey, url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Api-Key "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrProviderTimeout
		}
		return fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: 限流 (429)", ErrProviderFailed)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: 状态码 %d", ErrProviderFailed, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: 响应解析失败: %v", ErrProviderFailed, err)
	}
	return nil
}
