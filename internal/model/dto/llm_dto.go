package dto

// PreviewRequest 费用预估请求（只分类+估价，不执行）
type PreviewRequest struct {
	Query string `json:"query" binding:"required,min=2,max=2000"`
	Model string `json:"model,omitempty"`
}

// ClassificationInfo 分类结果
type ClassificationInfo struct {
	TypeID         string  `json:"type_id"`
	DisplayName    string  `json:"display_name"`
	Complexity     string  `json:"complexity"`
	Confidence     float64 `json:"confidence"`
	Free           bool    `json:"free"`
	FreeDailyLimit int     `json:"free_daily_limit"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// EstimateInfo 费用估算（区间）
type EstimateInfo struct {
	Model     string  `json:"model"`
	MinTokens int     `json:"min_tokens"`
	MaxTokens int     `json:"max_tokens"`
	MinCost   float64 `json:"min_cost"`
	MaxCost   float64 `json:"max_cost"`
	Currency  string  `json:"currency"`
	Formatted string  `json:"formatted"`
}

// PreviewResponse 预估响应
type PreviewResponse struct {
	Classification *ClassificationInfo `json:"classification"`
	Estimate       *EstimateInfo       `json:"estimate"`
}

// AskRequest 问答请求
type AskRequest struct {
	Query          string `json:"query" binding:"required,min=2,max=2000"`
	Model          string `json:"model,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

// SourceInfo 回答引用的文档片段
type SourceInfo struct {
	ChunkID    int64   `json:"chunk_id"`
	Document   string  `json:"document"`
	Article    string  `json:"article,omitempty"`
	Similarity float64 `json:"similarity"`
	Excerpt    string  `json:"excerpt"`
}

// AskResponse 问答响应
type AskResponse struct {
	AnswerID       int64               `json:"answer_id"`
	Answer         string              `json:"answer"`
	Classification *ClassificationInfo `json:"classification"`
	Sources        []SourceInfo        `json:"sources"`
	TokensIn       int                 `json:"tokens_in"`
	TokensOut      int                 `json:"tokens_out"`
	Cost           float64             `json:"cost"`
	Formatted      string              `json:"formatted,omitempty"`
	RemainingFree  *int                `json:"remaining_free,omitempty"`
	ElapsedMs      int64               `json:"elapsed_ms"`
}

// CostGuideResponse 静态费用说明
type CostGuideResponse struct {
	Currency      string           `json:"currency"`
	QuestionTypes []QuestionTypeDoc `json:"question_types"`
	Models        []ModelDoc       `json:"models"`
}

// QuestionTypeDoc 问题类型说明
type QuestionTypeDoc struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	Complexity     string `json:"complexity"`
	Free           bool   `json:"free"`
	FreeDailyLimit int    `json:"free_daily_limit"`
	BlendedTokens  int    `json:"blended_tokens"`
	Description    string `json:"description"`
}

// ModelDoc 模型价格说明
type ModelDoc struct {
	Name             string  `json:"name"`
	DisplayName      string  `json:"display_name"`
	Provider         string  `json:"provider"`
	InputPricePer1M  float64 `json:"input_price_per_1m"`
	OutputPricePer1M float64 `json:"output_price_per_1m"`
	Description      string  `json:"description,omitempty"`
}
