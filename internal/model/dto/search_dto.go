package dto

// SearchRequest 向量检索请求
type SearchRequest struct {
	Query          string `json:"query" binding:"required,min=2,max=2000"`
	TopK           int    `json:"top_k,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

// SearchResultItem 单条检索结果
type SearchResultItem struct {
	ChunkID        int64             `json:"chunk_id"`
	Document       string            `json:"document"`
	Article        string            `json:"article,omitempty"`
	Content        string            `json:"content"`
	Similarity     float64           `json:"similarity"`
	EmbeddingModel string            `json:"embedding_model"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// SearchResponse 检索响应，保留原始与改写后的查询
type SearchResponse struct {
	Results           []SearchResultItem `json:"results"`
	OriginalQuery     string             `json:"original_query"`
	ReformulatedQuery string             `json:"reformulated_query"`
	TokensUsed        int                `json:"tokens_used"`
}

// CorpusStats 语料库统计
type CorpusStats struct {
	DocumentsCount int64    `json:"documents_count"`
	ChunksCount    int64    `json:"chunks_count"`
	Models         []string `json:"models"`
}

// DocumentInfo 文档条目
type DocumentInfo struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
}

// UploadDocumentResponse 文档上传响应
type UploadDocumentResponse struct {
	DocumentID int64 `json:"document_id"`
	JobID      int64 `json:"job_id"`
}

// JobStatusResponse 向量化任务状态
type JobStatusResponse struct {
	JobID        int64  `json:"job_id"`
	Status       string `json:"status"`
	CurrentStep  string `json:"current_step,omitempty"`
	ChunksBuilt  int    `json:"chunks_built"`
	ErrorMessage string `json:"error_message,omitempty"`
}
