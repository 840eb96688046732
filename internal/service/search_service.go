package service

import (
	"context"
	"log"
	"strings"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/model/dto"
	"github.com/qs3c/normqa_go_server/internal/pkg/llm"
	"github.com/qs3c/normqa_go_server/internal/pkg/vecindex"
	"github.com/qs3c/normqa_go_server/internal/repository"
)

// 查询改写的系统提示词。口语化提问改写成规范条文的检索式表述，
// 能显著提高向量召回质量。
const reformulateSystem = "你是建筑规范检索助手。把用户的口语化问题改写成一条适合在规范条文中检索的简洁表述，保留所有技术参数和数值，不要解释，只输出改写结果。"

// SearchService 向量检索：查询改写、向量化、内存索引检索
type SearchService struct {
	docRepo  *repository.DocumentRepository
	index    *vecindex.Index
	registry *llm.Registry
	cfg      *config.Config
}

func NewSearchService(docRepo *repository.DocumentRepository, index *vecindex.Index, registry *llm.Registry, cfg *config.Config) *SearchService {
	return &SearchService{
		docRepo:  docRepo,
		index:    index,
		registry: registry,
		cfg:      cfg,
	}
}

// LoadIndexes 从数据库装载全部向量模型的内存索引。
// 服务启动和向量化任务完成后调用。
func (s *SearchService) LoadIndexes() error {
	for _, m := range s.cfg.Embedding.Models {
		if err := s.ReloadIndex(m.Name); err != nil {
			return err
		}
	}
	return nil
}

// ReloadIndex 重建单个向量模型的索引快照
func (s *SearchService) ReloadIndex(embeddingModel string) error {
	chunks, err := s.docRepo.ChunksByModel(embeddingModel)
	if err != nil {
		return err
	}

	titles := make(map[int64]string)
	docs, err := s.docRepo.List()
	if err != nil {
		return err
	}
	for _, d := range docs {
		titles[d.ID] = d.Title
	}

	entries := make([]vecindex.Entry, 0, len(chunks))
	for _, c := range chunks {
		entries = append(entries, vecindex.Entry{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Document:   titles[c.DocumentID],
			Article:    c.Article,
			Content:    c.Content,
			Vector:     vecindex.DecodeVector(c.Embedding),
		})
	}
	s.index.Load(embeddingModel, entries)
	log.Printf("向量索引已装载 model=%s entries=%d", embeddingModel, len(entries))
	return nil
}

// Search 检索：先用 LLM 改写查询，再向量化并在索引中找 TopK。
// 改写失败不阻断检索，退回原始查询。
func (s *SearchService) Search(ctx context.Context, req *dto.SearchRequest) (*dto.SearchResponse, error) {
	topK := req.TopK
	if topK <= 0 || topK > 50 {
		topK = s.cfg.Retrieval.TopK
	}
	embModel := req.EmbeddingModel
	if embModel == "" {
		embModel = s.cfg.Embedding.DefaultModel
	}

	query, tokensUsed := s.reformulate(ctx, req.Query)

	results, err := s.Retrieve(ctx, query, embModel, topK)
	if err != nil {
		return nil, err
	}

	items := make([]dto.SearchResultItem, 0, len(results))
	for _, r := range results {
		items = append(items, dto.SearchResultItem{
			ChunkID:        r.ChunkID,
			Document:       r.Document,
			Article:        r.Article,
			Content:        r.Content,
			Similarity:     r.Similarity,
			EmbeddingModel: embModel,
		})
	}

	return &dto.SearchResponse{
		Results:           items,
		OriginalQuery:     req.Query,
		ReformulatedQuery: query,
		TokensUsed:        tokensUsed,
	}, nil
}

// Retrieve 向量化查询文本并在指定模型的索引中检索
func (s *SearchService) Retrieve(ctx context.Context, query, embModel string, topK int) ([]vecindex.Result, error) {
	embedder, err := s.registry.Embedder(embModel)
	if err != nil {
		return nil, err
	}
	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.index.Search(vec, embModel, topK)
}

// Stats 语料库统计
func (s *SearchService) Stats() (*dto.CorpusStats, error) {
	docs, err := s.docRepo.List()
	if err != nil {
		return nil, err
	}
	var chunks int64
	for _, m := range s.index.Models() {
		chunks += int64(s.index.Size(m))
	}
	return &dto.CorpusStats{
		DocumentsCount: int64(len(docs)),
		ChunksCount:    chunks,
		Models:         s.index.Models(),
	}, nil
}

func (s *SearchService) reformulate(ctx context.Context, query string) (string, int) {
	provider, err := s.registry.Provider(s.cfg.LLM.DefaultModel)
	if err != nil {
		return query, 0
	}
	result, err := provider.Generate(ctx, reformulateSystem, query)
	if err != nil {
		log.Printf("查询改写失败，使用原始查询: %v", err)
		return query, 0
	}
	reformulated := strings.TrimSpace(result.Text)
	if reformulated == "" {
		return query, result.TokensIn + result.TokensOut
	}
	return reformulated, result.TokensIn + result.TokensOut
}
