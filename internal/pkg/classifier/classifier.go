package classifier

import (
	"sort"
	"strings"

	"github.com/qs3c/normqa_go_server/config"
)

// TypeInfo 问题类型元信息，分类结果的载体
type TypeInfo struct {
	ID             string
	DisplayName    string
	Complexity     string // low / medium / high
	Free           bool
	FreeDailyLimit int
	InputTokens    int
	OutputTokens   int
	Description    string
}

// Result 分类结果
type Result struct {
	Type       TypeInfo
	Confidence float64
}

// Classifier 基于关键词打分的问题分类器。
// 同一输入永远得到同一结果；低置信度不阻断流程，只影响推荐文案。
type Classifier struct {
	types    []config.QuestionTypeConfig
	keywords map[string][]string // typeID -> 小写关键词
	fallback string              // 兜底类型（最便宜的免费类型）
}

// New 根据配置构建分类器
func New(types []config.QuestionTypeConfig) *Classifier {
	if len(types) == 0 {
		types = config.DefaultQuestionTypes()
	}

	c := &Classifier{
		types:    types,
		keywords: make(map[string][]string, len(types)),
	}

	for _, t := range types {
		kws := make([]string, 0, len(t.Keywords))
		for _, kw := range t.Keywords {
			kws = append(kws, strings.ToLower(kw))
		}
		c.keywords[t.ID] = kws
	}

	c.fallback = c.cheapestTypeID()
	return c
}

// Classify 对查询分类。歧义输入落到最便宜的匹配类型
// （宁可少收费，不可多收费）。
func (c *Classifier) Classify(query string) Result {
	q := strings.ToLower(strings.TrimSpace(query))

	type scored struct {
		t    config.QuestionTypeConfig
		hits int
	}

	best := scored{}
	totalHits := 0
	for _, t := range c.types {
		hits := 0
		for _, kw := range c.keywords[t.ID] {
			if strings.Contains(q, kw) {
				hits++
			}
		}
		totalHits += hits
		if hits > best.hits {
			best = scored{t: t, hits: hits}
		} else if hits == best.hits && hits > 0 {
			// 命中数相同选更便宜的类型
			if cheaperThan(t, best.t) {
				best = scored{t: t, hits: hits}
			}
		}
	}

	if best.hits == 0 {
		// 无关键词命中：一律落到最便宜的免费类型，不因问题长而升级计费
		return Result{Type: toTypeInfo(c.typeByID(c.fallback)), Confidence: 0.35}
	}

	// 置信度 = 该类型命中占比，限制在 [0.5, 0.95]
	conf := 0.5 + 0.45*float64(best.hits)/float64(totalHits)
	if conf > 0.95 {
		conf = 0.95
	}

	return Result{Type: toTypeInfo(best.t), Confidence: conf}
}

// TypeByID 查询类型目录；未找到返回 false
func (c *Classifier) TypeByID(id string) (TypeInfo, bool) {
	for _, t := range c.types {
		if t.ID == id {
			return toTypeInfo(t), true
		}
	}
	return TypeInfo{}, false
}

// Types 返回完整类型目录（按复杂度从低到高）
func (c *Classifier) Types() []TypeInfo {
	out := make([]TypeInfo, 0, len(c.types))
	for _, t := range c.types {
		out = append(out, toTypeInfo(t))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return complexityRank(out[i].Complexity) < complexityRank(out[j].Complexity)
	})
	return out
}

func (c *Classifier) typeByID(id string) config.QuestionTypeConfig {
	for _, t := range c.types {
		if t.ID == id {
			return t
		}
	}
	return c.types[0]
}

// cheapestTypeID 找最便宜的类型：免费优先，其次 token 量最小
func (c *Classifier) cheapestTypeID() string {
	best := c.types[0]
	for _, t := range c.types[1:] {
		if cheaperThan(t, best) {
			best = t
		}
	}
	return best.ID
}

func cheaperThan(a, b config.QuestionTypeConfig) bool {
	if a.Free != b.Free {
		return a.Free
	}
	return a.InputTokens+a.OutputTokens < b.InputTokens+b.OutputTokens
}

func complexityRank(c string) int {
	switch c {
	case "low":
		return 0
	case "medium":
		return 1
	case "high":
		return 2
	}
	return 3
}

func toTypeInfo(t config.QuestionTypeConfig) TypeInfo {
	return TypeInfo{
		ID:             t.ID,
		DisplayName:    t.DisplayName,
		Complexity:     t.Complexity,
		Free:           t.Free,
		FreeDailyLimit: t.FreeDailyLimit,
		InputTokens:    t.InputTokens,
		OutputTokens:   t.OutputTokens,
		Description:    t.Description,
	}
}
