package worker

import (
	"regexp"
	"strings"
)

// 切片参数。条文本身通常不长，超长段落按字符数硬切。
const (
	maxChunkRunes = 1200
	minChunkRunes = 80
)

// 规范条款号，如 5.1.2、10.3
var articleRe = regexp.MustCompile(`^(\d+(?:\.\d+)+)\s`)

// TextChunk 切分出的一个片段
type TextChunk struct {
	Content string
	Article string
	Page    int
}

// SplitDocument 把规范文本切成带条款号的片段。
// 以空行分段，凡是以条款号开头的段落作为新片段的起点，
// 其余段落并入当前片段，超过长度上限时硬切。
func SplitDocument(text string) []TextChunk {
	paragraphs := splitParagraphs(text)

	var chunks []TextChunk
	var current strings.Builder
	currentArticle := ""

	flush := func() {
		content := strings.TrimSpace(current.String())
		if len([]rune(content)) >= minChunkRunes {
			chunks = append(chunks, TextChunk{
				Content: content,
				Article: currentArticle,
			})
		}
		current.Reset()
	}

	for _, p := range paragraphs {
		if m := articleRe.FindStringSubmatch(p); m != nil {
			flush()
			currentArticle = m[1]
		}

		for _, piece := range splitLong(p) {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(piece)

			if len([]rune(current.String())) >= maxChunkRunes {
				flush()
			}
		}
	}
	flush()

	return chunks
}

// splitLong 把超过上限的单个段落按字符数切开
func splitLong(p string) []string {
	runes := []rune(p)
	if len(runes) <= maxChunkRunes {
		return []string{p}
	}

	var pieces []string
	for len(runes) > maxChunkRunes {
		pieces = append(pieces, string(runes[:maxChunkRunes]))
		runes = runes[maxChunkRunes:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	raw := strings.Split(text, "\n\n")

	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}
