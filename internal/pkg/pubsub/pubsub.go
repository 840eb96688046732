package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelAnswerProgress = "answer_progress"
)

// ProgressMessage 问答/向量化进度消息
type ProgressMessage struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	AnswerID int64  `json:"answer_id,omitempty"`
	JobID    int64  `json:"job_id,omitempty"`
	Status   string `json:"status"`
	Step     string `json:"step"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// 问答编排阶段常量
const (
	StepClassifying = "classifying"
	StepAuthorizing = "authorizing"
	StepRetrieving  = "retrieving"
	StepGenerating  = "generating"
	StepSettling    = "settling"
	StepDone        = "done"
)

// 阶段对应的进度百分比
var StepProgress = map[string]int{
	StepClassifying: 10,
	StepAuthorizing: 25,
	StepRetrieving:  45,
	StepGenerating:  75,
	StepSettling:    90,
	StepDone:        100,

	StepDownloading: 15,
	StepChunking:    35,
	StepEmbedding:   70,
	StepIndexing:    90,
}

// 阶段对应的消息
var StepMessages = map[string]string{
	StepClassifying: "正在识别问题类型",
	StepAuthorizing: "正在检查额度与余额",
	StepRetrieving:  "正在检索规范文档",
	StepGenerating:  "正在生成回答",
	StepSettling:    "正在结算费用",
	StepDone:        "回答完成",

	StepDownloading: "正在下载文档",
	StepChunking:    "正在切分条文",
	StepEmbedding:   "正在生成向量",
	StepIndexing:    "正在更新索引",
}

// 向量化任务阶段常量
const (
	StepDownloading = "downloading"
	StepChunking    = "chunking"
	StepEmbedding   = "embedding"
	StepIndexing    = "indexing"
)

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress 发布进度消息
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	if msg.Type == "" {
		msg.Type = "answer_progress"
	}

	// 自动填充进度和消息
	if msg.Progress == 0 && msg.Step != "" {
		if progress, ok := StepProgress[msg.Step]; ok {
			msg.Progress = progress
		}
	}
	if msg.Message == "" && msg.Step != "" {
		if message, ok := StepMessages[msg.Step]; ok {
			msg.Message = message
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelAnswerProgress, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅进度消息
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelAnswerProgress)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&progressMsg)
		}
	}
}
