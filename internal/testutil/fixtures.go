package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/normqa_go_server/internal/model"
)

var fixtureSeq int64

func nextSeq() int64 {
	return atomic.AddInt64(&fixtureSeq, 1)
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	seq := nextSeq()
	email := fmt.Sprintf("test_%d_%d@example.com", time.Now().UnixNano(), seq)
	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	user := &model.User{
		Username:      fmt.Sprintf("testuser_%d", seq),
		Email:         &email,
		PasswordHash:  &passwordHash,
		EmailVerified: true,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = &email
	}
}

// WithBalance 设置余额
func WithBalance(balance float64) func(*model.User) {
	return func(u *model.User) {
		u.Balance = balance
	}
}

// TestTransaction 创建测试交易
func TestTransaction(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Transaction)) *model.Transaction {
	t.Helper()

	now := time.Now()
	txn := &model.Transaction{
		UserID:      userID,
		Amount:      100.00,
		Type:        model.TransactionTypeDeposit,
		Status:      model.TransactionStatusCompleted,
		Description: "测试交易",
		CompletedAt: &now,
	}

	for _, opt := range opts {
		opt(txn)
	}

	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("Failed to create test transaction: %v", err)
	}

	return txn
}

// WithTxn 任意修改交易字段
func WithTxn(fn func(*model.Transaction)) func(*model.Transaction) {
	return fn
}

// TestDocument 创建测试文档
func TestDocument(t *testing.T, db *gorm.DB, opts ...func(*model.Document)) *model.Document {
	t.Helper()

	doc := &model.Document{
		Title:  fmt.Sprintf("СП %d.13330", nextSeq()),
		Status: model.DocumentStatusReady,
	}

	for _, opt := range opts {
		opt(doc)
	}

	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("Failed to create test document: %v", err)
	}

	return doc
}

// TestChunk 创建测试切片
func TestChunk(t *testing.T, db *gorm.DB, documentID int64, embeddingModel string, opts ...func(*model.Chunk)) *model.Chunk {
	t.Helper()

	chunk := &model.Chunk{
		DocumentID:     documentID,
		EmbeddingModel: embeddingModel,
		Content:        fmt.Sprintf("测试条文内容 %d", nextSeq()),
		Article:        "5.1.1",
	}

	for _, opt := range opts {
		opt(chunk)
	}

	if err := db.Create(chunk).Error; err != nil {
		t.Fatalf("Failed to create test chunk: %v", err)
	}

	return chunk
}

// TestAnswer 创建测试回答记录
func TestAnswer(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Answer)) *model.Answer {
	t.Helper()

	answer := &model.Answer{
		UserID:         userID,
		Question:       "防火墙的耐火极限是多少？",
		QuestionTypeID: "simple_reference",
		Status:         model.AnswerStatusDone,
	}

	for _, opt := range opts {
		opt(answer)
	}

	if err := db.Create(answer).Error; err != nil {
		t.Fatalf("Failed to create test answer: %v", err)
	}

	return answer
}
