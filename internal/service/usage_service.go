package service

import (
	"errors"
	"time"

	"github.com/qs3c/normqa_go_server/internal/model"
	"github.com/qs3c/normqa_go_server/internal/model/dto"
	"github.com/qs3c/normqa_go_server/internal/pkg/classifier"
	"github.com/qs3c/normqa_go_server/internal/repository"
)

var ErrFreeLimitReached = errors.New("今日免费额度已用完")

// UsageService 免费额度服务。计数按（用户，类型，日）分区，
// 消耗通过条件更新原子完成，并发请求最多一个成功占到最后一个名额。
type UsageService struct {
	usageRepo  *repository.UsageRepository
	classifier *classifier.Classifier
}

func NewUsageService(usageRepo *repository.UsageRepository, c *classifier.Classifier) *UsageService {
	return &UsageService{
		usageRepo:  usageRepo,
		classifier: c,
	}
}

// ConsumeFree 原子消耗一次免费额度。额度已满返回 ErrFreeLimitReached。
func (s *UsageService) ConsumeFree(userID int64, typ classifier.TypeInfo) error {
	day := model.UsageDay(time.Now())
	err := s.usageRepo.Consume(userID, typ.ID, day, typ.FreeDailyLimit)
	if errors.Is(err, repository.ErrConditionFailed) {
		return ErrFreeLimitReached
	}
	return err
}

// RefundFree 归还一次免费额度(回答失败时调用)
func (s *UsageService) RefundFree(userID int64, typeID string) error {
	day := model.UsageDay(time.Now())
	return s.usageRepo.Refund(userID, typeID, day)
}

// Remaining 返回某类型当天剩余的免费次数
func (s *UsageService) Remaining(userID int64, typ classifier.TypeInfo) (int, error) {
	day := model.UsageDay(time.Now())
	used, err := s.usageRepo.Get(userID, typ.ID, day)
	if err != nil {
		return 0, err
	}
	remaining := typ.FreeDailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// TodayUsage 返回用户当天全部免费类型的使用情况
func (s *UsageService) TodayUsage(userID int64) (map[string]dto.FreeUsage, error) {
	used, err := s.usageRepo.TodayUsage(userID)
	if err != nil {
		return nil, err
	}
	result := make(map[string]dto.FreeUsage)
	for _, t := range s.classifier.Types() {
		if !t.Free {
			continue
		}
		u := used[t.ID]
		remaining := t.FreeDailyLimit - u
		if remaining < 0 {
			remaining = 0
		}
		result[t.ID] = dto.FreeUsage{
			Used:      u,
			Limit:     t.FreeDailyLimit,
			Remaining: remaining,
		}
	}
	return result, nil
}

// CleanupBefore 删除指定日期之前的计数行,返回删除条数
func (s *UsageService) CleanupBefore(day string) (int64, error) {
	return s.usageRepo.DeleteBefore(day)
}
