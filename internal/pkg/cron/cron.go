package cron

import (
	"log"
	"time"

	"github.com/qs3c/normqa_go_server/internal/model"
	"github.com/qs3c/normqa_go_server/internal/service"
)

// 保留最近 7 天的免费额度计数，更早的只占空间
const usageRetentionDays = 7

type Service struct {
	ledgerService *service.LedgerService
	usageService  *service.UsageService
	stopChan      chan struct{}
}

func NewService(ledgerService *service.LedgerService, usageService *service.UsageService) *Service {
	return &Service{
		ledgerService: ledgerService,
		usageService:  usageService,
		stopChan:      make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runReservationExpiry()
	go s.runUsageCleanup()
	log.Println("定时任务已启动（预扣过期释放 + 额度计数清理）")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("定时任务已停止")
}

// runReservationExpiry 每分钟释放一次超时未结算的预扣
func (s *Service) runReservationExpiry() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			released, err := s.ledgerService.ExpireStaleReservations()
			if err != nil {
				log.Printf("释放过期预扣失败: %v", err)
				continue
			}
			if released > 0 {
				log.Printf("已释放 %d 条过期预扣", released)
			}
		}
	}
}

// runUsageCleanup 每日零点后清理过期的免费额度计数
func (s *Service) runUsageCleanup() {
	now := time.Now()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 5, 0, 0, now.Location())
	timer := time.NewTimer(nextMidnight.Sub(now))
	defer timer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-timer.C:
			cutoff := model.UsageDay(time.Now().AddDate(0, 0, -usageRetentionDays))
			deleted, err := s.usageService.CleanupBefore(cutoff)
			if err != nil {
				log.Printf("清理额度计数失败: %v", err)
			} else if deleted > 0 {
				log.Printf("已清理 %d 条过期额度计数", deleted)
			}
			timer.Reset(24 * time.Hour)
		}
	}
}
