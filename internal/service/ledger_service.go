package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/model"
	"github.com/qs3c/normqa_go_server/internal/model/dto"
	"github.com/qs3c/normqa_go_server/internal/pkg/pricing"
	"github.com/qs3c/normqa_go_server/internal/repository"
)

var (
	ErrInsufficientBalance  = errors.New("余额不足")
	ErrInvalidAmount        = errors.New("充值金额必须大于0")
	ErrPaymentMethodUnknown = errors.New("不支持的支付方式")
	ErrTransactionNotFound  = errors.New("交易记录不存在")
)

// LedgerService 账本服务：充值、预扣、结算与对账。
// 余额只通过带条件的原子更新变动，保证并发下不会透支。
type LedgerService struct {
	userRepo *repository.UserRepository
	txnRepo  *repository.TransactionRepository
	cfg      *config.Config
}

func NewLedgerService(userRepo *repository.UserRepository, txnRepo *repository.TransactionRepository, cfg *config.Config) *LedgerService {
	return &LedgerService{
		userRepo: userRepo,
		txnRepo:  txnRepo,
		cfg:      cfg,
	}
}

// Balance 返回用户当前余额
func (s *LedgerService) Balance(userID int64) (*dto.BalanceResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	return &dto.BalanceResponse{
		Balance:   user.Balance,
		Formatted: pricing.Format(user.Balance, s.cfg.Billing.CurrencySymbol),
		Currency:  s.cfg.Billing.Currency,
	}, nil
}

// Deposit 充值。金额必须为正,支付方式必须在配置的启用列表中。
// 生成支付意向码后立即入账(支付网关对接见 Non-goals)。
func (s *LedgerService) Deposit(userID int64, req *dto.DepositRequest) (*dto.DepositResponse, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !s.paymentMethodEnabled(req.PaymentMethod) {
		return nil, ErrPaymentMethodUnknown
	}

	amount := pricing.Round(req.Amount)
	txn := &model.Transaction{
		UserID:        userID,
		Amount:        amount,
		Type:          model.TransactionTypeDeposit,
		Status:        model.TransactionStatusCompleted,
		PaymentMethod: req.PaymentMethod,
		IntentCode:    newIntentCode(),
		Description:   fmt.Sprintf("充值 %s", pricing.Format(amount, s.cfg.Billing.CurrencySymbol)),
	}
	now := time.Now()
	txn.CompletedAt = &now

	if err := s.txnRepo.Deposit(txn); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	return &dto.DepositResponse{
		TransactionID: txn.ID,
		PaymentIntent: txn.IntentCode,
		Amount:        amount,
		NewBalance:    user.Balance,
		Formatted:     pricing.Format(user.Balance, s.cfg.Billing.CurrencySymbol),
	}, nil
}

// Reserve 为一次付费回答预扣最大估算费用。
// 余额不足时返回 ErrInsufficientBalance,并附带所需与可用金额。
func (s *LedgerService) Reserve(userID int64, maxCost float64, description string) (*model.Transaction, error) {
	maxCost = pricing.Round(maxCost)
	txn := &model.Transaction{
		UserID:      userID,
		Amount:      -maxCost,
		Type:        model.TransactionTypePayment,
		Status:      model.TransactionStatusPending,
		Description: description,
	}
	err := s.txnRepo.Reserve(txn)
	if errors.Is(err, repository.ErrConditionFailed) {
		user, gerr := s.userRepo.GetByID(userID)
		if gerr != nil {
			return nil, gerr
		}
		sym := s.cfg.Billing.CurrencySymbol
		return nil, fmt.Errorf("%w：需要 %s，可用 %s", ErrInsufficientBalance,
			pricing.Format(maxCost, sym), pricing.Format(user.Balance, sym))
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Settle 按实际费用结清预扣,差额退回余额
func (s *LedgerService) Settle(txnID int64, actualCost float64) error {
	return s.txnRepo.Settle(txnID, pricing.Round(actualCost))
}

// Release 释放预扣(回答失败时全额退回)
func (s *LedgerService) Release(txnID int64) error {
	return s.txnRepo.Release(txnID)
}

// Transactions 分页返回用户的交易历史
func (s *LedgerService) Transactions(userID int64, page, pageSize int) (*dto.TransactionListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	txns, total, err := s.txnRepo.ListByUser(userID, page, pageSize)
	if err != nil {
		return nil, err
	}

	sym := s.cfg.Billing.CurrencySymbol
	items := make([]dto.TransactionInfo, 0, len(txns))
	for _, t := range txns {
		info := dto.TransactionInfo{
			ID:            t.ID,
			Amount:        t.Amount,
			Formatted:     pricing.Format(t.Amount, sym),
			Type:          t.Type,
			Status:        t.Status,
			PaymentMethod: t.PaymentMethod,
			Description:   t.Description,
			CreatedAt:     t.CreatedAt.Format(time.RFC3339),
		}
		if t.CompletedAt != nil {
			info.CompletedAt = t.CompletedAt.Format(time.RFC3339)
		}
		items = append(items, info)
	}
	return &dto.TransactionListResponse{
		Transactions: items,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
	}, nil
}

// PaymentMethods 返回启用的支付方式列表
func (s *LedgerService) PaymentMethods() []dto.PaymentMethodInfo {
	methods := make([]dto.PaymentMethodInfo, 0, len(s.cfg.Billing.PaymentMethods))
	for _, m := range s.cfg.Billing.PaymentMethods {
		if !m.Enabled {
			continue
		}
		methods = append(methods, dto.PaymentMethodInfo{
			Code:        m.Code,
			DisplayName: m.DisplayName,
			Enabled:     true,
		})
	}
	return methods
}

// ExpireStaleReservations 释放超过有效期仍未结算的预扣,返回释放条数。
// 定时任务调用,防止崩溃的回答流程永久占用用户资金。
func (s *LedgerService) ExpireStaleReservations() (int, error) {
	expire := time.Duration(s.cfg.Billing.ReservationExpire) * time.Minute
	stale, err := s.txnRepo.ListStalePending(time.Now().Add(-expire))
	if err != nil {
		return 0, err
	}
	released := 0
	for _, txn := range stale {
		err := s.txnRepo.Release(txn.ID)
		if errors.Is(err, repository.ErrConditionFailed) {
			continue // 竞争中已被结算或释放
		}
		if err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}

// Audit 校验账本不变量:余额 == 已完成交易之和 + 预扣交易之和
func (s *LedgerService) Audit(userID int64) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	completed, err := s.txnRepo.SumByStatus(userID, model.TransactionStatusCompleted)
	if err != nil {
		return err
	}
	pending, err := s.txnRepo.SumByStatus(userID, model.TransactionStatusPending)
	if err != nil {
		return err
	}
	expect := pricing.Round(completed + pending)
	if pricing.Round(user.Balance) != expect {
		return fmt.Errorf("用户 %d 账本不平：余额 %.2f，流水合计 %.2f", userID, user.Balance, expect)
	}
	return nil
}

func (s *LedgerService) paymentMethodEnabled(code string) bool {
	for _, m := range s.cfg.Billing.PaymentMethods {
		if m.Code == code && m.Enabled {
			return true
		}
	}
	return false
}

func newIntentCode() string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return "pi_" + hex.EncodeToString(buf)
}
