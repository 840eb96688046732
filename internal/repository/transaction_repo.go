package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/normqa_go_server/internal/model"
)

// ErrConditionFailed 表示带条件的更新没有命中任何行(余额不足、额度用尽或状态已变更)
var ErrConditionFailed = errors.New("conditional update affected no rows")

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(txn *model.Transaction) error {
	return r.db.Create(txn).Error
}

func (r *TransactionRepository) GetByID(id int64) (*model.Transaction, error) {
	var txn model.Transaction
	err := r.db.Where("id = ?", id).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListByUser 按创建时间倒序分页返回用户的交易记录
func (r *TransactionRepository) ListByUser(userID int64, page, pageSize int) ([]model.Transaction, int64, error) {
	var txns []model.Transaction
	var total int64

	query := r.db.Model(&model.Transaction{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&txns).Error
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// SumByTypeAndStatus 汇总某用户指定类型与状态的交易金额
func (r *TransactionRepository) SumByTypeAndStatus(userID int64, txType, status string) (float64, error) {
	var sum float64
	err := r.db.Model(&model.Transaction{}).
		Where("user_id = ? AND type = ? AND status = ?", userID, txType, status).
		Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error
	return sum, err
}

// SumByStatus 汇总某用户指定状态的交易金额(用于对账)
func (r *TransactionRepository) SumByStatus(userID int64, status string) (float64, error) {
	var sum float64
	err := r.db.Model(&model.Transaction{}).
		Where("user_id = ? AND status = ?", userID, status).
		Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error
	return sum, err
}

// Deposit 在单个数据库事务内入账:创建已完成的充值记录并增加余额
func (r *TransactionRepository) Deposit(txn *model.Transaction) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(txn).Error; err != nil {
			return err
		}
		return tx.Model(&model.User{}).Where("id = ?", txn.UserID).
			UpdateColumn("balance", gorm.Expr("balance + ?", txn.Amount)).Error
	})
}

// Reserve 在单个数据库事务内预留资金:
// 条件扣减余额(balance >= 预留额才生效),并创建 pending 交易。
// 余额不足时返回 ErrConditionFailed,事务回滚。
func (r *TransactionRepository) Reserve(txn *model.Transaction) error {
	amount := -txn.Amount // 支出交易金额为负,预留额为其绝对值
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.User{}).
			Where("id = ? AND balance >= ?", txn.UserID, amount).
			UpdateColumn("balance", gorm.Expr("balance - ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConditionFailed
		}
		return tx.Create(txn).Error
	})
}

// Settle 结清预留:按实际费用修正交易金额并标记完成,差额退回余额。
// 仅当交易仍处于 pending 状态时生效。
func (r *TransactionRepository) Settle(txnID int64, actualAmount float64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var txn model.Transaction
		if err := tx.Where("id = ?", txnID).First(&txn).Error; err != nil {
			return err
		}
		now := time.Now()
		result := tx.Model(&model.Transaction{}).
			Where("id = ? AND status = ?", txnID, model.TransactionStatusPending).
			Updates(map[string]interface{}{
				"amount":       -actualAmount,
				"status":       model.TransactionStatusCompleted,
				"completed_at": &now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConditionFailed
		}
		refund := -txn.Amount - actualAmount // 预留额减去实际费用
		if refund != 0 {
			return tx.Model(&model.User{}).Where("id = ?", txn.UserID).
				UpdateColumn("balance", gorm.Expr("balance + ?", refund)).Error
		}
		return nil
	})
}

// Release 释放预留:标记交易失败并全额退回余额。
func (r *TransactionRepository) Release(txnID int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var txn model.Transaction
		if err := tx.Where("id = ?", txnID).First(&txn).Error; err != nil {
			return err
		}
		now := time.Now()
		result := tx.Model(&model.Transaction{}).
			Where("id = ? AND status = ?", txnID, model.TransactionStatusPending).
			Updates(map[string]interface{}{
				"status":       model.TransactionStatusFailed,
				"completed_at": &now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConditionFailed
		}
		return tx.Model(&model.User{}).Where("id = ?", txn.UserID).
			UpdateColumn("balance", gorm.Expr("balance + ?", -txn.Amount)).Error
	})
}

// ListStalePending 返回在截止时间之前创建且仍处于 pending 状态的交易
func (r *TransactionRepository) ListStalePending(before time.Time) ([]model.Transaction, error) {
	var txns []model.Transaction
	err := r.db.Where("status = ? AND created_at < ?", model.TransactionStatusPending, before).
		Find(&txns).Error
	return txns, err
}
