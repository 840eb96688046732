package service

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/normqa_go_server/config"
	"github.com/qs3c/normqa_go_server/internal/model"
	"github.com/qs3c/normqa_go_server/internal/model/dto"
	"github.com/qs3c/normqa_go_server/internal/repository"
	"github.com/qs3c/normqa_go_server/internal/testutil"
)

func billingConfig() *config.Config {
	return &config.Config{
		Billing: config.BillingConfig{
			Currency:          "RUB",
			CurrencySymbol:    "₽",
			ExchangeRate:      100,
			ReservationExpire: 30,
			PaymentMethods: []config.PaymentMethod{
				{Code: "sbp_qr", DisplayName: "СБП", Enabled: true},
				{Code: "bank_card", DisplayName: "Банковская карта", Enabled: true},
				{Code: "crypto", DisplayName: "Криптовалюта", Enabled: false},
			},
		},
	}
}

func depositReq(amount float64, method string) *dto.DepositRequest {
	return &dto.DepositRequest{Amount: amount, PaymentMethod: method}
}

func setupLedgerService(t *testing.T) (*LedgerService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	userRepo := repository.NewUserRepository(db)
	txnRepo := repository.NewTransactionRepository(db)

	service := NewLedgerService(userRepo, txnRepo, billingConfig())

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return service, db, cleanup
}

func TestLedgerService_Deposit(t *testing.T) {
	service, db, cleanup := setupLedgerService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	resp, err := service.Deposit(user.ID, depositReq(500.00, "sbp_qr"))
	require.NoError(t, err)

	assert.NotZero(t, resp.TransactionID)
	assert.True(t, strings.HasPrefix(resp.PaymentIntent, "pi_"))
	assert.Equal(t, 500.00, resp.Amount)
	assert.Equal(t, 500.00, resp.NewBalance)
	assert.Equal(t, "500.00 ₽", resp.Formatted)

	// 交易立即完成入账
	var txn model.Transaction
	require.NoError(t, db.First(&txn, resp.TransactionID).Error)
	assert.Equal(t, model.TransactionTypeDeposit, txn.Type)
	assert.Equal(t, model.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, "sbp_qr", txn.PaymentMethod)
	assert.NotNil(t, txn.CompletedAt)

	assert.NoError(t, service.Audit(user.ID))
}

func TestLedgerService_Deposit_InvalidAmount(t *testing.T) {
	service, db, cleanup := setupLedgerService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	_, err := service.Deposit(user.ID, depositReq(0, "sbp_qr"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = service.Deposit(user.ID, depositReq(-100, "sbp_qr"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLedgerService_Deposit_UnknownMethod(t *testing.T) {
	service, db, cleanup := setupLedgerService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	_, err := service.Deposit(user.ID, depositReq(100, "paypal"))
	assert.ErrorIs(t, err, ErrPaymentMethodUnknown)

	// 配置中存在但未启用的方式同样拒绝
	_, err = service.Deposit(user.ID, depositReq(100, "crypto"))
	assert.ErrorIs(t, err, ErrPaymentMethodUnknown)
}

func TestLedgerService_Reserve(t *testing.T) {
	service, db, cleanup := setupLedgerService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithBalance(100))

	txn, err := service.Reserve(user.ID, 30.00, "回答预扣")
	require.NoError(t, err)
	assert.Equal(t, -30.00, txn.Amount)
	assert.Equal(t, model.TransactionStatusPending, txn.Status)

	var fresh model.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 70.00, fresh.Balance)

	assert.NoError(t, service.Audit(user.ID))
}

func TestLedgerService_Reserve_InsufficientBalance(t *testing.T) {
	service, db, cleanup := setupLedgerService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithBalance(10))

	_, err := service.Reserve(user.ID, 30.00, "回答预扣")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "30.00 ₽")
	assert.Contains(t, err.Error(), "10.00 ₽")

	// 失败的预扣不留任何交易,余额不变
	var fresh model.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 10.00, fresh.Balance)

	var count int64
	db.Model(&model.Transaction{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestLedgerService_Settle_RefundsDifference(t *testing.T) {
	service, db, cleanup := setupLedgerService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithBalance(100))

	txn, err := service.Reserve(user.ID, 30.00, "回答预扣")
	require.NoError(t, err)

	require.NoError(t, service.Settle(txn.ID, 18.50))

	var settled model.Transaction
	require.NoError(t, db.First(&settled, txn.ID).Error)
	assert.Equal(t, model.TransactionStatusCompleted, settled.Status)
	assert.Equal(t, -18.50, settled.Amount)
	assert.NotNil(t, settled.CompletedAt)

	// 差额 11.50 退回余额：100 - 30 + 11.50
	var fresh model.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 81.50, fresh.Balance)

	assert.NoError(t, service.Audit(user.ID))
}

func TestLedgerService_Settle_AlreadySettled(t *testing.T) {
	service, db, cleanup := setupLedgerService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithBalance(100))

	txn, err := service.Reserve(user.ID, 30.00, "回答预扣")
	require.NoError(t, err)
	require.NoError(t, service.Settle(txn.ID, 18.50))

	// 二次结算必须失败,余额不能重复退回
	err = service.Settle(txn.ID, 18.50)
	assert.ErrorIs(t, err, repository.ErrConditionFailed)

	var fresh model.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 81.50, fresh.Balance)
}

func TestLedgerService_Release(t *testing.T) {
	service, db, cleanup := setupLedgerService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithBalance(50))

	txn, err := service.Reserve(user.ID, 20.00, "回答预扣")
	require.NoError(t, err)

	require.NoError(t, service.Release(txn.ID))

	var released model.Transaction
	require.NoError(t, db.First(&released, txn.ID).Error)
	assert.Equal(t, model.TransactionStatusFailed, released.Status)

	var fresh model.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 50.00, fresh.Balance)

	assert.NoError(t, service.Audit(user.ID))
}

func TestLedgerService_Reserve_Concurrent(t *testing.T) {
	service, db, cleanup := setupLedgerService(t)
	defer cleanup()

	// 余额只够一次预扣,并发 10 个请求恰好一个成功
	user := testutil.TestUser(t, db, testutil.WithBalance(8))

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Reserve(user.ID, 8.00, "并发预扣")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 1, succeeded)

	var fresh model.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 0.00, fresh.Balance)

	assert.NoError(t, service.Audit(user.ID))
}

func TestLedgerService_Transactions(t *testing.T) {
	service, db, cleanup := setupLedgerService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	for i := 0; i < 5; i++ {
		testutil.TestTransaction(t, db, user.ID)
	}

	resp, err := service.Transactions(user.ID, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.Total)
	assert.Len(t, resp.Transactions, 3)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 3, resp.PageSize)
	assert.Equal(t, "100.00 ₽", resp.Transactions[0].Formatted)

	resp, err = service.Transactions(user.ID, 2, 3)
	require.NoError(t, err)
	assert.Len(t, resp.Transactions, 2)
}

func TestLedgerService_PaymentMethods(t *testing.T) {
	service, _, cleanup := setupLedgerService(t)
	defer cleanup()

	methods := service.PaymentMethods()
	require.Len(t, methods, 2)
	assert.Equal(t, "sbp_qr", methods[0].Code)
	assert.Equal(t, "bank_card", methods[1].Code)
	for _, m := range methods {
		assert.True(t, m.Enabled)
	}
}

func TestLedgerService_ExpireStaleReservations(t *testing.T) {
	service, db, cleanup := setupLedgerService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithBalance(100))

	stale, err := service.Reserve(user.ID, 40.00, "超时预扣")
	require.NoError(t, err)
	recent, err := service.Reserve(user.ID, 10.00, "新鲜预扣")
	require.NoError(t, err)

	// 把第一笔预扣的时间拨回到有效期之外
	old := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&model.Transaction{}).
		Where("id = ?", stale.ID).
		Update("created_at", old).Error)

	released, err := service.ExpireStaleReservations()
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	var staleTxn, recentTxn model.Transaction
	require.NoError(t, db.First(&staleTxn, stale.ID).Error)
	require.NoError(t, db.First(&recentTxn, recent.ID).Error)
	assert.Equal(t, model.TransactionStatusFailed, staleTxn.Status)
	assert.Equal(t, model.TransactionStatusPending, recentTxn.Status)

	// 40 退回,10 仍然占用
	var fresh model.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 90.00, fresh.Balance)

	assert.NoError(t, service.Audit(user.ID))
}

func TestLedgerService_Audit_Imbalance(t *testing.T) {
	service, db, cleanup := setupLedgerService(t)
	defer cleanup()

	// 余额和流水对不上:有余额却没有任何交易
	user := testutil.TestUser(t, db, testutil.WithBalance(100))

	err := service.Audit(user.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "账本不平")
}

func TestLedgerService_Balance(t *testing.T) {
	service, db, cleanup := setupLedgerService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithBalance(123.45))

	resp, err := service.Balance(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 123.45, resp.Balance)
	assert.Equal(t, "123.45 ₽", resp.Formatted)
	assert.Equal(t, "RUB", resp.Currency)
}
