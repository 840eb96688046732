package dto

// BalanceResponse 余额查询响应
type BalanceResponse struct {
	Balance   float64 `json:"balance"`
	Formatted string  `json:"formatted"`
	Currency  string  `json:"currency"`
}

// DepositRequest 充值请求（模拟支付）
type DepositRequest struct {
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	PaymentMethod string  `json:"payment_method" binding:"required"`
}

// DepositResponse 充值响应
type DepositResponse struct {
	PaymentIntent string  `json:"payment_intent"`
	TransactionID int64   `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	NewBalance    float64 `json:"new_balance"`
	Formatted     string  `json:"formatted"`
}

// PaymentMethodInfo 支付方式描述
type PaymentMethodInfo struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Enabled     bool   `json:"enabled"`
}

// TransactionInfo 交易记录
type TransactionInfo struct {
	ID            int64   `json:"id"`
	Amount        float64 `json:"amount"`
	Formatted     string  `json:"formatted"`
	Type          string  `json:"type"`
	Status        string  `json:"status"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Description   string  `json:"description"`
	CreatedAt     string  `json:"created_at"`
	CompletedAt   string  `json:"completed_at,omitempty"`
}

// TransactionListResponse 交易历史（分页）
type TransactionListResponse struct {
	Transactions []TransactionInfo `json:"transactions"`
	Total        int64             `json:"total"`
	Page         int               `json:"page"`
	PageSize     int               `json:"page_size"`
}

// UserStats 用量与余额汇总
type UserStats struct {
	Balance          float64            `json:"balance"`
	Formatted        string             `json:"formatted"`
	TotalDeposited   float64            `json:"total_deposited"`
	TotalSpent       float64            `json:"total_spent"`
	QuestionsAnswered int64             `json:"questions_answered"`
	TokensUsed       int64              `json:"tokens_used"`
	FreeUsageToday   map[string]FreeUsage `json:"free_usage_today"`
}

// FreeUsage 某问题类型当日免费额度使用情况
type FreeUsage struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// StatsResponse 统计响应
type StatsResponse struct {
	Stats *UserStats `json:"stats"`
}
