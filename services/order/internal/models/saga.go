package models

import "time"

const (
	SagaStarted   = "started"
	SagaCompleted = "completed"
	SagaPartial   = "partial"
	SagaFailed    = "failed"
)

// CheckoutSaga is the local record of one checkout. Payload holds the
// NewOrder (with items) as JSON so a half-created order can be completed.
type CheckoutSaga struct {
	ID           string    `gorm:"primaryKey;size:36"          json:"id"`
	UserID       int64     `gorm:"index;not null"              json:"user_id"`
	OrderNumber  string    `gorm:"size:32;index;not null"      json:"order_number"`
	OrderID      int64     `gorm:"index"                       json:"order_id"`
	Payload      string    `gorm:"type:text;not null"          json:"-"`
	HeaderDone   bool      `gorm:"not null;default:false"      json:"header_done"`
	ItemsDone    bool      `gorm:"not null;default:false"      json:"items_done"`
	TrackingDone bool      `gorm:"not null;default:false"      json:"tracking_done"`
	VoucherDone  bool      `gorm:"not null;default:false"      json:"voucher_done"`
	StockDone    bool      `gorm:"not null;default:false"      json:"stock_done"`
	CartDone     bool      `gorm:"not null;default:false"      json:"cart_done"`
	State        string    `gorm:"size:16;index;not null"      json:"state"`
	LastError    string    `gorm:"type:text"                   json:"last_error,omitempty"`
	CreatedAt    time.Time `gorm:"not null"                    json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null"                    json:"updated_at"`
}

const (
	TaskVoucherUsage = "voucher_usage"
	TaskStockAdjust  = "stock_adjust"
	TaskRepairOrder  = "repair_order"
	TaskCartClear    = "cart_clear"
	TaskPublishEvent = "publish_event"
)

const (
	TaskPending = "pending"
	TaskDone    = "done"
	TaskDead    = "dead"
)

type RetryTask struct {
	ID        uint      `gorm:"primaryKey"                  json:"id"`
	Kind      string    `gorm:"size:32;index;not null"      json:"kind"`
	OrderID   int64     `gorm:"index"                       json:"order_id"`
	Payload   string    `gorm:"type:text;not null"          json:"payload"`
	Attempts  int       `gorm:"not null;default:0"          json:"attempts"`
	Status    string    `gorm:"size:16;index;not null"      json:"status"`
	NextRunAt time.Time `gorm:"index;not null"              json:"next_run_at"`
	LastError string    `gorm:"type:text"                   json:"last_error,omitempty"`
	CreatedAt time.Time `gorm:"not null"                    json:"created_at"`
	UpdatedAt time.Time `gorm:"not null"                    json:"updated_at"`
}

// Payloads of retry tasks.
type (
	VoucherUsageTask struct {
		Usage         VoucherUsage `json:"usage"`
		UsageRecorded bool         `json:"usage_recorded"`
	}
	StockAdjustTask struct {
		ProductID int64 `json:"product_id"`
		Delta     int   `json:"delta"`
	}
	CartClearTask struct {
		UserID int64 `json:"user_id"`
	}
)
