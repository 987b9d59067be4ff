package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

type Gateway string

const (
	GatewayStripe      Gateway = "stripe"
	GatewayPayPal      Gateway = "paypal"
	GatewayMercadoPago Gateway = "mercadopago"
)

type Order struct {
	ID                   snowflake.ID  `json:"id" gorm:"primaryKey"`
	Number               string        `json:"number" gorm:"type:text;not null;uniqueIndex:ux_orders_number"`
	UserID               snowflake.ID  `json:"user_id" gorm:"not null;index"`
	TotalAmount          int64         `json:"total_amount" gorm:"not null"`
	Currency             string        `json:"currency" gorm:"type:text;not null;default:BRL"`
	Status               Status        `json:"status" gorm:"type:text;not null;default:PENDING"`
	Gateway              Gateway       `json:"gateway" gorm:"type:text;not null"`
	GatewayTransactionID *string       `json:"gateway_transaction_id" gorm:"uniqueIndex:ux_orders_gateway_ref"`
	CouponID             *snowflake.ID `json:"coupon_id"`
	CreatedAt            time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt            time.Time     `json:"updated_at" gorm:"not null"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID         snowflake.ID `json:"order_id" gorm:"not null;uniqueIndex:ux_order_items_order_course"`
	CourseID        snowflake.ID `json:"course_id" gorm:"not null;uniqueIndex:ux_order_items_order_course"`
	InstructorID    snowflake.ID `json:"instructor_id" gorm:"not null"`
	PriceAtPurchase int64        `json:"price_at_purchase" gorm:"not null"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

var ErrNotFound = errors.New("order_not_found")

type Repository interface {
	// CreateWithItems persists the order and its items atomically.
	CreateWithItems(ctx context.Context, order *Order, items []OrderItem) error
	FindByID(ctx context.Context, id snowflake.ID) (*Order, error)
	FindByUser(ctx context.Context, userID snowflake.ID) ([]Order, error)
	// FindByGatewayRef locates an order by the provider-side transaction id,
	// falling back to the local order id carried in provider metadata when
	// the reference was never persisted (checkout crashed before SetGatewayRef).
	FindByGatewayRef(ctx context.Context, ref string, orderRef string) (*Order, error)
	SetGatewayRef(ctx context.Context, id snowflake.ID, ref string) error
	// Transition flips status from->to and reports how many rows changed.
	// Zero rows means a concurrent worker already moved the order on.
	Transition(tx *gorm.DB, id snowflake.ID, from, to Status) (int64, error)
	ItemsByOrder(tx *gorm.DB, orderID snowflake.ID) ([]OrderItem, error)
}
