// Package journal persists accepted orders through gorm. It is an external
// collaborator of the engine: nothing is read back on restart.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradecore/internal/engine"
)

const tableName = "order_journal"

// Record is one accepted order.
type Record struct {
	ID            uint64              `gorm:"primaryKey"`
	Engine        string              `gorm:"size:64;not null;index:idx_journal_strategy,priority:1"`
	Strategy      string              `gorm:"size:128;not null;index:idx_journal_strategy,priority:2"`
	Gateway       string              `gorm:"size:64;not null;uniqueIndex:idx_journal_order,priority:1"`
	OrderID       string              `gorm:"size:128;not null;uniqueIndex:idx_journal_order,priority:2"`
	ClientOrderID string              `gorm:"size:128;not null"`
	Symbol        string              `gorm:"size:64;not null;index"`
	Side          string              `gorm:"size:8;not null"`
	Type          string              `gorm:"size:16;not null"`
	TimeInForce   string              `gorm:"size:8"`
	Price         decimal.Decimal     `gorm:"type:numeric;not null"`
	Volume        decimal.Decimal     `gorm:"type:numeric;not null"`
	StopPrice     decimal.NullDecimal `gorm:"type:numeric"`
	TradeTime     time.Time
	CreatedAt     time.Time
}

func (Record) TableName() string {
	return tableName
}

// NewRecord maps an acknowledgment to a row.
func NewRecord(ack engine.OrderAck) Record {
	req := ack.Request
	rec := Record{
		Engine:        ack.Engine,
		Strategy:      ack.Strategy,
		Gateway:       ack.Gateway,
		OrderID:       ack.OrderID,
		ClientOrderID: ack.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side.String(),
		Type:          req.Type.String(),
		Price:         req.Price,
		Volume:        req.Volume,
		StopPrice:     req.StopPrice,
		TradeTime:     ack.Time,
	}
	if req.TimeInForce.IsAvailable() {
		rec.TimeInForce = req.TimeInForce.String()
	}
	return rec
}

// Journal is an engine.TradeHook writing every accepted order.
type Journal struct {
	db *gorm.DB
}

var _ engine.TradeHook = (*Journal)(nil)

func New(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// Migrate creates or updates the journal table.
func (j *Journal) Migrate(ctx context.Context) error {
	if err := j.db.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("migrate order journal, err: %w", err)
	}
	return nil
}

func (j *Journal) OnTrade(ctx context.Context, ack engine.OrderAck) error {
	rec := NewRecord(ack)
	if err := j.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("journal order %s/%s, err: %w", ack.Gateway, ack.OrderID, err)
	}
	return nil
}

// Orders lists the journaled orders of one strategy in insertion order.
func (j *Journal) Orders(ctx context.Context, engineName, strategy string) ([]Record, error) {
	var out []Record
	err := j.db.WithContext(ctx).
		Where("engine = ? AND strategy = ?", engineName, strategy).
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list journal of %s/%s, err: %w", engineName, strategy, err)
	}
	return out, nil
}
