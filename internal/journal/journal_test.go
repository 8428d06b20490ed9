package journal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"tradecore/internal/engine"
	"tradecore/internal/schema"
)

var tradeTime = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func ack() engine.OrderAck {
	return engine.OrderAck{
		Engine:        "bt",
		Strategy:      "buyer",
		OrderID:       "SIM-000001",
		ClientOrderID: "buyer-1",
		Gateway:       "SIM",
		Request: schema.OrderRequest{
			Symbol:      "AAPL",
			Price:       decimal.NewFromInt(150),
			Volume:      decimal.NewFromInt(1000),
			Side:        schema.OrderSideBuy,
			Type:        schema.OrderTypeLimit,
			TimeInForce: schema.TimeInForceGTC,
		},
		Time: tradeTime,
	}
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord(ack())
	assert.Equal(t, "order_journal", rec.TableName())
	assert.Equal(t, "bt", rec.Engine)
	assert.Equal(t, "buyer", rec.Strategy)
	assert.Equal(t, "SIM-000001", rec.OrderID)
	assert.Equal(t, "buyer-1", rec.ClientOrderID)
	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, "BUY", rec.Side)
	assert.Equal(t, schema.OrderTypeLimit.String(), rec.Type)
	assert.Equal(t, schema.TimeInForceGTC.String(), rec.TimeInForce)
	assert.True(t, rec.Price.Equal(decimal.NewFromInt(150)))
	assert.False(t, rec.StopPrice.Valid)
	assert.Equal(t, tradeTime, rec.TradeTime)

	a := ack()
	a.Request.TimeInForce = 0
	assert.Empty(t, NewRecord(a).TimeInForce)
}

func TestOnTradeStatement(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "postgres://localhost:5432/journal?sslmode=disable"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	j := New(db)
	require.NoError(t, j.OnTrade(context.Background(), ack()))

	rec := NewRecord(ack())
	stmt := db.Session(&gorm.Session{DryRun: true}).Create(&rec).Statement
	sql := stmt.SQL.String()
	assert.Contains(t, sql, `INSERT INTO "order_journal"`)
	assert.Contains(t, sql, `"client_order_id"`)
	assert.Contains(t, sql, `"trade_time"`)
}
