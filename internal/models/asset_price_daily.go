package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PriceSourceCash      = "cash"
	PriceSourceCoinGecko = "coingecko"
)

// AssetPriceDaily is one observed daily close per (symbol, date). Rows are
// upserted on ingest because the provider may revise a close after the fact;
// they are never deleted by this service.
type AssetPriceDaily struct {
	ID     uint64          `gorm:"primaryKey;autoIncrement"`
	Symbol string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_asset_prices_symbol_date,priority:1"`
	Date   time.Time       `gorm:"type:date;not null;uniqueIndex:idx_asset_prices_symbol_date,priority:2"`
	Close  decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Source string          `gorm:"type:varchar(20);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (AssetPriceDaily) TableName() string {
	return "asset_prices_daily"
}
