package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AllocationItem is one constituent of a portfolio allocation.
type AllocationItem struct {
	Asset  string          `json:"asset"`
	Weight decimal.Decimal `json:"weight"`
}

// AllocationSnapshot is an append-only record of a portfolio's target
// composition, effective from AsOfDate until superseded by a later snapshot
// for the same key. Re-publishing on the same day replaces that day's row;
// past days are immutable.
type AllocationSnapshot struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement"`
	PortfolioKey string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_allocations_portfolio_date,priority:1"`
	AsOfDate     time.Time       `gorm:"type:date;not null;uniqueIndex:idx_allocations_portfolio_date,priority:2"`
	Items        datatypes.JSON  `gorm:"type:jsonb;not null"`
	CashWeight   decimal.Decimal `gorm:"type:numeric(20,10);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (AllocationSnapshot) TableName() string {
	return "allocation_snapshots"
}

func (s *AllocationSnapshot) DecodeItems() ([]AllocationItem, error) {
	if s == nil || len(s.Items) == 0 {
		return nil, nil
	}
	var items []AllocationItem
	if err := json.Unmarshal(s.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *AllocationSnapshot) SetItems(items []AllocationItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	s.Items = datatypes.JSON(raw)
	return nil
}
