package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	ScopePortfolio = "PORTFOLIO"
	ScopeJobLock   = "PORTFOLIO_JOB_LOCK"

	// JobLockKey is the portfolio_key of the single lock row under ScopeJobLock.
	JobLockKey = "GLOBAL"
)

// RoiDashboardSnapshot is the per-portfolio control record: dirty flag,
// incremental-recompute low-water mark, and the cached metrics dashboards
// render between recomputes.
//
// One special row (scope=PORTFOLIO_JOB_LOCK, key=GLOBAL) is repurposed as the
// distributed job lock; its Payload carries the holder identity and run id.
type RoiDashboardSnapshot struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Scope        string `gorm:"type:varchar(30);not null;uniqueIndex:idx_roi_dashboard_scope_key,priority:1"`
	PortfolioKey string `gorm:"type:varchar(50);not null;uniqueIndex:idx_roi_dashboard_scope_key,priority:2"`

	NeedsRecompute    bool       `gorm:"not null;default:false;index"`
	RecomputeFromDate *time.Time `gorm:"type:date"`
	AsOfDate          *time.Time `gorm:"type:date"`

	RoiInception *decimal.Decimal `gorm:"type:numeric(20,10)"`
	Roi30d       *decimal.Decimal `gorm:"column:roi_30d;type:numeric(20,10)"`
	MaxDrawdown  *decimal.Decimal `gorm:"type:numeric(20,10)"`
	Volatility   *decimal.Decimal `gorm:"type:numeric(20,10)"`

	LastComputedAt *time.Time     `gorm:"type:timestamptz"`
	LastError      *string        `gorm:"type:text"`
	Payload        datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (RoiDashboardSnapshot) TableName() string {
	return "roi_dashboard_snapshots"
}

// Status reports the freshness state consumers render: "ok" when clean,
// "updating" when dirty but previously computed, "error" when dirty with a
// recorded failure and no successful computation yet.
func (s *RoiDashboardSnapshot) Status() string {
	if s == nil {
		return "error"
	}
	if !s.NeedsRecompute {
		return "ok"
	}
	if s.LastComputedAt == nil && s.LastError != nil {
		return "error"
	}
	return "updating"
}
