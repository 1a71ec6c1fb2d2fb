package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// AdRevenueEvent is one qualifying ad impression tied to a view.
// At most one settled distribution may reference a given
// (reel_id, viewer_id, impression_id) triple.
type AdRevenueEvent struct {
	ID            int64           `json:"id"`
	ReelID        string          `json:"reel_id"`
	ViewerID      string          `json:"viewer_id"`
	CreatorID     string          `json:"creator_id"`
	AdProvider    string          `json:"ad_provider"`
	AdType        string          `json:"ad_type"`
	Revenue       decimal.Decimal `json:"revenue"`
	CPM           decimal.Decimal `json:"cpm"`
	ViewDuration  float64         `json:"view_duration"`  // seconds
	VideoDuration float64         `json:"video_duration"` // seconds
	ImpressionID  string          `json:"impression_id"`
	IsValidView   bool            `json:"is_valid_view"`
	Settled       bool            `json:"settled"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Validate checks the raw event payload before eligibility rules run
func (e *AdRevenueEvent) Validate() error {
	if e.ReelID == "" {
		return errors.New("reel_id is required")
	}
	if e.ViewerID == "" {
		return errors.New("viewer_id is required")
	}
	if e.ImpressionID == "" {
		return errors.New("impression_id is required")
	}
	if e.VideoDuration <= 0 {
		return errors.New("video_duration must be positive")
	}
	if e.ViewDuration < 0 {
		return errors.New("view_duration cannot be negative")
	}
	return nil
}

// ViewPercentage returns the watched fraction of the video
func (e *AdRevenueEvent) ViewPercentage() float64 {
	if e.VideoDuration <= 0 {
		return 0
	}
	return e.ViewDuration / e.VideoDuration
}

// DistributionStatus represents distribution lifecycle state
type DistributionStatus string

const (
	DistributionPending   DistributionStatus = "pending"
	DistributionCompleted DistributionStatus = "completed"
)

// Share is one party's allocation of a distribution
type Share struct {
	UserID     string          `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// RevenueDistribution is the computed split of one ad revenue event.
// Invariant: Creator.Amount + Viewer.Amount + App.Amount == TotalRevenue exactly.
type RevenueDistribution struct {
	ID               int64              `json:"id"`
	Ref              string             `json:"ref"`
	AdRevenueEventID int64              `json:"ad_revenue_event_id"`
	TotalRevenue     decimal.Decimal    `json:"total_revenue"`
	Creator          Share              `json:"creator"`
	Viewer           Share              `json:"viewer"`
	App              Share              `json:"app"`
	Status           DistributionStatus `json:"status"`
	CreatedAt        time.Time          `json:"created_at"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
}

// IsConserved reports whether the three shares sum exactly to the total
func (d *RevenueDistribution) IsConserved() bool {
	sum := d.Creator.Amount.Add(d.Viewer.Amount).Add(d.App.Amount)
	return sum.Equal(d.TotalRevenue)
}
