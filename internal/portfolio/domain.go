// Package portfolio serves the dashboard's project, competitor and analytics
// data, both as a canned local API and as page loaders that prefer the remote
// backend.
package portfolio

import "errors"

var (
	// ErrProjectNotFound indicates an unknown project id.
	ErrProjectNotFound = errors.New("portfolio: project not found")
	// ErrCompetitorNotFound indicates an unknown competitor id.
	ErrCompetitorNotFound = errors.New("portfolio: competitor not found")
	// ErrInvalidAnalyticsType indicates an unsupported ?type= selector.
	ErrInvalidAnalyticsType = errors.New("portfolio: invalid analytics type")
)

// Project is one real-estate development.
type Project struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Status    string  `json:"status"`
	Location  string  `json:"location,omitempty"`
	Budget    float64 `json:"budget"`
	Timeline  string  `json:"timeline,omitempty"`
	Progress  int     `json:"progress"`
	Units     int     `json:"units"`
	UnitsSold int     `json:"units_sold"`
	Manager   string  `json:"manager,omitempty"`
	StartDate string  `json:"start_date,omitempty"`
	EndDate   string  `json:"end_date,omitempty"`
	SalesRate float64 `json:"sales_rate"`
}

// ProjectInput is the create payload. Field order is the order in which
// missing fields are reported.
type ProjectInput struct {
	Name      string  `json:"name" validate:"required"`
	Type      string  `json:"type" validate:"required"`
	Budget    float64 `json:"budget" validate:"required"`
	Timeline  string  `json:"timeline" validate:"required"`
	Units     int     `json:"units" validate:"required"`
	Location  string  `json:"location"`
	Manager   string  `json:"manager"`
	EndDate   string  `json:"end_date"`
	UnitsSold int     `json:"units_sold" validate:"gte=0,ltefield=Units"`
}

// Competitor is a tracked market rival.
type Competitor struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	MarketShare      float64 `json:"market_share"`
	DigitalPresence  int     `json:"digital_presence"`
	Website          string  `json:"website,omitempty"`
	RecentActivity   string  `json:"recent_activity,omitempty"`
	Trend            string  `json:"trend"`
	ChangePercentage string  `json:"change_percentage"`
}

// CompetitorInput is the create payload.
type CompetitorInput struct {
	Name             string  `json:"name" validate:"required"`
	MarketShare      float64 `json:"market_share" validate:"gte=0,lte=100"`
	DigitalPresence  int     `json:"digital_presence" validate:"gte=0,lte=100"`
	Website          string  `json:"website"`
	RecentActivity   string  `json:"recent_activity"`
	Trend            string  `json:"trend" validate:"omitempty,oneof=up down stable"`
	ChangePercentage string  `json:"change_percentage"`
}

// Metric is one point of a monthly series.
type Metric struct {
	ID          int64   `json:"id"`
	MetricType  string  `json:"metric_type"`
	MetricValue float64 `json:"metric_value"`
	Period      string  `json:"period"`
	Category    string  `json:"category"`
}

// KPIs summarises the portfolio. TotalRevenue is in millions.
type KPIs struct {
	TotalProjects  int     `json:"total_projects"`
	TotalRevenue   float64 `json:"total_revenue"`
	TotalUnits     int     `json:"total_units"`
	TotalUnitsSold int     `json:"total_units_sold"`
	SalesRate      float64 `json:"sales_rate"`
}

// Analytics is the dashboard analytics payload.
type Analytics struct {
	KPIs        KPIs     `json:"kpis"`
	SalesData   []Metric `json:"sales_data"`
	RevenueData []Metric `json:"revenue_data"`
}

// Analytics sections selectable with ?type=.
const (
	SectionKPIs    = "kpis"
	SectionSales   = "sales_data"
	SectionRevenue = "revenue_data"
)

// Section returns one part of the payload by name.
func (a Analytics) Section(name string) (any, error) {
	switch name {
	case SectionKPIs:
		return a.KPIs, nil
	case SectionSales:
		return a.SalesData, nil
	case SectionRevenue:
		return a.RevenueData, nil
	}
	return nil, ErrInvalidAnalyticsType
}
