package portfolio

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// KPIDisplay carries the KPI figures as localized strings for the cards.
type KPIDisplay struct {
	TotalProjects  string `json:"total_projects"`
	TotalRevenue   string `json:"total_revenue"`
	TotalUnits     string `json:"total_units"`
	TotalUnitsSold string `json:"total_units_sold"`
	SalesRate      string `json:"sales_rate"`
}

// Formatter renders KPI figures with the grouping rules of one locale.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter parses locale, falling back to English.
func NewFormatter(locale string) Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return Formatter{printer: message.NewPrinter(tag)}
}

// KPIs formats k. Revenue is shown in millions of riyals.
func (f Formatter) KPIs(k KPIs) KPIDisplay {
	p := f.printer
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	return KPIDisplay{
		TotalProjects:  p.Sprintf("%d", k.TotalProjects),
		TotalRevenue:   p.Sprintf("SAR %.1fM", k.TotalRevenue),
		TotalUnits:     p.Sprintf("%d", k.TotalUnits),
		TotalUnitsSold: p.Sprintf("%d", k.TotalUnitsSold),
		SalesRate:      p.Sprintf("%.1f%%", k.SalesRate),
	}
}
