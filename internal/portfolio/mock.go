package portfolio

import "math"

var mockProjects = []Project{
	{ID: 1, Name: "Al Fozan Tower", Type: "Commercial", Status: "In Progress", Location: "Riyadh", Budget: 150_000_000, Progress: 75, Units: 120, UnitsSold: 90, Manager: "Ahmed Al-Rashid", StartDate: "2023-01-15", EndDate: "2024-12-31", SalesRate: 75},
	{ID: 2, Name: "Fozan Residential Complex", Type: "Residential", Status: "Planning", Location: "Jeddah", Budget: 200_000_000, Progress: 25, Units: 200, UnitsSold: 50, Manager: "Sara Al-Mahmoud", StartDate: "2024-03-01", EndDate: "2025-08-30", SalesRate: 25},
	{ID: 3, Name: "Industrial Park Phase 1", Type: "Industrial", Status: "Completed", Location: "Dammam", Budget: 300_000_000, Progress: 100, Units: 50, UnitsSold: 50, Manager: "Omar Al-Fahad", StartDate: "2022-06-01", EndDate: "2023-11-30", SalesRate: 100},
	{ID: 4, Name: "Luxury Villas Project", Type: "Residential", Status: "In Progress", Location: "Riyadh", Budget: 180_000_000, Progress: 60, Units: 80, UnitsSold: 48, Manager: "Fatima Al-Zahra", StartDate: "2023-09-01", EndDate: "2024-06-30", SalesRate: 60},
}

var mockCompetitors = []Competitor{
	{ID: 1, Name: "Saudi Real Estate Co.", MarketShare: 25.5, DigitalPresence: 85, Website: "https://saudirealestate.com", RecentActivity: "Launched new residential project in Riyadh", Trend: "up", ChangePercentage: "+12%"},
	{ID: 2, Name: "Kingdom Properties", MarketShare: 18.2, DigitalPresence: 78, Website: "https://kingdomproperties.sa", RecentActivity: "Acquired land for commercial development", Trend: "up", ChangePercentage: "+8%"},
	{ID: 3, Name: "Gulf Development Group", MarketShare: 15.8, DigitalPresence: 72, Website: "https://gulfdevelopment.com", RecentActivity: "Completed luxury tower project", Trend: "stable", ChangePercentage: "0%"},
	{ID: 4, Name: "Arabian Investments", MarketShare: 12.3, DigitalPresence: 65, Website: "https://arabianinvestments.sa", RecentActivity: "Announced partnership with international firm", Trend: "down", ChangePercentage: "-3%"},
}

var mockSales = monthlySeries("units_sold", []float64{45, 52, 38, 61, 55, 48})

var mockRevenue = monthlySeries("revenue", []float64{25.5, 28.2, 22.8, 31.5, 29.8, 26.4})

func monthlySeries(metric string, values []float64) []Metric {
	months := []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun"}
	out := make([]Metric, len(values))
	for i, v := range values {
		out[i] = Metric{ID: int64(i + 1), MetricType: metric, MetricValue: v, Period: "2024-" + months[i], Category: "monthly"}
	}
	return out
}

// MockProjects returns a fresh copy of the demo projects.
func MockProjects() []Project {
	return append([]Project(nil), mockProjects...)
}

// MockCompetitors returns a fresh copy of the demo competitors.
func MockCompetitors() []Competitor {
	return append([]Competitor(nil), mockCompetitors...)
}

// MockAnalytics derives the demo analytics from the demo projects.
func MockAnalytics() Analytics {
	return BuildAnalytics(mockProjects, mockSales, mockRevenue)
}

// BuildAnalytics summarises projects and attaches copies of the series.
func BuildAnalytics(projects []Project, sales, revenue []Metric) Analytics {
	return Analytics{
		KPIs:        ComputeKPIs(projects),
		SalesData:   append([]Metric(nil), sales...),
		RevenueData: append([]Metric(nil), revenue...),
	}
}

// ComputeKPIs totals budgets (in millions) and units. Sales rate is the
// share of all units sold, rounded to two decimals.
func ComputeKPIs(projects []Project) KPIs {
	k := KPIs{TotalProjects: len(projects)}
	var budget float64
	for _, p := range projects {
		budget += p.Budget
		k.TotalUnits += p.Units
		k.TotalUnitsSold += p.UnitsSold
	}
	k.TotalRevenue = budget / 1_000_000
	if k.TotalUnits > 0 {
		k.SalesRate = round2(float64(k.TotalUnitsSold) / float64(k.TotalUnits) * 100)
	}
	return k
}

func salesRate(units, sold int) float64 {
	if units <= 0 {
		return 0
	}
	return round2(float64(sold) / float64(units) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
