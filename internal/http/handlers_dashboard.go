package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"kwitansi/internal/core"
	applog "kwitansi/internal/log"
	"kwitansi/internal/ports"
)

// partialTimeout bounds each backend call made for a dashboard partial.
const partialTimeout = 7 * time.Second

type dashboardView struct {
	Years   []int
	Months  []core.MonthOption
	Daily   dailyView
	Monthly monthlyView
}

type dailyView struct {
	Year   int
	Month  time.Month
	Week   int
	Weeks  []core.Week
	Bars   []core.Bar
	Total  core.Money
	Failed bool

	Years  []int
	Months []core.MonthOption
}

type monthlyView struct {
	Year   int
	Month  time.Month
	Count  int
	Bars   []core.Bar
	Failed bool

	Years  []int
	Months []core.MonthOption
}

// handleDashboard renders the dashboard shell; the charts load through
// /ui/dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	data := dashboardView{
		Years:   core.YearOptions(now),
		Months:  core.MonthOptions(),
		Daily:   dailyView{Year: now.Year(), Month: now.Month()},
		Monthly: monthlyView{Year: now.Year(), Month: now.Month()},
	}
	s.render(w, r, http.StatusOK, "dashboard_page", s.page(r, "Dashboard", "dashboard", data))
}

// handleDashboardCharts fetches both charts concurrently and returns them
// as one fragment.
func (s *Server) handleDashboardCharts(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	daily := ParseDailyParams(r.URL.Query(), now)
	monthly := ParseMonthParams(r.URL.Query(), now)

	var dv dailyView
	var mv monthlyView
	// each chart degrades on its own
	var g errgroup.Group
	ctx := r.Context()
	g.Go(func() error {
		var err error
		dv, err = s.dailyView(ctx, daily, now)
		return err
	})
	g.Go(func() error {
		var err error
		mv, err = s.monthlyView(ctx, monthly, now)
		return err
	})
	if err := g.Wait(); err != nil {
		if !s.listError(w, r, err, applog.ComponentDashboard, applog.OpRead, applog.NewFields()) {
			return
		}
		dv.Failed, mv.Failed = dv.Bars == nil, mv.Bars == nil
	}

	s.render(w, r, http.StatusOK, "dashboard_charts", dashboardView{Daily: dv, Monthly: mv})
}

func (s *Server) handleDashboardDaily(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	p := ParseDailyParams(r.URL.Query(), now)
	v, err := s.dailyView(r.Context(), p, now)
	if err != nil {
		fields := applog.NewFields()
		fields[applog.FieldYear] = p.Year
		fields[applog.FieldMonth] = int(p.Month)
		fields[applog.FieldWeek] = p.Week
		if !s.listError(w, r, err, applog.ComponentDashboard, applog.OpRead, fields) {
			return
		}
		v.Failed = true
	}
	s.render(w, r, http.StatusOK, "dashboard_daily", v)
}

func (s *Server) handleDashboardMonthly(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	p := ParseMonthParams(r.URL.Query(), now)
	v, err := s.monthlyView(r.Context(), p, now)
	if err != nil {
		fields := applog.NewFields()
		fields[applog.FieldYear] = p.Year
		fields[applog.FieldMonth] = int(p.Month)
		if !s.listError(w, r, err, applog.ComponentDashboard, applog.OpRead, fields) {
			return
		}
		v.Failed = true
	}
	s.render(w, r, http.StatusOK, "dashboard_monthly", v)
}

// dailyView always returns a renderable view; on error the bars are empty.
func (s *Server) dailyView(ctx context.Context, p DailyParams, now time.Time) (dailyView, error) {
	v := dailyView{
		Year:   p.Year,
		Month:  p.Month,
		Week:   p.Week,
		Weeks:  p.Weeks,
		Years:  core.YearOptions(now),
		Months: core.MonthOptions(),
	}
	series, err := s.dailyPayments(ctx, ports.DailyPaymentsQuery{Year: p.Year, Month: p.Month, Week: p.Week})
	if err != nil {
		return v, err
	}
	v.Bars = core.DailyChart(series)
	for _, d := range series {
		v.Total += d.Total
	}
	return v, nil
}

func (s *Server) monthlyView(ctx context.Context, p MonthParams, now time.Time) (monthlyView, error) {
	v := monthlyView{
		Year:   p.Year,
		Month:  p.Month,
		Years:  core.YearOptions(now),
		Months: core.MonthOptions(),
	}
	count, err := s.monthlyTransactions(ctx, p.Year, p.Month)
	if err != nil {
		return v, err
	}
	v.Count = count
	v.Bars = core.MonthlyChart(p.Year, p.Month, count)
	return v, nil
}

func (s *Server) dailyPayments(ctx context.Context, q ports.DailyPaymentsQuery) ([]core.DailyPayment, error) {
	key := fmt.Sprintf("daily:%d-%d-%d", q.Year, q.Month, q.Week)
	if series, ok := s.dailyCache.Get(key); ok {
		return series, nil
	}
	ctx, cancel := context.WithTimeout(ctx, partialTimeout)
	defer cancel()
	series, err := s.backend.DailyPayments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("daily payments: %w", err)
	}
	s.dailyCache.Set(key, series)
	return series, nil
}

func (s *Server) monthlyTransactions(ctx context.Context, year int, month time.Month) (int, error) {
	key := fmt.Sprintf("monthly:%d-%d", year, month)
	if n, ok := s.monthlyCache.Get(key); ok {
		return n, nil
	}
	ctx, cancel := context.WithTimeout(ctx, partialTimeout)
	defer cancel()
	n, err := s.backend.MonthlyTransactions(ctx, year, month)
	if err != nil {
		return 0, fmt.Errorf("monthly transactions: %w", err)
	}
	s.monthlyCache.Set(key, n)
	return n, nil
}
