package notifier

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/folkertvanheusden/GHBot-BTC/internal/calculator"
	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

// Formatter renders replies for one asset quoted in one currency.
type Formatter struct {
	Asset    string // display name, e.g. "BTC"
	Quote    string // quote currency, e.g. "USD"
	Location *time.Location
}

func (f *Formatter) stamp(t time.Time) string {
	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(timeLayout)
}

// FormatStats renders the stats command reply.
func (f *Formatter) FormatStats(s *model.MarketStats) string {
	var prevMin, prevMax, prevAvg, prevMed *float64
	if p := s.Previous; p != nil {
		prevMin, prevMax, prevAvg, prevMed = &p.Min, &p.Max, &p.Avg, &p.Median
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("timestamp: %s, latest %s price: %.2f %s", f.stamp(s.Latest.Time), f.Asset, s.Latest.Price, f.Quote))
	f.writeValue(&b, "lowest", s.Current.Min, prevMin)
	f.writeValue(&b, "highest", s.Current.Max, prevMax)
	f.writeValue(&b, "average", s.Current.Avg, prevAvg)
	f.writeValue(&b, "median", s.Current.Median, prevMed)
	if s.Sparkline != "" {
		b.WriteString(" " + s.Sparkline)
	}
	return b.String()
}

func (f *Formatter) writeValue(b *strings.Builder, name string, v float64, prev *float64) {
	b.WriteString(fmt.Sprintf(", %s: %.2f %s", name, v, f.Quote))
	if cmp := calculator.Compare(v, prev, ""); cmp != "" {
		b.WriteString(" " + cmp)
	}
}

// FormatLinear renders the linear prediction reply.
func (f *Formatter) FormatLinear(lf *model.LinearForecast, horizon time.Duration) string {
	return fmt.Sprintf("In %.0f hours the %s price may be around %.2f %s (based on price trend), or %.2f %s (based on median)",
		horizon.Hours(), f.Asset, lf.Trend.Value, f.Quote, lf.Median.Value, f.Quote)
}

// FormatSeasonal renders the seasonal prediction reply.
func (f *Formatter) FormatSeasonal(sf *model.SeasonalForecast, bucket time.Duration, verbose bool) string {
	w := ShortDuration(bucket)
	out := fmt.Sprintf("%s price prediction (probably not correct): %.2f %s (based on %s average, %s) or %.2f %s (based on %s median, %s)",
		f.Asset,
		sf.Average.Value, f.Quote, w, f.stamp(sf.Average.At),
		sf.Median.Value, f.Quote, w, f.stamp(sf.Median.At))
	if verbose {
		out += fmt.Sprintf(" [%d buckets]", sf.Buckets)
	}
	return out
}

// FormatConversion renders the amount conversion reply.
func (f *Formatter) FormatConversion(amount, value decimal.Decimal, code string) string {
	return fmt.Sprintf("%s %s is ~ %s %s", amount.String(), f.Asset, value.StringFixed(2), strings.ToUpper(code))
}

// FormatError turns a handler failure into a reply. action names what was attempted,
// e.g. "Linear BTC prediction".
func (f *Formatter) FormatError(action string, err error) string {
	switch model.KindOf(err) {
	case model.KindValidation:
		var e *model.Error
		if errors.As(err, &e) {
			return e.Err.Error()
		}
		return err.Error()
	case model.KindInsufficientData:
		return fmt.Sprintf("Problem retrieving %s price (%v)", f.Asset, err)
	default:
		return fmt.Sprintf("%s failed: %v", action, err)
	}
}

// FormatDescriptor renders one command registration record.
func FormatDescriptor(group, command, description string) string {
	return fmt.Sprintf("hgrp=%s|cmd=%s|descr=%s", group, command, description)
}

// ShortDuration prints d without trailing zero units: 5m0s -> 5m, 1h0m0s -> 1h.
func ShortDuration(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}
