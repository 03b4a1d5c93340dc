package domain

import (
	"testing"
	"time"
)

func validBar() Bar {
	return Bar{
		Timestamp: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
		Symbol:    "RELIANCE",
		Open:      100.0,
		High:      101.5,
		Low:       99.5,
		Close:     101.0,
		Volume:    10000,
	}
}

func TestBarValidate(t *testing.T) {
	b := validBar()
	if err := b.Validate(); err != nil {
		t.Fatalf("valid bar rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Bar)
	}{
		{"empty symbol", func(b *Bar) { b.Symbol = "" }},
		{"zero timestamp", func(b *Bar) { b.Timestamp = time.Time{} }},
		{"zero open", func(b *Bar) { b.Open = 0 }},
		{"negative close", func(b *Bar) { b.Close = -1 }},
		{"high below low", func(b *Bar) { b.High = 99.0 }},
		{"open above high", func(b *Bar) { b.Open = 200 }},
		{"negative volume", func(b *Bar) { b.Volume = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBar()
			tt.mutate(&b)
			if err := b.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestBarDay(t *testing.T) {
	b := validBar()
	day := b.Day()
	if day.Hour() != 0 || day.Minute() != 0 {
		t.Errorf("day not truncated to midnight: %v", day)
	}
	if !day.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected day: %v", day)
	}
}

func TestPositionSide(t *testing.T) {
	p := Position{Symbol: "INFY", Quantity: 100, AvgPrice: 50}
	if got := p.Side(); got != PositionLong {
		t.Errorf("side = %s, want LONG", got)
	}
	p.Quantity = -100
	if got := p.Side(); got != PositionShort {
		t.Errorf("side = %s, want SHORT", got)
	}
	p.Quantity = 0
	if got := p.Side(); got != PositionFlat {
		t.Errorf("side = %s, want FLAT", got)
	}
}

func TestPositionNotional(t *testing.T) {
	p := Position{Symbol: "INFY", Quantity: -100}
	if got := p.Notional(50); got != 5000 {
		t.Errorf("notional = %v, want 5000", got)
	}
	if got := p.MarketValue(50); got != -5000 {
		t.Errorf("market value = %v, want -5000", got)
	}
}

func TestFillValues(t *testing.T) {
	f := Fill{Quantity: 99, Price: 100.05, Commission: 9.905}
	if got := f.GrossValue(); got != 99*100.05 {
		t.Errorf("gross = %v", got)
	}
	if got := f.NetValue(); got != 99*100.05+9.905 {
		t.Errorf("net = %v", got)
	}
}

func TestOrderSideSign(t *testing.T) {
	if OrderSideBuy.Sign() != 1 || OrderSideSell.Sign() != -1 {
		t.Error("unexpected side signs")
	}
}

func TestDailyPnLReturn(t *testing.T) {
	d := DailyPnL{StartingEquity: 100000, EndingEquity: 101000}
	if got := d.Return(); got != 0.01 {
		t.Errorf("return = %v, want 0.01", got)
	}
	d.StartingEquity = 0
	if got := d.Return(); got != 0 {
		t.Errorf("return with zero start = %v, want 0", got)
	}
}
