package compound

import (
	"time"

	"IndexForge/internal/model"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Simulate replays the compounded index returns against an amount invested
// at start. The amount math runs on decimals and the final figure is rounded
// to the currency's minor unit.
func Simulate(series []model.IndexValue, amount float64, start time.Time, currency string, now time.Time) (model.SimulationResult, error) {
	if len(series) == 0 {
		return model.SimulationResult{}, &model.InsufficientDataError{What: "simulation", Need: 1, Got: 0}
	}
	if currency == "" {
		currency = money.USD
	}

	var entry *model.IndexValue
	for i := range series {
		if !series[i].Date.Before(model.Day(start)) {
			entry = &series[i]
			break
		}
	}
	if entry == nil {
		return model.SimulationResult{}, &model.InsufficientDataError{
			What: "simulation start date", Need: 1, Got: 0,
		}
	}
	last := series[len(series)-1]

	factor := decimal.NewFromFloat(last.Value).Div(decimal.NewFromFloat(entry.Value))
	final := decimal.NewFromFloat(amount).Mul(factor)

	rounded := money.NewFromFloat(final.InexactFloat64(), currency)
	roi := factor.Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))

	return model.SimulationResult{
		Currency:    currency,
		AmountStart: amount,
		AmountFinal: rounded.AsMajorUnits(),
		ROIPercent:  roi.InexactFloat64(),
		From:        entry.Date,
		To:          last.Date,
		Stale:       last.Date.Before(model.Day(now)),
	}, nil
}
