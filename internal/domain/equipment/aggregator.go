package equipment

import "github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"

// Aggregate computes row count, per-field means and the category distribution.
func Aggregate(rows []entity.EquipmentRow) (entity.Aggregate, error) {
	if len(rows) == 0 {
		return entity.Aggregate{}, entity.ErrInsufficientData
	}

	var sumFlow, sumPressure, sumTemp float64
	counts := make(entity.CategoryCounts)
	for _, r := range rows {
		sumFlow += r.Flowrate
		sumPressure += r.Pressure
		sumTemp += r.Temperature
		counts[r.Category]++
	}

	n := float64(len(rows))
	return entity.Aggregate{
		RowCount: len(rows),
		Means: entity.Means{
			Flowrate:    sumFlow / n,
			Pressure:    sumPressure / n,
			Temperature: sumTemp / n,
		},
		CategoryCounts: counts,
	}, nil
}
