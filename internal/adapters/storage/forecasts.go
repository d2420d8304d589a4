package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alejandrodnm/polyoracle/internal/domain"
	"github.com/alejandrodnm/polyoracle/internal/ports"
)

var _ ports.ForecastStore = (*Store)(nil)

// SaveForecast inserta un forecast nuevo. El ID lo asigna el caller.
func (s *Store) SaveForecast(ctx context.Context, f domain.ForecastRecord) (string, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO forecasts (id, market_id, question, category, timestamp,
		                       raw_probability, calibrated_probability, confidence,
		                       reasoning, market_price_at_forecast, edge,
		                       recommended_action, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		f.ID, f.MarketID, f.Question, f.Category, fmtTime(f.Timestamp),
		f.RawProbability, f.CalibratedProbability, f.Confidence,
		f.Reasoning, f.MarketPriceAtForecast, f.Edge,
		string(f.RecommendedAction),
	)
	if err != nil {
		return "", fmt.Errorf("storage.SaveForecast: %w", err)
	}
	return f.ID, nil
}

// GetLatestForecast devuelve el forecast más reciente para un mercado,
// o nil si no existe ninguno.
func (s *Store) GetLatestForecast(ctx context.Context, marketID string) (*domain.ForecastRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+forecastColumns+`
		FROM forecasts
		WHERE market_id = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT 1`, marketID)

	rec, err := scanForecast(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.GetLatestForecast: %w", err)
	}
	return &rec, nil
}

// MarkForecastResolved fija outcome y Brier scores. Es la única mutación
// permitida sobre una fila, y solo aplica una vez.
func (s *Store) MarkForecastResolved(ctx context.Context, id string, outcome bool, brierRaw, brierCalibrated float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE forecasts
		SET resolved = 1, outcome = ?, brier_score_raw = ?, brier_score_calibrated = ?
		WHERE id = ? AND resolved = 0`,
		boolToInt(outcome), brierRaw, brierCalibrated, id)
	if err != nil {
		return fmt.Errorf("storage.MarkForecastResolved: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage.MarkForecastResolved: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("storage.MarkForecastResolved: forecast %s not found or already resolved", id)
	}
	return nil
}

// GetResolvedSamples devuelve los pares (predicción, outcome) resueltos de
// una categoría, del más reciente al más antiguo.
func (s *Store) GetResolvedSamples(ctx context.Context, category string) ([]domain.CalibrationSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT raw_probability, outcome
		FROM forecasts
		WHERE category = ? AND resolved = 1 AND outcome IS NOT NULL
		ORDER BY timestamp DESC`, category)
	if err != nil {
		return nil, fmt.Errorf("storage.GetResolvedSamples: %w", err)
	}
	defer rows.Close()

	var samples []domain.CalibrationSample
	for rows.Next() {
		var pred float64
		var outcome int
		if err := rows.Scan(&pred, &outcome); err != nil {
			return nil, fmt.Errorf("storage.GetResolvedSamples: %w", err)
		}
		samples = append(samples, domain.CalibrationSample{
			Prediction: pred,
			Outcome:    float64(outcome),
		})
	}
	return samples, rows.Err()
}

func (s *Store) CountResolvedSamples(ctx context.Context, category string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM forecasts
		WHERE category = ? AND resolved = 1`, category).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage.CountResolvedSamples: %w", err)
	}
	return n, nil
}

// GetUnresolvedMarketIDs devuelve los market IDs con forecasts pendientes,
// sin duplicados.
func (s *Store) GetUnresolvedMarketIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT market_id FROM forecasts WHERE resolved = 0`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetUnresolvedMarketIDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage.GetUnresolvedMarketIDs: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) GetResolvedForecasts(ctx context.Context) ([]domain.ForecastRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+forecastColumns+`
		FROM forecasts
		WHERE resolved = 1
		ORDER BY timestamp ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetResolvedForecasts: %w", err)
	}
	defer rows.Close()

	var out []domain.ForecastRecord
	for rows.Next() {
		rec, err := scanForecast(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.GetResolvedForecasts: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) CountForecasts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forecasts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage.CountForecasts: %w", err)
	}
	return n, nil
}

const forecastColumns = `id, market_id, question, category, timestamp,
	raw_probability, calibrated_probability, confidence, reasoning,
	market_price_at_forecast, edge, recommended_action, resolved,
	outcome, brier_score_raw, brier_score_calibrated`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForecast(row rowScanner) (domain.ForecastRecord, error) {
	var rec domain.ForecastRecord
	var ts, action string
	var question, reasoning sql.NullString
	var resolved int
	var outcome sql.NullInt64
	var brierRaw, brierCal sql.NullFloat64

	err := row.Scan(&rec.ID, &rec.MarketID, &question, &rec.Category, &ts,
		&rec.RawProbability, &rec.CalibratedProbability, &rec.Confidence,
		&reasoning, &rec.MarketPriceAtForecast, &rec.Edge, &action,
		&resolved, &outcome, &brierRaw, &brierCal)
	if err != nil {
		return domain.ForecastRecord{}, err
	}

	rec.Question = question.String
	rec.Reasoning = reasoning.String
	rec.Timestamp = parseTime(ts)
	rec.RecommendedAction = domain.Action(action)
	rec.Resolved = resolved != 0
	if outcome.Valid {
		o := outcome.Int64 != 0
		rec.Outcome = &o
	}
	if brierRaw.Valid {
		v := brierRaw.Float64
		rec.BrierScoreRaw = &v
	}
	if brierCal.Valid {
		v := brierCal.Float64
		rec.BrierScoreCalibrated = &v
	}
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
