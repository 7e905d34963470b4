package matchresult

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/inspirehep/inspire-matcher/pkg/database"
	"github.com/inspirehep/inspire-matcher/pkg/models"
	"github.com/inspirehep/inspire-matcher/pkg/tracing"
)

const table = "match_results"

var columns = []string{"id", "run_id", "config_name", "record_fingerprint", "step", "query_index", "hit_index", "hit_id", "hit_score", "hit_source", "created_at"}

// Repository handles match result persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match result repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Rows flattens a run into one row per accepted hit
func Rows(run *models.MatchRun, now time.Time) ([]models.MatchResult, error) {
	rows := make([]models.MatchResult, 0, len(run.Matches))
	for _, m := range run.Matches {
		source, err := json.Marshal(m.Hit.Source)
		if err != nil {
			return nil, fmt.Errorf("encoding source of hit %s: %w", m.Hit.ID, err)
		}
		rows = append(rows, models.MatchResult{
			ID:                uuid.New().String(),
			RunID:             run.RunID,
			ConfigName:        run.ConfigName,
			RecordFingerprint: run.RecordFingerprint,
			Step:              m.Step,
			Query:             m.Query,
			HitIndex:          m.Hit.Index,
			HitID:             m.Hit.ID,
			HitScore:          m.Hit.Score,
			HitSource:         source,
			CreatedAt:         now,
		})
	}
	return rows, nil
}

// SaveRun stores every match of the run in one statement. Runs without matches are skipped.
func (r *Repository) SaveRun(ctx context.Context, run *models.MatchRun) ([]models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.SaveRun")
	defer span.End()

	if run == nil || len(run.Matches) == 0 {
		return []models.MatchResult{}, nil
	}

	rows, err := Rows(run, time.Now().UTC())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": run.RunID}).Error("Failed to build match results")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to save match results")
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto(table)
	sb.Cols(columns...)
	for _, row := range rows {
		sb.Values(row.ID, row.RunID, row.ConfigName, row.RecordFingerprint, row.Step, row.Query, row.HitIndex, row.HitID, row.HitScore, string(row.HitSource), row.CreatedAt)
	}

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": run.RunID}).Error("Failed to save match results")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to save match results")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"run_id": run.RunID, "count": len(rows)}).Debug("Saved match results")
	return rows, nil
}

// ListByRun returns the results of one run in step order
func (r *Repository) ListByRun(ctx context.Context, runID string) ([]models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.ListByRun")
	defer span.End()

	if _, err := uuid.Parse(runID); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid run id %q", runID))
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("run_id", runID))
	sb.OrderBy("step", "query_index", "hit_score DESC")

	query, args := sb.Build()
	results := []models.MatchResult{}
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list match results by run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match results")
	}

	if len(results) == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("match run %s not found", runID))
	}
	return results, nil
}

// ListByFingerprint returns the most recent results recorded for a record under a config
func (r *Repository) ListByFingerprint(ctx context.Context, configName, fingerprint string, limit int) ([]models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.ListByFingerprint")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("config_name", configName),
		sb.Equal("record_fingerprint", fingerprint),
	)
	sb.OrderBy("created_at DESC", "step", "query_index")
	sb.Limit(limit)

	query, args := sb.Build()
	results := []models.MatchResult{}
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list match results by fingerprint")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match results")
	}

	return results, nil
}

// Ping checks the connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
