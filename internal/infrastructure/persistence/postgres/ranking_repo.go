package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rankhub/student-ranking-hub/internal/domain/ranking"
	"github.com/rankhub/student-ranking-hub/internal/domain/scoring"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RankingRepository implements ranking.Store for PostgreSQL.
type RankingRepository struct {
	conn *Connection
}

// NewRankingRepository creates a new RankingRepository.
func NewRankingRepository(conn *Connection) *RankingRepository {
	return &RankingRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// READS
// ─────────────────────────────────────────────────────────────────────────────

// GetRecord returns the ranking row for a user.
func (r *RankingRepository) GetRecord(ctx context.Context, userID string) (ranking.Record, error) {
	return scanRecord(r.conn.QueryRow(ctx, `
		SELECT user_id, composite, academic, experience, rank, percentile,
		       is_verified, created_at, updated_at, config_version, compute_run_id, input_checksum
		FROM student_rankings
		WHERE user_id = $1
	`, userID))
}

// GetBreakdown returns the stored component breakdown for a user.
func (r *RankingRepository) GetBreakdown(ctx context.Context, userID string) (scoring.Breakdown, error) {
	var (
		b                                    scoring.Breakdown
		academicRaw, experienceRaw, weightsRaw []byte
	)

	err := r.conn.QueryRow(ctx, `
		SELECT academic_components, experience_components, effective_academic_weights,
		       academic_total, experience_total, composite
		FROM student_score_breakdown
		WHERE user_id = $1
	`, userID).Scan(
		&academicRaw,
		&experienceRaw,
		&weightsRaw,
		&b.AcademicTotal,
		&b.ExperienceTotal,
		&b.Composite,
	)
	if IsNoRows(err) {
		return scoring.Breakdown{}, ranking.ErrNoBreakdown
	}
	if err != nil {
		return scoring.Breakdown{}, fmt.Errorf("failed to get breakdown: %w", err)
	}

	if err := json.Unmarshal(academicRaw, &b.AcademicComponents); err != nil {
		return scoring.Breakdown{}, fmt.Errorf("failed to decode academic components: %w", err)
	}
	if err := json.Unmarshal(experienceRaw, &b.ExperienceComponents); err != nil {
		return scoring.Breakdown{}, fmt.Errorf("failed to decode experience components: %w", err)
	}
	if err := json.Unmarshal(weightsRaw, &b.EffectiveAcademicWeights); err != nil {
		return scoring.Breakdown{}, fmt.Errorf("failed to decode weights: %w", err)
	}

	return b, nil
}

// ListRecords returns every ranking record for the aggregator.
func (r *RankingRepository) ListRecords(ctx context.Context) ([]ranking.Record, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, composite, academic, experience, rank, percentile,
		       is_verified, created_at, updated_at, config_version, compute_run_id, input_checksum
		FROM student_rankings
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []ranking.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListHistogram returns the current histogram sorted by bucket index.
func (r *RankingRepository) ListHistogram(ctx context.Context) ([]ranking.HistogramBucket, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT bucket_id, count FROM score_histogram ORDER BY bucket_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list histogram: %w", err)
	}
	defer rows.Close()

	var buckets []ranking.HistogramBucket
	for rows.Next() {
		var b ranking.HistogramBucket
		if err := rows.Scan(&b.Bucket, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan histogram row: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// GetGlobalStats returns the latest global statistics snapshot.
func (r *RankingRepository) GetGlobalStats(ctx context.Context) (ranking.GlobalStats, error) {
	var stats ranking.GlobalStats
	err := r.conn.QueryRow(ctx, `
		SELECT total_users, COALESCE(mean_composite, 0), COALESCE(p50, 0),
		       COALESCE(p90, 0), COALESCE(p99, 0), config_version, updated_at
		FROM global_ranking_stats
		WHERE id = 1
	`).Scan(
		&stats.TotalStudents,
		&stats.MeanComposite,
		&stats.P50,
		&stats.P90,
		&stats.P99,
		&stats.ConfigVersion,
		&stats.UpdatedAt,
	)
	if IsNoRows(err) {
		return ranking.GlobalStats{}, ranking.ErrNotFound
	}
	if err != nil {
		return ranking.GlobalStats{}, fmt.Errorf("failed to get global stats: %w", err)
	}
	return stats, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SCORING-PASS WRITE (atomic unit)
// ─────────────────────────────────────────────────────────────────────────────

// ApplyUpsert writes a full scoring pass in one transaction: ranking row,
// history entry, breakdown, incremental histogram adjustment and audit log.
// Concurrent passes for the same user resolve last-write-wins on user_id.
func (r *RankingRepository) ApplyUpsert(ctx context.Context, up ranking.Upsert) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		// The old composite drives the audit delta and the histogram
		// decrement for the bucket this user is leaving.
		var oldComposite *float64
		err := tx.QueryRow(ctx, `
			SELECT composite FROM student_rankings WHERE user_id = $1 FOR UPDATE
		`, up.UserID).Scan(&oldComposite)
		if err != nil && !IsNoRows(err) {
			return fmt.Errorf("failed to read current composite: %w", err)
		}

		res := up.Result
		_, err = tx.Exec(ctx, `
			INSERT INTO student_rankings
			    (user_id, composite, academic, experience, is_verified, updated_at, config_version, compute_run_id, input_checksum)
			VALUES ($1, $2, $3, $4, $5, NOW(), $6, $7, $8)
			ON CONFLICT (user_id) DO UPDATE SET
			    composite = EXCLUDED.composite,
			    academic = EXCLUDED.academic,
			    experience = EXCLUDED.experience,
			    is_verified = student_rankings.is_verified OR EXCLUDED.is_verified,
			    updated_at = EXCLUDED.updated_at,
			    config_version = EXCLUDED.config_version,
			    compute_run_id = EXCLUDED.compute_run_id,
			    input_checksum = EXCLUDED.input_checksum
		`, up.UserID, res.Composite, res.Academic, res.Experience, up.IsVerified,
			up.Version, up.ComputeRunID, up.Checksum)
		if err != nil {
			return fmt.Errorf("failed to upsert ranking: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO student_score_history
			    (user_id, computed_at, composite, academic, experience, config_version, compute_run_id)
			VALUES ($1, NOW(), $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, computed_at) DO NOTHING
		`, up.UserID, res.Composite, res.Academic, res.Experience, up.Version, up.ComputeRunID)
		if err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}

		if err := upsertBreakdown(ctx, tx, up); err != nil {
			return err
		}

		// Incremental histogram maintenance: move the user from the old
		// bucket to the new one. The aggregator's periodic rebuild corrects
		// any residual drift.
		newBucket := ranking.BucketFor(res.Composite)
		if oldComposite != nil {
			oldBucket := ranking.BucketFor(*oldComposite)
			if oldBucket != newBucket {
				if err := incrementHistogram(ctx, tx, oldBucket, -1); err != nil {
					return err
				}
				if err := incrementHistogram(ctx, tx, newBucket, 1); err != nil {
					return err
				}
			}
		} else {
			if err := incrementHistogram(ctx, tx, newBucket, 1); err != nil {
				return err
			}
		}

		return insertAuditLog(ctx, tx, up, oldComposite)
	})
}

func upsertBreakdown(ctx context.Context, tx pgx.Tx, up ranking.Upsert) error {
	b := up.Result.Breakdown
	academicJSON, err := json.Marshal(b.AcademicComponents)
	if err != nil {
		return fmt.Errorf("failed to encode academic components: %w", err)
	}
	experienceJSON, err := json.Marshal(b.ExperienceComponents)
	if err != nil {
		return fmt.Errorf("failed to encode experience components: %w", err)
	}
	weightsJSON, err := json.Marshal(b.EffectiveAcademicWeights)
	if err != nil {
		return fmt.Errorf("failed to encode weights: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO student_score_breakdown
		    (user_id, academic_components, experience_components, effective_academic_weights,
		     academic_total, experience_total, composite, updated_at, config_version, compute_run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
		    academic_components = EXCLUDED.academic_components,
		    experience_components = EXCLUDED.experience_components,
		    effective_academic_weights = EXCLUDED.effective_academic_weights,
		    academic_total = EXCLUDED.academic_total,
		    experience_total = EXCLUDED.experience_total,
		    composite = EXCLUDED.composite,
		    updated_at = EXCLUDED.updated_at,
		    config_version = EXCLUDED.config_version,
		    compute_run_id = EXCLUDED.compute_run_id
	`, up.UserID, academicJSON, experienceJSON, weightsJSON,
		b.AcademicTotal, b.ExperienceTotal, b.Composite, up.Version, up.ComputeRunID)
	if err != nil {
		return fmt.Errorf("failed to upsert breakdown: %w", err)
	}
	return nil
}

func incrementHistogram(ctx context.Context, tx pgx.Tx, bucket int, delta int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO score_histogram (bucket_id, count) VALUES ($1, GREATEST($2, 0))
		ON CONFLICT (bucket_id) DO UPDATE SET
		    count = GREATEST(score_histogram.count + $2, 0)
	`, bucket, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust histogram bucket %d: %w", bucket, err)
	}
	return nil
}

func insertAuditLog(ctx context.Context, tx pgx.Tx, up ranking.Upsert, oldComposite *float64) error {
	var delta *float64
	if oldComposite != nil {
		d := up.Result.Composite - *oldComposite
		delta = &d
	}

	payload, err := json.Marshal(map[string]any{
		"reason":         up.Reason,
		"input_checksum": up.Checksum,
		"compute_run_id": up.ComputeRunID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ranking_updates_log
		    (user_id, reason, old_score, new_score, delta, payload, created_at, config_version, compute_run_id)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, NOW(), $7, $8)
	`, up.UserID, string(up.Reason), oldComposite, up.Result.Composite, delta,
		payload, up.Version, up.ComputeRunID)
	if err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// AGGREGATION WRITE
// ─────────────────────────────────────────────────────────────────────────────

// SaveRankings rewrites rank positions and percentiles, replaces the
// histogram and stores the global stats row in one transaction.
func (r *RankingRepository) SaveRankings(ctx context.Context, records []ranking.Record, histogram []ranking.HistogramBucket, stats ranking.GlobalStats) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if len(records) > 0 {
			batch := &pgx.Batch{}
			for _, rec := range records {
				batch.Queue(`
					UPDATE student_rankings SET rank = $2, percentile = $3 WHERE user_id = $1
				`, rec.UserID, rec.RankPosition, rec.Percentile)
			}

			br := tx.SendBatch(ctx, batch)
			for range records {
				if _, err := br.Exec(); err != nil {
					br.Close()
					return fmt.Errorf("failed to update rank: %w", err)
				}
			}
			// The batch must be closed before the connection is reused below.
			if err := br.Close(); err != nil {
				return fmt.Errorf("failed to flush rank batch: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `TRUNCATE score_histogram`); err != nil {
			return fmt.Errorf("failed to truncate histogram: %w", err)
		}
		for _, b := range histogram {
			if _, err := tx.Exec(ctx, `
				INSERT INTO score_histogram (bucket_id, count) VALUES ($1, $2)
			`, b.Bucket, b.Count); err != nil {
				return fmt.Errorf("failed to insert histogram bucket %d: %w", b.Bucket, err)
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO global_ranking_stats (id, total_users, mean_composite, p50, p90, p99, updated_at, config_version)
			VALUES (1, $1, $2, $3, $4, $5, NOW(), $6)
			ON CONFLICT (id) DO UPDATE SET
			    total_users = EXCLUDED.total_users,
			    mean_composite = EXCLUDED.mean_composite,
			    p50 = EXCLUDED.p50,
			    p90 = EXCLUDED.p90,
			    p99 = EXCLUDED.p99,
			    updated_at = EXCLUDED.updated_at,
			    config_version = EXCLUDED.config_version
		`, stats.TotalStudents, stats.MeanComposite, stats.P50, stats.P90, stats.P99, stats.ConfigVersion)
		if err != nil {
			return fmt.Errorf("failed to write global stats: %w", err)
		}
		return nil
	})
}

// MarkVerified flips the verification flag on an existing ranking row.
func (r *RankingRepository) MarkVerified(ctx context.Context, userID string) error {
	_, err := r.conn.Exec(ctx, `
		UPDATE student_rankings SET is_verified = TRUE WHERE user_id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark verified: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SCANNING
// ─────────────────────────────────────────────────────────────────────────────

func scanRecord(row pgx.Row) (ranking.Record, error) {
	var (
		rec        ranking.Record
		rank       *int
		percentile *float64
	)
	err := row.Scan(
		&rec.UserID,
		&rec.CompositeScore,
		&rec.AcademicScore,
		&rec.ExperienceScore,
		&rank,
		&percentile,
		&rec.IsVerified,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.ConfigVersion,
		&rec.ComputeRunID,
		&rec.ScoreChecksum,
	)
	if IsNoRows(err) {
		return ranking.Record{}, ranking.ErrNotFound
	}
	if err != nil {
		return ranking.Record{}, fmt.Errorf("failed to scan ranking row: %w", err)
	}
	if rank != nil {
		rec.RankPosition = *rank
	}
	if percentile != nil {
		rec.Percentile = *percentile
	}
	return rec, nil
}
