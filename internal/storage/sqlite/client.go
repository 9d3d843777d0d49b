package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/research-agent/backend/internal/storage/models"
	"github.com/research-agent/backend/pkg/logger"
)

var ErrNotFound = errors.New("evaluation record not found")

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var scoreBuckets = []string{"0-20", "20-40", "40-60", "60-80", "80-100"}

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	_, err = db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS evaluation_records (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		passed INTEGER NOT NULL,
		overall_score REAL NOT NULL,
		plan_status TEXT,
		plan_score REAL,
		plan_json TEXT,
		retrieval_status TEXT,
		retrieval_score REAL,
		retrieval_json TEXT,
		answer_status TEXT,
		answer_score REAL,
		answer_json TEXT,
		confidence_status TEXT,
		confidence_score REAL,
		confidence_json TEXT,
		duration_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_created ON evaluation_records(created_at);
	CREATE INDEX IF NOT EXISTS idx_records_passed ON evaluation_records(passed);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// phaseColumns returns the status, score and JSON column values for one
// phase. An absent phase is stored as NULLs.
func phaseColumns(p *models.PhaseRecord) (any, any, any, error) {
	if p == nil {
		return nil, nil, nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, nil, nil, err
	}
	return p.Status(), p.Score, string(data), nil
}

func (c *Client) Save(ctx context.Context, record *models.EvaluationRecord) error {
	args := []any{record.ID, record.Query, boolToInt(record.Passed), record.OverallScore}
	for _, p := range []*models.PhaseRecord{record.Plan, record.Retrieval, record.Answer, record.Confidence} {
		status, score, data, err := phaseColumns(p)
		if err != nil {
			return fmt.Errorf("failed to marshal phase record: %w", err)
		}
		args = append(args, status, score, data)
	}
	args = append(args, record.DurationMS, record.CreatedAt.UnixMilli())

	query := `
		INSERT INTO evaluation_records (id, query, passed, overall_score,
			plan_status, plan_score, plan_json,
			retrieval_status, retrieval_score, retrieval_json,
			answer_status, answer_score, answer_json,
			confidence_status, confidence_score, confidence_json,
			duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation record: %w", err)
	}

	logger.Debug("Evaluation record inserted",
		zap.String("record_id", record.ID),
		zap.Bool("passed", record.Passed),
		zap.Float64("overall_score", record.OverallScore),
	)
	return nil
}

const recordColumns = `id, query, passed, overall_score, plan_json, retrieval_json, answer_json, confidence_json, duration_ms, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.EvaluationRecord, error) {
	var r models.EvaluationRecord
	var passed int
	var planJSON, retrievalJSON, answerJSON, confidenceJSON sql.NullString
	var durationMS sql.NullInt64
	var createdAt int64

	err := row.Scan(&r.ID, &r.Query, &passed, &r.OverallScore,
		&planJSON, &retrievalJSON, &answerJSON, &confidenceJSON,
		&durationMS, &createdAt)
	if err != nil {
		return nil, err
	}

	r.Passed = passed != 0
	r.DurationMS = durationMS.Int64
	r.CreatedAt = time.UnixMilli(createdAt)

	targets := []struct {
		raw sql.NullString
		dst **models.PhaseRecord
	}{
		{planJSON, &r.Plan},
		{retrievalJSON, &r.Retrieval},
		{answerJSON, &r.Answer},
		{confidenceJSON, &r.Confidence},
	}
	for _, t := range targets {
		if !t.raw.Valid {
			continue
		}
		var p models.PhaseRecord
		if err := json.Unmarshal([]byte(t.raw.String), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal phase record: %w", err)
		}
		*t.dst = &p
	}

	return &r, nil
}

func (c *Client) Get(ctx context.Context, id string) (*models.EvaluationRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM evaluation_records WHERE id = ?`

	record, err := scanRecord(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation record: %w", err)
	}
	return record, nil
}

// Find returns one page of records, newest first. page is 1-based; limit is
// clamped to [1, 100] with 20 as the default.
func (c *Client) Find(ctx context.Context, filter models.RecordFilter, page, limit int) (*models.RecordPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	var conditions []string
	var args []any
	if filter.Passed != nil {
		conditions = append(conditions, "passed = ?")
		args = append(args, boolToInt(*filter.Passed))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		conditions = append(conditions, "query LIKE ?")
		args = append(args, "%"+q+"%")
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evaluation_records`+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count evaluation records: %w", err)
	}

	query := `SELECT ` + recordColumns + ` FROM evaluation_records` + where +
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	rows, err := c.db.QueryContext(ctx, query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to find evaluation records: %w", err)
	}
	defer rows.Close()

	records := []models.EvaluationRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evaluation records: %w", err)
	}

	return &models.RecordPage{
		Records:    records,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{
		PhaseBreakdown:    make([]models.PhaseStats, 0, 3),
		ScoreDistribution: make([]models.ScoreBucket, len(scoreBuckets)),
	}

	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(passed), 0), COALESCE(AVG(overall_score), 0)
		FROM evaluation_records
	`).Scan(&stats.TotalRecords, &stats.PassedCount, &stats.AverageScores.Overall)
	if err != nil {
		return nil, fmt.Errorf("failed to get record totals: %w", err)
	}
	stats.FailedCount = stats.TotalRecords - stats.PassedCount
	if stats.TotalRecords > 0 {
		stats.PassRate = float64(stats.PassedCount) / float64(stats.TotalRecords)
	}

	averages := map[string]*float64{
		models.PhasePlan:      &stats.AverageScores.Plan,
		models.PhaseRetrieval: &stats.AverageScores.Retrieval,
		models.PhaseAnswer:    &stats.AverageScores.Answer,
	}
	for _, phase := range []string{models.PhasePlan, models.PhaseRetrieval, models.PhaseAnswer} {
		ps, avg, err := c.phaseStats(ctx, phase)
		if err != nil {
			return nil, err
		}
		stats.PhaseBreakdown = append(stats.PhaseBreakdown, ps)
		*averages[phase] = avg
	}

	for i, label := range scoreBuckets {
		stats.ScoreDistribution[i] = models.ScoreBucket{Range: label}
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT MIN(CAST(overall_score * 5 AS INTEGER), 4) AS bucket, COUNT(*)
		FROM evaluation_records
		GROUP BY bucket
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get score distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bucket, count int
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if bucket < 0 {
			bucket = 0
		}
		stats.ScoreDistribution[bucket].Count += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate score distribution: %w", err)
	}

	return stats, nil
}

// phaseStats counts outcomes for one phase column set. Skipped evaluations
// are excluded from the pass rate and the average score.
func (c *Client) phaseStats(ctx context.Context, phase string) (models.PhaseStats, float64, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(%[1]s_status),
			COALESCE(SUM(CASE WHEN %[1]s_status = 'passed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN %[1]s_status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN %[1]s_status = 'skipped' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN %[1]s_status != 'skipped' THEN %[1]s_score END), 0)
		FROM evaluation_records
	`, phase)

	ps := models.PhaseStats{Phase: phase}
	var avg float64
	err := c.db.QueryRowContext(ctx, query).Scan(&ps.Total, &ps.Passed, &ps.Failed, &ps.Skipped, &avg)
	if err != nil {
		return ps, 0, fmt.Errorf("failed to get %s stats: %w", phase, err)
	}
	if evaluated := ps.Passed + ps.Failed; evaluated > 0 {
		ps.PassRate = float64(ps.Passed) / float64(evaluated)
	}
	return ps, avg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
