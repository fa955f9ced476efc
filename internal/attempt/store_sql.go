package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// snapshotColumns are the legacy user_analytics columns the first three
// subject groups map onto, in group order.
var snapshotColumns = [3]string{"phy_avg", "chem_avg", "math_avg"}

type SQLStore struct {
	db       *sql.DB
	driver   string // "sqlite" or "postgres"
	subjects []string
}

// NewSQLStore binds the row store to a database handle. subjects is the
// ordered list of subject group names; at most three are persisted, one
// per legacy column.
func NewSQLStore(db *sql.DB, driver string, subjects []string) *SQLStore {
	if len(subjects) > len(snapshotColumns) {
		subjects = subjects[:len(snapshotColumns)]
	}
	return &SQLStore{db: db, driver: driver, subjects: subjects}
}

func (s *SQLStore) GetStudentTest(ctx context.Context, id string) (StudentTest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, test_id, answers_json, result_url FROM student_tests WHERE id=$1`, id)
	var st StudentTest
	var answers string
	if err := row.Scan(&st.ID, &st.UserID, &st.TestID, &answers, &st.ResultURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StudentTest{}, ErrStudentTestNotFound
		}
		return StudentTest{}, err
	}
	if err := json.Unmarshal([]byte(answers), &st.Answers); err != nil {
		st.Answers = map[string]any{}
	}
	return st, nil
}

func (s *SQLStore) SetResultURL(ctx context.Context, id, url string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE student_tests SET result_url=$1 WHERE id=$2`, url, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStudentTestNotFound
	}
	return nil
}

func (s *SQLStore) GetTest(ctx context.Context, testID string) (TestRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT test_id, name, url FROM tests WHERE test_id=$1`, testID)
	var tr TestRecord
	if err := row.Scan(&tr.TestID, &tr.Name, &tr.URL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TestRecord{}, ErrTestNotFound
		}
		return TestRecord{}, err
	}
	return tr, nil
}

func (s *SQLStore) GetAnalytics(ctx context.Context, userID string) (AnalyticsSnapshot, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT user_id, attempt_no, phy_avg, chem_avg, math_avg,
		accuracy, percentile, history_url FROM user_analytics WHERE user_id=$1`, userID)
	var snap AnalyticsSnapshot
	var totals [3]float64
	err := row.Scan(&snap.UserID, &snap.AttemptCount, &totals[0], &totals[1], &totals[2],
		&snap.AccuracySum, &snap.PercentileSum, &snap.HistoryURL)
	if errors.Is(err, sql.ErrNoRows) {
		return AnalyticsSnapshot{}, false, nil
	}
	if err != nil {
		return AnalyticsSnapshot{}, false, err
	}
	snap.SubjectTotals = map[string]float64{}
	for i, name := range s.subjects {
		snap.SubjectTotals[name] = totals[i]
	}
	return snap, true, nil
}

func (s *SQLStore) UpsertAnalytics(ctx context.Context, snap AnalyticsSnapshot) error {
	var totals [3]float64
	for i, name := range s.subjects {
		totals[i] = snap.SubjectTotals[name]
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_analytics
		(user_id, attempt_no, phy_avg, chem_avg, math_avg, accuracy, percentile, history_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (user_id) DO UPDATE SET
			attempt_no=EXCLUDED.attempt_no,
			phy_avg=EXCLUDED.phy_avg,
			chem_avg=EXCLUDED.chem_avg,
			math_avg=EXCLUDED.math_avg,
			accuracy=EXCLUDED.accuracy,
			percentile=EXCLUDED.percentile`,
		snap.UserID, snap.AttemptCount, totals[0], totals[1], totals[2],
		snap.AccuracySum, snap.PercentileSum, snap.HistoryURL)
	return err
}

func (s *SQLStore) SetHistoryURL(ctx context.Context, userID, url string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_analytics SET history_url=$1 WHERE user_id=$2`, url, userID)
	return err
}

func (s *SQLStore) UpdateUserTier(ctx context.Context, userID, tier string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET tier=$1 WHERE id=$2`, tier, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}

func (s *SQLStore) RecordOrder(ctx context.Context, o Order) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO payment_orders
		(id, user_id, plan_type, amount, status, created_at)
		VALUES ($1,$2,$3,$4,'created',$5)`,
		o.ID, o.UserID, o.PlanType, o.Amount, time.Now().Unix())
	return err
}

func (s *SQLStore) MarkOrderPaid(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payment_orders SET status='paid' WHERE id=$1`, orderID)
	return err
}
