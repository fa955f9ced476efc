package attempt

import (
	"context"
	"errors"
)

var (
	ErrStudentTestNotFound = errors.New("student test not found")
	ErrTestNotFound        = errors.New("test not found")
)

type Store interface {
	GetStudentTest(ctx context.Context, id string) (StudentTest, error)
	SetResultURL(ctx context.Context, id, url string) error

	GetTest(ctx context.Context, testID string) (TestRecord, error)

	// GetAnalytics returns ok=false when the user has no snapshot row yet.
	GetAnalytics(ctx context.Context, userID string) (snap AnalyticsSnapshot, ok bool, err error)
	UpsertAnalytics(ctx context.Context, snap AnalyticsSnapshot) error
	SetHistoryURL(ctx context.Context, userID, url string) error

	UpdateUserTier(ctx context.Context, userID, tier string) error
	RecordOrder(ctx context.Context, order Order) error
	MarkOrderPaid(ctx context.Context, orderID string) error
}

// Order is a created payment order awaiting capture.
type Order struct {
	ID       string
	UserID   string
	PlanType string
	Amount   int64
}
