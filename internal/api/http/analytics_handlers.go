package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pinco2025/prepAIred-backend/internal/analytics"
	"github.com/pinco2025/prepAIred-backend/internal/attempt"
	auth "github.com/pinco2025/prepAIred-backend/internal/auth/middleware"
)

// ProcessAttemptHandler folds one scored attempt into the caller's
// analytics. The attempt must already have a result document; callers
// retrying after partial failures get the remaining steps re-applied.
func ProcessAttemptHandler(store attempt.Store, svc *analytics.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req struct {
			TestAttemptID string `json:"test_attempt_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.TestAttemptID == "" {
			http.Error(w, "test_attempt_id required", 400)
			return
		}

		st, err := store.GetStudentTest(ctx, req.TestAttemptID)
		if errors.Is(err, attempt.ErrStudentTestNotFound) {
			http.Error(w, "attempt not found", 404)
			return
		} else if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if sub := auth.SubjectFromContext(ctx); sub != "" && sub != st.UserID {
			http.Error(w, "forbidden", 403)
			return
		}

		out, err := svc.ProcessAttempt(ctx, req.TestAttemptID)
		if err != nil {
			http.Error(w, err.Error(), 422)
			return
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
