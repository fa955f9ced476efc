package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pinco2025/prepAIred-backend/internal/attempt"
	auth "github.com/pinco2025/prepAIred-backend/internal/auth/middleware"
	"github.com/pinco2025/prepAIred-backend/internal/contentstore"
	"github.com/pinco2025/prepAIred-backend/internal/logger"
	"github.com/pinco2025/prepAIred-backend/internal/scoring"
)

func resultPath(studentTestID string) string {
	return "score_results_" + studentTestID + ".json"
}

// CalculateScoreHandler grades one submitted attempt: it fetches the
// test definition, runs the scoring engine, persists the result
// document and records its URL on the attempt row.
func CalculateScoreHandler(store attempt.Store, src *scoring.Source, docs contentstore.Store, topics scoring.TopicMap, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "studentTestID")

		st, err := store.GetStudentTest(ctx, id)
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

		rec, err := store.GetTest(ctx, st.TestID)
		if errors.Is(err, attempt.ErrTestNotFound) {
			http.Error(w, "test not found", 404)
			return
		} else if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		def, err := src.FetchDefinition(ctx, rec.URL)
		if err != nil {
			log.Error("test definition fetch failed", "test_id", st.TestID, "error", err)
			http.Error(w, "test definition unavailable", http.StatusBadGateway)
			return
		}

		res := scoring.CalculateScore(def, st.Answers, topics)
		content, err := json.MarshalIndent(res, "", "    ")
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		path := resultPath(id)
		cur, _, err := docs.Read(ctx, path)
		if err != nil {
			log.Error("result document read failed", "path", path, "error", err)
			http.Error(w, "result store unavailable", http.StatusBadGateway)
			return
		}
		doc, err := docs.Write(ctx, path, content, cur.Rev)
		if err != nil {
			log.Error("result document write failed", "path", path, "error", err)
			http.Error(w, "result store unavailable", http.StatusBadGateway)
			return
		}
		if err := store.SetResultURL(ctx, id, doc.DownloadURL); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		log.Info("attempt scored", "attempt_id", id, "user_id", st.UserID,
			"score", res.TotalStats.TotalScore)
		_ = json.NewEncoder(w).Encode(struct {
			ResultURL string              `json:"result_url"`
			Result    scoring.ScoreResult `json:"result"`
		}{doc.DownloadURL, res})
	}
}
