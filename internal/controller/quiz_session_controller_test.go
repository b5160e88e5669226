package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/middleware"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/internal/service"
	"quiz_engine_backend/internal/testutil"
	"quiz_engine_backend/internal/util"
	"quiz_engine_backend/pkg/lock"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "controller-test-secret-0123456789abcdef"

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Warning string          `json:"warning"`
}

type testServer struct {
	router    *gin.Engine
	questions []model.Question
}

func newTestServer(t *testing.T, questionCount int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	cat := testutil.SeedCategory(t, db, "Biology", model.CategoryKindAP)
	qs := testutil.SeedQuestions(t, db, cat.ID, questionCount)

	sessionRepo := repository.NewQuizSessionRepository(db)
	attemptRepo := repository.NewQuizAttemptRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	svc := service.NewQuizSessionService(
		db, sessionRepo, attemptRepo, questionRepo, questionRepo,
		service.NewQuestionSelector(questionRepo, attemptRepo, questionRepo),
		service.NewAttemptRecorder(attemptRepo),
		lock.NewMemoryLocker(),
		nil,
		service.QuizSettings{SecondsPerQuestion: 60, DefaultQuestionCount: 10, MaxQuestionCount: 50, TimeoutScoring: config.TimeoutScoringAttempted},
		nil,
	)
	c := NewQuizSessionController(svc)

	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}
	router := gin.New()
	sessions := router.Group("/api/quiz/sessions", middleware.AuthMiddleware(cfg))
	sessions.POST("", c.CreateSession)
	sessions.GET("/:id", c.GetSession)
	sessions.POST("/:id/attempts", c.SubmitAttempt)
	sessions.POST("/:id/pause", c.PauseSession)
	sessions.GET("/:id/result", c.GetResult)

	return &testServer{router: router, questions: qs}
}

func token(t *testing.T, userID uint) string {
	t.Helper()
	tok, err := util.GenerateJWT(userID, model.Student, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, tok string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func (s *testServer) createSession(t *testing.T, tok string, body map[string]any) string {
	t.Helper()
	w, resp := s.do(t, http.MethodPost, "/api/quiz/sessions", tok, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	return created.Session.ID
}

func TestQuizSessionController_Flow(t *testing.T) {
	srv := newTestServer(t, 2)
	tok := token(t, 11)

	sessionID := srv.createSession(t, tok, map[string]any{"mode": "practice", "timing": "untimed", "questionCount": 2})
	require.NotEmpty(t, sessionID)
	attemptsPath := fmt.Sprintf("/api/quiz/sessions/%s/attempts", sessionID)

	q := srv.questions[0]
	w, resp := srv.do(t, http.MethodPost, attemptsPath, tok, map[string]any{
		"questionId": q.ID, "selectedAnswerId": testutil.CorrectOption(q), "timeSpent": 12,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result model.AttemptResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.True(t, result.IsCorrect)
	assert.Equal(t, 100, result.SessionScore)
	assert.Equal(t, 1, result.QuestionNumber)
	assert.Equal(t, 2, result.TotalQuestions)

	t.Run("duplicate answer", func(t *testing.T) {
		w, _ := srv.do(t, http.MethodPost, attemptsPath, tok, map[string]any{
			"questionId": q.ID, "selectedAnswerId": testutil.WrongOption(q),
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("other user", func(t *testing.T) {
		w, _ := srv.do(t, http.MethodGet, "/api/quiz/sessions/"+sessionID, token(t, 12), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		w, _ := srv.do(t, http.MethodGet, "/api/quiz/sessions/"+sessionID, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		w, _ := srv.do(t, http.MethodGet, "/api/quiz/sessions/"+sessionID, "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		w, _ := srv.do(t, http.MethodGet, "/api/quiz/sessions/does-not-exist", tok, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		w, _ := srv.do(t, http.MethodPost, attemptsPath, tok, map[string]any{"questionId": q.ID})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("pause twice", func(t *testing.T) {
		w, _ := srv.do(t, http.MethodPost, "/api/quiz/sessions/"+sessionID+"/pause", tok, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w, _ = srv.do(t, http.MethodPost, "/api/quiz/sessions/"+sessionID+"/pause", tok, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("result", func(t *testing.T) {
		w, resp := srv.do(t, http.MethodGet, "/api/quiz/sessions/"+sessionID+"/result", tok, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var res model.SessionResult
		require.NoError(t, json.Unmarshal(resp.Data, &res))
		assert.Equal(t, 1, res.Attempted)
		assert.Len(t, res.Questions, 2)
	})
}

func TestQuizSessionController_CreatePartial(t *testing.T) {
	srv := newTestServer(t, 2)
	tok := token(t, 21)

	w, resp := srv.do(t, http.MethodPost, "/api/quiz/sessions", tok, map[string]any{
		"mode": "tutor", "timing": "timed", "questionCount": 5,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, resp.Message, "requested 5")

	w, resp = srv.do(t, http.MethodPost, "/api/quiz/sessions", tok, map[string]any{
		"mode": "tutor", "timing": "timed", "questionCount": 5, "allowPartial": true,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, resp.Warning)

	w, _ = srv.do(t, http.MethodPost, "/api/quiz/sessions", tok, map[string]any{"mode": "exam", "timing": "timed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
