package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/config"
	"github.com/zhouzirui/haven/backend/internal/middleware"
	"github.com/zhouzirui/haven/backend/internal/model/companion"
	"github.com/zhouzirui/haven/backend/internal/model/user"
	aiservice "github.com/zhouzirui/haven/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/haven/backend/internal/service/chat"
	emotionservice "github.com/zhouzirui/haven/backend/internal/service/emotion"
	"github.com/zhouzirui/haven/backend/internal/service/speech"
	voiceservice "github.com/zhouzirui/haven/backend/internal/service/voice"
	"github.com/zhouzirui/haven/backend/internal/store"
	"github.com/zhouzirui/haven/backend/internal/testutil"
)

type fakeTranscriber struct {
	text string
}

func (f fakeTranscriber) Transcribe(context.Context, speech.Request) (speech.Transcript, error) {
	return speech.Transcript{Text: f.text}, nil
}

type fixture struct {
	router *chi.Mux
	chat   *chatservice.Service
	users  *store.UserRepository
	userID string
}

func newFixture(t *testing.T, transcript string) fixture {
	t.Helper()
	var transcriber speech.Transcriber
	if transcript != "" {
		transcriber = fakeTranscriber{text: transcript}
	}
	return newFixtureWith(t, transcriber)
}

func newFixtureWith(t *testing.T, transcriber speech.Transcriber) fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t)
	logger := zap.NewNop()

	emotionSvc, err := emotionservice.NewService(ctx, nil, emotionservice.Config{}, logger, nil)
	if err != nil {
		t.Fatalf("emotion service: %v", err)
	}
	aiSvc, err := aiservice.NewService(ctx, testutil.NewFakeChatModel("Let's slow down together."), config.AIConfig{StreamResponse: true}, logger, nil)
	if err != nil {
		t.Fatalf("ai service: %v", err)
	}

	users := store.NewUserRepository(db)
	u := user.User{ID: uuid.NewString(), Email: "voice@example.com", PasswordHash: "x"}
	settings := user.DefaultSettings(u.ID, companion.DefaultID)
	if err := users.CreateWithSettings(ctx, &u, &settings); err != nil {
		t.Fatalf("create user: %v", err)
	}

	voiceLogs := store.NewVoiceRepository(db)
	chatSvc := chatservice.NewService(chatservice.Dependencies{
		Conversations: store.NewConversationRepository(db),
		Users:         users,
		Voice:         voiceLogs,
		Companions:    companion.DefaultCatalog(),
		Emotion:       emotionSvc,
		AI:            aiSvc,
		Logger:        logger,
	})

	voiceSvc := voiceservice.NewService(voiceservice.Dependencies{
		Logs:    voiceLogs,
		Users:   users,
		Speech:  speech.NewService(transcriber, "en", logger, nil),
		Emotion: emotionSvc,
		Logger:  logger,
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id := req.Header.Get("X-Test-User"); id != "" {
				req = req.WithContext(middleware.WithUserID(req.Context(), id))
			}
			next.ServeHTTP(w, req)
		})
	})
	New(voiceSvc, logger).RegisterRoutes(r)
	NewLiveHandler(voiceSvc, chatSvc, []string{"*"}, logger).RegisterRoutes(r)
	return fixture{router: r, chat: chatSvc, users: users, userID: u.ID}
}

func voicedClip(seconds float64) []byte {
	rate := 16000
	samples := make([]float64, int(seconds*float64(rate)))
	for i := range samples {
		env := 0.25 + 0.15*math.Sin(2*math.Pi*3*float64(i)/float64(rate))
		samples[i] = env * math.Sin(2*math.Pi*180*float64(i)/float64(rate))
	}
	return testutil.EncodeWAV(samples, rate)
}

func (f fixture) upload(t *testing.T, userID string, audio []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", "clip.wav")
	if err != nil {
		t.Fatalf("CreateFormFile err: %v", err)
	}
	if _, err := part.Write(audio); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := writer.WriteField("language", "en"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/voice/analyze", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Test-User", userID)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func (f fixture) get(userID, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Test-User", userID)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func TestAnalyzeUpload(t *testing.T) {
	f := newFixture(t, "I am worried and nervous about the exam")

	resp := f.upload(t, f.userID, voicedClip(1.5))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var result struct {
		ID         string   `json:"id"`
		Label      string   `json:"label"`
		Sources    []string `json:"sources"`
		Transcript string   `json:"transcript"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.ID == "" || result.Label == "" || len(result.Sources) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if resp := f.get(f.userID, "/voice/"+result.ID); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for own log, got %d", resp.Code)
	}
	if resp := f.get("someone-else", "/voice/"+result.ID); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user, got %d", resp.Code)
	}

	resp = f.get(f.userID, "/voice/history?limit=5")
	var history []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
}

func TestAnalyzeUploadErrors(t *testing.T) {
	f := newFixture(t, "")

	if resp := f.upload(t, f.userID, []byte("not a wav")); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid audio, got %d", resp.Code)
	}

	silent := testutil.EncodeWAV(make([]float64, 16000), 16000)
	if resp := f.upload(t, f.userID, silent); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for silent audio, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/voice/analyze", bytes.NewBufferString("plain"))
	req.Header.Set("X-Test-User", f.userID)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without multipart body, got %d", resp.Code)
	}

	ctx := context.Background()
	settings, err := f.users.GetSettings(ctx, f.userID)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	settings.VoiceAnalysisEnabled = false
	if err := f.users.SaveSettings(ctx, &settings); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if resp := f.upload(t, f.userID, voicedClip(1)); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when disabled, got %d", resp.Code)
	}
}
