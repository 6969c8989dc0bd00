package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/haven/backend/internal/config"
	"github.com/zhouzirui/haven/backend/internal/model/companion"
	"github.com/zhouzirui/haven/backend/internal/model/user"
	"github.com/zhouzirui/haven/backend/internal/store"
	"github.com/zhouzirui/haven/backend/internal/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(
		store.NewUserRepository(testutil.NewDB(t)),
		companion.DefaultCatalog(),
		config.AuthConfig{JWTSecret: "0123456789abcdef0123", Issuer: "haven", TokenTTL: time.Hour},
		zap.NewNop(),
	)
	svc.cost = bcrypt.MinCost
	return svc
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	sess, err := svc.Register(ctx, "  Mia@Example.com ", "long-enough", "")
	require.NoError(t, err)
	assert.Equal(t, "mia@example.com", sess.User.Email)
	assert.Equal(t, "mia", sess.User.DisplayName)

	userID, err := svc.ParseToken(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, userID)

	settings, err := svc.Settings(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, companion.DefaultID, settings.CompanionID)
	assert.True(t, settings.VoiceAnalysisEnabled)

	_, err = svc.Register(ctx, "MIA@example.com", "another-password", "Mia")
	assert.ErrorIs(t, err, ErrEmailTaken)

	login, err := svc.Login(ctx, "mia@example.com", "long-enough")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "mia@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "long-enough")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Register(context.Background(), "no-at-sign", "long-enough", "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Register(context.Background(), "a@b.c", "short", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseTokenRejects(t *testing.T) {
	svc := newTestService(t)
	sess, err := svc.Register(context.Background(), "kai@example.com", "long-enough", "Kai")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { svc.now = time.Now }()
		_, err := svc.ParseToken(sess.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := newTestService(t)
		other.secret = []byte("another-secret-0123456789")
		_, err := other.ParseToken(sess.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := newTestService(t)
		other.issuer = "someone-else"
		_, err := other.ParseToken(sess.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ParseToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestUpdateSettings(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sess, err := svc.Register(ctx, "lee@example.com", "long-enough", "Lee")
	require.NoError(t, err)
	id := sess.User.ID

	updated, err := svc.UpdateSettings(ctx, id, SettingsUpdate{
		CompanionID:          strPtr("cbt-coach"),
		VoiceAnalysisEnabled: boolPtr(false),
		DailyReminder:        boolPtr(true),
		ReminderTime:         strPtr("07:30"),
		CrisisContactName:    strPtr(" Jo "),
		CrisisContactPhone:   strPtr("555-0199"),
		Theme:                strPtr(user.ThemeDark),
	})
	require.NoError(t, err)
	assert.Equal(t, "cbt-coach", updated.CompanionID)
	assert.False(t, updated.VoiceAnalysisEnabled)
	assert.Equal(t, "Jo", updated.CrisisContactName)

	stored, err := svc.Settings(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "07:30", stored.ReminderTime)
	assert.Equal(t, user.ThemeDark, stored.Theme)

	bad := map[string]SettingsUpdate{
		"theme":     {Theme: strPtr("neon")},
		"time":      {ReminderTime: strPtr("25:00")},
		"companion": {CompanionID: strPtr("pirate")},
		"reminder":  {ReminderTime: strPtr("")},
	}
	for name, upd := range bad {
		_, err := svc.UpdateSettings(ctx, id, upd)
		assert.ErrorIs(t, err, ErrValidation, name)
	}
}

func TestSettingsCreatesDefaultsWhenMissing(t *testing.T) {
	svc := newTestService(t)
	settings, err := svc.Settings(context.Background(), "legacy-user")
	require.NoError(t, err)
	assert.Equal(t, user.ThemeSystem, settings.Theme)
}
