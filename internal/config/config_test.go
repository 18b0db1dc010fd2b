package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CLOUD_RUNTIME_CONFIG", `{"attendance":{"teacher_emails":" A@School.org , b@school.org,,","pin_salt":"pepper"}}`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, 180, cfg.DefaultWindowMinutes)
	assert.Equal(t, 10*time.Second, cfg.SheetTimeout)
	assert.Equal(t, []string{"a@school.org", "b@school.org"}, cfg.TeacherEmails)
	assert.Equal(t, "pepper", cfg.PinSalt)
}

func TestLoadRequiresPinSalt(t *testing.T) {
	t.Setenv("CLOUD_RUNTIME_CONFIG", `{"attendance":{"teacher_emails":"a@school.org"}}`)

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingPinSalt)
}

func TestLoadRejectsMalformedRuntimeConfig(t *testing.T) {
	t.Setenv("CLOUD_RUNTIME_CONFIG", `{"attendance":`)

	_, err := Load()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingPinSalt)
}

func TestSplitEmails(t *testing.T) {
	assert.Nil(t, SplitEmails(""))
	assert.Equal(t, []string{"x@y.z"}, SplitEmails(" X@Y.Z "))
}

func TestLoadRejectsDevSigningKeyInProd(t *testing.T) {
	t.Setenv("CLOUD_RUNTIME_CONFIG", `{"attendance":{"pin_salt":"pepper"}}`)
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_MODE", "jwt")

	_, err := Load()
	assert.ErrorIs(t, err, ErrDevSigningKey)

	t.Setenv("JWT_SIGNING_KEY", " ")
	_, err = Load()
	assert.ErrorIs(t, err, ErrDevSigningKey)

	t.Setenv("JWT_SIGNING_KEY", "a-real-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "a-real-secret", cfg.JWTSigningKey)

	t.Setenv("JWT_SIGNING_KEY", "")
	t.Setenv("APP_ENV", "dev")
	_, err = Load()
	assert.NoError(t, err)
}

func TestLoadTrustedProxies(t *testing.T) {
	t.Setenv("CLOUD_RUNTIME_CONFIG", `{"attendance":{"pin_salt":"pepper"}}`)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.168.1.1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.TrustedProxies)
}
