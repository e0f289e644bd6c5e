package usecase

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosspost/domain/model"
	"crosspost/infrastructure/clients/social"
	"crosspost/infrastructure/configuration"
)

func TestEnsureFreshLiveTokenPassesThrough(t *testing.T) {
	creds := newFakeCreds()
	manager := NewTokenManager(creds, social.NewClient(http.DefaultClient), configuration.Platforms{}, "")

	exp := time.Now().Add(time.Hour)
	cred := &model.Credential{ID: 1, Platform: model.PlatformTikTok, AccessToken: "live", ExpiresAt: &exp}
	out, err := manager.EnsureFresh(context.Background(), cred)
	require.NoError(t, err)
	assert.Same(t, cred, out)
	assert.Zero(t, creds.rotateCalls)
}

func TestEnsureFreshSentinelSkipsRefresh(t *testing.T) {
	creds := newFakeCreds()
	manager := NewTokenManager(creds, social.NewClient(http.DefaultClient), configuration.Platforms{}, "")

	exp := time.Now().Add(-time.Hour) // expired, but simulated
	cred := &model.Credential{ID: 1, Platform: model.PlatformTikTok, AccessToken: model.SentinelAccessToken, ExpiresAt: &exp}
	out, err := manager.EnsureFresh(context.Background(), cred)
	require.NoError(t, err)
	assert.Same(t, cred, out)
}

func TestEnsureFreshConfiguredSentinelSkipsRefresh(t *testing.T) {
	creds := newFakeCreds()
	manager := NewTokenManager(creds, social.NewClient(http.DefaultClient), configuration.Platforms{}, "qa-sandbox-token")

	exp := time.Now().Add(-time.Hour)
	cred := &model.Credential{ID: 1, Platform: model.PlatformTikTok, AccessToken: "qa-sandbox-token", ExpiresAt: &exp}
	out, err := manager.EnsureFresh(context.Background(), cred)
	require.NoError(t, err)
	assert.Same(t, cred, out, "the overridden sentinel is honored, not just the default")
	assert.Zero(t, creds.rotateCalls)
}

func TestEnsureFreshExpiredWithoutRefreshTokenFailsFast(t *testing.T) {
	creds := newFakeCreds()
	manager := NewTokenManager(creds, social.NewClient(http.DefaultClient), configuration.Platforms{}, "")

	exp := time.Now().Add(-time.Hour)
	cred := &model.Credential{ID: 1, Platform: model.PlatformTikTok, AccessToken: "stale", ExpiresAt: &exp}
	_, err := manager.EnsureFresh(context.Background(), cred)
	pe, ok := model.AsPublishError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrClassAuthExpired, pe.Class)
	assert.Zero(t, creds.rotateCalls, "no rotation without a successful exchange")
}

func TestEnsureFreshRefreshesAndRotates(t *testing.T) {
	var grantType, refreshToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		grantType = r.Form.Get("grant_type")
		refreshToken = r.Form.Get("refresh_token")
		fmt.Fprint(w, `{"access_token":"fresh-tok","refresh_token":"next-refresh","expires_in":3600}`)
	}))
	defer server.Close()

	creds := newFakeCreds()
	platforms := configuration.Platforms{TikTok: configuration.PlatformClient{TokenURL: server.URL}}
	manager := NewTokenManager(creds, social.NewClient(server.Client()), platforms, "")

	exp := time.Now().Add(-time.Hour)
	cred := &model.Credential{ID: 7, Platform: model.PlatformTikTok, AccessToken: "stale", RefreshToken: "old-refresh", ExpiresAt: &exp}
	out, err := manager.EnsureFresh(context.Background(), cred)
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", grantType)
	assert.Equal(t, "old-refresh", refreshToken)
	assert.Equal(t, "fresh-tok", out.AccessToken)
	assert.Equal(t, "next-refresh", out.RefreshToken)
	require.NotNil(t, out.ExpiresAt)
	assert.True(t, out.ExpiresAt.After(time.Now()))
	assert.Equal(t, 1, creds.rotateCalls)
	assert.Equal(t, "fresh-tok", creds.rotatedToken)
}

func TestEnsureFreshKeepsOldRefreshTokenWhenOmitted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"fresh-tok","expires_in":3600}`)
	}))
	defer server.Close()

	creds := newFakeCreds()
	platforms := configuration.Platforms{TikTok: configuration.PlatformClient{TokenURL: server.URL}}
	manager := NewTokenManager(creds, social.NewClient(server.Client()), platforms, "")

	exp := time.Now().Add(-time.Hour)
	cred := &model.Credential{ID: 7, Platform: model.PlatformTikTok, AccessToken: "stale", RefreshToken: "old-refresh", ExpiresAt: &exp}
	out, err := manager.EnsureFresh(context.Background(), cred)
	require.NoError(t, err)
	assert.Equal(t, "old-refresh", out.RefreshToken, "platforms that do not rotate refresh tokens keep the stored one")
}

func TestEnsureFreshLostRotationRaceReloads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"loser-tok","expires_in":3600}`)
	}))
	defer server.Close()

	winner := &model.Credential{ID: 7, Platform: model.PlatformTikTok, AccessToken: "winner-tok", RefreshToken: "winner-refresh"}
	creds := newFakeCreds(winner)
	creds.rotateResult = false
	platforms := configuration.Platforms{TikTok: configuration.PlatformClient{TokenURL: server.URL}}
	manager := NewTokenManager(creds, social.NewClient(server.Client()), platforms, "")

	exp := time.Now().Add(-time.Hour)
	stale := &model.Credential{ID: 7, Platform: model.PlatformTikTok, AccessToken: "stale", RefreshToken: "old-refresh", ExpiresAt: &exp}
	out, err := manager.EnsureFresh(context.Background(), stale)
	require.NoError(t, err)
	assert.Equal(t, "winner-tok", out.AccessToken, "losing the rotation race adopts the winner's credential")
}

func TestEnsureFreshRejectedGrantIsAuthExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	creds := newFakeCreds()
	platforms := configuration.Platforms{TikTok: configuration.PlatformClient{TokenURL: server.URL}}
	manager := NewTokenManager(creds, social.NewClient(server.Client()), platforms, "")

	exp := time.Now().Add(-time.Hour)
	cred := &model.Credential{ID: 7, Platform: model.PlatformTikTok, AccessToken: "stale", RefreshToken: "revoked", ExpiresAt: &exp}
	_, err := manager.EnsureFresh(context.Background(), cred)
	pe, ok := model.AsPublishError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrClassAuthExpired, pe.Class)
	assert.Zero(t, creds.rotateCalls)
}
