package usecase

import (
	"context"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/clients/social"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/logger"
)

// TokenManager keeps stored credentials usable. EnsureFresh is called once
// per job before the adapter runs: a live token passes through untouched, an
// expired one is exchanged via the platform's refresh grant and the rotation
// is persisted optimistically so concurrent jobs refreshing the same
// credential converge on one winner.
type TokenManager struct {
	creds     repository.ICredential
	http      *social.Client
	youtube   configuration.YouTube
	platforms map[string]configuration.PlatformClient
	sentinel  string
	now       func() time.Time
}

// NewTokenManager takes the same configured sentinel token the simulation
// decorator uses, so simulated credentials skip refresh even when the
// sentinel is overridden in config.
func NewTokenManager(creds repository.ICredential, httpClient *social.Client, cfg configuration.Platforms, sentinel string) *TokenManager {
	if sentinel == "" {
		sentinel = model.SentinelAccessToken
	}
	return &TokenManager{
		creds:    creds,
		http:     httpClient,
		youtube:  cfg.YouTube,
		sentinel: sentinel,
		platforms: map[string]configuration.PlatformClient{
			model.PlatformInstagram: cfg.Instagram,
			model.PlatformTikTok:    cfg.TikTok,
			model.PlatformFacebook:  cfg.Facebook,
			model.PlatformX:         cfg.X,
			model.PlatformSnapchat:  cfg.Snapchat,
			model.PlatformPinterest: cfg.Pinterest,
		},
		now: time.Now,
	}
}

type refreshedToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// EnsureFresh returns a credential whose access token is valid for the
// upcoming call. Expired without a refresh token fails fast as AuthExpired so
// the job surfaces an actionable reconnect message instead of burning its
// retry budget against 401s.
func (m *TokenManager) EnsureFresh(ctx context.Context, cred *model.Credential) (*model.Credential, error) {
	if cred.AccessToken == m.sentinel {
		return cred, nil
	}
	if !cred.Expired(m.now()) {
		return cred, nil
	}
	if cred.RefreshToken == "" {
		return nil, model.NewPublishError(model.ErrClassAuthExpired,
			"access token for %s expired and no refresh token is stored", cred.Platform)
	}

	refreshed, err := m.refresh(ctx, cred)
	if err != nil {
		return nil, err
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = cred.RefreshToken
	}

	rotated, err := m.creds.RotateToken(ctx, cred.ID, refreshed.AccessToken, refreshed.RefreshToken, refreshed.ExpiresAt, cred.ExpiresAt)
	if err != nil {
		return nil, model.NewPublishError(model.ErrClassTransientNetwork, "persisting rotated token: %v", err)
	}
	if !rotated {
		// Another job already rotated this credential; use its result.
		logger.GetLogger().WithField("credential_id", cred.ID).Info("Token rotation lost race - reloading credential")
		current, err := m.creds.GetCredential(ctx, cred.UserID, cred.ChannelID, cred.Platform)
		if err != nil || current == nil {
			return nil, model.NewPublishError(model.ErrClassTransientNetwork, "reloading credential after rotation race: %v", err)
		}
		return current, nil
	}

	out := *cred
	out.AccessToken = refreshed.AccessToken
	out.RefreshToken = refreshed.RefreshToken
	out.ExpiresAt = refreshed.ExpiresAt
	return &out, nil
}

func (m *TokenManager) refresh(ctx context.Context, cred *model.Credential) (*refreshedToken, error) {
	if strings.EqualFold(cred.Platform, model.PlatformYouTube) {
		return m.refreshGoogle(ctx, cred)
	}
	return m.refreshForm(ctx, cred)
}

// refreshGoogle exchanges through the oauth2 package against the Google
// endpoint, the same path the YouTube adapter's transport uses.
func (m *TokenManager) refreshGoogle(ctx context.Context, cred *model.Credential) (*refreshedToken, error) {
	conf := &oauth2.Config{
		ClientID:     m.youtube.ClientID,
		ClientSecret: m.youtube.ClientSecret,
		Endpoint:     google.Endpoint,
	}
	stale := &oauth2.Token{
		RefreshToken: cred.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute), // force the exchange
	}
	token, err := conf.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, model.NewPublishError(model.ErrClassAuthExpired, "google token refresh failed: %v", err)
	}
	out := &refreshedToken{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		out.ExpiresAt = &expiry
	}
	return out, nil
}

// refreshForm runs the standard refresh-token grant against the platform's
// token endpoint.
func (m *TokenManager) refreshForm(ctx context.Context, cred *model.Credential) (*refreshedToken, error) {
	cfg, ok := m.platforms[strings.ToLower(cred.Platform)]
	if !ok || cfg.TokenURL == "" {
		return nil, model.NewPublishError(model.ErrClassAuthExpired, "no token endpoint configured for %s", cred.Platform)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := m.http.PostForm(ctx, cfg.TokenURL, form.Encode(), nil, &resp); err != nil {
		if pe, ok := model.AsPublishError(err); ok && pe.Retryable() {
			return nil, err
		}
		// Any definitive rejection of the grant means the stored refresh
		// token is no longer usable.
		return nil, model.NewPublishError(model.ErrClassAuthExpired, "refresh grant for %s rejected: %v", cred.Platform, err)
	}
	if resp.AccessToken == "" {
		return nil, model.NewPublishError(model.ErrClassAuthExpired, "refresh grant for %s returned no access token", cred.Platform)
	}
	out := &refreshedToken{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if resp.ExpiresIn > 0 {
		expiry := m.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
		out.ExpiresAt = &expiry
	}
	return out, nil
}
