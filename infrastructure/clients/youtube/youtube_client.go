package youtube

import (
	"context"
	"fmt"
	"os"

	"crosspost/domain/model"
	"crosspost/infrastructure/configuration"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Client publishes through the official Data API v3. Unlike the HTTP
// adapters, the SDK owns transport, resumable upload, and retry of the media
// body; this type builds a per-call service from the stored credential and
// translates googleapi errors into the common taxonomy.
type Client struct {
	cfg configuration.YouTube
}

func NewYouTubeClient(cfg configuration.YouTube) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) Platform() string { return model.PlatformYouTube }

func (c *Client) oauthConfig() *oauth2.Config {
	scopes := c.cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{youtube.YoutubeScope, youtube.YoutubeUploadScope, youtube.YoutubeForceSslScope}
	}
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  c.cfg.RedirectURI,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// service builds a Data API client bound to this credential's token. The
// oauth2 transport refreshes transparently when a refresh token is present;
// upstream token management keeps the stored row in sync.
func (c *Client) service(ctx context.Context, cred *model.Credential) (*youtube.Service, error) {
	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    "Bearer",
	}
	if cred.ExpiresAt != nil {
		token.Expiry = *cred.ExpiresAt
	}
	httpClient := c.oauthConfig().Client(ctx, token)
	svc, err := youtube.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "creating youtube service: %v", err)
	}
	return svc, nil
}

func (c *Client) Publish(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error) {
	svc, err := c.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(video.FilePath)
	if err != nil {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "opening video file: %v", err)
	}
	defer file.Close()

	privacy := target.AdvancedOptions.String("privacy")
	if privacy == "" {
		privacy = "public"
	}
	upload := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       video.Title,
			Description: video.Description,
			Tags:        target.AdvancedOptions.StringSlice("tags"),
			CategoryId:  target.AdvancedOptions.String("category_id"),
		},
		Status: &youtube.VideoStatus{PrivacyStatus: privacy},
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, upload).Context(ctx)
	call = call.Media(file)
	response, err := call.Do()
	if err != nil {
		return nil, classify(err)
	}
	if response.Id == "" {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "youtube insert returned no video id")
	}
	return &model.RemotePost{
		ID:  response.Id,
		URL: fmt.Sprintf("https://www.youtube.com/watch?v=%s", response.Id),
	}, nil
}

func (c *Client) Remove(ctx context.Context, cred *model.Credential, platformVideoID string) error {
	svc, err := c.service(ctx, cred)
	if err != nil {
		return err
	}
	if err := svc.Videos.Delete(platformVideoID).Context(ctx).Do(); err != nil {
		perr := classify(err)
		if pe, ok := model.AsPublishError(perr); ok && pe.Class == model.ErrClassRemoteNotFound {
			return nil
		}
		return perr
	}
	return nil
}

// classify maps SDK errors onto the common taxonomy using the embedded HTTP
// status when the error is a *googleapi.Error; anything else is a transport
// failure.
func classify(err error) error {
	if gerr, ok := err.(*googleapi.Error); ok {
		switch gerr.Code {
		case 404:
			return model.NewPublishError(model.ErrClassRemoteNotFound, "youtube resource not found: %s", gerr.Message)
		case 401:
			return model.NewPublishError(model.ErrClassAuthExpired, "youtube token rejected: %s", gerr.Message)
		case 403:
			return model.NewPublishError(model.ErrClassPermissionDenied, "youtube permission denied: %s", gerr.Message)
		case 429:
			return model.NewPublishError(model.ErrClassRateLimited, "youtube rate limited: %s", gerr.Message)
		}
		if gerr.Code >= 500 {
			return model.NewPublishError(model.ErrClassTransientNetwork, "youtube server error (%d): %s", gerr.Code, gerr.Message)
		}
		return model.NewPublishError(model.ErrClassMalformedResponse, "youtube error (%d): %s", gerr.Code, gerr.Message)
	}
	return model.NewPublishError(model.ErrClassTransientNetwork, "youtube call failed: %v", err)
}
