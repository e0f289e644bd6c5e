package pinterest

import (
	"context"
	"fmt"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/clients/social"
)

// Client creates video pins on a board. Protocol shape: one POST with pin
// metadata plus a cover-image/video URL pair the platform fetches itself.
type Client struct {
	cfg      configuration.PlatformClient
	http     *social.Client
	resolver repository.IMediaURLResolver
}

func NewPinterestClient(cfg configuration.PlatformClient, httpClient *social.Client, resolver repository.IMediaURLResolver) *Client {
	return &Client{cfg: cfg, http: httpClient, resolver: resolver}
}

func (c *Client) Platform() string { return model.PlatformPinterest }

type pinRequest struct {
	BoardID     string         `json:"board_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Link        string         `json:"link,omitempty"`
	MediaSource pinMediaSource `json:"media_source"`
}

type pinMediaSource struct {
	SourceType string `json:"source_type"`
	URL        string `json:"url"`
}

func (c *Client) Publish(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error) {
	if target.DestinationID == nil || *target.DestinationID == "" {
		return nil, model.NewPublishError(model.ErrClassPermissionDenied, "no Pinterest board selected for this pin")
	}

	fileURL, err := c.resolver.PublicURL(ctx, video)
	if err != nil {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "materializing public file URL: %v", err)
	}

	payload := pinRequest{
		BoardID:     *target.DestinationID,
		Title:       video.Title,
		Description: video.Description,
		Link:        target.AdvancedOptions.String("link"),
		MediaSource: pinMediaSource{SourceType: "video_url", URL: fileURL},
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.http.PostJSON(ctx, c.cfg.APIBaseURL+"/pins", cred.AccessToken, payload, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "pinterest returned no pin id")
	}
	return &model.RemotePost{
		ID:  resp.ID,
		URL: fmt.Sprintf("https://www.pinterest.com/pin/%s/", resp.ID),
	}, nil
}

func (c *Client) Remove(ctx context.Context, cred *model.Credential, platformVideoID string) error {
	endpoint := fmt.Sprintf("%s/pins/%s", c.cfg.APIBaseURL, platformVideoID)
	err := c.http.DoJSON(ctx, "DELETE", endpoint, map[string]string{"Authorization": "Bearer " + cred.AccessToken}, nil, nil)
	return social.RemovalResult(err)
}
