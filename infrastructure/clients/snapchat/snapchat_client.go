package snapchat

import (
	"context"
	"fmt"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/clients/social"
)

// Client publishes to a Snapchat public profile. Protocol shape: two
// dependent POSTs - first register the media from a public URL, then create
// the creative referencing that media id. The creative id is what retract
// later deletes.
type Client struct {
	cfg      configuration.PlatformClient
	http     *social.Client
	resolver repository.IMediaURLResolver
}

func NewSnapchatClient(cfg configuration.PlatformClient, httpClient *social.Client, resolver repository.IMediaURLResolver) *Client {
	return &Client{cfg: cfg, http: httpClient, resolver: resolver}
}

func (c *Client) Platform() string { return model.PlatformSnapchat }

type mediaResponse struct {
	Media []struct {
		Media struct {
			ID string `json:"id"`
		} `json:"media"`
	} `json:"media"`
}

type creativeResponse struct {
	Creatives []struct {
		Creative struct {
			ID string `json:"id"`
		} `json:"creative"`
	} `json:"creatives"`
}

func (c *Client) Publish(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error) {
	if target.DestinationID == nil || *target.DestinationID == "" {
		return nil, model.NewPublishError(model.ErrClassPermissionDenied, "no Snapchat profile selected")
	}
	profileID := *target.DestinationID

	fileURL, err := c.resolver.PublicURL(ctx, video)
	if err != nil {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "materializing public file URL: %v", err)
	}

	mediaPayload := map[string]interface{}{
		"media": []map[string]interface{}{{
			"name":         video.Title,
			"type":         "VIDEO",
			"download_url": fileURL,
		}},
	}
	var media mediaResponse
	mediaEndpoint := fmt.Sprintf("%s/publicprofiles/%s/media", c.cfg.APIBaseURL, profileID)
	if err := c.http.PostJSON(ctx, mediaEndpoint, cred.AccessToken, mediaPayload, &media); err != nil {
		return nil, err
	}
	if len(media.Media) == 0 || media.Media[0].Media.ID == "" {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "snapchat media registration returned no id")
	}
	mediaID := media.Media[0].Media.ID

	creativePayload := map[string]interface{}{
		"creatives": []map[string]interface{}{{
			"name":           video.Title,
			"type":           "SNAP_AD",
			"headline":       video.Title,
			"top_snap_media": map[string]string{"media_id": mediaID},
			"description":    video.Description,
		}},
	}
	var creative creativeResponse
	creativeEndpoint := fmt.Sprintf("%s/publicprofiles/%s/creatives", c.cfg.APIBaseURL, profileID)
	if err := c.http.PostJSON(ctx, creativeEndpoint, cred.AccessToken, creativePayload, &creative); err != nil {
		// The media is already registered; surface its id so the failure
		// record points at something an operator can clean up.
		if perr, ok := model.AsPublishError(err); ok && perr.RemoteID == "" {
			perr.RemoteID = mediaID
		}
		return nil, err
	}
	if len(creative.Creatives) == 0 || creative.Creatives[0].Creative.ID == "" {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "snapchat creative returned no id")
	}
	creativeID := creative.Creatives[0].Creative.ID
	return &model.RemotePost{
		ID:  creativeID,
		URL: fmt.Sprintf("https://www.snapchat.com/p/%s/%s", profileID, creativeID),
	}, nil
}

func (c *Client) Remove(ctx context.Context, cred *model.Credential, platformVideoID string) error {
	endpoint := fmt.Sprintf("%s/creatives/%s", c.cfg.APIBaseURL, platformVideoID)
	err := c.http.DoJSON(ctx, "DELETE", endpoint, map[string]string{"Authorization": "Bearer " + cred.AccessToken}, nil, nil)
	return social.RemovalResult(err)
}
