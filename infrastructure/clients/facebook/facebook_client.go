package facebook

import (
	"context"
	"fmt"
	"net/url"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/clients/social"
)

// Client publishes videos to a connected Facebook page. Protocol shape:
// one POST to the page's /videos edge carrying metadata plus a publicly
// fetchable file URL (the Graph API fetches the file itself).
type Client struct {
	cfg      configuration.PlatformClient
	http     *social.Client
	resolver repository.IMediaURLResolver
}

func NewFacebookClient(cfg configuration.PlatformClient, httpClient *social.Client, resolver repository.IMediaURLResolver) *Client {
	return &Client{cfg: cfg, http: httpClient, resolver: resolver}
}

func (c *Client) Platform() string { return model.PlatformFacebook }

func (c *Client) Publish(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error) {
	pageID := pickPageID(cred, target)
	if pageID == "" {
		return nil, model.NewPublishError(model.ErrClassPermissionDenied, "no connected Facebook page for this account")
	}
	// Page videos must be posted with the page token when one is linked.
	token := cred.AccessToken
	if cred.PageToken != nil && *cred.PageToken != "" {
		token = *cred.PageToken
	}

	fileURL, err := c.resolver.PublicURL(ctx, video)
	if err != nil {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "materializing public file URL: %v", err)
	}

	form := url.Values{}
	form.Set("file_url", fileURL)
	form.Set("title", video.Title)
	form.Set("description", video.Description)
	form.Set("access_token", token)
	if target.AdvancedOptions.Bool("unpublished") {
		form.Set("published", "false")
	}

	var resp struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("%s/%s/videos", c.cfg.APIBaseURL, url.PathEscape(pageID))
	if err := c.http.PostForm(ctx, endpoint, form.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "facebook returned no video id")
	}
	return &model.RemotePost{
		ID:  resp.ID,
		URL: fmt.Sprintf("https://www.facebook.com/%s/videos/%s", pageID, resp.ID),
	}, nil
}

func (c *Client) Remove(ctx context.Context, cred *model.Credential, platformVideoID string) error {
	token := cred.AccessToken
	if cred.PageToken != nil && *cred.PageToken != "" {
		token = *cred.PageToken
	}
	endpoint := fmt.Sprintf("%s/%s?access_token=%s", c.cfg.APIBaseURL, url.PathEscape(platformVideoID), url.QueryEscape(token))
	err := c.http.DoJSON(ctx, "DELETE", endpoint, nil, nil, nil)
	return social.RemovalResult(err)
}

func pickPageID(cred *model.Credential, target *model.Target) string {
	if target.DestinationID != nil && *target.DestinationID != "" {
		return *target.DestinationID
	}
	if cred.PageID != nil {
		return *cred.PageID
	}
	return ""
}
