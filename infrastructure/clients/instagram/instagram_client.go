package instagram

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/clients/social"
	"crosspost/infrastructure/logger"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultPollAttempts = 30
)

// Client publishes Reels through the Graph container flow: create a media
// container from a public URL, poll it until the platform finishes its own
// ingest, then issue the publish call. The container id doubles as the
// failure breadcrumb when polling gives out.
type Client struct {
	cfg          configuration.PlatformClient
	http         *social.Client
	resolver     repository.IMediaURLResolver
	pollInterval time.Duration
	pollAttempts int
}

func NewInstagramClient(cfg configuration.PlatformClient, httpClient *social.Client, resolver repository.IMediaURLResolver) *Client {
	return &Client{
		cfg:          cfg,
		http:         httpClient,
		resolver:     resolver,
		pollInterval: defaultPollInterval,
		pollAttempts: defaultPollAttempts,
	}
}

func (c *Client) Platform() string { return model.PlatformInstagram }

func (c *Client) Publish(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error) {
	igUserID := c.accountID(cred, target)
	if igUserID == "" {
		return nil, model.NewPublishError(model.ErrClassPermissionDenied, "no Instagram business account linked")
	}

	fileURL, err := c.resolver.PublicURL(ctx, video)
	if err != nil {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "materializing public file URL: %v", err)
	}

	containerID, err := c.createContainer(ctx, cred, igUserID, fileURL, video)
	if err != nil {
		return nil, err
	}

	if err := c.waitForContainer(ctx, cred, containerID); err != nil {
		return nil, err
	}

	mediaID, err := c.publishContainer(ctx, cred, igUserID, containerID)
	if err != nil {
		if perr, ok := model.AsPublishError(err); ok && perr.RemoteID == "" {
			perr.RemoteID = containerID
		}
		return nil, err
	}
	return &model.RemotePost{
		ID:  mediaID,
		URL: fmt.Sprintf("https://www.instagram.com/reel/%s/", mediaID),
	}, nil
}

func (c *Client) createContainer(ctx context.Context, cred *model.Credential, igUserID, fileURL string, video *model.Video) (string, error) {
	form := url.Values{}
	form.Set("media_type", "REELS")
	form.Set("video_url", fileURL)
	form.Set("caption", caption(video))
	form.Set("access_token", cred.AccessToken)

	var resp struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("%s/%s/media", c.cfg.APIBaseURL, url.PathEscape(igUserID))
	if err := c.http.PostForm(ctx, endpoint, form.Encode(), nil, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", model.NewPublishError(model.ErrClassMalformedResponse, "instagram returned no container id")
	}
	return resp.ID, nil
}

// waitForContainer polls the container status. FINISHED proceeds, ERROR
// fails immediately, anything else keeps waiting until the attempt budget
// runs out, at which point the job fails as a protocol timeout carrying the
// container id.
func (c *Client) waitForContainer(ctx context.Context, cred *model.Credential, containerID string) error {
	log := logger.GetLogger().WithField("container_id", containerID)
	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		status, err := c.containerStatus(ctx, cred, containerID)
		if err != nil {
			return err
		}
		switch status {
		case "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return &model.PublishError{
				Class:    model.ErrClassMalformedResponse,
				Message:  fmt.Sprintf("instagram container entered %s state", status),
				RemoteID: containerID,
			}
		}
		log.WithField("attempt", attempt).WithField("status", status).Debug("Waiting for Instagram container")
		select {
		case <-ctx.Done():
			return &model.PublishError{
				Class:    model.ErrClassProtocolTimeout,
				Message:  fmt.Sprintf("cancelled while waiting for container: %v", ctx.Err()),
				RemoteID: containerID,
			}
		case <-time.After(c.pollInterval):
		}
	}
	return &model.PublishError{
		Class:    model.ErrClassProtocolTimeout,
		Message:  fmt.Sprintf("container not ready after %d polls", c.pollAttempts),
		RemoteID: containerID,
	}
}

func (c *Client) containerStatus(ctx context.Context, cred *model.Credential, containerID string) (string, error) {
	var resp struct {
		StatusCode string `json:"status_code"`
	}
	endpoint := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s",
		c.cfg.APIBaseURL, url.PathEscape(containerID), url.QueryEscape(cred.AccessToken))
	if err := c.http.DoJSON(ctx, "GET", endpoint, nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.StatusCode, nil
}

func (c *Client) publishContainer(ctx context.Context, cred *model.Credential, igUserID, containerID string) (string, error) {
	form := url.Values{}
	form.Set("creation_id", containerID)
	form.Set("access_token", cred.AccessToken)

	var resp struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("%s/%s/media_publish", c.cfg.APIBaseURL, url.PathEscape(igUserID))
	if err := c.http.PostForm(ctx, endpoint, form.Encode(), nil, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", model.NewPublishError(model.ErrClassMalformedResponse, "instagram publish returned no media id")
	}
	return resp.ID, nil
}

func (c *Client) Remove(ctx context.Context, cred *model.Credential, platformVideoID string) error {
	endpoint := fmt.Sprintf("%s/%s?access_token=%s",
		c.cfg.APIBaseURL, url.PathEscape(platformVideoID), url.QueryEscape(cred.AccessToken))
	err := c.http.DoJSON(ctx, "DELETE", endpoint, nil, nil, nil)
	return social.RemovalResult(err)
}

func (c *Client) accountID(cred *model.Credential, target *model.Target) string {
	if target.DestinationID != nil && *target.DestinationID != "" {
		return *target.DestinationID
	}
	if cred.PageID != nil {
		return *cred.PageID
	}
	return ""
}

func caption(video *model.Video) string {
	if video.Description != "" {
		return video.Description
	}
	return video.Title
}
