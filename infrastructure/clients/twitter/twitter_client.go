package twitter

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/google/go-querystring/query"
	"crosspost/domain/model"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/clients/social"
	"crosspost/infrastructure/logger"
)

const defaultSegmentSize = 5 * 1024 * 1024

// Client posts videos to X. Protocol shape: the chunked media upload on the
// legacy upload host (INIT, base64 APPEND per segment, FINALIZE, then a
// STATUS poll while the platform transcodes), followed by one v2 call that
// creates the post referencing the media id. A failure after upload but
// before the post call records the media id as the remote breadcrumb.
type Client struct {
	cfg         configuration.PlatformClient
	http        *social.Client
	segmentSize int64
	// minimum wait between STATUS polls when the platform gives no hint
	pollFloor time.Duration
}

func NewTwitterClient(cfg configuration.PlatformClient, httpClient *social.Client) *Client {
	size := cfg.ChunkSize
	if size <= 0 {
		size = defaultSegmentSize
	}
	return &Client{cfg: cfg, http: httpClient, segmentSize: size, pollFloor: 5 * time.Second}
}

func (c *Client) Platform() string { return model.PlatformX }

type initParams struct {
	Command       string `url:"command"`
	TotalBytes    int64  `url:"total_bytes"`
	MediaType     string `url:"media_type"`
	MediaCategory string `url:"media_category"`
}

type finalizeParams struct {
	Command string `url:"command"`
	MediaID string `url:"media_id"`
}

type statusParams struct {
	Command string `url:"command"`
	MediaID string `url:"media_id"`
}

type uploadResponse struct {
	MediaIDString  string          `json:"media_id_string"`
	ProcessingInfo *processingInfo `json:"processing_info"`
}

type processingInfo struct {
	State           string `json:"state"`
	CheckAfterSecs  int    `json:"check_after_secs"`
	ProgressPercent int    `json:"progress_percent"`
	Error           *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Publish(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error) {
	mediaID, err := c.uploadMedia(ctx, cred, video)
	if err != nil {
		return nil, err
	}

	text := video.Title
	if custom := target.AdvancedOptions.String("text"); custom != "" {
		text = custom
	}
	payload := map[string]interface{}{
		"text":  text,
		"media": map[string]interface{}{"media_ids": []string{mediaID}},
	}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.http.PostJSON(ctx, c.cfg.APIBaseURL+"/tweets", cred.AccessToken, payload, &resp); err != nil {
		if perr, ok := model.AsPublishError(err); ok && perr.RemoteID == "" {
			perr.RemoteID = mediaID
		}
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, &model.PublishError{
			Class:    model.ErrClassMalformedResponse,
			Message:  "post creation returned no id",
			RemoteID: mediaID,
		}
	}
	return &model.RemotePost{
		ID:  resp.Data.ID,
		URL: fmt.Sprintf("https://x.com/i/status/%s", resp.Data.ID),
	}, nil
}

func (c *Client) uploadMedia(ctx context.Context, cred *model.Credential, video *model.Video) (string, error) {
	file, err := os.Open(video.FilePath)
	if err != nil {
		return "", model.NewPublishError(model.ErrClassMalformedResponse, "opening video file: %v", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", model.NewPublishError(model.ErrClassMalformedResponse, "stat video file: %v", err)
	}

	mimeType := video.MimeType
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	params, err := query.Values(initParams{
		Command:       "INIT",
		TotalBytes:    info.Size(),
		MediaType:     mimeType,
		MediaCategory: "tweet_video",
	})
	if err != nil {
		return "", model.NewPublishError(model.ErrClassMalformedResponse, "encoding INIT params: %v", err)
	}
	var initResp uploadResponse
	if err := c.postUpload(ctx, cred, params, &initResp); err != nil {
		return "", err
	}
	if initResp.MediaIDString == "" {
		return "", model.NewPublishError(model.ErrClassMalformedResponse, "media INIT returned no id")
	}
	mediaID := initResp.MediaIDString

	if err := c.appendSegments(ctx, cred, file, mediaID); err != nil {
		return "", withRemoteID(err, mediaID)
	}

	finalize, err := query.Values(finalizeParams{Command: "FINALIZE", MediaID: mediaID})
	if err != nil {
		return "", model.NewPublishError(model.ErrClassMalformedResponse, "encoding FINALIZE params: %v", err)
	}
	var finResp uploadResponse
	if err := c.postUpload(ctx, cred, finalize, &finResp); err != nil {
		return "", withRemoteID(err, mediaID)
	}

	if err := c.awaitProcessing(ctx, cred, mediaID, finResp.ProcessingInfo); err != nil {
		return "", withRemoteID(err, mediaID)
	}
	return mediaID, nil
}

func (c *Client) appendSegments(ctx context.Context, cred *model.Credential, file *os.File, mediaID string) error {
	buf := make([]byte, c.segmentSize)
	for segment := 0; ; segment++ {
		n, err := io.ReadFull(file, buf)
		if err == io.EOF {
			return nil
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return model.NewPublishError(model.ErrClassMalformedResponse, "reading segment %d: %v", segment, err)
		}
		form := url.Values{}
		form.Set("command", "APPEND")
		form.Set("media_id", mediaID)
		form.Set("segment_index", fmt.Sprintf("%d", segment))
		form.Set("media_data", base64.StdEncoding.EncodeToString(buf[:n]))
		headers := map[string]string{"Authorization": "Bearer " + cred.AccessToken}
		if appendErr := c.http.PostForm(ctx, c.cfg.UploadBaseURL+"/media/upload.json", form.Encode(), headers, nil); appendErr != nil {
			return appendErr
		}
		if err == io.ErrUnexpectedEOF {
			return nil
		}
	}
}

// awaitProcessing polls STATUS until the platform finishes transcoding.
// check_after_secs is honored when present; the overall deadline comes from
// the job context.
func (c *Client) awaitProcessing(ctx context.Context, cred *model.Credential, mediaID string, procInfo *processingInfo) error {
	log := logger.GetLogger().WithField("media_id", mediaID)
	for procInfo != nil {
		switch procInfo.State {
		case "succeeded":
			return nil
		case "failed":
			msg := "media processing failed"
			if procInfo.Error != nil {
				msg = procInfo.Error.Message
			}
			return model.NewPublishError(model.ErrClassMalformedResponse, "x media processing: %s", msg)
		}
		wait := time.Duration(procInfo.CheckAfterSecs) * time.Second
		if wait <= 0 {
			wait = c.pollFloor
		}
		log.WithField("state", procInfo.State).WithField("progress", procInfo.ProgressPercent).Debug("Waiting for X media processing")
		select {
		case <-ctx.Done():
			return model.NewPublishError(model.ErrClassProtocolTimeout, "cancelled while media processing: %v", ctx.Err())
		case <-time.After(wait):
		}

		params, err := query.Values(statusParams{Command: "STATUS", MediaID: mediaID})
		if err != nil {
			return model.NewPublishError(model.ErrClassMalformedResponse, "encoding STATUS params: %v", err)
		}
		var resp uploadResponse
		endpoint := c.cfg.UploadBaseURL + "/media/upload.json?" + params.Encode()
		headers := map[string]string{"Authorization": "Bearer " + cred.AccessToken}
		if err := c.http.DoJSON(ctx, "GET", endpoint, headers, nil, &resp); err != nil {
			return err
		}
		procInfo = resp.ProcessingInfo
	}
	return nil
}

func (c *Client) postUpload(ctx context.Context, cred *model.Credential, params url.Values, out interface{}) error {
	headers := map[string]string{"Authorization": "Bearer " + cred.AccessToken}
	return c.http.PostForm(ctx, c.cfg.UploadBaseURL+"/media/upload.json", params.Encode(), headers, out)
}

func (c *Client) Remove(ctx context.Context, cred *model.Credential, platformVideoID string) error {
	endpoint := fmt.Sprintf("%s/tweets/%s", c.cfg.APIBaseURL, platformVideoID)
	err := c.http.DoJSON(ctx, "DELETE", endpoint, map[string]string{"Authorization": "Bearer " + cred.AccessToken}, nil, nil)
	return social.RemovalResult(err)
}

func withRemoteID(err error, mediaID string) error {
	if perr, ok := model.AsPublishError(err); ok && perr.RemoteID == "" {
		perr.RemoteID = mediaID
	}
	return err
}
