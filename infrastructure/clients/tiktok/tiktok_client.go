package tiktok

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"crosspost/domain/model"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/clients/social"
	"crosspost/infrastructure/logger"
)

const (
	defaultChunkSize    = 8 * 1024 * 1024
	defaultPollInterval = 10 * time.Second
	defaultPollAttempts = 30
)

// Client posts videos through the TikTok direct-post flow: an init call
// declares the file size and chunking plan and returns an upload URL plus a
// publish id, then the file body is PUT chunk by chunk with Content-Range
// headers, then the publish status is polled until the platform finishes
// processing. The publish id is the remote handle from the moment init
// succeeds, so a failure mid-upload still records it.
type Client struct {
	cfg          configuration.PlatformClient
	http         *social.Client
	chunkSize    int64
	pollInterval time.Duration
	pollAttempts int
}

func NewTikTokClient(cfg configuration.PlatformClient, httpClient *social.Client) *Client {
	size := cfg.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	return &Client{
		cfg:          cfg,
		http:         httpClient,
		chunkSize:    size,
		pollInterval: defaultPollInterval,
		pollAttempts: defaultPollAttempts,
	}
}

func (c *Client) Platform() string { return model.PlatformTikTok }

type initRequest struct {
	PostInfo   postInfo   `json:"post_info"`
	SourceInfo sourceInfo `json:"source_info"`
}

type postInfo struct {
	Title        string `json:"title"`
	PrivacyLevel string `json:"privacy_level"`
}

type sourceInfo struct {
	Source          string `json:"source"`
	VideoSize       int64  `json:"video_size"`
	ChunkSize       int64  `json:"chunk_size"`
	TotalChunkCount int64  `json:"total_chunk_count"`
}

type initResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
		UploadURL string `json:"upload_url"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Publish(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error) {
	file, err := os.Open(video.FilePath)
	if err != nil {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "opening video file: %v", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "stat video file: %v", err)
	}
	totalSize := info.Size()
	if totalSize == 0 {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "video file is empty")
	}

	chunkSize := c.chunkSize
	if totalSize < chunkSize {
		chunkSize = totalSize
	}
	totalChunks := (totalSize + chunkSize - 1) / chunkSize

	privacy := target.AdvancedOptions.String("privacy_level")
	if privacy == "" {
		privacy = "PUBLIC_TO_EVERYONE"
	}
	initReq := initRequest{
		PostInfo: postInfo{Title: video.Title, PrivacyLevel: privacy},
		SourceInfo: sourceInfo{
			Source:          "FILE_UPLOAD",
			VideoSize:       totalSize,
			ChunkSize:       chunkSize,
			TotalChunkCount: totalChunks,
		},
	}
	var initResp initResponse
	if err := c.http.PostJSON(ctx, c.cfg.APIBaseURL+"/post/publish/video/init/", cred.AccessToken, initReq, &initResp); err != nil {
		return nil, err
	}
	if initResp.Error.Code != "" && initResp.Error.Code != "ok" {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "tiktok init rejected: %s (%s)", initResp.Error.Message, initResp.Error.Code)
	}
	if initResp.Data.PublishID == "" || initResp.Data.UploadURL == "" {
		return nil, model.NewPublishError(model.ErrClassMalformedResponse, "tiktok init returned no publish id or upload url")
	}
	publishID := initResp.Data.PublishID

	if err := c.uploadChunks(ctx, file, initResp.Data.UploadURL, video.MimeType, totalSize, chunkSize); err != nil {
		if perr, ok := model.AsPublishError(err); ok && perr.RemoteID == "" {
			perr.RemoteID = publishID
		}
		return nil, err
	}

	logger.GetLogger().
		WithField("publish_id", publishID).
		WithField("chunks", totalChunks).
		Info("TikTok upload complete")

	if err := c.awaitPublish(ctx, cred, publishID); err != nil {
		return nil, err
	}
	return &model.RemotePost{ID: publishID}, nil
}

// awaitPublish polls the status endpoint until processing settles.
// PUBLISH_COMPLETE and SEND_TO_USER_INBOX count as done, FAILED fails
// immediately, anything else keeps waiting until the attempt budget runs
// out, at which point the job fails as a protocol timeout carrying the
// publish id.
func (c *Client) awaitPublish(ctx context.Context, cred *model.Credential, publishID string) error {
	log := logger.GetLogger().WithField("publish_id", publishID)
	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		status, err := c.FetchStatus(ctx, cred, publishID)
		if err != nil {
			return err
		}
		switch status {
		case "PUBLISH_COMPLETE", "SEND_TO_USER_INBOX":
			return nil
		}
		log.WithField("attempt", attempt).WithField("status", status).Debug("Waiting for TikTok processing")
		select {
		case <-ctx.Done():
			return &model.PublishError{
				Class:    model.ErrClassProtocolTimeout,
				Message:  fmt.Sprintf("cancelled while waiting for processing: %v", ctx.Err()),
				RemoteID: publishID,
			}
		case <-time.After(c.pollInterval):
		}
	}
	return &model.PublishError{
		Class:    model.ErrClassProtocolTimeout,
		Message:  fmt.Sprintf("processing not finished after %d polls", c.pollAttempts),
		RemoteID: publishID,
	}
}

func (c *Client) uploadChunks(ctx context.Context, file *os.File, uploadURL, mimeType string, totalSize, chunkSize int64) error {
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	buf := make([]byte, chunkSize)
	var offset int64
	for offset < totalSize {
		n, err := io.ReadFull(file, buf)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			// last chunk
		} else if err != nil {
			return model.NewPublishError(model.ErrClassMalformedResponse, "reading chunk at %d: %v", offset, err)
		}
		if n == 0 {
			break
		}
		end := offset + int64(n) - 1
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(buf[:n]))
		if err != nil {
			return model.NewPublishError(model.ErrClassMalformedResponse, "building chunk request: %v", err)
		}
		req.Header.Set("Content-Type", mimeType)
		req.Header.Set("Content-Length", fmt.Sprintf("%d", n))
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, end, totalSize))

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		// 201 for intermediate chunks, 200/201 when the upload completes.
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return social.Classify(resp.StatusCode, body)
		}
		offset += int64(n)
	}
	return nil
}

type statusResponse struct {
	Data struct {
		Status        string   `json:"status"`
		PublicPostIDs []string `json:"publicaly_available_post_id"`
		FailReason    string   `json:"fail_reason"`
	} `json:"data"`
}

// FetchStatus reports the processing state of an uploaded post. The direct
// post flow is asynchronous on the platform side, so an accepted upload is
// not live until the status settles.
func (c *Client) FetchStatus(ctx context.Context, cred *model.Credential, publishID string) (string, error) {
	payload := map[string]string{"publish_id": publishID}
	var resp statusResponse
	if err := c.http.PostJSON(ctx, c.cfg.APIBaseURL+"/post/publish/status/fetch/", cred.AccessToken, payload, &resp); err != nil {
		return "", err
	}
	if resp.Data.Status == "FAILED" {
		return "", &model.PublishError{
			Class:    model.ErrClassMalformedResponse,
			Message:  fmt.Sprintf("tiktok processing failed: %s", resp.Data.FailReason),
			RemoteID: publishID,
		}
	}
	return resp.Data.Status, nil
}

func (c *Client) Remove(ctx context.Context, cred *model.Credential, platformVideoID string) error {
	payload := map[string]string{"publish_id": platformVideoID}
	err := c.http.PostJSON(ctx, c.cfg.APIBaseURL+"/post/publish/video/delete/", cred.AccessToken, payload, nil)
	return social.RemovalResult(err)
}
