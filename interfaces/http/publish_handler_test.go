package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosspost/domain/dto"
	"crosspost/usecase"
)

type stubPublish struct {
	publishFn func(ctx context.Context, userID string, req *dto.PublishRequest) ([]dto.PublishResult, error)
	retractFn func(ctx context.Context, userID string, targetID int64) error
	statusFn  func(ctx context.Context, userID, videoID string) ([]dto.TargetStatusResponse, error)
	processFn func(ctx context.Context, userID string, req *dto.PublishRequest) (int, error)
	platforms []string
}

func (s *stubPublish) Publish(ctx context.Context, userID string, req *dto.PublishRequest) ([]dto.PublishResult, error) {
	return s.publishFn(ctx, userID, req)
}

func (s *stubPublish) Retract(ctx context.Context, userID string, targetID int64) error {
	return s.retractFn(ctx, userID, targetID)
}

func (s *stubPublish) GetStatus(ctx context.Context, userID, videoID string) ([]dto.TargetStatusResponse, error) {
	return s.statusFn(ctx, userID, videoID)
}

func (s *stubPublish) ProcessJobs(ctx context.Context, userID string, req *dto.PublishRequest) (int, error) {
	return s.processFn(ctx, userID, req)
}

func (s *stubPublish) Platforms() []string { return s.platforms }

func testRouter(uc usecase.IPublish) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewPublishHandler(uc)
	router := gin.New()
	authed := router.Group("/api", func(ctx *gin.Context) {
		ctx.Set("user_id", "user-1")
	})
	authed.POST("/videos/:videoId/publish", handler.PublishVideo)
	authed.GET("/videos/:videoId/targets", handler.GetTargets)
	authed.POST("/targets/:targetId/retract", handler.RetractTarget)
	authed.GET("/platforms", handler.GetPlatforms)
	return router
}

func publishBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(dto.PublishRequest{
		ChannelID: "chan-1",
		Video:     dto.VideoDescriptor{FilePath: "/tmp/clip.mp4", Title: "Launch"},
		Platforms: []dto.PublishPlatformRequest{{Platform: "youtube"}},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestPublishVideoAcceptedWithRouteVideoID(t *testing.T) {
	var gotVideoID, gotUserID string
	uc := &stubPublish{
		publishFn: func(ctx context.Context, userID string, req *dto.PublishRequest) ([]dto.PublishResult, error) {
			gotVideoID = req.Video.ID
			gotUserID = userID
			return []dto.PublishResult{{TargetID: 1, Platform: "youtube", Status: "pending"}}, nil
		},
	}
	router := testRouter(uc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/videos/vid-route/publish", publishBody(t))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "vid-route", gotVideoID, "the route parameter is authoritative for the video identity")
	assert.Equal(t, "user-1", gotUserID)
	assert.Contains(t, w.Body.String(), `"targets"`)
}

func TestPublishVideoValidationErrorIsBadRequest(t *testing.T) {
	uc := &stubPublish{
		publishFn: func(ctx context.Context, userID string, req *dto.PublishRequest) ([]dto.PublishResult, error) {
			return nil, usecase.ErrNoPlatforms
		},
	}
	router := testRouter(uc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/videos/vid-1/publish", publishBody(t))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetractTargetStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", usecase.ErrTargetNotFound, http.StatusNotFound},
		{"not owner", usecase.ErrNotOwner, http.StatusForbidden},
		{"nothing to retract", usecase.ErrNothingToRetract, http.StatusConflict},
		{"accepted", nil, http.StatusAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := &stubPublish{
				retractFn: func(ctx context.Context, userID string, targetID int64) error { return tc.err },
			}
			router := testRouter(uc)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/targets/42/retract", nil)
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestRetractTargetRejectsNonNumericID(t *testing.T) {
	router := testRouter(&stubPublish{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/targets/abc/retract", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTargetsReturnsEmptyListNotNull(t *testing.T) {
	uc := &stubPublish{
		statusFn: func(ctx context.Context, userID, videoID string) ([]dto.TargetStatusResponse, error) {
			return nil, nil
		},
	}
	router := testRouter(uc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/videos/vid-1/targets", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"targets":[]`)
}

func TestGetPlatforms(t *testing.T) {
	router := testRouter(&stubPublish{platforms: []string{"facebook", "youtube"}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/platforms", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Platforms []struct {
			Platform    string `json:"platform"`
			Implemented bool   `json:"implemented"`
		} `json:"platforms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Platforms, 2)
	assert.True(t, resp.Platforms[0].Implemented)
}
