package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosspost/domain/model"
	"crosspost/infrastructure/clients/social"
	"crosspost/infrastructure/configuration"
)

type dispatcherFixture struct {
	targets    *fakeTargets
	creds      *fakeCreds
	audit      *captureAudit
	dispatcher *Dispatcher
}

func newDispatcherFixture(t *testing.T, cfg configuration.Dispatcher, adapters ...*fakeAdapter) *dispatcherFixture {
	t.Helper()
	targets := newFakeTargets()
	creds := newFakeCreds()
	audit := &captureAudit{}

	registry := social.NewRegistry()
	for _, a := range adapters {
		registry.Register(a)
		creds.byPlatform[a.platform] = &model.Credential{
			ID:          1,
			UserID:      "user-1",
			ChannelID:   "chan-1",
			Platform:    a.platform,
			AccessToken: "live-token",
		}
	}

	tokens := NewTokenManager(creds, social.NewClient(http.DefaultClient), configuration.Platforms{}, "")
	reporter := NewStatusReporter(targets, audit, nil, nil, nil)
	dispatcher := NewDispatcher(cfg, registry, targets, creds, tokens, reporter, NewMetadataEnhancer(nil))
	return &dispatcherFixture{targets: targets, creds: creds, audit: audit, dispatcher: dispatcher}
}

func testDispatcherConfig() configuration.Dispatcher {
	return configuration.Dispatcher{
		Workers:               1,
		QueueSize:             16,
		MaxAttempts:           3,
		BackoffSeconds:        1,
		DirectTimeoutSeconds:  10,
		PollingTimeoutSeconds: 10,
	}
}

func pendingTarget(f *dispatcherFixture, platform string) *model.Target {
	return f.targets.put(&model.Target{
		VideoID:   "vid-1",
		Platform:  platform,
		UserID:    "user-1",
		ChannelID: "chan-1",
		Status:    model.TargetPending,
	})
}

func TestRunPublishSuccess(t *testing.T) {
	adapter := &fakeAdapter{platform: model.PlatformFacebook}
	f := newDispatcherFixture(t, testDispatcherConfig(), adapter)
	target := pendingTarget(f, model.PlatformFacebook)

	f.dispatcher.Run(context.Background(), Job{
		Kind:   JobPublish,
		Target: target,
		Video:  &model.Video{ID: "vid-1", FilePath: "/tmp/clip.mp4", Title: "Launch"},
	})

	stored, _ := f.targets.GetByID(context.Background(), target.ID)
	require.NotNil(t, stored)
	assert.Equal(t, model.TargetSuccess, stored.Status)
	require.NotNil(t, stored.PlatformVideoID)
	assert.Equal(t, "remote-1", *stored.PlatformVideoID)
	assert.Equal(t, 1, stored.AttemptCount)
	assert.Equal(t, []string{model.AuditJobStart, model.AuditJobSuccess}, f.audit.eventNames())
}

func TestRunPublishExhaustsRetryBudget(t *testing.T) {
	adapter := &fakeAdapter{
		platform: model.PlatformFacebook,
		publishFn: func(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error) {
			return nil, model.NewPublishError(model.ErrClassRateLimited, "too many requests")
		},
	}
	cfg := testDispatcherConfig()
	cfg.MaxAttempts = 2
	f := newDispatcherFixture(t, cfg, adapter)
	target := pendingTarget(f, model.PlatformFacebook)

	f.dispatcher.Run(context.Background(), Job{Kind: JobPublish, Target: target, Video: &model.Video{ID: "vid-1"}})

	assert.Equal(t, 2, adapter.publishCalls, "retryable failures run exactly the attempt budget")
	stored, _ := f.targets.GetByID(context.Background(), target.ID)
	assert.Equal(t, model.TargetFailed, stored.Status)
	assert.Equal(t, 2, stored.AttemptCount)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "rate limiting")
	assert.Equal(t, []string{model.AuditJobStart, model.AuditJobAttempt, model.AuditJobFailed}, f.audit.eventNames())
}

func TestRunPublishNonRetryableFailsImmediately(t *testing.T) {
	adapter := &fakeAdapter{
		platform: model.PlatformFacebook,
		publishFn: func(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error) {
			return nil, &model.PublishError{
				Class:    model.ErrClassPermissionDenied,
				Message:  "page role missing",
				RemoteID: "container-19",
			}
		},
	}
	f := newDispatcherFixture(t, testDispatcherConfig(), adapter)
	target := pendingTarget(f, model.PlatformFacebook)

	f.dispatcher.Run(context.Background(), Job{Kind: JobPublish, Target: target, Video: &model.Video{ID: "vid-1"}})

	assert.Equal(t, 1, adapter.publishCalls, "non-retryable classes must not burn the retry budget")
	stored, _ := f.targets.GetByID(context.Background(), target.ID)
	assert.Equal(t, model.TargetFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "not allowed")
	assert.Contains(t, *stored.ErrorMessage, "remote artifact container-19",
		"partial remote artifacts surface in the failure message")
}

func TestRunPublishTargetsAreIndependent(t *testing.T) {
	okAdapter := &fakeAdapter{platform: model.PlatformFacebook}
	badAdapter := &fakeAdapter{
		platform: model.PlatformPinterest,
		publishFn: func(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error) {
			return nil, model.NewPublishError(model.ErrClassPermissionDenied, "board is read-only")
		},
	}
	f := newDispatcherFixture(t, testDispatcherConfig(), okAdapter, badAdapter)
	fbTarget := pendingTarget(f, model.PlatformFacebook)
	pinTarget := pendingTarget(f, model.PlatformPinterest)

	video := &model.Video{ID: "vid-1", Title: "Launch"}
	f.dispatcher.Run(context.Background(), Job{Kind: JobPublish, Target: pinTarget, Video: video})
	f.dispatcher.Run(context.Background(), Job{Kind: JobPublish, Target: fbTarget, Video: video})

	fbStored, _ := f.targets.GetByID(context.Background(), fbTarget.ID)
	pinStored, _ := f.targets.GetByID(context.Background(), pinTarget.ID)
	assert.Equal(t, model.TargetSuccess, fbStored.Status, "sibling failure must not affect this target")
	assert.Equal(t, model.TargetFailed, pinStored.Status)
}

func TestRunPublishSkipsTerminalTarget(t *testing.T) {
	adapter := &fakeAdapter{platform: model.PlatformFacebook}
	f := newDispatcherFixture(t, testDispatcherConfig(), adapter)
	target := pendingTarget(f, model.PlatformFacebook)
	target.Status = model.TargetSuccess

	f.dispatcher.Run(context.Background(), Job{Kind: JobPublish, Target: target, Video: &model.Video{ID: "vid-1"}})

	assert.Zero(t, adapter.publishCalls)
	assert.Empty(t, f.audit.eventNames())
}

func TestRunPublishWithoutCredentialFails(t *testing.T) {
	adapter := &fakeAdapter{platform: model.PlatformFacebook}
	f := newDispatcherFixture(t, testDispatcherConfig(), adapter)
	delete(f.creds.byPlatform, model.PlatformFacebook)
	target := pendingTarget(f, model.PlatformFacebook)

	f.dispatcher.Run(context.Background(), Job{Kind: JobPublish, Target: target, Video: &model.Video{ID: "vid-1"}})

	assert.Zero(t, adapter.publishCalls)
	stored, _ := f.targets.GetByID(context.Background(), target.ID)
	assert.Equal(t, model.TargetFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "not allowed")
}

func TestRunPublishAppliesEnhancedMetadata(t *testing.T) {
	adapter := &fakeAdapter{platform: model.PlatformFacebook}
	f := newDispatcherFixture(t, testDispatcherConfig(), adapter)
	target := pendingTarget(f, model.PlatformFacebook)

	f.dispatcher.Run(context.Background(), Job{
		Kind:   JobPublish,
		Target: target,
		Video:  &model.Video{ID: "vid-9", FilePath: "/tmp/clip.mp4"},
	})

	require.NotNil(t, adapter.lastVideo)
	assert.Equal(t, "New video vid-9", adapter.lastVideo.Title, "untitled videos get the fallback title")
}

// flakyTargets errors on the nth MarkProcessing call to model a store hiccup
// between attempts.
type flakyTargets struct {
	*fakeTargets
	failOnCall      int
	processingCalls int
}

func (f *flakyTargets) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	f.processingCalls++
	if f.processingCalls == f.failOnCall {
		return false, errors.New("connection reset by peer")
	}
	return f.fakeTargets.MarkProcessing(ctx, id)
}

func TestRunPublishStoreErrorMidRetryStillTerminates(t *testing.T) {
	adapter := &fakeAdapter{
		platform: model.PlatformFacebook,
		publishFn: func(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error) {
			return nil, model.NewPublishError(model.ErrClassTransientNetwork, "platform unreachable")
		},
	}
	targets := &flakyTargets{fakeTargets: newFakeTargets(), failOnCall: 2}
	creds := newFakeCreds(&model.Credential{ID: 1, UserID: "user-1", ChannelID: "chan-1", Platform: model.PlatformFacebook, AccessToken: "live-token"})
	audit := &captureAudit{}

	registry := social.NewRegistry()
	registry.Register(adapter)
	tokens := NewTokenManager(creds, social.NewClient(http.DefaultClient), configuration.Platforms{}, "")
	reporter := NewStatusReporter(targets, audit, nil, nil, nil)
	dispatcher := NewDispatcher(testDispatcherConfig(), registry, targets, creds, tokens, reporter, NewMetadataEnhancer(nil))

	target := targets.put(&model.Target{VideoID: "vid-1", Platform: model.PlatformFacebook, UserID: "user-1", ChannelID: "chan-1", Status: model.TargetPending})
	dispatcher.Run(context.Background(), Job{Kind: JobPublish, Target: target, Video: &model.Video{ID: "vid-1"}})

	assert.Equal(t, 1, adapter.publishCalls)
	stored, _ := targets.GetByID(context.Background(), target.ID)
	assert.Equal(t, model.TargetFailed, stored.Status, "a store error mid-retry must not leave the target processing")
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "interrupted")
}

func TestRunRemovalBestEffort(t *testing.T) {
	removeErr := model.NewPublishError(model.ErrClassTransientNetwork, "platform unreachable")
	adapter := &fakeAdapter{
		platform: model.PlatformFacebook,
		removeFn: func(ctx context.Context, cred *model.Credential, platformVideoID string) error {
			return removeErr
		},
	}
	f := newDispatcherFixture(t, testDispatcherConfig(), adapter)
	remoteID := "fbvid-1"
	target := pendingTarget(f, model.PlatformFacebook)
	target.Status = model.TargetSuccess
	target.PlatformVideoID = &remoteID

	f.dispatcher.Run(context.Background(), Job{Kind: JobRemoval, Target: target})

	assert.Equal(t, 1, adapter.removeCalls)
	stored, _ := f.targets.GetByID(context.Background(), target.ID)
	assert.Equal(t, model.TargetSuccess, stored.Status, "removal never rewrites the publish outcome")
	names := f.audit.eventNames()
	require.Len(t, names, 1)
	assert.Equal(t, model.AuditJobRemoval, names[0])
	require.NotNil(t, f.audit.events[0].ErrorMessage)
	assert.Contains(t, *f.audit.events[0].ErrorMessage, "platform unreachable")
}

func TestRunRemovalWithoutRemoteIDIsNoop(t *testing.T) {
	adapter := &fakeAdapter{platform: model.PlatformFacebook}
	f := newDispatcherFixture(t, testDispatcherConfig(), adapter)
	target := pendingTarget(f, model.PlatformFacebook)

	f.dispatcher.Run(context.Background(), Job{Kind: JobRemoval, Target: target})

	assert.Zero(t, adapter.removeCalls)
	assert.Empty(t, f.audit.eventNames())
}

func TestEnqueueReportsFullQueue(t *testing.T) {
	cfg := testDispatcherConfig()
	cfg.QueueSize = 1
	f := newDispatcherFixture(t, cfg)

	require.NoError(t, f.dispatcher.Enqueue(Job{Kind: JobPublish}))
	err := f.dispatcher.Enqueue(Job{Kind: JobPublish})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue is full")
}
