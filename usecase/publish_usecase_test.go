package usecase

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/infrastructure/clients/social"
	"crosspost/infrastructure/configuration"
)

type usecaseFixture struct {
	targets    *fakeTargets
	creds      *fakeCreds
	dispatcher *Dispatcher
	usecase    *PublishUsecase
}

func newUsecaseFixture(t *testing.T) *usecaseFixture {
	t.Helper()
	targets := newFakeTargets()
	creds := newFakeCreds()

	registry := social.NewRegistry()
	for _, platform := range []string{model.PlatformFacebook, model.PlatformYouTube, model.PlatformInstagram} {
		registry.Register(&fakeAdapter{platform: platform})
	}

	tokens := NewTokenManager(creds, social.NewClient(http.DefaultClient), configuration.Platforms{}, "")
	reporter := NewStatusReporter(targets, &captureAudit{}, nil, nil, nil)
	dispatcher := NewDispatcher(testDispatcherConfig(), registry, targets, creds, tokens, reporter, NewMetadataEnhancer(nil))
	uc := NewPublishUsecase(targets, creds, registry, dispatcher, nil).(*PublishUsecase)
	return &usecaseFixture{targets: targets, creds: creds, dispatcher: dispatcher, usecase: uc}
}

func publishRequest(platforms ...dto.PublishPlatformRequest) *dto.PublishRequest {
	return &dto.PublishRequest{
		ChannelID: "chan-1",
		Video:     dto.VideoDescriptor{ID: "vid-1", FilePath: "/tmp/clip.mp4", Title: "Launch"},
		Platforms: platforms,
	}
}

func TestPublishCreatesAndEnqueuesTargets(t *testing.T) {
	f := newUsecaseFixture(t)

	results, err := f.usecase.Publish(context.Background(), "user-1", publishRequest(
		dto.PublishPlatformRequest{Platform: "youtube"},
		dto.PublishPlatformRequest{Platform: "Instagram"},
	))
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, string(model.TargetPending), r.Status)
		assert.NotZero(t, r.TargetID)
	}
	assert.Equal(t, 2, len(f.dispatcher.queue), "one publish job per created target")

	list, err := f.targets.ListByVideo(context.Background(), "vid-1", "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestPublishRejectsUnsupportedPlatform(t *testing.T) {
	f := newUsecaseFixture(t)
	_, err := f.usecase.Publish(context.Background(), "user-1", publishRequest(
		dto.PublishPlatformRequest{Platform: "vimeo"},
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported platform")
}

func TestPublishRejectsDuplicatePlatform(t *testing.T) {
	f := newUsecaseFixture(t)
	_, err := f.usecase.Publish(context.Background(), "user-1", publishRequest(
		dto.PublishPlatformRequest{Platform: "youtube"},
		dto.PublishPlatformRequest{Platform: "YouTube"},
	))
	assert.ErrorIs(t, err, ErrDuplicatePlatform)
}

func TestPublishRejectsEmptyPlatformList(t *testing.T) {
	f := newUsecaseFixture(t)
	_, err := f.usecase.Publish(context.Background(), "user-1", publishRequest())
	assert.ErrorIs(t, err, ErrNoPlatforms)
}

func TestPublishRejectsMalformedDestinationID(t *testing.T) {
	f := newUsecaseFixture(t)
	_, err := f.usecase.Publish(context.Background(), "user-1", publishRequest(
		dto.PublishPlatformRequest{Platform: "facebook", DestinationID: "not-a-page-id"},
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected shape")
}

func TestPublishResolvesDestinationFromCredential(t *testing.T) {
	f := newUsecaseFixture(t)
	pageID := "123456789"
	f.creds.byPlatform[model.PlatformFacebook] = &model.Credential{
		Platform: model.PlatformFacebook, AccessToken: "tok", PageID: &pageID,
	}

	_, err := f.usecase.Publish(context.Background(), "user-1", publishRequest(
		dto.PublishPlatformRequest{Platform: "facebook"},
	))
	require.NoError(t, err)

	list, _ := f.targets.ListByVideo(context.Background(), "vid-1", "user-1")
	require.Len(t, list, 1)
	require.NotNil(t, list[0].DestinationID)
	assert.Equal(t, pageID, *list[0].DestinationID, "omitted destination falls back to the connected page")
}

func TestRetractChecksOwnershipAndState(t *testing.T) {
	f := newUsecaseFixture(t)

	err := f.usecase.Retract(context.Background(), "user-1", 404)
	assert.ErrorIs(t, err, ErrTargetNotFound)

	remoteID := "yt-1"
	foreign := f.targets.put(&model.Target{VideoID: "vid-1", Platform: model.PlatformYouTube, UserID: "someone-else", Status: model.TargetSuccess, PlatformVideoID: &remoteID})
	assert.ErrorIs(t, f.usecase.Retract(context.Background(), "user-1", foreign.ID), ErrNotOwner)

	unpublished := f.targets.put(&model.Target{VideoID: "vid-1", Platform: model.PlatformYouTube, UserID: "user-1", Status: model.TargetFailed})
	assert.ErrorIs(t, f.usecase.Retract(context.Background(), "user-1", unpublished.ID), ErrNothingToRetract)

	published := f.targets.put(&model.Target{VideoID: "vid-2", Platform: model.PlatformYouTube, UserID: "user-1", Status: model.TargetSuccess, PlatformVideoID: &remoteID})
	require.NoError(t, f.usecase.Retract(context.Background(), "user-1", published.ID))
	require.Equal(t, 1, len(f.dispatcher.queue))
	job := <-f.dispatcher.queue
	assert.Equal(t, JobRemoval, job.Kind)
	assert.Equal(t, published.ID, job.Target.ID)
}

func TestProcessJobsReenqueuesOnlyPending(t *testing.T) {
	f := newUsecaseFixture(t)
	f.targets.put(&model.Target{VideoID: "vid-1", Platform: model.PlatformYouTube, UserID: "user-1", Status: model.TargetPending})
	f.targets.put(&model.Target{VideoID: "vid-1", Platform: model.PlatformFacebook, UserID: "user-1", Status: model.TargetSuccess})

	enqueued, err := f.usecase.ProcessJobs(context.Background(), "user-1", publishRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, enqueued)
	assert.Equal(t, 1, len(f.dispatcher.queue))
}

func TestGetStatusListsTargets(t *testing.T) {
	f := newUsecaseFixture(t)
	msg := "quota exceeded"
	f.targets.put(&model.Target{VideoID: "vid-1", Platform: model.PlatformYouTube, UserID: "user-1", Status: model.TargetFailed, ErrorMessage: &msg, AttemptCount: 3})

	out, err := f.usecase.GetStatus(context.Background(), "user-1", "vid-1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "failed", out[0].Status)
	require.NotNil(t, out[0].ErrorMessage)
	assert.Equal(t, 3, out[0].AttemptCount)
}

func TestPlatformsListsRegisteredAdapters(t *testing.T) {
	f := newUsecaseFixture(t)
	assert.ElementsMatch(t, []string{"facebook", "youtube", "instagram"}, f.usecase.Platforms())
}
