package social

import (
	"context"
	"fmt"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
)

// Simulated decorates a real adapter with the development seam: when the
// stored access token equals the sentinel value, publish and remove
// short-circuit with a deterministic success after an artificial delay,
// returning a synthetic platform id. This lets the whole pipeline be
// exercised without live credentials while keeping the production protocol
// code free of test-only branches.
type Simulated struct {
	real     repository.IPlatformPublisher
	sentinel string
	delay    time.Duration
}

func WithSimulation(real repository.IPlatformPublisher, sentinel string, delay time.Duration) repository.IPlatformPublisher {
	if sentinel == "" {
		sentinel = model.SentinelAccessToken
	}
	return &Simulated{real: real, sentinel: sentinel, delay: delay}
}

func (s *Simulated) Platform() string { return s.real.Platform() }

func (s *Simulated) Publish(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error) {
	if cred == nil || cred.AccessToken != s.sentinel {
		return s.real.Publish(ctx, cred, video, target)
	}
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	id := fmt.Sprintf("sim-%s-%d", s.real.Platform(), time.Now().UnixNano())
	logger.GetLogger().WithField("platform", s.real.Platform()).WithField("platform_video_id", id).Info("Simulated publish")
	return &model.RemotePost{
		ID:  id,
		URL: fmt.Sprintf("https://example.com/%s/%s", s.real.Platform(), id),
	}, nil
}

func (s *Simulated) Remove(ctx context.Context, cred *model.Credential, platformVideoID string) error {
	if cred == nil || cred.AccessToken != s.sentinel {
		return s.real.Remove(ctx, cred, platformVideoID)
	}
	if err := s.sleep(ctx); err != nil {
		return err
	}
	logger.GetLogger().WithField("platform", s.real.Platform()).WithField("platform_video_id", platformVideoID).Info("Simulated removal")
	return nil
}

func (s *Simulated) sleep(ctx context.Context) error {
	if s.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return model.NewPublishError(model.ErrClassProtocolTimeout, "simulated call cancelled: %v", ctx.Err())
	case <-time.After(s.delay):
		return nil
	}
}
