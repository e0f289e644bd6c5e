package usecase

import (
	"context"
	"sync"
	"time"

	"crosspost/domain/model"
)

// fakeTargets is an in-memory target store enforcing the same transition
// guards as the SQL repositories.
type fakeTargets struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.Target

	markProcessingCalls int
	markSuccessCalls    int
	markFailedCalls     int
}

func newFakeTargets() *fakeTargets {
	return &fakeTargets{rows: map[int64]*model.Target{}}
}

func (f *fakeTargets) put(t *model.Target) *model.Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == 0 {
		f.nextID++
		t.ID = f.nextID
	} else if t.ID > f.nextID {
		f.nextID = t.ID
	}
	f.rows[t.ID] = t
	return t
}

func (f *fakeTargets) CreateTargets(ctx context.Context, targets []*model.Target) ([]*model.Target, error) {
	out := make([]*model.Target, 0, len(targets))
	for _, t := range targets {
		t.Status = model.TargetPending
		out = append(out, f.put(t))
	}
	return out, nil
}

func (f *fakeTargets) GetByID(ctx context.Context, id int64) (*model.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id], nil
}

func (f *fakeTargets) ListByVideo(ctx context.Context, videoID, userID string) ([]*model.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []*model.Target
	for _, t := range f.rows {
		if t.VideoID == videoID && t.UserID == userID {
			list = append(list, t)
		}
	}
	return list, nil
}

func (f *fakeTargets) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markProcessingCalls++
	t, ok := f.rows[id]
	if !ok || t.Terminal() {
		return false, nil
	}
	t.Status = model.TargetProcessing
	return true, nil
}

func (f *fakeTargets) MarkSuccess(ctx context.Context, id int64, platformVideoID, platformURL string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markSuccessCalls++
	t, ok := f.rows[id]
	if !ok || t.Status != model.TargetProcessing {
		return false, nil
	}
	t.Status = model.TargetSuccess
	t.PlatformVideoID = &platformVideoID
	t.PlatformURL = &platformURL
	t.ErrorMessage = nil
	return true, nil
}

func (f *fakeTargets) MarkFailed(ctx context.Context, id int64, message string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markFailedCalls++
	t, ok := f.rows[id]
	if !ok || t.Status != model.TargetProcessing {
		return false, nil
	}
	t.Status = model.TargetFailed
	t.ErrorMessage = &message
	return true, nil
}

// fakeCreds stores credentials keyed by platform and records rotations.
type fakeCreds struct {
	mu           sync.Mutex
	byPlatform   map[string]*model.Credential
	rotateResult bool
	rotateCalls  int
	rotatedToken string
}

func newFakeCreds(creds ...*model.Credential) *fakeCreds {
	f := &fakeCreds{byPlatform: map[string]*model.Credential{}, rotateResult: true}
	for _, c := range creds {
		f.byPlatform[c.Platform] = c
	}
	return f
}

func (f *fakeCreds) GetCredential(ctx context.Context, userID, channelID, platform string) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byPlatform[platform], nil
}

func (f *fakeCreds) UpsertCredential(ctx context.Context, cred *model.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byPlatform[cred.Platform] = cred
	return nil
}

func (f *fakeCreds) RotateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt, prevExpiry *time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotateCalls++
	f.rotatedToken = accessToken
	return f.rotateResult, nil
}

func (f *fakeCreds) DeleteCredential(ctx context.Context, userID, channelID, platform string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byPlatform, platform)
	return nil
}

// fakeAdapter drives dispatcher tests with scripted publish/remove outcomes.
type fakeAdapter struct {
	platform  string
	publishFn func(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error)
	removeFn  func(ctx context.Context, cred *model.Credential, platformVideoID string) error

	mu           sync.Mutex
	publishCalls int
	removeCalls  int
	lastVideo    *model.Video
}

func (a *fakeAdapter) Platform() string { return a.platform }

func (a *fakeAdapter) Publish(ctx context.Context, cred *model.Credential, video *model.Video, target *model.Target) (*model.RemotePost, error) {
	a.mu.Lock()
	a.publishCalls++
	a.lastVideo = video
	a.mu.Unlock()
	if a.publishFn != nil {
		return a.publishFn(ctx, cred, video, target)
	}
	return &model.RemotePost{ID: "remote-1", URL: "https://example.com/remote-1"}, nil
}

func (a *fakeAdapter) Remove(ctx context.Context, cred *model.Credential, platformVideoID string) error {
	a.mu.Lock()
	a.removeCalls++
	a.mu.Unlock()
	if a.removeFn != nil {
		return a.removeFn(ctx, cred, platformVideoID)
	}
	return nil
}

// captureAudit records emitted audit events in order.
type captureAudit struct {
	mu     sync.Mutex
	events []*model.PublishAudit
}

func (c *captureAudit) Append(ctx context.Context, event *model.PublishAudit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureAudit) eventNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.events))
	for _, e := range c.events {
		names = append(names, e.Event)
	}
	return names
}
