package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/clients/social"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/logger"
)

type JobKind string

const (
	JobPublish JobKind = "publish"
	JobRemoval JobKind = "removal"
)

// Job is one unit of dispatcher work: publish or retract one target. The
// video descriptor rides along because the target row stores only the
// reference, not the file location.
type Job struct {
	Kind   JobKind
	Target *model.Target
	Video  *model.Video
}

// Platforms whose protocol involves server-side processing polls or chunked
// uploads get the long timeout class; single-call protocols get the short one.
var pollingPlatforms = map[string]bool{
	model.PlatformInstagram: true,
	model.PlatformTikTok:    true,
	model.PlatformX:         true,
	model.PlatformYouTube:   true,
}

// Dispatcher runs publish and removal jobs on a bounded worker pool. Jobs are
// independent: one target's failure never affects its siblings. Every job
// ends in exactly one terminal outcome; retry happens inside the job within
// its attempt budget and hard wall-clock timeout.
type Dispatcher struct {
	cfg      configuration.Dispatcher
	registry *social.Registry
	targets  repository.ITarget
	creds    repository.ICredential
	tokens   *TokenManager
	reporter *StatusReporter
	enhancer *MetadataEnhancer
	queue    chan Job
}

func NewDispatcher(
	cfg configuration.Dispatcher,
	registry *social.Registry,
	targets repository.ITarget,
	creds repository.ICredential,
	tokens *TokenManager,
	reporter *StatusReporter,
	enhancer *MetadataEnhancer,
) *Dispatcher {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		cfg:      cfg,
		registry: registry,
		targets:  targets,
		creds:    creds,
		tokens:   tokens,
		reporter: reporter,
		enhancer: enhancer,
		queue:    make(chan Job, queueSize),
	}
}

// Enqueue hands a job to the pool without blocking the caller. A full queue
// is reported so the API can surface backpressure; the target stays pending
// and can be re-enqueued.
func (d *Dispatcher) Enqueue(job Job) error {
	select {
	case d.queue <- job:
		return nil
	default:
		return fmt.Errorf("dispatcher queue is full")
	}
}

// Start runs the worker pool until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) error {
	workers := d.cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		worker := i
		g.Go(func() error {
			log := logger.GetLogger().WithField("worker", worker)
			log.Info("Dispatcher worker started")
			for {
				select {
				case <-ctx.Done():
					log.Info("Dispatcher worker stopping")
					return nil
				case job := <-d.queue:
					d.Run(ctx, job)
				}
			}
		})
	}
	return g.Wait()
}

// Run executes one job to its terminal outcome. Exposed so the synchronous
// process-jobs path can drive jobs without the pool.
func (d *Dispatcher) Run(ctx context.Context, job Job) {
	switch job.Kind {
	case JobRemoval:
		d.runRemoval(ctx, job)
	default:
		d.runPublish(ctx, job)
	}
}

func (d *Dispatcher) timeoutFor(platform string) time.Duration {
	if pollingPlatforms[platform] {
		return d.cfg.PollingTimeout()
	}
	return d.cfg.DirectTimeout()
}

func (d *Dispatcher) runPublish(ctx context.Context, job Job) {
	target := job.Target
	log := logger.GetLogger().
		WithField("target_id", target.ID).
		WithField("platform", target.Platform).
		WithField("video_id", target.VideoID)

	jobCtx, cancel := context.WithTimeout(ctx, d.timeoutFor(target.Platform))
	defer cancel()

	applied, err := d.targets.MarkProcessing(ctx, target.ID)
	if err != nil {
		log.WithField("error", err).Error("Failed to move target into processing")
		return
	}
	if !applied {
		log.Warn("Target already terminal - skipping publish job")
		return
	}
	target.Status = model.TargetProcessing
	target.AttemptCount++
	d.reporter.Started(ctx, target)

	video := *job.Video
	if enhanced := d.enhancer.Enhance(jobCtx, job.Video); enhanced != nil {
		video.Title = enhanced.Title
		video.Description = enhanced.Description
	}

	maxAttempts := d.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			// Later attempts re-assert processing to bump the attempt counter.
			applied, err := d.targets.MarkProcessing(ctx, target.ID)
			if err != nil {
				// The row is still processing from the previous attempt; a
				// terminal write is owed regardless of the store hiccup.
				log.WithField("error", err).Error("Failed to re-assert processing before retry")
				d.reporter.Fail(ctx, target, "Publishing was interrupted before it could finish - try again")
				return
			}
			if !applied {
				log.Warn("Target moved to a terminal state mid-retry - abandoning job")
				return
			}
			target.AttemptCount++
		}

		remote, err := d.attemptPublish(jobCtx, target, &video)
		if err == nil {
			d.reporter.Succeed(ctx, target, remote)
			log.WithField("platform_video_id", remote.ID).Info("Publish succeeded")
			return
		}

		perr := asPublishError(jobCtx, err)
		if perr.Retryable() && attempt < maxAttempts {
			log.WithField("attempt", attempt).WithField("error", perr).Warn("Attempt failed - retrying")
			d.reporter.AttemptFailed(ctx, target, attempt, perr)
			if !d.backoff(jobCtx, attempt) {
				d.reporter.Fail(ctx, target, timeoutMessage(target.Platform))
				return
			}
			continue
		}

		d.reporter.Fail(ctx, target, failureMessage(perr))
		log.WithField("attempt", attempt).WithField("class", perr.Class).Warn("Publish failed terminally")
		return
	}
}

func (d *Dispatcher) attemptPublish(ctx context.Context, target *model.Target, video *model.Video) (*model.RemotePost, error) {
	cred, err := d.creds.GetCredential(ctx, target.UserID, target.ChannelID, target.Platform)
	if err != nil {
		return nil, model.NewPublishError(model.ErrClassTransientNetwork, "loading credential: %v", err)
	}
	if cred == nil {
		return nil, model.NewPublishError(model.ErrClassPermissionDenied, "no %s account connected for this channel", target.Platform)
	}
	cred, err = d.tokens.EnsureFresh(ctx, cred)
	if err != nil {
		return nil, err
	}
	adapter, err := d.registry.Get(target.Platform)
	if err != nil {
		return nil, model.NewPublishError(model.ErrClassPermissionDenied, "%v", err)
	}
	return adapter.Publish(ctx, cred, video, target)
}

func (d *Dispatcher) runRemoval(ctx context.Context, job Job) {
	target := job.Target
	log := logger.GetLogger().
		WithField("target_id", target.ID).
		WithField("platform", target.Platform)

	if target.PlatformVideoID == nil || *target.PlatformVideoID == "" {
		log.Warn("Removal job for target without a platform video id - nothing to do")
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, d.cfg.DirectTimeout())
	defer cancel()

	err := d.attemptRemoval(jobCtx, target)
	if err != nil {
		// Removal is best-effort; the audit trail records the failure for
		// manual reconciliation.
		log.WithField("error", err).Warn("Removal failed")
	} else {
		log.Info("Removal succeeded")
	}
	d.reporter.Removed(ctx, target, err)
}

func (d *Dispatcher) attemptRemoval(ctx context.Context, target *model.Target) error {
	cred, err := d.creds.GetCredential(ctx, target.UserID, target.ChannelID, target.Platform)
	if err != nil {
		return model.NewPublishError(model.ErrClassTransientNetwork, "loading credential: %v", err)
	}
	if cred == nil {
		return model.NewPublishError(model.ErrClassPermissionDenied, "no %s account connected for this channel", target.Platform)
	}
	cred, err = d.tokens.EnsureFresh(ctx, cred)
	if err != nil {
		return err
	}
	adapter, err := d.registry.Get(target.Platform)
	if err != nil {
		return err
	}
	return adapter.Remove(ctx, cred, *target.PlatformVideoID)
}

// backoff sleeps the exponential delay for the given attempt. Returns false
// when the job context expired first.
func (d *Dispatcher) backoff(ctx context.Context, attempt int) bool {
	base := d.cfg.BackoffSeconds
	if base <= 0 {
		base = 2
	}
	delay := time.Duration(base) * time.Second << (attempt - 1)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

// asPublishError normalizes any attempt error into the taxonomy: a context
// deadline becomes ProtocolTimeout, anything untyped MalformedResponse.
func asPublishError(ctx context.Context, err error) *model.PublishError {
	if perr, ok := model.AsPublishError(err); ok {
		if ctx.Err() != nil && perr.Retryable() {
			return &model.PublishError{Class: model.ErrClassProtocolTimeout, Message: err.Error(), RemoteID: perr.RemoteID}
		}
		return perr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.NewPublishError(model.ErrClassProtocolTimeout, "job exceeded its time budget: %v", err)
	}
	return model.NewPublishError(model.ErrClassMalformedResponse, "%v", err)
}

func failureMessage(perr *model.PublishError) string {
	msg := perr.UserMessage()
	if perr.RemoteID != "" {
		msg = fmt.Sprintf("%s (remote artifact %s)", msg, perr.RemoteID)
	}
	return msg
}

func timeoutMessage(platform string) string {
	return fmt.Sprintf("The %s publish did not finish within its time budget", platform)
}
