package social

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"crosspost/domain/model"
	"crosspost/domain/repository"
)

// StaticURLResolver materializes public URLs under the base the external
// storage mirror serves uploaded files from. The mirror itself is a
// collaborator; this core only derives the URL.
type StaticURLResolver struct {
	baseURL string
}

func NewStaticURLResolver(baseURL string) repository.IMediaURLResolver {
	return &StaticURLResolver{baseURL: strings.TrimRight(baseURL, "/")}
}

func (r *StaticURLResolver) PublicURL(_ context.Context, video *model.Video) (string, error) {
	if r.baseURL == "" {
		return "", fmt.Errorf("media public base URL not configured")
	}
	if video == nil || video.FilePath == "" {
		return "", fmt.Errorf("video has no file path")
	}
	u, err := url.Parse(r.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid media base URL %q: %w", r.baseURL, err)
	}
	u.Path = path.Join(u.Path, filepath.Base(video.FilePath))
	return u.String(), nil
}
