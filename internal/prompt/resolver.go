package prompt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"pressdesk/internal/langfuse"
)

// ErrTemplateNotFound reports a local lookup miss after any remote fallback
// is exhausted. Typed so the orchestrator can refuse to run a stage against
// a missing prompt instead of feeding an error message to the model.
var ErrTemplateNotFound = errors.New("prompt: template not found")

// Resolver turns a Ref into literal template text. Remote failures fall
// through to the local store; a local miss is fatal for the lookup.
type Resolver struct {
	Dir    string
	Remote *langfuse.Client
}

func NewResolver(dir string, remote *langfuse.Client) *Resolver {
	return &Resolver{Dir: dir, Remote: remote}
}

// Resolve fetches the template body for ref. Bodies are never cached: a
// remote edit takes effect on the next run without a restart.
func (r *Resolver) Resolve(ctx context.Context, ref Ref) (string, error) {
	if ref.Name == "" {
		return "", fmt.Errorf("%w: empty name", ErrTemplateNotFound)
	}
	if ref.Source == SourceRemote && r.Remote.Configured() {
		// "latest" is not a real label; it means the service's current version.
		label := ref.Version
		if label == VersionLatest {
			label = ""
		}
		body, err := r.Remote.GetPrompt(ctx, ref.Name, label)
		if err == nil {
			return body, nil
		}
		log.Printf("prompt: remote lookup for %s failed, falling back to local: %v", ref, err)
	}
	return r.resolveLocal(ref.Name)
}

func (r *Resolver) resolveLocal(name string) (string, error) {
	filename := name
	if !strings.HasSuffix(filename, TemplateExt) {
		filename += TemplateExt
	}
	body, err := os.ReadFile(filepath.Join(r.Dir, filename))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, filename)
	}
	return string(body), nil
}
