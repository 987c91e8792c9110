package setup

import (
	"context"
	"fmt"
	"os"
)

// runImageBuild builds the stack's container images. On Linux the build maps
// the host user into the web image so bind-mounted files stay writable, which
// CANVAS_SKIP_DOCKER_USERMOD suppresses.
func (b *bootstrapper) runImageBuild(ctx context.Context, _ *stageContext) error {
	args := []string{"build"}
	if b.cfg.hostOS == "linux" && !b.cfg.skipUsermod {
		args = append(args, "--build-arg", fmt.Sprintf("USER_ID=%d", os.Getuid()))
	}
	return b.compose(ctx, args...)
}

// runStackStart brings up the whole stack in the background: postgres, redis,
// the web app, the webpack watcher, and the delayed jobs worker.
func (b *bootstrapper) runStackStart(ctx context.Context, _ *stageContext) error {
	return b.compose(ctx, "up", "-d")
}
