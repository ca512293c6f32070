package download

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/OEngineer/fetscraper/pkg/errors"
	"github.com/OEngineer/fetscraper/pkg/logger"
)

const (
	defaultFFmpegBinary = "ffmpeg"
	defaultRemuxTimeout = 10 * time.Minute
)

// Remuxer turns a streaming URL into a local file
type Remuxer interface {
	CopyTo(ctx context.Context, streamURL, destPath string) error
}

// FFmpegRemuxer copies an HLS stream into an MP4 container without
// re-encoding, shelling out to ffmpeg.
type FFmpegRemuxer struct {
	// Binary is the ffmpeg executable; defaults to "ffmpeg" on PATH
	Binary string
	// Timeout kills a stuck remux; defaults to ten minutes
	Timeout time.Duration
	Logger  logger.Logger
}

func (r *FFmpegRemuxer) CopyTo(ctx context.Context, streamURL, destPath string) error {
	binary := r.Binary
	if binary == "" {
		binary = defaultFFmpegBinary
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultRemuxTimeout
	}
	log := r.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary,
		"-i", streamURL,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-y", destPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.WithField("dest", destPath).Debug("remuxing stream with ffmpeg")

	err := cmd.Run()
	if err == nil {
		return nil
	}

	// A failed remux leaves no partial file behind
	os.Remove(destPath)

	if ctx.Err() == context.DeadlineExceeded {
		return errors.Download("ffmpeg timed out after %s remuxing %s", timeout, streamURL)
	}
	if execErr, ok := err.(*exec.Error); ok && execErr.Err == exec.ErrNotFound {
		return errors.Download("ffmpeg not found, install it to download HLS streams")
	}
	return errors.Download("ffmpeg failed: %v: %s", err, stderrTail(stderr.String()))
}

// stderrTail keeps the last few lines of ffmpeg output, which is where
// the actual error lands
func stderrTail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return strings.Join(lines, " | ")
}
