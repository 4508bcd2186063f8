package download

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hbomb79/Siphon/pkg/logger"
)

// OutputKind is the container the client asked for.
type OutputKind string

const (
	VideoContainer OutputKind = "mp4"
	AudioContainer OutputKind = "mp3"
)

// ParseOutputKind accepts the output kind case-insensitively.
func ParseOutputKind(s string) (OutputKind, error) {
	switch kind := OutputKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case VideoContainer, AudioContainer:
		return kind, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

// ContentType is the MIME type of the produced file.
func (kind OutputKind) ContentType() string {
	if kind == AudioContainer {
		return "audio/mpeg"
	}
	return "video/mp4"
}

type Stage string

const (
	StageValidating Stage = "validating"
	StageFetching   Stage = "fetching"
	StageConverting Stage = "converting"
	StageReady      Stage = "ready"
	StageError      Stage = "error"
	StageScheduled  Stage = "scheduled-for-cleanup"
	StageRemoved    Stage = "removed"
)

// Job tracks a single ProduceFile call. It is owned by that call until the
// artifact is released, after which only the cleanup scheduler touches it,
// so it needs no locking.
type Job struct {
	ID          uuid.UUID
	URL         string
	FormatID    string
	Kind        OutputKind
	StagingPath string
	FinalPath   string
	Stage       Stage
}

func newJob(url string, formatID string, kind OutputKind) *Job {
	return &Job{ID: uuid.New(), URL: url, FormatID: formatID, Kind: kind, Stage: StageValidating}
}

func (job *Job) advance(stage Stage) {
	log.Emit(logger.DEBUG, "Job %s: %s -> %s\n", job.ID, job.Stage, stage)
	job.Stage = stage
}
