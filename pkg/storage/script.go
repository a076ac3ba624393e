package storage

import (
	"fmt"
	"strings"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/models"
)

// partialFailureMarker prefixes the stage-tag line in the script's output.
// The caller scans captured output for it; it must never appear in rsync's
// own output.
const partialFailureMarker = "SYNC_PARTIAL_FAILURE:"

// exitNoConfig is the script's exit status when neither config path holds a
// non-empty config file. Distinguishable from rsync failures, which are
// caught in-script.
const exitNoConfig = 1

// syncStage is one independently-catchable mirror operation. A stage failure
// appends the tag to the in-script error list instead of aborting the run.
type syncStage struct {
	name    string
	tag     models.StageTag
	command string
}

// syncScript compiles an ordered stage list into a single shell invocation.
// One subprocess per sync is a hard resource invariant: the host platform
// does not reclaim subprocess handles, so stage multiplicity must never
// translate into process multiplicity.
type syncScript struct {
	configPaths []string // probed in order for a non-empty config file
	stages      []syncStage
	markerPath  string // remote timestamp marker, written unconditionally
}

// newSyncScript builds the standard three-stage mirror script for the given
// mount point.
func newSyncScript(mountPoint string) *syncScript {
	rsync := "rsync -r --delete --no-times --no-perms"

	return &syncScript{
		configPaths: []string{
			"$HOME/.openclaw",
			"$HOME/.config/openclaw",
		},
		stages: []syncStage{
			{
				name: "config",
				tag:  models.StageConfigFailed,
				command: fmt.Sprintf(
					"%s --exclude '*.tmp' --exclude '*.lock' \"$CONFIG_DIR/\" %s/openclaw/",
					rsync, mountPoint),
			},
			{
				name: "workspace",
				tag:  models.StageWorkspaceFailed,
				command: fmt.Sprintf(
					"%s --exclude 'skills' \"$HOME/workspace/\" %s/workspace/",
					rsync, mountPoint),
			},
			{
				name: "skills",
				tag:  models.StageSkillsFailed,
				command: fmt.Sprintf(
					"%s \"$HOME/workspace/skills/\" %s/skills/",
					rsync, mountPoint),
			},
		},
		markerPath: mountPoint + "/.last-sync",
	}
}

// Build renders the script. Output contract, relied on by the caller:
// the partial-failure line (when any stage failed) precedes the marker
// content, and the timestamp is always the last non-empty line.
func (s *syncScript) Build() string {
	var b strings.Builder

	b.WriteString("set -u\n")

	// Config detection: primary path first, then the legacy fallback. No
	// remote writes happen before this check passes.
	b.WriteString("CONFIG_DIR=\"\"\n")

	for _, path := range s.configPaths {
		fmt.Fprintf(&b, "if [ -z \"$CONFIG_DIR\" ] && [ -s \"%s/openclaw.json\" ]; then CONFIG_DIR=\"%s\"; fi\n",
			path, path)
	}

	fmt.Fprintf(&b, "if [ -z \"$CONFIG_DIR\" ]; then echo 'no config file found' >&2; exit %d; fi\n",
		exitNoConfig)

	b.WriteString("SYNC_ERRORS=\"\"\n")

	for _, stage := range s.stages {
		fmt.Fprintf(&b, "{ %s ; } || SYNC_ERRORS=\"$SYNC_ERRORS %s\"\n", stage.command, stage.tag)
	}

	// The marker write is unconditional so a partial backup is still dated.
	fmt.Fprintf(&b, "date -u +%%Y-%%m-%%dT%%H:%%M:%%SZ > %s\n", s.markerPath)
	fmt.Fprintf(&b, "if [ -n \"$SYNC_ERRORS\" ]; then echo \"%s$SYNC_ERRORS\"; fi\n", partialFailureMarker)
	fmt.Fprintf(&b, "cat %s\n", s.markerPath)

	return b.String()
}
