// Package repair drives one bootloader repair: it prepares a chroot for a
// discovered root, reinstalls the bootloader inside it and makes sure the
// firmware has a boot entry for the result.
package repair

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sigreer/bootmend/internal/chroot"
	"github.com/sigreer/bootmend/internal/db"
	"github.com/sigreer/bootmend/internal/distro"
	"github.com/sigreer/bootmend/internal/procerr"
	"github.com/sigreer/bootmend/internal/reinstall"
	"github.com/sigreer/bootmend/internal/roots"
	"github.com/sigreer/bootmend/internal/sysexec"
	"github.com/sigreer/bootmend/internal/uefi"
)

// Stage names a step of the repair pipeline.
type Stage string

const (
	StagePrepare   Stage = "prepare chroot"
	StageLocateESP Stage = "locate ESP"
	StageLoader    Stage = "resolve loader"
	StageReinstall Stage = "reinstall bootloader"
	StageEntries   Stage = "check boot entries"
	StageAddEntry  Stage = "add boot entry"
)

// StageError is a failure of one pipeline stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Journal records repair runs. *db.DB implements it.
type Journal interface {
	BeginRun(run *db.Run) error
	FinishRun(id, status, errorKind, errMsg string) error
	RecordMounts(runID string, mounts []db.MountRecord) error
}

// Repairer runs the repair pipeline.
type Repairer struct {
	Runner   sysexec.Runner
	Preparer *chroot.Preparer
	// Helper is the reinstall child binary; empty means reinstall.DefaultHelper.
	Helper string
	// Journal is optional.
	Journal Journal

	reinstall func(ctx context.Context, helper, chrootDir string, d distro.Distribution) error
}

// Result summarises a repair or a plan.
type Result struct {
	RunID      string `json:"run_id,omitempty"`
	ESP        string `json:"esp"`
	Loader     string `json:"loader"`
	Label      string `json:"label"`
	EntryAdded bool   `json:"entry_added"`
}

// Plan resolves the ESP and loader path for root without changing anything.
func (r *Repairer) Plan(ctx context.Context, root roots.DiscoveredRoot) (*Result, error) {
	path, err := uefi.LoaderPath(root.Distribution)
	if err != nil {
		return nil, &StageError{Stage: StageLoader, Err: err}
	}
	esp, err := uefi.LocateESP(ctx, r.Runner)
	if err != nil {
		return nil, &StageError{Stage: StageLocateESP, Err: err}
	}
	return &Result{ESP: esp, Loader: path, Label: root.Distribution.LoaderName()}, nil
}

// Fix repairs the bootloader of root. The chroot mounts are left in place
// and recorded in the journal for a later cleanup.
func (r *Repairer) Fix(ctx context.Context, root roots.DiscoveredRoot) (res *Result, err error) {
	res = &Result{Label: root.Distribution.LoaderName()}
	res.RunID = r.begin(root)
	defer func() { r.finish(res.RunID, err) }()

	// Nothing is mounted for a distribution that has no known loader
	res.Loader, err = uefi.LoaderPath(root.Distribution)
	if err != nil {
		return res, &StageError{Stage: StageLoader, Err: err}
	}

	prep, err := r.Preparer.Prepare(ctx, chroot.Target{
		Device:       root.DevicePath(),
		Subvolume:    root.Subvolume,
		Distribution: root.Distribution,
	})
	if err != nil {
		return res, &StageError{Stage: StagePrepare, Err: err}
	}
	r.recordMounts(res.RunID, prep.Mounts)

	res.ESP, err = uefi.LocateESP(ctx, r.Runner)
	if err != nil {
		return res, &StageError{Stage: StageLocateESP, Err: err}
	}

	install := r.reinstall
	if install == nil {
		install = reinstall.Run
	}
	if err := install(ctx, r.Helper, prep.Root, prep.Distribution); err != nil {
		return res, &StageError{Stage: StageReinstall, Err: err}
	}

	present, err := uefi.HasEntry(ctx, r.Runner, res.Loader)
	if err != nil {
		return res, &StageError{Stage: StageEntries, Err: err}
	}
	if present {
		log.Info().Str("loader", res.Loader).Msg("boot entry already present")
		return res, nil
	}

	if err := uefi.AddEntry(ctx, r.Runner, res.Label, res.ESP, res.Loader); err != nil {
		return res, &StageError{Stage: StageAddEntry, Err: err}
	}
	res.EntryAdded = true
	return res, nil
}

func (r *Repairer) begin(root roots.DiscoveredRoot) string {
	if r.Journal == nil {
		return ""
	}
	run := &db.Run{
		Device:       root.Device,
		Subvolume:    root.Subvolume,
		Distribution: root.Distribution.String(),
		Hostname:     root.Hostname,
	}
	if err := r.Journal.BeginRun(run); err != nil {
		log.Warn().Err(err).Msg("journal unavailable, run not recorded")
		return ""
	}
	return run.ID
}

func (r *Repairer) recordMounts(runID string, mounts []chroot.Mount) {
	if r.Journal == nil || runID == "" {
		return
	}
	records := make([]db.MountRecord, 0, len(mounts))
	for _, m := range mounts {
		records = append(records, db.MountRecord{Source: m.Source, Target: m.Target})
	}
	if err := r.Journal.RecordMounts(runID, records); err != nil {
		log.Warn().Err(err).Str("run", runID).Msg("failed to record mounts")
	}
}

func (r *Repairer) finish(runID string, err error) {
	if r.Journal == nil || runID == "" {
		return
	}
	status, kind, msg := db.StatusOK, "", ""
	if err != nil {
		status, msg = db.StatusFailed, err.Error()
		if k, ok := procerr.KindOf(err); ok {
			kind = k.String()
		}
	}
	if jErr := r.Journal.FinishRun(runID, status, kind, msg); jErr != nil {
		log.Warn().Err(jErr).Str("run", runID).Msg("failed to record run result")
	}
}
