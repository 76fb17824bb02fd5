package usecase

import (
	"strings"

	"calsync/internal/domain"
)

// Skip reasons recorded by the result aggregator.
const (
	SkipSelfCreated     = "self_created"
	SkipAlreadyImported = "already_imported"
	SkipInvalidTime     = "invalid_time"
	SkipOther           = "other"
)

// lastErrorLimit caps how many error messages are persisted on the
// integration; the full list is still returned to the caller.
const lastErrorLimit = 3

// report accumulates per-item outcomes of one pass.
type report struct {
	created  int
	updated  int
	imported int
	skipped  int
	reasons  map[string]int
	errs     []string
}

func newReport() *report {
	return &report{reasons: make(map[string]int)}
}

func (r *report) create()    { r.created++ }
func (r *report) update()    { r.updated++ }
func (r *report) importOne() { r.imported++ }

func (r *report) skip(reason string) {
	r.skipped++
	r.reasons[reason]++
}

func (r *report) fail(item string, err error) {
	r.errs = append(r.errs, item+": "+err.Error())
}

func (r *report) successes() int { return r.created + r.updated + r.imported }

// status derives the pass status: clean passes succeed, mixed outcomes are
// partial, and an error list with zero successes means everything failed.
func (r *report) status() domain.SyncStatus {
	switch {
	case len(r.errs) == 0:
		return domain.StatusSuccess
	case r.successes() > 0:
		return domain.StatusPartial
	default:
		return domain.StatusError
	}
}

// lastError renders the truncated error view persisted on the integration.
func (r *report) lastError() string {
	if len(r.errs) == 0 {
		return ""
	}
	n := len(r.errs)
	if n > lastErrorLimit {
		n = lastErrorLimit
	}
	return strings.Join(r.errs[:n], "; ")
}

func (r *report) result() domain.SyncResult {
	stats := domain.SyncStats{
		Created:  r.created,
		Updated:  r.updated,
		Imported: r.imported,
		Skipped:  r.skipped,
	}
	if len(r.reasons) > 0 {
		stats.SkipReasons = make(map[string]int, len(r.reasons))
		for k, v := range r.reasons {
			stats.SkipReasons[k] = v
		}
	}
	return domain.SyncResult{
		Success:     r.status() != domain.StatusError,
		SyncedCount: r.successes(),
		Errors:      append([]string(nil), r.errs...),
		Stats:       stats,
	}
}
