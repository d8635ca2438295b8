package searchstring

import (
	"context"
	"log"

	"talentpipe-engine/internal/domain"
	"talentpipe-engine/internal/events"
)

// The refresher keeps an eye on jobs whose terminal state is written
// out-of-band (website and PDF sources). It only reads and publishes;
// the remote processor owns the actual transition.

func (o *Orchestrator) watch(jobID string) {
	o.mu.Lock()
	o.pending[jobID] = struct{}{}
	o.mu.Unlock()
}

func (o *Orchestrator) unwatch(jobID string) {
	o.mu.Lock()
	delete(o.pending, jobID)
	o.mu.Unlock()
}

func (o *Orchestrator) watched() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.pending))
	for id := range o.pending {
		ids = append(ids, id)
	}
	return ids
}

// RefreshPending re-reads every watched job and publishes a terminal
// event for those the remote processor has finished. Canceled jobs are
// dropped from the watch set without an event (Cancel already
// published one). Suitable for scheduler.Every.
func (o *Orchestrator) RefreshPending(ctx context.Context) error {
	for _, id := range o.watched() {
		job, err := o.Get(ctx, id)
		if err != nil {
			log.Printf("[refresh] job=%s: %v", id, err)
			continue
		}
		if !job.Status.Terminal() {
			continue
		}
		o.unwatch(id)
		if job.Status != domain.JobCanceled && o.hub != nil {
			o.hub.Emit(events.TypeSearchJobDone, map[string]any{"id": job.ID, "status": job.Status})
		}
	}
	return nil
}
