package advisor

import (
	"context"
	"fmt"

	"skinadvisor/pkg/queue"
)

// HandleJob dispatches a background job to its handler. Wired into the job
// queue as its Handler.
func (a *Advisor) HandleJob(ctx context.Context, job queue.Job) error {
	switch job.Kind {
	case queue.KindTitle:
		return a.GenerateTitle(ctx, job.ConversationID)
	case queue.KindInsight:
		return a.ExtractInsight(ctx, job.ConversationID, job.Specialist)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}
