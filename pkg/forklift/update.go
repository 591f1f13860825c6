package forklift

import (
	"context"
	"log/slog"

	"github.com/bascanada/forklift-ops/pkg/search"
)

type Updater struct {
	client search.Client
	logger *slog.Logger
}

func NewUpdater(client search.Client, logger *slog.Logger) *Updater {
	return &Updater{client: client, logger: logger}
}

// Update sets step on one record. It returns once the backend answered or
// failed; failures are logged and never reported, so returning says nothing
// about whether the write happened.
func (u *Updater) Update(ctx context.Context, index, id, step string) {
	err := u.client.Update(ctx, index, id, search.Map{fieldStep: step})
	if err != nil {
		u.logger.Error("update failed", "index", index, "id", id, "step", step, "err", err)
		return
	}
	u.logger.Info("record updated", "index", index, "id", id, "step", step)
}
