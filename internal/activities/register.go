package activities

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
)

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivityWithOptions(a.ExtractTextActivity, activity.RegisterOptions{Name: ExtractTextName})
	w.RegisterActivityWithOptions(a.RegisterDocumentActivity, activity.RegisterOptions{Name: RegisterDocumentName})
	w.RegisterActivityWithOptions(a.PlanChunksActivity, activity.RegisterOptions{Name: PlanChunksName})
	w.RegisterActivityWithOptions(a.StoreChunkActivity, activity.RegisterOptions{Name: StoreChunkName})
}
