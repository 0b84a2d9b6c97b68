package worker

import (
	"context"

	"github.com/appshelf/appshelf/pkg/catalog"
	"github.com/appshelf/appshelf/pkg/scanstate"
	"github.com/robinjoseph08/golib/logger"
)

func (w *Worker) runDeduplicate(ctx context.Context, jl RunLogger) scanstate.Result {
	jl.Info("looking for duplicate package ids", nil)
	w.state.ReportProgress(0, 0, "Merging duplicates...")

	res, err := catalog.MergeDuplicates(ctx, w.catalogService.NewSession())
	if err != nil {
		jl.Error("merge failed", err, nil)
		return scanstate.Result{Err: err}
	}

	for _, g := range res.Groups {
		jl.Info("merged profiles", logger.Data{
			"package_id":       g.PackageID,
			"survivor_id":      g.SurvivorID,
			"removed":          len(g.RemovedIDs),
			"moved_installers": g.MovedInstallers,
		})
	}
	if res.Removed == 0 {
		jl.Info("no duplicates found", nil)
	} else {
		jl.Info("merge complete", logger.Data{"removed": res.Removed})
	}
	return scanstate.Result{Merged: res.Removed}
}
