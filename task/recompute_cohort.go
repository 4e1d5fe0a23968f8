package task

import (
	"fmt"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"

	C "pitchmetrics/config"
	"pitchmetrics/model"
	"pitchmetrics/model/store"
	U "pitchmetrics/util"
)

func cohortLockName(cohortID uint64) string {
	return fmt.Sprintf("recompute:cohort:%d", cohortID)
}

// computeMemberMetricsConcurrently runs the per-member calculator over
// a fixed worker pool. Members are independent of each other; the
// barrier at the end guarantees aggregation never sees partial rows.
func computeMemberMetricsConcurrently(members []model.CohortMembership,
	eventsByIdentity map[string][]model.Event, nowTimestamp int64) {

	jobs := make(chan int, len(members))

	var wg sync.WaitGroup
	for w := 0; w < numRecomputeWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				model.ComputeMemberMetrics(&members[i],
					eventsByIdentity[members[i].IdentityKey], nowTimestamp)
			}
		}()
	}

	for i := range members {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// RecomputeCohort rebuilds a cohort's membership and per-member
// metrics from scratch. Membership rows are cleared before
// repopulating, keeping refreshes idempotent. The trailing-30-day
// isRetained flag depends on the recomputation time and is always
// recomputed, never carried over.
func RecomputeCohort(cohortID uint64) int {
	logCtx := log.WithField("cohort_id", cohortID)

	mutex := C.NewRecomputeMutex(cohortLockName(cohortID))
	if err := mutex.Lock(); err != nil {
		logCtx.WithError(err).Error("Failed to acquire cohort recompute lock.")
		return http.StatusConflict
	}
	defer mutex.Unlock()

	cohort, errCode := store.GetStore().GetCohort(cohortID)
	if errCode != http.StatusFound {
		return errCode
	}

	filters, err := cohort.CohortFilters()
	if err != nil {
		logCtx.WithError(err).Error("Failed to decode cohort filters.")
		return http.StatusInternalServerError
	}

	qualifyingEvents, errCode := store.GetStore().GetEventsByTypesInRange(
		[]string{cohort.CohortType}, cohort.PeriodStart, cohort.PeriodEnd)
	if errCode != http.StatusFound && errCode != http.StatusNotFound {
		logCtx.Error("Failed to fetch qualifying events for cohort recompute.")
		return http.StatusInternalServerError
	}

	members := model.BuildCohortMembers(cohort, filters, qualifyingEvents)

	// Lifetime value accumulates without time bound, so the activity
	// fetch starts at the epoch, not at the cohort window. A payment
	// made before an identity qualifies still counts.
	nowTimestamp := U.TimeNowUnix()
	activityEvents, errCode := store.GetStore().GetEventsInRange(1, nowTimestamp)
	if errCode != http.StatusFound && errCode != http.StatusNotFound {
		logCtx.Error("Failed to fetch activity events for cohort recompute.")
		return http.StatusInternalServerError
	}

	eventsByIdentity := model.GroupEventsByIdentity(activityEvents)
	computeMemberMetricsConcurrently(members, eventsByIdentity, nowTimestamp)

	activeUsers := 0
	for i := range members {
		if members[i].IsRetained {
			activeUsers++
		}
	}

	errCode = store.GetStore().ReplaceCohortMemberships(cohortID, members)
	if errCode != http.StatusAccepted {
		logCtx.Error("Failed to replace cohort memberships.")
		return errCode
	}

	errCode = store.GetStore().UpdateCohortCounts(cohortID, len(members), activeUsers)
	if errCode != http.StatusAccepted {
		logCtx.Error("Failed to update cohort counts.")
		return errCode
	}

	logCtx.WithFields(log.Fields{"total_users": len(members),
		"active_users": activeUsers}).Info("Cohort recompute finished.")
	return http.StatusOK
}
