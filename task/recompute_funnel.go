package task

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	C "pitchmetrics/config"
	"pitchmetrics/model"
	"pitchmetrics/model/store"
)

const numRecomputeWorkers = 8

func funnelLockName(funnelID uint64) string {
	return fmt.Sprintf("recompute:funnel:%d", funnelID)
}

// processIdentitiesConcurrently fans the per-identity replays out over
// a fixed worker pool and fans the resulting records back in. Identity
// streams are independent; only the collected result is ordered.
func processIdentitiesConcurrently(funnel *model.FunnelDefinition,
	stages []model.FunnelStage, byIdentity map[string][]model.Event) []model.FunnelProgressRecord {

	identityKeys := make([]string, 0, len(byIdentity))
	for identityKey := range byIdentity {
		identityKeys = append(identityKeys, identityKey)
	}

	jobs := make(chan string, len(identityKeys))
	results := make(chan []model.FunnelProgressRecord, len(identityKeys))

	var wg sync.WaitGroup
	for w := 0; w < numRecomputeWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for identityKey := range jobs {
				results <- model.ProcessFunnelEvents(funnel, stages,
					identityKey, byIdentity[identityKey])
			}
		}()
	}

	for _, identityKey := range identityKeys {
		jobs <- identityKey
	}
	close(jobs)
	wg.Wait()
	close(results)

	records := make([]model.FunnelProgressRecord, 0)
	for identityRecords := range results {
		records = append(records, identityRecords...)
	}

	// Stable row order regardless of worker scheduling.
	sort.Slice(records, func(i, j int) bool {
		if records[i].Timestamp != records[j].Timestamp {
			return records[i].Timestamp < records[j].Timestamp
		}
		return records[i].SourceEventID < records[j].SourceEventID
	})

	return records
}

// RecomputeFunnel replays the event range against the funnel
// definition and regenerates its progression records. The command is
// idempotent: prior derived rows in the range are cleared before
// repopulating. Concurrent recomputations of the same funnel are
// serialized by a distributed per-id mutex; different funnels do not
// block each other.
func RecomputeFunnel(funnelID uint64, from, to int64) int {
	logCtx := log.WithFields(log.Fields{"funnel_id": funnelID, "from": from, "to": to})

	if from <= 0 || to <= 0 || from > to {
		return http.StatusBadRequest
	}

	mutex := C.NewRecomputeMutex(funnelLockName(funnelID))
	if err := mutex.Lock(); err != nil {
		logCtx.WithError(err).Error("Failed to acquire funnel recompute lock.")
		return http.StatusConflict
	}
	defer mutex.Unlock()

	funnel, errCode := store.GetStore().GetFunnel(funnelID)
	if errCode != http.StatusFound {
		return errCode
	}

	stages, err := funnel.FunnelStages()
	if err != nil {
		logCtx.WithError(err).Error("Failed to decode funnel stages.")
		return http.StatusInternalServerError
	}

	events, errCode := store.GetStore().GetEventsByTypesInRange(
		model.StageEventTypes(stages), from, to)
	if errCode != http.StatusFound && errCode != http.StatusNotFound {
		logCtx.Error("Failed to fetch events for funnel recompute.")
		return http.StatusInternalServerError
	}

	byIdentity := model.GroupEventsByIdentity(events)
	records := processIdentitiesConcurrently(funnel, stages, byIdentity)

	errCode = store.GetStore().ReplaceFunnelProgress(funnelID, from, to, records)
	if errCode != http.StatusAccepted {
		logCtx.Error("Failed to replace funnel progress records.")
		return errCode
	}

	logCtx.WithFields(log.Fields{"identities": len(byIdentity),
		"records": len(records)}).Info("Funnel recompute finished.")
	return http.StatusOK
}
