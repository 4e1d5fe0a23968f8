package model

import "fmt"

// funnelAttempt tracks one traversal of the funnel by one identity.
// States are 0..N: nextStage is the 1-based order of the stage the
// attempt is waiting for.
type funnelAttempt struct {
	sessionID      string
	startTimestamp int64
	nextStage      int
}

// funnelSessionID derives the attempt grouping key from the identity
// and the event that started the attempt, so regeneration over the
// same replay order reproduces identical rows.
func funnelSessionID(identityKey, startEventID string) string {
	return fmt.Sprintf("%s:%s", identityKey, startEventID)
}

// ProcessFunnelEvents replays one identity's chronologically ordered
// events against the funnel definition and emits one progression
// record per stage reached.
//
// Transition rule: at state k the next event advances to k+1 only if
// it matches stage k+1; everything else is ignored. No backtracking,
// no stage skipping. Once event time moves past the attempt's window
// the attempt is abandoned where it stands and the next stage-1 match
// may open a fresh attempt. A stage-1 event seen while an attempt is
// open does not open a second attempt.
func ProcessFunnelEvents(funnel *FunnelDefinition, stages []FunnelStage,
	identityKey string, events []Event) []FunnelProgressRecord {

	records := make([]FunnelProgressRecord, 0)
	if len(stages) < 2 {
		return records
	}

	SortEventsForReplay(events)

	stageCount := len(stages)
	var attempt *funnelAttempt

	for i := range events {
		event := &events[i]

		if attempt != nil &&
			event.Timestamp-attempt.startTimestamp > funnel.TimeWindowInSecs {
			// Window elapsed in event time. Partial progress already
			// recorded stands; nothing further for this attempt.
			attempt = nil
		}

		if attempt == nil {
			if !MatchesStage(event, &stages[0]) {
				continue
			}

			attempt = &funnelAttempt{
				sessionID:      funnelSessionID(identityKey, event.ID),
				startTimestamp: event.Timestamp,
				nextStage:      2,
			}
			records = append(records, FunnelProgressRecord{
				FunnelID:                funnel.ID,
				StageOrder:              1,
				IdentityKey:             identityKey,
				FunnelSessionID:         attempt.sessionID,
				SourceEventID:           event.ID,
				IsCompleted:             false,
				SecondsSinceFunnelStart: 0,
				Timestamp:               event.Timestamp,
			})
			continue
		}

		if !MatchesStage(event, &stages[attempt.nextStage-1]) {
			continue
		}

		stageOrder := attempt.nextStage
		records = append(records, FunnelProgressRecord{
			FunnelID:                funnel.ID,
			StageOrder:              stageOrder,
			IdentityKey:             identityKey,
			FunnelSessionID:         attempt.sessionID,
			SourceEventID:           event.ID,
			IsCompleted:             stageOrder == stageCount,
			SecondsSinceFunnelStart: event.Timestamp - attempt.startTimestamp,
			Timestamp:               event.Timestamp,
		})

		if stageOrder == stageCount {
			// Completed. The next stage-1 match starts over.
			attempt = nil
			continue
		}

		attempt.nextStage++
	}

	return records
}
