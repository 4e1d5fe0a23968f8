package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	cacheRedis "pitchmetrics/cache/redis"
	mid "pitchmetrics/middleware"
	"pitchmetrics/model"
	"pitchmetrics/model/store"
	"pitchmetrics/services/enrich"
	"pitchmetrics/task"
	U "pitchmetrics/util"
)

// AnalyzeResponsePayload wraps aggregate results for dashboards with
// the cache disposition of the answer.
type AnalyzeResponsePayload struct {
	Result      interface{} `json:"result"`
	Cache       bool        `json:"cache"`
	RefreshedAt int64       `json:"refreshed_at"`
	Version     int64       `json:"version,omitempty"`
}

type createFunnelParams struct {
	Name             string              `json:"name" binding:"required"`
	Description      string              `json:"description"`
	Stages           []model.FunnelStage `json:"stages" binding:"required"`
	TimeWindowInSecs int64               `json:"time_window_in_secs" binding:"required"`
}

type updateFunnelParams struct {
	Stages           []model.FunnelStage `json:"stages"`
	TimeWindowInSecs int64               `json:"time_window_in_secs"`
	Active           *bool               `json:"active"`
}

func getFunnelIdParam(c *gin.Context) (uint64, error) {
	return strconv.ParseUint(c.Params.ByName("funnel_id"), 10, 64)
}

// CreateFunnelHandler defines a funnel. Invalid definitions are
// rejected synchronously; nothing partial is persisted.
//
// curl -X POST -d '{"name":"Pitch to NDA","stages":[{"name":"View","event_type":"pitch_view"},{"name":"NDA","event_type":"nda_signed"}],"time_window_in_secs":86400}' http://localhost:8080/funnels
func CreateFunnelHandler(c *gin.Context) {
	logCtx := log.WithFields(log.Fields{
		"reqId": U.GetScopeByKeyAsString(c, mid.SCOPE_REQ_ID),
	})

	var params createFunnelParams
	if err := c.BindJSON(&params); err != nil {
		logCtx.WithError(err).Error("Create funnel failed. Json decode failed.")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid funnel payload."})
		return
	}

	if err := model.ValidateFunnelDefinition(params.Name, params.Stages,
		params.TimeWindowInSecs); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stagesJsonb, err := model.EncodeFunnelStages(params.Stages)
	if err != nil {
		logCtx.WithError(err).Error("Create funnel failed. Stages encode failed.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create funnel."})
		return
	}

	funnel := &model.FunnelDefinition{
		Name:             params.Name,
		Description:      params.Description,
		Stages:           *stagesJsonb,
		TimeWindowInSecs: params.TimeWindowInSecs,
		Active:           true,
	}

	funnel, errCode := store.GetStore().CreateFunnel(funnel)
	if errCode != http.StatusCreated {
		c.AbortWithStatusJSON(errCode, gin.H{"error": "Failed to create funnel."})
		return
	}

	c.JSON(http.StatusCreated, funnel)
}

// UpdateFunnelHandler replaces the stage list, time window or active
// flag wholesale. Stage lists are never edited in place.
func UpdateFunnelHandler(c *gin.Context) {
	logCtx := log.WithFields(log.Fields{
		"reqId": U.GetScopeByKeyAsString(c, mid.SCOPE_REQ_ID),
	})

	funnelID, err := getFunnelIdParam(c)
	if err != nil || funnelID == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid funnel id."})
		return
	}

	var params updateFunnelParams
	if err := c.BindJSON(&params); err != nil {
		logCtx.WithError(err).Error("Update funnel failed. Json decode failed.")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid funnel payload."})
		return
	}

	fields := make(map[string]interface{})

	if params.Stages != nil {
		windowInSecs := params.TimeWindowInSecs
		if windowInSecs == 0 {
			// Window unchanged; validate the new stage list alone.
			windowInSecs = 1
		}
		if err := model.ValidateFunnelDefinition("update", params.Stages,
			windowInSecs); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		stagesJsonb, err := model.EncodeFunnelStages(params.Stages)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update funnel."})
			return
		}
		fields["stages"] = *stagesJsonb
	}

	if params.TimeWindowInSecs > 0 {
		fields["time_window_in_secs"] = params.TimeWindowInSecs
	}

	if params.Active != nil {
		fields["active"] = *params.Active
	}

	if len(fields) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Nothing to update."})
		return
	}

	errCode := store.GetStore().UpdateFunnel(funnelID, fields)
	if errCode != http.StatusAccepted {
		c.AbortWithStatusJSON(errCode, gin.H{"error": "Failed to update funnel."})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "success"})
}

// RecomputeFunnelHandler triggers the idempotent recompute command for
// a funnel over a date range. Manual triggers, schedulers and webhooks
// all issue the same command.
func RecomputeFunnelHandler(c *gin.Context) {
	funnelID, err := getFunnelIdParam(c)
	if err != nil || funnelID == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid funnel id."})
		return
	}

	from, to, ok := getRangeParams(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid date range."})
		return
	}

	errCode := task.RecomputeFunnel(funnelID, from, to)
	if errCode != http.StatusOK {
		c.AbortWithStatusJSON(errCode, gin.H{"error": "Funnel recompute failed."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func getRangeParams(c *gin.Context) (int64, int64, bool) {
	from, err := strconv.ParseInt(c.Query("from"), 10, 64)
	if err != nil || from <= 0 {
		return 0, 0, false
	}

	to, err := strconv.ParseInt(c.Query("to"), 10, 64)
	if err != nil || to <= 0 || from > to {
		return 0, 0, false
	}

	return from, to, true
}

// AnalyzeFunnelHandler computes the conversion-rate, drop-off and
// time-to-convert tables for a funnel and date range, read through the
// metrics cache unless a refresh is forced. Cache failures degrade to
// direct recomputation; the cache is never the system of record.
//
// curl 'http://localhost:8080/funnels/1/analyze?from=1704067200&to=1704671999&granularity=day&segment_by=device'
func AnalyzeFunnelHandler(c *gin.Context) {
	logCtx := log.WithFields(log.Fields{
		"reqId": U.GetScopeByKeyAsString(c, mid.SCOPE_REQ_ID),
	})

	funnelID, err := getFunnelIdParam(c)
	if err != nil || funnelID == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid funnel id."})
		return
	}

	from, to, ok := getRangeParams(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid date range."})
		return
	}

	granularity := c.Query("granularity")
	if granularity != "" && !U.IsValidGranularity(granularity) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid granularity."})
		return
	}

	segmentBy := c.Query("segment_by")
	if segmentBy != "" && !model.IsValidSegmentDimension(segmentBy) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid segment dimension."})
		return
	}

	hardRefresh := false
	if refreshParam := c.Query("refresh"); refreshParam != "" {
		hardRefresh, _ = strconv.ParseBool(refreshParam)
	}

	cacheKey := model.FunnelReportCacheKey(funnelID, from, to, granularity, segmentBy)
	if !hardRefresh {
		if payload, found := getCachedResult(cacheKey); found {
			c.JSON(http.StatusOK, payload)
			return
		}
	}

	funnel, errCode := store.GetStore().GetFunnel(funnelID)
	if errCode != http.StatusFound {
		c.AbortWithStatusJSON(errCode, gin.H{"error": "Funnel not found."})
		return
	}

	stages, err := funnel.FunnelStages()
	if err != nil {
		logCtx.WithError(err).Error("Failed to decode funnel stages on analyze.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Funnel analyze failed."})
		return
	}

	records, errCode := store.GetStore().GetFunnelProgress(funnelID, from, to)
	if errCode != http.StatusFound {
		c.AbortWithStatusJSON(errCode, gin.H{"error": "Funnel analyze failed."})
		return
	}

	report := model.BuildFunnelReport(funnel, stages, records, from, to,
		granularity, segmentBy, enrich.SegmentLookup(segmentBy))

	version := setCachedResult(cacheKey, report, model.CacheTTLFunnelReportInSecs)
	c.JSON(http.StatusOK, AnalyzeResponsePayload{
		Result:      report,
		Cache:       false,
		RefreshedAt: U.TimeNowUnix(),
		Version:     version,
	})
}

// getCachedResult reads through redis first, then the durable cache
// rows, honoring the entry's expiry.
func getCachedResult(cacheKey string) (*AnalyzeResponsePayload, bool) {
	redisKey, err := cacheRedis.NewKey(cacheKey, "")
	if err != nil {
		return nil, false
	}

	if cached, err := cacheRedis.Get(redisKey); err == nil && cached != "" {
		return &AnalyzeResponsePayload{
			Result:      json.RawMessage(cached),
			Cache:       true,
			RefreshedAt: U.TimeNowUnix(),
		}, true
	}

	entry, errCode := store.GetStore().GetCacheEntry(cacheKey)
	if errCode != http.StatusFound {
		return nil, false
	}

	if entry.Expired(U.TimeNowUnix()) {
		return nil, false
	}

	return &AnalyzeResponsePayload{
		Result:      json.RawMessage(entry.Data.RawMessage),
		Cache:       true,
		RefreshedAt: entry.LastUpdated.Unix(),
		Version:     entry.Version,
	}, true
}

// setCachedResult upserts both cache tiers best effort. A failed cache
// write only costs the next reader a recompute.
func setCachedResult(cacheKey string, result interface{}, ttlInSecs int64) int64 {
	data, err := json.Marshal(result)
	if err != nil {
		log.WithError(err).WithField("cache_key", cacheKey).Error(
			"Failed to marshal aggregate result for cache.")
		return 0
	}

	var version int64
	entry, errCode := store.GetStore().UpsertCacheEntry(cacheKey, data, ttlInSecs)
	if errCode == http.StatusAccepted {
		version = entry.Version
	}

	if redisKey, err := cacheRedis.NewKey(cacheKey, ""); err == nil {
		if err := cacheRedis.Set(redisKey, string(data), float64(ttlInSecs)); err != nil {
			log.WithError(err).WithField("cache_key", cacheKey).Debug(
				"Failed to set redis cache entry.")
		}
	}

	return version
}
