package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	mid "pitchmetrics/middleware"
	"pitchmetrics/model"
	"pitchmetrics/model/store"
	"pitchmetrics/task"
	U "pitchmetrics/util"
)

type createCohortParams struct {
	Name        string                 `json:"name" binding:"required"`
	CohortType  string                 `json:"cohort_type" binding:"required"`
	PeriodStart int64                  `json:"period_start" binding:"required"`
	PeriodEnd   int64                  `json:"period_end" binding:"required"`
	Filters     []model.PropertyFilter `json:"filters"`
}

func getCohortIdParam(c *gin.Context) (uint64, error) {
	return strconv.ParseUint(c.Params.ByName("cohort_id"), 10, 64)
}

// CreateCohortHandler defines a cohort and builds its membership
// synchronously, so the response already carries the user counts.
//
// curl -X POST -d '{"name":"Jan signups","cohort_type":"registration","period_start":1704067200,"period_end":1706745599}' http://localhost:8080/cohorts
func CreateCohortHandler(c *gin.Context) {
	logCtx := log.WithFields(log.Fields{
		"reqId": U.GetScopeByKeyAsString(c, mid.SCOPE_REQ_ID),
	})

	var params createCohortParams
	if err := c.BindJSON(&params); err != nil {
		logCtx.WithError(err).Error("Create cohort failed. Json decode failed.")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid cohort payload."})
		return
	}

	if err := model.ValidateCohortDefinition(params.Name, params.CohortType,
		params.PeriodStart, params.PeriodEnd, params.Filters); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cohort := &model.Cohort{
		Name:        params.Name,
		CohortType:  params.CohortType,
		PeriodStart: params.PeriodStart,
		PeriodEnd:   params.PeriodEnd,
	}

	if len(params.Filters) > 0 {
		filtersJsonb, err := model.EncodeCohortFilters(params.Filters)
		if err != nil {
			logCtx.WithError(err).Error("Create cohort failed. Filters encode failed.")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create cohort."})
			return
		}
		cohort.Filters = *filtersJsonb
	}

	cohort, errCode := store.GetStore().CreateCohort(cohort)
	if errCode != http.StatusCreated {
		c.AbortWithStatusJSON(errCode, gin.H{"error": "Failed to create cohort."})
		return
	}

	if errCode := task.RecomputeCohort(cohort.ID); errCode != http.StatusOK {
		logCtx.WithField("cohort_id", cohort.ID).Error(
			"Cohort created but initial build failed.")
		c.AbortWithStatusJSON(errCode, gin.H{"error": "Cohort created but membership build failed."})
		return
	}

	// Re-read for the snapshot counts written by the build.
	cohort, errCode = store.GetStore().GetCohort(cohort.ID)
	if errCode != http.StatusFound {
		c.AbortWithStatusJSON(errCode, gin.H{"error": "Failed to read cohort after build."})
		return
	}

	c.JSON(http.StatusCreated, cohort)
}

// RefreshCohortHandler rebuilds a cohort's membership and metrics from
// the event log. Safe to repeat; each run replaces the previous rows.
func RefreshCohortHandler(c *gin.Context) {
	cohortID, err := getCohortIdParam(c)
	if err != nil || cohortID == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid cohort id."})
		return
	}

	errCode := task.RecomputeCohort(cohortID)
	if errCode != http.StatusOK {
		c.AbortWithStatusJSON(errCode, gin.H{"error": "Cohort refresh failed."})
		return
	}

	cohort, errCode := store.GetStore().GetCohort(cohortID)
	if errCode != http.StatusFound {
		c.AbortWithStatusJSON(errCode, gin.H{"error": "Failed to read cohort after refresh."})
		return
	}

	c.JSON(http.StatusOK, cohort)
}

// AnalyzeCohortHandler serves the cohort's metric families from the
// precomputed membership rows. families selects which tables to build
// (comma separated, defaults to all), bounding request cost to what
// the dashboard renders.
//
// curl 'http://localhost:8080/cohorts/1/analyze?families=retention,revenue'
func AnalyzeCohortHandler(c *gin.Context) {
	logCtx := log.WithFields(log.Fields{
		"reqId": U.GetScopeByKeyAsString(c, mid.SCOPE_REQ_ID),
	})

	cohortID, err := getCohortIdParam(c)
	if err != nil || cohortID == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid cohort id."})
		return
	}

	familiesParam := c.Query("families")
	families := []string{model.MetricFamilyRetention, model.MetricFamilyRevenue,
		model.MetricFamilyEngagement, model.MetricFamilyActivity}
	if familiesParam != "" {
		families = strings.Split(familiesParam, ",")
		for _, family := range families {
			if !model.IsValidMetricFamily(family) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid metric family."})
				return
			}
		}
	}

	// Retention offsets to report, defaulting to all fixed offsets.
	var offsetsInDays []int
	if periodsParam := c.Query("periods"); periodsParam != "" {
		for _, period := range strings.Split(periodsParam, ",") {
			offset, err := strconv.Atoi(period)
			if err != nil || !isFixedRetentionOffset(offset) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid retention period."})
				return
			}
			offsetsInDays = append(offsetsInDays, offset)
		}
	}

	hardRefresh := false
	if refreshParam := c.Query("refresh"); refreshParam != "" {
		hardRefresh, _ = strconv.ParseBool(refreshParam)
	}

	cacheKey := model.CohortReportCacheKey(cohortID,
		strings.Join(families, ",")+":"+c.Query("periods"))
	if !hardRefresh {
		if payload, found := getCachedResult(cacheKey); found {
			c.JSON(http.StatusOK, payload)
			return
		}
	}

	cohort, errCode := store.GetStore().GetCohort(cohortID)
	if errCode != http.StatusFound {
		c.AbortWithStatusJSON(errCode, gin.H{"error": "Cohort not found."})
		return
	}

	members, errCode := store.GetStore().GetCohortMemberships(cohortID)
	if errCode != http.StatusFound {
		c.AbortWithStatusJSON(errCode, gin.H{"error": "Cohort analyze failed."})
		return
	}

	report := &model.CohortReport{
		CohortID:    cohort.ID,
		TotalUsers:  cohort.TotalUsers,
		ActiveUsers: cohort.ActiveUsers,
	}

	for _, family := range families {
		switch family {
		case model.MetricFamilyRetention:
			report.Retention = model.BuildCohortRetention(members, offsetsInDays)
		case model.MetricFamilyRevenue:
			report.Revenue = model.BuildCohortRevenue(members)
		case model.MetricFamilyEngagement:
			report.Engagement = model.BuildCohortEngagement(members)
		case model.MetricFamilyActivity:
			activity, errCode := buildCohortActivity(cohort, members)
			if errCode != http.StatusOK {
				logCtx.WithField("cohort_id", cohortID).Error(
					"Failed to build weekly activity histogram.")
				c.AbortWithStatusJSON(errCode, gin.H{"error": "Cohort analyze failed."})
				return
			}
			report.Activity = activity
		}
	}

	version := setCachedResult(cacheKey, report, model.CacheTTLCohortReportInSecs)
	c.JSON(http.StatusOK, AnalyzeResponsePayload{
		Result:      report,
		Cache:       false,
		RefreshedAt: U.TimeNowUnix(),
		Version:     version,
	})
}

func isFixedRetentionOffset(offsetInDays int) bool {
	for _, offset := range model.RetentionOffsetsInDays {
		if offset == offsetInDays {
			return true
		}
	}
	return false
}

// buildCohortActivity needs the raw events since the period start, the
// only cohort family not answerable from membership rows alone.
func buildCohortActivity(cohort *model.Cohort,
	members []model.CohortMembership) ([]model.WeeklyActivityBucket, int) {

	if len(members) == 0 {
		return []model.WeeklyActivityBucket{}, http.StatusOK
	}

	events, errCode := store.GetStore().GetEventsInRange(cohort.PeriodStart, U.TimeNowUnix())
	if errCode != http.StatusFound {
		if errCode == http.StatusNotFound {
			return []model.WeeklyActivityBucket{}, http.StatusOK
		}
		return nil, errCode
	}

	return model.BuildWeeklyActivity(members, model.GroupEventsByIdentity(events)), http.StatusOK
}
