package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm/dialects/postgres"
	log "github.com/sirupsen/logrus"

	mid "pitchmetrics/middleware"
	"pitchmetrics/model"
	"pitchmetrics/model/store"
	"pitchmetrics/services/enrich"
	U "pitchmetrics/util"
)

type createEventParams struct {
	EventType   string                 `json:"event_type" binding:"required"`
	UserID      string                 `json:"user_id"`
	SessionID   string                 `json:"session_id"`
	AnonymousID string                 `json:"anonymous_id"`
	PitchID     int64                  `json:"pitch_id"`
	Page        string                 `json:"page"`
	Device      string                 `json:"device"`
	Country     string                 `json:"country"`
	Amount      float64                `json:"amount"`
	Timestamp   int64                  `json:"timestamp"`
	Properties  map[string]interface{} `json:"properties"`
}

// CreateEventHandler appends one event to the log. Producers are the
// portal backends; events are immutable once recorded.
//
// curl -X POST -d '{"event_type":"pitch_view","session_id":"s1","pitch_id":42}' http://localhost:8080/events
func CreateEventHandler(c *gin.Context) {
	logCtx := log.WithFields(log.Fields{
		"reqId": U.GetScopeByKeyAsString(c, mid.SCOPE_REQ_ID),
	})

	var params createEventParams
	if err := c.BindJSON(&params); err != nil {
		logCtx.WithError(err).Error("Create event failed. Json decode failed.")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid event payload."})
		return
	}

	var properties postgres.Jsonb
	if params.Properties != nil {
		propertiesJsonb, err := U.EncodeToPostgresJsonb(params.Properties)
		if err != nil {
			logCtx.WithError(err).Error("Create event failed. Properties encode failed.")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid event properties."})
			return
		}
		properties = *propertiesJsonb
	}

	event := &model.Event{
		EventType:   params.EventType,
		UserID:      params.UserID,
		SessionID:   params.SessionID,
		AnonymousID: params.AnonymousID,
		PitchID:     params.PitchID,
		Page:        params.Page,
		Device:      params.Device,
		Country:     params.Country,
		Amount:      params.Amount,
		Timestamp:   params.Timestamp,
		Properties:  properties,
	}
	enrich.FillEventContext(event, c.Request.UserAgent(), c.ClientIP())

	event, errCode := store.GetStore().CreateEvent(event)
	if errCode != http.StatusCreated {
		c.AbortWithStatusJSON(errCode, gin.H{"error": "Failed to create event."})
		return
	}

	c.JSON(http.StatusCreated, event)
}
