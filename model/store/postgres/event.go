package postgres

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"

	C "pitchmetrics/config"
	"pitchmetrics/model"
)

// CreateEvent appends one immutable row to the event log. The id is
// generated here when the producer did not send one.
func (store *Postgres) CreateEvent(event *model.Event) (*model.Event, int) {
	db := C.GetServices().Db

	if event.EventType == "" {
		log.Error("CreateEvent Failed. Missing event type.")
		return nil, http.StatusBadRequest
	}

	if event.UserID == "" && event.SessionID == "" && event.AnonymousID == "" {
		log.Error("CreateEvent Failed. Event without any actor reference.")
		return nil, http.StatusBadRequest
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.Timestamp <= 0 {
		event.Timestamp = time.Now().Unix()
	}

	if err := db.Create(event).Error; err != nil {
		log.WithFields(log.Fields{"event": &event}).WithError(err).Error("CreateEvent Failed")
		return nil, http.StatusInternalServerError
	}

	return event, http.StatusCreated
}

func (store *Postgres) GetEventsInRange(from, to int64) ([]model.Event, int) {
	db := C.GetServices().Db

	if from <= 0 || to <= 0 || from > to {
		return nil, http.StatusBadRequest
	}

	var events []model.Event
	if err := db.Order("timestamp ASC, id ASC").Where(
		"timestamp >= ? AND timestamp <= ?", from, to).Find(&events).Error; err != nil {

		log.WithError(err).Error("Failed to get events in range.")
		return nil, http.StatusInternalServerError
	}

	return events, http.StatusFound
}

func (store *Postgres) GetEventsByTypesInRange(eventTypes []string, from, to int64) ([]model.Event, int) {
	db := C.GetServices().Db

	if len(eventTypes) == 0 {
		return nil, http.StatusBadRequest
	}

	if from <= 0 || to <= 0 || from > to {
		return nil, http.StatusBadRequest
	}

	var events []model.Event
	if err := db.Order("timestamp ASC, id ASC").Where(
		"event_type IN (?) AND timestamp >= ? AND timestamp <= ?",
		eventTypes, from, to).Find(&events).Error; err != nil {

		log.WithError(err).Error("Failed to get events by types in range.")
		return nil, http.StatusInternalServerError
	}

	return events, http.StatusFound
}

// GetIdentityProfile resolves the segmentation attributes of an
// identity from its most recent event.
func (store *Postgres) GetIdentityProfile(identityKey string) (*model.IdentityProfile, int) {
	db := C.GetServices().Db

	userID, sessionID, ok := model.ParseIdentityKey(identityKey)
	if !ok {
		return nil, http.StatusBadRequest
	}

	var events []model.Event
	var err error
	if userID != "" {
		err = db.Limit(1).Order("timestamp DESC").Where("user_id = ?", userID).Find(&events).Error
	} else {
		err = db.Limit(1).Order("timestamp DESC").Where(
			"session_id = ? OR anonymous_id = ?", sessionID, sessionID).Find(&events).Error
	}

	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, http.StatusNotFound
		}
		log.WithError(err).WithField("identity_key", identityKey).Error(
			"Failed to get identity profile.")
		return nil, http.StatusInternalServerError
	}

	if len(events) == 0 {
		return nil, http.StatusNotFound
	}

	return model.ProfileFromEvent(identityKey, &events[0]), http.StatusFound
}
