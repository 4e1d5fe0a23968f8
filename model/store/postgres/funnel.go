package postgres

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"

	C "pitchmetrics/config"
	"pitchmetrics/model"
)

func (store *Postgres) CreateFunnel(funnel *model.FunnelDefinition) (*model.FunnelDefinition, int) {
	db := C.GetServices().Db

	stages, err := funnel.FunnelStages()
	if err != nil {
		return nil, http.StatusBadRequest
	}

	if err := model.ValidateFunnelDefinition(funnel.Name, stages,
		funnel.TimeWindowInSecs); err != nil {
		log.WithError(err).Error("CreateFunnel Failed. Invalid definition.")
		return nil, http.StatusBadRequest
	}

	if err := db.Create(funnel).Error; err != nil {
		log.WithFields(log.Fields{"funnel": funnel}).WithError(err).Error("CreateFunnel Failed")
		return nil, http.StatusInternalServerError
	}

	return funnel, http.StatusCreated
}

func (store *Postgres) GetFunnel(id uint64) (*model.FunnelDefinition, int) {
	db := C.GetServices().Db

	var funnel model.FunnelDefinition
	if err := db.Where("id = ?", id).First(&funnel).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, http.StatusNotFound
		}
		return nil, http.StatusInternalServerError
	}

	return &funnel, http.StatusFound
}

// UpdateFunnel replaces definition fields wholesale. Stage lists are
// never reordered in place; callers send the complete new list.
func (store *Postgres) UpdateFunnel(id uint64, fields map[string]interface{}) int {
	db := C.GetServices().Db

	if len(fields) == 0 {
		return http.StatusBadRequest
	}

	query := db.Model(&model.FunnelDefinition{}).Where("id = ?", id).Update(fields)
	if query.Error != nil {
		log.WithFields(log.Fields{"id": id, "update": fields}).WithError(
			query.Error).Error("Failed to update funnel.")
		return http.StatusInternalServerError
	}

	if query.RowsAffected == 0 {
		return http.StatusNotFound
	}

	return http.StatusAccepted
}

// ReplaceFunnelProgress atomically swaps the derived progression rows
// of a funnel/date-range: delete then insert inside one transaction,
// so a failed recomputation never leaves partial rows behind.
func (store *Postgres) ReplaceFunnelProgress(funnelID uint64, from, to int64,
	records []model.FunnelProgressRecord) int {

	db := C.GetServices().Db

	tx := db.Begin()
	if tx.Error != nil {
		log.WithError(tx.Error).Error("Failed to begin funnel progress transaction.")
		return http.StatusInternalServerError
	}

	if err := tx.Where("funnel_id = ? AND timestamp >= ? AND timestamp <= ?",
		funnelID, from, to).Delete(&model.FunnelProgressRecord{}).Error; err != nil {

		tx.Rollback()
		log.WithError(err).WithField("funnel_id", funnelID).Error(
			"Failed to delete funnel progress records.")
		return http.StatusInternalServerError
	}

	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.New().String()
		}
		if err := tx.Create(&records[i]).Error; err != nil {
			tx.Rollback()
			log.WithError(err).WithField("funnel_id", funnelID).Error(
				"Failed to create funnel progress record.")
			return http.StatusInternalServerError
		}
	}

	if err := tx.Commit().Error; err != nil {
		log.WithError(err).WithField("funnel_id", funnelID).Error(
			"Failed to commit funnel progress records.")
		return http.StatusInternalServerError
	}

	return http.StatusAccepted
}

func (store *Postgres) GetFunnelProgress(funnelID uint64, from, to int64) ([]model.FunnelProgressRecord, int) {
	db := C.GetServices().Db

	var records []model.FunnelProgressRecord
	if err := db.Order("timestamp ASC, id ASC").Where(
		"funnel_id = ? AND timestamp >= ? AND timestamp <= ?",
		funnelID, from, to).Find(&records).Error; err != nil {

		log.WithError(err).WithField("funnel_id", funnelID).Error(
			"Failed to get funnel progress records.")
		return nil, http.StatusInternalServerError
	}

	return records, http.StatusFound
}
