package postgres

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"

	C "pitchmetrics/config"
	"pitchmetrics/model"
)

func (store *Postgres) CreateCohort(cohort *model.Cohort) (*model.Cohort, int) {
	db := C.GetServices().Db

	filters, err := cohort.CohortFilters()
	if err != nil {
		return nil, http.StatusBadRequest
	}

	if err := model.ValidateCohortDefinition(cohort.Name, cohort.CohortType,
		cohort.PeriodStart, cohort.PeriodEnd, filters); err != nil {
		log.WithError(err).Error("CreateCohort Failed. Invalid definition.")
		return nil, http.StatusBadRequest
	}

	if err := db.Create(cohort).Error; err != nil {
		log.WithFields(log.Fields{"cohort": cohort}).WithError(err).Error("CreateCohort Failed")
		return nil, http.StatusInternalServerError
	}

	return cohort, http.StatusCreated
}

func (store *Postgres) GetCohort(id uint64) (*model.Cohort, int) {
	db := C.GetServices().Db

	var cohort model.Cohort
	if err := db.Where("id = ?", id).First(&cohort).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, http.StatusNotFound
		}
		return nil, http.StatusInternalServerError
	}

	return &cohort, http.StatusFound
}

// UpdateCohortCounts stores the rebuild-time snapshot of the user
// counts. These are snapshots, not live counts.
func (store *Postgres) UpdateCohortCounts(id uint64, totalUsers, activeUsers int) int {
	db := C.GetServices().Db

	fields := map[string]interface{}{
		"total_users":  totalUsers,
		"active_users": activeUsers,
	}
	query := db.Model(&model.Cohort{}).Where("id = ?", id).Update(fields)
	if query.Error != nil {
		log.WithFields(log.Fields{"id": id, "update": fields}).WithError(
			query.Error).Error("Failed to update cohort counts.")
		return http.StatusInternalServerError
	}

	if query.RowsAffected == 0 {
		return http.StatusNotFound
	}

	return http.StatusAccepted
}

// ReplaceCohortMemberships clears and repopulates a cohort's member
// rows inside one transaction, keeping rebuilds idempotent.
func (store *Postgres) ReplaceCohortMemberships(cohortID uint64,
	memberships []model.CohortMembership) int {

	db := C.GetServices().Db

	tx := db.Begin()
	if tx.Error != nil {
		log.WithError(tx.Error).Error("Failed to begin cohort membership transaction.")
		return http.StatusInternalServerError
	}

	if err := tx.Where("cohort_id = ?", cohortID).Delete(
		&model.CohortMembership{}).Error; err != nil {

		tx.Rollback()
		log.WithError(err).WithField("cohort_id", cohortID).Error(
			"Failed to delete cohort memberships.")
		return http.StatusInternalServerError
	}

	for i := range memberships {
		if memberships[i].ID == "" {
			memberships[i].ID = uuid.New().String()
		}
		if err := tx.Create(&memberships[i]).Error; err != nil {
			tx.Rollback()
			log.WithError(err).WithField("cohort_id", cohortID).Error(
				"Failed to create cohort membership.")
			return http.StatusInternalServerError
		}
	}

	if err := tx.Commit().Error; err != nil {
		log.WithError(err).WithField("cohort_id", cohortID).Error(
			"Failed to commit cohort memberships.")
		return http.StatusInternalServerError
	}

	return http.StatusAccepted
}

func (store *Postgres) GetCohortMemberships(cohortID uint64) ([]model.CohortMembership, int) {
	db := C.GetServices().Db

	var memberships []model.CohortMembership
	if err := db.Order("identity_key ASC").Where("cohort_id = ?",
		cohortID).Find(&memberships).Error; err != nil {

		log.WithError(err).WithField("cohort_id", cohortID).Error(
			"Failed to get cohort memberships.")
		return nil, http.StatusInternalServerError
	}

	return memberships, http.StatusFound
}
