package postgres

import (
	"net/http"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/jinzhu/gorm/dialects/postgres"
	log "github.com/sirupsen/logrus"

	C "pitchmetrics/config"
	"pitchmetrics/model"
)

func (store *Postgres) GetCacheEntry(cacheKey string) (*model.CacheEntry, int) {
	db := C.GetServices().Db

	if cacheKey == "" {
		return nil, http.StatusBadRequest
	}

	var entry model.CacheEntry
	if err := db.Where("cache_key = ?", cacheKey).First(&entry).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, http.StatusNotFound
		}
		log.WithError(err).WithField("cache_key", cacheKey).Error(
			"Failed to get cache entry.")
		return nil, http.StatusInternalServerError
	}

	return &entry, http.StatusFound
}

// UpsertCacheEntry writes an aggregate payload under the key. The
// writer re-reads the current version and increments it instead of
// blind-overwriting, so two concurrent refreshes converge.
func (store *Postgres) UpsertCacheEntry(cacheKey string, data []byte,
	ttlInSecs int64) (*model.CacheEntry, int) {

	db := C.GetServices().Db

	if cacheKey == "" || len(data) == 0 {
		return nil, http.StatusBadRequest
	}

	now := time.Now().UTC()

	var version int64 = 1
	var existing model.CacheEntry
	err := db.Where("cache_key = ?", cacheKey).First(&existing).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		log.WithError(err).WithField("cache_key", cacheKey).Error(
			"Failed to read cache entry before upsert.")
		return nil, http.StatusInternalServerError
	}
	exists := err == nil
	if exists {
		version = existing.Version + 1
	}

	entry := model.CacheEntry{
		CacheKey:    cacheKey,
		Data:        postgres.Jsonb{RawMessage: data},
		ExpiresAt:   now.Unix() + ttlInSecs,
		LastUpdated: now,
		Version:     version,
	}

	if exists {
		fields := map[string]interface{}{
			"data":         entry.Data,
			"expires_at":   entry.ExpiresAt,
			"last_updated": entry.LastUpdated,
			"version":      entry.Version,
		}
		if err := db.Model(&model.CacheEntry{}).Where("cache_key = ?",
			cacheKey).Update(fields).Error; err != nil {
			log.WithError(err).WithField("cache_key", cacheKey).Error(
				"Failed to update cache entry.")
			return nil, http.StatusInternalServerError
		}
	} else {
		if err := db.Create(&entry).Error; err != nil {
			log.WithError(err).WithField("cache_key", cacheKey).Error(
				"Failed to create cache entry.")
			return nil, http.StatusInternalServerError
		}
	}

	return &entry, http.StatusAccepted
}
