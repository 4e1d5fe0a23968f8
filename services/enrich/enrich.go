package enrich

import (
	"net"
	"net/http"

	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	C "pitchmetrics/config"
	"pitchmetrics/model"
	"pitchmetrics/model/store"
	U "pitchmetrics/util"
)

const profileCacheSize = 10000

// profileCache memoizes identity profile lookups within a process.
// Profiles drift slowly; a stale entry only affects segment labels.
var profileCache *lru.Cache

func init() {
	cache, err := lru.New(profileCacheSize)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize profile lru cache.")
	}
	profileCache = cache
}

// CountryByIP resolves a client address to an ISO country code for
// geographic segmentation. Returns empty when geolocation is not
// configured or the address cannot be resolved.
func CountryByIP(ipAddress string) string {
	reader := C.GetServices().GeoLocation
	if reader == nil || ipAddress == "" {
		return ""
	}

	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return ""
	}

	record, err := reader.City(ip)
	if err != nil {
		log.WithError(err).WithField("ip", ipAddress).Debug("Geolocation lookup failed.")
		return ""
	}

	return record.Country.IsoCode
}

// FillEventContext derives the device class and country attributes of
// an event at ingestion time from the request's user agent and client
// address, when the producer did not send them.
func FillEventContext(event *model.Event, userAgent, clientIP string) {
	if event.Device == "" {
		event.Device = U.DeviceTypeByUserAgent(userAgent)
	}

	if event.Country == "" {
		event.Country = CountryByIP(clientIP)
	}
}

// SegmentLookup returns the identity -> segment-value function used by
// funnel aggregation, memoized through the process-local lru cache.
func SegmentLookup(dimension string) func(identityKey string) string {
	if !model.IsValidSegmentDimension(dimension) {
		return nil
	}

	return func(identityKey string) string {
		if cached, exists := profileCache.Get(identityKey); exists {
			return cached.(*model.IdentityProfile).SegmentValue(dimension)
		}

		profile, errCode := store.GetStore().GetIdentityProfile(identityKey)
		if errCode != http.StatusFound || profile == nil {
			return ""
		}

		profileCache.Add(identityKey, profile)
		return profile.SegmentValue(dimension)
	}
}
