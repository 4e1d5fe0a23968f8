package model

import U "pitchmetrics/util"

// IdentityProfile is the side lookup used for segmentation: the
// attributes of an identity as seen on its most recent activity. It is
// derived, not owned, by this engine.
type IdentityProfile struct {
	IdentityKey string `json:"identity_key"`
	UserType    string `json:"user_type"`
	Device      string `json:"device"`
	Country     string `json:"country"`
}

func (profile *IdentityProfile) SegmentValue(dimension string) string {
	switch dimension {
	case SegmentByDevice:
		return profile.Device
	case SegmentByCountry:
		return profile.Country
	case SegmentByUserType:
		return profile.UserType
	}
	return ""
}

// ProfileFromEvent builds the profile from an identity's latest event.
// The user type (creator/investor/production) travels on the event
// payload, filled by the portals.
func ProfileFromEvent(identityKey string, event *Event) *IdentityProfile {
	profile := &IdentityProfile{
		IdentityKey: identityKey,
		Device:      event.Device,
		Country:     event.Country,
	}

	if value, exists := event.Property("user_type"); exists {
		profile.UserType = U.GetPropertyValueAsString(value)
	}

	return profile
}
