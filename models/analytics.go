package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Counter names recorded per business per day.
const (
	CounterViews           = "views"
	CounterWebsiteClicks   = "website_clicks"
	CounterPhoneClicks     = "phone_clicks"
	CounterDirectionClicks = "direction_clicks"
	CounterShares          = "shares"
	CounterImpressions     = "impressions"
)

// TrackableCounters are the counters clients may record directly.
var TrackableCounters = map[string]bool{
	CounterWebsiteClicks:   true,
	CounterPhoneClicks:     true,
	CounterDirectionClicks: true,
	CounterShares:          true,
}

// Subjects counters are recorded against.
const (
	SubjectBusiness = "business"
	SubjectSponsor  = "sponsor"
)

// DayLayout is the format of AnalyticsDay.Day.
const DayLayout = "2006-01-02"

// AnalyticsDay holds one subject's counters for one UTC day.
type AnalyticsDay struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind      string             `bson:"kind" json:"kind"`
	SubjectID primitive.ObjectID `bson:"subject_id" json:"subject_id"`
	Day       string             `bson:"day" json:"day"`
	Counters  map[string]int64   `bson:"counters" json:"counters"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
