package models

import "time"

// MarketTemplate holds creation constraints and UI hints for a prediction type.
type MarketTemplate struct {
	Type                PredictionType `json:"type"`
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	SuggestedThresholds []int64        `json:"suggested_thresholds"`
	MinDuration         time.Duration  `json:"min_duration"`
	MaxDuration         time.Duration  `json:"max_duration"`
	Category            string         `json:"category"` // growth, content, engagement, milestone
}

// Templates lists the supported market kinds.
var Templates = map[PredictionType]MarketTemplate{
	PredictionViralCast: {
		Type:                PredictionViralCast,
		Title:               "Viral Cast Prediction",
		Description:         "Will this cast reach the target engagement?",
		SuggestedThresholds: []int64{100, 500, 1000, 2500, 5000},
		MinDuration:         time.Hour,
		MaxDuration:         72 * time.Hour,
		Category:            "content",
	},
	PredictionPollOutcome: {
		Type:                PredictionPollOutcome,
		Title:               "Poll Result Prediction",
		Description:         "What will this poll result be?",
		SuggestedThresholds: []int64{50, 60, 70, 80, 90},
		MinDuration:         time.Hour,
		MaxDuration:         168 * time.Hour,
		Category:            "content",
	},
	PredictionChannelGrowth: {
		Type:                PredictionChannelGrowth,
		Title:               "Channel Growth Battle",
		Description:         "Which channel will grow faster?",
		SuggestedThresholds: []int64{10, 25, 50, 100, 250},
		MinDuration:         24 * time.Hour,
		MaxDuration:         168 * time.Hour,
		Category:            "growth",
	},
	PredictionCreatorMilestone: {
		Type:                PredictionCreatorMilestone,
		Title:               "Creator Milestone",
		Description:         "Will creator reach this milestone?",
		SuggestedThresholds: []int64{1000, 5000, 10000, 25000, 50000},
		MinDuration:         48 * time.Hour,
		MaxDuration:         720 * time.Hour,
		Category:            "milestone",
	},
	PredictionFollowerGrowth: {
		Type:                PredictionFollowerGrowth,
		Title:               "Follower Growth Challenge",
		Description:         "Will this creator gain X followers?",
		SuggestedThresholds: []int64{50, 100, 250, 500, 1000},
		MinDuration:         24 * time.Hour,
		MaxDuration:         168 * time.Hour,
		Category:            "growth",
	},
	PredictionLiveStreamViews: {
		Type:                PredictionLiveStreamViews,
		Title:               "Live Stream Viewership",
		Description:         "Will this stream get X concurrent viewers?",
		SuggestedThresholds: []int64{50, 100, 250, 500, 1000},
		MinDuration:         30 * time.Minute,
		MaxDuration:         12 * time.Hour,
		Category:            "engagement",
	},
	PredictionEngagementBattle: {
		Type:                PredictionEngagementBattle,
		Title:               "Creator Engagement Battle",
		Description:         "Who will get more engagement?",
		SuggestedThresholds: []int64{100, 250, 500, 1000, 2500},
		MinDuration:         6 * time.Hour,
		MaxDuration:         72 * time.Hour,
		Category:            "engagement",
	},
	PredictionTrendingCast: {
		Type:                PredictionTrendingCast,
		Title:               "Trending Cast Prediction",
		Description:         "Will this cast trend today?",
		SuggestedThresholds: []int64{10, 25, 50, 100, 250},
		MinDuration:         time.Hour,
		MaxDuration:         24 * time.Hour,
		Category:            "content",
	},
	PredictionFrameInteractions: {
		Type:                PredictionFrameInteractions,
		Title:               "Frame Interaction Bet",
		Description:         "How many will interact with this Frame?",
		SuggestedThresholds: []int64{25, 50, 100, 250, 500},
		MinDuration:         time.Hour,
		MaxDuration:         72 * time.Hour,
		Category:            "engagement",
	},
}
