package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"blink-market/internal/models"
)

var (
	castHashPattern  = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	channelIDPattern = regexp.MustCompile(`^[a-z0-9-]{1,50}$`)
)

// CreateMarketRequest is what a creator submits. Duration is measured from
// the moment the market is accepted.
type CreateMarketRequest struct {
	PredictionType models.PredictionType `json:"prediction_type"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	TargetID       string                `json:"target_id"`
	Threshold      int64                 `json:"threshold"`
	Duration       time.Duration         `json:"duration"`
	Creator        string                `json:"-"`
	CreatorStake   models.Amount         `json:"creator_stake"`
	Params         json.RawMessage       `json:"params,omitempty"`
}

// ValidateMarket checks a creation request against its type's template and
// the stake limits, returning every problem at once.
func ValidateMarket(req *CreateMarketRequest, policy BettingPolicy) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	tmpl, ok := models.Templates[req.PredictionType]
	if !ok {
		add("unknown prediction type %d", req.PredictionType)
	} else if req.Duration < tmpl.MinDuration || req.Duration > tmpl.MaxDuration {
		add("duration must be between %s and %s", tmpl.MinDuration, tmpl.MaxDuration)
	}

	if req.Threshold <= 0 {
		add("threshold must be greater than 0")
	}

	title := strings.TrimSpace(req.Title)
	if n := utf8.RuneCountInString(title); n < 10 || n > 200 {
		add("title must be between 10 and 200 characters")
	}

	if msg := validateTargetID(req.PredictionType, strings.TrimSpace(req.TargetID)); msg != "" {
		add("%s", msg)
	}

	if req.CreatorStake < 0 {
		add("creator stake cannot be negative")
	} else if req.CreatorStake > 0 && (req.CreatorStake < policy.MinCreatorStake || req.CreatorStake > policy.MaxCreatorStake) {
		add("creator stake must be between %s and %s", policy.MinCreatorStake, policy.MaxCreatorStake)
	}

	if strings.TrimSpace(req.Creator) == "" {
		add("creator is required")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func validateTargetID(t models.PredictionType, id string) string {
	switch t {
	case models.PredictionViralCast, models.PredictionTrendingCast, models.PredictionFrameInteractions:
		if !castHashPattern.MatchString(id) {
			return "target must be a cast hash (0x followed by 40 hex characters)"
		}
	case models.PredictionFollowerGrowth, models.PredictionCreatorMilestone:
		fid, err := strconv.ParseInt(id, 10, 64)
		if err != nil || fid <= 0 {
			return "target must be a positive FID"
		}
	case models.PredictionChannelGrowth:
		if !channelIDPattern.MatchString(id) {
			return "target must be a channel id (lowercase letters, digits and dashes, at most 50)"
		}
	case models.PredictionLiveStreamViews:
		if n := utf8.RuneCountInString(id); n < 1 || n > 100 {
			return "target must be a stream id of 1 to 100 characters"
		}
	default:
		if id == "" {
			return "target is required"
		}
	}
	return ""
}

// decodeParams parses raw into the params variant of t. Empty input yields
// the zero variant.
func decodeParams(t models.PredictionType, raw json.RawMessage) (models.MarketParams, error) {
	p, err := models.ParamsFor(t)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, &ValidationError{Problems: []string{"params: " + err.Error()}}
	}
	return p, nil
}
