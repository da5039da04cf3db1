package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// MarketParams carries the per-type resolution details of a market. The
// concrete type is selected by the market's PredictionType; see ParamsFor.
type MarketParams interface {
	isMarketParams()
}

// CastParams applies to cast-level markets (viral, trending, frame).
type CastParams struct {
	CastHash string `json:"cast_hash"`
	Metric   string `json:"metric,omitempty"` // likes, recasts, replies, total
}

// PollParams applies to poll outcome markets.
type PollParams struct {
	PollID string `json:"poll_id"`
	Option string `json:"option"`
}

// ChannelParams applies to channel growth markets. StartFollowers is the
// baseline growth is measured from.
type ChannelParams struct {
	ChannelID      string `json:"channel_id"`
	StartFollowers int64  `json:"start_followers"`
}

// CreatorParams applies to creator milestone and follower growth markets.
type CreatorParams struct {
	FID    int64  `json:"fid"`
	Metric string `json:"metric,omitempty"`
}

// StreamParams applies to live stream viewership markets.
type StreamParams struct {
	StreamID string `json:"stream_id"`
	Platform string `json:"platform"`
}

// BattleParams applies to head-to-head engagement markets.
type BattleParams struct {
	ChallengerFID int64 `json:"challenger_fid"`
	OpponentFID   int64 `json:"opponent_fid"`
}

func (*CastParams) isMarketParams()    {}
func (*PollParams) isMarketParams()    {}
func (*ChannelParams) isMarketParams() {}
func (*CreatorParams) isMarketParams() {}
func (*StreamParams) isMarketParams()  {}
func (*BattleParams) isMarketParams()  {}

// ParamsFor returns a zero value of the params variant used by t.
func ParamsFor(t PredictionType) (MarketParams, error) {
	switch t {
	case PredictionViralCast, PredictionTrendingCast, PredictionFrameInteractions:
		return &CastParams{}, nil
	case PredictionPollOutcome:
		return &PollParams{}, nil
	case PredictionChannelGrowth:
		return &ChannelParams{}, nil
	case PredictionCreatorMilestone, PredictionFollowerGrowth:
		return &CreatorParams{}, nil
	case PredictionLiveStreamViews:
		return &StreamParams{}, nil
	case PredictionEngagementBattle:
		return &BattleParams{}, nil
	}
	return nil, fmt.Errorf("no params variant for %s", t)
}

type paramsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeParams serialises p as a tagged envelope after checking that its
// variant matches t.
func EncodeParams(t PredictionType, p MarketParams) (datatypes.JSON, error) {
	want, err := ParamsFor(t)
	if err != nil {
		return nil, err
	}
	if fmt.Sprintf("%T", want) != fmt.Sprintf("%T", p) {
		return nil, fmt.Errorf("params %T do not match prediction type %s", p, t)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	env, err := json.Marshal(paramsEnvelope{Type: t.String(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params envelope: %w", err)
	}
	return datatypes.JSON(env), nil
}

// DecodeParams reads the tagged params of m. Markets created without
// params yield a zero value of the right variant.
func (m *Market) DecodeParams() (MarketParams, error) {
	p, err := ParamsFor(m.PredictionType)
	if err != nil {
		return nil, err
	}
	if len(m.Params) == 0 {
		return p, nil
	}
	var env paramsEnvelope
	if err := json.Unmarshal(m.Params, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params envelope: %w", err)
	}
	if env.Type != m.PredictionType.String() {
		return nil, fmt.Errorf("params tagged %s on %s market", env.Type, m.PredictionType)
	}
	if err := json.Unmarshal(env.Data, p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s params: %w", env.Type, err)
	}
	return p, nil
}
