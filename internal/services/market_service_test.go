package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"blink-market/internal/models"
)

func validRequest() CreateMarketRequest {
	return CreateMarketRequest{
		PredictionType: models.PredictionViralCast,
		Title:          "Will this cast reach 1000 likes?",
		TargetID:       testCastHash,
		Threshold:      1000,
		Duration:       24 * time.Hour,
		Creator:        "0xcreator",
	}
}

func TestValidateMarket(t *testing.T) {
	policy := DefaultBettingPolicy()

	tests := []struct {
		name    string
		mutate  func(r *CreateMarketRequest)
		wantErr string
	}{
		{"valid", func(r *CreateMarketRequest) {}, ""},
		{"unknown type", func(r *CreateMarketRequest) { r.PredictionType = 42 }, "unknown prediction type"},
		{"duration too short", func(r *CreateMarketRequest) { r.Duration = 30 * time.Minute }, "duration"},
		{"duration too long", func(r *CreateMarketRequest) { r.Duration = 73 * time.Hour }, "duration"},
		{"zero threshold", func(r *CreateMarketRequest) { r.Threshold = 0 }, "threshold"},
		{"short title", func(r *CreateMarketRequest) { r.Title = "too short" }, "title"},
		{"long title", func(r *CreateMarketRequest) { r.Title = strings.Repeat("x", 201) }, "title"},
		{"bad cast hash", func(r *CreateMarketRequest) { r.TargetID = "0x1234" }, "cast hash"},
		{"stake below minimum", func(r *CreateMarketRequest) { r.CreatorStake = units(1) }, "creator stake"},
		{"stake above maximum", func(r *CreateMarketRequest) { r.CreatorStake = units(5000) }, "creator stake"},
		{"negative stake", func(r *CreateMarketRequest) { r.CreatorStake = -1 }, "negative"},
		{"missing creator", func(r *CreateMarketRequest) { r.Creator = "" }, "creator is required"},
		{"follower growth fid", func(r *CreateMarketRequest) {
			r.PredictionType = models.PredictionFollowerGrowth
			r.TargetID = "3621"
		}, ""},
		{"follower growth non numeric", func(r *CreateMarketRequest) {
			r.PredictionType = models.PredictionFollowerGrowth
			r.TargetID = "dwr"
		}, "FID"},
		{"channel id", func(r *CreateMarketRequest) {
			r.PredictionType = models.PredictionChannelGrowth
			r.TargetID = "base-builders"
			r.Duration = 48 * time.Hour
		}, ""},
		{"channel id uppercase", func(r *CreateMarketRequest) {
			r.PredictionType = models.PredictionChannelGrowth
			r.TargetID = "Base"
			r.Duration = 48 * time.Hour
		}, "channel id"},
		{"stream id too long", func(r *CreateMarketRequest) {
			r.PredictionType = models.PredictionLiveStreamViews
			r.TargetID = strings.Repeat("s", 101)
			r.Duration = time.Hour
		}, "stream id"},
		{"poll needs a target", func(r *CreateMarketRequest) {
			r.PredictionType = models.PredictionPollOutcome
			r.TargetID = "  "
		}, "target is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := ValidateMarket(&req, policy)

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateMarket() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidMarket) {
				t.Fatalf("ValidateMarket() error = %v, want ErrInvalidMarket", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateMarketReportsEveryProblem(t *testing.T) {
	req := validRequest()
	req.Title = "short"
	req.Threshold = -1
	req.TargetID = ""

	err := ValidateMarket(&req, DefaultBettingPolicy())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if len(verr.Problems) != 3 {
		t.Errorf("problems = %v, want 3", verr.Problems)
	}
}

func TestCreateMarket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := validRequest()
	req.CreatorStake = units(10)
	req.Params = json.RawMessage(`{"cast_hash":"` + testCastHash + `","metric":"likes"}`)

	m, err := env.markets.CreateMarket(ctx, &req)
	if err != nil {
		t.Fatalf("CreateMarket() error = %v", err)
	}
	if m.Status != models.MarketStatusActive || m.YesPool != 0 || m.NoPool != 0 {
		t.Errorf("new market = %+v", m)
	}
	if !m.Deadline.Equal(env.clock.Now().Add(24 * time.Hour)) {
		t.Errorf("deadline = %s, want now + 24h", m.Deadline)
	}
	if m.Category != "content" {
		t.Errorf("category = %q, want content", m.Category)
	}

	got, err := env.markets.GetMarket(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMarket() error = %v", err)
	}
	params, err := got.DecodeParams()
	if err != nil {
		t.Fatalf("DecodeParams() error = %v", err)
	}
	cast, ok := params.(*models.CastParams)
	if !ok || cast.Metric != "likes" {
		t.Errorf("params = %#v", params)
	}

	if _, err := env.markets.GetMarket(ctx, 999); !errors.Is(err, ErrMarketNotFound) {
		t.Errorf("GetMarket(missing) error = %v, want ErrMarketNotFound", err)
	}
}

func TestCreateMarketRejectsBadParams(t *testing.T) {
	env := newTestEnv(t)
	req := validRequest()
	req.Params = json.RawMessage(`{"cast_hash": 12}`)

	if _, err := env.markets.CreateMarket(context.Background(), &req); !errors.Is(err, ErrInvalidMarket) {
		t.Errorf("error = %v, want ErrInvalidMarket", err)
	}
}

func TestListMarkets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.createMarket(t, 0)
	second := env.createMarket(t, 0)
	if _, err := env.markets.CancelMarket(ctx, second.ID, ""); err != nil {
		t.Fatal(err)
	}

	active, total, err := env.markets.ListMarkets(ctx, MarketFilter{Status: models.MarketStatusActive})
	if err != nil {
		t.Fatalf("ListMarkets() error = %v", err)
	}
	if total != 1 || len(active) != 1 || active[0].ID != first.ID {
		t.Errorf("active = %d rows, total %d", len(active), total)
	}

	all, total, err := env.markets.ListMarkets(ctx, MarketFilter{Creator: "0xcreator", Limit: 1})
	if err != nil {
		t.Fatalf("ListMarkets() error = %v", err)
	}
	if total != 2 || len(all) != 1 {
		t.Errorf("page = %d rows, total %d, want 1 of 2", len(all), total)
	}
}

func TestDueMarkets(t *testing.T) {
	env := newTestEnv(t)
	m := env.createMarket(t, 0)

	due, err := env.markets.DueMarkets(context.Background(), 10)
	if err != nil {
		t.Fatalf("DueMarkets() error = %v", err)
	}
	if len(due) != 0 {
		t.Errorf("due before deadline = %d", len(due))
	}

	env.clock.Advance(2 * time.Hour)
	due, err = env.markets.DueMarkets(context.Background(), 10)
	if err != nil {
		t.Fatalf("DueMarkets() error = %v", err)
	}
	if len(due) != 1 || due[0].ID != m.ID {
		t.Errorf("due = %v", due)
	}
}

func TestProcessWalletLogin(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAuthService(db, nil)
	ctx := context.Background()

	first, err := svc.ProcessWalletLogin(ctx, "0xabc", models.WalletEVM)
	if err != nil {
		t.Fatalf("ProcessWalletLogin() error = %v", err)
	}
	second, err := svc.ProcessWalletLogin(ctx, "0xabc", models.WalletEVM)
	if err != nil {
		t.Fatalf("ProcessWalletLogin() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second login created a new user: %d vs %d", first.ID, second.ID)
	}
	if first.Nickname == "" || first.Nickname != second.Nickname {
		t.Errorf("nickname not kept across logins: %q vs %q", first.Nickname, second.Nickname)
	}

	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("users = %d, want 1", count)
	}
}
