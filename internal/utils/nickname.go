package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var moods = []string{
	"Bullish", "Bearish", "Steady", "Lucky", "Sharp",
	"Patient", "Bold", "Quiet", "Early", "Contrarian",
	"Wild", "Calm", "Swift", "Lunar", "Golden",
}

var seers = []string{
	"Oracle", "Prophet", "Seer", "Punter", "Forecaster",
	"Hawk", "Owl", "Whale", "Degen", "Augur",
	"Sage", "Scout", "Raven", "Fox", "Comet",
}

// Nickname returns a random display name such as "Lucky_Owl_0427".
func Nickname() (string, error) {
	mood, err := pick(len(moods))
	if err != nil {
		return "", fmt.Errorf("nickname: %w", err)
	}
	seer, err := pick(len(seers))
	if err != nil {
		return "", fmt.Errorf("nickname: %w", err)
	}
	suffix, err := pick(10000)
	if err != nil {
		return "", fmt.Errorf("nickname: %w", err)
	}
	return fmt.Sprintf("%s_%s_%04d", moods[mood], seers[seer], suffix), nil
}

func pick(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
