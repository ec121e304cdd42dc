package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestUserJSONWritesRewardsAsNumber(t *testing.T) {
	code := "ABC123"
	u := &User{ID: uuid.New(), FullName: "Ada", Password: "secret", ReferralCode: &code, ReferralRewards: decimal.RequireFromString("12.50")}

	raw, err := json.Marshal(u)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Equal(t, 12.5, body["referralRewards"])
	require.Equal(t, "ABC123", body["referralCode"])
	require.NotContains(t, body, "password")
}

func TestPublicHidesNilUser(t *testing.T) {
	var u *User
	require.Nil(t, u.Public())
}
