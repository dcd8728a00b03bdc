package auth

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := CreateToken("dispatcher")
	require.NoError(t, err)

	claims, err := VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "dispatcher", claims.Username)
}

func TestVerifyTokenRejectsTampered(t *testing.T) {
	token, err := CreateToken("dispatcher")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]

	_, err = VerifyToken(tampered)
	assert.Error(t, err)
}

func TestServiceKeyRoundTrip(t *testing.T) {
	os.Setenv("API_MASTER_SECRET", "test-secret")
	defer os.Unsetenv("API_MASTER_SECRET")

	key := GenerateServiceKey("booking-desk")
	serviceID, err := VerifyServiceKey(key)
	require.NoError(t, err)
	assert.Equal(t, "booking-desk", serviceID)
}

func TestVerifyServiceKeyRejectsForgery(t *testing.T) {
	os.Setenv("API_MASTER_SECRET", "test-secret")
	defer os.Unsetenv("API_MASTER_SECRET")

	key := GenerateServiceKey("booking-desk")

	_, err := VerifyServiceKey("no-signature")
	assert.Error(t, err)

	_, err = VerifyServiceKey("other-service." + strings.Split(key, ".")[1])
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("hunter2", hash))
	assert.False(t, CheckPasswordHash("hunter3", hash))
}
