package credentials

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotContains(t, hash, "correct horse")

	assert.True(t, VerifyPassword("correct horse battery staple", hash))
	assert.False(t, VerifyPassword("wrong password", hash))
	assert.False(t, VerifyPassword("", hash))
}

func TestPasswordHashIsSalted(t *testing.T) {
	first, err := HashPassword("hunter22")
	require.NoError(t, err)
	second, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestGenerateAPIToken(t *testing.T) {
	raw, hash, err := GenerateAPIToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, APITokenPrefix))
	assert.Len(t, raw, len(APITokenPrefix)+64)
	assert.Equal(t, strings.ToLower(raw), raw)
	assert.Equal(t, HashAPIToken(raw), hash)
	assert.NotContains(t, hash, raw)

	other, _, err := GenerateAPIToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, other)
}

func TestTOTPVerify(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	code, err := totpCodeAt(secret, now)
	require.NoError(t, err)
	require.Len(t, code, totpDigits)

	assert.True(t, VerifyTOTP(secret, code, now))
	// Adjacent steps stay within the drift window.
	assert.True(t, VerifyTOTP(secret, code, now.Add(totpPeriod*time.Second)))
	assert.True(t, VerifyTOTP(secret, code, now.Add(-totpPeriod*time.Second)))
	// Codes with spaces are normalized.
	spaced := code[:3] + " " + code[3:]
	assert.True(t, VerifyTOTP(secret, spaced, now))
}

func TestTOTPVerifyRejects(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	code, err := totpCodeAt(secret, now)
	require.NoError(t, err)

	assert.False(t, VerifyTOTP(secret, code, now.Add(3*totpPeriod*time.Second)), "outside window")
	assert.False(t, VerifyTOTP(secret, "12345", now), "too short")
	assert.False(t, VerifyTOTP(secret, "abcdef", now), "not digits")
	assert.False(t, VerifyTOTP("not-base32!", code, now), "bad secret")

	other, err := GenerateTOTPSecret()
	require.NoError(t, err)
	assert.False(t, VerifyTOTP(other, code, now), "wrong secret")
}

func TestOTPAuthURL(t *testing.T) {
	u := OTPAuthURL("JBSWY3DPEHPK3PXP", "a@x.com", "DeVault")
	assert.True(t, strings.HasPrefix(u, "otpauth://totp/DeVault:a@x.com?"))
	assert.Contains(t, u, "secret=JBSWY3DPEHPK3PXP")
	assert.Contains(t, u, "issuer=DeVault")
	assert.Contains(t, u, "digits=6")
	assert.Contains(t, u, "period=30")
}

func TestTOTPQRCode(t *testing.T) {
	u := OTPAuthURL("JBSWY3DPEHPK3PXP", "a@x.com", "DeVault")
	dataURL, err := TOTPQRCode(u)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))
}
