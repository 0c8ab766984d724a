package config

import "time"

// OTPConfig configures one-time code issuance: code shape and lifetime, the
// key used to hash stored codes, and the per-email issuance window.
type OTPConfig struct {
	Secret      string
	Length      int
	TTL         time.Duration
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// LoadOTPConfig reads OTP_* variables.  Defaults: 6 digit codes valid for
// 15 minutes, at most 5 issuances per email per 15 minutes.
func LoadOTPConfig() OTPConfig {
	c := OTPConfig{
		Secret:      must("OTP_SECRET"),
		Length:      envInt("OTP_LENGTH", 6),
		TTL:         envDur("OTP_TTL", 15*time.Minute),
		MaxRequests: envInt("OTP_RATE_MAX", 5),
		Window:      envDur("OTP_RATE_WINDOW", 15*time.Minute),
		KeyPrefix:   envStr("OTP_KEY_PREFIX", "otp"),
	}
	return c.normalized()
}

func (c OTPConfig) normalized() OTPConfig {
	if c.Length < 4 || c.Length > 10 {
		c.Length = 6
	}
	if c.TTL <= 0 {
		c.TTL = 15 * time.Minute
	}
	if c.MaxRequests < 1 {
		c.MaxRequests = 1
	}
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	return c
}
