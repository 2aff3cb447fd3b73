package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimTenantID is the claim carrying the tenant a token was minted for.
const ClaimTenantID = "tenant_id"

// ErrMalformed is returned when a token cannot be decoded.
var ErrMalformed = errors.New("token: malformed")

var parser = jwt.NewParser(jwt.WithJSONNumber())

// Claims decodes the payload of raw without verifying its signature.
func Claims(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}

// IsMalformed reports whether raw cannot be decoded as a JWT.
func IsMalformed(raw string) bool {
	_, err := Claims(raw)
	return err != nil
}

// Expiry returns the exp claim of raw.
//
// The bool result is false when the token carries no exp claim, in which
// case it never expires locally.
func Expiry(raw string) (time.Time, bool, error) {
	claims, err := Claims(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	if _, ok := claims["exp"]; !ok {
		return time.Time{}, false, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false, fmt.Errorf("%w: invalid exp claim", ErrMalformed)
	}
	return exp.Time.UTC(), true, nil
}

// IsExpired reports whether raw is unusable at now.
// Malformed tokens are treated as expired.
func IsExpired(raw string, now time.Time) bool {
	exp, ok, err := Expiry(raw)
	if err != nil {
		return true
	}
	if !ok {
		return false
	}
	return !now.Before(exp)
}

// TenantID returns the tenant_id claim of raw coerced to int64.
// Any decoding problem yields (0, false).
func TenantID(raw string) (int64, bool) {
	claims, err := Claims(raw)
	if err != nil {
		return 0, false
	}
	v, ok := claims[ClaimTenantID]
	if !ok || v == nil {
		return 0, false
	}
	return toInt64(v)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return floatToInt64(f)
		}
		return 0, false
	case float64:
		return floatToInt64(n)
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return floatToInt64(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
