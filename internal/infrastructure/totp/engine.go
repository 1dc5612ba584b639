package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"time"
)

// Engine derives and checks time-based one-time codes (RFC 6238 over
// HMAC-SHA1). It holds no mutable state and is safe for concurrent use.
type Engine struct {
	digits int
	period int64
	modulo uint32
}

// NewEngine creates an engine producing codes of the given length for the
// given time step. digits must be between 1 and 9.
func NewEngine(digits int, period time.Duration) *Engine {
	if digits < 1 || digits > 9 {
		panic(fmt.Sprintf("totp: unsupported digit count %d", digits))
	}
	seconds := int64(period / time.Second)
	if seconds <= 0 {
		panic(fmt.Sprintf("totp: unsupported period %s", period))
	}

	modulo := uint32(1)
	for i := 0; i < digits; i++ {
		modulo *= 10
	}

	return &Engine{digits: digits, period: seconds, modulo: modulo}
}

// Step returns the time step counter for t.
func (e *Engine) Step(t time.Time) int64 {
	unix := t.Unix()
	step := unix / e.period
	if unix%e.period < 0 {
		step--
	}
	return step
}

// Generate returns the code for secret at time t.
func (e *Engine) Generate(secret []byte, t time.Time) string {
	return e.generateStep(secret, e.Step(t))
}

func (e *Engine) generateStep(secret []byte, step int64) string {
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], uint64(step))

	mac := hmac.New(sha1.New, secret)
	mac.Write(counter[:])
	digest := mac.Sum(nil)

	// dynamic truncation
	offset := digest[len(digest)-1] & 0x0f
	value := uint32(digest[offset]&0x7f)<<24 |
		uint32(digest[offset+1])<<16 |
		uint32(digest[offset+2])<<8 |
		uint32(digest[offset+3])

	return fmt.Sprintf("%0*d", e.digits, value%e.modulo)
}

// WellFormed reports whether code has exactly the configured number of ASCII
// digits.
func (e *Engine) WellFormed(code string) bool {
	if len(code) != e.digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Validate checks code against the steps within window of now, trying the
// current step first and then alternating past and future steps. It returns
// the signed offset of the matching step. Malformed codes never match and no
// HMAC is computed for them.
func (e *Engine) Validate(secret []byte, code string, now time.Time, window int) (int, bool) {
	if !e.WellFormed(code) {
		return 0, false
	}

	current := e.Step(now)
	for _, offset := range searchOrder(window) {
		candidate := e.generateStep(secret, current+int64(offset))
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
			return offset, true
		}
	}

	return 0, false
}

// searchOrder returns 0, -1, +1, -2, +2, ... up to ±window.
func searchOrder(window int) []int {
	if window < 0 {
		window = 0
	}
	order := make([]int, 0, 2*window+1)
	order = append(order, 0)
	for i := 1; i <= window; i++ {
		order = append(order, -i, i)
	}
	return order
}
