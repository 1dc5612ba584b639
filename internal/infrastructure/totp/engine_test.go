package totp

import (
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp"
	extotp "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureSecret = "JBSWY3DPEHPK3PXP"

func mustDecode(t *testing.T, secret string) []byte {
	t.Helper()
	key, err := DecodeSecret(secret)
	require.NoError(t, err)
	return key
}

func TestEngine_Generate_Fixture(t *testing.T) {
	engine := NewEngine(6, 60*time.Second)
	key := mustDecode(t, fixtureSecret)

	tests := []struct {
		name      string
		timestamp int64
		want      string
	}{
		{name: "Step 0", timestamp: 0, want: "282760"},
		{name: "End of step 0", timestamp: 59, want: "282760"},
		{name: "Step 1", timestamp: 60, want: "996554"},
		{name: "Step 2", timestamp: 120, want: "602287"},
		{name: "Step 28333333", timestamp: 1700000000, want: "508648"},
		{name: "Step 28333334", timestamp: 1700000040, want: "366952"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.Generate(key, time.Unix(tt.timestamp, 0)))
		})
	}
}

func TestEngine_Generate_HOTPVectors(t *testing.T) {
	// RFC 4226 appendix D, one counter per 60 second step
	engine := NewEngine(6, 60*time.Second)
	key := []byte("12345678901234567890")
	want := []string{
		"755224", "287082", "359152", "969429", "338314",
		"254676", "287922", "162583", "399871", "520489",
	}

	for counter, code := range want {
		assert.Equal(t, code, engine.Generate(key, time.Unix(int64(counter)*60, 0)), "counter %d", counter)
	}
}

func TestEngine_Generate_RFC6238Vectors(t *testing.T) {
	engine := NewEngine(8, 30*time.Second)
	key := []byte("12345678901234567890")

	tests := []struct {
		timestamp int64
		want      string
	}{
		{timestamp: 59, want: "94287082"},
		{timestamp: 1111111109, want: "07081804"},
		{timestamp: 1111111111, want: "14050471"},
		{timestamp: 1234567890, want: "89005924"},
		{timestamp: 2000000000, want: "69279037"},
		{timestamp: 20000000000, want: "65353130"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, engine.Generate(key, time.Unix(tt.timestamp, 0)), "timestamp %d", tt.timestamp)
	}
}

func TestEngine_Generate_MatchesReferenceImplementation(t *testing.T) {
	engine := NewEngine(6, 60*time.Second)
	key := mustDecode(t, fixtureSecret)
	opts := extotp.ValidateOpts{
		Period:    60,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}

	start := time.Unix(1700000000, 0)
	for i := 0; i < 50; i++ {
		at := start.Add(time.Duration(i*37) * time.Second)
		want, err := extotp.GenerateCodeCustom(fixtureSecret, at, opts)
		require.NoError(t, err)
		assert.Equal(t, want, engine.Generate(key, at), "at %s", at)
	}
}

func TestEngine_Generate_Deterministic(t *testing.T) {
	engine := NewEngine(6, 60*time.Second)
	key := mustDecode(t, fixtureSecret)
	at := time.Unix(1234567890, 0)

	first := engine.Generate(key, at)
	second := engine.Generate(key, at)

	assert.Equal(t, first, second)
	assert.Len(t, first, 6)
}

func TestEngine_Step(t *testing.T) {
	engine := NewEngine(6, 60*time.Second)

	assert.Equal(t, int64(0), engine.Step(time.Unix(0, 0)))
	assert.Equal(t, int64(0), engine.Step(time.Unix(59, 0)))
	assert.Equal(t, int64(1), engine.Step(time.Unix(60, 0)))
	assert.Equal(t, int64(28333333), engine.Step(time.Unix(1700000000, 0)))
	assert.Equal(t, int64(-1), engine.Step(time.Unix(-1, 0)))
}

func TestEngine_WellFormed(t *testing.T) {
	engine := NewEngine(6, 60*time.Second)

	tests := []struct {
		code string
		want bool
	}{
		{code: "123456", want: true},
		{code: "000000", want: true},
		{code: "12345", want: false},
		{code: "1234567", want: false},
		{code: "", want: false},
		{code: "12a456", want: false},
		{code: " 12345", want: false},
		{code: "١٢٣٤٥٦", want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, engine.WellFormed(tt.code), "code %q", tt.code)
	}
}

func TestEngine_Validate(t *testing.T) {
	engine := NewEngine(6, 60*time.Second)
	key := mustDecode(t, fixtureSecret)
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name       string
		codeAt     time.Time
		window     int
		wantOffset int
		wantOK     bool
	}{
		{name: "Current step, window 0", codeAt: now, window: 0, wantOffset: 0, wantOK: true},
		{name: "Previous step, window 1", codeAt: now.Add(-60 * time.Second), window: 1, wantOffset: -1, wantOK: true},
		{name: "Next step, window 1", codeAt: now.Add(60 * time.Second), window: 1, wantOffset: 1, wantOK: true},
		{name: "Two steps back, window 1", codeAt: now.Add(-120 * time.Second), window: 1, wantOK: false},
		{name: "Two steps back, window 2", codeAt: now.Add(-120 * time.Second), window: 2, wantOffset: -2, wantOK: true},
		{name: "Two steps ahead, window 2", codeAt: now.Add(120 * time.Second), window: 2, wantOffset: 2, wantOK: true},
		{name: "Three steps back, window 2", codeAt: now.Add(-180 * time.Second), window: 2, wantOK: false},
		{name: "Previous step, window 0", codeAt: now.Add(-60 * time.Second), window: 0, wantOK: false},
		{name: "Negative window acts as 0", codeAt: now, window: -3, wantOffset: 0, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := engine.Generate(key, tt.codeAt)
			offset, ok := engine.Validate(key, code, now, tt.window)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantOffset, offset)
			}
		})
	}
}

func TestEngine_Validate_FastClock(t *testing.T) {
	engine := NewEngine(6, 60*time.Second)
	key := mustDecode(t, fixtureSecret)

	// code issued in step 28333333, verifier clock 90 seconds ahead
	issuedAt := time.Unix(1700000000, 0)
	code := engine.Generate(key, issuedAt)
	require.Equal(t, "508648", code)

	offset, ok := engine.Validate(key, code, issuedAt.Add(90*time.Second), 2)
	assert.True(t, ok)
	assert.Equal(t, -1, offset)
}

func TestEngine_Validate_NoFalsePositive(t *testing.T) {
	engine := NewEngine(6, 60*time.Second)
	key := mustDecode(t, fixtureSecret)
	now := time.Unix(1700000000, 0)

	for i := -2; i <= 2; i++ {
		require.NotEqual(t, "000000", engine.Generate(key, now.Add(time.Duration(i)*time.Minute)))
	}

	_, ok := engine.Validate(key, "000000", now, 2)
	assert.False(t, ok)
}

func TestEngine_Validate_MalformedCodes(t *testing.T) {
	engine := NewEngine(6, 60*time.Second)
	key := mustDecode(t, fixtureSecret)
	now := time.Unix(1700000000, 0)

	for _, code := range []string{"", "50864", "5086480", "50864a", "508 648", "-08648"} {
		offset, ok := engine.Validate(key, code, now, 2)
		assert.False(t, ok, "code %q", code)
		assert.Equal(t, 0, offset)
	}
}

func TestEngine_StepBoundary(t *testing.T) {
	engine := NewEngine(6, 60*time.Second)
	key := mustDecode(t, fixtureSecret)

	// 1699999980 is the first second of step 28333333
	stepStart := time.Unix(1699999980, 0)
	code := engine.Generate(key, stepStart.Add(10*time.Second))

	// 30 seconds later, same step
	offset, ok := engine.Validate(key, code, stepStart.Add(40*time.Second), 0)
	assert.True(t, ok)
	assert.Equal(t, 0, offset)

	// 30 seconds later, across the boundary
	offset, ok = engine.Validate(key, code, stepStart.Add(70*time.Second), 0)
	assert.False(t, ok)
	offset, ok = engine.Validate(key, code, stepStart.Add(70*time.Second), 1)
	assert.True(t, ok)
	assert.Equal(t, -1, offset)
}

func TestEngine_ConcurrentUse(t *testing.T) {
	engine := NewEngine(6, 60*time.Second)
	key := mustDecode(t, fixtureSecret)
	at := time.Unix(1700000000, 0)

	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = engine.Generate(key, at)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, "508648", got)
	}
}

func TestSearchOrder(t *testing.T) {
	assert.Equal(t, []int{0}, searchOrder(0))
	assert.Equal(t, []int{0, -1, 1}, searchOrder(1))
	assert.Equal(t, []int{0, -1, 1, -2, 2}, searchOrder(2))
	assert.Equal(t, []int{0}, searchOrder(-1))
}

func TestNewEngine_InvalidParameters(t *testing.T) {
	assert.Panics(t, func() { NewEngine(0, 60*time.Second) })
	assert.Panics(t, func() { NewEngine(10, 60*time.Second) })
	assert.Panics(t, func() { NewEngine(6, 0) })
}
