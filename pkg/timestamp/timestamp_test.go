package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	loc := time.FixedZone("CEST", 2*3600)
	ts := time.Date(2012, 4, 23, 10, 31, 2, 500_000_000, loc)

	assert.Equal(t, "2012-04-23T10:31:02+02:00", Format(ts))
	assert.Equal(t, "2012-04-23T08:31:02Z", Format(ts.UTC()))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"utc", "2012-04-23T08:31:02Z", 1335169862, false},
		{"offset", "2012-04-23T10:31:02+02:00", 1335169862, false},
		{"fraction", "2012-04-23T08:31:02.25Z", 1335169862, false},
		{"garbage", "yesterday", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Unix())
		})
	}
}

func TestSeconds(t *testing.T) {
	secs, err := Seconds("2012-04-23T08:31:02.25Z")
	require.NoError(t, err)
	assert.InDelta(t, 1335169862.25, secs, 1e-6)

	a, err := Seconds("2012-04-23T08:31:02Z")
	require.NoError(t, err)
	b, err := Seconds("2012-04-23T08:31:07Z")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, b-a, 1e-9)

	_, err = Seconds("not a time")
	assert.Error(t, err)
}

func TestFromSecondsRoundTrip(t *testing.T) {
	now := time.Now()
	back := FromSeconds(ToSeconds(now))
	assert.WithinDuration(t, now, back, time.Microsecond)
}

func TestNowParses(t *testing.T) {
	got, err := Parse(Now())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), got, 2*time.Second)
}

func TestSecondsDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, SecondsDuration(1.5))
	assert.Equal(t, time.Duration(0), SecondsDuration(0))
}
