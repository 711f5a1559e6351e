package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := WeatherQuery{Lat: 52.52, Lon: 13.405, Exclude: "minutely,hourly", Units: "metric", Lang: "de"}
	b := WeatherQuery{Lat: 52.52, Lon: 13.405, Exclude: "minutely,hourly", Units: "metric", Lang: "de"}
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_ExcludeOrderInsensitive(t *testing.T) {
	a := WeatherQuery{Lat: 1, Lon: 2, Exclude: "hourly,minutely"}
	b := WeatherQuery{Lat: 1, Lon: 2, Exclude: "minutely, hourly"}
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_DiffersPerParameter(t *testing.T) {
	base := WeatherQuery{Lat: 10, Lon: 20, Exclude: "daily", Units: "metric", Lang: "en"}
	variants := []WeatherQuery{
		{Lat: 10.1, Lon: 20, Exclude: "daily", Units: "metric", Lang: "en"},
		{Lat: 10, Lon: 20.1, Exclude: "daily", Units: "metric", Lang: "en"},
		{Lat: 10, Lon: 20, Exclude: "hourly", Units: "metric", Lang: "en"},
		{Lat: 10, Lon: 20, Exclude: "daily", Units: "imperial", Lang: "en"},
		{Lat: 10, Lon: 20, Exclude: "daily", Units: "metric", Lang: "fr"},
	}
	for _, v := range variants {
		require.NotEqual(t, base.Fingerprint(), v.Fingerprint(), "variant %+v", v)
	}
}

func TestDayKey(t *testing.T) {
	loc := time.UTC
	at := time.Date(2024, 3, 9, 23, 59, 59, 0, loc)
	require.Equal(t, "2024-03-09", DayKey(at, loc))
	require.Equal(t, "2024-03-10", DayKey(at.Add(time.Second), loc))
}

func TestNextMidnight(t *testing.T) {
	loc := time.UTC
	at := time.Date(2024, 3, 9, 15, 0, 0, 0, loc)
	require.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, loc), NextMidnight(at, loc))
}

func TestCredentialsFromSecrets(t *testing.T) {
	creds := CredentialsFromSecrets([]string{"aaa", "bbb"})
	require.Len(t, creds, 2)
	require.Equal(t, "key_1", creds[0].ID)
	require.Equal(t, 0, creds[0].Priority)
	require.Equal(t, "key_2", creds[1].ID)
	require.Equal(t, 1, creds[1].Priority)
	require.Equal(t, "bbb", creds[1].Secret)
}
