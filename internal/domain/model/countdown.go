package model

import "time"

// Countdown is the time left until the game ends, truncated to minutes.
type Countdown struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// CountdownUntil returns the time left from now to end. A past end yields zeros.
func CountdownUntil(end, now time.Time) Countdown {
	left := end.Sub(now)
	if left <= 0 {
		return Countdown{}
	}
	const day = 24 * time.Hour
	return Countdown{
		Days:    int(left / day),
		Hours:   int(left % day / time.Hour),
		Minutes: int(left % time.Hour / time.Minute),
	}
}
