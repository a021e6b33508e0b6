package logic

import (
	"fmt"
	"time"
)

// TimestampLayout is yymmddTHHMM, e.g. 260301T0915.
const TimestampLayout = "060102T1504"

// FormatTimestamp renders t in local time using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// FormatDuration renders d as "2 minutes 5 seconds", or "5 seconds" under a minute.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	minutes := secs / 60
	seconds := secs % 60
	if minutes > 0 {
		return fmt.Sprintf("%d minute%s %d second%s", minutes, plural(minutes), seconds, plural(seconds))
	}
	return fmt.Sprintf("%d second%s", seconds, plural(seconds))
}

func plural(n int64) string {
	if n != 1 {
		return "s"
	}
	return ""
}

func silenceNotification(pin int, name string, st PressState, now time.Time) Notification {
	elapsed := now.Sub(st.Started)
	return Notification{
		Kind:     KindSilence,
		Subject:  name + " SILENCE",
		Body:     fmt.Sprintf("%s SILENCE for %s\nSILENCE BEGINS:\t%s", name, FormatDuration(elapsed), FormatTimestamp(st.Started)),
		Pin:      pin,
		Name:     name,
		Started:  st.Started,
		At:       now,
		Duration: elapsed,
		Alerts:   st.Alerts,
	}
}

func endedNotification(pin int, name string, st PressState, released time.Time) Notification {
	held := released.Sub(st.Started)
	return Notification{
		Kind:     KindEndedSilence,
		Subject:  name + " ENDED SILENCE",
		Body:     fmt.Sprintf("%s ended silence. Silent for %s - ended at %s", name, FormatDuration(held), FormatTimestamp(released)),
		Pin:      pin,
		Name:     name,
		Started:  st.Started,
		At:       released,
		Duration: held,
		Alerts:   st.Alerts,
	}
}
