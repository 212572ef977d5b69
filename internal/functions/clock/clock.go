// Package clock provides the built-in "current_time" chat function.
package clock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/thearyanag/llamachat/pkg/llamachat"
)

// Name is the function name registered with a chat client.
const Name = "current_time"

type timeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"IANA time zone such as Europe/Berlin; defaults to UTC"`
}

// Reading is the JSON result of one call.
type Reading struct {
	Timezone string `json:"timezone"`
	Time     string `json:"time"`
	Weekday  string `json:"weekday"`
	Unix     int64  `json:"unix"`
}

// Now reads the clock in the named zone. An empty zone means UTC.
func Now(now time.Time, zone string) (Reading, error) {
	if zone == "" {
		zone = "UTC"
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Reading{}, fmt.Errorf("clock: unknown time zone %q", zone)
	}
	t := now.In(loc)
	return Reading{
		Timezone: loc.String(),
		Time:     t.Format(time.RFC3339),
		Weekday:  t.Weekday().String(),
		Unix:     t.Unix(),
	}, nil
}

// Function returns the "current_time" chat function. now supplies the
// current time; nil uses time.Now.
func Function(now func() time.Time) llamachat.Function {
	if now == nil {
		now = time.Now
	}
	return llamachat.MustFunction(Name, "Current date and time, optionally in a given time zone.",
		func(_ context.Context, a timeArgs) (string, error) {
			r, err := Now(now(), a.Timezone)
			if err != nil {
				return "", err
			}
			out, err := json.Marshal(r)
			if err != nil {
				return "", fmt.Errorf("clock: encode result: %w", err)
			}
			return string(out), nil
		})
}
