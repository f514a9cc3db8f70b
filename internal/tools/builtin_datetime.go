package tools

import (
	"context"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

// timezoneAliases maps common abbreviations to IANA zone names.
var timezoneAliases = map[string]string{
	"IST": "Asia/Kolkata",
	"EST": "America/New_York",
	"PST": "America/Los_Angeles",
	"CST": "America/Chicago",
	"MST": "America/Denver",
	"UTC": "UTC",
	"GMT": "Etc/GMT",
}

// localeLayout renders like en-US toLocaleString: 3/14/2025, 9:26:53 AM.
const localeLayout = "1/2/2006, 3:04:05 PM"

// CurrentDatetime reports the current instant in several representations.
type CurrentDatetime struct {
	now func() time.Time
}

func NewCurrentDatetime() *CurrentDatetime { return &CurrentDatetime{now: time.Now} }

func (c *CurrentDatetime) Name() string { return "current_datetime" }
func (c *CurrentDatetime) Description() string {
	return "Returns the current date and time in UTC, the server's local zone and optionally a requested timezone."
}
func (c *CurrentDatetime) ReturnType() store.ParamType { return store.ParamObject }
func (c *CurrentDatetime) Parameters() []store.ParamSpec {
	return []store.ParamSpec{
		{Name: "timezone", Type: store.ParamString, Description: "IANA zone or one of IST, EST, PST, CST, MST, UTC, GMT"},
	}
}

func (c *CurrentDatetime) Execute(_ context.Context, args map[string]any) (any, error) {
	now := c.now()
	out := map[string]any{
		"iso":       now.UTC().Format("2006-01-02T15:04:05.000Z"),
		"timestamp": now.Unix(),
		"local":     now.Local().Format(localeLayout),
	}

	tz, _ := args["timezone"].(string)
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return out, nil
	}
	zone := tz
	if alias, ok := timezoneAliases[strings.ToUpper(tz)]; ok {
		zone = alias
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, validationErr(c.Name(), "unknown timezone %q", tz)
	}
	out["timezone"] = zone
	out["inTimezone"] = now.In(loc).Format(localeLayout)
	return out, nil
}
