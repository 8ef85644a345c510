// ABOUTME: Clock pack exposes the current date and time to the model.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/2389/socrates-gateway/internal/packs"
	"github.com/2389/socrates-gateway/internal/turn"
)

// ClockPack creates the clock pack. now is injectable for tests; nil uses
// time.Now.
func ClockPack(now func() time.Time) *packs.BuiltinPack {
	if now == nil {
		now = time.Now
	}
	c := &clockHandlers{now: now}
	return &packs.BuiltinPack{
		ID: "builtin:clock",
		Tools: []*packs.BuiltinTool{
			{
				Definition: turn.ToolDefinition{
					Name:        "current_time",
					Description: "Get the current date and time, optionally in an IANA timezone",
					Schema: packs.ObjectSchema(map[string]*jsonschema.Schema{
						"timezone": packs.StringProperty("IANA timezone such as Europe/Madrid"),
					}),
				},
				Handler: c.CurrentTime,
			},
		},
	}
}

type clockHandlers struct {
	now func() time.Time
}

type currentTimeInput struct {
	Timezone string `json:"timezone"`
}

func (c *clockHandlers) CurrentTime(_ context.Context, _ string, input json.RawMessage) (json.RawMessage, error) {
	var in currentTimeInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
	}

	loc := time.UTC
	if in.Timezone != "" {
		l, err := time.LoadLocation(in.Timezone)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", in.Timezone)
		}
		loc = l
	}

	t := c.now().In(loc)
	return json.Marshal(map[string]string{
		"time":     t.Format(time.RFC3339),
		"timezone": loc.String(),
		"weekday":  t.Weekday().String(),
	})
}
