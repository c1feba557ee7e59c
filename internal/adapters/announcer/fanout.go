package announcer

import (
	"context"

	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

type fanout []ports.Announcer

// Fanout delivers each event to every non-nil announcer in order.
func Fanout(announcers ...ports.Announcer) ports.Announcer {
	out := make(fanout, 0, len(announcers))
	for _, a := range announcers {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

func (f fanout) Announce(ctx context.Context, event ports.Event) {
	for _, a := range f {
		a.Announce(ctx, event)
	}
}
