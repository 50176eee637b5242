// Package calendar bridges the host's native calendar store and the rest of
// calbridge.
//
// The package owns the domain model (Event, RecurrenceRule and the create and
// update requests), the capability interface a native store must implement
// (NativeStore), and the Client that adapts one store connection to the domain:
// it performs the authorization handshake, resolves calendar names, marshals
// events in both directions and applies the span rules for recurring events.
//
// A Client is constructed once per process and serializes every call into the
// store:
//
//	store := memory.New()
//	client, err := calendar.NewClient(store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Events in the next week, across all calendars
//	events, err := client.ListEvents(ctx, time.Now(), time.Now().AddDate(0, 0, 7), "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// All instants leaving the Client are expressed in UTC. Presentation code must
// convert to a display location, see Event.Format.
package calendar
