package native

import (
	"context"
	"time"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/instrumentation"
)

// InstrumentedStore wraps a calendar.NativeStore, recording a metric and a
// span for every store call and the outcome of each access request.
type InstrumentedStore struct {
	calendar.NativeStore
	name    string
	metrics *instrumentation.Metrics
}

// Instrument wraps store. name labels the backend (caldav, memory). A nil
// metrics recorder still produces spans.
func Instrument(store calendar.NativeStore, name string, metrics *instrumentation.Metrics) *InstrumentedStore {
	return &InstrumentedStore{NativeStore: store, name: name, metrics: metrics}
}

// Unwrap returns the wrapped store
func (s *InstrumentedStore) Unwrap() calendar.NativeStore {
	return s.NativeStore
}

func (s *InstrumentedStore) observe(ctx context.Context, operation string, call func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartStoreSpan(ctx, s.name, operation)
	start := time.Now()

	err := call(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	s.metrics.RecordStoreOperation(ctx, s.name, operation, status, time.Since(start))
	instrumentation.EndSpan(span, err)
	return err
}

func (s *InstrumentedStore) RequestAccess(completion func(granted bool, err error)) {
	s.NativeStore.RequestAccess(func(granted bool, err error) {
		result := instrumentation.AuthDenied
		if granted {
			result = instrumentation.AuthGranted
		}
		s.metrics.RecordAuthorization(context.Background(), s.name, result)
		completion(granted, err)
	})
}

func (s *InstrumentedStore) Calendars(ctx context.Context) (cals []calendar.NativeCalendar, err error) {
	err = s.observe(ctx, instrumentation.OperationCalendars, func(ctx context.Context) error {
		cals, err = s.NativeStore.Calendars(ctx)
		return err
	})
	return cals, err
}

func (s *InstrumentedStore) DefaultCalendarForNewEvents(ctx context.Context) (cal calendar.NativeCalendar, err error) {
	err = s.observe(ctx, instrumentation.OperationDefaultCalendar, func(ctx context.Context) error {
		cal, err = s.NativeStore.DefaultCalendarForNewEvents(ctx)
		return err
	})
	return cal, err
}

func (s *InstrumentedStore) EventsMatching(ctx context.Context, predicate calendar.EventPredicate) (events []calendar.NativeEvent, err error) {
	err = s.observe(ctx, instrumentation.OperationEventsMatching, func(ctx context.Context) error {
		events, err = s.NativeStore.EventsMatching(ctx, predicate)
		return err
	})
	return events, err
}

func (s *InstrumentedStore) EventWithIdentifier(ctx context.Context, id string) (ev calendar.NativeEvent, err error) {
	err = s.observe(ctx, instrumentation.OperationEventByID, func(ctx context.Context) error {
		ev, err = s.NativeStore.EventWithIdentifier(ctx, id)
		return err
	})
	return ev, err
}

func (s *InstrumentedStore) SaveEvent(ctx context.Context, event calendar.NativeEvent, span calendar.Span) error {
	s.metrics.RecordStoreMutation(ctx, s.name, instrumentation.OperationSave, span.String())
	return s.observe(ctx, instrumentation.OperationSave, func(ctx context.Context) error {
		return s.NativeStore.SaveEvent(ctx, event, span)
	})
}

func (s *InstrumentedStore) RemoveEvent(ctx context.Context, event calendar.NativeEvent, span calendar.Span) error {
	s.metrics.RecordStoreMutation(ctx, s.name, instrumentation.OperationRemove, span.String())
	return s.observe(ctx, instrumentation.OperationRemove, func(ctx context.Context) error {
		return s.NativeStore.RemoveEvent(ctx, event, span)
	})
}
