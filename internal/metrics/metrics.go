package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	studentsRegistered  metric.Int64Counter
	paymentsRecorded    metric.Int64Counter
	paymentsRejected    metric.Int64Counter
	receiptsRendered    metric.Int64Counter
	enquiriesCreated    metric.Int64Counter
	followupsAdded      metric.Int64Counter
	visitorsLogged      metric.Int64Counter
	sequenceAllocations metric.Int64Counter
	sequenceConflicts   metric.Int64Counter
	ledgerConflicts     metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.studentsRegistered, "front_office.students.registered", "Total number of students registered", "{student}"},
		{&m.paymentsRecorded, "front_office.payments.recorded", "Total number of fee payments committed", "{payment}"},
		{&m.paymentsRejected, "front_office.payments.rejected", "Total number of fee payments rejected", "{payment}"},
		{&m.receiptsRendered, "front_office.documents.rendered", "Total number of PDF documents rendered", "{document}"},
		{&m.enquiriesCreated, "front_office.enquiries.created", "Total number of enquiries logged", "{enquiry}"},
		{&m.followupsAdded, "front_office.followups.added", "Total number of enquiry follow-ups added", "{followup}"},
		{&m.visitorsLogged, "front_office.visitors.logged", "Total number of visitors logged", "{visitor}"},
		{&m.sequenceAllocations, "front_office.sequence.allocations", "Total number of sequence numbers allocated", "{allocation}"},
		{&m.sequenceConflicts, "front_office.sequence.conflicts", "Counter commits lost to a concurrent writer", "{conflict}"},
		{&m.ledgerConflicts, "front_office.ledger.conflicts", "Balance commits lost to a concurrent writer", "{conflict}"},
	}

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	return m, nil
}

func add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *Metrics) RecordStudentRegistration(ctx context.Context, class string) {
	if m != nil {
		add(ctx, m.studentsRegistered, attribute.String("class", class))
	}
}

func (m *Metrics) RecordPayment(ctx context.Context, mode string) {
	if m != nil {
		add(ctx, m.paymentsRecorded, attribute.String("mode", mode))
	}
}

func (m *Metrics) RecordPaymentRejected(ctx context.Context, reason string) {
	if m != nil {
		add(ctx, m.paymentsRejected, attribute.String("reason", reason))
	}
}

func (m *Metrics) RecordDocumentRendered(ctx context.Context, kind string) {
	if m != nil {
		add(ctx, m.receiptsRendered, attribute.String("kind", kind))
	}
}

func (m *Metrics) RecordEnquiryCreated(ctx context.Context, leadTemp string) {
	if m != nil {
		add(ctx, m.enquiriesCreated, attribute.String("lead_temp", leadTemp))
	}
}

func (m *Metrics) RecordFollowupAdded(ctx context.Context) {
	if m != nil {
		add(ctx, m.followupsAdded)
	}
}

func (m *Metrics) RecordVisitorLogged(ctx context.Context, purpose string) {
	if m != nil {
		add(ctx, m.visitorsLogged, attribute.String("purpose", purpose))
	}
}

func (m *Metrics) RecordSequenceAllocation(ctx context.Context, key string) {
	if m != nil {
		add(ctx, m.sequenceAllocations, attribute.String("key", key))
	}
}

func (m *Metrics) RecordSequenceConflict(ctx context.Context, key string) {
	if m != nil {
		add(ctx, m.sequenceConflicts, attribute.String("key", key))
	}
}

func (m *Metrics) RecordLedgerConflict(ctx context.Context) {
	if m != nil {
		add(ctx, m.ledgerConflicts)
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{}
}
