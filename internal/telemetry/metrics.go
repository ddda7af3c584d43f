package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/memberdesk/memberdesk"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Domain claim ledger metrics
	ClaimsTotal           metric.Int64Counter
	ClaimConflictsTotal   metric.Int64Counter
	ReleasesTotal         metric.Int64Counter
	PrimaryElectionsTotal metric.Int64Counter
	SyncRepairsTotal      metric.Int64Counter
	ContactsLinkedTotal   metric.Int64Counter

	// Reconciliation report metrics
	ReportRunsTotal metric.Int64Counter
	ReportDuration  metric.Float64Histogram

	// Migration metrics
	MembersMigratedTotal        metric.Int64Counter
	MigrationMemberErrorsTotal  metric.Int64Counter
	MembershipAuditRepairsTotal metric.Int64Counter

	// Directory client metrics
	DirectoryRequestsTotal metric.Int64Counter
	DirectoryErrorsTotal   metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.ClaimsTotal, _ = meter.Int64Counter(
		"memberdesk.claims.total",
		metric.WithDescription("Total number of domain claims written"),
		metric.WithUnit("{claim}"),
	)

	m.ClaimConflictsTotal, _ = meter.Int64Counter(
		"memberdesk.claims.conflicts.total",
		metric.WithDescription("Total number of domain claim attempts rejected as conflicts"),
		metric.WithUnit("{conflict}"),
	)

	m.ReleasesTotal, _ = meter.Int64Counter(
		"memberdesk.claims.releases.total",
		metric.WithDescription("Total number of domain claims released"),
		metric.WithUnit("{release}"),
	)

	m.PrimaryElectionsTotal, _ = meter.Int64Counter(
		"memberdesk.claims.primary_elections.total",
		metric.WithDescription("Total number of primary re-elections after a release"),
		metric.WithUnit("{election}"),
	)

	m.SyncRepairsTotal, _ = meter.Int64Counter(
		"memberdesk.claims.sync_repairs.total",
		metric.WithDescription("Total number of claim rows inserted by domain sync"),
		metric.WithUnit("{claim}"),
	)

	m.ContactsLinkedTotal, _ = meter.Int64Counter(
		"memberdesk.contacts.linked.total",
		metric.WithDescription("Total number of contacts linked after a domain claim"),
		metric.WithUnit("{contact}"),
	)

	m.ReportRunsTotal, _ = meter.Int64Counter(
		"memberdesk.report.runs.total",
		metric.WithDescription("Total number of reconciliation report runs"),
		metric.WithUnit("{run}"),
	)

	m.ReportDuration, _ = meter.Float64Histogram(
		"memberdesk.report.duration",
		metric.WithDescription("Duration of reconciliation report runs"),
		metric.WithUnit("ms"),
	)

	m.MembersMigratedTotal, _ = meter.Int64Counter(
		"memberdesk.migration.members.total",
		metric.WithDescription("Total number of members moved between organizations"),
		metric.WithUnit("{member}"),
	)

	m.MigrationMemberErrorsTotal, _ = meter.Int64Counter(
		"memberdesk.migration.member_errors.total",
		metric.WithDescription("Total number of per-member migration failures"),
		metric.WithUnit("{error}"),
	)

	m.MembershipAuditRepairsTotal, _ = meter.Int64Counter(
		"memberdesk.audit.repairs.total",
		metric.WithDescription("Total number of membership cache rows repaired by audits"),
		metric.WithUnit("{row}"),
	)

	m.DirectoryRequestsTotal, _ = meter.Int64Counter(
		"memberdesk.directory.requests.total",
		metric.WithDescription("Total number of requests to the organization directory"),
		metric.WithUnit("{request}"),
	)

	m.DirectoryErrorsTotal, _ = meter.Int64Counter(
		"memberdesk.directory.errors.total",
		metric.WithDescription("Total number of failed organization directory requests"),
		metric.WithUnit("{error}"),
	)

	return m
}
