package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	joinParentRequested  metric.Int64Counter
	joinParentHandled    metric.Int64Counter
	cycleRejections      metric.Int64Counter
	membershipRequests   metric.Int64Counter
	notificationFanout   metric.Int64Counter
	organizationsCreated metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "assemblee"
	}
	meter := provider.Meter(name)

	joinParentRequested, err := meter.Int64Counter("assemblee_join_parent_requests_total")
	if err != nil {
		return nil, err
	}
	joinParentHandled, err := meter.Int64Counter("assemblee_join_parent_handled_total")
	if err != nil {
		return nil, err
	}
	cycleRejections, err := meter.Int64Counter("assemblee_hierarchy_cycle_rejections_total")
	if err != nil {
		return nil, err
	}
	membershipRequests, err := meter.Int64Counter("assemblee_membership_requests_total")
	if err != nil {
		return nil, err
	}
	notificationFanout, err := meter.Int64Counter("assemblee_notification_fanout_total")
	if err != nil {
		return nil, err
	}
	organizationsCreated, err := meter.Int64Counter("assemblee_organizations_created_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		joinParentRequested:  joinParentRequested,
		joinParentHandled:    joinParentHandled,
		cycleRejections:      cycleRejections,
		membershipRequests:   membershipRequests,
		notificationFanout:   notificationFanout,
		organizationsCreated: organizationsCreated,
	}, nil
}

// RecordJoinParentRequested increments join-parent request creation counts.
func (m *Metrics) RecordJoinParentRequested(ctx context.Context) {
	if m == nil {
		return
	}
	m.joinParentRequested.Add(ctx, 1)
}

// RecordJoinParentHandled increments handled request counts by outcome.
func (m *Metrics) RecordJoinParentHandled(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.joinParentHandled.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCycleRejection counts cycle-check rejections by check site.
func (m *Metrics) RecordCycleRejection(ctx context.Context, site string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("site", strings.TrimSpace(site)))
	m.cycleRejections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMembershipRequest counts user membership join requests.
func (m *Metrics) RecordMembershipRequest(ctx context.Context) {
	if m == nil {
		return
	}
	m.membershipRequests.Add(ctx, 1)
}

// RecordNotificationFanout counts notification rows written per trigger kind.
func (m *Metrics) RecordNotificationFanout(ctx context.Context, kind string, recipients int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))
	m.notificationFanout.Add(ctx, int64(recipients), metric.WithAttributes(attrs...))
}

// RecordOrganizationCreated counts organization creations.
func (m *Metrics) RecordOrganizationCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.organizationsCreated.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"outcome":     {},
	"site":        {},
	"kind":        {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
