package tree

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	RBTreeStatsName = "xtree/rbtree"
)

type rbTreeStats struct {
	insertedCount metric.Int64Counter
	removedCount  metric.Int64Counter
	rotationCount metric.Int64Counter
	fixupSteps    metric.Int64Histogram
	keyCount      metric.Int64ObservableGauge
}

func (stats *rbTreeStats) IncInsert() {
	if stats == nil {
		return
	}
	stats.insertedCount.Add(context.Background(), 1)
}

func (stats *rbTreeStats) IncRemove() {
	if stats == nil {
		return
	}
	stats.removedCount.Add(context.Background(), 1)
}

func (stats *rbTreeStats) IncRotation() {
	if stats == nil {
		return
	}
	stats.rotationCount.Add(context.Background(), 1)
}

func (stats *rbTreeStats) RecordInsertFixup(steps int64) {
	if stats == nil {
		return
	}
	as := attribute.NewSet(
		attribute.String("rbtree.fixup.op", "insert"),
	)
	stats.fixupSteps.Record(context.Background(), steps, metric.WithAttributeSet(as))
}

func (stats *rbTreeStats) RecordRemoveFixup(steps int64) {
	if stats == nil {
		return
	}
	as := attribute.NewSet(
		attribute.String("rbtree.fixup.op", "remove"),
	)
	stats.fixupSteps.Record(context.Background(), steps, metric.WithAttributeSet(as))
}

func newRBTreeStats(name string, size func() int64) *rbTreeStats {
	if len(name) <= 0 {
		name = "default"
	}
	meterName := fmt.Sprintf("%s/%s", RBTreeStatsName, name)
	stats := &rbTreeStats{
		insertedCount: lo.Must[metric.Int64Counter](otel.Meter(meterName).
			Int64Counter(
				"rbtree.inserted.count",
				metric.WithDescription("The number of keys inserted into the rbtree."),
			),
		),
		removedCount: lo.Must[metric.Int64Counter](otel.Meter(meterName).
			Int64Counter(
				"rbtree.removed.count",
				metric.WithDescription("The number of keys removed from the rbtree."),
			),
		),
		rotationCount: lo.Must[metric.Int64Counter](otel.Meter(meterName).
			Int64Counter(
				"rbtree.rotation.count",
				metric.WithDescription("The number of left or right rotations performed by the rbtree."),
			),
		),
		fixupSteps: lo.Must[metric.Int64Histogram](otel.Meter(meterName).
			Int64Histogram(
				"rbtree.fixup.steps",
				metric.WithDescription("The loop steps of one rebalance after an insert or a remove."),
			),
		),
	}
	stats.keyCount = lo.Must[metric.Int64ObservableGauge](otel.Meter(meterName).
		Int64ObservableGauge(
			"rbtree.key.count",
			metric.WithDescription("The number of keys held by the rbtree."),
			metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
				ob.Observe(size())
				return nil
			}),
		),
	)
	return stats
}
