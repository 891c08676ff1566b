package resolve

import (
	"reflect"
	"time"

	"github.com/viant/gmetric"
	"github.com/viant/gmetric/counter"
	"github.com/viant/gmetric/provider"
)

// Counter is the operation counter contract satisfied by gmetric counters.
type Counter interface {
	Begin(started time.Time) counter.OnDone
	IncrementValue(value interface{}) int64
}

// Metrics exposes resolution counters on a shared gmetric service.
type Metrics struct {
	*gmetric.Service
	operation Counter
}

const (
	metricMerge       = "merge"
	metricMaterialize = "materialize"
	metricRollback    = "rollback"
)

type metricsLocation struct{}

func metricLocation() string {
	return reflect.TypeOf(metricsLocation{}).PkgPath()
}

// NewMetrics creates resolution metrics on the supplied service.
func NewMetrics(service *gmetric.Service) *Metrics {
	result := &Metrics{Service: service}
	result.operation = service.MultiOperationCounter(metricLocation(), "view_expand", "view expand performance", time.Millisecond, time.Minute, 2, provider.NewBasic())
	return result
}

func (r *Resolver) begin() counter.OnDone {
	if r.metrics == nil {
		return func(end time.Time, values ...interface{}) int64 {
			return 0
		}
	}
	return r.metrics.operation.Begin(time.Now())
}

func (r *Resolver) count(value string) {
	if r.metrics == nil {
		return
	}
	r.metrics.operation.IncrementValue(value)
}
