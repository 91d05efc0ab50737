package metrics

import (
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-veilcore/internal/core/crypto"
	"github.com/dep2p/go-veilcore/internal/core/tablestore"
)

// ============================================================================
//                              Fx 模块
// ============================================================================

// Result 模块输出
type Result struct {
	fx.Out

	Metrics  *Metrics
	Reporter Reporter
}

// ProvideMetrics 创建指标集合
func ProvideMetrics() Result {
	m := New()
	return Result{Metrics: m, Reporter: m}
}

// gaugeParams 只读指标的数据源
type gaugeParams struct {
	fx.In

	Metrics  *Metrics
	Provider *crypto.Provider  `optional:"true"`
	Store    *tablestore.Store `optional:"true"`
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideMetrics),
		fx.Invoke(registerComponentGauges),
	)
}

func registerComponentGauges(p gaugeParams) error {
	var err error
	if p.Provider != nil {
		provider := p.Provider
		err = multierr.Append(err, p.Metrics.RegisterGaugeFunc("crypto_dh_cache_hits",
			"Cached DH lookups served from the cache.",
			func() float64 { return float64(provider.Stats().CacheHits) }))
		err = multierr.Append(err, p.Metrics.RegisterGaugeFunc("crypto_dh_cache_misses",
			"Cached DH lookups that computed a new secret.",
			func() float64 { return float64(provider.Stats().CacheMisses) }))
	}
	if p.Store != nil {
		store := p.Store
		err = multierr.Append(err, p.Metrics.RegisterGaugeFunc("tablestore_open_tables",
			"Tables currently held open.",
			func() float64 { return float64(len(store.OpenTables())) }))
		err = multierr.Append(err, p.Metrics.RegisterGaugeFunc("tablestore_writes",
			"Writes applied by the storage engine.",
			func() float64 { return float64(store.Stats().NumWrites) }))
	}
	return err
}
