package dht

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-veilcore/pkg/interfaces"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// ============================================================================
//                              记录检查
// ============================================================================

// InspectRecord 检查子键序列号
//
// 请求区间为空时检查全部子键，超出模式的部分被裁掉。
// Local 只读本地；其余范围先获取网络序列号，SyncGet 拉取较新的值，
// SyncSet 推送本地较新的值；UpdateGet/UpdateSet 只报告需要同步的子键。
func (m *Manager) InspectRecord(ctx context.Context, safety types.SafetySelection, key types.RecordKey, subkeys types.ValueSubkeyRangeSet, scope types.DHTReportScope) (report types.DHTRecordReport, err error) {
	const op = "inspect_record"
	start := time.Now()
	defer func() { m.observe(op, start, err) }()

	if err := ctx.Err(); err != nil {
		return report, fail(op, key, err)
	}
	if scope < types.ReportScopeLocal || scope > types.ReportScopeUpdateSet {
		return report, fail(op, key, fmt.Errorf("%w: %d", types.ErrInvalidReportScope, int(scope)))
	}
	if _, err := m.openState(key); err != nil {
		return report, fail(op, key, err)
	}
	meta, err := m.loadOpenMeta(key)
	if err != nil {
		return report, fail(op, key, err)
	}
	desc := meta.Descriptor

	resolved := desc.Schema.FullRange()
	if !subkeys.IsEmpty() {
		resolved = subkeys.Intersect(resolved)
		if resolved.IsEmpty() {
			return report, fail(op, key, fmt.Errorf("%w: %s", ErrSubkeyOutOfRange, subkeys))
		}
	}
	list := resolved.Subkeys()

	if scope == types.ReportScopeLocal {
		return localReport(meta, resolved, list), nil
	}

	if err := m.attach.Check(); err != nil {
		return report, fail(op, key, err)
	}
	nctx, cancel := context.WithTimeout(ctx, m.cfg.GetTimeout)
	resp, err := m.transport.InspectValue(nctx, interfaces.InspectValueRequest{
		Safety:  safety,
		Key:     key,
		Subkeys: resolved,
	})
	cancel()
	if err != nil {
		return report, fail(op, key, err)
	}
	if len(resp.Seqs) != len(list) {
		return report, fail(op, key, fmt.Errorf("%w: %d seqs for %d subkeys", ErrInvalidValue, len(resp.Seqs), len(list)))
	}
	network := append([]types.ValueSeqNum(nil), resp.Seqs...)

	switch scope {
	case types.ReportScopeSyncGet:
		if err := m.syncGet(ctx, safety, desc, meta, list, network); err != nil {
			return report, fail(op, key, err)
		}
	case types.ReportScopeSyncSet:
		if network, err = m.syncSet(ctx, safety, desc, meta, list, network); err != nil {
			return report, fail(op, key, err)
		}
	}

	if meta, err = m.loadOpenMeta(key); err != nil {
		return report, fail(op, key, err)
	}
	report = localReport(meta, resolved, list)
	report.NetworkSeqs = network

	switch scope {
	case types.ReportScopeUpdateGet:
		report = filterReport(report, func(local, net types.ValueSeqNum) bool {
			return net != types.ValueSeqNumNone && (local == types.ValueSeqNumNone || net > local)
		})
	case types.ReportScopeUpdateSet:
		report = filterReport(report, func(local, net types.ValueSeqNum) bool {
			return local != types.ValueSeqNumNone && (net == types.ValueSeqNumNone || local > net)
		})
	}
	return report, nil
}

// localReport 由本地元数据生成报告，NetworkSeqs 为空
func localReport(meta *recordMeta, resolved types.ValueSubkeyRangeSet, list []types.ValueSubkey) types.DHTRecordReport {
	local := make([]types.ValueSeqNum, len(list))
	for i, sk := range list {
		local[i] = meta.seq(sk)
	}
	return types.DHTRecordReport{
		Subkeys:        resolved,
		OfflineSubkeys: meta.Offline.Intersect(resolved),
		LocalSeqs:      local,
		NetworkSeqs:    []types.ValueSeqNum{},
	}
}

// filterReport 只保留满足条件的子键
func filterReport(r types.DHTRecordReport, keep func(local, net types.ValueSeqNum) bool) types.DHTRecordReport {
	list := r.Subkeys.Subkeys()
	var picked []types.ValueSubkey
	out := types.DHTRecordReport{
		LocalSeqs:   []types.ValueSeqNum{},
		NetworkSeqs: []types.ValueSeqNum{},
	}
	for i, sk := range list {
		if !keep(r.LocalSeqs[i], r.NetworkSeqs[i]) {
			continue
		}
		picked = append(picked, sk)
		out.LocalSeqs = append(out.LocalSeqs, r.LocalSeqs[i])
		out.NetworkSeqs = append(out.NetworkSeqs, r.NetworkSeqs[i])
	}
	out.Subkeys = types.SubkeysOf(picked...)
	out.OfflineSubkeys = r.OfflineSubkeys.Intersect(out.Subkeys)
	return out
}

// syncGet 并发拉取网络上较新的子键
func (m *Manager) syncGet(ctx context.Context, safety types.SafetySelection, desc types.DHTRecordDescriptor, meta *recordMeta, list []types.ValueSubkey, network []types.ValueSeqNum) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncParallelism)
	for i, sk := range list {
		net := network[i]
		if net == types.ValueSeqNumNone {
			continue
		}
		if local := meta.seq(sk); local != types.ValueSeqNumNone && local >= net {
			continue
		}
		sk := sk
		g.Go(func() error {
			_, err := m.fetchValue(gctx, safety, desc, sk)
			return err
		})
	}
	return g.Wait()
}

// syncSet 推送本地较新的子键，返回推送后的网络序列号
func (m *Manager) syncSet(ctx context.Context, safety types.SafetySelection, desc types.DHTRecordDescriptor, meta *recordMeta, list []types.ValueSubkey, network []types.ValueSeqNum) ([]types.ValueSeqNum, error) {
	unlock := m.writes.lock(desc.Key)
	defer unlock()

	out := append([]types.ValueSeqNum(nil), network...)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncParallelism)
	for i, sk := range list {
		local := meta.seq(sk)
		if local == types.ValueSeqNumNone {
			continue
		}
		if network[i] != types.ValueSeqNumNone && network[i] >= local {
			continue
		}
		i, sk := i, sk
		g.Go(func() error {
			seq, err := m.pushLocal(gctx, safety, desc, sk)
			if err != nil {
				return err
			}
			out[i] = seq
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
