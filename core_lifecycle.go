package veilcore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-veilcore/pkg/lib/log"
	"github.com/dep2p/go-veilcore/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期常量
// ════════════════════════════════════════════════════════════════════════════

const (
	// initializeTimeout 初始化超时（Fx App Start）
	initializeTimeout = 30 * time.Second

	// closeTimeout Close 使用的停止超时
	closeTimeout = 30 * time.Second
)

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期管理
// ════════════════════════════════════════════════════════════════════════════

// Start 启动核心
//
// 启动表存储引擎与监听清理任务，并开始把日志镜像为 LogUpdate。
// 启动后核心处于 Detached 状态，需要调用 Attach 连接网络。
func (c *Core) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}

	c.state = StateStarting
	logger.Info("正在启动核心")

	initCtx, initCancel := context.WithTimeout(ctx, initializeTimeout)
	defer initCancel()

	if err := c.app.Start(initCtx); err != nil {
		c.state = StateIdle
		logger.Error("核心启动失败", "error", err)
		return fmt.Errorf("initialize failed: %w", err)
	}

	c.removeSink = log.AddSink(c.updateLevel(), c.forwardLog)

	c.state = StateRunning
	c.started = true
	logger.Info("核心启动成功", "node", c.identity.ID().String())
	return nil
}

// Attach 连接网络
//
// 连接成功后离线写入会被推送，已有的监听在网络侧恢复。
func (c *Core) Attach(ctx context.Context) error {
	if err := c.checkRunning(); err != nil {
		return err
	}
	return c.attach.Attach(ctx)
}

// Detach 断开网络，打开的记录保持打开
func (c *Core) Detach(ctx context.Context) error {
	if err := c.checkRunning(); err != nil {
		return err
	}
	return c.attach.Detach(ctx)
}

// Stop 停止核心
//
// 停止顺序：
//  1. 发送 ShutdownUpdate
//  2. 关闭打开的记录并取消监听
//  3. 断开网络
//  4. 关闭表存储与事件总线
//
// 停止后的核心不能再次启动。
func (c *Core) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !c.started {
		return ErrNotStarted
	}
	return c.stopLocked(ctx)
}

// Close 关闭核心并释放所有资源
//
// 可重复调用。未启动的核心直接释放资源。
func (c *Core) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	if !c.started {
		c.closed = true
		c.state = StateStopped
		return c.releaseUnstarted()
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return c.stopLocked(ctx)
}

// stopLocked 调用方持有 c.mu
func (c *Core) stopLocked(ctx context.Context) error {
	c.state = StateStopping
	logger.Info("正在停止核心")

	// 总线关闭前排空队列，订阅者一定能收到关闭事件
	if err := c.shutdownEmitter.Emit(types.ShutdownUpdate{}); err != nil {
		logger.Warn("发送关闭事件失败", "error", err)
	}
	if c.removeSink != nil {
		c.removeSink()
		c.removeSink = nil
	}

	err := multierr.Combine(
		c.logEmitter.Close(),
		c.shutdownEmitter.Close(),
	)
	if stopErr := c.app.Stop(ctx); stopErr != nil {
		logger.Error("停止 Fx 应用失败", "error", stopErr)
		err = multierr.Append(err, fmt.Errorf("stop fx app: %w", stopErr))
	}

	c.state = StateStopped
	c.started = false
	c.closed = true
	logger.Info("核心已停止")
	return err
}
