// Package mocks 提供统一的测试 Mock 实现
//
// # 核心 Mock
//
//   - MockTransport: 模拟 interfaces.Transport，支持注入 Join/GetValue/SetValue 等行为
//   - MockEventBus: 模拟 interfaces.EventBus，记录所有发射的事件
//
// # 设计原则
//
// 1. 函数式注入: 每个 Mock 都支持通过 XxxFunc 字段注入自定义行为
// 2. 调用记录: 关键 Mock 记录调用历史，便于验证测试行为
// 3. 简化实现: 未注入行为时返回零值结果
//
// # 使用示例
//
//	tr := &mocks.MockTransport{
//	    JoinFunc: func(ctx context.Context) (int, error) {
//	        return 0, errors.New("bootstrap unreachable")
//	    },
//	}
//	mgr := attachment.NewManager(tr, nil, nil)
//	err := mgr.Attach(context.Background())
//
// 验证调用:
//
//	if len(tr.SetValueCalls()) != 1 {
//	    t.Errorf("expected 1 SetValue call")
//	}
package mocks
