// Package testutil 提供测试辅助工具
package testutil

// 测试数据固件
//
// 提供测试中常用的常量值，确保测试一致性。

const (
	// DefaultTestNetworkPassword 默认测试网络口令
	//
	// 使用同一口令的核心落在同一个网络分区。
	DefaultTestNetworkPassword = "test-network-for-veilcore-integration"

	// DefaultTestTablePassword 默认测试表存储口令
	DefaultTestTablePassword = "test-device-password"

	// DefaultTestTable 默认测试表名
	DefaultTestTable = "test_table"
)
