// Package engine 定义表存储底层的键值引擎接口
//
// 表存储把所有表放在同一个引擎实例中，按键前缀隔离。
// 引擎只负责有序字节键值、前缀遍历、事务与批量删除，
// 不理解表、列与加密。
//
// # 线程安全
//
// 所有接口实现必须保证线程安全。批量操作和事务在提交前
// 是独立的，不影响其他并发操作。
package engine
