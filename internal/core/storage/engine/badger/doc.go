// Package badger 提供基于 BadgerDB 的键值引擎实现
//
// # 使用示例
//
//	db, err := badger.New(engine.DefaultConfig("/data/tables"))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Put([]byte("key"), []byte("value")); err != nil {
//	    return err
//	}
//	value, err := db.Get([]byte("key"))
//
// 测试中使用 engine.InMemoryConfig() 或 t.TempDir()。
package badger
