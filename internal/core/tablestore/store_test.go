package tablestore

import (
	"bytes"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-veilcore/config"
	"github.com/dep2p/go-veilcore/internal/core/crypto"
	"github.com/dep2p/go-veilcore/internal/core/storage/engine"
	"github.com/dep2p/go-veilcore/internal/core/storage/engine/badger"
)

// ============================================================================
// 测试辅助
// ============================================================================

func testProvider(t *testing.T) *crypto.Provider {
	t.Helper()
	p, err := crypto.NewProvider(config.DefaultCryptoConfig())
	require.NoError(t, err)
	return p
}

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	eng, err := badger.New(engine.InMemoryConfig())
	require.NoError(t, err)
	s, err := New(eng, testProvider(t), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func openOnDisk(t *testing.T, dir string, opts Options) (*Store, error) {
	t.Helper()
	eng, err := badger.New(engine.DefaultConfig(dir))
	require.NoError(t, err)
	s, err := New(eng, testProvider(t), opts)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}
	return s, nil
}

// ============================================================================
// 基础读写
// ============================================================================

func TestTableDB_RoundTrip(t *testing.T) {
	s := newTestStore(t, Options{})
	db, err := s.Open("test", 2)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Store(0, []byte("k"), []byte("v0")))
	require.NoError(t, db.Store(1, []byte("k"), []byte("v1")))

	v, err := db.Load(0, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v0"), v)
	v, err = db.Load(1, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	_, err = db.Load(0, []byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.Load(2, []byte("k"))
	assert.ErrorIs(t, err, ErrInvalidColumn)
}

func TestTableDB_GetKeys(t *testing.T) {
	s := newTestStore(t, Options{})
	db, err := s.Open("keys", 2)
	require.NoError(t, err)
	defer db.Close()

	keys, err := db.GetKeys(0)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, db.Store(0, []byte("b"), []byte("1")))
	require.NoError(t, db.Store(0, []byte("a"), []byte("2")))
	require.NoError(t, db.Store(1, []byte("c"), []byte("3")))

	keys, err = db.GetKeys(0)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, keys)

	keys, err = db.GetKeys(1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("c")}, keys)
}

func TestTableDB_DeleteReturnsOld(t *testing.T) {
	s := newTestStore(t, Options{})
	db, err := s.Open("del", 1)
	require.NoError(t, err)
	defer db.Close()

	old, err := db.Delete(0, []byte("none"))
	require.NoError(t, err)
	assert.Nil(t, old)

	require.NoError(t, db.Store(0, []byte("k"), []byte("v")))
	old, err = db.Delete(0, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), old)

	_, err = db.Load(0, []byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTableDB_JSON(t *testing.T) {
	s := newTestStore(t, Options{})
	db, err := s.Open("json", 1)
	require.NoError(t, err)
	defer db.Close()

	type rec struct {
		A int    `json:"a"`
		B string `json:"b"`
	}
	require.NoError(t, db.StoreJSON(0, []byte("r"), rec{A: 1, B: "x"}))
	var got rec
	require.NoError(t, db.LoadJSON(0, []byte("r"), &got))
	assert.Equal(t, rec{A: 1, B: "x"}, got)
}

// ============================================================================
// 句柄与列数
// ============================================================================

func TestStore_OpenSharedAndColumnMismatch(t *testing.T) {
	s := newTestStore(t, Options{})
	a, err := s.Open("shared", 2)
	require.NoError(t, err)
	b, err := s.Open("shared", 2)
	require.NoError(t, err)

	require.NoError(t, a.Store(0, []byte("k"), []byte("v")))
	v, err := b.Load(0, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	_, err = s.Open("shared", 3)
	assert.ErrorIs(t, err, ErrColumnMismatch)
	_, err = s.Open("shared", 1)
	assert.ErrorIs(t, err, ErrColumnMismatch)

	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Store(0, []byte("k"), nil), ErrClosed)
	// 其他句柄不受影响
	_, err = b.Load(0, []byte("k"))
	assert.NoError(t, err)
	require.NoError(t, b.Close())
	assert.Empty(t, s.OpenTables())
}

func TestStore_ReopenWithDifferentColumnCount(t *testing.T) {
	s := newTestStore(t, Options{})
	db, err := s.Open("grow", 1)
	require.NoError(t, err)
	require.NoError(t, db.Store(0, []byte("k"), []byte("v")))
	require.NoError(t, db.Close())

	db, err = s.Open("grow", 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), db.ColumnCount())
	require.NoError(t, db.Store(2, []byte("k2"), []byte("v2")))
	require.NoError(t, db.Close())

	// 以更少列数打开时句柄受限，数据保留
	db, err = s.Open("grow", 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), db.ColumnCount())
	_, err = db.Load(2, []byte("k2"))
	assert.ErrorIs(t, err, ErrInvalidColumn)
	require.NoError(t, db.Close())

	db, err = s.Open("grow", 3)
	require.NoError(t, err)
	v, err := db.Load(2, []byte("k2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)
	require.NoError(t, db.Close())
}

func TestStore_InvalidOpen(t *testing.T) {
	s := newTestStore(t, Options{})
	_, err := s.Open("bad name", 1)
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = s.Open("", 1)
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = s.Open("ok", 0)
	assert.ErrorIs(t, err, ErrInvalidColumn)
}

// ============================================================================
// 表管理
// ============================================================================

func TestStore_DeleteRenameList(t *testing.T) {
	s := newTestStore(t, Options{})

	db, err := s.Open("one", 1)
	require.NoError(t, err)
	require.NoError(t, db.Store(0, []byte("k"), []byte("v")))

	_, err = s.Delete("one")
	assert.ErrorIs(t, err, ErrTableOpen)
	require.NoError(t, db.Close())

	db2, err := s.Open("two", 1)
	require.NoError(t, err)
	require.NoError(t, db2.Close())

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, names)

	assert.ErrorIs(t, s.Rename("one", "two"), ErrTableExists)
	assert.ErrorIs(t, s.Rename("zzz", "yyy"), ErrTableNotFound)
	require.NoError(t, s.Rename("one", "three"))

	db, err = s.Open("three", 1)
	require.NoError(t, err)
	v, err := db.Load(0, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
	require.NoError(t, db.Close())

	existed, err := s.Delete("three")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = s.Delete("three")
	require.NoError(t, err)
	assert.False(t, existed)

	// 重新创建的同名表为空
	db, err = s.Open("three", 1)
	require.NoError(t, err)
	keys, err := db.GetKeys(0)
	require.NoError(t, err)
	assert.Empty(t, keys)
	require.NoError(t, db.Close())
}

func TestStore_RenameOpenTable(t *testing.T) {
	s := newTestStore(t, Options{})
	db, err := s.Open("before", 1)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, s.Rename("before", "after"))
	assert.Equal(t, "after", db.Name())
}

func TestStore_Namespace(t *testing.T) {
	eng, err := badger.New(engine.InMemoryConfig())
	require.NoError(t, err)
	p := testProvider(t)

	global, err := New(eng, p, Options{})
	require.NoError(t, err)
	ns, err := New(eng, p, Options{Namespace: "alpha"})
	require.NoError(t, err)
	defer global.Close()

	a, err := global.Open("t", 1)
	require.NoError(t, err)
	require.NoError(t, a.Store(0, []byte("k"), []byte("global")))
	require.NoError(t, a.Close())

	b, err := ns.Open("t", 1)
	require.NoError(t, err)
	_, err = b.Load(0, []byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, b.Close())

	gl, err := global.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, gl)
	nl, err := ns.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, nl)
}

func TestStore_DeleteAll(t *testing.T) {
	s := newTestStore(t, Options{})
	db, err := s.Open("a", 1)
	require.NoError(t, err)
	require.NoError(t, db.Store(0, []byte("k"), []byte("v")))

	assert.ErrorIs(t, s.DeleteAll(), ErrTableOpen)
	require.NoError(t, db.Close())
	require.NoError(t, s.DeleteAll())

	names, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStore_CloseInvalidatesHandles(t *testing.T) {
	eng, err := badger.New(engine.InMemoryConfig())
	require.NoError(t, err)
	s, err := New(eng, testProvider(t), Options{})
	require.NoError(t, err)

	db, err := s.Open("x", 1)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, db.Store(0, []byte("k"), nil), ErrClosed)
	_, err = s.Open("x", 1)
	assert.ErrorIs(t, err, ErrClosed)
}

// ============================================================================
// 事务
// ============================================================================

func TestTransaction_CommitRollback(t *testing.T) {
	s := newTestStore(t, Options{})
	db, err := s.Open("txn", 2)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Store(0, []byte("gone"), []byte("x")))

	tx := db.CreateTransaction()
	require.NoError(t, tx.Store(0, []byte("a"), []byte("1")))
	require.NoError(t, tx.Store(0, []byte("a"), []byte("2")))
	require.NoError(t, tx.Store(1, []byte("b"), []byte("3")))
	require.NoError(t, tx.Delete(0, []byte("gone")))

	// 提交前不可见
	_, err = db.Load(0, []byte("a"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, tx.Commit())
	v, err := db.Load(0, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)
	_, err = db.Load(0, []byte("gone"))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, tx.Commit(), ErrTransactionDone)
	assert.ErrorIs(t, tx.Store(0, []byte("z"), nil), ErrTransactionDone)

	rb := db.CreateTransaction()
	require.NoError(t, rb.Store(0, []byte("never"), []byte("1")))
	rb.Rollback()
	assert.ErrorIs(t, rb.Commit(), ErrTransactionDone)
	_, err = db.Load(0, []byte("never"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransaction_InvalidColumnAndClosedHandle(t *testing.T) {
	s := newTestStore(t, Options{})
	db, err := s.Open("txn2", 1)
	require.NoError(t, err)

	tx := db.CreateTransaction()
	assert.ErrorIs(t, tx.Store(5, []byte("k"), nil), ErrInvalidColumn)
	require.NoError(t, tx.Store(0, []byte("k"), []byte("v")))

	require.NoError(t, db.Close())
	assert.ErrorIs(t, tx.Commit(), ErrClosed)

	db, err = s.Open("txn2", 1)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Load(0, []byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// 加密
// ============================================================================

func TestStore_EncryptedValues(t *testing.T) {
	s := newTestStore(t, Options{Encrypt: true})
	require.True(t, s.Encrypted())

	db, err := s.Open("secret", 1)
	require.NoError(t, err)
	defer db.Close()

	plain := []byte("top secret value")
	require.NoError(t, db.Store(0, []byte("k"), plain))

	// 底层不出现明文
	raw, err := s.eng.Get(dataKey(db.(*TableDB).t.id, 0, []byte("k")))
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, plain))

	v, err := db.Load(0, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, plain, v)

	// 密文挪到其他键下无法解密
	require.NoError(t, s.eng.Put(dataKey(db.(*TableDB).t.id, 0, []byte("moved")), raw))
	_, err = db.Load(0, []byte("moved"))
	assert.ErrorIs(t, err, ErrDecrypt)

	raw[len(raw)-1] ^= 1
	require.NoError(t, s.eng.Put(dataKey(db.(*TableDB).t.id, 0, []byte("k")), raw))
	_, err = db.Load(0, []byte("k"))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestStore_DeviceKeyPersistence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tables")

	s, err := openOnDisk(t, dir, Options{Encrypt: true, DeviceKeyPassword: "hunter2"})
	require.NoError(t, err)
	db, err := s.Open("persist", 1)
	require.NoError(t, err)
	require.NoError(t, db.Store(0, []byte("k"), []byte("v")))
	require.NoError(t, db.Close())
	require.NoError(t, s.Close())

	// 错误口令
	_, err = openOnDisk(t, dir, Options{Encrypt: true, DeviceKeyPassword: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidDeviceKey)

	// 缺少口令
	_, err = openOnDisk(t, dir, Options{Encrypt: true})
	assert.ErrorIs(t, err, ErrInvalidDeviceKey)

	s, err = openOnDisk(t, dir, Options{Encrypt: true, DeviceKeyPassword: "hunter2"})
	require.NoError(t, err)
	defer s.Close()
	db, err = s.Open("persist", 1)
	require.NoError(t, err)
	defer db.Close()
	v, err := db.Load(0, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	names, err := s.List()
	require.NoError(t, err)
	sort.Strings(names)
	assert.Equal(t, []string{"persist"}, names)
}

// ============================================================================
// 模块
// ============================================================================

func TestProvideStore_DeleteOnStartup(t *testing.T) {
	cfg := config.NewConfig()
	cfg.TableStore.Directory = t.TempDir()

	res, err := ProvideStore(Params{Config: cfg, Crypto: testProvider(t)})
	require.NoError(t, err)
	db, err := res.Store.Open("wipe", 1)
	require.NoError(t, err)
	require.NoError(t, db.Store(0, []byte("k"), []byte("v")))
	require.NoError(t, db.Close())
	require.NoError(t, res.Store.Close())

	cfg.TableStore.DeleteOnStartup = true
	res, err = ProvideStore(Params{Config: cfg, Crypto: testProvider(t)})
	require.NoError(t, err)
	defer res.Store.Close()
	names, err := res.TableStore.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}
