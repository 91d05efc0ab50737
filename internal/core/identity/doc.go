// Package identity 管理节点身份
//
// 节点身份是首选套件下的一个密钥对，节点 ID 为其类型化公钥。
// 身份在首次启动时生成，保存在表存储的内部表中，之后每次启动加载同一身份。
//
//	表:  __veilcore_identity（1 列）
//	键:  node_identity
//	值:  "KIND:public:secret"
package identity
