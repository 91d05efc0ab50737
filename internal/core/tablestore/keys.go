package tablestore

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	namePrefix     = "n/"
	metaPrefix     = "m/"
	dataPrefix     = "t/"
	deviceKeyEntry = "s/device_encryption_key"

	// namespacePrefix 命名空间表名前缀
	namespacePrefix = "_ns_"
)

func nameKey(name string) []byte { return []byte(namePrefix + name) }

func metaKey(id string) []byte { return []byte(metaPrefix + id) }

// tablePrefix t/<id>/
func tablePrefix(id string) []byte { return []byte(dataPrefix + id + "/") }

// columnPrefix t/<id>/<col>
func columnPrefix(id string, col uint32) []byte {
	p := tablePrefix(id)
	return binary.BigEndian.AppendUint32(p, col)
}

// dataKey t/<id>/<col><key>
func dataKey(id string, col uint32, key []byte) []byte {
	return append(columnPrefix(id, col), key...)
}

// associatedData 值加密的关联数据：列号与键
func associatedData(col uint32, key []byte) []byte {
	return append(binary.BigEndian.AppendUint32(nil, col), key...)
}

func encodeColumnCount(n uint32) []byte { return binary.BigEndian.AppendUint32(nil, n) }

func decodeColumnCount(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("tablestore: corrupt column count (%d bytes)", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// validateName 表名只允许字母、数字、下划线与连字符
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// namespacedName 在命名空间内的实际表名
func namespacedName(namespace, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if namespace == "" {
		return name, nil
	}
	return namespacePrefix + namespace + "_" + name, nil
}

// userName 从实际表名还原用户表名，不属于该命名空间时返回 false
func userName(namespace, stored string) (string, bool) {
	if namespace == "" {
		return stored, !strings.HasPrefix(stored, namespacePrefix)
	}
	p := namespacePrefix + namespace + "_"
	if !strings.HasPrefix(stored, p) {
		return "", false
	}
	return stored[len(p):], true
}
