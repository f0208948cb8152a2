package state

import "encoding/binary"

var (
	stakeConfigKey      = []byte("stake/config")
	stakeNextIDKey      = []byte("stake/nextid")
	stakePositionPrefix = []byte("stake/positions/")
	stakeBalancePrefix  = []byte("stake/balances/")

	tokenStatPrefix      = []byte("token/stats/")
	tokenBalancePrefix   = []byte("token/balances/")
	tokenBlacklistPrefix = []byte("token/blacklist/")
)

func positionKey(id uint64) []byte {
	buf := make([]byte, len(stakePositionPrefix)+8)
	copy(buf, stakePositionPrefix)
	binary.BigEndian.PutUint64(buf[len(stakePositionPrefix):], id)
	return buf
}

func joinKey(prefix []byte, parts ...string) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, part...)
	}
	return buf
}

func stakeBalanceKey(owner, symbolCode string) []byte {
	return joinKey(stakeBalancePrefix, owner, symbolCode)
}

func tokenStatKey(contract, symbolCode string) []byte {
	return joinKey(tokenStatPrefix, contract, symbolCode)
}

func tokenBalanceKey(contract, owner, symbolCode string) []byte {
	return joinKey(tokenBalancePrefix, contract, owner, symbolCode)
}

func tokenBlacklistKey(contract, account string) []byte {
	return joinKey(tokenBlacklistPrefix, contract, account)
}

func tokenBlacklistScanPrefix(contract string) []byte {
	buf := joinKey(tokenBlacklistPrefix, contract)
	return append(buf, '/')
}
