// Package codec maps logical tables onto the single flat keyspace of the
// storage engine.
//
// Every key written to the engine is prefixed with the 4-byte big-endian id
// of the table that owns it:
//
//	[TableID(4)][UserKey]
//
// Because the id is big-endian, byte order of encoded keys equals numeric
// order of table ids, and within one table it equals the byte order of the
// user keys.
//
// # Reserved Tables
//
// A few ids never belong to user tables:
//   - 0: name -> id registry (key: name bytes, value: 4-byte id)
//   - 1: id -> name registry (key: 4-byte id, value: name bytes)
//   - 2: info table holding the id counter and the key-length convention
//   - 0xFFFFFFFF: delete-range hint, only ever seen in the write-ahead log
//
// User tables are allocated from [1024, 0xFFFFFFFE].
//
// # Anchors
//
// Each table has an anchor: the table id followed by maxKeyLen+1 bytes of
// 0xFF. The anchor is stored as a real record (key == value) when the table
// is created, so it bounds forward scans and gives "seek to last" an entry
// to step back from. A user key sorts before the anchor as long as it does
// not start with maxKeyLen+1 bytes of 0xFF; CheckUserKey rejects keys that
// would not.
//
// # Delete-Range Hints
//
// A range delete can be carried through the log as a point delete in the
// hint table. The payload is
//
//	[0xFFFFFFFF][len(from) uint32 BE][from][to]
//
// where from and to are full encoded keys. EncodeDeleteRangeHint and
// DecodeDeleteRangeHint convert between the two forms.
//
// All functions in this package are pure and safe for concurrent use.
package codec
