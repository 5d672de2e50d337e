// Package wal turns the storage engine's write-ahead log into a stream of
// table-level changes.
//
// Every committed batch is one log record. DecodeBatch maps the engine's
// record kinds onto three logical operations:
//
//	Set, SetWithDelete                      -> Put
//	Delete, SingleDelete, DeleteSized       -> Delete, or DeleteRange for a hint key
//	RangeDelete                             -> DeleteRange
//
// A Stream walks the log files of a data directory, including the ones the
// engine has archived, in file-number order and yields the decoded batches
// with strictly ascending sequence numbers.
package wal
