// Package conflict picks the authoritative record for every logical object.
//
// Records sharing a record type and global FormID form a group. Stack order
// 0 is the most authoritative member (the latest-loaded plugin) and exactly
// one member per group wins. Ties on the winning stack order are broken by
// load order, plugin name and file offset, and always reported as an
// Ambiguity.
package conflict
