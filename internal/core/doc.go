// Package core runs duplicate-invoice analyses over AP ledgers.
//
// This package holds the domain pipeline independent of any transport. It is
// used by the HTTP server, the CLI and tests without modification.
//
// # Architecture
//
//   - Engine: executes one request synchronously. A parse-headers request
//     yields a headers message; a process request streams the file through
//     the chunk parser, normalizes every data row and runs the two detection
//     tiers, yielding progress messages and then one result message.
//   - Service: runs Engine requests in the background, one goroutine per
//     analysis, and fans their messages out to subscribers.
//   - Limiter: bounds how many analyses run at once.
//
// # Messages
//
// Every request ends with exactly one terminal message (headers, result or
// error). Progress messages only precede it:
//
//	{"type":"progress","stage":"Parsing CSV","progress":40}
//	{"type":"progress","stage":"Detecting duplicates","progress":10}
//	{"type":"result","summary":{...},"groups":[...],"rows":[...],"rawHeaders":[...]}
//
// # Analysis Jobs
//
//  1. Client calls [Service.StartAnalysis] with a reader and a column mapping
//  2. The Service takes a Limiter slot and starts the Engine in a goroutine
//  3. Progress is broadcast to subscribers via [Service.Subscribe]
//  4. The terminal message is saved to the store, then delivered
//  5. The analysis stays addressable in memory for the result TTL; after that
//     [Service.Result] answers from the store
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE004: File errors (size, unreadable, missing)
//   - MAP001-MAP003: Mapping and option errors
//   - ANL001-ANL004: Analysis errors (not found, busy, cancelled, timeout)
//   - DB004-DB005: Store connectivity
package core
