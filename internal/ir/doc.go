// Package ir defines the value types shared by every gatewire package:
// identifiers, decoded notifications, cached entities and the resolved
// domain events handed to listeners.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Snowflake zero means "absent"; the gateway never assigns id 0
//   - RawNotification is an immutable value and is the only payload a
//     deferred notification holds on to
//   - Seq is the per-shard logical arrival index, never a wall-clock time
//   - All JSON tags use snake_case
package ir
