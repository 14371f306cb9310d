// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package reactor provides a multi-threaded event reactor over the platform's
// native readiness or completion facility: epoll on Linux, kqueue on macOS and
// FreeBSD, and I/O completion ports on Windows (with socket readiness
// emulated on a dedicated OS thread).
//
// # Architecture
//
// An [EventQueue] owns a subscription table mapping each OS handle to a slot
// of three one-shot callbacks: readable, writable and error. Arming a slot
// ([EventQueue.CallOnReadable], [EventQueue.CallOnWritable],
// [EventQueue.CallOnError]) installs the callback and (re)arms OS level
// notification; the next matching event consumes the slot and invokes the
// callback exactly once. Registering again before the event fires replaces
// the previous callback, which is then never invoked.
//
// Any number of goroutines may call [EventQueue.ProcessEvents] (or
// [EventQueue.Run]) concurrently. Each blocks in the platform wait call and
// dispatches whatever it receives: slot callbacks, timer expirations, and
// callbacks queued from other goroutines via [EventQueue.ScheduleCallback].
//
// # Timers
//
// [EventQueue.SetTimer] creates or rearms a native timer (timerfd,
// EVFILT_TIMER or a waitable timer). Periodic timers rearm themselves after
// each callback returns, so the callbacks of a single timer never overlap.
// [EventQueue.FreeTimer] may race with an in-flight expiration: once it
// returns, the callback will not be invoked again.
//
// # Shutdown
//
// [EventQueue.Finish] makes every current and future ProcessEvents call
// return immediately. Close releases the OS resources, and must only be
// called once no goroutine is inside ProcessEvents.
//
// # Handle Lifetime
//
// Always call [EventQueue.Deregister] before closing a socket. Callbacks left
// armed for a closed handle are never invoked with an error, and could
// otherwise be triggered by a new socket that reuses the handle value.
package reactor
